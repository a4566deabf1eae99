package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatchSkipsOwnEvents(t *testing.T) {
	var got [][]byte
	eb := New(nil, func(message []byte) { got = append(got, message) })

	eb.dispatch(FeedEvent{OriginMachineID: eb.MachineID(), EventType: eventTypeRatingUpdate, Message: []byte("mine")})
	eb.dispatch(FeedEvent{OriginMachineID: "peer", EventType: eventTypeRatingUpdate, Message: []byte("theirs")})
	eb.dispatch(FeedEvent{OriginMachineID: "peer", EventType: "something_else", Message: []byte("ignored")})

	assert.Equal(t, [][]byte{[]byte("theirs")}, got)
}

func TestLocalOnlyMode(t *testing.T) {
	eb := New(nil, nil)
	assert.Len(t, eb.MachineID(), 16)
	assert.NoError(t, eb.EnsureIndexes(context.Background()))
	assert.NotPanics(t, func() {
		eb.Start()
		eb.Publish([]byte("x"))
		eb.Stop()
	})
}
