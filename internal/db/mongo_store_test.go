package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"ascii-arena/internal/models"
	"ascii-arena/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type fakeUpdater struct {
	matched int64
	err     error

	filter bson.M
	update bson.M
}

func (f *fakeUpdater) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	f.filter = filter.(bson.M)
	f.update = update.(bson.M)
	if f.err != nil {
		return nil, f.err
	}
	return &mongo.UpdateResult{MatchedCount: f.matched, ModifiedCount: f.matched}, nil
}

func TestCasRatingFiltersOnSnapshotVoteCount(t *testing.T) {
	coll := &fakeUpdater{matched: 1}
	now := time.Now()
	snapshot := &models.Model{ID: "m-a", EloRating: 1500, VoteCount: 7}

	require.NoError(t, casRating(context.Background(), coll, snapshot, 1516, "wins", now))

	assert.Equal(t, bson.M{"_id": "m-a", "voteCount": 7}, coll.filter)
	assert.Equal(t, bson.M{"eloRating": 1516, "updatedAt": now}, coll.update["$set"])
	assert.Equal(t, bson.M{"voteCount": 1, "wins": 1}, coll.update["$inc"])
}

func TestCasRatingStaleSnapshot(t *testing.T) {
	coll := &fakeUpdater{matched: 0}
	err := casRating(context.Background(), coll, &models.Model{ID: "m-b", VoteCount: 3}, 1484, "losses", time.Now())
	assert.ErrorIs(t, err, errStaleSnapshot)

	coll = &fakeUpdater{err: errors.New("socket closed")}
	err = casRating(context.Background(), coll, &models.Model{ID: "m-b"}, 1484, "losses", time.Now())
	assert.ErrorContains(t, err, "socket closed")
	assert.NotErrorIs(t, err, errStaleSnapshot)
}

func TestRetryStale(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after stale attempts", func(t *testing.T) {
		calls := 0
		change, err := retryStale(ctx, func() (*models.RatingChange, error) {
			calls++
			if calls < 3 {
				return nil, errStaleSnapshot
			}
			return &models.RatingChange{VoteID: "v-1"}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, change.Attempts)
		assert.Equal(t, "v-1", change.VoteID)
	})

	t.Run("gives up with ErrConflict", func(t *testing.T) {
		calls := 0
		_, err := retryStale(ctx, func() (*models.RatingChange, error) {
			calls++
			return nil, errStaleSnapshot
		})
		assert.ErrorIs(t, err, store.ErrConflict)
		assert.Equal(t, store.MaxApplyAttempts, calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		calls := 0
		_, err := retryStale(ctx, func() (*models.RatingChange, error) {
			calls++
			return nil, store.ErrNotFound
		})
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops when the context is done", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := retryStale(cancelled, func() (*models.RatingChange, error) {
			t.Fatal("attempt must not run")
			return nil, nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
