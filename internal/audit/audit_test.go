package audit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"ascii-arena/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRequest(t *testing.T) {
	mem := store.NewMemory()
	l := NewLogger(mem)

	r := httptest.NewRequest(http.MethodPost, "/api/admin/login", nil)
	r.RemoteAddr = "198.51.100.4:1234"
	r.Header.Set("User-Agent", "curl/8")

	l.LogRequest(EventAdminLoginFailed, r, "bad password")
	l.Wait()

	events := mem.AuditEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventAdminLoginFailed, events[0].EventType)
	assert.Equal(t, "198.51.100.4", events[0].IP)
	assert.Equal(t, "curl/8", events[0].UserAgent)
	assert.NotEmpty(t, events[0].ID)
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Log(EventVoteRecorded, "", "", "")
		l.Wait()
	})
}
