package audit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"ascii-arena/internal/middleware"
	"ascii-arena/internal/models"

	"github.com/rs/zerolog/log"
)

// Event types for audit logging
const (
	EventVoteRecorded     = "vote_recorded"
	EventVoteRejected     = "vote_rejected"
	EventAdminLogin       = "admin_login"
	EventAdminLoginFailed = "admin_login_failed"
	EventAdminCreate      = "admin_create"
)

// Sink persists audit events. Every store.Store satisfies it.
type Sink interface {
	InsertAuditEvent(ctx context.Context, e *models.AuditEvent) error
}

// Logger writes audit events in the background so callers never wait on
// the database.
type Logger struct {
	sink Sink
	wg   sync.WaitGroup
}

func NewLogger(sink Sink) *Logger {
	return &Logger{sink: sink}
}

// Log writes an audit event (fire-and-forget).
func (l *Logger) Log(eventType, ip, userAgent, details string) {
	if l == nil || l.sink == nil {
		return
	}
	event := &models.AuditEvent{
		EventType: eventType,
		IP:        ip,
		UserAgent: userAgent,
		Details:   details,
		CreatedAt: time.Now(),
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.sink.InsertAuditEvent(ctx, event); err != nil {
			log.Error().Err(err).Str("event", eventType).Msg("audit log write failed")
		}
	}()
}

// LogRequest writes an audit event attributed to the request's client.
func (l *Logger) LogRequest(eventType string, r *http.Request, details string) {
	l.Log(eventType, middleware.GetClientIP(r), r.UserAgent(), details)
}

// Wait blocks until pending writes finish.
func (l *Logger) Wait() {
	if l == nil {
		return
	}
	l.wg.Wait()
}
