package store

import (
	"context"
	"errors"
	"time"

	"ascii-arena/internal/elo"
	"ascii-arena/internal/models"

	"github.com/google/uuid"
)

// MaxApplyAttempts bounds the compare-and-swap loop in ApplyVote.
const MaxApplyAttempts = 8

var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("concurrent rating update, retries exhausted")
	ErrInvalidVote = errors.New("invalid vote")
	// ErrDuplicate means a model with the same name and config already exists.
	ErrDuplicate = errors.New("duplicate model")
)

// RateFunc turns a consistent snapshot of both models into their new ratings.
type RateFunc func(winner, loser models.Model) (winnerNew, loserNew int)

// Store is the persistence surface the services depend on.
//
// ApplyVote must read both models, call rate exactly once per successful
// attempt, write both ratings, increment both vote counts by one and insert
// the vote, all as one atomic unit. A concurrent update to either model
// between read and write must cause a retry, never a lost update.
type Store interface {
	CreateModel(ctx context.Context, m *models.Model) error
	GetModel(ctx context.Context, id string) (*models.Model, error)
	ListModelsByRating(ctx context.Context, limit int) ([]models.Model, error)

	CreatePrompt(ctx context.Context, p *models.Prompt) error
	ListPrompts(ctx context.Context) ([]models.Prompt, error)

	CreateOutput(ctx context.Context, o *models.AsciiOutput) error
	GetOutput(ctx context.Context, id string) (*models.AsciiOutput, error)
	ListOutputsByPrompt(ctx context.Context, promptID string) ([]models.AsciiOutput, error)

	ApplyVote(ctx context.Context, vote *models.Vote, rate RateFunc) (*models.RatingChange, error)

	InsertAuditEvent(ctx context.Context, e *models.AuditEvent) error

	// Clear deletes arena content and votes. Audit events survive.
	Clear(ctx context.Context) error
	Close(ctx context.Context) error
}

// NewID returns a fresh record id.
func NewID() string {
	return uuid.NewString()
}

// PrepareModel fills id, default rating and timestamps on a new model.
func PrepareModel(m *models.Model, now time.Time) {
	if m.ID == "" {
		m.ID = NewID()
	}
	if m.EloRating == 0 {
		m.EloRating = elo.DefaultRating
	}
	m.CreatedAt = now
	m.UpdatedAt = now
}

func PreparePrompt(p *models.Prompt, now time.Time) {
	if p.ID == "" {
		p.ID = NewID()
	}
	p.CreatedAt = now
}

func PrepareOutput(o *models.AsciiOutput, now time.Time) {
	if o.ID == "" {
		o.ID = NewID()
	}
	o.CreatedAt = now
}

func PrepareAuditEvent(e *models.AuditEvent, now time.Time) {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
}

// ValidateVote checks the fields every backend relies on.
func ValidateVote(vote *models.Vote) error {
	if vote == nil || vote.WinnerModelID == "" || vote.LoserModelID == "" {
		return ErrInvalidVote
	}
	if vote.WinnerModelID == vote.LoserModelID {
		return ErrInvalidVote
	}
	return nil
}

// Settle stamps vote with the before/after ratings and builds the change
// reported to callers. winner and loser are the pre-vote snapshots.
func Settle(vote *models.Vote, winner, loser *models.Model, winnerNew, loserNew int, now time.Time) *models.RatingChange {
	if vote.ID == "" {
		vote.ID = NewID()
	}
	vote.WinnerEloFrom = winner.EloRating
	vote.WinnerEloTo = winnerNew
	vote.LoserEloFrom = loser.EloRating
	vote.LoserEloTo = loserNew
	vote.CreatedAt = now

	return &models.RatingChange{
		VoteID: vote.ID,
		Winner: models.RatingSide{
			ModelID:   winner.ID,
			ModelName: winner.ModelName,
			OldElo:    winner.EloRating,
			NewElo:    winnerNew,
			Change:    winnerNew - winner.EloRating,
			VoteCount: winner.VoteCount + 1,
			KFactor:   elo.KFactor(winner.VoteCount),
		},
		Loser: models.RatingSide{
			ModelID:   loser.ID,
			ModelName: loser.ModelName,
			OldElo:    loser.EloRating,
			NewElo:    loserNew,
			Change:    loserNew - loser.EloRating,
			VoteCount: loser.VoteCount + 1,
			KFactor:   elo.KFactor(loser.VoteCount),
		},
	}
}
