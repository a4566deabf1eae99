package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"ascii-arena/internal/audit"
	"ascii-arena/internal/elo"
	"ascii-arena/internal/metrics"
	"ascii-arena/internal/models"
	"ascii-arena/internal/store"

	"github.com/rs/zerolog/log"
)

var (
	ErrMissingFields  = errors.New("missing required fields")
	ErrSameOutput     = errors.New("outputs must be different")
	ErrInvalidWinner  = errors.New("invalid winner_id")
	ErrPromptMismatch = errors.New("outputs belong to different prompts")
	ErrSameModel      = errors.New("outputs come from the same model")
)

// RatingPublisher is implemented by the live leaderboard feed.
type RatingPublisher interface {
	PublishRatingChange(change *models.RatingChange)
}

type VoteRequest struct {
	OutputAID string
	OutputBID string
	WinnerID  string
	VoterIP   string
	UserAgent string
}

// VoteService turns a voter's choice between two outputs into a rating
// update for the models behind them.
type VoteService struct {
	store     store.Store
	metrics   *metrics.Metrics
	audit     *audit.Logger
	publisher RatingPublisher
}

func NewVoteService(st store.Store, m *metrics.Metrics, auditLog *audit.Logger, publisher RatingPublisher) *VoteService {
	return &VoteService{
		store:     st,
		metrics:   m,
		audit:     auditLog,
		publisher: publisher,
	}
}

// RateWithElo feeds a stored snapshot through the rating engine.
func RateWithElo(winner, loser models.Model) (int, int) {
	return elo.UpdateRatings(
		float64(winner.EloRating),
		float64(loser.EloRating),
		winner.VoteCount,
		loser.VoteCount,
	)
}

func (s *VoteService) RecordVote(ctx context.Context, req VoteRequest) (*models.RatingChange, error) {
	change, err := s.recordVote(ctx, req)
	if err != nil {
		s.reject(req, err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveVote(change)
	}
	log.Info().
		Str("vote", change.VoteID).
		Str("winner", change.Winner.ModelName).
		Int("winnerFrom", change.Winner.OldElo).
		Int("winnerTo", change.Winner.NewElo).
		Str("loser", change.Loser.ModelName).
		Int("loserFrom", change.Loser.OldElo).
		Int("loserTo", change.Loser.NewElo).
		Int("attempts", change.Attempts).
		Msg("vote recorded")

	s.audit.Log(audit.EventVoteRecorded, req.VoterIP, req.UserAgent,
		fmt.Sprintf("vote=%s winner=%s loser=%s", change.VoteID, change.Winner.ModelID, change.Loser.ModelID))

	if s.publisher != nil {
		s.publisher.PublishRatingChange(change)
	}
	return change, nil
}

func (s *VoteService) recordVote(ctx context.Context, req VoteRequest) (*models.RatingChange, error) {
	if req.OutputAID == "" || req.OutputBID == "" || req.WinnerID == "" {
		return nil, ErrMissingFields
	}
	if req.OutputAID == req.OutputBID {
		return nil, ErrSameOutput
	}
	if req.WinnerID != req.OutputAID && req.WinnerID != req.OutputBID {
		return nil, ErrInvalidWinner
	}

	loserID := req.OutputAID
	if req.WinnerID == req.OutputAID {
		loserID = req.OutputBID
	}

	winnerOut, err := s.store.GetOutput(ctx, req.WinnerID)
	if err != nil {
		return nil, fmt.Errorf("output %s: %w", req.WinnerID, err)
	}
	loserOut, err := s.store.GetOutput(ctx, loserID)
	if err != nil {
		return nil, fmt.Errorf("output %s: %w", loserID, err)
	}
	if winnerOut.PromptID != loserOut.PromptID {
		return nil, ErrPromptMismatch
	}
	if winnerOut.ModelID == loserOut.ModelID {
		return nil, ErrSameModel
	}

	vote := &models.Vote{
		OutputAID:     req.OutputAID,
		OutputBID:     req.OutputBID,
		WinnerID:      req.WinnerID,
		WinnerModelID: winnerOut.ModelID,
		LoserModelID:  loserOut.ModelID,
		VoterHash:     hashVoter(req.VoterIP),
	}
	return s.store.ApplyVote(ctx, vote, RateWithElo)
}

func (s *VoteService) reject(req VoteRequest, err error) {
	outcome := "error"
	switch {
	case errors.Is(err, store.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, store.ErrConflict):
		outcome = "conflict"
	case IsValidationError(err):
		outcome = "invalid"
	}
	if s.metrics != nil {
		s.metrics.ObserveRejectedVote(outcome)
	}
	if outcome == "error" || outcome == "conflict" {
		log.Error().Err(err).Str("winner", req.WinnerID).Msg("failed to record vote")
	}
	s.audit.Log(audit.EventVoteRejected, req.VoterIP, req.UserAgent, outcome+": "+err.Error())
}

// IsValidationError reports whether err came from checking the request.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingFields) ||
		errors.Is(err, ErrSameOutput) ||
		errors.Is(err, ErrInvalidWinner) ||
		errors.Is(err, ErrPromptMismatch) ||
		errors.Is(err, ErrSameModel) ||
		errors.Is(err, store.ErrInvalidVote)
}

func hashVoter(ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:16])
}
