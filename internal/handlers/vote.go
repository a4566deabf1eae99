package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ascii-arena/internal/middleware"
	"ascii-arena/internal/models"
	"ascii-arena/internal/services"
	"ascii-arena/internal/store"

	"github.com/rs/zerolog/log"
)

type VoteHandler struct {
	votes *services.VoteService
	pairs *services.PairSelector
}

func NewVoteHandler(votes *services.VoteService, pairs *services.PairSelector) *VoteHandler {
	return &VoteHandler{votes: votes, pairs: pairs}
}

type VoteRequest struct {
	OutputAID string `json:"output_a_id"`
	OutputBID string `json:"output_b_id"`
	WinnerID  string `json:"winner_id"`
}

type VoteResponse struct {
	Success bool                 `json:"success"`
	EloData *models.RatingChange `json:"elo_data"`
}

// RandomPair returns a prompt and two outputs from different models.
// GET /api/random-pair
func (h *VoteHandler) RandomPair(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	pair, err := h.pairs.RandomPair(ctx)
	switch {
	case errors.Is(err, services.ErrNoPrompts):
		respondWithError(w, http.StatusNotFound, "No prompts found")
		return
	case errors.Is(err, services.ErrNotEnoughOutputs):
		respondWithError(w, http.StatusNotFound, "Not enough outputs for this prompt")
		return
	case err != nil:
		log.Error().Err(err).Msg("failed to pick random pair")
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, pair)
}

// Vote records which of two outputs the voter preferred.
// POST /api/vote
func (h *VoteHandler) Vote(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	change, err := h.votes.RecordVote(ctx, services.VoteRequest{
		OutputAID: req.OutputAID,
		OutputBID: req.OutputBID,
		WinnerID:  req.WinnerID,
		VoterIP:   middleware.GetClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		code, message := voteErrorStatus(err)
		respondWithError(w, code, message)
		return
	}

	respondWithJSON(w, http.StatusOK, VoteResponse{Success: true, EloData: change})
}

func voteErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrMissingFields):
		return http.StatusBadRequest, "Missing required fields"
	case errors.Is(err, services.ErrInvalidWinner):
		return http.StatusBadRequest, "Invalid winner_id"
	case services.IsValidationError(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Output not found"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "Ratings changed concurrently, please retry"
	default:
		return http.StatusInternalServerError, "Failed to update ratings"
	}
}
