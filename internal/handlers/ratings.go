package handlers

import (
	"net/http"
	"strconv"

	"ascii-arena/internal/elo"
)

type RatingsHandler struct {
	calc *elo.Calculator
}

func NewRatingsHandler(calc *elo.Calculator) *RatingsHandler {
	return &RatingsHandler{calc: calc}
}

type PreviewResponse struct {
	Outcome elo.Outcome `json:"outcome"`
	Result  elo.Result  `json:"result"`
}

// Preview runs the rating engine on the given inputs without touching storage.
// GET /api/ratings/preview?winner=&loser=&winnerVotes=&loserVotes=
func (h *RatingsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	winner, err := parseRating(q.Get("winner"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "winner: "+err.Error())
		return
	}
	loser, err := parseRating(q.Get("loser"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "loser: "+err.Error())
		return
	}
	winnerVotes, err := parseVotes(q.Get("winnerVotes"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "winnerVotes: "+err.Error())
		return
	}
	loserVotes, err := parseVotes(q.Get("loserVotes"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "loserVotes: "+err.Error())
		return
	}

	outcome := elo.Outcome{
		WinnerRating:    winner,
		LoserRating:     loser,
		WinnerVoteCount: winnerVotes,
		LoserVoteCount:  loserVotes,
	}
	respondWithJSON(w, http.StatusOK, PreviewResponse{
		Outcome: outcome,
		Result:  h.calc.Apply(outcome),
	})
}

// parseRating defaults to the starting rating when raw is empty.
func parseRating(raw string) (float64, error) {
	if raw == "" {
		return elo.DefaultRating, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, elo.ErrRatingOutOfRange
	}
	if err := elo.ValidateRating(v); err != nil {
		return 0, err
	}
	return v, nil
}

func parseVotes(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if err := elo.ValidateVoteCount(n); err != nil {
		return 0, err
	}
	return n, nil
}
