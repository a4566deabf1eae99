package elo

import (
	"errors"
	"math"
)

const (
	// Dynamic K-factor: new models move fast, established ones settle.
	BaseK        = 32.0
	MinK         = 10.0
	DecayDivisor = 30.0

	// Rating assigned to a model before its first vote
	DefaultRating = 1500

	// MaxRating bounds the magnitude of ratings the engine accepts from
	// callers. Results must fit in an int.
	MaxRating = 1e9
)

var (
	ErrNegativeVoteCount = errors.New("vote count must not be negative")
	ErrRatingOutOfRange  = errors.New("rating must be a finite number within ±1e9")
)

// Outcome is one completed pairwise comparison.
type Outcome struct {
	WinnerRating    float64 `json:"winnerRating"`
	LoserRating     float64 `json:"loserRating"`
	WinnerVoteCount int     `json:"winnerVoteCount"`
	LoserVoteCount  int     `json:"loserVoteCount"`
}

// Result holds the ratings produced by an Outcome along with the inputs
// that shaped them, for display and audit.
type Result struct {
	WinnerNewRating int     `json:"winnerNewRating"`
	LoserNewRating  int     `json:"loserNewRating"`
	WinnerDelta     int     `json:"winnerDelta"`
	LoserDelta      int     `json:"loserDelta"`
	WinnerK         float64 `json:"winnerK"`
	LoserK          float64 `json:"loserK"`
	WinnerExpected  float64 `json:"winnerExpected"`
}

type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Apply computes the new ratings for an outcome.
// Deltas are measured against the inputs rounded to the nearest integer.
func (c *Calculator) Apply(o Outcome) Result {
	winnerNew, loserNew := UpdateRatings(o.WinnerRating, o.LoserRating, o.WinnerVoteCount, o.LoserVoteCount)
	return Result{
		WinnerNewRating: winnerNew,
		LoserNewRating:  loserNew,
		WinnerDelta:     winnerNew - int(math.Round(o.WinnerRating)),
		LoserDelta:      loserNew - int(math.Round(o.LoserRating)),
		WinnerK:         KFactor(o.WinnerVoteCount),
		LoserK:          KFactor(o.LoserVoteCount),
		WinnerExpected:  ExpectedScore(o.WinnerRating, o.LoserRating),
	}
}

// KFactor returns how far a single outcome may move a rating, given how many
// votes the model has already received.
// K = max(BaseK / (1 + voteCount/DecayDivisor), MinK)
// Negative vote counts are treated as zero.
func KFactor(voteCount int) float64 {
	if voteCount < 0 {
		voteCount = 0
	}
	k := BaseK / (1.0 + float64(voteCount)/DecayDivisor)
	return math.Max(k, MinK)
}

// ExpectedScore is the probability that player beats opponent.
// E = 1 / (1 + 10^((OpponentRating - PlayerRating) / 400))
func ExpectedScore(playerRating, opponentRating float64) float64 {
	exponent := (opponentRating - playerRating) / 400.0
	return 1.0 / (1.0 + math.Pow(10, exponent))
}

// UpdateRatings returns the winner's and loser's ratings after the winner
// beat the loser. Intermediate math stays in float64; the result is rounded
// half away from zero.
//
// Inputs are expected within ±MaxRating (see ValidateRating). Outside that
// domain the rounded result may not be representable as an int.
func UpdateRatings(winnerRating, loserRating float64, winnerVoteCount, loserVoteCount int) (int, int) {
	winnerK := KFactor(winnerVoteCount)
	loserK := KFactor(loserVoteCount)

	expectedWinner := ExpectedScore(winnerRating, loserRating)
	expectedLoser := ExpectedScore(loserRating, winnerRating)

	winnerNew := math.Round(winnerRating + winnerK*(1.0-expectedWinner))
	loserNew := math.Round(loserRating + loserK*(0.0-expectedLoser))

	return int(winnerNew), int(loserNew)
}

// ValidateRating rejects NaN, infinities and magnitudes above MaxRating.
func ValidateRating(rating float64) error {
	if math.IsNaN(rating) || math.Abs(rating) > MaxRating {
		return ErrRatingOutOfRange
	}
	return nil
}

// ValidateVoteCount rejects negative counts for callers that would rather
// fail than rely on clamping.
func ValidateVoteCount(voteCount int) error {
	if voteCount < 0 {
		return ErrNegativeVoteCount
	}
	return nil
}
