package models

import (
	"time"
)

// Vote records one A/B comparison. WinnerID is an output id.
type Vote struct {
	ID            string    `json:"id" bson:"_id" db:"id"`
	OutputAID     string    `json:"output_a_id" bson:"outputAId" db:"output_a_id"`
	OutputBID     string    `json:"output_b_id" bson:"outputBId" db:"output_b_id"`
	WinnerID      string    `json:"winner_id" bson:"winnerId" db:"winner_id"`
	WinnerModelID string    `json:"winner_model_id" bson:"winnerModelId" db:"winner_model_id"`
	LoserModelID  string    `json:"loser_model_id" bson:"loserModelId" db:"loser_model_id"`
	WinnerEloFrom int       `json:"winner_elo_from" bson:"winnerEloFrom" db:"winner_elo_from"`
	WinnerEloTo   int       `json:"winner_elo_to" bson:"winnerEloTo" db:"winner_elo_to"`
	LoserEloFrom  int       `json:"loser_elo_from" bson:"loserEloFrom" db:"loser_elo_from"`
	LoserEloTo    int       `json:"loser_elo_to" bson:"loserEloTo" db:"loser_elo_to"`
	VoterHash     string    `json:"-" bson:"voterHash,omitempty" db:"voter_hash"`
	CreatedAt     time.Time `json:"created_at" bson:"createdAt" db:"created_at"`
}

// RatingSide is one model's view of a rating update.
type RatingSide struct {
	ModelID   string  `json:"model_id"`
	ModelName string  `json:"model_name"`
	OldElo    int     `json:"old_elo"`
	NewElo    int     `json:"new_elo"`
	Change    int     `json:"change"`
	VoteCount int     `json:"vote_count"`
	KFactor   float64 `json:"k_factor"`
}

// RatingChange is what a recorded vote did to both models.
type RatingChange struct {
	VoteID string     `json:"vote_id"`
	Winner RatingSide `json:"winner"`
	Loser  RatingSide `json:"loser"`

	// Attempts is how many compare-and-swap rounds the store needed.
	Attempts int `json:"-"`
}

type LeaderboardEntry struct {
	Rank        int                    `json:"rank"`
	ID          string                 `json:"id"`
	ModelName   string                 `json:"model_name"`
	ModelConfig string                 `json:"model_config"`
	EloRating   int                    `json:"elo_rating"`
	VoteCount   int                    `json:"vote_count"`
	Wins        int                    `json:"wins"`
	Losses      int                    `json:"losses"`
	WinRate     float64                `json:"win_rate"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// AuditEvent is a security or integrity relevant event.
type AuditEvent struct {
	ID        string    `json:"id" bson:"_id" db:"id"`
	EventType string    `json:"event_type" bson:"eventType" db:"event_type"`
	IP        string    `json:"ip" bson:"ip" db:"ip"`
	UserAgent string    `json:"user_agent" bson:"userAgent" db:"user_agent"`
	Details   string    `json:"details,omitempty" bson:"details,omitempty" db:"details"`
	CreatedAt time.Time `json:"created_at" bson:"createdAt" db:"created_at"`
}
