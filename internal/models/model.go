package models

import (
	"time"
)

// Model is one AI model configuration competing in the arena.
// ID is a UUID string across all storage backends.
type Model struct {
	ID          string                 `json:"id" bson:"_id" db:"id"`
	ModelName   string                 `json:"model_name" bson:"modelName" db:"model_name"`
	ModelConfig string                 `json:"model_config" bson:"modelConfig" db:"model_config"`
	EloRating   int                    `json:"elo_rating" bson:"eloRating" db:"elo_rating"`
	VoteCount   int                    `json:"vote_count" bson:"voteCount" db:"vote_count"`
	Wins        int                    `json:"wins" bson:"wins" db:"wins"`
	Losses      int                    `json:"losses" bson:"losses" db:"losses"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty" db:"-"`
	CreatedAt   time.Time              `json:"created_at" bson:"createdAt" db:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at" bson:"updatedAt" db:"updated_at"`
}

// Provider returns metadata.provider when set.
func (m *Model) Provider() string {
	if m.Metadata == nil {
		return ""
	}
	p, _ := m.Metadata["provider"].(string)
	return p
}

type Prompt struct {
	ID        string    `json:"id" bson:"_id" db:"id"`
	Text      string    `json:"text" bson:"text" db:"text"`
	CreatedAt time.Time `json:"created_at" bson:"createdAt" db:"created_at"`
}

// AsciiOutput is the art a model produced for a prompt.
type AsciiOutput struct {
	ID        string    `json:"id" bson:"_id" db:"id"`
	PromptID  string    `json:"prompt_id" bson:"promptId" db:"prompt_id"`
	ModelID   string    `json:"model_id" bson:"modelId" db:"model_id"`
	Content   string    `json:"content" bson:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" bson:"createdAt" db:"created_at"`
}
