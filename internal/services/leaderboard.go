package services

import (
	"context"

	"ascii-arena/internal/models"
	"ascii-arena/internal/store"
)

const (
	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 200
)

type LeaderboardService struct {
	store store.Store
}

func NewLeaderboardService(st store.Store) *LeaderboardService {
	return &LeaderboardService{store: st}
}

// Top returns models ordered by rating. Models tied on rating share a rank.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}

	list, err := s.store.ListModelsByRating(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, len(list))
	for i, m := range list {
		rank := i + 1
		if i > 0 && m.EloRating == list[i-1].EloRating {
			rank = entries[i-1].Rank
		}
		var winRate float64
		if m.VoteCount > 0 {
			winRate = float64(m.Wins) / float64(m.VoteCount)
		}
		entries[i] = models.LeaderboardEntry{
			Rank:        rank,
			ID:          m.ID,
			ModelName:   m.ModelName,
			ModelConfig: m.ModelConfig,
			EloRating:   m.EloRating,
			VoteCount:   m.VoteCount,
			Wins:        m.Wins,
			Losses:      m.Losses,
			WinRate:     winRate,
			Metadata:    m.Metadata,
		}
	}
	return entries, nil
}
