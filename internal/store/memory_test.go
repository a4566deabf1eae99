package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ascii-arena/internal/elo"
	"ascii-arena/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eloRate(winner, loser models.Model) (int, int) {
	return elo.UpdateRatings(float64(winner.EloRating), float64(loser.EloRating), winner.VoteCount, loser.VoteCount)
}

func seedPair(t *testing.T, s *Memory) (*models.Model, *models.Model) {
	t.Helper()
	ctx := context.Background()
	a := &models.Model{ModelName: "model-a"}
	b := &models.Model{ModelName: "model-b"}
	require.NoError(t, s.CreateModel(ctx, a))
	require.NoError(t, s.CreateModel(ctx, b))
	return a, b
}

func TestMemoryCreateModelDefaults(t *testing.T) {
	s := NewMemory()
	a, _ := seedPair(t, s)

	got, err := s.GetModel(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, elo.DefaultRating, got.EloRating)
	assert.Equal(t, 0, got.VoteCount)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.GetModel(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCreateModelRejectsDuplicate(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.CreateModel(ctx, &models.Model{ModelName: "gpt-4o", ModelConfig: "temperature=0.7"}))
	err := s.CreateModel(ctx, &models.Model{ModelName: "gpt-4o", ModelConfig: "temperature=0.7"})
	assert.ErrorIs(t, err, ErrDuplicate)

	// Same name with a different config is a separate model.
	require.NoError(t, s.CreateModel(ctx, &models.Model{ModelName: "gpt-4o", ModelConfig: "temperature=0"}))

	list, err := s.ListModelsByRating(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestMemoryApplyVote(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	a, b := seedPair(t, s)

	vote := &models.Vote{WinnerModelID: a.ID, LoserModelID: b.ID}
	change, err := s.ApplyVote(ctx, vote, eloRate)
	require.NoError(t, err)

	assert.Equal(t, 1516, change.Winner.NewElo)
	assert.Equal(t, 1484, change.Loser.NewElo)
	assert.Equal(t, 16, change.Winner.Change)
	assert.Equal(t, -16, change.Loser.Change)
	assert.Equal(t, 1, change.Attempts)

	winner, _ := s.GetModel(ctx, a.ID)
	loser, _ := s.GetModel(ctx, b.ID)
	assert.Equal(t, 1516, winner.EloRating)
	assert.Equal(t, 1, winner.VoteCount)
	assert.Equal(t, 1, winner.Wins)
	assert.Equal(t, 1484, loser.EloRating)
	assert.Equal(t, 1, loser.VoteCount)
	assert.Equal(t, 1, loser.Losses)

	votes := s.Votes()
	require.Len(t, votes, 1)
	assert.Equal(t, change.VoteID, votes[0].ID)
	assert.Equal(t, 1500, votes[0].WinnerEloFrom)
	assert.Equal(t, 1516, votes[0].WinnerEloTo)
}

func TestMemoryApplyVoteRejectsBadInput(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	a, _ := seedPair(t, s)

	_, err := s.ApplyVote(ctx, &models.Vote{WinnerModelID: a.ID, LoserModelID: a.ID}, eloRate)
	assert.ErrorIs(t, err, ErrInvalidVote)

	_, err = s.ApplyVote(ctx, &models.Vote{WinnerModelID: a.ID, LoserModelID: "ghost"}, eloRate)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryApplyVoteRetriesOnConcurrentWrite(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	a, b := seedPair(t, s)

	calls := 0
	rate := func(winner, loser models.Model) (int, int) {
		calls++
		if calls == 1 {
			// Another vote lands between our read and our write.
			s.mu.Lock()
			s.models[winner.ID].VoteCount++
			s.mu.Unlock()
		}
		return eloRate(winner, loser)
	}

	change, err := s.ApplyVote(ctx, &models.Vote{WinnerModelID: a.ID, LoserModelID: b.ID}, rate)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, change.Attempts)

	winner, _ := s.GetModel(ctx, a.ID)
	assert.Equal(t, 2, winner.VoteCount)
}

func TestMemoryApplyVoteNoLostUpdates(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	a, b := seedPair(t, s)

	const voters = 64
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vote := &models.Vote{WinnerModelID: a.ID, LoserModelID: b.ID}
			if i%2 == 1 {
				vote.WinnerModelID, vote.LoserModelID = b.ID, a.ID
			}
			_, err := s.ApplyVote(ctx, vote, eloRate)
			if err != nil {
				if !errors.Is(err, ErrConflict) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	ma, _ := s.GetModel(ctx, a.ID)
	mb, _ := s.GetModel(ctx, b.ID)
	assert.Equal(t, succeeded, ma.VoteCount)
	assert.Equal(t, succeeded, mb.VoteCount)
	assert.Equal(t, succeeded, ma.Wins+ma.Losses)
	assert.Len(t, s.Votes(), succeeded)

	// Replaying the recorded votes in order must land on the stored ratings.
	last := map[string]int{a.ID: 1500, b.ID: 1500}
	for _, v := range s.Votes() {
		assert.Equal(t, last[v.WinnerModelID], v.WinnerEloFrom)
		assert.Equal(t, last[v.LoserModelID], v.LoserEloFrom)
		last[v.WinnerModelID] = v.WinnerEloTo
		last[v.LoserModelID] = v.LoserEloTo
	}
	assert.Equal(t, ma.EloRating, last[a.ID])
	assert.Equal(t, mb.EloRating, last[b.ID])
}

func TestMemoryOutputsAndPrompts(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	a, b := seedPair(t, s)

	p := &models.Prompt{Text: "a cat"}
	require.NoError(t, s.CreatePrompt(ctx, p))

	require.NoError(t, s.CreateOutput(ctx, &models.AsciiOutput{PromptID: p.ID, ModelID: a.ID, Content: "=^.^="}))
	require.NoError(t, s.CreateOutput(ctx, &models.AsciiOutput{PromptID: p.ID, ModelID: b.ID, Content: "(=^:^=)"}))
	assert.ErrorIs(t, s.CreateOutput(ctx, &models.AsciiOutput{PromptID: "nope", ModelID: a.ID}), ErrNotFound)

	outs, err := s.ListOutputsByPrompt(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, outs, 2)

	require.NoError(t, s.Clear(ctx))
	prompts, _ := s.ListPrompts(ctx)
	assert.Empty(t, prompts)
}

func TestMemoryListModelsByRating(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	for _, m := range []*models.Model{
		{ModelName: "low", EloRating: 1400},
		{ModelName: "high", EloRating: 1700},
		{ModelName: "mid", EloRating: 1550},
	} {
		require.NoError(t, s.CreateModel(ctx, m))
	}

	list, err := s.ListModelsByRating(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "high", list[0].ModelName)
	assert.Equal(t, "mid", list[1].ModelName)
}
