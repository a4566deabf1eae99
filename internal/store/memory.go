package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"ascii-arena/internal/models"
)

// Memory is an in-process Store used in dev mode and tests.
// ApplyVote reads under a shared lock, rates outside the lock, and commits
// only if neither model's vote count moved in between.
type Memory struct {
	mu      sync.RWMutex
	models  map[string]*models.Model
	prompts map[string]*models.Prompt
	outputs map[string]*models.AsciiOutput
	votes   []models.Vote
	audit   []models.AuditEvent

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		models:  make(map[string]*models.Model),
		prompts: make(map[string]*models.Prompt),
		outputs: make(map[string]*models.AsciiOutput),
		now:     time.Now,
	}
}

func (s *Memory) CreateModel(ctx context.Context, m *models.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.models {
		if existing.ModelName == m.ModelName && existing.ModelConfig == m.ModelConfig {
			return ErrDuplicate
		}
	}
	PrepareModel(m, s.now())
	cp := *m
	s.models[m.ID] = &cp
	return nil
}

func (s *Memory) GetModel(ctx context.Context, id string) (*models.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Memory) ListModelsByRating(ctx context.Context, limit int) ([]models.Model, error) {
	s.mu.RLock()
	list := make([]models.Model, 0, len(s.models))
	for _, m := range s.models {
		list = append(list, *m)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].EloRating != list[j].EloRating {
			return list[i].EloRating > list[j].EloRating
		}
		return list[i].ModelName < list[j].ModelName
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *Memory) CreatePrompt(ctx context.Context, p *models.Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	PreparePrompt(p, s.now())
	cp := *p
	s.prompts[p.ID] = &cp
	return nil
}

func (s *Memory) ListPrompts(ctx context.Context) ([]models.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]models.Prompt, 0, len(s.prompts))
	for _, p := range s.prompts {
		list = append(list, *p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (s *Memory) CreateOutput(ctx context.Context, o *models.AsciiOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.prompts[o.PromptID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.models[o.ModelID]; !ok {
		return ErrNotFound
	}
	PrepareOutput(o, s.now())
	cp := *o
	s.outputs[o.ID] = &cp
	return nil
}

func (s *Memory) GetOutput(ctx context.Context, id string) (*models.AsciiOutput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.outputs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *Memory) ListOutputsByPrompt(ctx context.Context, promptID string) ([]models.AsciiOutput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []models.AsciiOutput
	for _, o := range s.outputs {
		if o.PromptID == promptID {
			list = append(list, *o)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (s *Memory) ApplyVote(ctx context.Context, vote *models.Vote, rate RateFunc) (*models.RatingChange, error) {
	if err := ValidateVote(vote); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= MaxApplyAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		winner, loser, err := s.snapshot(vote.WinnerModelID, vote.LoserModelID)
		if err != nil {
			return nil, err
		}

		winnerNew, loserNew := rate(winner, loser)

		s.mu.Lock()
		w, l := s.models[winner.ID], s.models[loser.ID]
		if w == nil || l == nil {
			s.mu.Unlock()
			return nil, ErrNotFound
		}
		if w.VoteCount != winner.VoteCount || l.VoteCount != loser.VoteCount {
			s.mu.Unlock()
			continue
		}

		now := s.now()
		w.EloRating, w.VoteCount, w.Wins, w.UpdatedAt = winnerNew, w.VoteCount+1, w.Wins+1, now
		l.EloRating, l.VoteCount, l.Losses, l.UpdatedAt = loserNew, l.VoteCount+1, l.Losses+1, now

		change := Settle(vote, &winner, &loser, winnerNew, loserNew, now)
		change.Attempts = attempt
		s.votes = append(s.votes, *vote)
		s.mu.Unlock()
		return change, nil
	}

	return nil, ErrConflict
}

func (s *Memory) snapshot(winnerID, loserID string) (models.Model, models.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.models[winnerID]
	if !ok {
		return models.Model{}, models.Model{}, ErrNotFound
	}
	l, ok := s.models[loserID]
	if !ok {
		return models.Model{}, models.Model{}, ErrNotFound
	}
	return *w, *l, nil
}

func (s *Memory) InsertAuditEvent(ctx context.Context, e *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	PrepareAuditEvent(e, s.now())
	s.audit = append(s.audit, *e)
	return nil
}

// Votes returns a copy of every recorded vote, oldest first.
func (s *Memory) Votes() []models.Vote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Vote(nil), s.votes...)
}

// AuditEvents returns a copy of the audit log, oldest first.
func (s *Memory) AuditEvents() []models.AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.AuditEvent(nil), s.audit...)
}

func (s *Memory) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = make(map[string]*models.Model)
	s.prompts = make(map[string]*models.Prompt)
	s.outputs = make(map[string]*models.AsciiOutput)
	s.votes = nil
	return nil
}

func (s *Memory) Close(ctx context.Context) error {
	return nil
}
