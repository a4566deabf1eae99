package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"ascii-arena/internal/models"
	"ascii-arena/internal/store"
)

var (
	ErrNoPrompts        = errors.New("no prompts found")
	ErrNotEnoughOutputs = errors.New("not enough outputs for any prompt")
)

// Pair is one matchup shown to a voter.
type Pair struct {
	Prompt  models.Prompt      `json:"prompt"`
	OutputA models.AsciiOutput `json:"outputA"`
	OutputB models.AsciiOutput `json:"outputB"`
}

// PairSelector picks a random prompt and two of its outputs from
// different models.
type PairSelector struct {
	store store.Store

	mu  sync.Mutex
	rng *rand.Rand
}

func NewPairSelector(st store.Store) *PairSelector {
	return &PairSelector{
		store: st,
		rng:   rand.New(rand.NewSource(rand.Int63())),
	}
}

func (p *PairSelector) RandomPair(ctx context.Context) (*Pair, error) {
	prompts, err := p.store.ListPrompts(ctx)
	if err != nil {
		return nil, err
	}
	if len(prompts) == 0 {
		return nil, ErrNoPrompts
	}

	// Try prompts in random order until one can produce a pair.
	for _, i := range p.perm(len(prompts)) {
		outputs, err := p.store.ListOutputsByPrompt(ctx, prompts[i].ID)
		if err != nil {
			return nil, err
		}
		a, b, ok := p.pick(outputs)
		if !ok {
			continue
		}
		return &Pair{Prompt: prompts[i], OutputA: a, OutputB: b}, nil
	}
	return nil, ErrNotEnoughOutputs
}

// pick chooses two outputs produced by different models.
func (p *PairSelector) pick(outputs []models.AsciiOutput) (models.AsciiOutput, models.AsciiOutput, bool) {
	if len(outputs) < 2 {
		return models.AsciiOutput{}, models.AsciiOutput{}, false
	}
	order := p.perm(len(outputs))
	first := outputs[order[0]]
	for _, i := range order[1:] {
		if outputs[i].ModelID != first.ModelID {
			return first, outputs[i], true
		}
	}
	return models.AsciiOutput{}, models.AsciiOutput{}, false
}

func (p *PairSelector) perm(n int) []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Perm(n)
}
