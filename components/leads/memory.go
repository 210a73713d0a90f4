package leads

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository keeps leads in a map.
type MemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]Lead
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{leads: make(map[string]Lead)}
}

func (r *MemoryRepository) Create(ctx context.Context, lead Lead) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	lead.Answers = lead.Answers.Clone()
	r.leads[lead.ID] = lead
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, lead Lead) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.leads[lead.ID]
	if !ok {
		return ErrNotFound
	}
	lead.CreatedAt = existing.CreatedAt
	lead.Answers = lead.Answers.Clone()
	r.leads[lead.ID] = lead
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (Lead, error) {
	if err := ctx.Err(); err != nil {
		return Lead{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	lead, ok := r.leads[id]
	if !ok {
		return Lead{}, ErrNotFound
	}
	lead.Answers = lead.Answers.Clone()
	return lead, nil
}

// List returns leads ordered by creation time, oldest first.
func (r *MemoryRepository) List(ctx context.Context) ([]Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Lead, 0, len(r.leads))
	for _, lead := range r.leads {
		lead.Answers = lead.Answers.Clone()
		out = append(out, lead)
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
