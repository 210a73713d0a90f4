package leads

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-formflow/pkg/model"
)

// ErrNotFound is returned by repositories for unknown lead ids.
var ErrNotFound = errors.New("leads: not found")

// Lead is a captured, possibly incomplete, form session.
type Lead struct {
	ID        string        `json:"id"`
	SessionID string        `json:"sessionId"`
	FormID    string        `json:"formId"`
	Step      int           `json:"step"`
	Answers   model.Answers `json:"answers"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Repository stores leads.
type Repository interface {
	Create(ctx context.Context, lead Lead) error
	// Update replaces an existing lead, keeping its CreatedAt. Unknown ids
	// return ErrNotFound.
	Update(ctx context.Context, lead Lead) error
	Get(ctx context.Context, id string) (Lead, error)
	List(ctx context.Context) ([]Lead, error)
}
