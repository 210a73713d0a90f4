package leads

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/model"
)

func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "leads.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	sqliteRepo, err := NewSQLiteRepository(t.Context(), db)
	if err != nil {
		t.Fatalf("sqlite repository: %v", err)
	}
	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"sqlite": sqliteRepo,
	}
}

func TestRepositories_Contract(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	updated := created.Add(time.Hour)

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			lead := Lead{
				ID:        "lead-1",
				SessionID: "s-1",
				FormID:    "audit",
				Answers:   model.Answers{"name": model.Text("Ada"), "channels": model.Choices("email", "events")},
				CreatedAt: created,
				UpdatedAt: created,
			}
			if err := repo.Create(ctx, lead); err != nil {
				t.Fatalf("create: %v", err)
			}

			next := lead
			next.Step = 3
			next.Answers = model.Answers{"name": model.Text("Ada L")}
			next.CreatedAt = updated
			next.UpdatedAt = updated
			if err := repo.Update(ctx, next); err != nil {
				t.Fatalf("update: %v", err)
			}

			got, err := repo.Get(ctx, "lead-1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			want := next
			want.CreatedAt = created
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("lead mismatch (-want +got):\n%s", diff)
			}

			if err := repo.Update(ctx, Lead{ID: "ghost", UpdatedAt: updated}); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound on update, got %v", err)
			}
			if _, err := repo.Get(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound on get, got %v", err)
			}

			second := Lead{ID: "lead-0", SessionID: "s-2", Answers: model.Answers{}, CreatedAt: updated, UpdatedAt: updated}
			if err := repo.Create(ctx, second); err != nil {
				t.Fatalf("create second: %v", err)
			}
			all, err := repo.List(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(all) != 2 || all[0].ID != "lead-1" || all[1].ID != "lead-0" {
				t.Fatalf("expected creation order, got %+v", all)
			}
		})
	}
}
