package leads

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/goliatone/go-formflow/pkg/model"
)

const createLeadsTable = `CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	form_id    TEXT NOT NULL,
	step       INTEGER NOT NULL DEFAULT 0,
	answers    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// OpenSQLite opens (creating when needed) a SQLite database file.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("leads: open sqlite: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return db, nil
}

// SQLiteRepository stores leads in a SQLite table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository migrates the leads table and returns a repository.
func NewSQLiteRepository(ctx context.Context, db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("leads: sqlite db is nil")
	}
	if _, err := db.ExecContext(ctx, createLeadsTable); err != nil {
		return nil, fmt.Errorf("leads: migrate: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, lead Lead) error {
	answers, err := encodeAnswers(lead.Answers)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO leads (id, session_id, form_id, step, answers, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.SessionID, lead.FormID, lead.Step, answers,
		formatTime(lead.CreatedAt), formatTime(lead.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("leads: insert %s: %w", lead.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, lead Lead) error {
	answers, err := encodeAnswers(lead.Answers)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE leads SET session_id = ?, form_id = ?, step = ?, answers = ?, updated_at = ? WHERE id = ?`,
		lead.SessionID, lead.FormID, lead.Step, answers, formatTime(lead.UpdatedAt), lead.ID,
	)
	if err != nil {
		return fmt.Errorf("leads: update %s: %w", lead.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("leads: update %s: %w", lead.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (Lead, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, session_id, form_id, step, answers, created_at, updated_at FROM leads WHERE id = ?`, id)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// List returns leads ordered by creation time, oldest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Lead, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, form_id, step, answers, created_at, updated_at FROM leads ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("leads: list: %w", err)
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lead)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(row scanner) (Lead, error) {
	var (
		lead             Lead
		answers          string
		created, updated string
	)
	if err := row.Scan(&lead.ID, &lead.SessionID, &lead.FormID, &lead.Step, &answers, &created, &updated); err != nil {
		return Lead{}, err
	}
	if err := json.Unmarshal([]byte(answers), &lead.Answers); err != nil {
		return Lead{}, fmt.Errorf("leads: decode answers of %s: %w", lead.ID, err)
	}
	var err error
	if lead.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Lead{}, fmt.Errorf("leads: created_at of %s: %w", lead.ID, err)
	}
	if lead.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return Lead{}, fmt.Errorf("leads: updated_at of %s: %w", lead.ID, err)
	}
	return lead, nil
}

func encodeAnswers(answers model.Answers) (string, error) {
	if answers == nil {
		answers = model.Answers{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return "", fmt.Errorf("leads: encode answers: %w", err)
	}
	return string(data), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
