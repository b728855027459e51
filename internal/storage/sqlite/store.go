// Package sqlite persists triggers, their targets and invocation grants for
// the local registry backend.
package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"dday-scheduler/internal/common/errors"
	_ "github.com/mattn/go-sqlite3"
)

const timeLayout = time.RFC3339

// Trigger is a stored one-shot trigger
type Trigger struct {
	ID          string
	EventName   string
	Offset      int
	AnchorDate  string
	FireAt      time.Time
	Schedule    string
	Description string
	Enabled     bool
	FiredAt     *time.Time
}

// Target is one invocation bound to a trigger
type Target struct {
	TriggerID string
	Task      string
	Address   string
	Input     string
}

// Grant records that a trigger may invoke a task
type Grant struct {
	Task        string
	TriggerID   string
	StatementID string
	SourceARN   string
	CreatedAt   time.Time
}

// Store is a SQLite backed trigger store
type Store struct {
	db     *sql.DB
	config *Config
}

// Open opens (and migrates) the database at config.DatabasePath
func Open(config *Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; avoids SQLITE_BUSY between the planner's workers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db, config: config}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS triggers (
			id TEXT PRIMARY KEY,
			event_name TEXT NOT NULL,
			offset_days INTEGER NOT NULL,
			anchor_date TEXT NOT NULL,
			fire_at TEXT NOT NULL,
			schedule TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			enabled BOOLEAN NOT NULL DEFAULT 1,
			fired_at TEXT DEFAULT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS targets (
			trigger_id TEXT NOT NULL REFERENCES triggers(id) ON DELETE CASCADE,
			task TEXT NOT NULL,
			address TEXT NOT NULL,
			input TEXT NOT NULL,
			PRIMARY KEY (trigger_id, task)
		)`,
		`CREATE TABLE IF NOT EXISTS grants (
			task TEXT NOT NULL,
			trigger_id TEXT NOT NULL,
			statement_id TEXT NOT NULL,
			source_arn TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (task, trigger_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_triggers_due ON triggers(fire_at) WHERE fired_at IS NULL`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health pings the database
func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertTrigger creates or replaces a trigger. A changed fire time re-arms
// a trigger that already fired.
func (s *Store) UpsertTrigger(ctx context.Context, trigger Trigger) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO triggers (id, event_name, offset_days, anchor_date, fire_at, schedule, description, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			event_name = excluded.event_name,
			offset_days = excluded.offset_days,
			anchor_date = excluded.anchor_date,
			fired_at = CASE WHEN triggers.fire_at = excluded.fire_at THEN triggers.fired_at ELSE NULL END,
			fire_at = excluded.fire_at,
			schedule = excluded.schedule,
			description = excluded.description,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`,
		trigger.ID, trigger.EventName, trigger.Offset, trigger.AnchorDate,
		trigger.FireAt.UTC().Format(timeLayout), trigger.Schedule, trigger.Description, trigger.Enabled,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert trigger %s: %w", trigger.ID, err)
	}
	return nil
}

// GetTrigger returns the trigger with id
func (s *Store) GetTrigger(ctx context.Context, id string) (*Trigger, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, event_name, offset_days, anchor_date, fire_at, schedule, description, enabled, fired_at
		FROM triggers WHERE id = ?`, id)

	trigger, err := scanTrigger(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFoundError(fmt.Sprintf("trigger %s", id), err)
	}
	return trigger, err
}

// ReplaceTargets swaps the full target set of a trigger in one transaction
func (s *Store) ReplaceTargets(ctx context.Context, triggerID string, targets []Target) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM triggers WHERE id = ?`, triggerID).Scan(&exists); err != nil {
		return fmt.Errorf("lookup trigger %s: %w", triggerID, err)
	}
	if exists == 0 {
		return errors.NotFoundError(fmt.Sprintf("trigger %s", triggerID), nil)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM targets WHERE trigger_id = ?`, triggerID); err != nil {
		return fmt.Errorf("clear targets of %s: %w", triggerID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO targets (trigger_id, task, address, input) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, target := range targets {
		if _, err := stmt.ExecContext(ctx, triggerID, target.Task, target.Address, target.Input); err != nil {
			return fmt.Errorf("insert target %s of %s: %w", target.Task, triggerID, err)
		}
	}

	return tx.Commit()
}

// Targets lists the targets of a trigger ordered by task
func (s *Store) Targets(ctx context.Context, triggerID string) ([]Target, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trigger_id, task, address, input FROM targets
		WHERE trigger_id = ? ORDER BY task`, triggerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []Target
	for rows.Next() {
		var target Target
		if err := rows.Scan(&target.TriggerID, &target.Task, &target.Address, &target.Input); err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

// InsertGrant records a grant. It reports false when the grant already existed.
func (s *Store) InsertGrant(ctx context.Context, grant Grant) (bool, error) {
	createdAt := grant.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO grants (task, trigger_id, statement_id, source_arn, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(task, trigger_id) DO NOTHING`,
		grant.Task, grant.TriggerID, grant.StatementID, grant.SourceARN, createdAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("insert grant %s: %w", grant.StatementID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// HasGrant reports whether triggerID may invoke task
func (s *Store) HasGrant(ctx context.Context, task, triggerID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM grants WHERE task = ? AND trigger_id = ?`, task, triggerID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DueTriggers returns enabled, unfired triggers with fire_at <= now
func (s *Store) DueTriggers(ctx context.Context, now time.Time) ([]Trigger, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_name, offset_days, anchor_date, fire_at, schedule, description, enabled, fired_at
		FROM triggers
		WHERE enabled = 1 AND fired_at IS NULL AND fire_at <= ?
		ORDER BY fire_at, id`, now.UTC().Format(timeLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triggers []Trigger
	for rows.Next() {
		trigger, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		triggers = append(triggers, *trigger)
	}
	return triggers, rows.Err()
}

// MarkFired records that a trigger fired at
func (s *Store) MarkFired(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE triggers SET fired_at = ? WHERE id = ?`, at.UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("mark %s fired: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundError(fmt.Sprintf("trigger %s", id), nil)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrigger(row scanner) (*Trigger, error) {
	var (
		t       Trigger
		fireAt  string
		firedAt sql.NullString
	)
	if err := row.Scan(&t.ID, &t.EventName, &t.Offset, &t.AnchorDate, &fireAt, &t.Schedule, &t.Description, &t.Enabled, &firedAt); err != nil {
		return nil, err
	}

	parsed, err := time.Parse(timeLayout, fireAt)
	if err != nil {
		return nil, fmt.Errorf("trigger %s: bad fire_at %q: %w", t.ID, fireAt, err)
	}
	t.FireAt = parsed

	if firedAt.Valid {
		at, err := time.Parse(timeLayout, firedAt.String)
		if err != nil {
			return nil, fmt.Errorf("trigger %s: bad fired_at %q: %w", t.ID, firedAt.String, err)
		}
		t.FiredAt = &at
	}

	return &t, nil
}
