package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"facter/internal/domain"
	"facter/internal/protocol"
	"facter/internal/repository"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Repository implements repository.SnapshotRepository using SQLite
type Repository struct {
	db *sql.DB
}

var _ repository.SnapshotRepository = (*Repository)(nil)

// New creates a new SQLite repository. Use ":memory:" for a private
// in-memory database.
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func dsn(path string) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		pragmas += "&_pragma=journal_mode(WAL)"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + pragmas
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		taken_at INTEGER NOT NULL,
		hostname TEXT NOT NULL DEFAULT '',
		fact_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS snapshot_facts (
		snapshot_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		tape TEXT NOT NULL,
		PRIMARY KEY (snapshot_id, position),
		FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_taken_at ON snapshots(taken_at);
	CREATE INDEX IF NOT EXISTS idx_snapshot_facts_name ON snapshot_facts(name);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Save stores a snapshot and all of its facts in one transaction
func (r *Repository) Save(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil {
		return errors.New("snapshot is nil")
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}

	facts := snap.Facts
	if facts == nil {
		facts = domain.NewFactSet()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, taken_at, hostname, fact_count)
		VALUES (?, ?, ?, ?)
	`, snap.ID, toUnixNano(snap.TakenAt), snap.Hostname, facts.Len())
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_facts (snapshot_id, position, name, tape)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare fact insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range facts.Facts() {
		tape, err := encodeTape(f.Name, f.Value)
		if err != nil {
			return fmt.Errorf("failed to encode fact %s: %w", f.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, snap.ID, i, f.Name, string(tape)); err != nil {
			return fmt.Errorf("failed to insert fact %s: %w", f.Name, err)
		}
	}

	return tx.Commit()
}

// Get loads a snapshot with its facts
func (r *Repository) Get(ctx context.Context, id string) (*domain.Snapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, taken_at, hostname FROM snapshots WHERE id = ?
	`, id)
	return r.load(ctx, row)
}

// Latest loads the most recently taken snapshot
func (r *Repository) Latest(ctx context.Context) (*domain.Snapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, taken_at, hostname FROM snapshots
		ORDER BY taken_at DESC, rowid DESC
		LIMIT 1
	`)
	return r.load(ctx, row)
}

func (r *Repository) load(ctx context.Context, row *sql.Row) (*domain.Snapshot, error) {
	var (
		snap    domain.Snapshot
		takenAt int64
	)
	if err := row.Scan(&snap.ID, &takenAt, &snap.Hostname); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	snap.TakenAt = fromUnixNano(takenAt)

	facts, err := r.loadFacts(ctx, snap.ID)
	if err != nil {
		return nil, err
	}
	snap.Facts = facts
	return &snap, nil
}

// loadFacts replays the stored tapes of a snapshot in position order
func (r *Repository) loadFacts(ctx context.Context, id string) (*domain.FactSet, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, tape FROM snapshot_facts
		WHERE snapshot_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}
	defer rows.Close()

	b := protocol.NewBuilder()
	for rows.Next() {
		var (
			name string
			tape []byte
		)
		if err := rows.Scan(&name, &tape); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		if err := decodeTape(tape, b); err != nil {
			return nil, fmt.Errorf("failed to decode fact %s: %w", name, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating facts: %w", err)
	}

	return b.Finish()
}

// List returns snapshot summaries, newest first. A non-positive limit
// returns all snapshots.
func (r *Repository) List(ctx context.Context, limit int) ([]domain.SnapshotInfo, error) {
	query := `
		SELECT id, taken_at, hostname, fact_count FROM snapshots
		ORDER BY taken_at DESC, rowid DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var infos []domain.SnapshotInfo
	for rows.Next() {
		var (
			info    domain.SnapshotInfo
			takenAt int64
		)
		if err := rows.Scan(&info.ID, &takenAt, &info.Hostname, &info.FactCount); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		info.TakenAt = fromUnixNano(takenAt)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return infos, nil
}

// Delete removes a snapshot and its facts
func (r *Repository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshot_facts WHERE snapshot_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete facts: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if err := checkRowsAffected(result); err != nil {
		return err
	}

	return tx.Commit()
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
