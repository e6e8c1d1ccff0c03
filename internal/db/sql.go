package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/timschmidt/bugbot9000/internal/models"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// SQLStore implements Store on database/sql. Two drivers are supported:
// sqlite3 (default, a single local state file) and postgres. Every write is
// its own autocommitted statement, so the last committed write is exactly
// what a future run observes after an interruption.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

func NewSQLStore(driver, connectionString string) (*SQLStore, error) {
	db, err := sql.Open(driver, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLStore{db: db, dialect: driver}, nil
}

func (s *SQLStore) Migrate() error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect(s.dialect); err != nil {
		return err
	}

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (s *SQLStore) GetStatus(ctx context.Context, name string) (models.SyncStatus, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		"SELECT status FROM crates WHERE name = $1", name).Scan(&status)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query status: %w", err)
	}
	return models.SyncStatus(status), nil
}

func (s *SQLStore) GetEntry(ctx context.Context, name string) (*models.StateEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, repository, status, created_at, updated_at
		FROM crates
		WHERE name = $1`, name)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entry: %w", err)
	}
	return entry, nil
}

func (s *SQLStore) UpsertPending(ctx context.Context, name, repository string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crates (name, repository, status)
		VALUES ($1, $2, 'pending')
		ON CONFLICT(name) DO UPDATE SET
			repository = excluded.repository,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP`,
		name, repository)
	if err != nil {
		return fmt.Errorf("failed to upsert pending entry: %w", err)
	}
	return nil
}

func (s *SQLStore) SetStatus(ctx context.Context, name string, status models.SyncStatus) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crates (name, repository, status)
		VALUES ($1, NULL, $2)
		ON CONFLICT(name) DO UPDATE SET
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP`,
		name, string(status))
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	return nil
}

func (s *SQLStore) ListEntries(ctx context.Context, status models.SyncStatus) ([]*models.StateEntry, error) {
	query := `
		SELECT name, repository, status, created_at, updated_at
		FROM crates`
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, string(status))
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.StateEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}

	return entries, nil
}

func (s *SQLStore) CountByStatus(ctx context.Context) (map[models.SyncStatus]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM crates GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to query status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.SyncStatus]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[models.SyncStatus(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}

	return counts, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (*models.StateEntry, error) {
	var e models.StateEntry
	var repository sql.NullString
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&e.Name, &repository, &e.Status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if repository.Valid {
		e.Repository = &repository.String
	}
	if createdAt.Valid {
		e.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		e.UpdatedAt = updatedAt.Time
	}
	return &e, nil
}
