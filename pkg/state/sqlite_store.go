package state

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using SQLite. On Windows this file backs
// onto the same physical medium as the bundle's uninstall registry key;
// unlike the registry, it lets the elevated companion and the unelevated
// engine process share resume state through one WAL-mode database file
// instead of duplicating registry round-trips across the privilege
// boundary.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{path: cfg.Path}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// GetPersistedState returns the resume state for bundleID, or a zero-value
// PersistedState (Resume == ResumeNone) if the bundle has never persisted
// state.
func (s *SQLiteStore) GetPersistedState(ctx context.Context, bundleID string) (*PersistedState, error) {
	query := `
		SELECT bundle_id, resume, resume_command_line, registration_type, created_at, updated_at
		FROM persisted_state
		WHERE bundle_id = ?
	`

	ps := &PersistedState{}
	err := s.db.QueryRowContext(ctx, query, bundleID).Scan(
		&ps.BundleID,
		&ps.Resume,
		&ps.ResumeCommandLine,
		&ps.RegistrationType,
		&ps.CreatedAt,
		&ps.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &PersistedState{
			BundleID:         bundleID,
			Resume:           ResumeNone,
			RegistrationType: RegistrationNone,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get persisted state: %w", err)
	}

	return ps, nil
}

// SavePersistedState upserts the resume state for a bundle.
func (s *SQLiteStore) SavePersistedState(ctx context.Context, ps *PersistedState) error {
	query := `
		INSERT INTO persisted_state (bundle_id, resume, resume_command_line, registration_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(bundle_id) DO UPDATE SET
			resume = excluded.resume,
			resume_command_line = excluded.resume_command_line,
			registration_type = excluded.registration_type,
			updated_at = excluded.updated_at
	`

	now := time.Now()
	if ps.CreatedAt.IsZero() {
		ps.CreatedAt = now
	}
	ps.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		ps.BundleID,
		ps.Resume,
		ps.ResumeCommandLine,
		ps.RegistrationType,
		ps.CreatedAt,
		ps.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save persisted state: %w", err)
	}

	return nil
}

// ClearResume resets a bundle's Resume/ResumeCommandLine to their zero
// values once the pending resume has been consumed.
func (s *SQLiteStore) ClearResume(ctx context.Context, bundleID string) error {
	query := `
		UPDATE persisted_state
		SET resume = ?, resume_command_line = '', updated_at = ?
		WHERE bundle_id = ?
	`

	_, err := s.db.ExecContext(ctx, query, ResumeNone, time.Now(), bundleID)
	if err != nil {
		return fmt.Errorf("failed to clear resume state: %w", err)
	}

	return nil
}

// ListPendingResumes returns every bundle with a pending resume, oldest
// update first.
func (s *SQLiteStore) ListPendingResumes(ctx context.Context) ([]PersistedState, error) {
	query := `
		SELECT bundle_id, resume, resume_command_line, registration_type, created_at, updated_at
		FROM persisted_state
		WHERE resume != ?
		ORDER BY updated_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, ResumeNone)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending resumes: %w", err)
	}
	defer rows.Close()

	var pending []PersistedState
	for rows.Next() {
		var ps PersistedState
		if err := rows.Scan(
			&ps.BundleID,
			&ps.Resume,
			&ps.ResumeCommandLine,
			&ps.RegistrationType,
			&ps.CreatedAt,
			&ps.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pending resume: %w", err)
		}
		pending = append(pending, ps)
	}
	return pending, rows.Err()
}

// AppendLogPath records a newly opened log file for bundleID.
func (s *SQLiteStore) AppendLogPath(ctx context.Context, bundleID, path string) error {
	query := `
		INSERT INTO log_path_history (bundle_id, path, recorded_at)
		VALUES (?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query, bundleID, path, time.Now())
	if err != nil {
		return fmt.Errorf("failed to append log path: %w", err)
	}

	return nil
}

// ListLogPaths returns every recorded log path for bundleID, oldest first.
func (s *SQLiteStore) ListLogPaths(ctx context.Context, bundleID string) ([]LogPathEntry, error) {
	query := `
		SELECT id, bundle_id, path, recorded_at
		FROM log_path_history
		WHERE bundle_id = ?
		ORDER BY recorded_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, bundleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list log paths: %w", err)
	}
	defer rows.Close()

	entries := []LogPathEntry{}
	for rows.Next() {
		var e LogPathEntry
		if err := rows.Scan(&e.ID, &e.BundleID, &e.Path, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan log path entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log path entries: %w", err)
	}

	return entries, nil
}

// UpsertRelatedBundle caches a related-bundle discovery result.
func (s *SQLiteStore) UpsertRelatedBundle(ctx context.Context, rec *RelatedBundleRecord) error {
	query := `
		INSERT INTO related_bundle_cache
			(bundle_id, provider_key, tag, version, cache_path, engine_version, relation_type, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bundle_id, provider_key) DO UPDATE SET
			tag = excluded.tag,
			version = excluded.version,
			cache_path = excluded.cache_path,
			engine_version = excluded.engine_version,
			relation_type = excluded.relation_type,
			updated_at = excluded.updated_at
	`

	rec.UpdatedAt = time.Now()

	_, err := s.db.ExecContext(ctx, query,
		rec.BundleID,
		rec.ProviderKey,
		rec.Tag,
		rec.Version,
		rec.CachePath,
		rec.EngineVersion,
		rec.RelationType,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert related bundle: %w", err)
	}

	return nil
}

// ListRelatedBundles returns every cached related-bundle record for
// bundleID.
func (s *SQLiteStore) ListRelatedBundles(ctx context.Context, bundleID string) ([]RelatedBundleRecord, error) {
	query := `
		SELECT bundle_id, provider_key, tag, version, cache_path, engine_version, relation_type, updated_at
		FROM related_bundle_cache
		WHERE bundle_id = ?
		ORDER BY provider_key ASC
	`

	rows, err := s.db.QueryContext(ctx, query, bundleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list related bundles: %w", err)
	}
	defer rows.Close()

	records := []RelatedBundleRecord{}
	for rows.Next() {
		var r RelatedBundleRecord
		if err := rows.Scan(
			&r.BundleID, &r.ProviderKey, &r.Tag, &r.Version,
			&r.CachePath, &r.EngineVersion, &r.RelationType, &r.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan related bundle: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating related bundles: %w", err)
	}

	return records, nil
}

// DeleteRelatedBundle drops a cached record no longer present on
// re-detection.
func (s *SQLiteStore) DeleteRelatedBundle(ctx context.Context, bundleID, providerKey string) error {
	query := `DELETE FROM related_bundle_cache WHERE bundle_id = ? AND provider_key = ?`

	_, err := s.db.ExecContext(ctx, query, bundleID, providerKey)
	if err != nil {
		return fmt.Errorf("failed to delete related bundle: %w", err)
	}

	return nil
}
