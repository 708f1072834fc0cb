package stores

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

	"github.com/opsforge/opsforge/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		cfg: cfg,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	// Open database with SQLite-specific connection parameters
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	// Verify connection and set PRAGMAs
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
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

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
}

// CommitTx commits a transaction
func (s *SQLiteStore) CommitTx(tx *sql.Tx) error {
	return tx.Commit()
}

// RollbackTx rolls back a transaction
func (s *SQLiteStore) RollbackTx(tx *sql.Tx) error {
	return tx.Rollback()
}

// assetColumns is the column list every asset query selects, in scan order.
const assetColumns = "id, hostname, ip_address, os, os_family, os_version, environment, status, tags, created_at, updated_at"

// scanAsset scans one asset row from a row scanner.
func scanAsset(scan func(dest ...interface{}) error) (*Asset, error) {
	asset := &Asset{}
	err := scan(
		&asset.ID,
		&asset.Hostname,
		&asset.IPAddress,
		&asset.OS,
		&asset.OSFamily,
		&asset.OSVersion,
		&asset.Environment,
		&asset.Status,
		&asset.Tags,
		&asset.CreatedAt,
		&asset.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return asset, nil
}

// collectAssets drains a result set into a slice of assets.
func collectAssets(rows *sql.Rows) ([]*Asset, error) {
	defer rows.Close()

	assets := []*Asset{}
	for rows.Next() {
		asset, err := scanAsset(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, asset)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}

	return assets, nil
}

// UpsertAsset inserts or updates an asset by ID
func (s *SQLiteStore) UpsertAsset(ctx context.Context, asset *Asset) error {
	query := `
		INSERT INTO assets (id, hostname, ip_address, os, os_family, os_version, environment, status, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			hostname = excluded.hostname,
			ip_address = excluded.ip_address,
			os = excluded.os,
			os_family = excluded.os_family,
			os_version = excluded.os_version,
			environment = excluded.environment,
			status = excluded.status,
			tags = excluded.tags,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		asset.ID,
		asset.Hostname,
		asset.IPAddress,
		asset.OS,
		asset.OSFamily,
		asset.OSVersion,
		asset.Environment,
		asset.Status,
		asset.Tags,
		asset.CreatedAt,
		asset.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert asset: %w", err)
	}

	return nil
}

// GetAsset retrieves an asset by ID
func (s *SQLiteStore) GetAsset(ctx context.Context, id string) (*Asset, error) {
	query := `
		SELECT ` + assetColumns + `
		FROM assets
		WHERE id = ?
	`

	asset, err := scanAsset(s.db.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, engine.NewNotFoundError(fmt.Sprintf("asset not found: %s", id), nil).
			WithResource(id).WithOperation("get_asset")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	return asset, nil
}

// FindAssetsByIP retrieves assets with an exact IP address match
func (s *SQLiteStore) FindAssetsByIP(ctx context.Context, ip string) ([]*Asset, error) {
	query := `
		SELECT ` + assetColumns + `
		FROM assets
		WHERE ip_address = ?
		ORDER BY hostname ASC
	`

	rows, err := s.db.QueryContext(ctx, query, ip)
	if err != nil {
		return nil, fmt.Errorf("failed to find assets by ip: %w", err)
	}

	return collectAssets(rows)
}

// FindAssetsByHostname retrieves assets whose full hostname matches
// case-insensitively
func (s *SQLiteStore) FindAssetsByHostname(ctx context.Context, hostname string) ([]*Asset, error) {
	query := `
		SELECT ` + assetColumns + `
		FROM assets
		WHERE hostname = ? COLLATE NOCASE
		ORDER BY hostname ASC
	`

	rows, err := s.db.QueryContext(ctx, query, hostname)
	if err != nil {
		return nil, fmt.Errorf("failed to find assets by hostname: %w", err)
	}

	return collectAssets(rows)
}

// FindAssetsByShortName retrieves assets whose hostname label before the
// first dot matches case-insensitively. A bare hostname equal to the name
// also matches.
func (s *SQLiteStore) FindAssetsByShortName(ctx context.Context, name string) ([]*Asset, error) {
	query := `
		SELECT ` + assetColumns + `
		FROM assets
		WHERE hostname = ?1 COLLATE NOCASE
		   OR hostname LIKE ?1 || '.%'
		ORDER BY hostname ASC
	`

	rows, err := s.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("failed to find assets by short name: %w", err)
	}

	return collectAssets(rows)
}

// assetFilterClause matches the argument order of assetFilterArgs. The OS
// term matches the normalized family exactly or the raw os text by
// substring; the version term matches the os_version and os text by
// substring so compound filters like "windows 2019" narrow within a family.
const assetFilterClause = `
		WHERE (?1 IS NULL OR os_family = ?1 COLLATE NOCASE OR os LIKE '%' || ?1 || '%')
		  AND (?2 IS NULL OR os_version LIKE '%' || ?2 || '%' OR os LIKE '%' || ?2 || '%')
		  AND (?3 IS NULL OR hostname LIKE '%' || ?3 || '%')
		  AND (?4 IS NULL OR ip_address = ?4)
		  AND (?5 IS NULL OR environment = ?5 COLLATE NOCASE)
		  AND (?6 IS NULL OR status = ?6 COLLATE NOCASE)
		  AND (?7 IS NULL OR tags LIKE '%' || ?7 || '%')`

// assetFilterArgs flattens a filter into the positional arguments of
// assetFilterClause.
func assetFilterArgs(filter AssetFilter) []interface{} {
	return []interface{}{
		filter.OS,
		filter.OSVersion,
		filter.Hostname,
		filter.IP,
		filter.Environment,
		filter.Status,
		filter.Tag,
	}
}

// SearchAssets lists assets matching the filter with pagination
func (s *SQLiteStore) SearchAssets(ctx context.Context, filter AssetFilter) ([]*Asset, error) {
	query := `
		SELECT ` + assetColumns + `
		FROM assets` + assetFilterClause + `
		ORDER BY hostname ASC
		LIMIT ?8 OFFSET ?9
	`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	args := append(assetFilterArgs(filter), limit, filter.Offset)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search assets: %w", err)
	}

	return collectAssets(rows)
}

// CountAssets counts assets matching the filter
func (s *SQLiteStore) CountAssets(ctx context.Context, filter AssetFilter) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM assets` + assetFilterClause + `
	`

	var count int
	err := s.db.QueryRowContext(ctx, query, assetFilterArgs(filter)...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count assets: %w", err)
	}

	return count, nil
}

// ImportAssets upserts a batch of assets in a single transaction and
// returns the number of records written
func (s *SQLiteStore) ImportAssets(ctx context.Context, assets []*Asset) (int, error) {
	if len(assets) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO assets (id, hostname, ip_address, os, os_family, os_version, environment, status, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			hostname = excluded.hostname,
			ip_address = excluded.ip_address,
			os = excluded.os,
			os_family = excluded.os_family,
			os_version = excluded.os_version,
			environment = excluded.environment,
			status = excluded.status,
			tags = excluded.tags,
			updated_at = excluded.updated_at
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare import statement: %w", err)
	}
	defer stmt.Close()

	for _, asset := range assets {
		_, err := stmt.ExecContext(ctx,
			asset.ID,
			asset.Hostname,
			asset.IPAddress,
			asset.OS,
			asset.OSFamily,
			asset.OSVersion,
			asset.Environment,
			asset.Status,
			asset.Tags,
			asset.CreatedAt,
			asset.UpdatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to import asset %s: %w", asset.Hostname, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit asset import: %w", err)
	}

	return len(assets), nil
}

// DeleteAsset deletes an asset by ID
func (s *SQLiteStore) DeleteAsset(ctx context.Context, id string) error {
	query := `DELETE FROM assets WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("asset not found: %s", id)
	}

	return nil
}

// SaveExecution persists an execution and its step records atomically
func (s *SQLiteStore) SaveExecution(ctx context.Context, execution *Execution, steps []*StepRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	execQuery := `
		INSERT INTO executions (id, plan_name, status, total_steps, successful_steps, failed_steps, error, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, execQuery,
		execution.ID,
		execution.PlanName,
		execution.Status,
		execution.TotalSteps,
		execution.SuccessfulSteps,
		execution.FailedSteps,
		execution.Error,
		execution.StartedAt,
		execution.CompletedAt,
		execution.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	stepQuery := `
		INSERT INTO step_results (execution_id, step_index, tool, status, output, error, loop_index, loop_total, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, step := range steps {
		_, err := tx.ExecContext(ctx, stepQuery,
			execution.ID,
			step.StepIndex,
			step.Tool,
			step.Status,
			step.Output,
			step.Error,
			step.LoopIndex,
			step.LoopTotal,
			step.StartedAt,
			step.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save step result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit execution: %w", err)
	}

	return nil
}

// GetExecution retrieves an execution by ID
func (s *SQLiteStore) GetExecution(ctx context.Context, id string) (*Execution, error) {
	query := `
		SELECT id, plan_name, status, total_steps, successful_steps, failed_steps, error, started_at, completed_at, created_at
		FROM executions
		WHERE id = ?
	`

	execution := &Execution{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&execution.ID,
		&execution.PlanName,
		&execution.Status,
		&execution.TotalSteps,
		&execution.SuccessfulSteps,
		&execution.FailedSteps,
		&execution.Error,
		&execution.StartedAt,
		&execution.CompletedAt,
		&execution.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, engine.NewNotFoundError(fmt.Sprintf("execution not found: %s", id), nil).
			WithResource(id).WithOperation("get_execution")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}

	return execution, nil
}

// GetStepRecords lists all step records for an execution in plan order
func (s *SQLiteStore) GetStepRecords(ctx context.Context, executionID string) ([]*StepRecord, error) {
	query := `
		SELECT id, execution_id, step_index, tool, status, output, error, loop_index, loop_total, started_at, completed_at
		FROM step_results
		WHERE execution_id = ?
		ORDER BY step_index ASC, loop_index ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get step records: %w", err)
	}
	defer rows.Close()

	records := []*StepRecord{}
	for rows.Next() {
		record := &StepRecord{}
		err := rows.Scan(
			&record.ID,
			&record.ExecutionID,
			&record.StepIndex,
			&record.Tool,
			&record.Status,
			&record.Output,
			&record.Error,
			&record.LoopIndex,
			&record.LoopTotal,
			&record.StartedAt,
			&record.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating step records: %w", err)
	}

	return records, nil
}

// ListExecutions lists executions with pagination, most recent first
func (s *SQLiteStore) ListExecutions(ctx context.Context, limit, offset int) ([]*Execution, error) {
	query := `
		SELECT id, plan_name, status, total_steps, successful_steps, failed_steps, error, started_at, completed_at, created_at
		FROM executions
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	executions := []*Execution{}
	for rows.Next() {
		execution := &Execution{}
		err := rows.Scan(
			&execution.ID,
			&execution.PlanName,
			&execution.Status,
			&execution.TotalSteps,
			&execution.SuccessfulSteps,
			&execution.FailedSteps,
			&execution.Error,
			&execution.StartedAt,
			&execution.CompletedAt,
			&execution.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
