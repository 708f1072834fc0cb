package stores

import (
	"context"
	"database/sql"
	"time"
)

// Asset represents one inventory record. OS, environment and status are
// stored as the strings the import source provided; matching is
// case-insensitive at the query layer.
type Asset struct {
	ID          string    `json:"id"`
	Hostname    string    `json:"hostname"`
	IPAddress   string    `json:"ip_address"`
	OS          string    `json:"os"`
	OSFamily    string    `json:"os_family,omitempty"` // normalized at import time
	OSVersion   string    `json:"os_version,omitempty"`
	Environment string    `json:"environment"`
	Status      string    `json:"status"`
	Tags        string    `json:"tags"` // JSON blob
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AssetFilter narrows asset queries. Nil fields match everything; Limit
// defaults to 100 when zero. OS matches the normalized family as well as
// the free-text os column, OSVersion matches the version text by
// substring, so heterogeneous inventory data stays reachable.
type AssetFilter struct {
	OS          *string
	OSVersion   *string
	Hostname    *string
	IP          *string
	Environment *string
	Status      *string
	Tag         *string
	Limit       int
	Offset      int
}

// Execution represents one completed plan run. Status values mirror the
// engine execution statuses.
type Execution struct {
	ID              string     `json:"id"`
	PlanName        string     `json:"plan_name"`
	Status          string     `json:"status"`
	TotalSteps      int        `json:"total_steps"`
	SuccessfulSteps int        `json:"successful_steps"`
	FailedSteps     int        `json:"failed_steps"`
	Error           *string    `json:"error,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// StepRecord represents one step result row of an execution, one row per
// fan-out iteration. Status values mirror the engine step statuses.
type StepRecord struct {
	ID          int64     `json:"id"`
	ExecutionID string    `json:"execution_id"`
	StepIndex   int       `json:"step_index"`
	Tool        string    `json:"tool"`
	Status      string    `json:"status"`
	Output      string    `json:"output"` // JSON blob
	Error       *string   `json:"error,omitempty"`
	LoopIndex   *int      `json:"loop_index,omitempty"`
	LoopTotal   *int      `json:"loop_total,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Asset operations
	UpsertAsset(ctx context.Context, asset *Asset) error
	GetAsset(ctx context.Context, id string) (*Asset, error)
	FindAssetsByIP(ctx context.Context, ip string) ([]*Asset, error)
	FindAssetsByHostname(ctx context.Context, hostname string) ([]*Asset, error)
	FindAssetsByShortName(ctx context.Context, name string) ([]*Asset, error)
	SearchAssets(ctx context.Context, filter AssetFilter) ([]*Asset, error)
	CountAssets(ctx context.Context, filter AssetFilter) (int, error)
	ImportAssets(ctx context.Context, assets []*Asset) (int, error)
	DeleteAsset(ctx context.Context, id string) error

	// Execution history operations
	SaveExecution(ctx context.Context, execution *Execution, steps []*StepRecord) error
	GetExecution(ctx context.Context, id string) (*Execution, error)
	GetStepRecords(ctx context.Context, executionID string) ([]*StepRecord, error)
	ListExecutions(ctx context.Context, limit, offset int) ([]*Execution, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
