package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Run is the gorm-backed row for one end-to-end pipeline execution.
// RunID is the application-computed deterministic hash from ids.go, not a
// generated UUID — it is both primary key and idempotency guarantee.
type Run struct {
	RunID         string     `gorm:"column:run_id;type:varchar(64);primaryKey" json:"run_id"`
	Bucket        string     `gorm:"column:bucket;not null" json:"bucket"`
	Name          string     `gorm:"column:name;not null" json:"name"`
	Generation    string     `gorm:"column:generation;not null" json:"generation"`
	Session       string     `gorm:"column:session" json:"session,omitempty"`
	Status        RunStatus  `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	Outcome       RunOutcome `gorm:"column:outcome;type:varchar(8)" json:"outcome,omitempty"`
	CorrelationID string     `gorm:"column:correlation_id;index" json:"correlation_id"`
	TTLAt         time.Time  `gorm:"column:ttl_at;index" json:"ttl_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

func (Run) TableName() string { return "pipeline_runs" }

func (r Run) InputRef() InputRef {
	return InputRef{Bucket: r.Bucket, Name: r.Name, Generation: r.Generation, Session: r.Session}
}

// StageRecord is one (run, stage) row. The COMPLETED→* transition is
// enforced by the store layer's transaction, not by this struct.
type StageRecord struct {
	RunID     string         `gorm:"column:run_id;type:varchar(64);primaryKey" json:"run_id"`
	Stage     Stage          `gorm:"column:stage;type:varchar(16);primaryKey" json:"stage"`
	Status    StageStatus    `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	Artifacts datatypes.JSONMap `gorm:"column:artifacts" json:"artifacts,omitempty"`
	Error     string         `gorm:"column:error" json:"error,omitempty"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
}

func (StageRecord) TableName() string { return "pipeline_stages" }

// IngestionRecord is keyed by the hashed input tuple (idem_key), tracking
// de-duplication state for object-upload notifications independent of the
// Run it may eventually produce.
type IngestionRecord struct {
	IdemKey      string          `gorm:"column:idem_key;type:varchar(64);primaryKey" json:"idem_key"`
	RunID        string          `gorm:"column:run_id;index" json:"run_id,omitempty"`
	Status       IngestionStatus `gorm:"column:status;type:varchar(24);not null;index" json:"status"`
	AttemptCount int             `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	FirstSeenAt  time.Time       `gorm:"column:first_seen_at;not null;default:now()" json:"first_seen_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;not null;default:now()" json:"updated_at"`
	TTLAt        time.Time       `gorm:"column:ttl_at;index" json:"ttl_at"`
	LastError    string          `gorm:"column:last_error" json:"last_error,omitempty"`
}

func (IngestionRecord) TableName() string { return "pipeline_ingestions" }

// DefaultIdempotencyTTL is spec.md §4.1's 14-day default.
const DefaultIdempotencyTTL = 14 * 24 * time.Hour
