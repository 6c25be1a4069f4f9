package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clinicore/scribeflow/internal/domain"
)

// GetRunForUpdate row-locks a run within tx. Returns gorm.ErrRecordNotFound
// if absent — callers decide whether that means "create it" or "permanent
// error", it is never silently swallowed here.
func GetRunForUpdate(ctx context.Context, tx *gorm.DB, runID string) (*domain.Run, error) {
	var run domain.Run
	err := tx.WithContext(ctx).Clauses(lockingClause()).First(&run, "run_id = ?", runID).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func CreateRun(ctx context.Context, tx *gorm.DB, run *domain.Run) error {
	return tx.WithContext(ctx).Create(run).Error
}

func UpdateRunStatus(ctx context.Context, tx *gorm.DB, runID string, status domain.RunStatus, outcome domain.RunOutcome) error {
	return tx.WithContext(ctx).Model(&domain.Run{}).Where("run_id = ?", runID).Updates(map[string]any{
		"status":     status,
		"outcome":    outcome,
		"updated_at": time.Now(),
	}).Error
}

func GetStageForUpdate(ctx context.Context, tx *gorm.DB, runID string, stage domain.Stage) (*domain.StageRecord, error) {
	var rec domain.StageRecord
	err := tx.WithContext(ctx).Clauses(lockingClause()).First(&rec, "run_id = ? AND stage = ?", runID, stage).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func CreateStage(ctx context.Context, tx *gorm.DB, rec *domain.StageRecord) error {
	return tx.WithContext(ctx).Create(rec).Error
}

// UpdateStageCompleted marks a stage COMPLETED with its artifact references.
// Callers must have already verified (inside the same transaction) that the
// stage is not already COMPLETED — spec.md §3's "COMPLETED → * forbidden"
// invariant is enforced by the caller's read-before-write, not here.
func UpdateStageCompleted(ctx context.Context, tx *gorm.DB, runID string, stage domain.Stage, artifacts map[string]string) error {
	m := make(datatypes.JSONMap, len(artifacts))
	for k, v := range artifacts {
		m[k] = v
	}
	return tx.WithContext(ctx).Model(&domain.StageRecord{}).
		Where("run_id = ? AND stage = ?", runID, stage).
		Updates(map[string]any{
			"status":     domain.StageCompleted,
			"artifacts":  m,
			"updated_at": time.Now(),
		}).Error
}

func UpdateStageFailed(ctx context.Context, tx *gorm.DB, runID string, stage domain.Stage, errMsg string) error {
	return tx.WithContext(ctx).Model(&domain.StageRecord{}).
		Where("run_id = ? AND stage = ?", runID, stage).
		Updates(map[string]any{
			"status":     domain.StageFailed,
			"error":      errMsg,
			"updated_at": time.Now(),
		}).Error
}

func GetIngestionForUpdate(ctx context.Context, tx *gorm.DB, idemKey string) (*domain.IngestionRecord, error) {
	var rec domain.IngestionRecord
	err := tx.WithContext(ctx).Clauses(lockingClause()).First(&rec, "idem_key = ?", idemKey).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func CreateIngestion(ctx context.Context, tx *gorm.DB, rec *domain.IngestionRecord) error {
	return tx.WithContext(ctx).Create(rec).Error
}

func UpdateIngestionFields(ctx context.Context, tx *gorm.DB, idemKey string, fields map[string]any) error {
	fields["updated_at"] = time.Now()
	return tx.WithContext(ctx).Model(&domain.IngestionRecord{}).Where("idem_key = ?", idemKey).Updates(fields).Error
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// lockingClause applies SELECT ... FOR UPDATE on Postgres; sqlite (used only
// in tests) ignores locking clauses gracefully.
func lockingClause() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}
