package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/clinicore/scribeflow/internal/domain"
)

// IngestionOutcome is the result of the transactional dedup upsert spec.md
// §4.1 step 3 describes.
type IngestionOutcome struct {
	Duplicate bool
	Record    domain.IngestionRecord
}

// UpsertIngestion runs the de-duplication transaction: absent → create
// PROCESSING; PROCESSING/DONE/FAILED_PERMANENT → duplicate, no mutation;
// FAILED_TRANSIENT → PROCESSING with attempt_count incremented.
func (s *Store) UpsertIngestion(ctx context.Context, idemKey string, ttl time.Duration) (IngestionOutcome, error) {
	var out IngestionOutcome
	err := s.Transaction(ctx, func(tx *gorm.DB) error {
		existing, err := GetIngestionForUpdate(ctx, tx, idemKey)
		if err != nil {
			if !IsNotFound(err) {
				return err
			}
			rec := domain.IngestionRecord{
				IdemKey:      idemKey,
				Status:       domain.IngestionProcessing,
				AttemptCount: 1,
				FirstSeenAt:  time.Now(),
				TTLAt:        time.Now().Add(ttl),
			}
			if err := CreateIngestion(ctx, tx, &rec); err != nil {
				return err
			}
			out = IngestionOutcome{Duplicate: false, Record: rec}
			return nil
		}

		switch existing.Status {
		case domain.IngestionProcessing, domain.IngestionDone, domain.IngestionFailedPermanent:
			out = IngestionOutcome{Duplicate: true, Record: *existing}
			return nil
		case domain.IngestionFailedTransient:
			newAttempt := existing.AttemptCount + 1
			if err := UpdateIngestionFields(ctx, tx, idemKey, map[string]any{
				"status":        domain.IngestionProcessing,
				"attempt_count": newAttempt,
			}); err != nil {
				return err
			}
			existing.Status = domain.IngestionProcessing
			existing.AttemptCount = newAttempt
			out = IngestionOutcome{Duplicate: false, Record: *existing}
			return nil
		default:
			out = IngestionOutcome{Duplicate: true, Record: *existing}
			return nil
		}
	})
	return out, err
}

func (s *Store) MarkIngestionDone(ctx context.Context, idemKey, runID string) error {
	return s.Transaction(ctx, func(tx *gorm.DB) error {
		return UpdateIngestionFields(ctx, tx, idemKey, map[string]any{
			"status": domain.IngestionDone,
			"run_id": runID,
		})
	})
}

func (s *Store) MarkIngestionFailedTransient(ctx context.Context, idemKey, lastError string) error {
	return s.Transaction(ctx, func(tx *gorm.DB) error {
		return UpdateIngestionFields(ctx, tx, idemKey, map[string]any{
			"status":     domain.IngestionFailedTransient,
			"last_error": lastError,
		})
	})
}

func (s *Store) MarkIngestionFailedPermanent(ctx context.Context, idemKey, lastError string) error {
	return s.Transaction(ctx, func(tx *gorm.DB) error {
		return UpdateIngestionFields(ctx, tx, idemKey, map[string]any{
			"status":     domain.IngestionFailedPermanent,
			"last_error": lastError,
		})
	})
}
