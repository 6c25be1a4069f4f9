// Package artifactstore is the typed JSON blob client every stage reads its
// predecessor's output from and writes its own output to, keyed by
// (run_id, stage) at the deterministic path spec.md §3/§6 specifies.
package artifactstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/gcpauth"
	"github.com/clinicore/scribeflow/internal/logger"
)

type Validator interface {
	Validate() error
}

type Store struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

func New(ctx context.Context, bucket string, log *logger.Logger) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("artifactstore: missing bucket name")
	}
	opts := append(gcpauth.ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("artifactstore: new storage client: %w", err)
	}
	return &Store{log: log.With("component", "artifactstore"), client: client, bucket: bucket}, nil
}

// Path returns the deterministic object key for a run's stage artifact.
func Path(runID string, stage domain.Stage) string {
	return fmt.Sprintf("artifacts/%s/%s.json", runID, stage.ArtifactName())
}

var ErrNotFound = errors.New("artifactstore: object not found")

// Exists reports whether a completed artifact already exists at the stage
// path — the idempotency short-circuit in the stage worker skeleton's step 1.
func (s *Store) Exists(ctx context.Context, runID string, stage domain.Stage) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	_, err := s.client.Bucket(s.bucket).Object(Path(runID, stage)).Attrs(ctx)
	if err == storage.ErrObjectNotExist {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("artifactstore: stat %s: %w", Path(runID, stage), err)
	}
	return true, nil
}

// Write performs an atomic single-object upload of v as JSON. Writing the
// same content twice is harmless; readers never observe a partial object —
// GCS object writes are all-or-nothing on Close.
func Write[T Validator](ctx context.Context, s *Store, runID string, stage domain.Stage, v T) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("artifactstore: refusing to write invalid %s artifact: %w", stage, err)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(Path(runID, stage)).NewWriter(ctx)
	w.ContentType = "application/json"
	enc := json.NewEncoder(w)
	if err := enc.Encode(v); err != nil {
		_ = w.Close()
		return fmt.Errorf("artifactstore: encode %s artifact: %w", stage, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("artifactstore: close writer for %s artifact: %w", stage, err)
	}
	return nil
}

// Read loads and decodes the artifact at the stage path. The cancel is tied
// to the reader's Close, not deferred immediately — closing the context
// before the body is fully read truncates it to zero bytes.
func Read[T any](ctx context.Context, s *Store, runID string, stage domain.Stage) (T, error) {
	var zero T
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)

	r, err := s.client.Bucket(s.bucket).Object(Path(runID, stage)).NewReader(ctx2)
	if err != nil {
		cancel()
		if err == storage.ErrObjectNotExist {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("artifactstore: open reader for %s artifact: %w", stage, err)
	}
	defer func() {
		_ = r.Close()
		cancel()
	}()

	raw, err := io.ReadAll(r)
	if err != nil {
		return zero, fmt.Errorf("artifactstore: read %s artifact: %w", stage, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("artifactstore: decode %s artifact: %w", stage, err)
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
