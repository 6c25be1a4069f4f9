package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/logger"
	"github.com/clinicore/scribeflow/internal/store"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return log
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.NewSQLiteForTest()
	require.NoError(t, err)
	return st
}

// fakePublisher records every envelope passed to Publish, optionally
// returning a scripted error — enough to assert which (if any) next-stage
// event the controller emitted without a live Pub/Sub client.
type fakePublisher struct {
	mu        sync.Mutex
	published []domain.Envelope
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, env domain.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, env)
	return nil
}

func (f *fakePublisher) eventTypes() []domain.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.EventType, len(f.published))
	for i, e := range f.published {
		out[i] = e.EventType
	}
	return out
}

func testRef(name string) domain.InputRef {
	return domain.InputRef{Bucket: "test-bucket", Name: name, Generation: "1"}
}

// runForTest reads a run row directly for assertions, bypassing the
// transactional helpers that require a decide callback.
func (ctl *Controller) runForTest(runID string) (*domain.Run, error) {
	return store.GetRunForUpdate(context.Background(), ctl.store.DB(), runID)
}
