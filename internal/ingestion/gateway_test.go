package ingestion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/logger"
	"github.com/clinicore/scribeflow/internal/retry"
	"github.com/clinicore/scribeflow/internal/store"
)

type fakeOrchestrator struct {
	calls  int
	err    error
	result RunResult
}

func (f *fakeOrchestrator) CreateRun(_ context.Context, _ domain.InputRef, _, _ string) (RunResult, error) {
	f.calls++
	return f.result, f.err
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return log
}

func pushBody(t *testing.T, note gcsNotification) []byte {
	t.Helper()
	raw, err := json.Marshal(note)
	require.NoError(t, err)
	push := domain.PushMessage{Message: domain.PushMessageBody{
		MessageID: "msg-1",
		Data:      base64.StdEncoding.EncodeToString(raw),
	}}
	body, err := json.Marshal(push)
	require.NoError(t, err)
	return body
}

// newTestGateway builds a Gateway against an in-memory sqlite store with the
// Redis dedupe cache disabled (nil) — the gateway treats a nil cache as
// "skip the fast-peek, go straight to the transactional upsert".
func newTestGateway(t *testing.T, orch OrchestratorCaller) (*Gateway, *store.Store) {
	t.Helper()
	st, err := store.NewSQLiteForTest()
	require.NoError(t, err)
	g := &Gateway{
		log:          testLogger(t),
		store:        st,
		cache:        nil,
		orchestrator: orch,
		sem:          semaphore.NewWeighted(4),
		idemTTL:      24 * time.Hour,
	}
	return g, st
}

func performPush(g *Gateway, body []byte) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/pubsub/push", bytes.NewReader(body))
	g.PushHandler()(c)
	return w
}

func TestPushHandlerHappyPath(t *testing.T) {
	orch := &fakeOrchestrator{result: RunResult{FinalOutcome: "PASS"}}
	g, _ := newTestGateway(t, orch)

	w := performPush(g, pushBody(t, gcsNotification{Bucket: "test-bucket", Name: t.Name(), Generation: "1"}))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, orch.calls)
}

func TestPushHandlerDuplicateSkipsOrchestratorCall(t *testing.T) {
	orch := &fakeOrchestrator{result: RunResult{FinalOutcome: "PASS"}}
	g, st := newTestGateway(t, orch)

	ref := domain.InputRef{Bucket: "test-bucket", Name: t.Name(), Generation: "1"}
	idemKey := domain.IdemKey(ref)
	_, err := st.UpsertIngestion(context.Background(), idemKey, time.Hour)
	require.NoError(t, err)

	w := performPush(g, pushBody(t, gcsNotification{Bucket: "test-bucket", Name: t.Name(), Generation: "1"}))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, orch.calls)
}

func TestPushHandlerTransientFailureReturns500(t *testing.T) {
	orch := &fakeOrchestrator{err: retry.Retryable("orchestrator", assert.AnError)}
	g, _ := newTestGateway(t, orch)

	w := performPush(g, pushBody(t, gcsNotification{Bucket: "test-bucket", Name: t.Name(), Generation: "1"}))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPushHandlerPermanentFailureAcks(t *testing.T) {
	orch := &fakeOrchestrator{err: retry.Permanent("orchestrator", assert.AnError)}
	g, _ := newTestGateway(t, orch)

	w := performPush(g, pushBody(t, gcsNotification{Bucket: "test-bucket", Name: t.Name(), Generation: "1"}))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestPushHandlerRejectsMissingFields(t *testing.T) {
	orch := &fakeOrchestrator{}
	g, _ := newTestGateway(t, orch)

	w := performPush(g, pushBody(t, gcsNotification{Bucket: "b"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, orch.calls)
}
