package orchestrator

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

	"github.com/clinicore/scribeflow/internal/domain"
)

func performPush(ctl *Controller, env domain.Envelope) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	raw, _ := json.Marshal(env)
	push := domain.PushMessage{Message: domain.PushMessageBody{
		MessageID: "msg-1",
		Data:      base64.StdEncoding.EncodeToString(raw),
	}}
	body, _ := json.Marshal(push)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/events/pubsub", bytes.NewReader(body))
	ctl.Events()(c)
	return w
}

func completedEnvelope(runID string, stage domain.Stage, summary map[string]any) domain.Envelope {
	return domain.Envelope{
		Version:   1,
		EventType: domain.CompletedEventFor(stage),
		RunID:     runID,
		Step:      stage,
		Artifacts: map[string]string{"cache_key": runID},
		Summary:   summary,
	}
}

func newRun(t *testing.T, ctl *Controller, name string) string {
	t.Helper()
	ref := testRef(name)
	run, created, err := ctl.store.CreateRunIfAbsent(context.Background(), ref, "corr-1", time.Hour)
	require.NoError(t, err)
	require.True(t, created)
	return run.RunID
}

func TestEventsTranscribeCompletedAdvancesToRedact(t *testing.T) {
	pub := &fakePublisher{}
	ctl := NewController(testLogger(t), testStore(t), pub, time.Hour)
	runID := newRun(t, ctl, t.Name())

	w := performPush(ctl, completedEnvelope(runID, domain.StageTranscribe, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, pub.published, 1)
	assert.Equal(t, domain.EventRedactRequested, pub.published[0].EventType)
}

func TestEventsRedactCompletedAdvancesToAudit(t *testing.T) {
	pub := &fakePublisher{}
	ctl := NewController(testLogger(t), testStore(t), pub, time.Hour)
	runID := newRun(t, ctl, t.Name())

	require.Equal(t, http.StatusOK, performPush(ctl, completedEnvelope(runID, domain.StageTranscribe, nil)).Code)

	w := performPush(ctl, completedEnvelope(runID, domain.StageRedact, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, pub.published, 2)
	assert.Equal(t, domain.EventAuditRequested, pub.published[1].EventType)
}

func TestEventsAuditCompletedHipaaPassAdvancesToSoap(t *testing.T) {
	pub := &fakePublisher{}
	ctl := NewController(testLogger(t), testStore(t), pub, time.Hour)
	runID := newRun(t, ctl, t.Name())

	require.Equal(t, http.StatusOK, performPush(ctl, completedEnvelope(runID, domain.StageTranscribe, nil)).Code)
	require.Equal(t, http.StatusOK, performPush(ctl, completedEnvelope(runID, domain.StageRedact, nil)).Code)

	w := performPush(ctl, completedEnvelope(runID, domain.StageAudit, map[string]any{"hipaa_pass": true}))
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, pub.published, 3)
	assert.Equal(t, domain.EventSOAPRequested, pub.published[2].EventType)

	run, err := ctl.runForTest(runID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, run.Status)
}

func TestEventsAuditCompletedHipaaFailFinalizesNoSoapRequested(t *testing.T) {
	pub := &fakePublisher{}
	ctl := NewController(testLogger(t), testStore(t), pub, time.Hour)
	runID := newRun(t, ctl, t.Name())

	require.Equal(t, http.StatusOK, performPush(ctl, completedEnvelope(runID, domain.StageTranscribe, nil)).Code)
	require.Equal(t, http.StatusOK, performPush(ctl, completedEnvelope(runID, domain.StageRedact, nil)).Code)

	w := performPush(ctl, completedEnvelope(runID, domain.StageAudit, map[string]any{"hipaa_pass": false}))
	assert.Equal(t, http.StatusOK, w.Code)

	types := pub.eventTypes()
	assert.NotContains(t, types, domain.EventSOAPRequested, "no soap.requested should ever be published on a hipaa_pass=false branch")

	run, err := ctl.runForTest(runID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, domain.OutcomeFail, run.Outcome)
}

func TestEventsSoapCompletedFinalizesPass(t *testing.T) {
	pub := &fakePublisher{}
	ctl := NewController(testLogger(t), testStore(t), pub, time.Hour)
	runID := newRun(t, ctl, t.Name())

	require.Equal(t, http.StatusOK, performPush(ctl, completedEnvelope(runID, domain.StageTranscribe, nil)).Code)
	require.Equal(t, http.StatusOK, performPush(ctl, completedEnvelope(runID, domain.StageRedact, nil)).Code)
	require.Equal(t, http.StatusOK, performPush(ctl, completedEnvelope(runID, domain.StageAudit, map[string]any{"hipaa_pass": true})).Code)

	w := performPush(ctl, completedEnvelope(runID, domain.StageSOAP, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	run, err := ctl.runForTest(runID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, domain.OutcomePass, run.Outcome)
}

func TestEventsAnyFailedFinalizesRunFailedWithoutAdvancing(t *testing.T) {
	pub := &fakePublisher{}
	ctl := NewController(testLogger(t), testStore(t), pub, time.Hour)
	runID := newRun(t, ctl, t.Name())

	w := performPush(ctl, domain.Envelope{
		Version: 1, EventType: domain.EventTranscribeFailed, RunID: runID, Step: domain.StageTranscribe,
		Error: "speech api quota exceeded",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, pub.published)

	run, err := ctl.runForTest(runID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, run.Status)
}

func TestEventsDuplicateCompletionIsNoOp(t *testing.T) {
	pub := &fakePublisher{}
	ctl := NewController(testLogger(t), testStore(t), pub, time.Hour)
	runID := newRun(t, ctl, t.Name())

	env := completedEnvelope(runID, domain.StageTranscribe, nil)
	w1 := performPush(ctl, env)
	w2 := performPush(ctl, env)

	assert.Equal(t, http.StatusOK, w1.Code)
	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Len(t, pub.published, 1, "a redelivered completion must not publish redact.requested twice")
}

func TestEventsUnrecognizedTypeAcksAndIgnores(t *testing.T) {
	pub := &fakePublisher{}
	ctl := NewController(testLogger(t), testStore(t), pub, time.Hour)
	runID := newRun(t, ctl, t.Name())

	w := performPush(ctl, domain.Envelope{
		Version: 1, EventType: "bogus.event", RunID: runID, Step: domain.StageTranscribe,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, pub.published)
}
