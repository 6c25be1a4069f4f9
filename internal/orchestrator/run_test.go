package orchestrator

import (
	"bytes"
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

func performJSON(ctl *Controller, handler gin.HandlerFunc, body any) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	raw, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	c.Request.Header.Set("Content-Type", "application/json")
	handler(c)
	return w
}

func TestCreateRunPublishesTranscribeRequestedOnFirstCall(t *testing.T) {
	pub := &fakePublisher{}
	ctl := NewController(testLogger(t), testStore(t), pub, time.Hour)

	req := createRunRequest{Bucket: "test-bucket", Name: t.Name(), Generation: "1"}
	w := performJSON(ctl, ctl.CreateRun(), req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp createRunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Created)
	assert.NotEmpty(t, resp.RunID)

	require.Len(t, pub.published, 1)
	assert.Equal(t, domain.EventTranscribeRequested, pub.published[0].EventType)
	assert.Equal(t, resp.RunID, pub.published[0].RunID)
}

func TestCreateRunIsIdempotentNoDuplicatePublish(t *testing.T) {
	pub := &fakePublisher{}
	ctl := NewController(testLogger(t), testStore(t), pub, time.Hour)

	req := createRunRequest{Bucket: "test-bucket", Name: t.Name(), Generation: "1"}
	w1 := performJSON(ctl, ctl.CreateRun(), req)
	w2 := performJSON(ctl, ctl.CreateRun(), req)

	assert.Equal(t, http.StatusOK, w1.Code)
	assert.Equal(t, http.StatusOK, w2.Code)

	var r1, r2 createRunResponse
	require.NoError(t, json.Unmarshal(w1.Body.Bytes(), &r1))
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &r2))
	assert.True(t, r1.Created)
	assert.False(t, r2.Created)
	assert.Equal(t, r1.RunID, r2.RunID)

	assert.Len(t, pub.published, 1)
}

func TestCreateRunRejectsMissingFields(t *testing.T) {
	pub := &fakePublisher{}
	ctl := NewController(testLogger(t), testStore(t), pub, time.Hour)

	w := performJSON(ctl, ctl.CreateRun(), createRunRequest{Bucket: "b"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, pub.published)
}
