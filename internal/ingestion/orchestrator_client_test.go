package ingestion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/idtoken"
	"github.com/clinicore/scribeflow/internal/retry"
)

func fakeTokenCache(token string) *idtoken.Cache {
	return idtoken.NewCache(func(string) (string, error) { return token, nil })
}

func TestCreateRunSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"final_outcome":"PASS"}`))
	}))
	defer srv.Close()

	c := NewOrchestratorClient(srv.URL, fakeTokenCache("tok"), testLogger(t))
	result, err := c.CreateRun(context.Background(), domain.InputRef{Bucket: "b", Name: "n", Generation: "1"}, "corr-1", "idem-1")
	require.NoError(t, err)
	assert.Equal(t, "PASS", result.FinalOutcome)
}

func TestCreateRunPermanentOn422(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	c := NewOrchestratorClient(srv.URL, fakeTokenCache("tok"), testLogger(t))
	_, err := c.CreateRun(context.Background(), domain.InputRef{Bucket: "b", Name: "n", Generation: "1"}, "corr-1", "idem-1")
	require.Error(t, err)
	assert.True(t, retry.IsPermanent(err))
}

func TestCreateRunRetryableOn503ThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"final_outcome":"PASS"}`))
	}))
	defer srv.Close()

	c := NewOrchestratorClient(srv.URL, fakeTokenCache("tok"), testLogger(t))
	result, err := c.CreateRun(context.Background(), domain.InputRef{Bucket: "b", Name: "n", Generation: "1"}, "corr-1", "idem-1")
	require.NoError(t, err)
	assert.Equal(t, "PASS", result.FinalOutcome)
	assert.Equal(t, 2, attempts)
}

func TestCreateRunMissingBaseURL(t *testing.T) {
	c := NewOrchestratorClient("", fakeTokenCache("tok"), testLogger(t))
	_, err := c.CreateRun(context.Background(), domain.InputRef{Bucket: "b", Name: "n", Generation: "1"}, "corr-1", "idem-1")
	require.Error(t, err)
	assert.True(t, retry.IsPermanent(err))
}
