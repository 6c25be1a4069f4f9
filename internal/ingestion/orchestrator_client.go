package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/idtoken"
	"github.com/clinicore/scribeflow/internal/logger"
	"github.com/clinicore/scribeflow/internal/retry"
)

// OrchestratorClient calls the orchestrator's /run endpoint with a
// service-to-service identity token, classifying the response the same way
// original_source's ingest_worker/main.py call_orchestrator does: network
// errors and 5xx/429/503 are retryable, 400/422 are permanent.
type OrchestratorClient struct {
	log        *logger.Logger
	httpClient *http.Client
	baseURL    string
	tokens     *idtoken.Cache
	policy     retry.Policy
}

func NewOrchestratorClient(baseURL string, tokens *idtoken.Cache, log *logger.Logger) *OrchestratorClient {
	return &OrchestratorClient{
		log:        log.With("component", "orchestrator_client"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		tokens:     tokens,
		policy:     retry.PolicyFromEnv(log),
	}
}

type RunResult struct {
	FinalOutcome string `json:"final_outcome"`
}

func (c *OrchestratorClient) CreateRun(ctx context.Context, ref domain.InputRef, correlationID, idemKey string) (RunResult, error) {
	if c.baseURL == "" {
		return RunResult{}, retry.Permanent("orchestrator client", fmt.Errorf("missing orchestrator base url"))
	}

	body, err := json.Marshal(ref)
	if err != nil {
		return RunResult{}, retry.Permanent("marshal orchestrator request", err)
	}

	token, err := c.tokens.Get(c.baseURL)
	if err != nil {
		return RunResult{}, retry.Retryable("fetch identity token", err)
	}

	var result RunResult
	err = retry.Do(ctx, c.policy, func(ctx context.Context) error {
		req, rerr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(body))
		if rerr != nil {
			return retry.Permanent("build orchestrator request", rerr)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Correlation-Id", correlationID)
		req.Header.Set("X-Idempotency-Key", idemKey)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, derr := c.httpClient.Do(req)
		if derr != nil {
			return retry.Retryable("orchestrator network error", derr)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500 || resp.StatusCode == 429:
			text, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return retry.Retryable("orchestrator", fmt.Errorf("status %d: %s", resp.StatusCode, text))
		case resp.StatusCode == 400 || resp.StatusCode == 422:
			text, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return retry.Permanent("orchestrator", fmt.Errorf("status %d: %s", resp.StatusCode, text))
		case resp.StatusCode >= 300:
			text, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return retry.Retryable("orchestrator", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, text))
		}

		if resp.ContentLength == 0 {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(&result)
	})
	return result, err
}
