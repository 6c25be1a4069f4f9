package llmclient

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clinicore/scribeflow/internal/retry"
)

// ClassifyError mirrors the original's exception mapping in
// _call_llm_with_guardrails: timeouts/connection errors and 5xx/429 are
// retryable, 4xx are permanent, anything unrecognized defaults retryable.
func ClassifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return retry.Retryable(op, err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return retry.Retryable(op, err)
		}
		return retry.Permanent(op, err)
	}
	return retry.Retryable(op, err)
}
