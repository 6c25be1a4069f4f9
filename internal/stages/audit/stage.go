// Package audit implements the compliance-audit stage: an LLM call
// constrained to a strict JSON schema, with one in-call retry when the
// response fails to parse or validate. Grounded on
// original_source/services/compliance_service/src/service.py's
// _call_llm_with_guardrails / generate_audit_with_idempotency.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clinicore/scribeflow/internal/artifactstore"
	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/llmclient"
	"github.com/clinicore/scribeflow/internal/logger"
	"github.com/clinicore/scribeflow/internal/messaging"
	"github.com/clinicore/scribeflow/internal/retry"
	"github.com/clinicore/scribeflow/internal/taskqueue"
	"github.com/clinicore/scribeflow/internal/workerskeleton"
)

type Handler struct {
	llm *llmclient.Client
	log *logger.Logger
}

func NewHandler(llm *llmclient.Client, log *logger.Logger) *Handler {
	return &Handler{llm: llm, log: log.With("component", "audit")}
}

func NewWorker(h *Handler, artifacts *artifactstore.Store, publisher *messaging.Publisher, tasks *taskqueue.Client, log *logger.Logger, taskTargetURL string) *workerskeleton.Worker[domain.RedactedArtifact, domain.AuditArtifact] {
	loadInput := func(ctx context.Context, env domain.Envelope) (domain.RedactedArtifact, error) {
		art, err := artifactstore.Read[domain.RedactedArtifact](ctx, artifacts, env.RunID, domain.StageRedact)
		if err == artifactstore.ErrNotFound {
			return domain.RedactedArtifact{}, retry.Permanent("load redacted text for audit", err)
		}
		if err != nil {
			return domain.RedactedArtifact{}, retry.Retryable("load redacted text for audit", err)
		}
		return art, nil
	}

	return &workerskeleton.Worker[domain.RedactedArtifact, domain.AuditArtifact]{
		Stage:         domain.StageAudit,
		Artifacts:     artifacts,
		Publisher:     publisher,
		Tasks:         tasks,
		Log:           log,
		TaskTargetURL: taskTargetURL,
		LoadInput:     loadInput,
		Business:      h.Audit,
		Summary:       summarize,
	}
}

type auditResponse struct {
	HIPAACompliant  bool                    `json:"hipaa_compliant"`
	FailIdentifiers []domain.FailIdentifier `json:"fail_identifiers"`
	Comments        string                  `json:"comments"`
}

func (h *Handler) Audit(ctx context.Context, runID string, in domain.RedactedArtifact) (domain.AuditArtifact, error) {
	if strings.TrimSpace(in.Text) == "" {
		return domain.AuditArtifact{}, retry.Permanent("audit", errEmptyRedactedText)
	}

	resp, err := h.callWithOneRetry(ctx, in.Text)
	if err != nil {
		return domain.AuditArtifact{}, err
	}

	return domain.AuditArtifact{
		HIPAACompliant:  resp.HIPAACompliant,
		FailIdentifiers: resp.FailIdentifiers,
		Comments:        resp.Comments,
		HIPAAPass:       resp.HIPAACompliant,
	}, nil
}

// callWithOneRetry mirrors the original's tenacity-wrapped LLM call: a
// single additional attempt when the first response is not valid JSON or
// fails schema validation, since model drift on strict-JSON instructions is
// usually transient rather than a sign the request itself is malformed.
func (h *Handler) callWithOneRetry(ctx context.Context, redactedText string) (auditResponse, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		content, err := h.llm.Complete(ctx, systemPrompt, redactedText)
		if err != nil {
			return auditResponse{}, llmclient.ClassifyError("audit llm call", err)
		}
		resp, perr := parseAndValidate(content)
		if perr == nil {
			return resp, nil
		}
		lastErr = perr
		h.log.Warn("audit response failed validation, retrying", "attempt", attempt, "error", perr)
	}
	return auditResponse{}, retry.Permanent("audit llm response validation", lastErr)
}

func parseAndValidate(content string) (auditResponse, error) {
	var resp auditResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &resp); err != nil {
		return auditResponse{}, fmt.Errorf("non-json audit response: %w", err)
	}
	for _, f := range resp.FailIdentifiers {
		if f.Type == "" || f.Text == "" {
			return auditResponse{}, fmt.Errorf("fail_identifiers entry missing type or text")
		}
	}
	return resp, nil
}

func summarize(out domain.AuditArtifact) map[string]any {
	return map[string]any{
		"hipaa_pass": out.HIPAAPass,
		"fail_count": len(out.FailIdentifiers),
	}
}
