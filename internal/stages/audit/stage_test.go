package audit

import (
	"context"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/llmclient"
	"github.com/clinicore/scribeflow/internal/retry"
)

type scriptedCompleter struct {
	responses []string
	calls     int
}

func (s *scriptedCompleter) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: s.responses[idx]}}},
	}, nil
}

func TestAuditPassesCompliantTranscript(t *testing.T) {
	fake := &scriptedCompleter{responses: []string{`{"hipaa_compliant":true,"fail_identifiers":[],"comments":"clean"}`}}
	llm := llmclient.NewWithCompleter(fake, llmclient.Config{Model: "test-model"})
	h := NewHandler(llm, testLogger(t))

	out, err := h.Audit(context.Background(), "run-1", domain.RedactedArtifact{Text: "patient reports no pain"})
	require.NoError(t, err)
	assert.True(t, out.HIPAACompliant)
	assert.True(t, out.HIPAAPass)
	assert.Empty(t, out.FailIdentifiers)
}

func TestAuditFlagsNonCompliantTranscript(t *testing.T) {
	fake := &scriptedCompleter{responses: []string{
		`{"hipaa_compliant":false,"fail_identifiers":[{"type":"PERSON","text":"John Smith","position":4}],"comments":"leaked name"}`,
	}}
	llm := llmclient.NewWithCompleter(fake, llmclient.Config{Model: "test-model"})
	h := NewHandler(llm, testLogger(t))

	out, err := h.Audit(context.Background(), "run-1", domain.RedactedArtifact{Text: "John Smith reports no pain"})
	require.NoError(t, err)
	assert.False(t, out.HIPAACompliant)
	assert.False(t, out.HIPAAPass)
	assert.Len(t, out.FailIdentifiers, 1)
}

func TestAuditRetriesOnceOnBadJSON(t *testing.T) {
	fake := &scriptedCompleter{responses: []string{
		"not json at all",
		`{"hipaa_compliant":true,"fail_identifiers":[],"comments":"clean on retry"}`,
	}}
	llm := llmclient.NewWithCompleter(fake, llmclient.Config{Model: "test-model"})
	h := NewHandler(llm, testLogger(t))

	out, err := h.Audit(context.Background(), "run-1", domain.RedactedArtifact{Text: "some text"})
	require.NoError(t, err)
	assert.True(t, out.HIPAACompliant)
	assert.Equal(t, 2, fake.calls)
}

func TestAuditFailsPermanentlyAfterTwoBadResponses(t *testing.T) {
	fake := &scriptedCompleter{responses: []string{"nope", "still not json"}}
	llm := llmclient.NewWithCompleter(fake, llmclient.Config{Model: "test-model"})
	h := NewHandler(llm, testLogger(t))

	_, err := h.Audit(context.Background(), "run-1", domain.RedactedArtifact{Text: "some text"})
	require.Error(t, err)
	assert.True(t, retry.IsPermanent(err))
	assert.Equal(t, 2, fake.calls)
}

func TestAuditRejectsEmptyText(t *testing.T) {
	llm := llmclient.NewWithCompleter(&scriptedCompleter{}, llmclient.Config{Model: "test-model"})
	h := NewHandler(llm, testLogger(t))

	_, err := h.Audit(context.Background(), "run-1", domain.RedactedArtifact{})
	require.Error(t, err)
}
