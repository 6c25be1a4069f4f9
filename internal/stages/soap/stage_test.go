package soap

import (
	"context"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/llmclient"
	"github.com/clinicore/scribeflow/internal/logger"
)

type fakeCompleter struct {
	content string
}

func (f fakeCompleter) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.content}}},
	}, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)
	return log
}

const validNote = `<soap_note>
Subjective
Patient reports mild headache.
Objective
Not documented in transcript.
Assessment
Tension headache, per clinician.
Plan
Continue over-the-counter analgesics as needed.
</soap_note>`

func TestGenerateNoteProducesValidArtifact(t *testing.T) {
	llm := llmclient.NewWithCompleter(fakeCompleter{content: validNote}, llmclient.Config{Model: "test-model"})
	h := NewHandler(llm, testLogger(t))

	out, err := h.GenerateNote(context.Background(), "run-1", domain.RedactedArtifact{Text: "patient reports mild headache"})
	require.NoError(t, err)
	require.NoError(t, out.Validate())
}

func TestGenerateNoteRejectsEmptyInput(t *testing.T) {
	llm := llmclient.NewWithCompleter(fakeCompleter{}, llmclient.Config{Model: "test-model"})
	h := NewHandler(llm, testLogger(t))

	_, err := h.GenerateNote(context.Background(), "run-1", domain.RedactedArtifact{})
	require.Error(t, err)
}

func TestGenerateNotePropagatesMalformedOutput(t *testing.T) {
	llm := llmclient.NewWithCompleter(fakeCompleter{content: "no tags here"}, llmclient.Config{Model: "test-model"})
	h := NewHandler(llm, testLogger(t))

	out, err := h.GenerateNote(context.Background(), "run-1", domain.RedactedArtifact{Text: "patient reports mild headache"})
	require.NoError(t, err)
	assert.Error(t, out.Validate())
}
