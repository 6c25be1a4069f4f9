package redact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/scribeflow/internal/domain"
)

func TestHandlerRedactProducesSummary(t *testing.T) {
	h := &Handler{salt: "test-salt"}
	in := domain.TranscriptArtifact{Text: "Patient phone is 555-000-1111."}

	out, err := h.Redact(context.Background(), "run-1", in)
	require.NoError(t, err)
	assert.NotContains(t, out.Text, "555-000-1111")
	assert.Equal(t, DefaultPolicy, out.Summary.Policy)
	assert.GreaterOrEqual(t, out.Summary.Total, 1)
}

func TestHandlerRedactRejectsEmptyTranscript(t *testing.T) {
	h := &Handler{salt: "test-salt"}
	_, err := h.Redact(context.Background(), "run-1", domain.TranscriptArtifact{})
	require.Error(t, err)
}
