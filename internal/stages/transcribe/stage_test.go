package transcribe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/scribeflow/internal/domain"
)

func TestLoadInputBuildsGCSURI(t *testing.T) {
	env := domain.Envelope{
		Input: domain.InputRef{Bucket: "clinicore-audio", Name: "sessions/abc.flac", Generation: "1", Session: "sess-1"},
	}
	in, err := loadInput(nil, env)
	require.NoError(t, err)
	assert.Equal(t, "gs://clinicore-audio/sessions/abc.flac", in.GCSURI)
}

func TestLoadInputRejectsMissingRef(t *testing.T) {
	_, err := loadInput(nil, domain.Envelope{})
	require.Error(t, err)
}

func TestSummarizeIncludesDurationAndLanguage(t *testing.T) {
	out := domain.TranscriptArtifact{
		Language: "en-US",
		Duration: 42.5,
		Segments: []domain.TranscriptSeg{{Start: 0, End: 1, Text: "hi"}},
	}
	s := summarize(out)
	assert.Equal(t, "en-US", s["language"])
	assert.Equal(t, 42.5, s["duration_sec"])
	assert.Equal(t, 1, s["segments"])
}
