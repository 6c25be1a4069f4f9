// Package transcribe wraps cloud.google.com/go/speech, grounded on the
// teacher's internal/clients/gcp/speech.go and original_source's
// transcribe_service/src/service.py.
package transcribe

import (
	"context"
	"fmt"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/gcpauth"
	"github.com/clinicore/scribeflow/internal/logger"
	"github.com/clinicore/scribeflow/internal/retry"
)

// Client is the process-wide speech model handle: constructed once, read-only
// afterwards, per spec.md §5's "shared resources" requirement.
type Client struct {
	log    *logger.Logger
	client *speech.Client
}

func New(ctx context.Context, log *logger.Logger) (*Client, error) {
	c, err := speech.NewClient(ctx, gcpauth.ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("transcribe: new speech client: %w", err)
	}
	return &Client{log: log.With("component", "transcribe"), client: c}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Input is what the transcribe stage loads instead of a predecessor
// artifact: the raw object-store audio reference itself.
type Input struct {
	GCSURI       string
	LanguageHint string
}

// Transcribe runs a long-running speech recognition over a GCS audio object
// and normalizes the response into a TranscriptArtifact.
func (c *Client) Transcribe(ctx context.Context, runID string, in Input) (domain.TranscriptArtifact, error) {
	if in.GCSURI == "" {
		return domain.TranscriptArtifact{}, retry.Permanent("transcribe", fmt.Errorf("missing gcs uri for run %s", runID))
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	lang := in.LanguageHint
	if lang == "" {
		lang = "en-US"
	}

	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_ENCODING_UNSPECIFIED,
			LanguageCode:               lang,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: in.GCSURI},
		},
	}

	op, err := c.client.LongRunningRecognize(ctx, req)
	if err != nil {
		return domain.TranscriptArtifact{}, classify("start recognize", err)
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return domain.TranscriptArtifact{}, classify("wait recognize", err)
	}

	return normalize(resp, lang), nil
}

func normalize(resp *speechpb.LongRunningRecognizeResponse, lang string) domain.TranscriptArtifact {
	var fullText string
	segments := make([]domain.TranscriptSeg, 0, len(resp.GetResults()))
	var lastEnd float64

	for _, result := range resp.GetResults() {
		if len(result.GetAlternatives()) == 0 {
			continue
		}
		alt := result.GetAlternatives()[0]
		if fullText != "" {
			fullText += " "
		}
		fullText += alt.GetTranscript()

		start := lastEnd
		end := lastEnd
		if words := alt.GetWords(); len(words) > 0 {
			if t := words[0].GetStartTime(); t != nil {
				start = t.AsDuration().Seconds()
			}
			if t := words[len(words)-1].GetEndTime(); t != nil {
				end = t.AsDuration().Seconds()
			}
		}
		segments = append(segments, domain.TranscriptSeg{Start: start, End: end, Text: alt.GetTranscript()})
		lastEnd = end
	}

	return domain.TranscriptArtifact{
		Text:      fullText,
		Language:  lang,
		Segments:  segments,
		Duration:  lastEnd,
		ModelUsed: "gcp_speech_v1",
		Timestamp: time.Now(),
	}
}

func classify(op string, err error) error {
	// speech RPC failures are almost always transient (quota, network,
	// upstream unavailability) — only a clearly malformed request should be
	// treated as permanent, and the worker skeleton's input validation
	// already rejects those before this call is reached.
	return retry.Retryable(op, err)
}
