package messaging

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/clinicore/scribeflow/internal/domain"
)

// RawPush is a decoded push message whose data payload is not necessarily a
// domain.Envelope — the ingestion gateway receives GCS object-notification
// JSON instead.
type RawPush struct {
	MessageID string
	Data      []byte
}

// DecodeRawPush reads and base64-decodes a push subscription body without
// assuming its data payload is an Envelope.
func DecodeRawPush(r io.Reader) (RawPush, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return RawPush{}, fmt.Errorf("messaging: read push body: %w", err)
	}
	var push domain.PushMessage
	if err := json.Unmarshal(body, &push); err != nil {
		return RawPush{}, fmt.Errorf("messaging: decode push wrapper: %w", err)
	}
	if push.Message.Data == "" {
		return RawPush{}, fmt.Errorf("messaging: push message missing data field")
	}
	decoded, err := base64.StdEncoding.DecodeString(push.Message.Data)
	if err != nil {
		return RawPush{}, fmt.Errorf("messaging: base64 decode push data: %w", err)
	}
	return RawPush{MessageID: push.Message.MessageID, Data: decoded}, nil
}

// DecodePush parses the `{message:{data: base64(JSON)}}` push body into a
// concrete Envelope, matching transcribe_service's _decode_pubsub_envelope.
func DecodePush(raw []byte) (domain.Envelope, error) {
	var push domain.PushMessage
	if err := json.Unmarshal(raw, &push); err != nil {
		return domain.Envelope{}, fmt.Errorf("messaging: decode push wrapper: %w", err)
	}
	if push.Message.Data == "" {
		return domain.Envelope{}, fmt.Errorf("messaging: push message missing data field")
	}
	decoded, err := base64.StdEncoding.DecodeString(push.Message.Data)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("messaging: base64 decode push data: %w", err)
	}
	var env domain.Envelope
	if err := json.Unmarshal(decoded, &env); err != nil {
		return domain.Envelope{}, fmt.Errorf("messaging: decode envelope json: %w", err)
	}
	if err := env.Validate(); err != nil {
		return domain.Envelope{}, fmt.Errorf("messaging: invalid envelope: %w", err)
	}
	return env, nil
}

// DeliveryAttempt reads the redelivery count a push subscription reports,
// defaulting to 1 for a first delivery or a header the broker omitted.
func DeliveryAttempt(h http.Header) int {
	v := h.Get("X-Goog-Delivery-Attempt")
	if v == "" {
		return 1
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
