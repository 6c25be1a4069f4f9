package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectFindsEmailAndPhone(t *testing.T) {
	text := "Contact patient at jane.doe@example.com or 555-123-4567 for follow-up."
	entities := Detect(text)

	var foundEmail, foundPhone bool
	for _, e := range entities {
		if e.Type == "EMAIL_ADDRESS" && e.Text == "jane.doe@example.com" {
			foundEmail = true
		}
		if e.Type == "PHONE_NUMBER" {
			foundPhone = true
		}
	}
	assert.True(t, foundEmail)
	assert.True(t, foundPhone)
}

func TestApplyDeterministicMaskIsStable(t *testing.T) {
	text := "Email jane.doe@example.com today."
	entities := Detect(text)

	first := ApplyDeterministicMask(text, entities, "fixed-salt")
	second := ApplyDeterministicMask(text, entities, "fixed-salt")
	assert.Equal(t, first, second)
	assert.NotContains(t, first, "jane.doe@example.com")
}

func TestApplyDeterministicMaskDifferentSaltDifferentToken(t *testing.T) {
	text := "Email jane.doe@example.com today."
	entities := Detect(text)

	a := ApplyDeterministicMask(text, entities, "salt-a")
	b := ApplyDeterministicMask(text, entities, "salt-b")
	assert.NotEqual(t, a, b)
}

func TestApplyDeterministicMaskSkipsOverlaps(t *testing.T) {
	entities := []Entity{
		{Type: "PERSON", Start: 0, End: 10, Text: "Dr. Jones "},
		{Type: "LOCATION", Start: 4, End: 9, Text: "Jones"},
	}
	text := "Dr. Jones saw the patient."
	out := ApplyDeterministicMask(text, entities, "salt")
	assert.Contains(t, out, "PERSON_")
	assert.NotContains(t, out, "LOCATION_")
}

func TestEntityCountsTallies(t *testing.T) {
	entities := []Entity{{Type: "EMAIL_ADDRESS"}, {Type: "EMAIL_ADDRESS"}, {Type: "PHONE_NUMBER"}}
	counts := EntityCounts(entities)
	assert.Equal(t, 2, counts["EMAIL_ADDRESS"])
	assert.Equal(t, 1, counts["PHONE_NUMBER"])
}
