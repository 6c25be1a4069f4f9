package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/clinicore/scribeflow/internal/config"
	"github.com/clinicore/scribeflow/internal/logger"
)

// Salt stabilizes tokens across runs so the same PHI span always masks to
// the same placeholder for a given deployment, matching REDACTION_SALT in
// original_source's privacy_service.
func Salt(log *logger.Logger) string {
	return config.GetEnv("REDACTION_SALT", "dev-salt-change-in-prod", log)
}

func deterministicToken(salt, entityType, rawText string) string {
	sum := sha256.Sum256([]byte(salt + rawText))
	return "[" + entityType + "_" + hex.EncodeToString(sum[:])[:8] + "]"
}

// ApplyDeterministicMask sorts entities left-to-right, skips any whose start
// falls inside the previous accepted span (resolving overlaps by keeping the
// earliest, outermost match), and replaces each surviving span with a
// deterministic bracketed token.
func ApplyDeterministicMask(text string, entities []Entity, salt string) string {
	ordered := make([]Entity, len(entities))
	copy(ordered, entities)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Start != ordered[j].Start {
			return ordered[i].Start < ordered[j].Start
		}
		return ordered[i].End > ordered[j].End
	})

	var out []byte
	cursor := 0
	for _, e := range ordered {
		if e.Start < cursor {
			continue
		}
		out = append(out, text[cursor:e.Start]...)
		out = append(out, deterministicToken(salt, e.Type, e.Text)...)
		cursor = e.End
	}
	out = append(out, text[cursor:]...)
	return string(out)
}

// EntityCounts tallies detections per type for the redaction summary.
func EntityCounts(entities []Entity) map[string]int {
	counts := make(map[string]int, len(entities))
	for _, e := range entities {
		counts[e.Type]++
	}
	return counts
}
