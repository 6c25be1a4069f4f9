// Package redact implements Safe Harbor PHI detection and deterministic
// masking. Grounded on original_source/services/privacy_service/src/service.py,
// reworked from Presidio's analyzer/anonymizer pair (no Go equivalent exists
// in the pack) into a regexp-table detector — justified in DESIGN.md as a
// standard-library component since no third-party NER/PHI-detection library
// ships in this repo's ecosystem surface.
package redact

import "regexp"

// Entity is one detected PHI span.
type Entity struct {
	Type  string
	Start int
	End   int
	Text  string
}

type recognizer struct {
	entityType string
	pattern    *regexp.Regexp
}

// recognizers covers the Safe Harbor categories the original's Presidio
// config requested, plus the custom US street-address pattern.
var recognizers = []recognizer{
	{"EMAIL_ADDRESS", regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
	{"PHONE_NUMBER", regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)},
	{"US_SSN", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"CREDIT_CARD", regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`)},
	{"US_PASSPORT", regexp.MustCompile(`\b[A-Z]{1,2}\d{6,9}\b`)},
	{"MEDICAL_LICENSE", regexp.MustCompile(`\b[A-Z]{2}\d{6,8}\b`)},
	{"DATE_TIME", regexp.MustCompile(`\b(?:\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}|(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4})\b`)},
	{"AGE", regexp.MustCompile(`\b\d{1,3}[- ]year[- ]old\b`)},
	// ADDRESS mirrors the original's custom PatternRecognizer regex.
	{"ADDRESS", regexp.MustCompile(`\b\d{1,6}\s+[A-Z][a-zA-Z]+\s(?:[A-Z][a-zA-Z]+\s)?(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Way|Trail|Trl|Parkway|Pkwy)\b,?\s+[A-Za-z .'\-]+,\s*[A-Za-z]{2}\s+\d{5}\b`)},
	{"LOCATION", regexp.MustCompile(`\b(?:[A-Z][a-z]+\s)?(?:City|County|Hospital|Clinic|Medical Center)\b`)},
	{"PERSON", regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr)\.\s[A-Z][a-z]+(?:\s[A-Z][a-z]+)?`)},
}

// Detect runs every recognizer against text and returns all matches,
// unordered, exactly as Presidio's analyzer.analyze returns its result list.
func Detect(text string) []Entity {
	var entities []Entity
	for _, r := range recognizers {
		for _, loc := range r.pattern.FindAllStringIndex(text, -1) {
			entities = append(entities, Entity{
				Type:  r.entityType,
				Start: loc[0],
				End:   loc[1],
				Text:  text[loc[0]:loc[1]],
			})
		}
	}
	return entities
}
