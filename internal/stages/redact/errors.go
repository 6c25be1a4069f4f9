package redact

import "errors"

var errEmptyTranscript = errors.New("transcript text is empty")
