package soap

import "errors"

var errEmptyRedactedText = errors.New("redacted text is empty")
