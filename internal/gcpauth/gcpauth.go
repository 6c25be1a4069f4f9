// Package gcpauth resolves GCP client credentials the same way across every
// service binary, matching the teacher's internal/clients/gcp/creds.go.
package gcpauth

import (
	"os"
	"strings"

	"google.golang.org/api/option"
)

// ClientOptionsFromEnv prefers a JSON credentials blob, falls back to a
// credentials file path, and falls back further to application-default
// credentials when neither env var is set.
func ClientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	opts := []option.ClientOption{}
	if creds == "" {
		return opts
	}
	if strings.HasPrefix(creds, "{") {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	} else {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	return opts
}
