package idtoken

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// metadataIdentityTokenURL matches the GCE/Cloud Run metadata server path
// id_token.fetch_id_token resolves against on the original's deployment
// target.
const metadataIdentityTokenURL = "http://metadata.google.internal/computeMetadata/v1/instance/service-accounts/default/identity"

// FetchFromMetadataServer mints an OIDC identity token scoped to audience by
// calling the instance metadata server, matching original_source's
// _fetch_identity_token. Pass the result to NewCache as its fetch func.
func FetchFromMetadataServer(client *http.Client) func(audience string) (string, error) {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return func(audience string) (string, error) {
		reqURL := fmt.Sprintf("%s?audience=%s", metadataIdentityTokenURL, url.QueryEscape(audience))
		req, err := http.NewRequest(http.MethodGet, reqURL, nil)
		if err != nil {
			return "", fmt.Errorf("idtoken: build metadata request: %w", err)
		}
		req.Header.Set("Metadata-Flavor", "Google")

		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("idtoken: fetch identity token: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("idtoken: read metadata response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("idtoken: metadata server returned %d: %s", resp.StatusCode, string(body))
		}
		return string(body), nil
	}
}
