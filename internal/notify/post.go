package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const sendTimeout = 5 * time.Second

func newHTTPClient() *http.Client { return &http.Client{Timeout: sendTimeout} }

// postJSON marshals payload, lets decorate add headers that depend on the
// encoded body, and treats any non-2xx answer as a failure named after
// channel.
func postJSON(ctx context.Context, client *http.Client, channel, url string, payload any, decorate func(h http.Header, body []byte)) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encoding payload: %w", channel, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: building request: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if decorate != nil {
		decorate(req.Header, body)
	}
	resp, err := client.Do(req) // #nosec G107 -- destination comes from the notify config
	if err != nil {
		return fmt.Errorf("%s: %w", channel, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned %d", channel, resp.StatusCode)
	}
	return nil
}
