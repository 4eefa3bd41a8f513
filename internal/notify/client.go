package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client calls a remote notification endpoint. A non-2xx status or an
// "error" field in the body is a dispatch failure.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

func NewClient(url, apiKey string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{url: url, apiKey: apiKey, http: hc}
}

type endpointResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

func (c *Client) NotifyCredentials(ctx context.Context, cred Credentials) error {
	body, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	defer resp.Body.Close()

	var out endpointResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || out.Error != "" {
		msg := out.Error
		if msg == "" {
			msg = out.Details
		}
		if msg == "" {
			msg = "Email sending failed"
		}
		return fmt.Errorf("%w: %s (status %d)", ErrDispatch, msg, resp.StatusCode)
	}
	return nil
}
