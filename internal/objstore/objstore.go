// Package objstore uploads product images to the external object store and
// returns the public reference URL the rest of the system keeps. The store
// is a plain HTTP endpoint: POST the bytes, read back a JSON body carrying
// the stored object's URL.
package objstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bazarko/go-supplier-bot/internal/retry"
)

// maxErrorBody bounds how much of an error response is read for messages.
const maxErrorBody = 4 << 10

// Client talks to one object-store endpoint.
type Client struct {
	url    string
	token  string
	client *http.Client
}

// New returns a client for the upload endpoint at url. token, when
// non-empty, is sent as a bearer credential.
func New(url, token string) *Client {
	return &Client{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload stores data and returns the retrievable URL. Rate-limit and
// server-side failures are marked transient for the retry wrapper; client
// errors fail immediately.
func (c *Client) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty upload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// The request never completed; retrying may help.
		return "", retry.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", retry.Transient(httpError(resp))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", httpError(resp)
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if strings.TrimSpace(body.URL) == "" {
		return "", errors.New("upload response missing url")
	}
	return body.URL, nil
}

func httpError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("object store: %d %s", resp.StatusCode, msg)
}
