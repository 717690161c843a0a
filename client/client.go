// Package client is the progression controller SDK for the Solar API. It
// mirrors server access state locally, drives countdown display from the
// server-issued timer end time and calls back into the API at the state
// transitions. The server stays authoritative throughout; the controller only
// interpolates between responses.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/current-see/solar_api/dto"
	"github.com/current-see/solar_api/model"
)

// APIClient is a thin HTTP wrapper over the progression endpoints. Identity
// is either a bearer token (registered) or a session id (anonymous).
type APIClient struct {
	baseURL    string
	httpClient *http.Client

	token     string
	sessionID string
}

type Option func(*APIClient)

func WithToken(token string) Option {
	return func(c *APIClient) { c.token = token }
}

func WithSessionID(sessionID string) Option {
	return func(c *APIClient) { c.sessionID = sessionID }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *APIClient) { c.httpClient = httpClient }
}

func NewAPIClient(baseURL string, opts ...Option) *APIClient {
	c := &APIClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx envelope response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request can be retried safely.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusServiceUnavailable
}

func (c *APIClient) CheckAccess(ctx context.Context, contentType, contentID string) (*dto.AccessStatusResponse, error) {
	var out dto.AccessStatusResponse
	path := fmt.Sprintf("/api/v1/content/%s/%s/access", contentType, contentID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) StartTimer(ctx context.Context, contentType, contentID string) (*dto.StartTimerResponse, error) {
	var out dto.StartTimerResponse
	path := fmt.Sprintf("/api/v1/content/%s/%s/start-timer", contentType, contentID)
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) CompleteTimer(ctx context.Context, progressionID string) (*model.Progression, error) {
	var out model.Progression
	path := fmt.Sprintf("/api/v1/progression/%s/complete", progressionID)
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) Unlock(ctx context.Context, contentType, contentID string) (*dto.UnlockResponse, error) {
	var out dto.UnlockResponse
	path := fmt.Sprintf("/api/v1/content/%s/%s/unlock", contentType, contentID)
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.sessionID != "" {
		req.Header.Set("X-Session-ID", c.sessionID)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("malformed response (%d): %w", res.StatusCode, err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &APIError{StatusCode: res.StatusCode, Message: envelope.Message}
	}

	if out != nil && len(envelope.Data) > 0 {
		return sonic.Unmarshal(envelope.Data, out)
	}
	return nil
}
