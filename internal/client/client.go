// Package client talks to the IronPro server from the terminal workout runner.
package client

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

	"github.com/meltforce/ironpro/internal/models"
)

// ErrRejected is returned when the server refuses a request outright.
// Retrying it will not help.
var ErrRejected = errors.New("rejected by server")

// submission mirrors the server's submit payload without importing the
// server package.
type submission struct {
	ID           string    `json:"id"`
	StudentLogin string    `json:"student_login"`
	Amount       int       `json:"amount"`
	CreatedAt    time.Time `json:"created_at"`
}

// Client sends data to the IronPro server over HTTP.
type Client struct {
	serverURL    string
	apiKey       string
	studentLogin string
	httpClient   *http.Client
	// backoff returns the wait before retry attempt n (n >= 1).
	backoff func(attempt int) time.Duration
}

// NewClient creates a new HTTP client for the IronPro server. Awards are
// submitted on behalf of studentLogin.
func NewClient(serverURL, apiKey, studentLogin string) *Client {
	return &Client{
		serverURL:    strings.TrimRight(serverURL, "/"),
		apiKey:       apiKey,
		studentLogin: studentLogin,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt-1)) * time.Second
		},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// FetchTemplate retrieves a workout template by ID.
func (c *Client) FetchTemplate(ctx context.Context, id string) (*models.WorkoutTemplate, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/submit/templates/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("creating template request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching template: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("template request failed (status %d): %s", resp.StatusCode, body)
	}

	var t models.WorkoutTemplate
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, fmt.Errorf("decoding template: %w", err)
	}
	return &t, nil
}

// SubmitAward POSTs a pending award to the server. Retries up to 3 times
// with exponential backoff on network errors and 5xx responses. A 4xx
// response fails immediately with ErrRejected.
func (c *Client) SubmitAward(ctx context.Context, a models.XPAward) error {
	data, err := json.Marshal(submission{
		ID:           a.ID,
		StudentLogin: c.studentLogin,
		Amount:       a.Amount,
		CreatedAt:    a.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshaling award: %w", err)
	}

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/submit/xp", bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("creating submit request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return fmt.Errorf("%w (status %d): %s", ErrRejected, resp.StatusCode, body)
		}
		lastErr = fmt.Errorf("submit failed (status %d): %s", resp.StatusCode, body)
	}

	return fmt.Errorf("after 3 attempts: %w", lastErr)
}

// RecordAward implements workout.AwardRecorder.
func (c *Client) RecordAward(ctx context.Context, a models.XPAward) error {
	return c.SubmitAward(ctx, a)
}
