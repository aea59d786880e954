package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/meltforce/ironpro/internal/models"
)

// HTTPClient implements DataSource by calling the IronPro REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale). The server
// identifies the trainer from the tailnet connection, so the trainerID
// arguments are ignored.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// errStatusNotFound marks a 404 from the REST API.
var errStatusNotFound = errors.New("not found")

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("httpclient: %s: %w", path, errStatusNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

func getJSON[T any](ctx context.Context, c *HTTPClient, path string, params url.Values) (T, error) {
	var v T
	body, err := c.get(ctx, path, params)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return v, nil
}

func (c *HTTPClient) ListAwards(ctx context.Context, _ string, status models.XPStatus) ([]models.XPAward, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", string(status))
	}
	return getJSON[[]models.XPAward](ctx, c, "/api/v1/xp", params)
}

func (c *HTTPClient) ListPendingAwards(ctx context.Context, trainerID string) ([]models.XPAward, error) {
	return c.ListAwards(ctx, trainerID, models.XPPending)
}

// ActiveCompetition returns nil when the server reports no running challenge.
func (c *HTTPClient) ActiveCompetition(ctx context.Context, _ string) (*models.Competition, error) {
	comp, err := getJSON[models.Competition](ctx, c, "/api/v1/competitions/active", nil)
	if errors.Is(err, errStatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &comp, nil
}

func (c *HTTPClient) ListTemplates(ctx context.Context, _ string) ([]models.WorkoutTemplate, error) {
	return getJSON[[]models.WorkoutTemplate](ctx, c, "/api/v1/templates", nil)
}

func (c *HTTPClient) ListStudents(ctx context.Context, _ string) ([]models.StudentLink, error) {
	return getJSON[[]models.StudentLink](ctx, c, "/api/v1/students", nil)
}
