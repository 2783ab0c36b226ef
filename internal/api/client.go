package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dispenser-client/internal/models"
	"dispenser-client/pkg/logger"
)

const (
	// BasePath prefixes every endpoint of the dispenser service
	BasePath = "/api"

	DefaultLogsLimit        = 15
	DefaultLeaderboardLimit = 20
)

// Client is the typed transport for the dispenser HTTP API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientConfig holds transport configuration
type ClientConfig struct {
	BaseURL string        // e.g., "http://localhost:5000"
	Timeout time.Duration // per request
}

// NewClient creates a transport rooted at BaseURL + /api
func NewClient(config ClientConfig) (*Client, error) {
	u, err := url.Parse(config.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid dispenser base URL %q", config.BaseURL)
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/") + BasePath,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Call performs one request. body, when non-nil, is sent as JSON; a 2xx
// response is decoded into out. Any other status yields an *APIError
// carrying the body's reason field.
func (c *Client) Call(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure struct {
			Reason string `json:"reason"`
		}
		// A non-JSON error body still yields a typed failure
		_ = json.Unmarshal(data, &failure)
		reason := failure.Reason
		if reason == "" {
			reason = DefaultReason
		}
		logger.For("api").WithFields(logrus.Fields{
			"method":   method,
			"endpoint": endpoint,
			"status":   resp.StatusCode,
			"reason":   reason,
		}).Debug("request rejected")
		return &APIError{HTTPStatus: resp.StatusCode, Reason: reason}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrDecode, method, endpoint, err)
	}
	return nil
}

// FetchStatus fetches current server and controller status
func (c *Client) FetchStatus(ctx context.Context) (models.SystemStatus, error) {
	var status models.SystemStatus
	err := c.Call(ctx, http.MethodGet, "/status", nil, &status)
	return status, err
}

// SendDispense submits a dispense command. A non-2xx rejection comes back
// as an *APIError whose Reason is the server's reason code.
func (c *Client) SendDispense(ctx context.Context, req models.DispenseRequest) (models.DispenseOutcome, error) {
	var outcome models.DispenseOutcome
	err := c.Call(ctx, http.MethodPost, "/dispense", req, &outcome)
	return outcome, err
}

// FetchLogs fetches the most recent activity entries, newest first.
// A non-positive limit uses the default of 15.
func (c *Client) FetchLogs(ctx context.Context, limit int) ([]models.LogEntry, error) {
	if limit <= 0 {
		limit = DefaultLogsLimit
	}
	var entries []models.LogEntry
	err := c.Call(ctx, http.MethodGet, "/logs?limit="+strconv.Itoa(limit), nil, &entries)
	return entries, err
}

// FetchLeaderboard fetches the ranked leaderboard.
// A non-positive limit uses the default of 20.
func (c *Client) FetchLeaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	var entries []models.LeaderboardEntry
	err := c.Call(ctx, http.MethodGet, "/leaderboard?limit="+strconv.Itoa(limit), nil, &entries)
	return entries, err
}
