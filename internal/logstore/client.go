package logstore

// Package logstore queries a Loki-compatible log store over its HTTP
// query_range API. The log-query tools build LogQL strings; this client
// owns transport, time-bound parsing, limit capping and response
// flattening into the normalized ToolResult log shape.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/models"
)

// MaxQueryLimit caps how many rows one query may return. Requests above
// it are clamped, not rejected.
const MaxQueryLimit = 5000

// Query is one query_range request. Start and End accept "now", relative
// durations and absolute timestamps; Limit of 0 means the store default.
type Query struct {
	Query     string
	Start     string
	End       string
	Limit     int
	Direction string // "backward" | "forward"
}

// Querier is the log store abstraction the tools depend on.
type Querier interface {
	QueryRange(ctx context.Context, q Query) ([]models.LogEntry, error)
}

// Client is the HTTP implementation of Querier.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
	now     func() time.Time
}

// NewClient creates a log store client for the Loki instance at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("logstore"),
		now:     time.Now,
	}
}

type queryRangeResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Stream map[string]string `json:"stream"`
			Values [][2]string       `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

// QueryRange executes one LogQL range query and returns the flattened
// entries ordered by timestamp according to the query direction.
func (c *Client) QueryRange(ctx context.Context, q Query) ([]models.LogEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > MaxQueryLimit {
		c.logger.Warn("query limit clamped", zap.Int("requested", q.Limit), zap.Int("max", MaxQueryLimit))
		limit = MaxQueryLimit
	}
	direction := q.Direction
	if direction == "" {
		direction = "backward"
	}

	now := c.now()
	start, err := ParseTime(q.Start, now)
	if err != nil {
		return nil, err
	}
	if q.Start == "" {
		start = now.Add(-24 * time.Hour)
	}
	end, err := ParseTime(q.End, now)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("query", q.Query)
	params.Set("start", strconv.FormatInt(start.UnixNano(), 10))
	params.Set("end", strconv.FormatInt(end.UnixNano(), 10))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("direction", direction)

	reqURL := c.baseURL + "/loki/api/v1/query_range?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("log store %d: %s", resp.StatusCode, string(b))
	}

	var parsed queryRangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Status != "success" {
		return nil, fmt.Errorf("log store returned status %q", parsed.Status)
	}

	var entries []models.LogEntry
	for _, stream := range parsed.Data.Result {
		for _, value := range stream.Values {
			entries = append(entries, models.LogEntry{
				Timestamp: value[0],
				Labels:    stream.Stream,
				Message:   value[1],
			})
		}
	}

	// Streams arrive independently ordered; impose one global order.
	sort.SliceStable(entries, func(i, j int) bool {
		ti, _ := strconv.ParseInt(entries[i].Timestamp, 10, 64)
		tj, _ := strconv.ParseInt(entries[j].Timestamp, 10, 64)
		if direction == "forward" {
			return ti < tj
		}
		return ti > tj
	})

	c.logger.Debug("query executed",
		zap.String("query", q.Query),
		zap.Int("entries", len(entries)))
	return entries, nil
}
