// Package client talks to the article backend over HTTP/JSON. It is the job
// status source for the poller and the data source for analytics and reports.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
	"github.com/JakeFAU/matchwatch/internal/metrics"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
)

// ErrStatus matches every *StatusError.
var ErrStatus = errors.New("backend returned an error status")

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Endpoint string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend returned %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Endpoint, e.Code, e.Message)
}

// Is makes errors.Is(err, ErrStatus) succeed.
func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// Config controls the backend client.
type Config struct {
	// BaseURL is the backend origin; requests go to BaseURL/api/...
	BaseURL string
	APIKey  string
	// Timeout bounds each request when HTTPClient is nil.
	Timeout time.Duration
	// RateLimit caps requests per second across all callers. Zero disables it.
	RateLimit float64
	Burst     int
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	apiKey  string
	limiter *rate.Limiter
	logger  *zap.Logger
}

var (
	_ dashboard.JobSource   = (*Client)(nil)
	_ dashboard.Launcher    = (*Client)(nil)
	_ dashboard.DataSource  = (*Client)(nil)
	_ dashboard.StatsSource = (*Client)(nil)
)

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("backend base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend base url must be http or https, got %q", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:    base,
		http:    httpClient,
		apiKey:  cfg.APIKey,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// GetJob fetches the current snapshot of jobID.
func (c *Client) GetJob(ctx context.Context, jobID string) (dashboard.Job, error) {
	switch jobID {
	case "":
		return dashboard.Job{}, errors.New("job id is required")
	case ".", "..":
		return dashboard.Job{}, fmt.Errorf("invalid job id %q", jobID)
	}
	var resp struct {
		Job *dashboard.Job `json:"job"`
	}
	path := []string{"jobs", url.PathEscape(jobID)}
	if err := c.do(ctx, "get_job", http.MethodGet, path, nil, nil, &resp); err != nil {
		return dashboard.Job{}, err
	}
	if resp.Job == nil {
		return dashboard.Job{}, fmt.Errorf("get_job: %w: response for %s has no job", dashboard.ErrMalformedResponse, jobID)
	}
	return *resp.Job, nil
}

// Launch starts a backend job of the given kind and returns its id.
func (c *Client) Launch(ctx context.Context, kind dashboard.JobKind, opts dashboard.LaunchOptions) (string, error) {
	var (
		path []string
		body any
	)
	switch kind {
	case dashboard.JobKindFetchArticles:
		path = []string{"fetch"}
		body = struct {
			Sources []string `json:"sources,omitempty"`
		}{Sources: opts.Sources}
	case dashboard.JobKindFindMatches:
		path, body = []string{"compare-advanced"}, opts
	case dashboard.JobKindCompareQuality:
		path, body = []string{"compare-quality"}, opts
	default:
		return "", fmt.Errorf("unknown job kind %q", kind)
	}
	var resp struct {
		JobID string `json:"jobId"`
	}
	if err := c.do(ctx, "launch_"+strings.ReplaceAll(string(kind), "-", "_"), http.MethodPost, path, nil, body, &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("launch %s: backend returned no job id", kind)
	}
	c.logger.Info("launched backend job", zap.String("kind", string(kind)), zap.String("job_id", resp.JobID))
	return resp.JobID, nil
}

// Articles lists articles matching f. Text statistics are computed locally
// for articles the backend returns without them.
func (c *Client) Articles(ctx context.Context, f dashboard.Filter) ([]dashboard.Article, error) {
	var resp struct {
		Articles []dashboard.Article `json:"articles"`
	}
	if err := c.do(ctx, "articles", http.MethodGet, []string{"articles"}, filterQuery(f), nil, &resp); err != nil {
		return nil, err
	}
	fillStats(resp.Articles)
	return resp.Articles, nil
}

func fillStats(articles []dashboard.Article) {
	for i := range articles {
		if articles[i].Stats == nil {
			stats := dashboard.ComputeStats(articles[i])
			articles[i].Stats = &stats
		}
	}
}

// Matches lists every recorded match.
func (c *Client) Matches(ctx context.Context) ([]dashboard.Match, error) {
	var resp struct {
		Matches []dashboard.Match `json:"matches"`
	}
	if err := c.do(ctx, "matches", http.MethodGet, []string{"matches"}, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

// Sources lists the configured source names.
func (c *Client) Sources(ctx context.Context) ([]string, error) {
	var resp struct {
		Sources []string `json:"sources"`
	}
	if err := c.do(ctx, "sources", http.MethodGet, []string{"sources"}, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sources, nil
}

// Stats returns the backend's headline counts.
func (c *Client) Stats(ctx context.Context) (dashboard.SystemStats, error) {
	var resp struct {
		Stats dashboard.SystemStats `json:"stats"`
	}
	if err := c.do(ctx, "stats", http.MethodGet, []string{"stats"}, nil, nil, &resp); err != nil {
		return dashboard.SystemStats{}, err
	}
	return resp.Stats, nil
}

func filterQuery(f dashboard.Filter) url.Values {
	q := url.Values{}
	if f.Source != "" {
		q.Set("source", f.Source)
	}
	if f.OnlyNew {
		q.Set("onlyNew", "true")
	}
	if f.OnlyUnmatched {
		q.Set("onlyUnmatched", "true")
	}
	if f.OnlyUnchecked {
		q.Set("onlyUnchecked", "true")
	}
	if f.PublishedAfter != nil {
		q.Set("publishedAfter", f.PublishedAfter.UTC().Format(time.RFC3339))
	}
	if f.PublishedBefore != nil {
		q.Set("publishedBefore", f.PublishedBefore.UTC().Format(time.RFC3339))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

func (c *Client) do(
	ctx context.Context,
	endpoint string,
	method string,
	path []string,
	query url.Values,
	body any,
	out any,
) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limit wait: %w", endpoint, err)
		}
	}

	// Path elements are already escaped.
	u := c.base.JoinPath(append([]string{"api"}, path...)...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveBackendRequest(endpoint, 0, time.Since(start))
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	metrics.ObserveBackendRequest(endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w: %w", endpoint, dashboard.ErrMalformedResponse, err)
	}
	return nil
}

func errorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(raw))
}
