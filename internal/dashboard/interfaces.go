package dashboard

import (
	"context"
	"errors"
	"io"
)

// ErrMalformedResponse is wrapped by JobSource implementations when a status
// response cannot be decoded or carries no job.
var ErrMalformedResponse = errors.New("malformed backend response")

// JobSource answers status queries for backend jobs.
type JobSource interface {
	GetJob(ctx context.Context, jobID string) (Job, error)
}

// LaunchOptions carries the optional knobs accepted by job launch endpoints.
type LaunchOptions struct {
	Sources              []string `json:"sources,omitempty"`
	CompetitorSources    []string `json:"competitorSources,omitempty"`
	FromDate             string   `json:"fromDate,omitempty"`
	ToDate               string   `json:"toDate,omitempty"`
	OnlyUnmatched        bool     `json:"onlyUnmatched,omitempty"`
	OnlyUnchecked        bool     `json:"onlyUnchecked,omitempty"`
	MaxArticlesPerSource int      `json:"maxArticlesPerSource,omitempty"`
}

// Launcher starts backend jobs and returns their identifiers.
type Launcher interface {
	Launch(ctx context.Context, kind JobKind, opts LaunchOptions) (string, error)
}

// DataSource loads the materialized article and match collections.
type DataSource interface {
	Articles(ctx context.Context, filter Filter) ([]Article, error)
	Matches(ctx context.Context) ([]Match, error)
	Sources(ctx context.Context) ([]string, error)
}

// Curator edits the backend's article and match bookkeeping. The checked and
// new flags it sets are the ones the source comparison counts.
type Curator interface {
	NewArticles(ctx context.Context, source string) ([]Article, error)
	DeleteArticles(ctx context.Context, ids []int64) error
	MarkArticlesChecked(ctx context.Context, ids []int64) error
	MarkArticlesOld(ctx context.Context, ids []int64) error
	MarkAllNew(ctx context.Context) error
	// ResetChecked clears the checked flag on ids, or on every article when
	// ids is empty.
	ResetChecked(ctx context.Context, ids []int64) error
	DeleteMatches(ctx context.Context, ids []int64) error
}

// StatsSource returns backend-computed summary counts.
type StatsSource interface {
	Stats(ctx context.Context) (SystemStats, error)
}

// BlobStore writes exported artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
