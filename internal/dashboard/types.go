// Package dashboard defines the core types shared across the job tracking,
// analytics, and reporting subsystems.
package dashboard

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// JobKind identifies which backend operation a job runs.
type JobKind string

// Job kinds the backend can launch.
const (
	JobKindFetchArticles  JobKind = "fetch-articles"
	JobKindFindMatches    JobKind = "find-matches"
	JobKindCompareQuality JobKind = "compare-quality"
)

// Valid reports whether k is one of the known job kinds.
func (k JobKind) Valid() bool {
	switch k {
	case JobKindFetchArticles, JobKindFindMatches, JobKindCompareQuality:
		return true
	default:
		return false
	}
}

// JobStatus represents the lifecycle state of a backend job.
type JobStatus string

// Job status values reported by the backend.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Valid reports whether s is one of the four protocol status values.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether s ends the job lifecycle.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one snapshot of a server-side asynchronous operation.
type Job struct {
	ID       string     `json:"id"`
	Kind     JobKind    `json:"type"`
	Status   JobStatus  `json:"status"`
	Progress float64    `json:"progress"`
	Result   *JobResult `json:"result,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// JobResult carries the counts reported by a completed job. Which fields are
// populated depends on the job kind.
type JobResult struct {
	TotalFetched  int `json:"totalFetched,omitempty"`
	TotalChecked  int `json:"totalChecked,omitempty"`
	TotalMatches  int `json:"totalMatches,omitempty"`
	TotalCompared int `json:"totalCompared,omitempty"`
}

// ArticleStats holds word and character counts for an article's text fields.
type ArticleStats struct {
	TitleWords   int `json:"titleWords"`
	TitleChars   int `json:"titleChars"`
	SummaryWords int `json:"summaryWords"`
	SummaryChars int `json:"summaryChars"`
	ContentWords int `json:"contentWords"`
	ContentChars int `json:"contentChars"`
}

// Article is one ingested item. Checked and IsNew use the backend's 0/1 encoding.
type Article struct {
	ID        int64         `json:"id"`
	Source    string        `json:"source"`
	Title     string        `json:"title"`
	Link      string        `json:"link"`
	Summary   string        `json:"summary"`
	Content   string        `json:"content,omitempty"`
	Published string        `json:"published,omitempty"`
	Checked   int           `json:"checked,omitempty"`
	CheckedAt string        `json:"checked_at,omitempty"`
	IsNew     int           `json:"is_new,omitempty"`
	CreatedAt string        `json:"created_at,omitempty"`
	Stats     *ArticleStats `json:"stats,omitempty"`
}

// IsChecked reports whether the article has been reviewed.
func (a Article) IsChecked() bool { return a.Checked == 1 }

// IsNewArticle reports whether the article is flagged as new.
func (a Article) IsNewArticle() bool { return a.IsNew == 1 }

// ContentWords returns the content word count, or zero when stats are absent.
func (a Article) ContentWords() int {
	if a.Stats == nil {
		return 0
	}
	return a.Stats.ContentWords
}

// PublishedAt parses the published timestamp. The second return value is
// false when the field is empty or not in a recognized layout.
func (a Article) PublishedAt() (time.Time, bool) {
	return ParseTimestamp(a.Published)
}

// Match asserts that two articles describe the same event.
type Match struct {
	MatchID              int64    `json:"matchId"`
	Article1ID           int64    `json:"article1Id"`
	Article2ID           int64    `json:"article2Id"`
	Article1Source       string   `json:"article1Source"`
	Article1Title        string   `json:"article1Title"`
	Article1Link         string   `json:"article1Link"`
	Article2Source       string   `json:"article2Source"`
	Article2Title        string   `json:"article2Title"`
	Article2Link         string   `json:"article2Link"`
	BetterArticleID      int64    `json:"betterArticleId"`
	BetterArticleLink    string   `json:"betterArticleLink"`
	BetterArticleSource  string   `json:"betterArticleSource"`
	Reason               string   `json:"reason,omitempty"`
	FirstPublishedID     int64    `json:"firstPublishedId"`
	PublishedDiffSeconds *float64 `json:"publishedDiffSeconds"`
	CreatedAt            string   `json:"createdAt"`
}

// SourceComparison is the per-source analytics record derived from articles
// and matches. It is recomputed from scratch on every aggregation.
type SourceComparison struct {
	Source                     string  `json:"source"`
	Total                      int     `json:"total"`
	Checked                    int     `json:"checked"`
	Matches                    int     `json:"matches"`
	New                        int     `json:"new"`
	FirstPublishedCount        int     `json:"firstPublishedCount"`
	BetterArticleCount         int     `json:"betterArticleCount"`
	TotalPublishedDelaySeconds float64 `json:"totalPublishedDelaySeconds"`
	MedianDelayMinutes         int     `json:"medianDelayMinutes"`
	AverageContentWords        int     `json:"averageContentWords"`
}

// CheckedPercent returns the share of checked articles, rounded to a whole percent.
func (c SourceComparison) CheckedPercent() int {
	if c.Total == 0 {
		return 0
	}
	return RoundHalfUp(float64(c.Checked) / float64(c.Total) * 100)
}

// MatchPercent returns matches as a share of checked articles, rounded to a whole percent.
func (c SourceComparison) MatchPercent() int {
	if c.Checked == 0 {
		return 0
	}
	return RoundHalfUp(float64(c.Matches) / float64(c.Checked) * 100)
}

// SystemStats summarizes the article and match collections.
type SystemStats struct {
	TotalArticles        int `json:"totalArticles"`
	CheckedArticles      int `json:"checkedArticles"`
	UncheckedArticles    int `json:"uncheckedArticles"`
	NewArticles          int `json:"newArticles"`
	TotalMatches         int `json:"totalMatches"`
	MatchedArticlesCount int `json:"matchedArticlesCount"`
}

// Filter narrows the article collection before aggregation. Zero values
// disable the corresponding restriction.
type Filter struct {
	Source          string     `json:"source,omitempty"`
	OnlyNew         bool       `json:"onlyNew,omitempty"`
	OnlyUnmatched   bool       `json:"onlyUnmatched,omitempty"`
	OnlyUnchecked   bool       `json:"onlyUnchecked,omitempty"`
	PublishedAfter  *time.Time `json:"publishedAfter,omitempty"`
	PublishedBefore *time.Time `json:"publishedBefore,omitempty"`
	Limit           int        `json:"limit,omitempty"`
}

// ComputeStats derives text statistics for an article. Words are
// whitespace-separated fields and characters are runes.
func ComputeStats(a Article) ArticleStats {
	return ArticleStats{
		TitleWords:   len(strings.Fields(a.Title)),
		TitleChars:   utf8.RuneCountInString(a.Title),
		SummaryWords: len(strings.Fields(a.Summary)),
		SummaryChars: utf8.RuneCountInString(a.Summary),
		ContentWords: len(strings.Fields(a.Content)),
		ContentChars: utf8.RuneCountInString(a.Content),
	}
}

// RoundHalfUp rounds to the nearest integer with halves rounded toward
// positive infinity.
func RoundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp layouts the backend emits.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
