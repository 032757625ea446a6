package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
)

var _ dashboard.Curator = (*Client)(nil)

// ErrNoIDs is returned when a bulk edit is called without ids.
var ErrNoIDs = errors.New("at least one id is required")

type articleIDs struct {
	ArticleIDs []int64 `json:"articleIds,omitempty"`
}

// NewArticles lists articles still flagged as new, optionally for one source.
func (c *Client) NewArticles(ctx context.Context, source string) ([]dashboard.Article, error) {
	var query url.Values
	if source != "" {
		query = url.Values{"source": []string{source}}
	}
	var resp struct {
		Articles []dashboard.Article `json:"articles"`
	}
	if err := c.do(ctx, "new_articles", http.MethodGet, []string{"articles", "new"}, query, nil, &resp); err != nil {
		return nil, err
	}
	fillStats(resp.Articles)
	return resp.Articles, nil
}

// DeleteArticles removes the given articles and their matches on the backend.
func (c *Client) DeleteArticles(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return ErrNoIDs
	}
	return c.edit(ctx, "delete_articles", http.MethodDelete, []string{"articles"}, articleIDs{ArticleIDs: ids}, len(ids))
}

// MarkArticlesChecked flags the given articles as already compared.
func (c *Client) MarkArticlesChecked(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return ErrNoIDs
	}
	return c.edit(ctx, "mark_checked", http.MethodPost, []string{"articles", "mark-checked"}, articleIDs{ArticleIDs: ids}, len(ids))
}

// MarkArticlesOld clears the new flag on the given articles.
func (c *Client) MarkArticlesOld(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return ErrNoIDs
	}
	return c.edit(ctx, "mark_old", http.MethodPost, []string{"articles", "mark-old"}, articleIDs{ArticleIDs: ids}, len(ids))
}

// MarkAllNew sets the new flag on every article.
func (c *Client) MarkAllNew(ctx context.Context) error {
	return c.edit(ctx, "mark_all_new", http.MethodPost, []string{"articles", "mark-all-new"}, nil, 0)
}

// ResetChecked clears the checked flag on ids, or on every article when ids
// is empty.
func (c *Client) ResetChecked(ctx context.Context, ids []int64) error {
	return c.edit(ctx, "reset_checked", http.MethodPost, []string{"articles", "reset-checked"}, articleIDs{ArticleIDs: ids}, len(ids))
}

// DeleteMatches removes the given matches.
func (c *Client) DeleteMatches(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return ErrNoIDs
	}
	body := struct {
		MatchIDs []int64 `json:"matchIds"`
	}{MatchIDs: ids}
	return c.edit(ctx, "delete_matches", http.MethodDelete, []string{"matches"}, body, len(ids))
}

func (c *Client) edit(ctx context.Context, endpoint, method string, path []string, body any, count int) error {
	if err := c.do(ctx, endpoint, method, path, nil, body, nil); err != nil {
		return err
	}
	c.logger.Info("backend records updated", zap.String("endpoint", endpoint), zap.Int("ids", count))
	return nil
}
