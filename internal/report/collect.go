package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/matchwatch/internal/analytics"
	"github.com/JakeFAU/matchwatch/internal/dashboard"
	"github.com/JakeFAU/matchwatch/internal/metrics"
)

// Snapshot holds one consistent load of the backend collections.
type Snapshot struct {
	Articles []dashboard.Article
	Matches  []dashboard.Match
	Sources  []string
	Stats    dashboard.SystemStats
}

// Collect loads articles, matches, sources, and (when stats is non-nil)
// backend statistics concurrently. Without a stats source the counts are
// derived from the loaded collections.
func Collect(ctx context.Context, data dashboard.DataSource, stats dashboard.StatsSource) (Snapshot, error) {
	if data == nil {
		return Snapshot{}, errors.New("collect requires a data source")
	}
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		articles, err := data.Articles(gctx, dashboard.Filter{})
		if err != nil {
			return fmt.Errorf("load articles: %w", err)
		}
		snap.Articles = articles
		return nil
	})
	g.Go(func() error {
		matches, err := data.Matches(gctx)
		if err != nil {
			return fmt.Errorf("load matches: %w", err)
		}
		snap.Matches = matches
		return nil
	})
	g.Go(func() error {
		sources, err := data.Sources(gctx)
		if err != nil {
			return fmt.Errorf("load sources: %w", err)
		}
		snap.Sources = sources
		return nil
	})
	if stats != nil {
		g.Go(func() error {
			s, err := stats.Stats(gctx)
			if err != nil {
				return fmt.Errorf("load stats: %w", err)
			}
			snap.Stats = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	if stats == nil {
		snap.Stats = analytics.Summarize(snap.Articles, snap.Matches)
	}
	if len(snap.Sources) == 0 {
		snap.Sources = analytics.Sources(snap.Articles)
	}
	return snap, nil
}

// Compare filters the articles and aggregates one comparison per source. A
// filter naming a source narrows the output to that source.
func (s Snapshot) Compare(f dashboard.Filter) []dashboard.SourceComparison {
	sources := s.Sources
	if f.Source != "" {
		sources = []string{f.Source}
	}
	filtered := analytics.ApplyFilter(s.Articles, s.Matches, f)
	metrics.ObserveAggregation()
	return analytics.Aggregate(filtered, s.Matches, sources)
}

// Report builds the full report from the snapshot.
func (s Snapshot) Report(now time.Time) Report {
	return Build(s.Stats, s.Compare(dashboard.Filter{}), s.Matches, now)
}
