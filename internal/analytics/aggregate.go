// Package analytics folds article and match collections into per-source
// comparison metrics. Every function here is pure: inputs are never mutated
// and identical inputs always produce identical output.
package analytics

import (
	"sort"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
)

// Aggregate returns one SourceComparison per entry of sources, in the same
// order. Callers apply any filtering to articles beforehand.
//
// A source's article wins a match when the match's betterArticleSource label
// equals the source name; the better article id is not consulted.
func Aggregate(articles []dashboard.Article, matches []dashboard.Match, sources []string) []dashboard.SourceComparison {
	out := make([]dashboard.SourceComparison, 0, len(sources))
	for _, source := range sources {
		out = append(out, aggregateSource(source, articles, matches))
	}
	return out
}

func aggregateSource(source string, articles []dashboard.Article, matches []dashboard.Match) dashboard.SourceComparison {
	c := dashboard.SourceComparison{Source: source}

	owned := make(map[int64]struct{})
	var contentWords, withContent int
	for _, a := range articles {
		if a.Source != source {
			continue
		}
		owned[a.ID] = struct{}{}
		c.Total++
		if a.IsChecked() {
			c.Checked++
		}
		if a.IsNewArticle() {
			c.New++
		}
		if w := a.ContentWords(); w != 0 {
			contentWords += w
			withContent++
		}
	}
	if withContent > 0 {
		c.AverageContentWords = dashboard.RoundHalfUp(float64(contentWords) / float64(withContent))
	}

	var delays []float64
	for _, m := range matches {
		_, own1 := owned[m.Article1ID]
		_, own2 := owned[m.Article2ID]
		if (own1 && m.Article1Source == source) || (own2 && m.Article2Source == source) {
			c.Matches++
		}
		if m.BetterArticleSource == source {
			c.BetterArticleCount++
		}
		first := publishedFirst(m, source)
		if first {
			c.FirstPublishedCount++
		}
		involved := m.Article1Source == source || m.Article2Source == source
		if involved && !first && m.PublishedDiffSeconds != nil {
			delays = append(delays, *m.PublishedDiffSeconds)
		}
	}
	for _, d := range delays {
		c.TotalPublishedDelaySeconds += d
	}
	c.MedianDelayMinutes = MedianDelayMinutes(delays)
	return c
}

// publishedFirst reports whether the endpoint labelled with source is the
// match's first-published article.
func publishedFirst(m dashboard.Match, source string) bool {
	return (m.FirstPublishedID == m.Article1ID && m.Article1Source == source) ||
		(m.FirstPublishedID == m.Article2ID && m.Article2Source == source)
}

// MedianDelayMinutes returns the median of delays (in seconds) converted to
// whole minutes, rounding halves up. An empty sample yields 0. delays is not
// modified.
func MedianDelayMinutes(delays []float64) int {
	n := len(delays)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), delays...)
	sort.Float64s(sorted)
	mid := n / 2
	median := sorted[mid]
	if n%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}
	return dashboard.RoundHalfUp(median / 60)
}
