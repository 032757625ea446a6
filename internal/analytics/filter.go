package analytics

import (
	"sort"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
)

// ApplyFilter returns the articles that pass every restriction in f, keeping
// their original order. Articles without a parsable published timestamp are
// dropped when a published window is set. matches is only consulted for
// OnlyUnmatched.
func ApplyFilter(articles []dashboard.Article, matches []dashboard.Match, f dashboard.Filter) []dashboard.Article {
	var matched map[int64]struct{}
	if f.OnlyUnmatched {
		matched = matchedArticleIDs(matches)
	}
	out := make([]dashboard.Article, 0, len(articles))
	for _, a := range articles {
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
		if f.Source != "" && a.Source != f.Source {
			continue
		}
		if f.OnlyNew && !a.IsNewArticle() {
			continue
		}
		if f.OnlyUnchecked && a.IsChecked() {
			continue
		}
		if f.OnlyUnmatched {
			if _, ok := matched[a.ID]; ok {
				continue
			}
		}
		if f.PublishedAfter != nil || f.PublishedBefore != nil {
			ts, ok := a.PublishedAt()
			if !ok {
				continue
			}
			if f.PublishedAfter != nil && ts.Before(*f.PublishedAfter) {
				continue
			}
			if f.PublishedBefore != nil && ts.After(*f.PublishedBefore) {
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

// Sources lists the distinct non-empty source names in first-seen order.
func Sources(articles []dashboard.Article) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, a := range articles {
		if a.Source == "" {
			continue
		}
		if _, ok := seen[a.Source]; ok {
			continue
		}
		seen[a.Source] = struct{}{}
		out = append(out, a.Source)
	}
	return out
}

// Summarize computes the dashboard headline counts.
func Summarize(articles []dashboard.Article, matches []dashboard.Match) dashboard.SystemStats {
	stats := dashboard.SystemStats{
		TotalArticles: len(articles),
		TotalMatches:  len(matches),
	}
	for _, a := range articles {
		if a.IsChecked() {
			stats.CheckedArticles++
		} else {
			stats.UncheckedArticles++
		}
		if a.IsNewArticle() {
			stats.NewArticles++
		}
	}
	stats.MatchedArticlesCount = len(matchedArticleIDs(matches))
	return stats
}

// RecentMatches returns up to n matches, newest first. Matches with an
// unparsable creation time sort last; ties break on MatchID descending.
// n <= 0 returns every match.
func RecentMatches(matches []dashboard.Match, n int) []dashboard.Match {
	type keyed struct {
		m  dashboard.Match
		ts int64
	}
	items := make([]keyed, len(matches))
	for i, m := range matches {
		var ts int64
		if t, ok := dashboard.ParseTimestamp(m.CreatedAt); ok {
			ts = t.UnixNano()
		}
		items[i] = keyed{m: m, ts: ts}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ts != items[j].ts {
			return items[i].ts > items[j].ts
		}
		return items[i].m.MatchID > items[j].m.MatchID
	})
	if n <= 0 || n > len(items) {
		n = len(items)
	}
	out := make([]dashboard.Match, n)
	for i := range out {
		out[i] = items[i].m
	}
	return out
}

func matchedArticleIDs(matches []dashboard.Match) map[int64]struct{} {
	ids := make(map[int64]struct{}, len(matches)*2)
	for _, m := range matches {
		ids[m.Article1ID] = struct{}{}
		ids[m.Article2ID] = struct{}{}
	}
	return ids
}
