// Package report assembles the comparison report: summary statistics, the
// per-source analysis, and the most recent matches.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/JakeFAU/matchwatch/internal/analytics"
	"github.com/JakeFAU/matchwatch/internal/dashboard"
)

// DefaultRecentMatches bounds the match list included in a report.
const DefaultRecentMatches = 10

// Report is a point-in-time snapshot of the comparison dashboard.
type Report struct {
	GeneratedAt   time.Time                    `json:"generatedAt"`
	Stats         dashboard.SystemStats        `json:"stats"`
	Sources       []dashboard.SourceComparison `json:"sources"`
	RecentMatches []dashboard.Match            `json:"recentMatches"`
}

// Build assembles a report. Comparisons are kept in the order given and
// matches are trimmed to the DefaultRecentMatches newest entries.
func Build(
	stats dashboard.SystemStats,
	comparisons []dashboard.SourceComparison,
	matches []dashboard.Match,
	now time.Time,
) Report {
	sources := make([]dashboard.SourceComparison, len(comparisons))
	copy(sources, comparisons)
	return Report{
		GeneratedAt:   now.UTC(),
		Stats:         stats,
		Sources:       sources,
		RecentMatches: analytics.RecentMatches(matches, DefaultRecentMatches),
	}
}

// Render writes the report as plain-text tables.
func (r Report) Render(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Report generated %s\n\n", r.GeneratedAt.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}

	summary := newTable(w, []string{"Metric", "Value"})
	summaryRows := [][]string{
		{"Total articles", strconv.Itoa(r.Stats.TotalArticles)},
		{"Checked", strconv.Itoa(r.Stats.CheckedArticles)},
		{"Unchecked", strconv.Itoa(r.Stats.UncheckedArticles)},
		{"New", strconv.Itoa(r.Stats.NewArticles)},
		{"Matches", strconv.Itoa(r.Stats.TotalMatches)},
		{"Matched articles", strconv.Itoa(r.Stats.MatchedArticlesCount)},
	}
	if err := renderTable(summary, summaryRows); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}

	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := RenderSources(w, r.Sources); err != nil {
		return err
	}

	if len(r.RecentMatches) == 0 {
		return nil
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	matches := newTable(w, []string{"Created", "Source A", "Source B", "Better", "Diff (min)"})
	rows := make([][]string, 0, len(r.RecentMatches))
	for _, m := range r.RecentMatches {
		diff := "-"
		if m.PublishedDiffSeconds != nil {
			diff = strconv.Itoa(dashboard.RoundHalfUp(*m.PublishedDiffSeconds / 60))
		}
		rows = append(rows, []string{m.CreatedAt, m.Article1Source, m.Article2Source, m.BetterArticleSource, diff})
	}
	if err := renderTable(matches, rows); err != nil {
		return fmt.Errorf("render matches: %w", err)
	}
	return nil
}

// RenderSources writes the per-source comparison table.
func RenderSources(w io.Writer, comparisons []dashboard.SourceComparison) error {
	table := newTable(w, []string{
		"Source", "Total", "Checked %", "Matches", "Match %", "First", "Better", "Median delay (min)", "Avg words",
	})
	rows := make([][]string, 0, len(comparisons))
	for _, c := range comparisons {
		rows = append(rows, []string{
			c.Source,
			strconv.Itoa(c.Total),
			strconv.Itoa(c.CheckedPercent()),
			strconv.Itoa(c.Matches),
			strconv.Itoa(c.MatchPercent()),
			strconv.Itoa(c.FirstPublishedCount),
			strconv.Itoa(c.BetterArticleCount),
			strconv.Itoa(c.MedianDelayMinutes),
			strconv.Itoa(c.AverageContentWords),
		})
	}
	if err := renderTable(table, rows); err != nil {
		return fmt.Errorf("render sources: %w", err)
	}
	return nil
}

// RenderArticles prints one row per article.
func RenderArticles(w io.Writer, articles []dashboard.Article) error {
	table := newTable(w, []string{"ID", "Source", "Published", "Checked", "Title"})
	rows := make([][]string, 0, len(articles))
	for _, a := range articles {
		checked := "no"
		if a.IsChecked() {
			checked = "yes"
		}
		rows = append(rows, []string{
			strconv.FormatInt(a.ID, 10),
			a.Source,
			a.Published,
			checked,
			a.Title,
		})
	}
	if err := renderTable(table, rows); err != nil {
		return fmt.Errorf("render articles: %w", err)
	}
	return nil
}

// Export writes the report as JSON under prefix and returns the object URI.
func (r Report) Export(ctx context.Context, store dashboard.BlobStore, prefix string) (string, error) {
	if store == nil {
		return "", errors.New("report export requires a blob store")
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	name := path.Join(prefix, "report-"+r.GeneratedAt.UTC().Format("20060102T150405Z")+".json")
	uri, err := store.PutObject(ctx, name, "application/json", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("store report: %w", err)
	}
	return uri, nil
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
	table.Header(header)
	return table
}

func renderTable(table *tablewriter.Table, rows [][]string) error {
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
