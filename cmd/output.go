package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
)

var (
	completedColor = color.New(color.FgGreen, color.Bold)
	failedColor    = color.New(color.FgRed, color.Bold)
	runningColor   = color.New(color.FgYellow)
	pendingColor   = color.New(color.Faint)
)

func statusText(s dashboard.JobStatus) string {
	switch s {
	case dashboard.JobStatusCompleted:
		return completedColor.Sprint(s)
	case dashboard.JobStatusFailed:
		return failedColor.Sprint(s)
	case dashboard.JobStatusRunning:
		return runningColor.Sprint(s)
	default:
		return pendingColor.Sprint(s)
	}
}

func printJob(w io.Writer, job dashboard.Job) {
	line := fmt.Sprintf("%s  %-9s %5.1f%%", job.ID, statusText(job.Status), job.Progress)
	if job.Kind != "" {
		line += "  " + string(job.Kind)
	}
	if job.Status == dashboard.JobStatusFailed && job.Error != "" {
		line += "  " + failedColor.Sprint(job.Error)
	}
	if job.Status == dashboard.JobStatusCompleted && job.Result != nil {
		line += "  " + resultSummary(*job.Result)
	}
	fmt.Fprintln(w, line)
}

func resultSummary(r dashboard.JobResult) string {
	switch {
	case r.TotalFetched > 0:
		return fmt.Sprintf("fetched=%d", r.TotalFetched)
	case r.TotalCompared > 0:
		return fmt.Sprintf("compared=%d", r.TotalCompared)
	default:
		return fmt.Sprintf("checked=%d matches=%d", r.TotalChecked, r.TotalMatches)
	}
}
