package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/matchwatch/internal/dashboard"
)

func newTrackCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "track <job-id>...",
		Short: "Follow jobs until they settle; exits non-zero if any failed.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			return trackJobs(cmd.Context(), cmd.OutOrStdout(), a, args, interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "status query interval (default from config)")
	return cmd
}

// trackJobs hands every id to the registry, prints each snapshot change, and
// waits for all of them to settle.
func trackJobs(ctx context.Context, out io.Writer, a App, ids []string, interval time.Duration) error {
	if interval <= 0 {
		interval = a.Config().PollInterval()
	}
	reg := a.Registry()

	var (
		mu      sync.Mutex
		failed  []string
		pending = make(map[string]struct{}, len(ids))
	)
	done := make(chan struct{})
	unsubscribe := reg.Subscribe(func(job dashboard.Job, _ error) {
		mu.Lock()
		defer mu.Unlock()
		if _, ok := pending[job.ID]; !ok {
			return
		}
		delete(pending, job.ID)
		printJob(out, job)
		if job.Status == dashboard.JobStatusFailed {
			failed = append(failed, job.ID)
		}
		if len(pending) == 0 {
			close(done)
		}
	})
	defer unsubscribe()

	unique := make([]string, 0, len(ids))
	mu.Lock()
	for _, id := range ids {
		if _, dup := pending[id]; dup {
			continue
		}
		pending[id] = struct{}{}
		unique = append(unique, id)
	}
	mu.Unlock()
	for _, id := range unique {
		if !reg.StartWithInterval(id, interval) {
			return fmt.Errorf("could not start tracking job %q", id)
		}
	}

	last := make(map[string]dashboard.Job, len(ids))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			mu.Lock()
			defer mu.Unlock()
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d job(s) failed: %v", len(failed), len(unique), failed)
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("tracking interrupted: %w", ctx.Err())
		case <-ticker.C:
			mu.Lock()
			for _, tracked := range reg.Tracked() {
				job := tracked.Job
				if _, ok := pending[job.ID]; !ok || tracked.PendingEviction {
					continue
				}
				if prev, seen := last[job.ID]; seen && prev.Status == job.Status && prev.Progress == job.Progress {
					continue
				}
				last[job.ID] = job
				printJob(out, job)
			}
			mu.Unlock()
		}
	}
}
