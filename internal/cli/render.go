package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/me/schedctl/pkg/model"
)

func when(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return humanize.Time(*t)
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func printTasks(w io.Writer, page model.Page[model.Task]) {
	if len(page.Items) == 0 {
		if page.Number > 1 {
			fmt.Fprintf(w, "No tasks on page %d.\n", page.Number)
		} else {
			fmt.Fprintln(w, "No tasks found.")
		}
		return
	}

	fmt.Fprintf(w, "%-36s  %-10s  %-8s  %-10s  %-40s  %5s  %s\n", "ID", "STATUS", "BACKEND", "CATEGORY", "URI", "RUNS", "LAST RUN")
	fmt.Fprintf(w, "%-36s  %-10s  %-8s  %-10s  %-40s  %5s  %s\n", "--", "------", "-------", "--------", "---", "----", "--------")
	for _, t := range page.Items {
		fmt.Fprintf(w, "%-36s  %-10s  %-8s  %-10s  %-40s  %5d  %s\n",
			t.ID, t.Status, t.BackendType, t.Category, shorten(t.URI(), 40), t.Runs, when(t.LastRun))
	}
	fmt.Fprintf(w, "\nPage %d of %d (%s tasks)\n", page.Number, page.TotalPages, humanize.Comma(int64(page.TotalCount)))
}

func printJobs(w io.Writer, page model.Page[model.Job]) {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No jobs found.")
		return
	}

	now := time.Now()
	fmt.Fprintf(w, "%-6s  %-36s  %-10s  %-14s  %-14s  %s\n", "JOB", "ID", "STATUS", "SCHEDULED", "FINISHED", "DURATION")
	fmt.Fprintf(w, "%-6s  %-36s  %-10s  %-14s  %-14s  %s\n", "---", "--", "------", "---------", "--------", "--------")
	for _, j := range page.Items {
		dur := "-"
		if d := j.Duration(now); d > 0 {
			dur = d.Round(time.Second).String()
		}
		fmt.Fprintf(w, "#%-5d  %-36s  %-10s  %-14s  %-14s  %s\n",
			j.JobNumber, j.ID, j.Status, when(j.ScheduledAt), when(j.FinishedAt), dur)
	}
	fmt.Fprintf(w, "\nPage %d of %d (%s jobs)\n", page.Number, page.TotalPages, humanize.Comma(int64(page.TotalCount)))
}

func printTask(w io.Writer, t model.Task) {
	fmt.Fprintf(w, "Task: %s\n", t.ID)
	fmt.Fprintf(w, "  Status:    %s\n", t.Status)
	fmt.Fprintf(w, "  Backend:   %s/%s\n", t.BackendType, t.Category)
	fmt.Fprintf(w, "  URI:       %s\n", t.URI())
	fmt.Fprintf(w, "  Interval:  %s\n", t.Interval())
	fmt.Fprintf(w, "  Retries:   %d\n", t.MaxRetries)
	fmt.Fprintf(w, "  Runs:      %d (%d failed)\n", t.Runs, t.Failures)
	fmt.Fprintf(w, "  Last run:  %s\n", when(t.LastRun))
	if t.Status.IsActive() {
		fmt.Fprintf(w, "  Next run:  %s\n", when(t.ScheduledAt))
	}

	if len(t.RecentJobs) > 0 {
		s := t.Summary()
		fmt.Fprintf(w, "  Recent:    %d jobs", s.Total)
		if s.Finished > 0 {
			fmt.Fprintf(w, ", %d finished", s.Finished)
		}
		if s.Failed > 0 {
			fmt.Fprintf(w, ", %d failed", s.Failed)
		}
		if s.Active > 0 {
			fmt.Fprintf(w, ", %d active", s.Active)
		}
		if s.Canceled > 0 {
			fmt.Fprintf(w, ", %d canceled", s.Canceled)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Jobs:")
		for _, j := range t.RecentJobs {
			fmt.Fprintf(w, "    - #%d %s: %s\n", j.JobNumber, j.ID, j.Status)
		}
	}
	if err := t.CheckConsistency(); err != nil {
		fmt.Fprintf(w, "  Warning:   %v\n", err)
	}
}

func printJob(w io.Writer, j model.Job) {
	fmt.Fprintf(w, "Job #%d: %s\n", j.JobNumber, j.ID)
	fmt.Fprintf(w, "  Status:    %s\n", j.Status)
	fmt.Fprintf(w, "  Queue:     %s\n", j.Queue)
	fmt.Fprintf(w, "  Scheduled: %s\n", when(j.ScheduledAt))
	fmt.Fprintf(w, "  Started:   %s\n", when(j.StartedAt))
	fmt.Fprintf(w, "  Finished:  %s\n", when(j.FinishedAt))
	if len(j.Progress) > 0 {
		fmt.Fprintln(w, "  Progress:")
		for _, line := range strings.Split(strings.TrimRight(formatProgress(j.Progress, "    "), "\n"), "\n") {
			fmt.Fprintln(w, line)
		}
	}
}

// formatProgress renders the backend payload as indented key: value lines,
// descending into nested maps.
func formatProgress(m map[string]any, indent string) string {
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(m)) {
		switch v := m[k].(type) {
		case map[string]any:
			fmt.Fprintf(&b, "%s%s:\n%s", indent, k, formatProgress(v, indent+"  "))
		default:
			fmt.Fprintf(&b, "%s%s: %v\n", indent, k, v)
		}
	}
	return b.String()
}
