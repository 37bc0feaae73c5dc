package cli

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/me/schedctl/internal/view"
	"github.com/me/schedctl/pkg/model"
)

func newJobsCmd() *cobra.Command {
	var f listFlags

	list := &cobra.Command{
		Use:   "list <task_id>",
		Short: "List the jobs of a task, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := view.NewJobList(port, args[0], viewOptions(cmd, f.size, f.filters()))
			if f.page > 1 {
				v.SetPage(f.page)
			}
			out := cmd.OutOrStdout()

			if !f.watch {
				page, err := v.Refresh(cmd.Context())
				if err != nil {
					return fmt.Errorf("list jobs: %w", err)
				}
				printJobs(out, page)
				return nil
			}

			ctx, cancel := watchContext(cmd.Context())
			defer cancel()
			serveMetrics(ctx, cfg.MetricsAddr)
			sessionDone := watchSession(ctx)

			var mu sync.Mutex
			closed := false
			v.OnUpdate(func(page model.Page[model.Job], err error) {
				mu.Lock()
				defer mu.Unlock()
				if closed {
					return
				}
				renderUpdate(out, page, err, printJobs)
				if model.IsAuth(err) {
					cancel()
				}
			})
			v.Open(ctx, f.pollInterval())
			<-ctx.Done()
			v.Close()
			<-sessionDone
			mu.Lock()
			closed = true
			mu.Unlock()
			return nil
		},
	}
	f.register(list)

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Work with job listings",
	}
	cmd.AddCommand(list)
	return cmd
}

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect a single job",
	}
	cmd.AddCommand(newJobShowCmd(), newLogsCmd())
	return cmd
}

func newJobShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task_id> <job_id>",
		Short: "Show a job and its progress",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := port.GetJob(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("get job: %w", err)
			}
			printJob(cmd.OutOrStdout(), job)
			return nil
		},
	}
}

func newLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs <task_id> <job_id>",
		Short: "Print the log lines of a job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := port.GetJobLogs(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("get logs: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(lines) == 0 {
				fmt.Fprintln(out, "No log lines.")
				return nil
			}
			for _, l := range lines {
				fmt.Fprintln(out, l)
			}
			return nil
		},
	}
}
