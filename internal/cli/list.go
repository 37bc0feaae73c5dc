package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/schedctl/internal/view"
	"github.com/me/schedctl/pkg/model"
)

type listFlags struct {
	status   string
	page     int
	size     int
	watch    bool
	interval time.Duration
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.status, "status", model.StatusAll, "Filter by status (scheduled, enqueued, started, finished, failed, canceled, all)")
	cmd.Flags().IntVar(&f.page, "page", 1, "Page number")
	cmd.Flags().IntVar(&f.size, "size", 0, "Page size (default from config)")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "Keep refreshing until interrupted")
	cmd.Flags().DurationVar(&f.interval, "interval", 0, "Refresh interval for --watch (default from config)")
}

func (f *listFlags) filters() model.Filters {
	return model.Filters{model.FilterStatus: string(model.ParseStatus(f.status))}
}

func (f *listFlags) pollInterval() time.Duration {
	if f.interval > 0 {
		return f.interval
	}
	return cfg.PollInterval
}

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Work with task listings",
	}
	cmd.AddCommand(newListCmd())
	return cmd
}

func newListCmd() *cobra.Command {
	var f listFlags
	var backend, category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filters := f.filters()
			filters[model.FilterBackend] = backend
			filters[model.FilterCategory] = category

			v := view.NewTaskList(port, viewOptions(cmd, f.size, filters))
			if f.page > 1 {
				v.SetPage(f.page)
			}
			out := cmd.OutOrStdout()

			if !f.watch {
				page, err := v.Refresh(cmd.Context())
				if err != nil {
					return fmt.Errorf("list tasks: %w", err)
				}
				printTasks(out, page)
				return nil
			}

			ctx, cancel := watchContext(cmd.Context())
			defer cancel()
			serveMetrics(ctx, cfg.MetricsAddr)
			sessionDone := watchSession(ctx)

			var mu sync.Mutex
			closed := false
			v.OnUpdate(func(page model.Page[model.Task], err error) {
				mu.Lock()
				defer mu.Unlock()
				if closed {
					return
				}
				renderUpdate(out, page, err, printTasks)
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

	f.register(cmd)
	cmd.Flags().StringVar(&backend, "backend", "", "Filter by backend type")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	return cmd
}
