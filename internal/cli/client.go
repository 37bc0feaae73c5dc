package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/me/schedctl/internal/config"
	"github.com/me/schedctl/internal/lifecycle"
	"github.com/me/schedctl/internal/notify"
	"github.com/me/schedctl/internal/schedclient"
	"github.com/me/schedctl/internal/session"
	"github.com/me/schedctl/internal/view"
	"github.com/me/schedctl/pkg/model"
)

// newPort creates the scheduler client. The session supplies the credential
// and is torn down on auth failures.
func newPort(c config.ClientConfig, s *session.Manager, logger *slog.Logger) *schedclient.Client {
	return schedclient.NewClient(schedclient.Config{
		BaseURL:    c.Server,
		Timeout:    c.Timeout,
		RatePerSec: c.RatePerSec,
	}, logger, schedclient.WithTokenSource(s), schedclient.WithAuthHandler(s))
}

// notifier prints action feedback on the command's output and logs it.
func notifier(cmd *cobra.Command) notify.Notifier {
	return notify.NewMulti(
		notify.Writer{W: cmd.OutOrStdout()},
		notify.Log{Logger: logger.With("component", "notify")},
	)
}

// orchestrator runs lifecycle actions outside any list view.
func orchestrator(cmd *cobra.Command) *lifecycle.Orchestrator {
	return lifecycle.New(port, nil, logger,
		lifecycle.WithNotifier(notifier(cmd)),
		lifecycle.WithAuthHandler(sess),
		lifecycle.WithConfirmTTL(cfg.ConfirmTTL),
	)
}

func viewOptions(cmd *cobra.Command, size int, filters model.Filters) view.Options {
	if size <= 0 {
		size = cfg.PageSize
	}
	return view.Options{
		PageSize:   size,
		Filters:    filters,
		Notifier:   notifier(cmd),
		Auth:       sess,
		ConfirmTTL: cfg.ConfirmTTL,
		Logger:     logger,
	}
}
