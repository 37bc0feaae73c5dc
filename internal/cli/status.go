package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect and manage a single task",
	}
	cmd.AddCommand(
		newStatusCmd(),
		newSubmitCmd(),
		newCancelCmd(),
		newRescheduleCmd(),
		newDeleteCmd(),
	)
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "show <task_id>",
		Aliases: []string{"status"},
		Short:   "Show a task and its recent jobs",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := port.GetTask(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get task: %w", err)
			}
			printTask(cmd.OutOrStdout(), task)
			return nil
		},
	}
}
