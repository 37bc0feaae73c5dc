package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task_id>",
		Short: "Cancel a task so no further jobs run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := port.GetTask(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get task: %w", err)
			}
			return orchestrator(cmd).Cancel(cmd.Context(), task)
		},
	}
}

func newRescheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reschedule <task_id>",
		Short: "Resume a canceled task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := port.GetTask(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get task: %w", err)
			}
			return orchestrator(cmd).Reschedule(cmd.Context(), task)
		},
	}
}

func newDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <task_id>",
		Short: "Delete a task and all of its jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := port.GetTask(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get task: %w", err)
			}

			orch := orchestrator(cmd)
			confirmation := orch.RequestDelete(task)
			if !yes {
				fmt.Fprintf(cmd.OutOrStdout(), "Delete task %s (%s) and all its jobs? [y/N]: ", task.ID, task.URI())
				line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				switch strings.ToLower(strings.TrimSpace(line)) {
				case "y", "yes":
				default:
					orch.Dismiss()
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}
			return orch.Confirm(cmd.Context(), confirmation.ID)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
