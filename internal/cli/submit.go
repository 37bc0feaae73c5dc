package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/schedctl/internal/candidates"
	"github.com/me/schedctl/pkg/model"
)

func newSubmitCmd() *cobra.Command {
	var spec model.TaskSpec
	var maxRetries int
	var fromFile string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Long: "Create a recurring collection task from flags, or create every candidate " +
			"definition in a YAML/JSON file with --from-file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if fromFile != "" {
				specs, err := candidates.Load(fromFile)
				if err != nil {
					return err
				}
				if dryRun {
					fmt.Fprintf(out, "%d candidate tasks are valid.\n", len(specs))
					return nil
				}
				created, err := orchestrator(cmd).CreateMany(cmd.Context(), specs)
				for _, t := range created {
					fmt.Fprintf(out, "  %s  %s/%s  %s\n", t.ID, t.BackendType, t.Category, t.URI())
				}
				return err
			}

			if cmd.Flags().Changed("max-retries") {
				spec.MaxRetries = &maxRetries
			}
			spec = spec.WithDefaults()
			if dryRun {
				if err := spec.Validate(); err != nil {
					return err
				}
				fmt.Fprintf(out, "Task definition is valid: %s/%s %s every %ds\n",
					spec.BackendType, spec.Category, spec.URI, spec.JobInterval)
				return nil
			}

			task, err := orchestrator(cmd).Create(cmd.Context(), spec)
			if err != nil {
				return err
			}
			printTask(out, task)
			return nil
		},
	}

	cmd.Flags().StringVar(&spec.BackendType, "backend", model.BackendGit, "Backend type")
	cmd.Flags().StringVar(&spec.Category, "category", "commit", "Data category")
	cmd.Flags().StringVar(&spec.URI, "uri", "", "Data source URI")
	cmd.Flags().IntVar(&spec.JobInterval, "interval", model.DefaultJobInterval, "Seconds between runs")
	cmd.Flags().IntVar(&maxRetries, "max-retries", model.DefaultMaxRetries, "Retries per failed job")
	cmd.Flags().BoolVar(&spec.Burst, "burst", false, "Run in burst mode")
	cmd.Flags().StringVarP(&fromFile, "from-file", "f", "", "Create every candidate task in a YAML/JSON file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate only; do not create")
	return cmd
}
