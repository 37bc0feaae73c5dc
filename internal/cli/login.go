package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var token, username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the scheduler",
		Long:  "Store a scheduler API token for use with later schedctl commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Scheduler token: ")
				reader := bufio.NewReader(cmd.InOrStdin())
				line, err := reader.ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token: %w", err)
				}
				token = strings.TrimSpace(line)
			}

			if err := sess.Login(token, username); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Credentials saved to %s\n", sess.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Scheduler API token (prompted if omitted)")
	cmd.Flags().StringVar(&username, "user", "", "User name to remember with the token")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !sess.Authenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}
			if err := sess.Teardown("logout"); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newEcosystemCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ecosystem [name]",
		Short: "Show or select the working ecosystem",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				eco := sess.Ecosystem()
				if eco == "" {
					eco = "(none)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Ecosystem: %s\n", eco)
				return nil
			}
			if err := sess.SelectEcosystem(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ecosystem set to %s\n", args[0])
			return nil
		},
	}
}
