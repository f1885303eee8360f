// -- cmd/resumes.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resumesCmd = &cobra.Command{
	Use:   "resumes",
	Short: "List the resumes stored in your account.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		token, err := a.sessions.ValidToken(cmd.Context())
		if err != nil {
			return err
		}
		if token == "" {
			return fmt.Errorf("not logged in; run 'ezapp login' first")
		}

		list, err := a.catalog.List(cmd.Context(), token)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No resumes stored.")
			return nil
		}
		for _, r := range list {
			fmt.Fprintf(cmd.OutOrStdout(), "%-30s %s\n", r.Label(), r.Filename)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resumesCmd)
}
