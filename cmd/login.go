// -- cmd/login.go --
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sheasmith19/ezapp/api/schemas"
)

var loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Authenticate and store a session for later uploads.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		password := loginPassword
		if password == "" {
			fmt.Fprint(cmd.OutOrStdout(), "Password: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}

		sess, err := a.sessions.Login(cmd.Context(), args[0], password)
		if err != nil {
			if schemas.IsAuthError(err) {
				// The provider's own message is the most useful thing
				// to show.
				return err
			}
			return fmt.Errorf("login failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (token valid until %s)\n",
			sess.UserEmail, sess.TokenExpiry.Local().Format("15:04:05"))
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password (prompted for when omitted)")
	rootCmd.AddCommand(loginCmd)
}
