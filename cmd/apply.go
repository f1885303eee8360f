// -- cmd/apply.go --
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sheasmith19/ezapp/api/schemas"
)

var (
	applyURL    string
	applyResume string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Attach a stored resume to a live application page.",
	Long: `Apply opens the page in a browser, finds the resume upload field with the
same scoring used by the detection pipeline, downloads the chosen resume,
and attaches it the way a manual file selection would.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		token, err := a.sessions.ValidToken(ctx)
		if err != nil {
			return err
		}
		if token == "" {
			return fmt.Errorf("not logged in; run 'ezapp login' first")
		}

		list, err := a.catalog.List(ctx, token)
		if err != nil {
			return err
		}
		resume, err := pickResume(list, applyResume)
		if err != nil {
			return err
		}

		env, err := a.proxy.FetchResource(ctx, resume.DownloadURL, token)
		if err != nil {
			return err
		}

		result, err := a.live.Apply(ctx, applyURL, env)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Attached %s (%s) to %s as %q\n",
			resume.Label(), result.MediaType, applyURL, result.Filename)
		return nil
	},
}

// pickResume chooses a descriptor by display name or filename, case
// insensitively. With no selection a sole stored resume is used.
func pickResume(list []schemas.ResumeDescriptor, want string) (schemas.ResumeDescriptor, error) {
	if len(list) == 0 {
		return schemas.ResumeDescriptor{}, fmt.Errorf("no resumes stored; upload one to your account first")
	}
	if want == "" {
		if len(list) == 1 {
			return list[0], nil
		}
		return schemas.ResumeDescriptor{}, fmt.Errorf("multiple resumes stored; pick one with --resume")
	}
	for _, r := range list {
		if strings.EqualFold(r.DisplayName, want) || strings.EqualFold(r.Filename, want) {
			return r, nil
		}
	}
	return schemas.ResumeDescriptor{}, fmt.Errorf("no stored resume matches %q", want)
}

func init() {
	applyCmd.Flags().StringVarP(&applyURL, "url", "u", "", "application page URL (required)")
	applyCmd.Flags().StringVarP(&applyResume, "resume", "r", "", "resume to attach, by name or filename")
	_ = applyCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(applyCmd)
}
