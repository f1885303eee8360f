// -- cmd/detect.go --
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sheasmith19/ezapp/internal/classifier"
	"github.com/sheasmith19/ezapp/internal/dompage"
)

var detectCmd = &cobra.Command{
	Use:   "detect <url-or-file>",
	Short: "Score a page's upload fields without touching them.",
	Long: `Detect runs the resume-field scoring against a page and prints every
file input found with its score and the signals that produced it. The
argument is a URL, or a path to a local HTML file for offline checks.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		target := args[0]
		var cands []classifier.Candidate
		if looksLikeFile(target) {
			raw, err := os.ReadFile(target)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", target, err)
			}
			page, err := dompage.Parse(string(raw), "file://"+target)
			if err != nil {
				return err
			}
			cands = a.scorer.Scan(page)
		} else {
			cands, err = a.live.Detect(cmd.Context(), target)
			if err != nil {
				return err
			}
		}

		if len(cands) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No file inputs found.")
			return nil
		}
		threshold := cfg.Classifier.StrictThreshold
		for _, c := range cands {
			marker := " "
			if c.Score >= threshold {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %-20s score=%-4d %s\n",
				marker, c.Identifier(), c.Score, strings.Join(c.Rationale, ", "))
		}
		return nil
	},
}

// looksLikeFile treats anything without a URL scheme as a local path.
func looksLikeFile(target string) bool {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return false
	}
	_, err := os.Stat(target)
	return err == nil
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
