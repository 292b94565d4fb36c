package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewHighScoreCmd prints the stored high score.
func NewHighScoreCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "highscore",
		Short: "Print the stored high score",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps(*configPath)
			if err != nil {
				return err
			}
			defer d.Close()

			scores, err := d.scoreStore(cmd.Context())
			if err != nil {
				return err
			}
			high, err := scores.Get(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "High score: %d\n", high)
			return nil
		},
	}
}
