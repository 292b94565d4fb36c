package cli

import (
	"context"
	"os"
	"os/signal"

	"timed-quiz/internal/transport/terminal"

	"github.com/spf13/cobra"
)

// NewPlayCmd runs the quiz in the terminal.
func NewPlayCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play the quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runPlay(ctx, *configPath)
		},
	}
}

func runPlay(ctx context.Context, configPath string) error {
	d, err := newDeps(configPath)
	if err != nil {
		return err
	}
	defer d.Close()

	service, err := d.quizService(ctx)
	if err != nil {
		return err
	}
	return terminal.Run(ctx, service, os.Stdin, os.Stdout)
}
