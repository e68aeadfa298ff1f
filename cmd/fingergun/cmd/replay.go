package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/fingergun/internal/logger"
	"github.com/ayusman/fingergun/internal/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay <recording.jsonl>",
	Short: "Replay recorded landmark frames and print the control samples.",
	Long: `Feeds a JSON Lines recording of hand landmarks through a fresh control
session, using the recorded timestamps as the clock, and prints one control
sample per frame. Use "-" to read the recording from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		in := cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open recording: %w", err)
			}
			defer f.Close()
			in = f
		}

		stats, err := replay.Run(ctx, in, cmd.OutOrStdout(), cfg.SessionConfig())
		if err != nil {
			return err
		}

		logger.InfoKV(ctx, "replay finished", "frames", stats.Frames, "hands", stats.Hands, "shots", stats.Shots)
		return nil
	},
}
