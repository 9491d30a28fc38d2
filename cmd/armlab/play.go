package main

import (
	"context"
	"os"

	"github.com/armtemiy/armlab/internal/cli"
	"github.com/armtemiy/armlab/internal/presentation/tui"
	"github.com/armtemiy/armlab/pkg/domain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Walk the active diagnostic tree in the terminal",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fail("Error loading config: %v", err)
		}
		if !cmd.Flags().Changed("log-level") {
			cfg.Log.Level = "warn"
		}
		cfg.Log.Format = "text"

		app, err := cli.Build(cmd.Context(), cfg)
		if err != nil {
			fail("Error initializing armlab: %v", err)
		}
		defer app.Close()

		sessionID, _ := cmd.Flags().GetString("session")
		premium, _ := cmd.Flags().GetBool("premium")
		plain, _ := cmd.Flags().GetBool("plain")

		tty := term.IsTerminal(int(os.Stdout.Fd()))
		if tty && !plain {
			tui.PrintBanner(os.Stdout)
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		err = cli.Play(sigCtx, app.Sessions, cli.NewInterruptibleReader(sigCtx, os.Stdin), os.Stdout, cli.PlayOptions{
			SessionID: sessionID,
			Caller: domain.Caller{
				Access: domain.Access{PremiumUnlocked: premium},
			},
			Render: tui.NewRenderer(plain || !tty),
			Styler: tui.NewStyler(os.Stdout),
		})
		if err != nil && sigCtx.Signal() == nil {
			fail("Error: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().String("session", "cli", "Session id to resume")
	playCmd.Flags().Bool("premium", false, "Show premium results unlocked")
	playCmd.Flags().Bool("plain", false, "Disable markdown styling")
}
