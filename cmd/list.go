package cmd

import (
	"github.com/spf13/cobra"

	"forge/internal/logger"
)

// listCmd prints every tool forge currently tracks as installed.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed tools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}

		entries, err := engine.List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			logger.Info("[INFO] No tools installed yet. Try: forge install ripgrep\n")
			return nil
		}

		for _, e := range entries {
			logger.Info("[INFO] %s %s (via %s) - %s\n", e.Tool, e.Version, e.Installer, e.Description)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
