package cmd

import (
	"github.com/spf13/cobra"

	"forge/internal/logger"
)

// uninstallCmd removes one tool and its fact record.
var uninstallCmd = &cobra.Command{
	Use:   "uninstall <tool>",
	Short: "Uninstall a tool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}

		res, err := engine.Uninstall(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if res.CommandErr != nil {
			// The record is gone either way; the command failure still
			// reaches the user.
			logger.Warn("[WARN] %s removed from forge's records, but the uninstall command failed\n", res.Tool)
			return res.CommandErr
		}
		logger.Info("[INFO] Uninstalled %s (via %s)\n", res.Tool, res.Installer)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
