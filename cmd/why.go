package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"forge/internal/logger"
)

// whyCmd explains what a tool is for and how forge could install it here.
var whyCmd = &cobra.Command{
	Use:   "why <tool>",
	Short: "Explain why a tool exists and how it can be installed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}

		report, err := engine.Why(args[0])
		if err != nil {
			return err
		}

		logger.Info("[INFO] %s: %s\n", report.Tool, report.Description)
		if len(report.Provides) > 0 {
			logger.Info("[INFO] provides: %s\n", strings.Join(report.Provides, ", "))
		}
		if len(report.Installers) > 0 {
			logger.Info("[INFO] installable via: %s\n", strings.Join(report.Installers, ", "))
		} else {
			logger.Info("[INFO] informational only; forge does not manage this tool on this platform\n")
		}
		if report.Installed {
			logger.Info("[INFO] currently installed: v%s\n", report.Version)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whyCmd)
}
