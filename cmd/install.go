package cmd

import (
	"github.com/spf13/cobra"

	"forge/internal/logger"
)

// installerOverride pins a specific installer instead of walking the
// platform's precedence list; passed via `--installer` or `-i`.
var installerOverride string

// reinstall forces a fresh install even when a fact record already exists.
var reinstall bool

// installCmd installs one tool.
var installCmd = &cobra.Command{
	Use:   "install <tool>",
	Short: "Install a tool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}

		res, err := engine.Install(cmd.Context(), args[0], installerOverride, reinstall)
		if err != nil {
			return err
		}

		if res.AlreadyInstalled {
			logger.Info("[INFO] %s is already installed (v%s via %s)\n", res.Tool, res.Version, res.Installer)
			return nil
		}
		for _, skip := range res.Skipped {
			logger.Debug("[DEBUG] skipped %s\n", skip)
		}
		logger.Info("[INFO] Installed %s v%s via %s\n", res.Tool, res.Version, res.Installer)
		return nil
	},
}

func init() {
	installCmd.Flags().StringVarP(&installerOverride, "installer", "i", "", "Use a specific installer")
	installCmd.Flags().BoolVar(&reinstall, "reinstall", false, "Reinstall even if already installed")
	rootCmd.AddCommand(installCmd)
}
