package cmd

import (
	"bufio"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"forge/internal/forge"
	"forge/internal/logger"
)

// assumeYes skips the confirmation prompt before applying updates.
var assumeYes bool

// updateCmd checks installed tools for newer versions and applies updates
// after confirmation. With an argument it updates that tool only.
var updateCmd = &cobra.Command{
	Use:   "update [tool]",
	Short: "Update installed tools",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}

		var names []string
		if len(args) == 1 {
			names = args
		}

		statuses, err := engine.CheckUpdates(cmd.Context(), names)
		if err != nil {
			return err
		}

		var outdated []string
		for _, st := range statuses {
			switch {
			case st.Err != nil:
				logger.Warn("[WARN] %s: %v\n", st.Tool, st.Err)
			case st.State == forge.UpdateAvailable:
				logger.Info("[INFO] %s %s -> %s\n", st.Tool, st.Installed, st.Latest)
				outdated = append(outdated, st.Tool)
			case st.State == forge.UpToDate:
				logger.Info("[INFO] %s %s (up to date)\n", st.Tool, st.Installed)
			default:
				logger.Info("[INFO] %s %s (latest version unknown)\n", st.Tool, st.Installed)
			}
		}

		if len(outdated) == 0 {
			logger.Info("[INFO] All tools are up to date.\n")
			return nil
		}

		if !assumeYes && !confirm() {
			logger.Info("[INFO] Update cancelled.\n")
			return nil
		}

		for _, name := range outdated {
			res, err := engine.Update(cmd.Context(), name)
			if err != nil {
				return err
			}
			logger.Info("[INFO] Updated %s %s -> %s via %s\n", res.Tool, res.OldVersion, res.NewVersion, res.Installer)
		}
		return nil
	},
}

// confirm asks the user before mutating anything; empty input means yes.
func confirm() bool {
	logger.Warn("[WARN] Apply updates? [Y/n] ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.TrimSpace(strings.ToLower(line))
	return answer == "" || answer == "y" || answer == "yes"
}

func init() {
	updateCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Apply updates without asking")
	rootCmd.AddCommand(updateCmd)
}
