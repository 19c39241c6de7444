package cmd

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"forge/internal/forge"
	"forge/internal/knowledge"
	"forge/internal/logger"
)

// debug indicates whether debug logging should be enabled.
// It can be toggled via the `--debug` command-line flag.
var debug bool

// knowledgePath points at the knowledge document; defaults to the bundled
// registry next to the binary's data dir, overridable for local experiments.
var knowledgePath string

// rootCmd is the base command for the CLI tool `forge`.
var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "Install, update and track developer tools",

	// PersistentPreRun runs before any subcommand; initialize the logger
	// based on the debug flag.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(debug)
	},

	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute initializes flags, registers subcommands, and starts command
// execution. It's the entry point for the CLI when invoked by the user.
func Execute() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&knowledgePath, "knowledge", "k", defaultKnowledgePath(), "Path to the knowledge file")

	if err := rootCmd.Execute(); err != nil {
		logger.Error("[ERROR] %v\n", err)
		os.Exit(1)
	}
}

// defaultKnowledgePath prefers an explicit FORGE_KNOWLEDGE override, then a
// registry under FORGE_HOME, then the xdg config dir. The bundled document
// in the source tree is the development fallback, so an installed binary
// never depends on the working directory.
func defaultKnowledgePath() string {
	if p := os.Getenv("FORGE_KNOWLEDGE"); p != "" {
		return p
	}
	if home := os.Getenv("FORGE_HOME"); home != "" {
		if p := filepath.Join(home, "knowledge.yaml"); fileExists(p) {
			return p
		}
	}
	if p := filepath.Join(xdg.ConfigHome, "forge", "knowledge.yaml"); fileExists(p) {
		return p
	}
	return "data/knowledge.yaml"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// newEngine loads the registries and wires up the engine; shared by every
// verb command.
func newEngine() (*forge.Forge, error) {
	know, err := knowledge.Load(knowledgePath)
	if err != nil {
		return nil, err
	}
	return forge.New(know)
}
