package main

import (
	"forge/cmd" // CLI commands and execution logic
)

// main is the program entry point. It delegates to cmd.Execute() which
// handles command line argument parsing and execution.
//
// forge installs, updates, uninstalls, and reports on developer tools by
// delegating to whichever native package manager is available on the host,
// falling back to inline install scripts or direct binary downloads from
// GitHub release pages when no package manager covers a tool:
//   - A bundled knowledge document declares platforms (with an ordered
//     installer precedence per OS family), installers (package-manager
//     command templates or script/release-download mechanisms), and tools
//     (descriptions, provided executables, per-installer parameters)
//   - Each operation selects the best installer for the host platform, runs
//     it with a per-invocation timeout, extracts the installed version from
//     its output, and records the outcome in a durable facts file
//   - The facts file is forge's own source of truth for what is installed,
//     independent of the host package manager's bookkeeping
func main() {
	cmd.Execute()
}
