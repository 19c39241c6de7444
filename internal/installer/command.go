package installer

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"forge/internal/logger"
)

// Action identifies which of an installer's verbs is being executed; it
// selects both the template and the failure class reported on non-zero exit.
type Action string

const (
	ActionInstall   Action = "install"
	ActionUninstall Action = "uninstall"
	ActionUpdate    Action = "update"
)

// Available runs a command installer's capability check. A failing check is
// expected on hosts without that package manager; callers skip the candidate
// silently and move to the next precedence entry.
func Available(ctx context.Context, r Runner, c Candidate) bool {
	if len(c.Def.Check) == 0 {
		// Script and github installers have no separate capability check.
		return true
	}
	out, err := r.Run(ctx, c.Def.Check[0], c.Def.Check[1:]...)
	if err != nil {
		logger.Debug("[DEBUG] %s capability check failed: %v\n%s", c.Installer, err, out)
		return false
	}
	return true
}

// RunCommand executes one verb of a command-kind installer: the template is
// expanded with the candidate's parameters and run as a detached process,
// capturing combined output. Exit zero is success; anything else is an error
// carrying the captured output for diagnostics. No retries at this layer.
func RunCommand(ctx context.Context, r Runner, c Candidate, action Action, version string) (string, error) {
	tmpl := c.templateFor(action)
	if len(tmpl) == 0 {
		return "", errors.Newf("installer %s has no %s template", c.Installer, action)
	}

	argv := ExpandArgv(tmpl, c.Tool, c.Binding, version, c.Platform)
	logger.Info("[INFO] Running: %s\n", strings.Join(argv, " "))

	out, err := r.Run(ctx, argv[0], argv[1:]...)
	if err != nil {
		return string(out), errors.Wrapf(err, "%s %s via %s failed:\n%s",
			action, c.Tool, c.Installer, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func (c Candidate) templateFor(action Action) []string {
	switch action {
	case ActionInstall:
		return c.Def.Install
	case ActionUninstall:
		return c.Def.Uninstall
	case ActionUpdate:
		return c.Def.Update
	}
	return nil
}
