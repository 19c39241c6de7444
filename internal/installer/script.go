package installer

import (
	"context"

	"github.com/cockroachdb/errors"

	"forge/internal/logger"
)

// RunScript executes one verb of a script-kind installer. The payload is an
// inline shell snippet chosen per OS family (with "default" as the shared
// fallback), expanded with the candidate's parameters, and run via sh -c.
// Scripts may be idempotent no-ops; success is still exit-status-driven and
// the engine does not special-case them.
func RunScript(ctx context.Context, r Runner, c Candidate, action Action) (string, error) {
	scripts, ok := c.Binding.ScriptsFor(c.Platform.OS)
	if !ok {
		return "", errors.Newf("tool %s has no %s script for platform %s", c.Tool, c.Installer, c.Platform.OS)
	}

	var snippet string
	switch action {
	case ActionInstall:
		snippet = scripts.Install
	case ActionUninstall:
		snippet = scripts.Uninstall
	case ActionUpdate:
		snippet = scripts.Update
	}
	if snippet == "" {
		return "", errors.Newf("tool %s has no %s %s script", c.Tool, c.Installer, action)
	}

	expanded := ExpandTemplate(snippet, c.Tool, c.Binding, "", c.Platform)
	logger.Info("[INFO] Running %s script for %s:\n", action, c.Tool)
	logger.Debug("[DEBUG] %s\n", expanded)

	out, err := r.Run(ctx, "sh", "-c", expanded)
	if err != nil {
		return string(out), errors.Wrapf(err, "%s script for %s failed:\n%s", action, c.Tool, string(out))
	}
	return string(out), nil
}
