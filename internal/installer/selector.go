package installer

import (
	"strings"

	"github.com/cockroachdb/errors"

	"forge/internal/faults"
	"forge/internal/knowledge"
	"forge/internal/platform"
)

// Candidate is a resolved (tool, installer, platform) triple: the unit the
// strategies actually execute. Ephemeral, constructed per attempt.
type Candidate struct {
	Tool      string
	Installer string
	Def       knowledge.Installer
	Binding   knowledge.ToolInstaller
	Platform  platform.Platform
}

// Select produces the ordered candidate list for one tool: the platform's
// installer precedence list filtered to the installers the tool declares a
// binding for, order preserved. Pure function over the registries.
func Select(k *knowledge.Knowledge, p platform.Platform, toolName string) ([]Candidate, error) {
	tool, ok := k.Tools[toolName]
	if !ok {
		return nil, errors.Mark(errors.Newf("unknown tool: %s", toolName), faults.ErrUnknownTool)
	}

	spec, ok := k.Platforms[p.OS]
	if !ok {
		return nil, errors.Mark(
			errors.Newf("no installer precedence declared for platform %s", p.OS),
			faults.ErrNoInstallerAvailable)
	}

	var out []Candidate
	for _, instName := range spec.Precedence {
		binding, ok := tool.Installers[instName]
		if !ok {
			continue
		}
		def := k.Installers[instName] // existence guaranteed by load-time validation

		// Script installers are only usable when a snippet exists for this
		// OS family (or a shared default).
		if def.Kind == knowledge.KindScript {
			s, ok := binding.ScriptsFor(p.OS)
			if !ok || s.Install == "" {
				continue
			}
		}

		out = append(out, Candidate{
			Tool:      toolName,
			Installer: instName,
			Def:       def,
			Binding:   binding,
			Platform:  p,
		})
	}

	if len(out) == 0 {
		return nil, errors.Mark(
			errors.Newf("no installer can provide %s on %s (precedence: %s)",
				toolName, p, strings.Join(spec.Precedence, ", ")),
			faults.ErrNoInstallerAvailable)
	}
	return out, nil
}
