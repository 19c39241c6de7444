package knowledge

import (
	"fmt"
	"os"
	"sort"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"forge/internal/faults"
)

// Load reads and validates a knowledge document from disk.
func Load(path string) (*Knowledge, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading knowledge file %s", path)
	}
	return Parse(raw)
}

// Parse unmarshals a knowledge document and validates every cross-reference.
// Unresolvable references are a load-time fatal error, never deferred to a
// per-operation failure.
func Parse(raw []byte) (*Knowledge, error) {
	var k Knowledge
	if err := yaml.Unmarshal(raw, &k); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "unmarshaling knowledge"), faults.ErrConfigInvalid)
	}
	if err := k.validate(); err != nil {
		return nil, errors.Mark(err, faults.ErrConfigInvalid)
	}
	return &k, nil
}

// validate checks the closed-set constraints the type system cannot express:
// every referenced installer exists, and every installer definition carries
// the fields its kind requires.
func (k *Knowledge) validate() error {
	for name, inst := range k.Installers {
		switch inst.Kind {
		case KindCommand:
			if len(inst.Check) == 0 {
				return fmt.Errorf("installer %q: command kind requires a check invocation", name)
			}
			if len(inst.Install) == 0 {
				return fmt.Errorf("installer %q: command kind requires an install template", name)
			}
		case KindScript, KindGitHub:
			// Script snippets come from tool overrides; github needs only
			// the tool's repo field, checked below.
		default:
			return fmt.Errorf("installer %q: unknown kind %q", name, inst.Kind)
		}
	}

	for osFamily, spec := range k.Platforms {
		for _, instName := range spec.Precedence {
			if _, ok := k.Installers[instName]; !ok {
				return fmt.Errorf("platform %q: precedence references undeclared installer %q", osFamily, instName)
			}
		}
	}

	for toolName, tool := range k.Tools {
		for instName, binding := range tool.Installers {
			inst, ok := k.Installers[instName]
			if !ok {
				return fmt.Errorf("tool %q: references undeclared installer %q", toolName, instName)
			}
			if inst.Kind == KindGitHub && binding.Repo == "" {
				return fmt.Errorf("tool %q: installer %q requires a repo", toolName, instName)
			}
		}
	}

	return nil
}

// ToolNames returns all declared tool names, sorted.
func (k *Knowledge) ToolNames() []string {
	names := make([]string, 0, len(k.Tools))
	for name := range k.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
