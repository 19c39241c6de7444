package knowledge

// Installer kinds. A small closed set so validation can rule out invalid
// combinations (e.g. a command installer without a capability check).
const (
	KindCommand = "command" // fixed external command templates
	KindScript  = "script"  // inline shell snippets supplied per tool/platform
	KindGitHub  = "github"  // releases-API discovery and binary download
)

// Knowledge is the full read-only registry: platform precedence lists,
// installer definitions, and tool definitions. It is loaded once at startup
// and passed explicitly to every component; nothing consults it ambiently.
type Knowledge struct {
	Version    int                     `yaml:"version"`
	Platforms  map[string]PlatformSpec `yaml:"platforms"`  // keyed by OS family
	Installers map[string]Installer    `yaml:"installers"` // keyed by installer name
	Tools      map[string]Tool         `yaml:"tools"`      // keyed by tool name
}

// PlatformSpec carries the ordered installer preference for one OS family.
// Ordering is total: the list is an explicit sequence, ties are impossible.
type PlatformSpec struct {
	Precedence []string `yaml:"precedence"`
}

// Installer describes one named install mechanism, shared across all tools
// that use it.
//   - Check: capability-check argv; run before a command installer is
//     attempted. Exit zero means the mechanism is usable on this host.
//   - Install/Uninstall/Update: argv templates with substitution keys.
//   - OutputPattern: regexp with one capture group extracting the installed
//     version from combined command output.
//   - VersionCheck: how to ask for the latest available version.
type Installer struct {
	Kind          string        `yaml:"kind"`
	Check         []string      `yaml:"check,omitempty"`
	Install       []string      `yaml:"install,omitempty"`
	Uninstall     []string      `yaml:"uninstall,omitempty"`
	Update        []string      `yaml:"update,omitempty"`
	OutputPattern string        `yaml:"output_pattern,omitempty"`
	VersionCheck  *VersionCheck `yaml:"version_check,omitempty"`
}

// VersionCheck describes the "what is the latest version" lookup.
// Method "command" runs a local argv; method "api" performs an HTTPS GET and
// extracts a field by dotted JSON path (e.g. "crate.max_version").
type VersionCheck struct {
	Method  string   `yaml:"method"` // "command" or "api"
	Command []string `yaml:"command,omitempty"`
	URL     string   `yaml:"url,omitempty"`
	Path    string   `yaml:"path,omitempty"`
}

// Tool describes one managed tool: human description, the executable names
// it provides once installed, and per-installer parameter overrides.
// A tool with no installer bindings is informational only.
type Tool struct {
	Description string                   `yaml:"description"`
	Provides    []string                 `yaml:"provides,omitempty"`
	Installers  map[string]ToolInstaller `yaml:"installers,omitempty"`
}

// ToolInstaller holds the tool-specific parameters for one installer
// binding: package name, source repository, asset pattern, download URL, and
// optional per-platform script overrides (keyed by OS family, with "default"
// as the shared fallback).
type ToolInstaller struct {
	Package   string             `yaml:"package,omitempty"`
	Repo      string             `yaml:"repo,omitempty"`
	Pattern   string             `yaml:"pattern,omitempty"`
	URL       string             `yaml:"url,omitempty"`
	Platforms map[string]Scripts `yaml:"platforms,omitempty"`
}

// Scripts is a per-platform set of inline shell snippets for a script-kind
// installer binding.
type Scripts struct {
	Install   string `yaml:"install,omitempty"`
	Uninstall string `yaml:"uninstall,omitempty"`
	Update    string `yaml:"update,omitempty"`
}

// ScriptsFor resolves the script set for an OS family, falling back to the
// "default" entry. The second return reports whether anything was found.
func (ti ToolInstaller) ScriptsFor(osFamily string) (Scripts, bool) {
	if s, ok := ti.Platforms[osFamily]; ok {
		return s, true
	}
	if s, ok := ti.Platforms["default"]; ok {
		return s, true
	}
	return Scripts{}, false
}
