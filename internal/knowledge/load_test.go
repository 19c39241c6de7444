package knowledge

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forge/internal/faults"
)

const validDoc = `
version: 1
platforms:
  linux:
    precedence: [script, cargo, github, apt]
installers:
  apt:
    kind: command
    check: [apt-get, --version]
    install: [sudo, apt-get, install, -y, "{package}"]
    uninstall: [sudo, apt-get, remove, -y, "{package}"]
    output_pattern: 'Setting up {package} \(([^)]+)\)'
  cargo:
    kind: command
    check: [cargo, --version]
    install: [cargo, install, "{package}"]
    version_check:
      method: api
      url: "https://crates.io/api/v1/crates/{package}"
      path: crate.max_version
  github:
    kind: github
  script:
    kind: script
tools:
  ripgrep:
    description: Fast search tool
    provides: [rg]
    installers:
      cargo:
        package: ripgrep
      github:
        repo: BurntSushi/ripgrep
  docs-only:
    description: Explains a capability without forge managing it
`

func TestParseValid(t *testing.T) {
	k, err := Parse([]byte(validDoc))
	require.NoError(t, err)

	assert.Equal(t, 1, k.Version)
	assert.Equal(t, []string{"script", "cargo", "github", "apt"}, k.Platforms["linux"].Precedence)
	assert.Equal(t, KindCommand, k.Installers["apt"].Kind)
	assert.Equal(t, "crate.max_version", k.Installers["cargo"].VersionCheck.Path)
	assert.Equal(t, []string{"rg"}, k.Tools["ripgrep"].Provides)
	assert.Empty(t, k.Tools["docs-only"].Installers)
}

func TestParseRejectsBadReferences(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "precedence references undeclared installer",
			doc: `
platforms:
  linux:
    precedence: [ghost]
installers: {}
tools: {}
`,
			want: "undeclared installer",
		},
		{
			name: "tool references undeclared installer",
			doc: `
platforms: {}
installers: {}
tools:
  ripgrep:
    description: x
    installers:
      ghost: {}
`,
			want: "undeclared installer",
		},
		{
			name: "command installer without check",
			doc: `
platforms: {}
installers:
  apt:
    kind: command
    install: [apt-get, install, "{package}"]
tools: {}
`,
			want: "requires a check invocation",
		},
		{
			name: "command installer without install template",
			doc: `
platforms: {}
installers:
  apt:
    kind: command
    check: [apt-get, --version]
tools: {}
`,
			want: "requires an install template",
		},
		{
			name: "github binding without repo",
			doc: `
platforms: {}
installers:
  github:
    kind: github
tools:
  ripgrep:
    description: x
    installers:
      github: {}
`,
			want: "requires a repo",
		},
		{
			name: "unknown installer kind",
			doc: `
platforms: {}
installers:
  weird:
    kind: psychic
tools: {}
`,
			want: "unknown kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, faults.ErrConfigInvalid), "expected ErrConfigInvalid, got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestScriptsFor(t *testing.T) {
	ti := ToolInstaller{Platforms: map[string]Scripts{
		"macos":   {Install: "echo mac"},
		"default": {Install: "echo any"},
	}}

	s, ok := ti.ScriptsFor("macos")
	require.True(t, ok)
	assert.Equal(t, "echo mac", s.Install)

	s, ok = ti.ScriptsFor("linux")
	require.True(t, ok)
	assert.Equal(t, "echo any", s.Install)

	_, ok = ToolInstaller{}.ScriptsFor("linux")
	assert.False(t, ok)
}

func TestToolNames(t *testing.T) {
	k, err := Parse([]byte(validDoc))
	require.NoError(t, err)
	assert.Equal(t, []string{"docs-only", "ripgrep"}, k.ToolNames())
}
