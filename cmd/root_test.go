package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultKnowledgePathOverride(t *testing.T) {
	t.Setenv("FORGE_KNOWLEDGE", "/etc/forge/knowledge.yaml")
	assert.Equal(t, "/etc/forge/knowledge.yaml", defaultKnowledgePath())
}

func TestDefaultKnowledgePathForgeHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("FORGE_KNOWLEDGE", "")
	t.Setenv("FORGE_HOME", home)

	want := filepath.Join(home, "knowledge.yaml")
	require.NoError(t, os.WriteFile(want, []byte("version: 1\n"), 0644))
	assert.Equal(t, want, defaultKnowledgePath())
}

func TestDefaultKnowledgePathConfigDir(t *testing.T) {
	cfg := t.TempDir()
	t.Setenv("FORGE_KNOWLEDGE", "")
	t.Setenv("FORGE_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", cfg)
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	want := filepath.Join(cfg, "forge", "knowledge.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(want), 0755))
	require.NoError(t, os.WriteFile(want, []byte("version: 1\n"), 0644))
	assert.Equal(t, want, defaultKnowledgePath())
}

func TestDefaultKnowledgePathBundledFallback(t *testing.T) {
	t.Setenv("FORGE_KNOWLEDGE", "")
	t.Setenv("FORGE_HOME", filepath.Join(t.TempDir(), "missing"))
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	assert.Equal(t, "data/knowledge.yaml", defaultKnowledgePath())
}
