package forge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forge/internal/facts"
	"forge/internal/faults"
	"forge/internal/knowledge"
	"forge/internal/platform"
)

const testKnowledge = `
platforms:
  linux:
    precedence: [cargo, apt]
installers:
  apt:
    kind: command
    check: [apt-get, --version]
    install: [apt-get, install, -y, "{package}"]
    uninstall: [apt-get, remove, -y, "{package}"]
    output_pattern: 'Setting up {package} \(([^)]+)\)'
  cargo:
    kind: command
    check: [cargo, --version]
    install: [cargo, install, "{package}"]
    uninstall: [cargo, uninstall, "{package}"]
    version_check:
      method: api
      url: "{API}/api/v1/crates/{package}"
      path: crate.max_version
tools:
  ripgrep:
    description: fast recursive search
    provides: [rg]
    installers:
      apt:
        package: ripgrep
      cargo:
        package: ripgrep
`

// scriptedRunner returns canned results keyed by the joined argv and records
// every invocation in order.
type scriptedRunner struct {
	mu       sync.Mutex
	calls    []string
	outputs  map[string]string
	failures map[string]error
}

func (r *scriptedRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	r.mu.Lock()
	r.calls = append(r.calls, key)
	r.mu.Unlock()
	if err, ok := r.failures[key]; ok {
		return []byte("simulated failure"), err
	}
	return []byte(r.outputs[key]), nil
}

func (r *scriptedRunner) called(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c == key {
			return true
		}
	}
	return false
}

func newTestForge(t *testing.T, doc string, runner *scriptedRunner) *Forge {
	t.Helper()
	doc = strings.ReplaceAll(doc, "{API}", "http://127.0.0.1:0")
	k, err := knowledge.Parse([]byte(doc))
	require.NoError(t, err)
	if runner.outputs == nil {
		runner.outputs = map[string]string{}
	}
	if runner.failures == nil {
		runner.failures = map[string]error{}
	}
	return &Forge{
		Know:     k,
		Platform: platform.Platform{OS: "linux", Arch: "x86_64"},
		Store:    facts.NewStore(filepath.Join(t.TempDir(), "facts.toml")),
		Runner:   runner,
		Client:   http.DefaultClient,
		BinDir:   t.TempDir(),
		Timeout:  5 * time.Second,
	}
}

func TestInstallSkipsUnavailableInstaller(t *testing.T) {
	r := &scriptedRunner{
		failures: map[string]error{
			"cargo --version": errors.New("cargo: command not found"),
		},
		outputs: map[string]string{
			"apt-get install -y ripgrep": "Setting up ripgrep (14.0.3-1) ...",
		},
	}
	f := newTestForge(t, testKnowledge, r)

	res, err := f.Install(context.Background(), "ripgrep", "", false)
	require.NoError(t, err)
	assert.Equal(t, "apt", res.Installer)
	assert.Equal(t, "14.0.3-1", res.Version)
	assert.Equal(t, []string{"cargo: capability check failed"}, res.Skipped)

	// cargo was probed but never asked to install.
	assert.True(t, r.called("cargo --version"))
	assert.False(t, r.called("cargo install ripgrep"))

	stored, err := f.Store.Load()
	require.NoError(t, err)
	fact := stored.Tools["ripgrep"]
	assert.Equal(t, "14.0.3-1", fact.Version)
	assert.Equal(t, "apt", fact.Installer)
	assert.False(t, fact.InstalledAt.IsZero())
}

func TestInstallIsIdempotent(t *testing.T) {
	r := &scriptedRunner{outputs: map[string]string{
		"cargo install ripgrep": "Installed package `ripgrep v14.0.3`",
	}}
	f := newTestForge(t, testKnowledge, r)

	first, err := f.Install(context.Background(), "ripgrep", "", false)
	require.NoError(t, err)
	assert.False(t, first.AlreadyInstalled)

	callsAfterFirst := len(r.calls)
	second, err := f.Install(context.Background(), "ripgrep", "", false)
	require.NoError(t, err)
	assert.True(t, second.AlreadyInstalled)
	assert.Equal(t, first.Version, second.Version)
	assert.Len(t, r.calls, callsAfterFirst, "second install must not run anything")
}

func TestInstallReinstallRunsAgain(t *testing.T) {
	r := &scriptedRunner{outputs: map[string]string{
		"cargo install ripgrep": "Installed package `ripgrep v14.0.3`",
	}}
	f := newTestForge(t, testKnowledge, r)

	_, err := f.Install(context.Background(), "ripgrep", "", false)
	require.NoError(t, err)
	callsAfterFirst := len(r.calls)

	res, err := f.Install(context.Background(), "ripgrep", "", true)
	require.NoError(t, err)
	assert.False(t, res.AlreadyInstalled)
	assert.Greater(t, len(r.calls), callsAfterFirst)
}

func TestInstallCommandFailureAborts(t *testing.T) {
	// cargo is available but its install fails; the engine must abort rather
	// than fall through to apt.
	r := &scriptedRunner{failures: map[string]error{
		"cargo install ripgrep": errors.New("exit status 101"),
	}}
	f := newTestForge(t, testKnowledge, r)

	_, err := f.Install(context.Background(), "ripgrep", "", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrInstallFailed), "got %v", err)
	assert.False(t, r.called("apt-get install -y ripgrep"))

	stored, lerr := f.Store.Load()
	require.NoError(t, lerr)
	assert.Empty(t, stored.Tools)
}

func TestInstallNoInstallerAvailable(t *testing.T) {
	r := &scriptedRunner{failures: map[string]error{
		"cargo --version":   errors.New("not found"),
		"apt-get --version": errors.New("not found"),
	}}
	f := newTestForge(t, testKnowledge, r)

	_, err := f.Install(context.Background(), "ripgrep", "", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrNoInstallerAvailable), "got %v", err)
}

func TestInstallPinnedInstaller(t *testing.T) {
	r := &scriptedRunner{outputs: map[string]string{
		"apt-get install -y ripgrep": "Setting up ripgrep (14.0.3-1) ...",
	}}
	f := newTestForge(t, testKnowledge, r)

	res, err := f.Install(context.Background(), "ripgrep", "apt", false)
	require.NoError(t, err)
	assert.Equal(t, "apt", res.Installer)
	// The pin bypasses the rest of the precedence list entirely.
	assert.False(t, r.called("cargo --version"))
}

func TestInstallPinnedInstallerNotBound(t *testing.T) {
	f := newTestForge(t, testKnowledge, &scriptedRunner{})

	_, err := f.Install(context.Background(), "ripgrep", "brew", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrNoInstallerAvailable), "got %v", err)
}

func TestInstallRecordsUnknownVersion(t *testing.T) {
	r := &scriptedRunner{outputs: map[string]string{
		"cargo install ripgrep": "done, no digits here",
	}}
	f := newTestForge(t, testKnowledge, r)

	res, err := f.Install(context.Background(), "ripgrep", "", false)
	require.NoError(t, err)
	assert.Equal(t, "unknown", res.Version)

	stored, err := f.Store.Load()
	require.NoError(t, err)
	assert.Equal(t, "unknown", stored.Tools["ripgrep"].Version)
}

func TestInstallVersionPatternWithMetaPackage(t *testing.T) {
	const doc = `
platforms:
  linux:
    precedence: [apt]
installers:
  apt:
    kind: command
    check: [apt-get, --version]
    install: [apt-get, install, -y, "{package}"]
    output_pattern: 'Setting up {package} \(([^)]+)\)'
tools:
  gcc-cpp:
    description: GNU C++ compiler
    installers:
      apt:
        package: g++
`
	// The package name carries regexp metacharacters; the declared pattern
	// must still win over the fallback set.
	r := &scriptedRunner{outputs: map[string]string{
		"apt-get install -y g++": "Setting up g++ (4:13.2.0-7) ...",
	}}
	f := newTestForge(t, doc, r)

	res, err := f.Install(context.Background(), "gcc-cpp", "", false)
	require.NoError(t, err)
	assert.Equal(t, "4:13.2.0-7", res.Version)
}

func TestUpdateRequiresRecord(t *testing.T) {
	f := newTestForge(t, testKnowledge, &scriptedRunner{})

	_, err := f.Update(context.Background(), "ripgrep")
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrNotInstalled), "got %v", err)
}

func TestUpdateReusesRecordedInstaller(t *testing.T) {
	// Installed with apt (cargo unavailable at the time). Later cargo shows
	// up; update must still go through apt.
	r := &scriptedRunner{
		failures: map[string]error{
			"cargo --version": errors.New("not found"),
		},
		outputs: map[string]string{
			"apt-get install -y ripgrep": "Setting up ripgrep (14.0.3-1) ...",
		},
	}
	f := newTestForge(t, testKnowledge, r)

	_, err := f.Install(context.Background(), "ripgrep", "", false)
	require.NoError(t, err)

	delete(r.failures, "cargo --version")
	r.outputs["apt-get install -y ripgrep"] = "Setting up ripgrep (14.1.0-1) ..."

	res, err := f.Update(context.Background(), "ripgrep")
	require.NoError(t, err)
	assert.Equal(t, "apt", res.Installer)
	assert.Equal(t, "14.0.3-1", res.OldVersion)
	assert.Equal(t, "14.1.0-1", res.NewVersion)
	assert.False(t, r.called("cargo install ripgrep"))
}

func TestUninstallRemovesRecord(t *testing.T) {
	r := &scriptedRunner{outputs: map[string]string{
		"cargo install ripgrep": "Installed package `ripgrep v14.0.3`",
	}}
	f := newTestForge(t, testKnowledge, r)

	_, err := f.Install(context.Background(), "ripgrep", "", false)
	require.NoError(t, err)

	res, err := f.Uninstall(context.Background(), "ripgrep")
	require.NoError(t, err)
	assert.NoError(t, res.CommandErr)
	assert.True(t, r.called("cargo uninstall ripgrep"))

	stored, err := f.Store.Load()
	require.NoError(t, err)
	assert.Empty(t, stored.Tools)
}

func TestUninstallSurfacesCommandFailure(t *testing.T) {
	r := &scriptedRunner{
		outputs: map[string]string{
			"cargo install ripgrep": "Installed package `ripgrep v14.0.3`",
		},
		failures: map[string]error{
			"cargo uninstall ripgrep": errors.New("exit status 1"),
		},
	}
	f := newTestForge(t, testKnowledge, r)

	_, err := f.Install(context.Background(), "ripgrep", "", false)
	require.NoError(t, err)

	res, err := f.Uninstall(context.Background(), "ripgrep")
	require.NoError(t, err)
	require.Error(t, res.CommandErr)
	assert.True(t, errors.Is(res.CommandErr, faults.ErrUninstallFailed), "got %v", res.CommandErr)

	// The record is gone regardless of the command failure.
	stored, lerr := f.Store.Load()
	require.NoError(t, lerr)
	assert.Empty(t, stored.Tools)
}

func TestUninstallNotInstalled(t *testing.T) {
	f := newTestForge(t, testKnowledge, &scriptedRunner{})

	_, err := f.Uninstall(context.Background(), "ripgrep")
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrNotInstalled), "got %v", err)
}

func TestListJoinsRegistry(t *testing.T) {
	r := &scriptedRunner{outputs: map[string]string{
		"cargo install ripgrep": "Installed package `ripgrep v14.0.3`",
	}}
	f := newTestForge(t, testKnowledge, r)

	entries, err := f.List()
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = f.Install(context.Background(), "ripgrep", "", false)
	require.NoError(t, err)

	entries, err = f.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ripgrep", entries[0].Tool)
	assert.Equal(t, "cargo", entries[0].Installer)
	assert.Equal(t, "fast recursive search", entries[0].Description)
}

func TestWhy(t *testing.T) {
	r := &scriptedRunner{outputs: map[string]string{
		"cargo install ripgrep": "Installed package `ripgrep v14.0.3`",
	}}
	f := newTestForge(t, testKnowledge, r)

	report, err := f.Why("ripgrep")
	require.NoError(t, err)
	assert.False(t, report.Installed)
	assert.Equal(t, []string{"rg"}, report.Provides)
	assert.Equal(t, []string{"cargo", "apt"}, report.Installers)

	_, err = f.Install(context.Background(), "ripgrep", "", false)
	require.NoError(t, err)

	report, err = f.Why("ripgrep")
	require.NoError(t, err)
	assert.True(t, report.Installed)
	assert.Equal(t, "14.0.3", report.Version)

	_, err = f.Why("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrUnknownTool))
}

func TestCheckUpdates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/crates/ripgrep", r.URL.Path)
		_, _ = w.Write([]byte(`{"crate":{"max_version":"14.1.0"}}`))
	}))
	t.Cleanup(srv.Close)

	doc := strings.ReplaceAll(testKnowledge, "{API}", srv.URL)
	k, err := knowledge.Parse([]byte(doc))
	require.NoError(t, err)

	r := &scriptedRunner{outputs: map[string]string{
		"cargo install ripgrep": "Installed package `ripgrep v14.0.3`",
	}}
	f := newTestForge(t, testKnowledge, r)
	f.Know = k

	_, err = f.Install(context.Background(), "ripgrep", "", false)
	require.NoError(t, err)

	statuses, err := f.CheckUpdates(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "ripgrep", statuses[0].Tool)
	assert.Equal(t, "14.0.3", statuses[0].Installed)
	assert.Equal(t, "14.1.0", statuses[0].Latest)
	assert.Equal(t, UpdateAvailable, statuses[0].State)

	// The check is read-only.
	stored, err := f.Store.Load()
	require.NoError(t, err)
	assert.Equal(t, "14.0.3", stored.Tools["ripgrep"].Version)
}

func TestCheckUpdatesUpToDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"crate":{"max_version":"14.0.3"}}`))
	}))
	t.Cleanup(srv.Close)

	doc := strings.ReplaceAll(testKnowledge, "{API}", srv.URL)
	k, err := knowledge.Parse([]byte(doc))
	require.NoError(t, err)

	r := &scriptedRunner{outputs: map[string]string{
		"cargo install ripgrep": "Installed package `ripgrep v14.0.3`",
	}}
	f := newTestForge(t, testKnowledge, r)
	f.Know = k

	_, err = f.Install(context.Background(), "ripgrep", "", false)
	require.NoError(t, err)

	statuses, err := f.CheckUpdates(context.Background(), []string{"ripgrep"})
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, UpToDate, statuses[0].State)
}

func TestCheckUpdatesNotInstalled(t *testing.T) {
	f := newTestForge(t, testKnowledge, &scriptedRunner{})

	statuses, err := f.CheckUpdates(context.Background(), []string{"ripgrep"})
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, UpdateUnknown, statuses[0].State)
	assert.True(t, errors.Is(statuses[0].Err, faults.ErrNotInstalled))
}
