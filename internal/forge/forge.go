// Package forge is the orchestrator: the facade invoked once per user
// request. Each operation runs selection, execution, interpretation, and
// persistence for one tool and reports a structured result or one of the
// taxonomy failures for the CLI layer to render.
package forge

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"forge/internal/facts"
	"forge/internal/faults"
	"forge/internal/installer"
	"forge/internal/knowledge"
	"forge/internal/logger"
	"forge/internal/platform"
	"forge/internal/version"
)

// DefaultTimeout bounds every external process invocation and network call.
// Installers hang on credential prompts and network stalls; a hung child is
// killed and the operation reported as failed.
const DefaultTimeout = 120 * time.Second

// Forge wires the read-only registries, the resolved platform, and the
// mutable fact store into one engine. Operations on different tools are
// independent; the store serializes its own writes.
type Forge struct {
	Know     *knowledge.Knowledge
	Platform platform.Platform
	Store    *facts.Store
	Runner   installer.Runner
	Client   *http.Client
	BinDir   string
	Timeout  time.Duration
}

// New builds an engine with production defaults: detected platform, the XDG
// facts path, the system process runner, and a timeout-bounded HTTP client.
func New(know *knowledge.Knowledge) (*Forge, error) {
	p, err := platform.Detect()
	if err != nil {
		return nil, err
	}
	return &Forge{
		Know:     know,
		Platform: p,
		Store:    facts.NewStore(facts.DefaultPath()),
		Runner:   installer.SystemRunner{},
		Client:   &http.Client{Timeout: DefaultTimeout},
		BinDir:   defaultBinDir(),
		Timeout:  DefaultTimeout,
	}, nil
}

// defaultBinDir is where releases-discovery places managed binaries.
func defaultBinDir() string {
	if home := os.Getenv("FORGE_HOME"); home != "" {
		return filepath.Join(home, "bin")
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "bin")
	}
	return filepath.Join(userHome, ".local", "bin")
}

// InstallResult is the structured outcome of an install request.
type InstallResult struct {
	Tool             string
	Installer        string
	Version          string
	AlreadyInstalled bool
	Skipped          []string // candidates skipped by capability checks, with reasons
}

// Install resolves, executes, interprets, and persists one tool install.
// An existing fact record short-circuits to "already installed" unless the
// caller explicitly requests reinstall. installerOverride pins a single
// installer instead of walking the precedence list.
func (f *Forge) Install(ctx context.Context, toolName, installerOverride string, reinstall bool) (*InstallResult, error) {
	current, err := f.Store.Load()
	if err != nil {
		return nil, err
	}
	if fact, ok := current.Tools[toolName]; ok && !reinstall {
		return &InstallResult{
			Tool:             toolName,
			Installer:        fact.Installer,
			Version:          fact.Version,
			AlreadyInstalled: true,
		}, nil
	}

	candidates, err := installer.Select(f.Know, f.Platform, toolName)
	if err != nil {
		return nil, err
	}
	if installerOverride != "" {
		candidates, err = pinCandidate(candidates, toolName, installerOverride)
		if err != nil {
			return nil, err
		}
	}

	tool := f.Know.Tools[toolName]
	var skipped []string

	for _, cand := range candidates {
		if !f.available(ctx, cand) {
			// Expected on hosts without that mechanism; advance silently.
			skipped = append(skipped, cand.Installer+": capability check failed")
			continue
		}

		ver, executables, err := f.execute(ctx, cand, installer.ActionInstall, tool.Provides)
		if err != nil {
			return nil, markDefault(err, faults.ErrInstallFailed)
		}

		if ver == "" {
			logger.Warn("[WARN] Could not extract a version for %s; recording %q\n", toolName, version.Unknown)
			ver = version.Unknown
		}

		if err := f.Store.Mutate(func(fs *facts.Facts) {
			fs.Tools[toolName] = facts.ToolFact{
				Version:     ver,
				Installer:   cand.Installer,
				InstalledAt: time.Now().UTC(),
				Executables: executables,
			}
		}); err != nil {
			return nil, err
		}

		return &InstallResult{
			Tool:      toolName,
			Installer: cand.Installer,
			Version:   ver,
			Skipped:   skipped,
		}, nil
	}

	return nil, errors.Mark(
		errors.Newf("no installer for %s is available on %s: %v", toolName, f.Platform, skipped),
		faults.ErrNoInstallerAvailable)
}

// execute dispatches one action to the candidate's execution strategy and
// interprets the resulting version.
func (f *Forge) execute(ctx context.Context, cand installer.Candidate, action installer.Action, provides []string) (string, []string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	switch cand.Def.Kind {
	case knowledge.KindGitHub:
		res, err := installer.InstallFromGitHub(ctx, f.Client, cand, provides, f.BinDir)
		if err != nil {
			return "", nil, err
		}
		return res.Version, res.Executables, nil

	case knowledge.KindScript:
		out, err := installer.RunScript(ctx, f.Runner, cand, action)
		if err != nil {
			return "", nil, err
		}
		return f.interpret(out, cand), provides, nil

	default: // command
		out, err := installer.RunCommand(ctx, f.Runner, cand, action, "")
		if err != nil {
			return "", nil, err
		}
		return f.interpret(out, cand), provides, nil
	}
}

// interpret extracts a version from captured output: the installer's own
// pattern first (itself a template, expanded with the candidate's
// parameters), then the shared fallback set.
func (f *Forge) interpret(output string, cand installer.Candidate) string {
	if cand.Def.OutputPattern != "" {
		pattern := installer.ExpandPattern(cand.Def.OutputPattern, cand.Tool, cand.Binding, "", cand.Platform)
		if v := version.Extract(output, pattern); v != "" {
			return v
		}
	}
	return version.ExtractAny(output)
}

func (f *Forge) available(ctx context.Context, cand installer.Candidate) bool {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	return installer.Available(ctx, f.Runner, cand)
}

// pinCandidate narrows the precedence-ordered list to one explicitly
// requested installer.
func pinCandidate(candidates []installer.Candidate, toolName, name string) ([]installer.Candidate, error) {
	for _, c := range candidates {
		if c.Installer == name {
			return []installer.Candidate{c}, nil
		}
	}
	return nil, errors.Mark(
		errors.Newf("%s cannot be installed with %q on this platform", toolName, name),
		faults.ErrNoInstallerAvailable)
}

// recordedCandidate rebuilds the candidate for the installer a fact record
// names. Update and uninstall re-resolve the same installer previously used
// rather than re-running precedence selection, so the mechanism is never
// switched underneath the user.
func (f *Forge) recordedCandidate(toolName string, fact facts.ToolFact) (installer.Candidate, error) {
	tool, ok := f.Know.Tools[toolName]
	if !ok {
		return installer.Candidate{}, errors.Mark(
			errors.Newf("unknown tool: %s", toolName), faults.ErrUnknownTool)
	}
	def, ok := f.Know.Installers[fact.Installer]
	if !ok {
		return installer.Candidate{}, errors.Mark(
			errors.Newf("%s was installed with %q, which is no longer declared", toolName, fact.Installer),
			faults.ErrConfigInvalid)
	}
	return installer.Candidate{
		Tool:      toolName,
		Installer: fact.Installer,
		Def:       def,
		Binding:   tool.Installers[fact.Installer],
		Platform:  f.Platform,
	}, nil
}

// UpdateResult is the structured outcome of an update request.
type UpdateResult struct {
	Tool       string
	Installer  string
	OldVersion string
	NewVersion string
}

// Update re-runs the recorded installer's update action for one installed
// tool, re-interprets the version, and overwrites the fact record.
func (f *Forge) Update(ctx context.Context, toolName string) (*UpdateResult, error) {
	current, err := f.Store.Load()
	if err != nil {
		return nil, err
	}
	fact, ok := current.Tools[toolName]
	if !ok {
		return nil, errors.Mark(errors.Newf("%s is not installed", toolName), faults.ErrNotInstalled)
	}

	cand, err := f.recordedCandidate(toolName, fact)
	if err != nil {
		return nil, err
	}
	tool := f.Know.Tools[toolName]

	ver, executables, err := f.runUpdate(ctx, cand, tool.Provides)
	if err != nil {
		return nil, markDefault(err, faults.ErrUpdateFailed)
	}
	if ver == "" {
		logger.Warn("[WARN] Could not extract a version for %s; recording %q\n", toolName, version.Unknown)
		ver = version.Unknown
	}

	if err := f.Store.Mutate(func(fs *facts.Facts) {
		fs.Tools[toolName] = facts.ToolFact{
			Version:     ver,
			Installer:   cand.Installer,
			InstalledAt: time.Now().UTC(),
			Executables: executables,
		}
	}); err != nil {
		return nil, err
	}

	return &UpdateResult{
		Tool:       toolName,
		Installer:  cand.Installer,
		OldVersion: fact.Version,
		NewVersion: ver,
	}, nil
}

// runUpdate picks the update mechanism for the recorded installer: a
// dedicated update template or script when one exists, otherwise the install
// action again (github re-downloads the latest release; command installers
// without an update verb reinstall through the same mechanism).
func (f *Forge) runUpdate(ctx context.Context, cand installer.Candidate, provides []string) (string, []string, error) {
	switch cand.Def.Kind {
	case knowledge.KindCommand:
		if len(cand.Def.Update) > 0 {
			ctx, cancel := context.WithTimeout(ctx, f.Timeout)
			defer cancel()
			out, err := installer.RunCommand(ctx, f.Runner, cand, installer.ActionUpdate, "")
			if err != nil {
				return "", nil, err
			}
			return f.interpret(out, cand), provides, nil
		}
	case knowledge.KindScript:
		if s, ok := cand.Binding.ScriptsFor(f.Platform.OS); ok && s.Update != "" {
			ctx, cancel := context.WithTimeout(ctx, f.Timeout)
			defer cancel()
			out, err := installer.RunScript(ctx, f.Runner, cand, installer.ActionUpdate)
			if err != nil {
				return "", nil, err
			}
			return f.interpret(out, cand), provides, nil
		}
	}
	return f.execute(ctx, cand, installer.ActionInstall, provides)
}

// UninstallResult is the structured outcome of an uninstall request.
type UninstallResult struct {
	Tool      string
	Installer string
	// CommandErr carries a failed uninstall command. Local bookkeeping is
	// cleaned up regardless; the failure is surfaced, not swallowed.
	CommandErr error
}

// Uninstall runs the recorded installer's uninstall action and removes the
// fact record. The record is removed even when the command itself reports
// failure (forge no longer manages the tool either way), but the failure is
// returned to the caller.
func (f *Forge) Uninstall(ctx context.Context, toolName string) (*UninstallResult, error) {
	current, err := f.Store.Load()
	if err != nil {
		return nil, err
	}
	fact, ok := current.Tools[toolName]
	if !ok {
		return nil, errors.Mark(errors.Newf("%s is not installed", toolName), faults.ErrNotInstalled)
	}

	cand, err := f.recordedCandidate(toolName, fact)
	if err != nil {
		return nil, err
	}

	cmdErr := f.runUninstall(ctx, cand, fact)

	if err := f.Store.Mutate(func(fs *facts.Facts) {
		delete(fs.Tools, toolName)
	}); err != nil {
		return nil, err
	}

	res := &UninstallResult{Tool: toolName, Installer: cand.Installer}
	if cmdErr != nil {
		res.CommandErr = errors.Mark(cmdErr, faults.ErrUninstallFailed)
	}
	return res, nil
}

func (f *Forge) runUninstall(ctx context.Context, cand installer.Candidate, fact facts.ToolFact) error {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	switch cand.Def.Kind {
	case knowledge.KindGitHub:
		// Binaries were placed by forge itself; remove what the record says
		// was installed.
		var firstErr error
		for _, exe := range fact.Executables {
			path := filepath.Join(f.BinDir, exe)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logger.Error("[ERROR] Failed to remove %s: %v\n", path, err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		return firstErr

	case knowledge.KindScript:
		if s, ok := cand.Binding.ScriptsFor(f.Platform.OS); !ok || s.Uninstall == "" {
			logger.Warn("[WARN] %s has no uninstall script for %s; removing record only\n", cand.Tool, f.Platform.OS)
			return nil
		}
		_, err := installer.RunScript(ctx, f.Runner, cand, installer.ActionUninstall)
		return err

	default: // command
		if len(cand.Def.Uninstall) == 0 {
			logger.Warn("[WARN] installer %s declares no uninstall action; removing record only\n", cand.Installer)
			return nil
		}
		_, err := installer.RunCommand(ctx, f.Runner, cand, installer.ActionUninstall, "")
		return err
	}
}

// ListEntry is one row of the installed-tools listing.
type ListEntry struct {
	Tool        string
	Version     string
	Installer   string
	Description string
	InstalledAt time.Time
}

// List is a pure read over the fact store joined with the tool registry.
func (f *Forge) List() ([]ListEntry, error) {
	current, err := f.Store.Load()
	if err != nil {
		return nil, err
	}

	entries := make([]ListEntry, 0, len(current.Tools))
	for name, fact := range current.Tools {
		entry := ListEntry{
			Tool:        name,
			Version:     fact.Version,
			Installer:   fact.Installer,
			InstalledAt: fact.InstalledAt,
		}
		if tool, ok := f.Know.Tools[name]; ok {
			entry.Description = tool.Description
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Tool < entries[j].Tool })
	return entries, nil
}

// WhyReport explains a tool's place in the knowledge base. Provides names
// are informational only; they never satisfy another tool's install request.
type WhyReport struct {
	Tool        string
	Description string
	Provides    []string
	Installers  []string // installers that could serve this tool on this platform, precedence order
	Installed   bool
	Version     string
}

// Why is a pure read over the tool registry and fact store.
func (f *Forge) Why(toolName string) (*WhyReport, error) {
	tool, ok := f.Know.Tools[toolName]
	if !ok {
		return nil, errors.Mark(errors.Newf("unknown tool: %s", toolName), faults.ErrUnknownTool)
	}

	report := &WhyReport{
		Tool:        toolName,
		Description: tool.Description,
		Provides:    tool.Provides,
	}

	if candidates, err := installer.Select(f.Know, f.Platform, toolName); err == nil {
		for _, c := range candidates {
			report.Installers = append(report.Installers, c.Installer)
		}
	}

	current, err := f.Store.Load()
	if err != nil {
		return nil, err
	}
	if fact, ok := current.Tools[toolName]; ok {
		report.Installed = true
		report.Version = fact.Version
	}
	return report, nil
}

// UpdateState classifies one tool in an update check.
type UpdateState string

const (
	UpToDate        UpdateState = "up to date"
	UpdateAvailable UpdateState = "update available"
	UpdateUnknown   UpdateState = "unknown"
)

// UpdateStatus is the read-only comparison of a fact record against the
// latest-version lookup.
type UpdateStatus struct {
	Tool      string
	Installed string
	Latest    string
	State     UpdateState
	Err       error
}

// CheckUpdates compares every named tool's recorded version against its
// installer's latest-version lookup. Lookups are network-bound, so the check
// fans out across tools and joins; it never mutates the fact store. An empty
// names slice checks everything installed.
func (f *Forge) CheckUpdates(ctx context.Context, names []string) ([]UpdateStatus, error) {
	current, err := f.Store.Load()
	if err != nil {
		return nil, err
	}

	if len(names) == 0 {
		for name := range current.Tools {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	statuses := make([]UpdateStatus, len(names))
	var wg sync.WaitGroup

	for i, name := range names {
		fact, ok := current.Tools[name]
		if !ok {
			statuses[i] = UpdateStatus{
				Tool: name, State: UpdateUnknown,
				Err: errors.Mark(errors.Newf("%s is not installed", name), faults.ErrNotInstalled),
			}
			continue
		}

		wg.Add(1)
		go func(i int, name string, fact facts.ToolFact) {
			defer wg.Done()
			statuses[i] = f.checkOne(ctx, name, fact)
		}(i, name, fact)
	}
	wg.Wait()

	return statuses, nil
}

func (f *Forge) checkOne(ctx context.Context, name string, fact facts.ToolFact) UpdateStatus {
	status := UpdateStatus{Tool: name, Installed: fact.Version, State: UpdateUnknown}

	def, ok := f.Know.Installers[fact.Installer]
	if !ok {
		status.Err = errors.Newf("installer %q is no longer declared", fact.Installer)
		return status
	}

	pkg := name
	if tool, ok := f.Know.Tools[name]; ok {
		if binding, ok := tool.Installers[fact.Installer]; ok && binding.Package != "" {
			pkg = binding.Package
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	latest, err := version.Latest(ctx, f.Client, f.Runner, pkg, def.VersionCheck)
	if err != nil {
		status.Err = err
		return status
	}
	status.Latest = latest

	switch {
	case latest == "" || latest == version.Unknown:
		status.State = UpdateUnknown
	case version.Outdated(fact.Version, latest):
		status.State = UpdateAvailable
	default:
		status.State = UpToDate
	}
	return status
}

// markDefault marks err with fallback unless it already carries one of the
// more specific taxonomy sentinels.
func markDefault(err error, fallback error) error {
	for _, sentinel := range []error{
		faults.ErrAssetNotFound, faults.ErrAssetAmbiguous, faults.ErrExtractionFailed,
		faults.ErrNetworkFailure, faults.ErrNoInstallerAvailable, faults.ErrStateCorrupt,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return errors.Mark(err, fallback)
}
