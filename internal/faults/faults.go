// Package faults defines the failure taxonomy shared by the installer
// engine. Each sentinel names one failure class; call sites attach tool,
// installer, and captured command output with errors.Wrapf, and callers
// classify with errors.Is.
package faults

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrNoInstallerAvailable means no candidate installer is runnable on
	// this platform for the requested tool. Distinct from an installer that
	// ran and failed.
	ErrNoInstallerAvailable = errors.New("no installer available")

	// ErrInstallFailed means an installer ran but reported non-zero status.
	ErrInstallFailed = errors.New("install failed")

	// ErrUpdateFailed means an installer's update action reported non-zero status.
	ErrUpdateFailed = errors.New("update failed")

	// ErrUninstallFailed means an installer's uninstall action reported
	// non-zero status. Local bookkeeping is still cleaned up.
	ErrUninstallFailed = errors.New("uninstall failed")

	// ErrAssetNotFound means releases discovery found no asset matching the
	// current platform.
	ErrAssetNotFound = errors.New("no release asset matches this platform")

	// ErrAssetAmbiguous means releases discovery found more than one
	// equally specific asset and refused to guess.
	ErrAssetAmbiguous = errors.New("release asset match is ambiguous")

	// ErrExtractionFailed means a downloaded asset could not be unpacked,
	// or no executable matching the tool's provides names was found inside.
	ErrExtractionFailed = errors.New("asset extraction failed")

	// ErrNetworkFailure means a releases-API call, asset download, or remote
	// version check failed at the HTTP layer.
	ErrNetworkFailure = errors.New("network failure")

	// ErrConfigInvalid means the knowledge documents contain unresolvable
	// references. Raised at load time, never per operation.
	ErrConfigInvalid = errors.New("invalid knowledge configuration")

	// ErrStateCorrupt means the facts file exists but cannot be parsed.
	// Fatal at startup; never silently reset.
	ErrStateCorrupt = errors.New("facts file is corrupt")

	// ErrNotInstalled means the requested tool has no fact record.
	ErrNotInstalled = errors.New("tool is not installed")

	// ErrUnknownTool means the tool is not present in the knowledge base.
	ErrUnknownTool = errors.New("unknown tool")
)
