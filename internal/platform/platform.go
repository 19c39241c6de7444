// Package platform resolves the host into the normalized (os family, arch)
// pair used by installer selection and release-asset matching.
package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform identifies the host OS family and CPU architecture. Immutable for
// a process run; pass it explicitly, never re-detect mid-operation.
type Platform struct {
	OS   string // "linux", "macos", "windows"
	Arch string // "x86_64", "aarch64"
}

// Detect resolves the running host. Unsupported OS or architecture values
// are an error up front rather than a per-operation surprise later.
func Detect() (Platform, error) {
	var p Platform

	switch runtime.GOOS {
	case "linux":
		p.OS = "linux"
	case "darwin":
		p.OS = "macos"
	case "windows":
		p.OS = "windows"
	default:
		return Platform{}, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}

	switch runtime.GOARCH {
	case "amd64":
		p.Arch = "x86_64"
	case "arm64":
		p.Arch = "aarch64"
	default:
		return Platform{}, fmt.Errorf("unsupported architecture: %s", runtime.GOARCH)
	}

	return p, nil
}

// String returns the "os-arch" form used in log output.
func (p Platform) String() string {
	return p.OS + "-" + p.Arch
}

// Target returns the Rust-style target triple commonly embedded in release
// asset names.
func (p Platform) Target() string {
	switch p.OS + "/" + p.Arch {
	case "linux/x86_64":
		return "x86_64-unknown-linux-gnu"
	case "linux/aarch64":
		return "aarch64-unknown-linux-gnu"
	case "macos/x86_64":
		return "x86_64-apple-darwin"
	case "macos/aarch64":
		return "aarch64-apple-darwin"
	case "windows/x86_64":
		return "x86_64-pc-windows-msvc"
	case "windows/aarch64":
		return "aarch64-pc-windows-msvc"
	}
	return "unknown"
}

// Expand substitutes the platform tokens {os}, {arch} and {target} into a
// command or script template fragment.
func (p Platform) Expand(s string) string {
	s = strings.ReplaceAll(s, "{os}", p.OS)
	s = strings.ReplaceAll(s, "{arch}", p.Arch)
	s = strings.ReplaceAll(s, "{target}", p.Target())
	return s
}

// OSAliases returns the lowercase name tokens that identify this OS family
// in release asset names. The tables are enumerated explicitly so asset
// matching never relies on loose substring guessing.
func (p Platform) OSAliases() []string {
	switch p.OS {
	case "linux":
		return []string{"linux"}
	case "macos":
		return []string{"darwin", "macos", "osx"}
	case "windows":
		return []string{"windows", "win"}
	}
	return []string{p.OS}
}

// ArchAliases returns the lowercase name tokens that identify this
// architecture in release asset names.
func (p Platform) ArchAliases() []string {
	switch p.Arch {
	case "x86_64":
		return []string{"x86_64", "amd64", "x64", "x86-64"}
	case "aarch64":
		return []string{"aarch64", "arm64"}
	}
	return []string{p.Arch}
}
