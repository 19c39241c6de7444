// Package version turns free-text command output and remote JSON answers
// into comparable version strings. All of it is best-effort telemetry for
// the fact store and the update check; a failed extraction never fails an
// otherwise successful operation.
package version

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"

	"forge/internal/faults"
	"forge/internal/installer"
	"forge/internal/knowledge"
)

// Unknown is recorded when no version could be extracted. The tool is still
// considered installed; extraction is telemetry, not a correctness gate.
const Unknown = "unknown"

// fallbackPatterns are tried in order when an installer declares no output
// pattern of its own. They cover plain semver, "Version: v1.2.3" forms, and
// the kubectl-style client version line.
var fallbackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+\.\d+\.\d+(?:-[a-zA-Z0-9.-]+)?)`),
	regexp.MustCompile(`[Vv]ersion:?\s*v?(\d+\.\d+\.\d+\S*)`),
	regexp.MustCompile(`[Cc]lient [Vv]ersion:?\s*v?(\d+\.\d+\.\d+\S*)`),
}

// Extract applies an installer's output pattern to captured output and
// returns the first capture group, or "" when nothing matches. An invalid
// pattern is treated as a miss; the registry is data, not code, and a typo
// there must not abort an install that already succeeded.
func Extract(output, pattern string) string {
	if pattern == "" {
		return ""
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return ""
	}
	m := re.FindStringSubmatch(output)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// ExtractAny tries the fallback pattern set against captured output.
func ExtractAny(output string) string {
	for _, re := range fallbackPatterns {
		if m := re.FindStringSubmatch(output); len(m) >= 2 {
			return m[1]
		}
	}
	return ""
}

// Latest resolves the newest available version of a package according to the
// installer's version-check descriptor. Method "command" re-runs a local
// query command; method "api" performs an HTTPS GET and extracts a field by
// dotted JSON path. The lookup never mutates any state. A nil descriptor
// means the installer cannot answer, which is not an error.
func Latest(ctx context.Context, client *http.Client, r installer.Runner, pkg string, check *knowledge.VersionCheck) (string, error) {
	if check == nil {
		return "", nil
	}

	switch strings.ToLower(check.Method) {
	case "command":
		if len(check.Command) == 0 {
			return "", nil
		}
		argv := make([]string, len(check.Command))
		for i, part := range check.Command {
			argv[i] = strings.ReplaceAll(part, "{package}", pkg)
		}
		out, err := r.Run(ctx, argv[0], argv[1:]...)
		if err != nil {
			return "", errors.Wrapf(err, "version check command for %s failed", pkg)
		}
		return ExtractAny(string(out)), nil

	case "api":
		if check.URL == "" {
			return "", nil
		}
		url := strings.ReplaceAll(check.URL, "{package}", pkg)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", errors.Wrap(err, "building version check request")
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", errors.Mark(
				errors.Wrapf(err, "version check for %s", pkg), faults.ErrNetworkFailure)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", errors.Mark(
				errors.Newf("version check for %s: HTTP %d", pkg, resp.StatusCode), faults.ErrNetworkFailure)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", errors.Mark(errors.Wrap(err, "reading version check response"), faults.ErrNetworkFailure)
		}
		return extractJSONPath(body, check.Path)

	default:
		return "", errors.Newf("unknown version check method: %s", check.Method)
	}
}

// extractJSONPath walks a dotted field path (e.g. "crate.max_version")
// through arbitrary JSON without assuming any schema beyond that path.
func extractJSONPath(body []byte, path string) (string, error) {
	if path == "" {
		return "", errors.New("version check api method requires a path")
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", errors.Wrap(err, "decoding version check JSON")
	}

	cur := doc
	for _, field := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return "", errors.Newf("version check path %q: %q is not an object", path, field)
		}
		cur, ok = obj[field]
		if !ok {
			return "", errors.Newf("version check path %q: field %q not found", path, field)
		}
	}

	s, ok := cur.(string)
	if !ok {
		return "", errors.Newf("version check path %q does not resolve to a string", path)
	}
	return s, nil
}

// Outdated reports whether latest differs from installed. Either side being
// empty or unknown means we cannot tell, which is treated as up to date;
// updates are never triggered on a guess.
func Outdated(installed, latest string) bool {
	if installed == "" || installed == Unknown || latest == "" || latest == Unknown {
		return false
	}
	return strings.TrimPrefix(installed, "v") != strings.TrimPrefix(latest, "v")
}
