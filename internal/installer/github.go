package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/schollz/progressbar/v3"

	"forge/internal/faults"
	"forge/internal/logger"
	"forge/internal/platform"
)

const defaultAPIBase = "https://api.github.com"

// apiBase returns the releases-API root, overridable for tests and mirrors.
func apiBase() string {
	if base := strings.TrimSpace(os.Getenv("FORGE_API_BASE")); base != "" {
		return strings.TrimRight(base, "/")
	}
	return defaultAPIBase
}

// Release is the subset of the GitHub release JSON the engine consumes.
type Release struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// Discovery is the deterministic outcome of asset matching for one release.
type Discovery struct {
	Version     string // release tag with any leading "v" trimmed
	AssetName   string
	DownloadURL string
}

type scoredAsset struct {
	name  string
	url   string
	score int
}

// Discover queries the latest release of repo and matches exactly one asset
// against the platform. Zero matches is ErrAssetNotFound; more than one
// equally specific match is ErrAssetAmbiguous. The engine never guesses.
func Discover(ctx context.Context, client *http.Client, repo string, p platform.Platform) (Discovery, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", apiBase(), repo)
	logger.Debug("[DEBUG] Fetching release metadata from %s\n", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Discovery{}, errors.Wrap(err, "building release request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return Discovery{}, errors.Mark(
			errors.Wrapf(err, "fetching release for %s", repo), faults.ErrNetworkFailure)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("[WARN] Failed to close response body: %v\n", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return Discovery{}, errors.Mark(
			errors.Newf("release fetch for %s: HTTP %d", repo, resp.StatusCode), faults.ErrNetworkFailure)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return Discovery{}, errors.Mark(
			errors.Wrapf(err, "decoding release JSON for %s", repo), faults.ErrNetworkFailure)
	}
	logger.Debug("[DEBUG] Release %s with %d assets\n", release.TagName, len(release.Assets))

	var scored []scoredAsset
	for _, asset := range release.Assets {
		score, ok := scoreAsset(asset.Name, p)
		if !ok {
			continue
		}
		scored = append(scored, scoredAsset{name: asset.Name, url: asset.BrowserDownloadURL, score: score})
	}

	if len(scored) == 0 {
		names := make([]string, 0, len(release.Assets))
		for _, a := range release.Assets {
			names = append(names, a.Name)
		}
		return Discovery{}, errors.Mark(
			errors.Newf("no asset in %s release %s matches %s; assets: %s",
				repo, release.TagName, p, strings.Join(names, ", ")),
			faults.ErrAssetNotFound)
	}

	// Highest score first; ties on the top score mean the heuristic cannot
	// pick deterministically.
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > 1 && scored[0].score == scored[1].score {
		return Discovery{}, errors.Mark(
			errors.Newf("assets %q and %q match %s equally well in %s release %s",
				scored[0].name, scored[1].name, p, repo, release.TagName),
			faults.ErrAssetAmbiguous)
	}

	best := scored[0]
	logger.Debug("[DEBUG] Matched asset %s (score %d)\n", best.name, best.score)
	return Discovery{
		Version:     strings.TrimPrefix(release.TagName, "v"),
		AssetName:   best.name,
		DownloadURL: best.url,
	}, nil
}

// scoreAsset rates how well an asset name fits the platform. The boolean is
// false when the asset must never be picked: checksums, signatures, native
// package formats, source archives, or an asset that names a different OS
// family (no silent cross-OS fallback).
func scoreAsset(assetName string, p platform.Platform) (int, bool) {
	name := strings.ToLower(assetName)
	score := 0

	// Checksum and signature companions are metadata, not downloads.
	for _, ext := range []string{".sig", ".asc", ".sha256", ".sha512", ".md5", ".sbom", ".pem"} {
		if strings.HasSuffix(name, ext) {
			return 0, false
		}
	}
	if strings.Contains(name, "sha256sum") || strings.Contains(name, "checksums") {
		return 0, false
	}

	// Native package formats belong to their package managers.
	for _, ext := range []string{".deb", ".rpm", ".dmg", ".msi", ".apk"} {
		if strings.HasSuffix(name, ext) {
			return 0, false
		}
	}

	if strings.Contains(name, "source") || strings.Contains(name, "src") {
		return 0, false
	}

	// Assets that explicitly target another OS family are discarded before
	// our own alias check; "darwin" must never satisfy the "win" token.
	if namesOtherOS(name, p) {
		return 0, false
	}
	if containsAny(name, p.OSAliases()) {
		score += 10
	} else {
		// No OS token at all: possibly a universal binary. Keep, but rank
		// below anything that names our OS explicitly.
		score++
	}

	// Architecture matching.
	if containsAny(name, p.ArchAliases()) {
		score += 10
	} else if strings.Contains(name, "universal") || strings.Contains(name, "all") {
		score += 5
	}

	// Prefer archives over raw binaries; the extractor handles both.
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		score += 5
	case strings.HasSuffix(name, ".zip"):
		score += 4
	case strings.HasSuffix(name, ".tar.xz"):
		score += 3
	case strings.HasSuffix(name, ".tar.bz2"):
		score += 2
	}

	if strings.Contains(name, "debug") {
		score -= 10
	}

	// Shorter names tend to be the primary artifact.
	score -= len(name) / 20

	return score, true
}

func containsAny(name string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(name, t) {
			return true
		}
	}
	return false
}

// namesOtherOS reports whether the asset explicitly targets an OS family
// other than the platform's. Tokens match at word boundaries only, so bare
// "win" rejects "tool-win-x64.zip" without tripping on "darwin".
func namesOtherOS(name string, p platform.Platform) bool {
	if p.OS != "windows" && strings.HasSuffix(name, ".exe") {
		return true
	}
	others := map[string][]string{
		"linux":   {"linux"},
		"macos":   {"darwin", "macos", "osx"},
		"windows": {"windows", "win"},
	}
	for osFamily, tokens := range others {
		if osFamily == p.OS {
			continue
		}
		for _, tok := range tokens {
			if hasToken(name, tok) {
				return true
			}
		}
	}
	return false
}

// hasToken reports whether tok occurs in name at the start or right after a
// separator character.
func hasToken(name, tok string) bool {
	for i := 0; ; i++ {
		j := strings.Index(name[i:], tok)
		if j < 0 {
			return false
		}
		i += j
		if i == 0 || isSeparator(name[i-1]) {
			return true
		}
	}
}

func isSeparator(c byte) bool {
	return c == '-' || c == '_' || c == '.' || c == ' '
}

// Download streams an asset into destDir, showing byte progress. The caller
// owns cleanup of the returned path.
func Download(ctx context.Context, client *http.Client, url, destDir, assetName string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "building download request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "downloading %s", url), faults.ErrNetworkFailure)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("[WARN] Failed to close response body: %v\n", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Mark(
			errors.Newf("downloading %s: HTTP %d", url, resp.StatusCode), faults.ErrNetworkFailure)
	}

	destPath := filepath.Join(destDir, assetName)
	out, err := os.Create(destPath)
	if err != nil {
		return "", errors.Wrapf(err, "creating %s", destPath)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			logger.Warn("[WARN] Failed to close %s: %v\n", destPath, cerr)
		}
	}()

	bar := progressbar.DefaultBytes(resp.ContentLength, "  downloading "+assetName)
	if _, err := io.Copy(io.MultiWriter(out, bar), resp.Body); err != nil {
		// A half-written download is useless; remove it before reporting.
		os.Remove(destPath)
		return "", errors.Mark(errors.Wrapf(err, "writing %s", destPath), faults.ErrNetworkFailure)
	}
	return destPath, nil
}

// GitHubResult is what the releases-discovery strategy hands back to the
// orchestrator: the version from the release tag and the executables placed
// into the bin directory.
type GitHubResult struct {
	Version     string
	Executables []string
}

// InstallFromGitHub runs the whole releases-discovery pipeline for one
// candidate: discover, download, extract, place. Temporary artifacts are
// removed regardless of outcome.
func InstallFromGitHub(ctx context.Context, client *http.Client, c Candidate, provides []string, binDir string) (GitHubResult, error) {
	disc, err := Discover(ctx, client, c.Binding.Repo, c.Platform)
	if err != nil {
		return GitHubResult{}, err
	}

	tmpDir, err := os.MkdirTemp("", "forge-download-")
	if err != nil {
		return GitHubResult{}, errors.Wrap(err, "creating download directory")
	}
	defer func() {
		if rerr := os.RemoveAll(tmpDir); rerr != nil {
			logger.Warn("[WARN] Failed to clean up %s: %v\n", tmpDir, rerr)
		}
	}()

	archive, err := Download(ctx, client, disc.DownloadURL, tmpDir, disc.AssetName)
	if err != nil {
		return GitHubResult{}, err
	}

	executables, err := InstallAsset(archive, c.Tool, provides, binDir)
	if err != nil {
		return GitHubResult{}, err
	}

	return GitHubResult{Version: disc.Version, Executables: executables}, nil
}
