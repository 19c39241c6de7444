package installer

import (
	"regexp"
	"strings"

	"forge/internal/knowledge"
	"forge/internal/platform"
)

// ExpandTemplate substitutes the closed key set into one template fragment:
// {tool}, {package}, {repo}, {pattern}, {url}, {version}, plus the platform
// tokens {os}, {arch}, {target}. Substitution happens per argv element so
// tool-supplied strings never pass through a shell they were not written for.
func ExpandTemplate(tmpl, toolName string, binding knowledge.ToolInstaller, version string, p platform.Platform) string {
	return expand(tmpl, toolName, binding, version, p, func(s string) string { return s })
}

// ExpandPattern substitutes the same key set into an output_pattern regexp,
// quoting every value so a package name like "g++" stays a literal instead
// of invalidating the pattern.
func ExpandPattern(tmpl, toolName string, binding knowledge.ToolInstaller, version string, p platform.Platform) string {
	return expand(tmpl, toolName, binding, version, p, regexp.QuoteMeta)
}

func expand(tmpl, toolName string, binding knowledge.ToolInstaller, version string, p platform.Platform, quote func(string) string) string {
	pkg := binding.Package
	if pkg == "" {
		pkg = toolName
	}
	pattern := binding.Pattern
	if pattern == "" {
		pattern = "*"
	}
	if version == "" {
		version = "latest"
	}

	s := tmpl
	s = strings.ReplaceAll(s, "{tool}", quote(toolName))
	s = strings.ReplaceAll(s, "{package}", quote(pkg))
	s = strings.ReplaceAll(s, "{repo}", quote(binding.Repo))
	s = strings.ReplaceAll(s, "{pattern}", quote(pattern))
	s = strings.ReplaceAll(s, "{url}", quote(binding.URL))
	s = strings.ReplaceAll(s, "{version}", quote(version))
	// Platform token values come from closed tables and contain no regexp
	// metacharacters, so they need no quoting in either mode.
	return p.Expand(s)
}

// ExpandArgv expands every element of an argv template.
func ExpandArgv(tmpl []string, toolName string, binding knowledge.ToolInstaller, version string, p platform.Platform) []string {
	out := make([]string, len(tmpl))
	for i, part := range tmpl {
		out[i] = ExpandTemplate(part, toolName, binding, version, p)
	}
	return out
}
