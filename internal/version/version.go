// Package version provides centralized version management for tracebench.
// It supports semantic versioning, build-time injection, and version checks
// of the external tools a run depends on.
package version

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Build information that can be set at compile time via -ldflags
var (
	// Version is the semantic version of the application
	Version = "0.3.0"

	// GitCommit is the git commit hash when the binary was built
	GitCommit = "unknown"

	// BuildDate is the date when the binary was built
	BuildDate = "unknown"
)

// Info represents comprehensive version information
type Info struct {
	Version   string          `json:"version"`
	GitCommit string          `json:"gitCommit"`
	BuildDate string          `json:"buildDate"`
	GoVersion string          `json:"goVersion"`
	Platform  string          `json:"platform"`
	SemVer    *semver.Version `json:"-"`
}

// GetVersion returns the current version string
func GetVersion() string {
	return Version
}

// GetInfo returns comprehensive version information
func GetInfo() (*Info, error) {
	sv, err := semver.NewVersion(Version)
	if err != nil {
		return nil, fmt.Errorf("invalid semantic version '%s': %w", Version, err)
	}

	return &Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		SemVer:    sv,
	}, nil
}

// GetFormattedVersion returns a one-line version string
func GetFormattedVersion() string {
	info, err := GetInfo()
	if err != nil {
		return fmt.Sprintf("tracebench v%s (invalid version)", Version)
	}

	parts := []string{fmt.Sprintf("tracebench v%s", info.Version)}

	if info.GitCommit != "unknown" && info.GitCommit != "" {
		shortCommit := info.GitCommit
		if len(shortCommit) > 7 {
			shortCommit = shortCommit[:7]
		}
		parts = append(parts, fmt.Sprintf("commit %s", shortCommit))
	}

	if info.BuildDate != "unknown" && info.BuildDate != "" {
		parts = append(parts, fmt.Sprintf("built %s", info.BuildDate))
	}

	return strings.Join(parts, ", ")
}

// GetDetailedVersion returns detailed version information for debugging
func GetDetailedVersion() string {
	info, err := GetInfo()
	if err != nil {
		return fmt.Sprintf("tracebench v%s (error: %v)", Version, err)
	}

	lines := []string{
		fmt.Sprintf("tracebench v%s", info.Version),
		fmt.Sprintf("Git Commit: %s", info.GitCommit),
		fmt.Sprintf("Build Date: %s", info.BuildDate),
	}
	if meta := info.SemVer.Metadata(); meta != "" {
		lines = append(lines, fmt.Sprintf("Build Metadata: %s", meta))
	}
	lines = append(lines, fmt.Sprintf("Go Version: %s", info.GoVersion))
	lines = append(lines, fmt.Sprintf("Platform: %s", info.Platform))

	return strings.Join(lines, "\n")
}

// ValidateVersion validates that the current version is a valid semantic version
func ValidateVersion() error {
	_, err := semver.NewVersion(Version)
	if err != nil {
		return fmt.Errorf("invalid semantic version '%s': %w", Version, err)
	}
	return nil
}

// IsDevelopment returns true if this appears to be a development build
func IsDevelopment() bool {
	return GitCommit == "unknown" || BuildDate == "unknown"
}

// CompareVersions compares two version strings and returns:
// -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2
func CompareVersions(v1, v2 string) (int, error) {
	sv1, err := semver.NewVersion(v1)
	if err != nil {
		return 0, fmt.Errorf("invalid version v1 '%s': %w", v1, err)
	}

	sv2, err := semver.NewVersion(v2)
	if err != nil {
		return 0, fmt.Errorf("invalid version v2 '%s': %w", v2, err)
	}

	return sv1.Compare(sv2), nil
}

// GetBuildTime returns the build time as a time.Time if parseable
func GetBuildTime() (time.Time, error) {
	if BuildDate == "unknown" || BuildDate == "" {
		return time.Time{}, fmt.Errorf("build date not available")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, BuildDate); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse build date '%s'", BuildDate)
}

var toolVersionPattern = regexp.MustCompile(`\b\d+\.\d+(\.\d+)?([-+][0-9A-Za-z.+-]*)?\b`)

// ParseToolVersion extracts the first version number from the --version
// output of an external tool, e.g. "lttng (LTTng Trace Control) 2.13.9 - Nordicité".
func ParseToolVersion(output string) (*semver.Version, error) {
	match := toolVersionPattern.FindString(output)
	if match == "" {
		return nil, fmt.Errorf("no version number in %q", strings.TrimSpace(output))
	}
	sv, err := semver.NewVersion(match)
	if err != nil {
		return nil, fmt.Errorf("invalid tool version '%s': %w", match, err)
	}
	return sv, nil
}

// RequireToolVersion checks the --version output of tool against constraint,
// e.g. ">= 2.10".
func RequireToolVersion(tool, output, constraint string) (*semver.Version, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, fmt.Errorf("invalid version constraint '%s': %w", constraint, err)
	}
	sv, err := ParseToolVersion(output)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tool, err)
	}
	if !c.Check(sv) {
		return sv, fmt.Errorf("%s %s does not satisfy %s", tool, sv, constraint)
	}
	return sv, nil
}
