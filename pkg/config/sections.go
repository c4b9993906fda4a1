package config

import "time"

// Default values applied when a field is left empty.
const (
	DefaultBranch            = "release"
	DefaultPatchBaseURL      = "https://game-patches.hytale.com/patches"
	DefaultTimeout           = 30 * time.Second
	DefaultDownloadTimeout   = 30 * time.Minute
	DefaultProbeRate         = 20.0
	DefaultProbeBurst        = 4
	DefaultMissLimit         = 5
	DefaultConcurrency       = 4
	DefaultPatcherURL        = "https://broth.itch.zone/butler/{os}-{arch}/LATEST/archive/default"
	DefaultPatcherMinVersion = "15.0.0"
	DefaultDownloadAttempts  = 2
	DefaultMaxFallbacks      = 1
	DefaultStaleAfter        = 6 * time.Hour
	DefaultMinExecutableSize = 1 << 20
)

// DefaultPreservePatterns lists the subtrees kept across reinstalls.
var DefaultPreservePatterns = []string{"**/UserData"}

// GameConfig locates the launcher data root.
type GameConfig struct {
	// DataDir is the launcher data root holding game/, tools/ and profiles.json.
	// Default: $XDG_DATA_HOME/janlauncher
	DataDir string `json:"data_dir,omitempty" koanf:"data_dir" toml:"data_dir,omitempty"`

	// DefaultBranch is used by commands when --branch is omitted. Default: "release"
	DefaultBranch string `json:"default_branch,omitempty" koanf:"default_branch" toml:"default_branch,omitempty"`
}

// GetDefaultBranch returns the branch commands fall back to.
func (c *GameConfig) GetDefaultBranch() string {
	if c.DefaultBranch == "" {
		return DefaultBranch
	}

	return c.DefaultBranch
}

// NetworkConfig configures access to the patch server.
type NetworkConfig struct {
	// PatchBaseURL is the root of {os}/{arch}/{branch}/{prev}/{target}.pwr.
	PatchBaseURL string `json:"patch_base_url,omitempty" koanf:"patch_base_url" toml:"patch_base_url,omitempty"`

	// Timeout bounds HEAD probes. Default: "30s"
	Timeout Duration `json:"timeout,omitempty" koanf:"timeout" toml:"timeout,omitempty"`

	// DownloadTimeout bounds a single artifact download. Default: "30m"
	DownloadTimeout Duration `json:"download_timeout,omitempty" koanf:"download_timeout" toml:"download_timeout,omitempty"`

	// ProbeRate is the number of discovery probes per second. 0 disables throttling.
	ProbeRate *float64 `json:"probe_rate,omitempty" koanf:"probe_rate" toml:"probe_rate,omitempty"`

	// ProbeBurst is the limiter burst size.
	ProbeBurst int `json:"probe_burst,omitempty" koanf:"probe_burst" toml:"probe_burst,omitempty"`
}

// GetPatchBaseURL returns the patch base URL without a trailing slash.
func (c *NetworkConfig) GetPatchBaseURL() string {
	if c.PatchBaseURL == "" {
		return DefaultPatchBaseURL
	}

	return trimSlash(c.PatchBaseURL)
}

// GetTimeout returns the probe timeout.
func (c *NetworkConfig) GetTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}

	return c.Timeout.ToDuration()
}

// GetDownloadTimeout returns the per-download timeout.
func (c *NetworkConfig) GetDownloadTimeout() time.Duration {
	if c.DownloadTimeout <= 0 {
		return DefaultDownloadTimeout
	}

	return c.DownloadTimeout.ToDuration()
}

// GetProbeRate returns probes per second, 0 meaning unlimited.
func (c *NetworkConfig) GetProbeRate() float64 {
	if c.ProbeRate == nil {
		return DefaultProbeRate
	}

	return *c.ProbeRate
}

// GetProbeBurst returns the limiter burst.
func (c *NetworkConfig) GetProbeBurst() int {
	if c.ProbeBurst <= 0 {
		return DefaultProbeBurst
	}

	return c.ProbeBurst
}

// DiscoveryConfig configures patch graph probing.
type DiscoveryConfig struct {
	// MissLimit is the number of consecutive misses that ends a sweep. Default: 5
	MissLimit int `json:"miss_limit,omitempty" koanf:"miss_limit" toml:"miss_limit,omitempty"`

	// Concurrency is the number of incremental rows probed at once. Default: 4
	Concurrency int `json:"concurrency,omitempty" koanf:"concurrency" toml:"concurrency,omitempty"`
}

// GetMissLimit returns the consecutive-miss stop threshold.
func (c *DiscoveryConfig) GetMissLimit() int {
	if c.MissLimit <= 0 {
		return DefaultMissLimit
	}

	return c.MissLimit
}

// GetConcurrency returns the incremental sweep concurrency.
func (c *DiscoveryConfig) GetConcurrency() int {
	if c.Concurrency <= 0 {
		return DefaultConcurrency
	}

	return c.Concurrency
}

// PatcherConfig configures the butler patch-apply tool.
type PatcherConfig struct {
	// Path is an explicit butler binary. Empty means provision automatically.
	Path string `json:"path,omitempty" koanf:"path" toml:"path,omitempty"`

	// DownloadURL is the archive URL template; {os} and {arch} are substituted.
	DownloadURL string `json:"download_url,omitempty" koanf:"download_url" toml:"download_url,omitempty"`

	// MinVersion is the lowest accepted butler version. Default: "15.0.0"
	MinVersion string `json:"min_version,omitempty" koanf:"min_version" toml:"min_version,omitempty"`
}

// GetDownloadURL returns the archive URL template.
func (c *PatcherConfig) GetDownloadURL() string {
	if c.DownloadURL == "" {
		return DefaultPatcherURL
	}

	return c.DownloadURL
}

// GetMinVersion returns the minimum butler version.
func (c *PatcherConfig) GetMinVersion() string {
	if c.MinVersion == "" {
		return DefaultPatcherMinVersion
	}

	return c.MinVersion
}

// InstallConfig configures install orchestration.
type InstallConfig struct {
	// DownloadAttempts is how many times an artifact failing integrity checks is fetched. Default: 2
	DownloadAttempts int `json:"download_attempts,omitempty" koanf:"download_attempts" toml:"download_attempts,omitempty"`

	// MaxFallbacks is how many full reinstalls may follow a failed incremental apply. Default: 1
	MaxFallbacks *int `json:"max_fallbacks,omitempty" koanf:"max_fallbacks" toml:"max_fallbacks,omitempty"`

	// PreservePatterns are doublestar globs, relative to the installation root,
	// of subtrees carried over into the new installation.
	PreservePatterns []string `json:"preserve_patterns,omitempty" koanf:"preserve_patterns" toml:"preserve_patterns,omitempty"`

	// StaleAfter is the age after which recovery treats staging trees and swap
	// backups as abandoned. It must exceed the longest install. Default: 6h
	StaleAfter Duration `json:"stale_after,omitempty" koanf:"stale_after" toml:"stale_after,omitempty"`
}

// GetDownloadAttempts returns the download attempt count.
func (c *InstallConfig) GetDownloadAttempts() int {
	if c.DownloadAttempts <= 0 {
		return DefaultDownloadAttempts
	}

	return c.DownloadAttempts
}

// GetMaxFallbacks returns the fallback bound.
func (c *InstallConfig) GetMaxFallbacks() int {
	if c.MaxFallbacks == nil || *c.MaxFallbacks < 0 {
		return DefaultMaxFallbacks
	}

	return *c.MaxFallbacks
}

// GetStaleAfter returns the recovery grace period.
func (c *InstallConfig) GetStaleAfter() time.Duration {
	if c.StaleAfter <= 0 {
		return DefaultStaleAfter
	}

	return c.StaleAfter.ToDuration()
}

// GetPreservePatterns returns the user data patterns.
func (c *InstallConfig) GetPreservePatterns() []string {
	if len(c.PreservePatterns) == 0 {
		return DefaultPreservePatterns
	}

	return c.PreservePatterns
}

// ValidationConfig configures the installation validator.
type ValidationConfig struct {
	// MinExecutableSize is the smallest accepted client executable in bytes. Default: 1 MiB
	MinExecutableSize int64 `json:"min_executable_size,omitempty" koanf:"min_executable_size" toml:"min_executable_size,omitempty"`
}

// GetMinExecutableSize returns the executable size floor.
func (c *ValidationConfig) GetMinExecutableSize() int64 {
	if c.MinExecutableSize <= 0 {
		return DefaultMinExecutableSize
	}

	return c.MinExecutableSize
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}

	return s
}
