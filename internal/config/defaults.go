package config

import (
	"github.com/janekdeveloper/JanLauncher-sub000/internal/xdg"
	"github.com/janekdeveloper/JanLauncher-sub000/pkg/config"
)

// DefaultConfig returns a Config with all default values populated.
func DefaultConfig() *config.Config {
	probeRate := config.DefaultProbeRate
	maxFallbacks := config.DefaultMaxFallbacks

	return &config.Config{
		Version: config.CurrentConfigVersion,
		Game: &config.GameConfig{
			DataDir:       xdg.DataDir(),
			DefaultBranch: config.DefaultBranch,
		},
		Network: &config.NetworkConfig{
			PatchBaseURL:    config.DefaultPatchBaseURL,
			Timeout:         config.Duration(config.DefaultTimeout),
			DownloadTimeout: config.Duration(config.DefaultDownloadTimeout),
			ProbeRate:       &probeRate,
			ProbeBurst:      config.DefaultProbeBurst,
		},
		Discovery: &config.DiscoveryConfig{
			MissLimit:   config.DefaultMissLimit,
			Concurrency: config.DefaultConcurrency,
		},
		Patcher: &config.PatcherConfig{
			DownloadURL: config.DefaultPatcherURL,
			MinVersion:  config.DefaultPatcherMinVersion,
		},
		Install: &config.InstallConfig{
			DownloadAttempts: config.DefaultDownloadAttempts,
			MaxFallbacks:     &maxFallbacks,
			PreservePatterns: append([]string(nil), config.DefaultPreservePatterns...),
			StaleAfter:       config.Duration(config.DefaultStaleAfter),
		},
		Validation: &config.ValidationConfig{
			MinExecutableSize: config.DefaultMinExecutableSize,
		},
	}
}

// defaultsToMap converts the defaults to a map for koanf loading.
func defaultsToMap() map[string]any {
	return map[string]any{
		"version": config.CurrentConfigVersion,
		"game": map[string]any{
			"data_dir":       xdg.DataDir(),
			"default_branch": config.DefaultBranch,
		},
		"network": map[string]any{
			"patch_base_url":   config.DefaultPatchBaseURL,
			"timeout":          config.DefaultTimeout.String(),
			"download_timeout": config.DefaultDownloadTimeout.String(),
			"probe_rate":       config.DefaultProbeRate,
			"probe_burst":      config.DefaultProbeBurst,
		},
		"discovery": map[string]any{
			"miss_limit":  config.DefaultMissLimit,
			"concurrency": config.DefaultConcurrency,
		},
		"patcher": map[string]any{
			"path":         "",
			"download_url": config.DefaultPatcherURL,
			"min_version":  config.DefaultPatcherMinVersion,
		},
		"install": map[string]any{
			"download_attempts": config.DefaultDownloadAttempts,
			"max_fallbacks":     config.DefaultMaxFallbacks,
			"preserve_patterns": append([]string(nil), config.DefaultPreservePatterns...),
			"stale_after":       config.DefaultStaleAfter.String(),
		},
		"validation": map[string]any{
			"min_executable_size": config.DefaultMinExecutableSize,
		},
	}
}
