package config

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/pkg/config"
)

var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	// It is also marked as game.ErrConfig so callers never retry it.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidURL is returned when a URL setting is malformed.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrInvalidLimit is returned when a numeric limit is out of range.
	ErrInvalidLimit = errors.New("invalid limit")

	// ErrInvalidPattern is returned when a preserve pattern is unusable.
	ErrInvalidPattern = errors.New("invalid preserve pattern")
)

// Validator validates configuration semantics.
type Validator struct{}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the entire configuration and reports every problem at once.
func (v *Validator) Validate(cfg *config.Config) error {
	if cfg == nil {
		return errors.Mark(errors.WithMessage(ErrInvalidConfig, "config is nil"), game.ErrConfig)
	}

	var problems []error

	problems = append(problems, v.validateGame(cfg.GetGame())...)
	problems = append(problems, v.validateNetwork(cfg.GetNetwork())...)
	problems = append(problems, v.validateDiscovery(cfg.GetDiscovery())...)
	problems = append(problems, v.validatePatcher(cfg.GetPatcher())...)
	problems = append(problems, v.validateInstall(cfg.GetInstall())...)

	if cfg.Validation != nil && cfg.Validation.MinExecutableSize < 0 {
		problems = append(problems, errors.Wrap(ErrInvalidLimit, "validation.min_executable_size must not be negative"))
	}

	if len(problems) == 0 {
		return nil
	}

	return errors.Mark(
		errors.Mark(
			errors.Wrapf(errors.Join(problems...), "validation failed with %d error(s)", len(problems)),
			ErrInvalidConfig,
		),
		game.ErrConfig,
	)
}

func (*Validator) validateGame(c *config.GameConfig) []error {
	var problems []error

	if c.DefaultBranch != "" {
		if _, err := game.ParseBranch(c.DefaultBranch); err != nil {
			problems = append(problems, errors.Wrap(err, "game.default_branch"))
		}
	}

	return problems
}

func (*Validator) validateNetwork(c *config.NetworkConfig) []error {
	var problems []error

	if c.PatchBaseURL != "" {
		if err := validateHTTPURL(c.PatchBaseURL); err != nil {
			problems = append(problems, errors.Wrap(err, "network.patch_base_url"))
		}
	}

	if c.ProbeRate != nil && *c.ProbeRate < 0 {
		problems = append(problems, errors.Wrap(ErrInvalidLimit, "network.probe_rate must not be negative"))
	}

	if c.ProbeBurst < 0 {
		problems = append(problems, errors.Wrap(ErrInvalidLimit, "network.probe_burst must not be negative"))
	}

	return problems
}

func (*Validator) validateDiscovery(c *config.DiscoveryConfig) []error {
	var problems []error

	if c.MissLimit < 0 {
		problems = append(problems, errors.Wrap(ErrInvalidLimit, "discovery.miss_limit must be at least 1"))
	}

	if c.Concurrency < 0 {
		problems = append(problems, errors.Wrap(ErrInvalidLimit, "discovery.concurrency must be at least 1"))
	}

	return problems
}

func (*Validator) validatePatcher(c *config.PatcherConfig) []error {
	var problems []error

	if c.DownloadURL != "" {
		if err := validateHTTPURL(c.DownloadURL); err != nil {
			problems = append(problems, errors.Wrap(err, "patcher.download_url"))
		}
	}

	if c.MinVersion != "" {
		if _, err := semver.NewVersion(c.MinVersion); err != nil {
			problems = append(problems, errors.Wrapf(err, "patcher.min_version %q", c.MinVersion))
		}
	}

	return problems
}

func (*Validator) validateInstall(c *config.InstallConfig) []error {
	var problems []error

	if c.DownloadAttempts < 0 {
		problems = append(problems, errors.Wrap(ErrInvalidLimit, "install.download_attempts must be at least 1"))
	}

	if c.MaxFallbacks != nil && *c.MaxFallbacks < 0 {
		problems = append(problems, errors.Wrap(ErrInvalidLimit, "install.max_fallbacks must not be negative"))
	}

	if c.StaleAfter < 0 {
		problems = append(problems, errors.Wrap(ErrInvalidLimit, "install.stale_after must not be negative"))
	}

	for _, pattern := range c.PreservePatterns {
		switch {
		case filepath.IsAbs(pattern) || strings.HasPrefix(pattern, "/"):
			problems = append(problems, errors.Wrapf(ErrInvalidPattern, "%q must be relative", pattern))
		case strings.Contains(pattern, ".."):
			problems = append(problems, errors.Wrapf(ErrInvalidPattern, "%q must not contain ..", pattern))
		case !doublestar.ValidatePattern(pattern):
			problems = append(problems, errors.Wrapf(ErrInvalidPattern, "%q is not a valid glob", pattern))
		}
	}

	return problems
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrapf(ErrInvalidURL, "%q: %v", raw, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Wrapf(ErrInvalidURL, "%q must use http or https", raw)
	}

	if u.Host == "" {
		return errors.Wrapf(ErrInvalidURL, "%q has no host", raw)
	}

	return nil
}
