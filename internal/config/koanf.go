// Package config provides internal configuration loading and processing.
package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	tomlparser "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/xdg"
	"github.com/janekdeveloper/JanLauncher-sub000/pkg/config"
)

var (
	// ErrInvalidPermissions is returned when config file has insecure permissions.
	ErrInvalidPermissions = errors.New("config file has insecure permissions")

	// ErrConfigNotFound is returned when an explicitly requested config file is missing.
	ErrConfigNotFound = errors.New("configuration file not found")
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "JANLAUNCHER_"

// KoanfLoader handles configuration loading from multiple sources using koanf.
// Precedence order (highest to lowest):
// 1. CLI Flags
// 2. Environment Variables (JANLAUNCHER_*)
// 3. Global Config ($XDG_CONFIG_HOME/janlauncher/config.toml or --config)
// 4. Defaults
type KoanfLoader struct {
	k          *koanf.Koanf
	configPath string
	explicit   bool
}

// NewKoanfLoader creates a loader reading the global config file.
func NewKoanfLoader() *KoanfLoader {
	return &KoanfLoader{
		k:          koanf.New("."),
		configPath: xdg.GlobalConfigFile(),
	}
}

// NewKoanfLoaderWithPath creates a loader reading the config file at path.
// A missing file at an explicit path is an error.
func NewKoanfLoaderWithPath(path string) *KoanfLoader {
	return &KoanfLoader{
		k:          koanf.New("."),
		configPath: path,
		explicit:   true,
	}
}

// Load loads configuration from all sources and validates it.
func (l *KoanfLoader) Load(flags map[string]any) (*config.Config, error) {
	cfg, err := l.LoadWithoutValidation(flags)
	if err != nil {
		return nil, err
	}

	if err := NewValidator().Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}

// LoadWithoutValidation loads configuration without running validation.
// Used by "config show" so a broken file can still be inspected.
func (l *KoanfLoader) LoadWithoutValidation(flags map[string]any) (*config.Config, error) {
	l.k = koanf.New(".")

	if err := l.k.Load(confmap.Provider(defaultsToMap(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	if err := l.loadTOMLFile(l.configPath); err != nil {
		switch {
		case !os.IsNotExist(err):
			return nil, errors.Wrapf(err, "failed to load config %s", l.configPath)
		case l.explicit:
			return nil, errors.Wrapf(ErrConfigNotFound, "%s", l.configPath)
		}
	}

	envOpt := env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envTransform,
	}

	if err := l.k.Load(env.Provider(".", envOpt), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load env vars")
	}

	if len(flags) > 0 {
		if err := l.k.Load(confmap.Provider(flagsToConfig(flags), "."), nil); err != nil {
			return nil, errors.Wrap(err, "failed to load flags")
		}
	}

	var cfg config.Config
	if err := l.k.UnmarshalWithConf("", &cfg, unmarshalConf(&cfg)); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	return &cfg, nil
}

// loadTOMLFile loads a TOML configuration file, rejecting world-writable files.
func (l *KoanfLoader) loadTOMLFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if info.Mode().Perm()&0o002 != 0 {
		return errors.Wrapf(
			ErrInvalidPermissions,
			"%s is world-writable (mode: %s)",
			path,
			info.Mode().Perm(),
		)
	}

	return l.k.Load(file.Provider(path), tomlparser.Parser())
}

// envTransform maps environment variable names to config paths. The first
// segment names the section, the rest is the key:
// JANLAUNCHER_NETWORK_PATCH_BASE_URL → network.patch_base_url.
// JANLAUNCHER_DATA_DIR is shared with internal/xdg and maps to game.data_dir.
// Variables that are set but empty are skipped so they do not blank defaults.
func envTransform(key, value string) (string, any) {
	if value == "" {
		return "", nil
	}

	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))

	if key == "data_dir" {
		return "game.data_dir", value
	}

	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key, value
	}

	if section == "install" && rest == "preserve_patterns" {
		return "install.preserve_patterns", splitList(value)
	}

	return section + "." + rest, value
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}

// flagsToConfig converts CLI flags to a configuration map.
func flagsToConfig(flags map[string]any) map[string]any {
	result := make(map[string]any)

	for key, value := range flags {
		switch key {
		case "data-dir":
			if s, ok := value.(string); ok && s != "" {
				ensureMapKey(result, "game")["data_dir"] = s
			}

		case "patch-base-url":
			if s, ok := value.(string); ok && s != "" {
				ensureMapKey(result, "network")["patch_base_url"] = s
			}

		case "butler":
			if s, ok := value.(string); ok && s != "" {
				ensureMapKey(result, "patcher")["path"] = s
			}
		}
	}

	return result
}

// ensureMapKey ensures a key exists as a map and returns it.
func ensureMapKey(cfg map[string]any, key string) map[string]any {
	if _, ok := cfg[key]; !ok {
		cfg[key] = make(map[string]any)
	}

	result, _ := cfg[key].(map[string]any)

	return result
}

// ConfigPath returns the config file this loader reads.
func (l *KoanfLoader) ConfigPath() string {
	return l.configPath
}

// HasConfigFile reports whether the config file exists.
func (l *KoanfLoader) HasConfigFile() bool {
	info, err := os.Stat(l.configPath)

	return err == nil && !info.IsDir()
}
