// Package config provides configuration schema types for janlauncher.
package config

// CurrentConfigVersion is the latest config schema version.
const CurrentConfigVersion = 1

// Config represents the root configuration for janlauncher.
type Config struct {
	// Version is the config schema version. Defaults to 1 when omitted.
	Version int `json:"version,omitempty" koanf:"version" toml:"version,omitempty"`

	// Game contains the on-disk location of the launcher data root.
	Game *GameConfig `json:"game,omitempty" koanf:"game" toml:"game,omitempty"`

	// Network contains patch server and HTTP settings.
	Network *NetworkConfig `json:"network,omitempty" koanf:"network" toml:"network,omitempty"`

	// Discovery contains patch graph probing settings.
	Discovery *DiscoveryConfig `json:"discovery,omitempty" koanf:"discovery" toml:"discovery,omitempty"`

	// Patcher contains settings for the external patch-apply tool.
	Patcher *PatcherConfig `json:"patcher,omitempty" koanf:"patcher" toml:"patcher,omitempty"`

	// Install contains install orchestration settings.
	Install *InstallConfig `json:"install,omitempty" koanf:"install" toml:"install,omitempty"`

	// Validation contains installation validator settings.
	Validation *ValidationConfig `json:"validation,omitempty" koanf:"validation" toml:"validation,omitempty"`
}

// GetGame returns the game section, never nil.
func (c *Config) GetGame() *GameConfig {
	if c == nil || c.Game == nil {
		return &GameConfig{}
	}

	return c.Game
}

// GetNetwork returns the network section, never nil.
func (c *Config) GetNetwork() *NetworkConfig {
	if c == nil || c.Network == nil {
		return &NetworkConfig{}
	}

	return c.Network
}

// GetDiscovery returns the discovery section, never nil.
func (c *Config) GetDiscovery() *DiscoveryConfig {
	if c == nil || c.Discovery == nil {
		return &DiscoveryConfig{}
	}

	return c.Discovery
}

// GetPatcher returns the patcher section, never nil.
func (c *Config) GetPatcher() *PatcherConfig {
	if c == nil || c.Patcher == nil {
		return &PatcherConfig{}
	}

	return c.Patcher
}

// GetInstall returns the install section, never nil.
func (c *Config) GetInstall() *InstallConfig {
	if c == nil || c.Install == nil {
		return &InstallConfig{}
	}

	return c.Install
}

// GetValidation returns the validation section, never nil.
func (c *Config) GetValidation() *ValidationConfig {
	if c == nil || c.Validation == nil {
		return &ValidationConfig{}
	}

	return c.Validation
}
