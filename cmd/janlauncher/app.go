package main

import (
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/butler"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/color"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/inspect"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/install"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/patch"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/profile"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/store"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/telemetry"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/xdg"
	"github.com/janekdeveloper/JanLauncher-sub000/pkg/config"
	"github.com/janekdeveloper/JanLauncher-sub000/pkg/logger"
)

// app holds the engine wired from configuration for one command run.
type app struct {
	cfg       *config.Config
	log       *logger.SlogAdapter
	layout    game.Layout
	metrics   *telemetry.Metrics
	discovery *patch.Discovery
	profiles  *profile.FileStore
	orch      *install.Orchestrator
	theme     color.Theme
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.NewFileLogger(xdg.LogFile(), debugMode, traceMode)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create logger")
	}

	a, err := wire(cfg, log)
	if err != nil {
		_ = log.Close()

		return nil, err
	}

	return a, nil
}

func wire(cfg *config.Config, log *logger.SlogAdapter) (*app, error) {
	platform := game.CurrentPlatform()
	if err := platform.Validate(); err != nil {
		return nil, err
	}

	dataDir, err := xdg.ExpandPath(cfg.GetGame().DataDir)
	if err != nil {
		return nil, errors.Mark(err, game.ErrConfig)
	}

	if dataDir == "" {
		dataDir = xdg.DataDir()
	}

	layout := game.NewLayout(dataDir)
	metrics := telemetry.New()
	network := cfg.GetNetwork()

	source := patch.NewSource(
		network.GetPatchBaseURL(),
		platform,
		patch.WithHTTPClient(&http.Client{}),
		patch.WithProbeTimeout(network.GetTimeout()),
		patch.WithProbeRate(network.GetProbeRate(), network.GetProbeBurst()),
	)

	discovery := patch.NewDiscovery(
		source,
		patch.WithMissLimit(cfg.GetDiscovery().GetMissLimit()),
		patch.WithConcurrency(cfg.GetDiscovery().GetConcurrency()),
		patch.WithDiscoveryLogger(log),
		patch.WithDiscoveryMetrics(metrics),
	)

	downloader := patch.NewDownloader(
		source,
		layout,
		patch.WithDownloadTimeout(network.GetDownloadTimeout()),
		patch.WithDownloaderLogger(log),
		patch.WithDownloaderMetrics(metrics),
	)

	butlerPath, err := xdg.ExpandPath(cfg.GetPatcher().Path)
	if err != nil {
		return nil, errors.Mark(err, game.ErrConfig)
	}

	patcher, err := butler.New(
		layout,
		platform,
		cfg.GetPatcher().GetMinVersion(),
		butler.WithPath(butlerPath),
		butler.WithDownloadURL(cfg.GetPatcher().GetDownloadURL()),
		butler.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	profiles := profile.NewFileStore(layout.ProfilesFile())

	orch := install.New(
		layout,
		platform,
		discovery,
		downloader,
		patcher,
		install.WithStore(store.New(layout, store.WithLogger(log))),
		install.WithValidator(inspect.New(
			platform,
			inspect.WithMinSize(cfg.GetValidation().GetMinExecutableSize()),
		)),
		install.WithProfiles(profiles),
		install.WithMetrics(metrics),
		install.WithLogger(log),
		install.WithPreservePatterns(cfg.GetInstall().GetPreservePatterns()),
		install.WithDownloadAttempts(cfg.GetInstall().GetDownloadAttempts()),
		install.WithMaxFallbacks(cfg.GetInstall().GetMaxFallbacks()),
		install.WithStaleAfter(max(cfg.GetInstall().GetStaleAfter(), timeoutFlag)),
	)

	return &app{
		cfg:       cfg,
		log:       log,
		layout:    layout,
		metrics:   metrics,
		discovery: discovery,
		profiles:  profiles,
		orch:      orch,
		theme:     theme(),
	}, nil
}

// close exports metrics when requested and closes the log file.
func (a *app) close() {
	if err := a.metrics.WriteTextfile(metricsFile); err != nil {
		a.log.Error("failed to export metrics", "error", err)
	}

	_ = a.log.Close()
}

// branch returns the --branch value or the configured default.
func (a *app) branch(flag string) (game.Branch, error) {
	if flag == "" {
		flag = a.cfg.GetGame().GetDefaultBranch()
	}

	return game.ParseBranch(flag)
}

// activeSet returns "branch/id" keys for versions active in any profile.
func (a *app) activeSet() map[string]bool {
	active := make(map[string]bool)

	profiles, err := a.profiles.List()
	if err != nil {
		a.log.Error("failed to read profiles", "error", err)

		return active
	}

	for _, p := range profiles {
		for b, v := range p.Active {
			active[b.String()+"/"+v.ID()] = true
		}
	}

	return active
}
