package config_test

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/config"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
)

var _ = Describe("KoanfLoader", func() {
	var (
		dir  string
		path string
	)

	writeConfig := func(content string) {
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		path = filepath.Join(dir, "config.toml")

		GinkgoT().Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg-config"))
		GinkgoT().Setenv("XDG_DATA_HOME", filepath.Join(dir, "xdg-data"))
		GinkgoT().Setenv("JANLAUNCHER_DATA_DIR", "")
	})

	It("falls back to defaults when the global file is absent", func() {
		cfg, err := config.NewKoanfLoader().Load(nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.GetNetwork().GetPatchBaseURL()).To(Equal("https://game-patches.hytale.com/patches"))
		Expect(cfg.GetDiscovery().GetMissLimit()).To(Equal(5))
		Expect(cfg.GetInstall().GetPreservePatterns()).To(Equal([]string{"**/UserData"}))
		Expect(cfg.GetGame().DataDir).To(Equal(filepath.Join(dir, "xdg-data", "janlauncher")))
	})

	It("fails when an explicit file is missing", func() {
		_, err := config.NewKoanfLoaderWithPath(path).Load(nil)
		Expect(errors.Is(err, config.ErrConfigNotFound)).To(BeTrue())
	})

	It("layers file values over defaults", func() {
		writeConfig(`
[network]
patch_base_url = "http://mirror.local/patches"
timeout = "10s"

[discovery]
miss_limit = 3
`)

		cfg, err := config.NewKoanfLoaderWithPath(path).Load(nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.GetNetwork().GetPatchBaseURL()).To(Equal("http://mirror.local/patches"))
		Expect(cfg.GetNetwork().GetTimeout()).To(Equal(10 * time.Second))
		Expect(cfg.GetNetwork().GetDownloadTimeout()).To(Equal(30 * time.Minute))
		Expect(cfg.GetDiscovery().GetMissLimit()).To(Equal(3))
		Expect(cfg.GetDiscovery().GetConcurrency()).To(Equal(4))
	})

	It("lets environment variables override the file", func() {
		writeConfig("[discovery]\nmiss_limit = 3\n")
		GinkgoT().Setenv("JANLAUNCHER_DISCOVERY_MISS_LIMIT", "7")
		GinkgoT().Setenv("JANLAUNCHER_INSTALL_PRESERVE_PATTERNS", "**/UserData, Server/worlds")
		GinkgoT().Setenv("JANLAUNCHER_NETWORK_PROBE_RATE", "0")

		cfg, err := config.NewKoanfLoaderWithPath(path).Load(nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.GetDiscovery().GetMissLimit()).To(Equal(7))
		Expect(cfg.GetInstall().GetPreservePatterns()).To(Equal([]string{"**/UserData", "Server/worlds"}))
		Expect(cfg.GetNetwork().GetProbeRate()).To(BeZero())
	})

	It("ignores variables that are set but empty", func() {
		writeConfig("[discovery]\nmiss_limit = 3\n")
		GinkgoT().Setenv("JANLAUNCHER_NETWORK_PATCH_BASE_URL", "")
		GinkgoT().Setenv("JANLAUNCHER_DISCOVERY_MISS_LIMIT", "")

		cfg, err := config.NewKoanfLoaderWithPath(path).Load(nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.GetNetwork().PatchBaseURL).To(Equal("https://game-patches.hytale.com/patches"))
		Expect(cfg.GetDiscovery().GetMissLimit()).To(Equal(3))
		Expect(cfg.GetGame().DataDir).To(Equal(filepath.Join(dir, "xdg-data", "janlauncher")))
	})

	It("maps JANLAUNCHER_DATA_DIR to the game data root", func() {
		GinkgoT().Setenv("JANLAUNCHER_DATA_DIR", "/srv/janlauncher")

		cfg, err := config.NewKoanfLoader().Load(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.GetGame().DataDir).To(Equal("/srv/janlauncher"))
	})

	It("gives CLI flags the last word", func() {
		GinkgoT().Setenv("JANLAUNCHER_GAME_DATA_DIR", "/from/env")

		cfg, err := config.NewKoanfLoader().Load(map[string]any{
			"data-dir":       "/from/flag",
			"patch-base-url": "https://cdn.example.com/p",
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.GetGame().DataDir).To(Equal("/from/flag"))
		Expect(cfg.GetNetwork().GetPatchBaseURL()).To(Equal("https://cdn.example.com/p"))
	})

	It("rejects world-writable files", func() {
		writeConfig("")
		Expect(os.Chmod(path, 0o666)).To(Succeed())

		_, err := config.NewKoanfLoaderWithPath(path).Load(nil)
		Expect(errors.Is(err, config.ErrInvalidPermissions)).To(BeTrue())
	})

	It("reports invalid values as config errors", func() {
		writeConfig("[game]\ndefault_branch = \"nightly\"\n")

		_, err := config.NewKoanfLoaderWithPath(path).Load(nil)
		Expect(errors.Is(err, game.ErrConfig)).To(BeTrue())
	})

	It("loads invalid files without validation for inspection", func() {
		writeConfig("[game]\ndefault_branch = \"nightly\"\n")

		cfg, err := config.NewKoanfLoaderWithPath(path).LoadWithoutValidation(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.GetGame().DefaultBranch).To(Equal("nightly"))
	})
})
