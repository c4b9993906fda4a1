package config_test

import (
	"time"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/config"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	pkgConfig "github.com/janekdeveloper/JanLauncher-sub000/pkg/config"
)

var _ = Describe("Validator", func() {
	var validator *config.Validator

	BeforeEach(func() {
		validator = config.NewValidator()
	})

	It("accepts the defaults", func() {
		Expect(validator.Validate(config.DefaultConfig())).To(Succeed())
	})

	It("rejects a nil config", func() {
		Expect(errors.Is(validator.Validate(nil), config.ErrInvalidConfig)).To(BeTrue())
	})

	DescribeTable("rejects",
		func(mutate func(*pkgConfig.Config), sentinel error) {
			cfg := config.DefaultConfig()
			mutate(cfg)

			err := validator.Validate(cfg)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, config.ErrInvalidConfig)).To(BeTrue())
			Expect(errors.Is(err, game.ErrConfig)).To(BeTrue())

			if sentinel != nil {
				Expect(errors.Is(err, sentinel)).To(BeTrue(), "expected %v in %+v", sentinel, err)
			}
		},
		Entry("unknown default branch",
			func(c *pkgConfig.Config) { c.Game.DefaultBranch = "nightly" }, game.ErrConfig),
		Entry("non-http patch URL",
			func(c *pkgConfig.Config) { c.Network.PatchBaseURL = "ftp://patches" }, config.ErrInvalidURL),
		Entry("patch URL without host",
			func(c *pkgConfig.Config) { c.Network.PatchBaseURL = "https://" }, config.ErrInvalidURL),
		Entry("negative probe rate",
			func(c *pkgConfig.Config) { r := -1.0; c.Network.ProbeRate = &r }, config.ErrInvalidLimit),
		Entry("negative miss limit",
			func(c *pkgConfig.Config) { c.Discovery.MissLimit = -1 }, config.ErrInvalidLimit),
		Entry("unparsable butler version",
			func(c *pkgConfig.Config) { c.Patcher.MinVersion = "fifteen" }, nil),
		Entry("absolute preserve pattern",
			func(c *pkgConfig.Config) { c.Install.PreservePatterns = []string{"/etc/**"} }, config.ErrInvalidPattern),
		Entry("escaping preserve pattern",
			func(c *pkgConfig.Config) { c.Install.PreservePatterns = []string{"../saves"} }, config.ErrInvalidPattern),
		Entry("negative stale age",
			func(c *pkgConfig.Config) { c.Install.StaleAfter = pkgConfig.Duration(-time.Minute) }, config.ErrInvalidLimit),
		Entry("broken glob",
			func(c *pkgConfig.Config) { c.Install.PreservePatterns = []string{"Client/[UserData"} }, config.ErrInvalidPattern),
	)

	It("reports every problem at once", func() {
		cfg := config.DefaultConfig()
		cfg.Discovery.MissLimit = -1
		cfg.Install.DownloadAttempts = -2

		err := validator.Validate(cfg)
		Expect(err).To(MatchError(ContainSubstring("2 error(s)")))
	})
})
