package config_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/config"
)

var _ = Describe("Writer", func() {
	var (
		dir    string
		writer *config.Writer
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		writer = config.NewWriterWithPath(filepath.Join(dir, "janlauncher", "config.toml"))
	})

	It("writes TOML with a schema directive and the schema file", func() {
		Expect(writer.Exists()).To(BeFalse())
		Expect(writer.Write(config.DefaultConfig())).To(Succeed())
		Expect(writer.Exists()).To(BeTrue())

		data, err := os.ReadFile(writer.Path())
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.SplitN(string(data), "\n", 2)[0]).To(Equal("#:schema ./config.schema.json"))
		Expect(string(data)).To(ContainSubstring("[network]"))
		Expect(string(data)).To(MatchRegexp(`timeout = .30s.`))

		Expect(filepath.Join(dir, "janlauncher", "config.schema.json")).To(BeARegularFile())
	})

	It("round-trips through the loader", func() {
		cfg := config.DefaultConfig()
		cfg.Discovery.MissLimit = 9
		cfg.Install.PreservePatterns = []string{"**/UserData", "Server/worlds/**"}

		Expect(writer.Write(cfg)).To(Succeed())

		loaded, err := config.NewKoanfLoaderWithPath(writer.Path()).Load(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.GetDiscovery().GetMissLimit()).To(Equal(9))
		Expect(loaded.GetInstall().GetPreservePatterns()).To(Equal(cfg.Install.PreservePatterns))
		Expect(loaded.GetNetwork().GetTimeout()).To(Equal(cfg.GetNetwork().GetTimeout()))
	})

	It("refuses a nil config", func() {
		Expect(writer.Write(nil)).NotTo(Succeed())
	})
})
