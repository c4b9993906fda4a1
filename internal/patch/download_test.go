package patch_test

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/patch"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/patch/patchtest"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/telemetry"
)

var _ = Describe("Downloader", func() {
	var (
		ctx        context.Context
		platform   game.Platform
		server     *patchtest.Server
		layout     game.Layout
		downloader *patch.Downloader
	)

	BeforeEach(func() {
		ctx = context.Background()
		platform = game.Platform{OS: "windows", Arch: "amd64"}
		server = patchtest.NewServer(platform)
		DeferCleanup(server.Close)

		layout = game.NewLayout(GinkgoT().TempDir())
		downloader = patch.NewDownloader(
			patch.NewSource(server.URL, platform),
			layout,
			patch.WithDownloaderMetrics(telemetry.New()),
		)
	})

	cacheEntries := func() []string {
		entries, err := os.ReadDir(layout.CacheDir())
		if os.IsNotExist(err) {
			return nil
		}

		Expect(err).NotTo(HaveOccurred())

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}

		return names
	}

	It("downloads into the cache under the branch_prev_target name", func() {
		server.Add(game.BranchRelease, 2, 3, []byte("patch-2-3"))

		var lastReceived, lastTotal int64

		path, written, err := downloader.Fetch(ctx, game.BranchRelease, edge(2, 3), func(received, total int64) {
			lastReceived, lastTotal = received, total
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(written).To(Equal(int64(9)))

		Expect(filepath.Base(path)).To(Equal("release_2_3.pwr"))
		Expect(os.ReadFile(path)).To(Equal([]byte("patch-2-3")))
		Expect(lastReceived).To(Equal(int64(9)))
		Expect(lastTotal).To(Equal(int64(9)))
		Expect(cacheEntries()).To(ConsistOf("release_2_3.pwr"))
	})

	It("reuses a cached artifact of exactly the announced size without GET", func() {
		server.Add(game.BranchRelease, 0, 1, []byte("full-1"))

		_, written, err := downloader.Fetch(ctx, game.BranchRelease, edge(0, 1), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(written).To(Equal(int64(6)))

		server.ResetRequests()

		var reported int64

		_, written, err = downloader.Fetch(ctx, game.BranchRelease, edge(0, 1), func(received, _ int64) {
			reported = received
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(written).To(BeZero())
		Expect(reported).To(Equal(int64(6)))

		for _, r := range server.Requests() {
			Expect(r.Method).NotTo(Equal("GET"))
		}
	})

	It("replaces a cached artifact whose size is wrong", func() {
		server.Add(game.BranchRelease, 0, 1, []byte("full-1"))
		Expect(os.MkdirAll(layout.CacheDir(), 0o750)).To(Succeed())
		Expect(os.WriteFile(layout.ArtifactPath(game.BranchRelease, 0, 1), []byte("stale"), 0o600)).To(Succeed())

		path, _, err := downloader.Fetch(ctx, game.BranchRelease, edge(0, 1), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(os.ReadFile(path)).To(Equal([]byte("full-1")))
	})

	It("rejects a short download and removes the partial file", func() {
		server.AddTruncated(game.BranchRelease, 4, 5, 104857600, 52428800)

		_, _, err := downloader.Fetch(ctx, game.BranchRelease, edge(4, 5), nil)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, patch.ErrIntegrity)).To(BeTrue())

		var integrityErr *patch.IntegrityError
		Expect(errors.As(err, &integrityErr)).To(BeTrue())
		Expect(integrityErr.Expected).To(Equal(int64(104857600)))
		Expect(integrityErr.Actual).To(Equal(int64(52428800)))

		Expect(cacheEntries()).To(BeEmpty())
	})

	It("reports a missing artifact without touching the cache", func() {
		_, _, err := downloader.Fetch(ctx, game.BranchRelease, edge(0, 42), nil)
		Expect(errors.Is(err, patch.ErrNotFound)).To(BeTrue())
		Expect(cacheEntries()).To(BeEmpty())
	})
})

var _ = Describe("Source", func() {
	It("builds artifact URLs from platform, branch and edge", func() {
		source := patch.NewSource("https://game-patches.hytale.com/patches/", game.Platform{OS: "darwin", Arch: "arm64"})

		Expect(source.URL(game.BranchPreRelease, edge(3, 7))).
			To(Equal("https://game-patches.hytale.com/patches/darwin/arm64/pre-release/3/7.pwr"))
	})
})
