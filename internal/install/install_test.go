package install_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/butler"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/inspect"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/install"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/patch"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/patch/patchtest"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/profile"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/telemetry"
)

const branch = game.BranchRelease

var (
	ctx      context.Context
	server   *patchtest.Server
	layout   game.Layout
	applier  *fakeApplier
	profiles *profile.FileStore
	metrics  *telemetry.Metrics
	events   []install.Event
)

var _ = BeforeEach(func() {
	ctx = context.Background()
	server = patchtest.NewServer(testPlatform)
	DeferCleanup(server.Close)

	layout = game.NewLayout(GinkgoT().TempDir())
	applier = &fakeApplier{}
	profiles = profile.NewFileStore(layout.ProfilesFile())
	metrics = telemetry.New()
	events = nil
})

func newOrchestrator(opts ...install.Option) *install.Orchestrator {
	source := patch.NewSource(server.URL, testPlatform)
	discovery := patch.NewDiscovery(source, patch.WithMissLimit(3), patch.WithConcurrency(2))
	downloader := patch.NewDownloader(source, layout)

	base := []install.Option{
		install.WithValidator(inspect.New(testPlatform, inspect.WithMinSize(testMinSize))),
		install.WithProfiles(profiles),
		install.WithMetrics(metrics),
	}

	return install.New(layout, testPlatform, discovery, downloader, applier, append(base, opts...)...)
}

func request(v game.Version) install.Request {
	return install.Request{Branch: branch, Version: v}
}

func record(ev install.Event) {
	events = append(events, ev)
}

func stages() []install.Stage {
	var out []install.Stage
	for _, ev := range events {
		out = append(out, ev.Stage)
	}

	return out
}

func publish(mode string, prev, target uint64) {
	server.Add(branch, prev, target, body(mode, prev, target))
}

func mustInstall(o *install.Orchestrator, req install.Request) *install.Result {
	res, err := o.Install(ctx, req, record)
	Expect(err).NotTo(HaveOccurred())

	return res
}

func isValid(dir string) bool {
	return inspect.New(testPlatform, inspect.WithMinSize(testMinSize)).IsValid(dir)
}

var _ = Describe("Install", func() {
	Describe("full install", func() {
		It("installs, records and cleans up staging", func() {
			publish("ok", 0, 1)
			publish("ok", 0, 3)

			o := newOrchestrator()
			res := mustInstall(o, request(3))

			live := layout.VersionDir(branch, 3)
			Expect(res.Dir).To(Equal(live))
			Expect(res.Plan.FullInstall()).To(BeTrue())
			Expect(res.Plan.FellBack).To(BeFalse())
			Expect(res.BytesDownloaded).To(Equal(int64(len(body("ok", 0, 3)))))
			Expect(applier.Applied()).To(Equal([]string{"0->3"}))
			Expect(readBuild(live)).To(Equal("3"))

			rec, err := o.Store().ReadMetadata(branch, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.SizeBytes).To(BeNumerically(">", testMinSize))

			installed, err := o.Installed(branch)
			Expect(err).NotTo(HaveOccurred())
			Expect(installed).To(HaveLen(1))

			Expect(dirEntries(layout.StagingDir())).To(BeEmpty())
			Expect(stages()).To(ContainElements(
				install.StageResolvingPath,
				install.StageStaging,
				install.StageDownloading,
				install.StageApplying,
				install.StageValidating,
				install.StageFinalizing,
				install.StageCommitted,
			))
			Expect(events).To(ContainElement(install.Event{
				Stage: install.StageDownloading, Message: "patch 1/1 0->3", Percent: 100,
			}))
			Expect(testutil.GatherAndCount(metrics.Registry(), "janlauncher_installs_total")).To(Equal(1))
		})

		It("records the active version of the requesting profile", func() {
			publish("ok", 0, 2)

			req := request(2)
			req.Profile = "default"
			mustInstall(newOrchestrator(), req)

			v, ok, err := profiles.ActiveVersion("default", branch)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(game.Version(2)))
		})

		It("treats a failing base patch as fatal", func() {
			publish("fail", 0, 2)

			_, err := newOrchestrator().Install(ctx, request(2), record)
			Expect(errors.Is(err, butler.ErrPatchApply)).To(BeTrue())
			Expect(applier.Applied()).To(Equal([]string{"0->2"}))
			Expect(stages()).NotTo(ContainElement(install.StageRollingBack))
			Expect(stages()).To(ContainElement(install.StageFailed))
			Expect(layout.VersionDir(branch, 2)).NotTo(BeADirectory())
		})
	})

	Describe("idempotence", func() {
		BeforeEach(func() {
			publish("ok", 0, 4)
		})

		It("does nothing for an installed and valid version", func() {
			o := newOrchestrator()
			mustInstall(o, request(4))

			server.ResetRequests()
			ensures := applier.Ensures()

			res := mustInstall(o, request(4))
			Expect(res.AlreadyInstalled).To(BeTrue())
			Expect(server.RequestCount()).To(BeZero())
			Expect(applier.Ensures()).To(Equal(ensures))
			Expect(dirEntries(layout.StagingDir())).To(BeEmpty())
		})

		It("reinstalls when forced", func() {
			o := newOrchestrator()
			mustInstall(o, request(4))

			req := request(4)
			req.Force = true

			res := mustInstall(o, req)
			Expect(res.AlreadyInstalled).To(BeFalse())
			Expect(applier.Applied()).To(Equal([]string{"0->4", "0->4"}))
			Expect(backupsIn(layout.BranchDir(branch))).To(BeEmpty())
		})

		It("does not count cached artifacts as downloaded", func() {
			o := newOrchestrator()
			first := mustInstall(o, request(4))
			Expect(first.BytesDownloaded).To(Equal(int64(len(body("ok", 0, 4)))))

			req := request(4)
			req.Force = true

			res := mustInstall(o, req)
			Expect(res.BytesDownloaded).To(BeZero())
		})

		It("reinstalls a version whose executable is broken", func() {
			o := newOrchestrator()
			mustInstall(o, request(4))
			writeClient(layout.VersionDir(branch, 4), false)

			res := mustInstall(o, request(4))
			Expect(res.AlreadyInstalled).To(BeFalse())
			Expect(isValid(res.Dir)).To(BeTrue())
		})
	})

	Describe("incremental install", func() {
		BeforeEach(func() {
			for v := uint64(1); v <= 5; v++ {
				publish("ok", 0, v)
			}
		})

		It("chains patches greedily from the highest installed version", func() {
			o := newOrchestrator()
			mustInstall(o, request(1))

			publish("ok", 1, 2)
			publish("ok", 1, 3)
			publish("ok", 3, 5)

			res := mustInstall(o, request(5))
			Expect(res.Plan.From).To(Equal(game.Version(1)))
			Expect(res.Plan.Edges).To(Equal([]patch.Edge{{Prev: 1, Target: 3}, {Prev: 3, Target: 5}}))
			Expect(applier.Applied()).To(Equal([]string{"0->1", "1->3", "3->5"}))
			Expect(readBuild(layout.VersionDir(branch, 5))).To(Equal("5"))
			Expect(isValid(layout.VersionDir(branch, 1))).To(BeTrue())
		})

		It("prefers the profile's active version as the source", func() {
			publish("ok", 1, 2)
			publish("ok", 1, 4)
			publish("ok", 2, 4)

			o := newOrchestrator()

			req := request(1)
			req.Profile = "p"
			mustInstall(o, req)
			mustInstall(o, request(2))

			req = request(4)
			req.Profile = "p"
			res := mustInstall(o, req)

			Expect(res.Plan.From).To(Equal(game.Version(1)))
			Expect(applier.Applied()).To(HaveExactElements("0->1", "1->2", "1->4"))
		})

		It("uses the highest installed version below the target without a profile", func() {
			publish("ok", 1, 2)
			publish("ok", 1, 4)
			publish("ok", 2, 4)

			o := newOrchestrator()
			mustInstall(o, request(1))
			mustInstall(o, request(2))

			res := mustInstall(o, request(4))
			Expect(res.Plan.From).To(Equal(game.Version(2)))
			Expect(applier.Applied()).To(HaveExactElements("0->1", "1->2", "2->4"))
		})

		It("installs from scratch when the walk dead-ends", func() {
			o := newOrchestrator()
			mustInstall(o, request(1))

			res := mustInstall(o, request(4))
			Expect(res.Plan.FullInstall()).To(BeTrue())
			Expect(applier.Applied()).To(HaveExactElements("0->1", "0->4"))
		})
	})

	Describe("fallback", func() {
		BeforeEach(func() {
			publish("ok", 0, 1)
			publish("ok", 0, 2)
			publish("ok", 0, 3)
		})

		It("retries a failed incremental patch as a full install", func() {
			o := newOrchestrator()
			mustInstall(o, request(1))
			publish("fail", 1, 2)

			res := mustInstall(o, request(2))
			Expect(res.Fallbacks).To(Equal(1))
			Expect(res.Plan.FullInstall()).To(BeTrue())
			Expect(applier.Applied()).To(HaveExactElements("0->1", "1->2", "0->2"))
			Expect(stages()).To(ContainElement(install.StageRollingBack))
			Expect(testutil.GatherAndCount(metrics.Registry(), "janlauncher_install_fallbacks_total")).To(Equal(1))
		})

		It("falls back after a validation failure", func() {
			o := newOrchestrator()
			mustInstall(o, request(1))
			publish("corrupt", 1, 2)

			res := mustInstall(o, request(2))
			Expect(res.Fallbacks).To(Equal(1))
			Expect(isValid(res.Dir)).To(BeTrue())
		})

		It("reports the failing edge when fallbacks are disabled", func() {
			o := newOrchestrator(install.WithMaxFallbacks(0))
			mustInstall(o, request(1))
			publish("corrupt", 1, 2)

			_, err := o.Install(ctx, request(2), record)
			Expect(errors.Is(err, install.ErrValidation)).To(BeTrue())

			var stageErr *install.StageError
			Expect(errors.As(err, &stageErr)).To(BeTrue())
			Expect(stageErr.Stage).To(Equal(install.StageValidating))
			Expect(stageErr.Edge).To(Equal(&patch.Edge{Prev: 1, Target: 2}))
			Expect(stageErr.Version).To(Equal(game.Version(2)))
		})
	})

	Describe("rollback safety", func() {
		It("leaves the previous installation valid when a non-base patch fails", func() {
			publish("ok", 0, 1)
			publish("ok", 0, 3)

			o := newOrchestrator()
			mustInstall(o, request(1))

			publish("fail", 1, 2)

			_, err := o.Install(ctx, request(2), record)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, patch.ErrNotFound)).To(BeTrue())

			Expect(isValid(layout.VersionDir(branch, 1))).To(BeTrue())
			Expect(readBuild(layout.VersionDir(branch, 1))).To(Equal("1"))
			Expect(layout.VersionDir(branch, 2)).NotTo(BeADirectory())
			Expect(dirEntries(layout.StagingDir())).To(BeEmpty())

			installed, err := o.Installed(branch)
			Expect(err).NotTo(HaveOccurred())
			Expect(installed).To(HaveLen(1))
		})

		It("restores the live directory when promotion fails", func() {
			publish("ok", 0, 1)

			o := newOrchestrator()
			mustInstall(o, request(1))

			install.SetRename(o, func(oldpath, newpath string) error {
				if filepath.Dir(oldpath) == layout.StagingDir() {
					return os.ErrPermission
				}

				return os.Rename(oldpath, newpath)
			})

			req := request(1)
			req.Force = true

			_, err := o.Install(ctx, req, record)
			Expect(errors.Is(err, install.ErrSwap)).To(BeTrue())
			Expect(isValid(layout.VersionDir(branch, 1))).To(BeTrue())
			Expect(backupsIn(layout.BranchDir(branch))).To(BeEmpty())
			Expect(dirEntries(layout.StagingDir())).To(BeEmpty())
		})

		It("leaves a recoverable backup when rollback itself fails", func() {
			publish("ok", 0, 1)

			o := newOrchestrator()
			mustInstall(o, request(1))

			live := layout.VersionDir(branch, 1)
			broken := true

			install.SetRename(o, func(oldpath, newpath string) error {
				if broken && (filepath.Dir(oldpath) == layout.StagingDir() || newpath == live) {
					return os.ErrPermission
				}

				return os.Rename(oldpath, newpath)
			})

			req := request(1)
			req.Force = true

			_, err := o.Install(ctx, req, record)
			Expect(errors.Is(err, install.ErrSwap)).To(BeTrue())
			Expect(live).NotTo(BeADirectory())
			Expect(backupsIn(layout.BranchDir(branch))).To(HaveLen(1))

			broken = false

			later := func() time.Time { return time.Now().Add(install.DefaultStaleAfter + time.Minute) }

			report, err := newOrchestrator(install.WithTimeFunc(later)).Recover(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Restored).To(Equal([]string{live}))
			Expect(isValid(live)).To(BeTrue())
			Expect(backupsIn(layout.BranchDir(branch))).To(BeEmpty())
		})
	})

	Describe("user data", func() {
		It("carries user data from the source into a new version", func() {
			publish("ok", 0, 1)
			publish("ok", 0, 2)

			o := newOrchestrator()
			mustInstall(o, request(1))

			save := filepath.Join("Client", "UserData", "Saves", "world", "level.dat")
			Expect(os.MkdirAll(filepath.Dir(filepath.Join(layout.VersionDir(branch, 1), save)), 0o750)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(layout.VersionDir(branch, 1), save), []byte("v1-world"), 0o600)).To(Succeed())

			res := mustInstall(o, request(2))
			Expect(res.Plan.FullInstall()).To(BeTrue())

			data, err := os.ReadFile(filepath.Join(res.Dir, save))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("v1-world"))
		})

		It("keeps the live user data on a forced reinstall", func() {
			publish("ok", 0, 1)

			o := newOrchestrator()
			mustInstall(o, request(1))

			settings := filepath.Join(layout.VersionDir(branch, 1), "UserData", "settings.json")
			Expect(os.MkdirAll(filepath.Dir(settings), 0o750)).To(Succeed())
			Expect(os.WriteFile(settings, []byte(`{"fov":100}`), 0o600)).To(Succeed())

			req := request(1)
			req.Force = true
			mustInstall(o, req)

			data, err := os.ReadFile(settings)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal(`{"fov":100}`))
			Expect(dirEntries(layout.StagingDir())).To(BeEmpty())
		})
	})

	Describe("downloads", func() {
		It("retries integrity failures up to the attempt limit", func() {
			server.AddTruncated(branch, 0, 1, 104857600, 52428)

			_, err := newOrchestrator(install.WithDownloadAttempts(2)).Install(ctx, request(1), record)
			Expect(errors.Is(err, patch.ErrIntegrity)).To(BeTrue())

			gets := 0
			for _, r := range server.Requests() {
				if r.Method == "GET" {
					gets++
				}
			}

			Expect(gets).To(Equal(2))
			Expect(dirEntries(layout.CacheDir())).To(BeEmpty())
		})
	})

	Describe("preconditions", func() {
		It("rejects unknown branches without touching the network", func() {
			_, err := newOrchestrator().Install(ctx, install.Request{Branch: "nightly", Version: 1}, record)
			Expect(errors.Is(err, game.ErrConfig)).To(BeTrue())
			Expect(server.RequestCount()).To(BeZero())
		})

		It("rejects version zero", func() {
			_, err := newOrchestrator().Install(ctx, request(0), record)
			Expect(errors.Is(err, game.ErrConfig)).To(BeTrue())
		})

		It("fails before discovery when the patch tool is unavailable", func() {
			applier.ensureErr = errors.Mark(errors.New("no butler"), butler.ErrUnavailable)

			_, err := newOrchestrator().Install(ctx, request(1), record)
			Expect(errors.Is(err, butler.ErrUnavailable)).To(BeTrue())
			Expect(server.RequestCount()).To(BeZero())
		})
	})
})
