package install_test

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/install"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/store"
)

var _ = Describe("Recover", func() {
	backupOf := func(live string, stamp string) string {
		dir := live + ".bak-" + stamp
		writeClient(dir, true)

		return dir
	}

	It("restores the newest backup of a missing live directory", func() {
		live := layout.VersionDir(branch, 5)
		older := backupOf(live, "1700000000000")
		newer := backupOf(live, "1700000009000")

		s := store.New(layout)
		Expect(s.WriteMetadata(newer, store.NewRecord(branch, 5, time.Now(), 1))).To(Succeed())
		Expect(os.WriteFile(filepath.Join(newer, buildFile), []byte("newer"), 0o600)).To(Succeed())

		report, err := newOrchestrator().Recover(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Restored).To(Equal([]string{live}))
		Expect(report.RemovedBackups).To(Equal([]string{older}))
		Expect(readBuild(live)).To(Equal("newer"))

		idx, err := s.LoadIndex()
		Expect(err).NotTo(HaveOccurred())
		_, found := idx.Find(branch, 5)
		Expect(found).To(BeTrue())
	})

	It("drops backups of live directories that exist", func() {
		live := layout.VersionDir(branch, 2)
		writeClient(live, true)
		stale := backupOf(live, "1700000000000")

		report, err := newOrchestrator().Recover(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Restored).To(BeEmpty())
		Expect(report.RemovedBackups).To(Equal([]string{stale}))
		Expect(stale).NotTo(BeADirectory())
	})

	It("removes staging trees left by earlier runs", func() {
		stale := filepath.Join(layout.StagingDir(), "release-9-1700000000000")
		Expect(os.MkdirAll(filepath.Join(stale, "Client"), 0o750)).To(Succeed())

		later := func() time.Time { return time.Now().Add(time.Hour) }

		o := newOrchestrator(install.WithTimeFunc(later), install.WithStaleAfter(30*time.Minute))
		report, err := o.Recover(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.RemovedStaging).To(Equal([]string{stale}))
		Expect(stale).NotTo(BeADirectory())
	})

	Context("with an install running in another process", func() {
		It("keeps its staging tree on any branch", func() {
			inFlight := layout.StagingPath(game.BranchBeta, 7, time.Now())
			writeClient(inFlight, true)
			sidecar := inFlight + ".userdata"
			Expect(os.MkdirAll(sidecar, 0o750)).To(Succeed())

			report, err := newOrchestrator().Recover(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.RemovedStaging).To(BeEmpty())
			Expect(inFlight).To(BeADirectory())
			Expect(sidecar).To(BeADirectory())
		})

		It("does not restore a backup whose live directory is mid-swap", func() {
			live := layout.VersionDir(branch, 3)
			fresh := backupOf(live, strconv.FormatInt(time.Now().UnixMilli(), 10))
			older := backupOf(live, "1700000000000")

			report, err := newOrchestrator().Recover(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Empty()).To(BeTrue())
			Expect(live).NotTo(BeADirectory())
			Expect(fresh).To(BeADirectory())
			Expect(older).To(BeADirectory())
		})

		It("cleans up once the entries outlive the stale age", func() {
			inFlight := layout.StagingPath(game.BranchBeta, 7, time.Now())
			Expect(os.MkdirAll(inFlight, 0o750)).To(Succeed())

			later := func() time.Time { return time.Now().Add(install.DefaultStaleAfter + time.Minute) }

			report, err := newOrchestrator(install.WithTimeFunc(later)).Recover(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.RemovedStaging).To(Equal([]string{inFlight}))
		})
	})

	It("reports nothing on a clean data root", func() {
		report, err := newOrchestrator().Recover(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Empty()).To(BeTrue())
	})
})

var _ = Describe("Remove", func() {
	BeforeEach(func() {
		publish("ok", 0, 1)
		publish("ok", 0, 2)
	})

	It("refuses to remove a version a profile has active", func() {
		o := newOrchestrator()

		req := request(1)
		req.Profile = "default"
		mustInstall(o, req)

		err := o.Remove(ctx, branch, 1)
		Expect(errors.Is(err, install.ErrVersionInUse)).To(BeTrue())
		Expect(isValid(layout.VersionDir(branch, 1))).To(BeTrue())
	})

	It("deletes the directory and the index entry", func() {
		o := newOrchestrator()
		mustInstall(o, request(2))

		Expect(o.Remove(ctx, branch, 2)).To(Succeed())
		Expect(layout.VersionDir(branch, 2)).NotTo(BeADirectory())

		records, err := o.Store().Installed(branch)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(BeEmpty())
	})

	It("reports versions that are not installed", func() {
		err := newOrchestrator().Remove(ctx, branch, 9)
		Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
	})
})

var _ = Describe("Installed", func() {
	It("omits versions whose executable no longer validates", func() {
		publish("ok", 0, 1)
		publish("ok", 0, 2)

		o := newOrchestrator()
		mustInstall(o, request(1))
		mustInstall(o, request(2))

		writeClient(layout.VersionDir(branch, 2), false)

		records, err := o.Installed(branch)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].ID).To(Equal("1"))
	})
})
