package patch_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/patch"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/patch/patchtest"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/telemetry"
)

// fakeProber answers from a fixed edge set and records every probe in order.
type fakeProber struct {
	mu      sync.Mutex
	present map[patch.Edge]bool
	probes  []patch.Edge
	fail    map[patch.Edge]bool
	cancel  func(patch.Edge)
}

func newFakeProber(edges ...patch.Edge) *fakeProber {
	p := &fakeProber{present: map[patch.Edge]bool{}, fail: map[patch.Edge]bool{}}
	for _, e := range edges {
		p.present[e] = true
	}

	return p
}

func (p *fakeProber) Exists(_ context.Context, _ game.Branch, e patch.Edge) (bool, error) {
	p.mu.Lock()
	p.probes = append(p.probes, e)
	cancel := p.cancel
	failing := p.fail[e]
	found := p.present[e]
	p.mu.Unlock()

	if cancel != nil {
		cancel(e)
	}

	if failing {
		return false, context.DeadlineExceeded
	}

	return found, nil
}

func (p *fakeProber) fullInstallProbes() []game.Version {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []game.Version

	for _, e := range p.probes {
		if e.Prev == 0 {
			out = append(out, e.Target)
		}
	}

	return out
}

func (p *fakeProber) rowProbes(prev game.Version) []game.Version {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []game.Version

	for _, e := range p.probes {
		if e.Prev == prev {
			out = append(out, e.Target)
		}
	}

	return out
}

func versions(from, to game.Version) []game.Version {
	var out []game.Version
	for v := from; v <= to; v++ {
		out = append(out, v)
	}

	return out
}

var _ = Describe("Discovery", func() {
	ctx := context.Background()

	fullInstallsThrough := func(n game.Version) []patch.Edge {
		var edges []patch.Edge
		for v := game.Version(1); v <= n; v++ {
			edges = append(edges, edge(0, v))
		}

		return edges
	}

	It("stops the full-install sweep after five consecutive misses", func() {
		prober := newFakeProber(fullInstallsThrough(8)...)
		d := patch.NewDiscovery(prober, patch.WithMissLimit(5), patch.WithConcurrency(1))

		g, err := d.Discover(ctx, game.BranchRelease)
		Expect(err).NotTo(HaveOccurred())

		Expect(prober.fullInstallProbes()).To(Equal(versions(1, 13)))
		Expect(g.MaxVersion()).To(Equal(game.Version(8)))
	})

	It("bounds each incremental row by the miss limit and maxVersion+K", func() {
		prober := newFakeProber(append(fullInstallsThrough(8), edge(1, 2), edge(7, 8))...)
		d := patch.NewDiscovery(prober, patch.WithMissLimit(5), patch.WithConcurrency(1))

		g, err := d.Discover(ctx, game.BranchRelease)
		Expect(err).NotTo(HaveOccurred())

		// row 1: hit at 2 resets, then 3..7 miss
		Expect(prober.rowProbes(1)).To(Equal(versions(2, 7)))
		// row 7: hit at 8, then 9..13 is both five misses and the maxVersion+K ceiling
		Expect(prober.rowProbes(7)).To(Equal(versions(8, 13)))
		Expect(prober.rowProbes(8)).To(BeEmpty())

		Expect(g.Has(1, 2)).To(BeTrue())
		Expect(g.Has(7, 8)).To(BeTrue())
		Expect(g.Len()).To(Equal(10))
	})

	It("keeps per-row stopping semantics when rows run concurrently", func() {
		edges := append(fullInstallsThrough(8), edge(1, 2), edge(2, 4), edge(4, 8))

		sequential := newFakeProber(edges...)
		concurrent := newFakeProber(edges...)

		gSeq, err := patch.NewDiscovery(sequential, patch.WithConcurrency(1)).Discover(ctx, game.BranchRelease)
		Expect(err).NotTo(HaveOccurred())

		gPar, err := patch.NewDiscovery(concurrent, patch.WithConcurrency(8)).Discover(ctx, game.BranchRelease)
		Expect(err).NotTo(HaveOccurred())

		Expect(gPar.Edges()).To(Equal(gSeq.Edges()))

		for prev := game.Version(1); prev < 8; prev++ {
			Expect(concurrent.rowProbes(prev)).To(Equal(sequential.rowProbes(prev)), "row %d", prev)
		}
	})

	It("treats probe errors as misses", func() {
		prober := newFakeProber(fullInstallsThrough(3)...)
		prober.fail[edge(0, 2)] = true

		g, err := patch.NewDiscovery(prober, patch.WithConcurrency(1)).Discover(ctx, game.BranchRelease)
		Expect(err).NotTo(HaveOccurred())

		Expect(g.Has(0, 2)).To(BeFalse())
		Expect(g.MaxVersion()).To(Equal(game.Version(3)))
	})

	It("reuses the branch graph and skips known edges on rediscovery", func() {
		prober := newFakeProber(fullInstallsThrough(2)...)
		d := patch.NewDiscovery(prober, patch.WithConcurrency(1))

		first, err := d.Discover(ctx, game.BranchRelease)
		Expect(err).NotTo(HaveOccurred())

		probesBefore := len(prober.fullInstallProbes())

		second, err := d.Discover(ctx, game.BranchRelease)
		Expect(err).NotTo(HaveOccurred())

		Expect(second).To(BeIdenticalTo(first))
		// the two known full installs are not probed again
		Expect(len(prober.fullInstallProbes()) - probesBefore).To(Equal(5))
		Expect(d.Graph(game.BranchBeta)).NotTo(BeIdenticalTo(first))
	})

	It("returns the partial graph when cancelled", func() {
		prober := newFakeProber(fullInstallsThrough(8)...)

		cctx, cancel := context.WithCancel(ctx)
		defer cancel()

		prober.cancel = func(e patch.Edge) {
			if e == edge(0, 4) {
				cancel()
			}
		}

		g, err := patch.NewDiscovery(prober).Discover(cctx, game.BranchRelease)
		Expect(err).To(MatchError(context.Canceled))
		Expect(g.Has(0, 3)).To(BeTrue())
		Expect(g.Has(0, 5)).To(BeFalse())
	})

	It("probes a real HTTP server through Source", func() {
		platform := game.Platform{OS: "linux", Arch: "amd64"}
		server := patchtest.NewServer(platform)
		defer server.Close()

		for v := uint64(1); v <= 8; v++ {
			server.Add(game.BranchBeta, 0, v, []byte("x"))
		}

		metrics := telemetry.New()
		source := patch.NewSource(server.URL, platform, patch.WithProbeRate(0, 0))
		d := patch.NewDiscovery(source, patch.WithConcurrency(1), patch.WithDiscoveryMetrics(metrics))

		g, err := d.Discover(ctx, game.BranchBeta)
		Expect(err).NotTo(HaveOccurred())
		Expect(g.MaxVersion()).To(Equal(game.Version(8)))

		var lastFull uint64
		for _, r := range server.Requests() {
			Expect(r.Method).To(Equal("HEAD"))

			if r.Prev == 0 {
				lastFull = r.Target
			}
		}

		Expect(lastFull).To(Equal(uint64(13)))
	})

	It("counts transport failures as misses", func() {
		platform := game.Platform{OS: "linux", Arch: "amd64"}
		server := patchtest.NewServer(platform)
		defer server.Close()

		server.Add(game.BranchBeta, 0, 1, []byte("x"))
		server.FailHEAD(true)

		g, err := patch.NewDiscovery(patch.NewSource(server.URL, platform)).Discover(ctx, game.BranchBeta)
		Expect(err).NotTo(HaveOccurred())
		Expect(g.Len()).To(BeZero())
	})
})
