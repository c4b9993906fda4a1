package patch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/telemetry"
	"github.com/janekdeveloper/JanLauncher-sub000/pkg/logger"
)

const (
	// DefaultMissLimit is the number of consecutive misses that ends a sweep.
	DefaultMissLimit = 5

	// DefaultConcurrency is the number of incremental rows probed at once.
	DefaultConcurrency = 4
)

// Prober answers whether an artifact exists. Errors count as misses.
type Prober interface {
	Exists(ctx context.Context, branch game.Branch, e Edge) (bool, error)
}

// Discovery builds patch graphs by probing the server. It owns one graph per
// branch; rediscovery adds to the existing graph, so an interrupted sweep can
// simply be run again.
//
// Both sweeps stop after missLimit consecutive misses, which assumes the
// server never skips more than missLimit versions in a row.
type Discovery struct {
	prober      Prober
	missLimit   int
	concurrency int
	logger      logger.Logger
	metrics     *telemetry.Metrics

	mu     sync.Mutex
	graphs map[game.Branch]*Graph
}

// DiscoveryOption configures a Discovery.
type DiscoveryOption func(*Discovery)

// WithMissLimit sets the consecutive-miss threshold.
func WithMissLimit(k int) DiscoveryOption {
	return func(d *Discovery) {
		if k > 0 {
			d.missLimit = k
		}
	}
}

// WithConcurrency sets how many incremental rows are probed at once.
func WithConcurrency(n int) DiscoveryOption {
	return func(d *Discovery) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithDiscoveryLogger sets the logger.
func WithDiscoveryLogger(log logger.Logger) DiscoveryOption {
	return func(d *Discovery) {
		if log != nil {
			d.logger = log
		}
	}
}

// WithDiscoveryMetrics sets the metrics sink.
func WithDiscoveryMetrics(m *telemetry.Metrics) DiscoveryOption {
	return func(d *Discovery) {
		d.metrics = m
	}
}

// NewDiscovery creates a Discovery probing through prober.
func NewDiscovery(prober Prober, opts ...DiscoveryOption) *Discovery {
	d := &Discovery{
		prober:      prober,
		missLimit:   DefaultMissLimit,
		concurrency: DefaultConcurrency,
		logger:      logger.NewNoOpLogger(),
		graphs:      make(map[game.Branch]*Graph),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Graph returns the graph cached for branch, creating an empty one.
func (d *Discovery) Graph(branch game.Branch) *Graph {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, ok := d.graphs[branch]
	if !ok {
		g = NewGraph(branch)
		d.graphs[branch] = g
	}

	return g
}

// Discover probes the server and returns the branch graph. When ctx is
// cancelled the partially filled graph is returned with the context error.
func (d *Discovery) Discover(ctx context.Context, branch game.Branch) (*Graph, error) {
	g := d.Graph(branch)
	log := d.logger.With("branch", branch.String())

	log.Info("discovery started", "known_edges", g.Len())

	maxVersion, err := d.sweepFullInstalls(ctx, branch, g)
	if err != nil {
		return g, err
	}

	log.Debug("full-install sweep finished", "max_version", maxVersion.ID())

	if err := d.sweepIncrementals(ctx, branch, g, maxVersion); err != nil {
		return g, err
	}

	d.metrics.SetDiscoveredEdges(branch.String(), g.Len())
	log.Info("discovery finished", "edges", g.Len(), "max_version", maxVersion.ID())

	return g, nil
}

// sweepFullInstalls probes (0,1), (0,2), ... in order.
func (d *Discovery) sweepFullInstalls(ctx context.Context, branch game.Branch, g *Graph) (game.Version, error) {
	var (
		maxVersion game.Version
		misses     int
	)

	for v := game.Version(1); misses < d.missLimit; v++ {
		e := Edge{Prev: 0, Target: v}

		found, err := d.probe(ctx, branch, g, e)
		if err != nil {
			return maxVersion, err
		}

		if !found {
			misses++

			continue
		}

		misses = 0
		maxVersion = v
	}

	return maxVersion, nil
}

// sweepIncrementals probes one row per prev in [1, maxVersion). Rows run
// concurrently but each row is probed in order, so the per-row stopping rule
// matches a sequential sweep.
func (d *Discovery) sweepIncrementals(
	ctx context.Context,
	branch game.Branch,
	g *Graph,
	maxVersion game.Version,
) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(d.concurrency)

	for prev := game.Version(1); prev < maxVersion; prev++ {
		eg.Go(func() error {
			return d.sweepRow(egCtx, branch, g, prev, maxVersion)
		})
	}

	return eg.Wait()
}

func (d *Discovery) sweepRow(
	ctx context.Context,
	branch game.Branch,
	g *Graph,
	prev, maxVersion game.Version,
) error {
	limit := maxVersion + game.Version(d.missLimit)
	misses := 0

	for target := prev + 1; target <= limit && misses < d.missLimit; target++ {
		found, err := d.probe(ctx, branch, g, Edge{Prev: prev, Target: target})
		if err != nil {
			return err
		}

		if found {
			misses = 0
		} else {
			misses++
		}
	}

	return nil
}

// probe checks one edge and records hits in g. Edges already in the graph
// are not probed again. Only context cancellation is returned as an error.
func (d *Discovery) probe(ctx context.Context, branch game.Branch, g *Graph, e Edge) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if g.Has(e.Prev, e.Target) {
		return true, nil
	}

	found, err := d.prober.Exists(ctx, branch, e)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}

		d.logger.Debug("probe failed, counting as miss", "branch", branch.String(), "edge", e.String(), "error", err)
		d.metrics.ObserveProbe(branch.String(), telemetry.ProbeError)

		return false, nil
	}

	if !found {
		d.metrics.ObserveProbe(branch.String(), telemetry.ProbeMiss)

		return false, nil
	}

	d.metrics.ObserveProbe(branch.String(), telemetry.ProbeHit)
	g.Add(e)

	return true, nil
}
