// Package telemetry collects Prometheus metrics for discovery, downloads and
// installs. A launcher run is short-lived, so metrics are exported by writing
// a node_exporter textfile rather than serving /metrics.
package telemetry

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "janlauncher"

// Probe results.
const (
	ProbeHit   = "hit"
	ProbeMiss  = "miss"
	ProbeError = "error"
)

// Download results.
const (
	DownloadCached    = "cached"
	DownloadFetched   = "fetched"
	DownloadIntegrity = "integrity_error"
	DownloadFailed    = "failed"
)

// Install outcomes.
const (
	InstallCommitted        = "committed"
	InstallAlreadyInstalled = "already_installed"
	InstallFailed           = "failed"
)

// Metrics holds every collector used by the engine. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	probes          *prometheus.CounterVec
	discoveredEdges *prometheus.GaugeVec
	downloads       *prometheus.CounterVec
	downloadBytes   *prometheus.CounterVec
	applyDuration   *prometheus.HistogramVec
	installs        *prometheus.CounterVec
	installDuration *prometheus.HistogramVec
	fallbacks       *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		probes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_probes_total",
			Help:      "Patch existence probes by branch and result",
		}, []string{"branch", "result"}),

		discoveredEdges: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "discovery_edges",
			Help:      "Patch edges known for a branch after the last discovery",
		}, []string{"branch"}),

		downloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Patch artifact fetches by branch and result",
		}, []string{"branch", "result"}),

		downloadBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes of patch artifacts transferred",
		}, []string{"branch"}),

		applyDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "apply_duration_seconds",
			Help:      "Duration of a single patch apply",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4m
		}, []string{"branch", "result"}),

		installs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "installs_total",
			Help:      "Install runs by branch and outcome",
		}, []string{"branch", "outcome"}),

		installDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "install_duration_seconds",
			Help:      "Wall time of install runs",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34m
		}, []string{"branch"}),

		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "install_fallbacks_total",
			Help:      "Full reinstalls triggered by a failed incremental patch",
		}, []string{"branch"}),
	}
}

// Registry exposes the underlying registry as a gatherer.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.registry
}

// ObserveProbe counts one discovery probe.
func (m *Metrics) ObserveProbe(branch, result string) {
	if m == nil {
		return
	}

	m.probes.WithLabelValues(branch, result).Inc()
}

// SetDiscoveredEdges records the edge count of a branch graph.
func (m *Metrics) SetDiscoveredEdges(branch string, n int) {
	if m == nil {
		return
	}

	m.discoveredEdges.WithLabelValues(branch).Set(float64(n))
}

// ObserveDownload counts one artifact fetch and its transferred bytes.
func (m *Metrics) ObserveDownload(branch, result string, bytes int64) {
	if m == nil {
		return
	}

	m.downloads.WithLabelValues(branch, result).Inc()

	if bytes > 0 {
		m.downloadBytes.WithLabelValues(branch).Add(float64(bytes))
	}
}

// ObserveApply records the duration of one patch apply.
func (m *Metrics) ObserveApply(branch string, ok bool, d time.Duration) {
	if m == nil {
		return
	}

	result := "ok"
	if !ok {
		result = "error"
	}

	m.applyDuration.WithLabelValues(branch, result).Observe(d.Seconds())
}

// ObserveInstall records the outcome and duration of one install run.
func (m *Metrics) ObserveInstall(branch, outcome string, d time.Duration) {
	if m == nil {
		return
	}

	m.installs.WithLabelValues(branch, outcome).Inc()
	m.installDuration.WithLabelValues(branch).Observe(d.Seconds())
}

// ObserveFallback counts one fallback to a full reinstall.
func (m *Metrics) ObserveFallback(branch string) {
	if m == nil {
		return
	}

	m.fallbacks.WithLabelValues(branch).Inc()
}

// WriteTextfile writes all metrics in the Prometheus text format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}

	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", path)
	}

	return nil
}
