package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/celerix-dev/celerix-store/internal/infra/buildinfo"
)

// StatsFunc reports point-in-time store statistics at scrape time.
type StatsFunc func() StoreStats

// StoreStats is a snapshot of store internals.
type StoreStats struct {
	// LockedApps is the number of (persona, app) pairs with a lock entry.
	LockedApps int
}

// Collector exports build info and store statistics.
type Collector struct {
	stats     StatsFunc
	buildDesc *prometheus.Desc
	appsDesc  *prometheus.Desc
}

// NewCollector returns a collector. stats may be nil.
func NewCollector(stats StatsFunc) *Collector {
	return &Collector{
		stats: stats,
		buildDesc: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "", "build_info"),
			"Build information of the running binary.",
			[]string{"version", "commit", "go_version"}, nil,
		),
		appsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "store", "locked_apps"),
			"Apps with a write lock entry since start.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.buildDesc
	ch <- c.appsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	bi := buildinfo.Get()
	ch <- prometheus.MustNewConstMetric(c.buildDesc, prometheus.GaugeValue, 1, bi.Version, bi.Commit, bi.GoVersion)

	if c.stats != nil {
		s := c.stats()
		ch <- prometheus.MustNewConstMetric(c.appsDesc, prometheus.GaugeValue, float64(s.LockedApps))
	}
}
