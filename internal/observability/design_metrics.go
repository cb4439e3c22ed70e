package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/netdesign/model"
)

// DesignCollector exposes design-level Prometheus metrics: element counts,
// traffic totals, consistency checks and algorithm runs.
type DesignCollector struct {
	gatherer prometheus.Gatherer

	Elements          *prometheus.GaugeVec
	DownElements      *prometheus.GaugeVec
	Traffic           *prometheus.GaugeVec
	Oversubscribed    *prometheus.GaugeVec
	ConsistencyChecks *prometheus.CounterVec
	AlgorithmRuns     *prometheus.CounterVec
	AlgorithmDuration *prometheus.HistogramVec
}

// NewDesignCollector registers design metrics against the provided registerer.
func NewDesignCollector(reg prometheus.Registerer) (*DesignCollector, error) {
	reg, gatherer := registryOrDefault(reg)

	elements, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netdesign_elements",
		Help: "Current number of design elements, labeled by element kind.",
	}, []string{"kind"}), "netdesign_elements")
	if err != nil {
		return nil, err
	}

	down, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netdesign_down_elements",
		Help: "Current number of failed nodes and links.",
	}, []string{"kind"}), "netdesign_down_elements")
	if err != nil {
		return nil, err
	}

	traffic, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netdesign_traffic",
		Help: "Unicast traffic totals over all layers, labeled offered, carried or blocked.",
	}, []string{"kind"}), "netdesign_traffic")
	if err != nil {
		return nil, err
	}

	oversubscribed, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "netdesign_oversubscribed",
		Help: "Current number of links and resources whose occupation exceeds capacity.",
	}, []string{"kind"}), "netdesign_oversubscribed")
	if err != nil {
		return nil, err
	}

	checks, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netdesign_consistency_checks_total",
		Help: "Consistency checks run against the design, labeled by result.",
	}, []string{"result"}), "netdesign_consistency_checks_total")
	if err != nil {
		return nil, err
	}

	runs, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netdesign_algorithm_runs_total",
		Help: "Algorithm runs applied to the design, labeled by algorithm and result.",
	}, []string{"algorithm", "result"}), "netdesign_algorithm_runs_total")
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netdesign_algorithm_run_duration_seconds",
		Help:    "Duration of algorithm runs including copy and consistency verification.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"algorithm"}), "netdesign_algorithm_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &DesignCollector{
		gatherer:          gatherer,
		Elements:          elements,
		DownElements:      down,
		Traffic:           traffic,
		Oversubscribed:    oversubscribed,
		ConsistencyChecks: checks,
		AlgorithmRuns:     runs,
		AlgorithmDuration: duration,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *DesignCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a /metrics handler over the collector's gatherer.
func (c *DesignCollector) Handler() http.Handler {
	return handlerFor(c.Gatherer())
}

// SetSummary refreshes every gauge from a design summary.
func (c *DesignCollector) SetSummary(s model.Summary) {
	if c == nil {
		return
	}
	for kind, n := range s.Counts() {
		c.Elements.WithLabelValues(kind).Set(float64(n))
	}
	c.DownElements.WithLabelValues("node").Set(float64(s.DownNodes))
	c.DownElements.WithLabelValues("link").Set(float64(s.DownLinks))
	c.Traffic.WithLabelValues("offered").Set(s.OfferedTraffic)
	c.Traffic.WithLabelValues("carried").Set(s.CarriedTraffic)
	c.Traffic.WithLabelValues("blocked").Set(s.BlockedTraffic)
	c.Oversubscribed.WithLabelValues("link").Set(float64(s.OversubscribedLinks))
	c.Oversubscribed.WithLabelValues("resource").Set(float64(s.OversubscribedResources))
}

// ObserveConsistencyCheck counts one consistency check outcome.
func (c *DesignCollector) ObserveConsistencyCheck(err error) {
	if c == nil {
		return
	}
	c.ConsistencyChecks.WithLabelValues(result(err)).Inc()
}

// ObserveAlgorithmRun records one algorithm run and its duration.
func (c *DesignCollector) ObserveAlgorithmRun(algorithm string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.AlgorithmRuns.WithLabelValues(algorithm, result(err)).Inc()
	c.AlgorithmDuration.WithLabelValues(algorithm).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
