package spatial

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	managerLabel  = "manager"
	strategyLabel = "strategy"
	fromLabel     = "from"
	toLabel       = "to"
)

var (
	spatialQueryCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_query_count",
		Help: "The number of region, point and collision queries.",
	}, []string{
		managerLabel,
		strategyLabel,
	})

	spatialQuerySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spatial_query_seconds",
		Help:    "The time spent answering queries.",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
	}, []string{
		managerLabel,
		strategyLabel,
	})

	spatialPopulation = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spatial_population",
		Help: "The number of tracked entities.",
	}, []string{managerLabel})

	spatialStrategySwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_strategy_switch_count",
		Help: "The number of times the active index structure was replaced.",
	}, []string{
		managerLabel,
		fromLabel,
		toLabel,
	})

	spatialRebuildFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_rebuild_failure_count",
		Help: "The number of index rebuilds that failed and kept the previous index.",
	}, []string{managerLabel})
)

// QueryStats accumulates the queries answered by a Manager.
type QueryStats struct {
	Queries uint64
	Total   time.Duration
}

// Average returns the mean time spent per query.
func (s QueryStats) Average() time.Duration {
	if s.Queries == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Queries)
}

// instruments caches the collectors of a manager for its active strategy.
type instruments struct {
	queries    prometheus.Counter
	seconds    prometheus.Observer
	population prometheus.Gauge
}

func newInstruments(manager string, s Strategy) instruments {
	labels := prometheus.Labels{
		managerLabel:  manager,
		strategyLabel: s.String(),
	}

	return instruments{
		queries:    spatialQueryCount.With(labels),
		seconds:    spatialQuerySeconds.With(labels),
		population: spatialPopulation.With(prometheus.Labels{managerLabel: manager}),
	}
}

func (i instruments) observeQuery(d time.Duration) {
	if i.queries == nil {
		return
	}
	i.queries.Inc()
	i.seconds.Observe(d.Seconds())
}

func (i instruments) setPopulation(n int) {
	if i.population == nil {
		return
	}
	i.population.Set(float64(n))
}

func instrumentStrategySwitch(manager string, from, to Strategy) {
	spatialStrategySwitches.
		With(prometheus.Labels{
			managerLabel: manager,
			fromLabel:    from.String(),
			toLabel:      to.String(),
		}).
		Inc()
}

func instrumentRebuildFailure(manager string) {
	spatialRebuildFailures.
		With(prometheus.Labels{managerLabel: manager}).
		Inc()
}
