// Package metrics exposes Prometheus counters for resolution outcomes and
// cache behavior. Registration is lazy so that importing the package costs
// nothing until metrics are enabled.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutionsTotal *prometheus.CounterVec
	cacheEventsTotal *prometheus.CounterVec

	registerOnce sync.Once
	enabled      bool
)

// Init registers all metrics with the default registry. Call once at
// startup when metrics are wanted; recording is a no-op otherwise.
func Init() {
	registerOnce.Do(func() {
		resolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subst_resolutions_total",
				Help: "Placeholder resolutions by source and outcome",
			},
			[]string{"source", "outcome"},
		)
		cacheEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subst_cache_events_total",
				Help: "Cache lookups by tier and event",
			},
			[]string{"tier", "event"},
		)
		enabled = true
	})
}

// RecordResolution counts one source resolve attempt. Outcome is one of
// "hit", "miss", "error", "default".
func RecordResolution(source, outcome string) {
	if !enabled {
		return
	}
	resolutionsTotal.WithLabelValues(source, outcome).Inc()
}

// RecordCache counts one cache lookup. Tier is "top" or a source name;
// event is "hit" or "miss".
func RecordCache(tier, event string) {
	if !enabled {
		return
	}
	cacheEventsTotal.WithLabelValues(tier, event).Inc()
}
