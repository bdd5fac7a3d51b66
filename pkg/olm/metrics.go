package olm

import "github.com/prometheus/client_golang/prometheus"

var (
	opsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "olm",
		Name:      "engine_calls_total",
		Help:      "Engine calls by object family and operation.",
	}, []string{"family", "op"})

	errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "olm",
		Name:      "engine_errors_total",
		Help:      "Failed engine calls by object family, operation and error code.",
	}, []string{"family", "op", "code"})
)

// Collectors returns the package metrics for registration by the caller.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{opsTotal, errorsTotal}
}
