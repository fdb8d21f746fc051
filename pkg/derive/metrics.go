package derive

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	lookups       *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calltree_derive_lookups_total",
			Help: "Lookups of derived call trees by result.",
		}, []string{"result"}),
		buildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:                            "calltree_derive_build_duration_seconds",
			Help:                            "Time spent deriving call node tables and call trees.",
			Buckets:                         prometheus.ExponentialBucketsRange(0.0001, 10, 24),
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: time.Hour,
		}, []string{"stage"}),
	}
	m.lookups = registerOrGet(reg, m.lookups)
	m.buildDuration = registerOrGet(reg, m.buildDuration)
	return m
}

// registerOrGet registers c, or returns the collector already registered
// under the same descriptor.
func registerOrGet[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(T)
		}
		panic(err)
	}
	return c
}
