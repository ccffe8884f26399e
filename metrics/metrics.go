// Package metrics exposes a pool's introspection properties (size,
// available, borrowed, pending, spare capacity, max, min) as Prometheus
// gauges, so an embedding service can register one collector per pool
// instance without reaching into pool internals.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Introspectable is the subset of *pool.Pool[T] the collector needs. It is
// defined here, rather than imported from the pool package, so this package
// has no dependency on the resource type parameter.
type Introspectable interface {
	Size() int
	Available() int
	Borrowed() int
	Pending() int
	SpareResourceCapacity() int
	Max() int
	Min() int
}

// Collector wraps an Introspectable pool as a prometheus.Collector built
// from GaugeFunc metrics, so values are sampled on scrape rather than
// pushed on every pool mutation.
type Collector struct {
	size      prometheus.GaugeFunc
	available prometheus.GaugeFunc
	borrowed  prometheus.GaugeFunc
	pending   prometheus.GaugeFunc
	spare     prometheus.GaugeFunc
	max       prometheus.GaugeFunc
	min       prometheus.GaugeFunc
}

// NewCollector builds a Collector for p, labeling every metric with name
// (e.g. "db-connections") so multiple pools can be registered side by side.
func NewCollector(name string, p Introspectable) *Collector {
	labels := prometheus.Labels{"pool": name}
	gauge := func(metric, help string, fn func() float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "resourcepool",
			Name:        metric,
			Help:        help,
			ConstLabels: labels,
		}, fn)
	}

	return &Collector{
		size:      gauge("size", "Resources known to the pool in any state.", func() float64 { return float64(p.Size()) }),
		available: gauge("available", "Idle resources ready to dispense.", func() float64 { return float64(p.Available()) }),
		borrowed:  gauge("borrowed", "Resources currently on loan.", func() float64 { return float64(p.Borrowed()) }),
		pending:   gauge("pending", "Waiters queued for a resource.", func() float64 { return float64(p.Pending()) }),
		spare:     gauge("spare_capacity", "Additional resources creatable without exceeding max.", func() float64 { return float64(p.SpareResourceCapacity()) }),
		max:       gauge("max", "Configured ceiling on live+in-flight resources.", func() float64 { return float64(p.Max()) }),
		min:       gauge("min", "Configured floor ensureMinimum targets.", func() float64 { return float64(p.Min()) }),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, g := range c.all() {
		g.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, g := range c.all() {
		g.Collect(ch)
	}
}

func (c *Collector) all() []prometheus.GaugeFunc {
	return []prometheus.GaugeFunc{c.size, c.available, c.borrowed, c.pending, c.spare, c.max, c.min}
}
