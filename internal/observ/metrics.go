package observ

import (
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registry lazily creates Prometheus vectors so call sites can keep the
// name+labels shape used across the codebase. Label keys must be stable per
// metric name; the first call wins.
type registry struct {
	mu       sync.Mutex
	prom     *prometheus.Registry
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
	hist     map[string]*prometheus.HistogramVec
}

var reg = &registry{
	prom:     prometheus.NewRegistry(),
	counters: map[string]*prometheus.CounterVec{},
	gauges:   map[string]*prometheus.GaugeVec{},
	hist:     map[string]*prometheus.HistogramVec{},
}

func labelKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IncCounter increments a counter by one.
func IncCounter(name string, labels map[string]string) {
	IncCounterBy(name, labels, 1.0)
}

// IncCounterBy increments a counter by value.
func IncCounterBy(name string, labels map[string]string, value float64) {
	reg.mu.Lock()
	c, ok := reg.counters[name]
	if !ok {
		c = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name}, labelKeys(labels))
		reg.prom.MustRegister(c)
		reg.counters[name] = c
	}
	reg.mu.Unlock()
	c.With(prometheus.Labels(labels)).Add(value)
}

// SetGauge sets a gauge to value.
func SetGauge(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	g, ok := reg.gauges[name]
	if !ok {
		g = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name}, labelKeys(labels))
		reg.prom.MustRegister(g)
		reg.gauges[name] = g
	}
	reg.mu.Unlock()
	g.With(prometheus.Labels(labels)).Set(value)
}

// Observe records a histogram observation.
func Observe(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	h, ok := reg.hist[name]
	if !ok {
		h = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Buckets: prometheus.DefBuckets,
		}, labelKeys(labels))
		reg.prom.MustRegister(h)
		reg.hist[name] = h
	}
	reg.mu.Unlock()
	h.With(prometheus.Labels(labels)).Observe(value)
}

// Handler exposes the metrics registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(reg.prom, promhttp.HandlerOpts{})
}
