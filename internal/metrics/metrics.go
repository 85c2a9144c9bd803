package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	// Registry holds only wgman collectors; runtime collectors would clash with
	// node_exporter's own series in a textfile.
	Registry = prometheus.NewRegistry()

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wgman",
			Subsystem: "tunnel",
			Name:      "transitions_total",
			Help:      "Number of attempted up/down transitions by outcome.",
		}, []string{"action", "name", "status"},
	)
	lastTransition = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "wgman",
			Subsystem: "tunnel",
			Name:      "last_transition_timestamp_seconds",
			Help:      "Unix time of the last successful transition per action.",
		}, []string{"action"},
	)
	activeConfig = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "wgman",
			Subsystem: "tunnel",
			Name:      "active",
			Help:      "1 for the configuration recorded as active; no series when down.",
		}, []string{"name"},
	)
	candidates = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wgman",
			Subsystem: "catalog",
			Name:      "matches",
			Help:      "Number of configurations matched by the last pattern.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{transitions, lastTransition, activeConfig, candidates}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// WriteTextfile writes everything g gathers to path in the text exposition format,
// suitable for the node_exporter textfile collector. The write is atomic.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, g)
}

// The helpers below no-op until Register has succeeded.

func RecordTransition(action, name string, ok bool) {
	if !regOK.Load() {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	transitions.WithLabelValues(action, name, status).Inc()
	if ok {
		lastTransition.WithLabelValues(action).Set(float64(time.Now().Unix()))
	}
}

// SetActive marks name as the active configuration. An empty name clears it.
func SetActive(name string) {
	if !regOK.Load() {
		return
	}
	activeConfig.Reset()
	if name != "" {
		activeConfig.WithLabelValues(name).Set(1)
	}
}

func SetMatches(n int) {
	if regOK.Load() {
		candidates.Set(float64(n))
	}
}
