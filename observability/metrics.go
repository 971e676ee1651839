package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/devSaadRaja/shezmu-vault/vault"
)

type vaultMetrics struct {
	events       *prometheus.CounterVec
	liquidations prometheus.Counter
	feesCharged  prometheus.Counter
}

var (
	vaultMetricsOnce sync.Once
	vaultRegistry    *vaultMetrics
)

// Vault returns the metrics registry tracking vault events.
func Vault() *vaultMetrics {
	vaultMetricsOnce.Do(func() {
		vaultRegistry = &vaultMetrics{
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "shezmu",
				Subsystem: "vault",
				Name:      "events_total",
				Help:      "Count of vault events segmented by type.",
			}, []string{"type"}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "shezmu",
				Subsystem: "vault",
				Name:      "liquidations_total",
				Help:      "Count of positions liquidated.",
			}),
			feesCharged: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "shezmu",
				Subsystem: "vault",
				Name:      "fees_charged_total",
				Help:      "Count of fee gate charges.",
			}),
		}
		prometheus.MustRegister(vaultRegistry.events, vaultRegistry.liquidations, vaultRegistry.feesCharged)
	})
	return vaultRegistry
}

func (m *vaultMetrics) record(ev vault.Event) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(ev.EventType()).Inc()
	switch ev.(type) {
	case vault.PositionLiquidated:
		m.liquidations.Inc()
	case vault.FeeCharged:
		m.feesCharged.Inc()
	}
}

// Recorder is a vault event sink that feeds the metrics registry and
// forwards to an optional downstream emitter.
type Recorder struct {
	next vault.Emitter
}

// NewRecorder wraps the downstream emitter; nil means metrics only.
func NewRecorder(next vault.Emitter) *Recorder {
	return &Recorder{next: next}
}

// Emit implements the vault emitter interface.
func (r *Recorder) Emit(ev vault.Event) {
	Vault().record(ev)
	if r.next != nil {
		r.next.Emit(ev)
	}
}
