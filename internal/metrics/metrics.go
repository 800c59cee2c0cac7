package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the server's prometheus instruments around one
// dedicated registry so tests can construct isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive prometheus.Gauge
	Logins         *prometheus.CounterVec
	Adjusts        *prometheus.CounterVec
	Gifts          *prometheus.CounterVec
	PushesDropped  prometheus.Counter
	LockTimeouts   prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rollhouse_sessions_active",
			Help: "Currently connected player sessions.",
		}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rollhouse_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		Adjusts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rollhouse_resource_adjusts_total",
			Help: "Balance adjustments by outcome.",
		}, []string{"outcome"}),
		Gifts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rollhouse_gifts_total",
			Help: "Gift transfers by outcome.",
		}, []string{"outcome"}),
		PushesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollhouse_pushes_dropped_total",
			Help: "GiftEvent pushes dropped because no open connection accepted them.",
		}),
		LockTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "rollhouse_conn_lock_timeouts_total",
			Help: "Bounded connection-lock waits that expired.",
		}),
	}
}

// Registry exposes the underlying registry for the admin /metrics
// endpoint.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
