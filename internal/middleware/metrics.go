package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Gate decisions recorded in the decisions counter.
const (
	decisionBypassed = "bypassed"
	decisionAdmitted = "admitted"
	decisionRejected = "rejected"
	decisionFault    = "fault"
)

// Metrics records the gate's decisions. A nil *Metrics records nothing.
type Metrics struct {
	decisions          *prometheus.CounterVec
	validationDuration *prometheus.HistogramVec
}

// NewMetrics creates the gate metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payment_mcp",
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Authorization gate decisions by outcome and reason.",
		}, []string{"decision", "reason"}),
		validationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "payment_mcp",
			Subsystem: "gate",
			Name:      "validation_duration_seconds",
			Help:      "Time spent in the token validator.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
	}
	reg.MustRegister(m.decisions, m.validationDuration)

	return m
}

func (m *Metrics) decision(decision, reason string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision, reason).Inc()
}

func (m *Metrics) validation(start time.Time, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.validationDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
}
