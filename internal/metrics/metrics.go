package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for tool invocations and upstream calls.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	toolCalls        *prometheus.CounterVec
	toolDuration     *prometheus.HistogramVec
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
}

// New registers the collectors with reg. Registration errors are returned so
// callers can supply a fresh registry per test.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "compliance_mcp",
				Subsystem: "tools",
				Name:      "calls_total",
				Help:      "Tool invocations by tool and outcome (ok or the upstream failure kind).",
			},
			[]string{"tool", "outcome"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "compliance_mcp",
				Subsystem: "tools",
				Name:      "call_duration_seconds",
				Help:      "Time spent serving a tool invocation, including upstream I/O.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		upstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "compliance_mcp",
				Subsystem: "upstream",
				Name:      "requests_total",
				Help:      "Requests sent to the compliance API by method and outcome.",
			},
			[]string{"method", "outcome"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "compliance_mcp",
				Subsystem: "upstream",
				Name:      "request_duration_seconds",
				Help:      "Latency of compliance API requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
	for _, c := range []prometheus.Collector{m.toolCalls, m.toolDuration, m.upstreamRequests, m.upstreamDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveTool(tool, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

func (m *Metrics) ObserveUpstream(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(method, outcome).Inc()
	m.upstreamDuration.WithLabelValues(method).Observe(d.Seconds())
}
