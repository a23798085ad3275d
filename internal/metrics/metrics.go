// Package metrics holds the bridge's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "venstar"

type Metrics struct {
	DeviceRequests *prometheus.CounterVec
	DeviceDuration *prometheus.HistogramVec
	PollErrors     *prometheus.CounterVec
	ControlWrites  *prometheus.CounterVec
	PendingUpdate  prometheus.Gauge
	BusMessages    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DeviceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "http_requests_total",
			Help:      "total number of http requests to the thermostat",
		}, []string{"code", "method"}),
		DeviceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "http_request_duration_seconds",
			Help:      "duration of http requests to the thermostat",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code", "method"}),
		PollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "poll_errors_total",
			Help:      "failed polls, by endpoint",
		}, []string{"endpoint"}),
		ControlWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "control_writes_total",
			Help:      "control writes sent to the thermostat, by result",
		}, []string{"result"}),
		PendingUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "pending_update",
			Help:      "1 while a command has not yet been written to the thermostat",
		}),
		BusMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "messages_total",
			Help:      "mqtt messages, by direction",
		}, []string{"direction"}),
	}
	reg.MustRegister(m.DeviceRequests, m.DeviceDuration, m.PollErrors, m.ControlWrites, m.PendingUpdate, m.BusMessages)
	return m
}

// InstrumentTransport wraps rt so every device request is counted and timed.
func (m *Metrics) InstrumentTransport(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperCounter(m.DeviceRequests,
		promhttp.InstrumentRoundTripperDuration(m.DeviceDuration, rt),
	)
}

func (m *Metrics) SetPending(pending bool) {
	if pending {
		m.PendingUpdate.Set(1)
		return
	}
	m.PendingUpdate.Set(0)
}
