// Package health tracks whether the bridge can currently reach the
// thermostat and the broker.
package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Monitor records healthy/unhealthy signals from the components. It starts
// unhealthy until the first success.
type Monitor struct {
	logger  *slog.Logger
	now     func() time.Time
	lock    sync.RWMutex
	healthy bool
	reason  string
	since   time.Time
}

func New(logger *slog.Logger) *Monitor {
	return &Monitor{
		logger: logger,
		now:    time.Now,
		reason: "no successful poll yet",
		since:  time.Now(),
	}
}

func (m *Monitor) Healthy() {
	m.lock.Lock()
	defer m.lock.Unlock()
	if !m.healthy {
		m.logger.Info("healthy", slog.Duration("after", m.now().Sub(m.since)))
		m.healthy = true
		m.reason = ""
		m.since = m.now()
	}
}

func (m *Monitor) Unhealthy(reason string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.healthy {
		m.logger.Warn("unhealthy", slog.String("reason", reason))
		m.since = m.now()
	}
	m.healthy = false
	m.reason = reason
}

// Status is the JSON body served by ServeHTTP.
type Status struct {
	Healthy bool      `json:"healthy"`
	Reason  string    `json:"reason,omitempty"`
	Since   time.Time `json:"since"`
}

func (m *Monitor) Status() Status {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return Status{Healthy: m.healthy, Reason: m.reason, Since: m.since}
}

func (m *Monitor) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	st := m.Status()
	code := http.StatusOK
	if !st.Healthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(st)
}
