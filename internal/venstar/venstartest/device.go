// Package venstartest provides an in-memory thermostat that serves the local
// HTTP API, for tests that exercise the real client.
package venstartest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
)

type info struct {
	Name          string  `json:"name"`
	Mode          int     `json:"mode"`
	State         int     `json:"state"`
	Fan           int     `json:"fan"`
	FanState      int     `json:"fanstate"`
	TempUnits     int     `json:"tempunits"`
	Schedule      int     `json:"schedule"`
	Away          int     `json:"away"`
	SpaceTemp     float64 `json:"spacetemp"`
	HeatTemp      float64 `json:"heattemp"`
	CoolTemp      float64 `json:"cooltemp"`
	SetpointDelta float64 `json:"setpointdelta"`
}

// Device is a thermostat with a fixed sensor, alert and runtime set. It is
// safe for concurrent use.
type Device struct {
	mu sync.Mutex

	state    info
	controls []url.Values
	settings []url.Values

	failControls int
	infoStatus   int
	infoError    string
}

func NewDevice() *Device {
	return &Device{
		state: info{
			Name:          "Hallway",
			Mode:          1,
			TempUnits:     0,
			SpaceTemp:     70,
			HeatTemp:      68,
			CoolTemp:      75,
			SetpointDelta: 2,
		},
	}
}

// Serve starts an httptest server for d, closed when the test ends.
func (d *Device) Serve(t testing.TB) *httptest.Server {
	srv := httptest.NewServer(d.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func (d *Device) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /query/info", d.handleInfo)
	mux.HandleFunc("GET /query/sensors", d.handleSensors)
	mux.HandleFunc("GET /query/alerts", d.handleAlerts)
	mux.HandleFunc("GET /query/runtimes", d.handleRuntimes)
	mux.HandleFunc("POST /control", d.handleControl)
	mux.HandleFunc("POST /settings", d.handleSettings)
	return mux
}

// FailControls makes the next n control requests answer 500.
func (d *Device) FailControls(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failControls = n
}

// SetInfoStatus makes info queries answer with code; 0 restores normal replies.
func (d *Device) SetInfoStatus(code int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.infoStatus = code
}

// SetInfoError makes info queries answer 200 with a device error body carrying
// reason; "" restores normal replies.
func (d *Device) SetInfoError(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.infoError = reason
}

// Setpoints returns the current mode, fan, heat and cool values.
func (d *Device) Setpoints() (mode, fan int, heat, cool float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Mode, d.state.Fan, d.state.HeatTemp, d.state.CoolTemp
}

// Controls returns every control form received, including failed ones.
func (d *Device) Controls() []url.Values {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]url.Values(nil), d.controls...)
}

func (d *Device) Settings() []url.Values {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]url.Values(nil), d.settings...)
}

// ---- Handlers ----

func (d *Device) handleInfo(w http.ResponseWriter, _ *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.infoStatus != 0 {
		http.Error(w, "unavailable", d.infoStatus)
		return
	}
	if d.infoError != "" {
		writeJSON(w, map[string]any{"error": true, "reason": d.infoError})
		return
	}
	writeJSON(w, d.state)
}

func (d *Device) handleSensors(w http.ResponseWriter, _ *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	writeJSON(w, map[string]any{
		"sensors": []map[string]any{
			{"name": "Thermostat", "temp": d.state.SpaceTemp, "hum": 41},
			{"name": "Outdoor", "temp": 55},
		},
	})
}

func (d *Device) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"alerts": []map[string]any{
			{"name": "Air Filter", "active": true},
			{"name": "Service", "active": false},
		},
	})
}

func (d *Device) handleRuntimes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"runtimes": []map[string]any{
			{"ts": 1700000000, "heat1": 30, "cool1": 0},
			{"ts": 1700086400, "heat1": 42, "cool1": 5},
		},
	})
}

func (d *Device) handleControl(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.controls = append(d.controls, r.PostForm)

	if d.failControls > 0 {
		d.failControls--
		http.Error(w, "busy", http.StatusInternalServerError)
		return
	}

	next := d.state
	if v, ok := formInt(r.PostForm, "mode"); ok {
		next.Mode = v
	}
	if v, ok := formInt(r.PostForm, "fan"); ok {
		next.Fan = v
	}
	if v, ok := formFloat(r.PostForm, "heattemp"); ok {
		next.HeatTemp = v
	}
	if v, ok := formFloat(r.PostForm, "cooltemp"); ok {
		next.CoolTemp = v
	}
	if next.Mode == 3 && next.CoolTemp-next.HeatTemp < next.SetpointDelta {
		writeJSON(w, map[string]any{"error": true, "reason": "setpoints too close"})
		return
	}
	d.state = next
	writeJSON(w, map[string]any{"success": true})
}

func (d *Device) handleSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings = append(d.settings, r.PostForm)
	if v, ok := formInt(r.PostForm, "away"); ok {
		d.state.Away = v
	}
	if v, ok := formInt(r.PostForm, "tempunits"); ok {
		d.state.TempUnits = v
	}
	writeJSON(w, map[string]any{"success": true})
}

func formInt(form url.Values, key string) (int, bool) {
	v, err := strconv.Atoi(form.Get(key))
	return v, err == nil
}

func formFloat(form url.Values, key string) (float64, bool) {
	v, err := strconv.ParseFloat(form.Get(key), 64)
	return v, err == nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
