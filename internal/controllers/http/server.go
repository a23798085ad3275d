package httpctrl

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Agrid-Dev/venstar-mqtt/internal/ports"
	"github.com/Agrid-Dev/venstar-mqtt/internal/thermostat"
)

type Server struct {
	svc    ports.ThermostatService
	srv    *http.Server
	logger *slog.Logger
}

// New returns a runnable server. health and metrics are mounted on /healthz
// and /metrics when non-nil.
func New(svc ports.ThermostatService, addr string, health, metrics http.Handler, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{svc: svc, logger: logger}

	// Read
	mux.HandleFunc("GET /v1", s.handleGet)

	// Write: one endpoint per command
	mux.HandleFunc("POST /v1/mode", s.handlePostMode)
	mux.HandleFunc("POST /v1/fan", s.handlePostFan)
	mux.HandleFunc("POST /v1/temperature_heat", s.handlePostHeat)
	mux.HandleFunc("POST /v1/temperature_cool", s.handlePostCool)
	mux.HandleFunc("POST /v1/temperature_target", s.handlePostTarget)
	mux.HandleFunc("POST /v1/setting/{name}", s.handlePostSetting)
	mux.HandleFunc("POST /v1/query", s.handlePostQuery)

	if health != nil {
		mux.Handle("GET /healthz", health)
	}
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("listening", slog.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ---- DTOs ----

type desiredDTO struct {
	Mode     string  `json:"mode,omitempty"`
	Fan      string  `json:"fan"`
	HeatTemp float64 `json:"heat_temp"`
	CoolTemp float64 `json:"cool_temp"`
}

type statusDTO struct {
	Polled        bool           `json:"polled"`
	Pending       bool           `json:"pending"`
	Mode          string         `json:"mode,omitempty"`
	Fan           string         `json:"fan,omitempty"`
	FanState      *int           `json:"fan_state,omitempty"`
	HeatTemp      *float64       `json:"heat_temp,omitempty"`
	CoolTemp      *float64       `json:"cool_temp,omitempty"`
	SpaceTemp     *float64       `json:"space_temp,omitempty"`
	SetpointDelta *float64       `json:"setpoint_delta,omitempty"`
	TargetTemp    *float64       `json:"target_temp,omitempty"`
	Desired       desiredDTO     `json:"desired"`
	Fields        map[string]any `json:"fields,omitempty"`
}

func toDTO(st ports.Status) statusDTO {
	snap := st.Snapshot
	dto := statusDTO{
		Polled:        st.Polled,
		Pending:       st.Pending,
		FanState:      snap.FanState,
		HeatTemp:      snap.HeatTemp,
		CoolTemp:      snap.CoolTemp,
		SpaceTemp:     snap.SpaceTemp,
		SetpointDelta: snap.SetpointDelta,
		TargetTemp:    st.Target,
		Desired: desiredDTO{
			Fan:      st.Desired.Fan.String(),
			HeatTemp: st.Desired.HeatTemp,
			CoolTemp: st.Desired.CoolTemp,
		},
	}
	if snap.Mode != nil {
		dto.Mode = snap.Mode.String()
	}
	if snap.Fan != nil {
		dto.Fan = snap.Fan.String()
	}
	if st.Desired.Mode != nil {
		dto.Desired.Mode = st.Desired.Mode.String()
	}
	if len(st.Fields) > 0 {
		dto.Fields = make(map[string]any, len(st.Fields))
		for _, f := range st.Fields {
			dto.Fields[f.Name] = f.Value
		}
	}
	return dto
}

// ---- Handlers ----

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.respondStatus(w, r, http.StatusOK)
}

func (s *Server) handlePostMode(w http.ResponseWriter, r *http.Request) {
	// body: {"value": "heat"}
	postValue(s, w, r, func(v string) error {
		if _, err := thermostat.ParseMode(v); err != nil {
			return err
		}
		return s.svc.SetMode(v)
	})
}

func (s *Server) handlePostFan(w http.ResponseWriter, r *http.Request) {
	// body: {"value": "on"}
	postValue(s, w, r, func(v string) error {
		if _, err := thermostat.ParseFanMode(v); err != nil {
			return err
		}
		return s.svc.SetFan(v)
	})
}

func (s *Server) handlePostHeat(w http.ResponseWriter, r *http.Request) {
	postValue(s, w, r, s.svc.SetHeatTemp)
}

func (s *Server) handlePostCool(w http.ResponseWriter, r *http.Request) {
	postValue(s, w, r, s.svc.SetCoolTemp)
}

func (s *Server) handlePostTarget(w http.ResponseWriter, r *http.Request) {
	postValue(s, w, r, s.svc.SetTargetTemp)
}

func (s *Server) handlePostSetting(w http.ResponseWriter, r *http.Request) {
	// body: {"value": "away"}
	name := r.PathValue("name")
	postValue(s, w, r, func(v string) error {
		return s.svc.UpdateSetting(name, v)
	})
}

func (s *Server) handlePostQuery(w http.ResponseWriter, r *http.Request) {
	// body: {"value": "runtime"}
	postValue(s, w, r, s.svc.Query)
}

// ---- generic helpers ----
func (s *Server) respondStatus(w http.ResponseWriter, r *http.Request, code int) {
	st, err := s.svc.Status(r.Context())
	if err != nil {
		writeErr(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, code, toDTO(st))
}

// postValue applies the command and answers with the status. Commands are
// written to the device later, so success is 202.
func postValue[T any](s *Server, w http.ResponseWriter, r *http.Request, apply func(T) error) {
	dec := json.NewDecoder(r.Body)
	var req struct {
		Value *T `json:"value"`
	}
	if err := dec.Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Value == nil {
		writeErr(w, http.StatusBadRequest, "missing field 'value'")
		return
	}

	if err := apply(*req.Value); err != nil {
		s.logger.Warn("command rejected", slog.String("path", r.URL.Path), slog.Any("err", err))
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondStatus(w, r, http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
