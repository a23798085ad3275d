// Package bridge runs the loop that owns the thermostat state: it applies
// commands, writes them to the device once they settle, and turns polls into
// events.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Agrid-Dev/venstar-mqtt/internal/events"
	"github.com/Agrid-Dev/venstar-mqtt/internal/metrics"
	"github.com/Agrid-Dev/venstar-mqtt/internal/ports"
	"github.com/Agrid-Dev/venstar-mqtt/internal/thermostat"
	"github.com/Agrid-Dev/venstar-mqtt/internal/venstar"
)

var (
	ErrInvalidTemperature = errors.New("invalid temperature")
	ErrUnsupportedQuery   = errors.New("unsupported query")
	ErrStopped            = errors.New("bridge stopped")
)

// DeviceClient is the subset of venstar.Client the engine uses.
type DeviceClient interface {
	Info(context.Context) (venstar.Info, error)
	Sensors(context.Context) ([]venstar.Sensor, error)
	Alerts(context.Context) ([]venstar.Alert, error)
	Runtimes(context.Context) ([]venstar.Runtime, error)
	Control(context.Context, venstar.ControlRequest) error
	Setting(ctx context.Context, name, value string) error
}

var _ ports.ThermostatService = &Engine{}

// Engine serializes all access to the thermostat state on the goroutine
// running Run. Other goroutines (bus callbacks, the scheduler, HTTP handlers,
// device calls completing) only queue work for it.
type Engine struct {
	client    DeviceClient
	health    ports.HealthSignal
	publisher *events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// owned by the loop
	ctx       context.Context
	state     *thermostat.State
	fields    venstar.Fields
	debouncer *thermostat.Debouncer
	writing   bool

	work chan func()
	done chan struct{}
}

func New(client DeviceClient, health ports.HealthSignal, publisher *events.Publisher, m *metrics.Metrics, updateDelay time.Duration, logger *slog.Logger) *Engine {
	e := &Engine{
		client:    client,
		health:    health,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		ctx:       context.Background(),
		state:     thermostat.NewState(),
		work:      make(chan func(), 64),
		done:      make(chan struct{}),
	}
	e.debouncer = thermostat.NewDebouncer(updateDelay, func(gen uint64) {
		e.post(func() { e.onDebounceFired(gen) })
	})
	return e
}

func (e *Engine) Run(ctx context.Context) error {
	e.logger.Debug("started", slog.Duration("updateDelay", e.debouncer.Delay()))
	defer e.logger.Debug("stopped")
	defer close(e.done)

	e.ctx = ctx
	defer e.debouncer.Cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-e.work:
			fn()
		}
	}
}

// post queues fn for the loop. It returns false once the loop has stopped.
func (e *Engine) post(fn func()) bool {
	select {
	case e.work <- fn:
		return true
	case <-e.done:
		return false
	}
}

// async runs call off the loop and hands its result back to apply on the loop.
func async[T any](e *Engine, call func(context.Context) (T, error), apply func(T, error)) {
	ctx := e.ctx
	go func() {
		v, err := call(ctx)
		e.post(func() { apply(v, err) })
	}()
}

// ---- commands ----

func (e *Engine) SetMode(mode string) error {
	if _, err := thermostat.ParseMode(mode); err != nil {
		e.logger.Warn("ignoring mode command", slog.String("mode", mode))
		return err
	}
	e.logger.Info("set mode", slog.String("mode", mode))
	e.reconcile(thermostat.Command{Mode: mode})
	return nil
}

func (e *Engine) SetFan(fan string) error {
	if _, err := thermostat.ParseFanMode(fan); err != nil {
		e.logger.Warn("ignoring fan command", slog.String("fan", fan))
		return err
	}
	e.logger.Info("set fan", slog.String("fan", fan))
	e.reconcile(thermostat.Command{Fan: fan})
	return nil
}

func (e *Engine) SetHeatTemp(v float64) error {
	if err := checkTemperature(v); err != nil {
		return err
	}
	e.logger.Info("set heat temperature", slog.Float64("value", v))
	e.reconcile(thermostat.Command{HeatTemp: v})
	return nil
}

func (e *Engine) SetCoolTemp(v float64) error {
	if err := checkTemperature(v); err != nil {
		return err
	}
	e.logger.Info("set cool temperature", slog.Float64("value", v))
	e.reconcile(thermostat.Command{CoolTemp: v})
	return nil
}

func (e *Engine) SetTargetTemp(v float64) error {
	if err := checkTemperature(v); err != nil {
		return err
	}
	e.logger.Info("set target temperature", slog.Float64("value", v))
	e.reconcile(thermostat.Command{TargetTemp: v})
	return nil
}

func checkTemperature(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTemperature, v)
	}
	return nil
}

func (e *Engine) reconcile(cmd thermostat.Command) {
	e.post(func() {
		e.state.Reconcile(cmd)
		e.metrics.SetPending(true)
		e.debouncer.Schedule()
		d := e.state.Desired
		e.logger.Debug("update queued",
			slog.Float64("heattemp", d.HeatTemp),
			slog.Float64("cooltemp", d.CoolTemp),
			slog.Float64("setpointdelta", e.state.SetpointDelta()),
		)
	})
}

// UpdateSetting writes a device setting right away. Unsupported names are
// rejected without contacting the device; failed writes are not retried.
func (e *Engine) UpdateSetting(name, value string) error {
	if !venstar.SupportedSetting(name) {
		return fmt.Errorf("%w: %q", venstar.ErrUnsupportedSetting, name)
	}
	e.logger.Info("updating setting", slog.String("setting", name), slog.String("value", value))
	e.post(func() {
		async(e, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, e.client.Setting(ctx, name, value)
		}, func(_ struct{}, err error) {
			if err != nil {
				e.logger.Error("settings update failed", slog.String("setting", name), slog.Any("err", err))
				e.health.Unhealthy("settings update failed: " + err.Error())
				return
			}
			e.logger.Info("settings update succeeded", slog.String("setting", name))
		})
	})
	return nil
}

// Query fetches data on demand. Only "runtime" is supported.
func (e *Engine) Query(target string) error {
	if target != "runtime" {
		e.logger.Error("unsupported query type", slog.String("target", target))
		return fmt.Errorf("%w: %q", ErrUnsupportedQuery, target)
	}
	e.post(func() { e.pollRuntimes(true) })
	return nil
}

func (e *Engine) Status(ctx context.Context) (ports.Status, error) {
	reply := make(chan ports.Status, 1)
	select {
	case e.work <- func() { reply <- e.status() }:
	case <-e.done:
		return ports.Status{}, ErrStopped
	case <-ctx.Done():
		return ports.Status{}, ctx.Err()
	}
	select {
	case st := <-reply:
		return st, nil
	case <-e.done:
		return ports.Status{}, ErrStopped
	case <-ctx.Done():
		return ports.Status{}, ctx.Err()
	}
}

func (e *Engine) status() ports.Status {
	st := ports.Status{
		Polled:   e.state.HasSnapshot,
		Snapshot: e.state.Snapshot,
		Desired:  e.state.Desired,
		Pending:  e.state.Pending,
		Fields:   toEventFields(e.fields),
	}
	if target, ok := e.state.TargetTemperature(); ok {
		st.Target = &target
	}
	return st
}

// ---- debounced write ----

func (e *Engine) onDebounceFired(gen uint64) {
	if !e.debouncer.Fired(gen) {
		return
	}
	e.logger.Debug("queued timer fired")
	e.flush()
}

func (e *Engine) flush() {
	if e.writing {
		e.logger.Debug("previous update still in flight, re-arming")
		e.debouncer.Schedule()
		return
	}
	if !e.state.Desired.Complete() {
		e.logger.Warn("thermostat state not known yet, waiting for a poll before updating")
		e.debouncer.Schedule()
		return
	}

	ctrl := e.state.TakeControl()
	req := toControlRequest(ctrl)
	attrs := []any{
		slog.Int("mode", req.Mode),
		slog.Float64("heattemp", req.HeatTemp),
		slog.Float64("cooltemp", req.CoolTemp),
	}
	if req.Fan != nil {
		attrs = append(attrs, slog.Int("fan", *req.Fan))
	}
	e.logger.Info("updating thermostat", attrs...)

	e.writing = true
	async(e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.client.Control(ctx, req)
	}, func(_ struct{}, err error) {
		e.writeDone(ctrl, err)
	})
}

func (e *Engine) writeDone(ctrl thermostat.Control, err error) {
	e.writing = false

	if err != nil {
		e.logger.Error("update request failed, will retry",
			slog.Any("err", err),
			slog.Duration("retryIn", e.debouncer.Delay()),
		)
		e.metrics.ControlWrites.WithLabelValues("failure").Inc()
		e.health.Unhealthy("control write failed: " + err.Error())
		e.state.RestoreFan(ctrl)
		e.debouncer.Schedule()
		return
	}

	e.metrics.ControlWrites.WithLabelValues("success").Inc()
	e.health.Healthy()
	if e.debouncer.Armed() {
		// a newer command is queued; stay pending until it is written too
		e.logger.Info("update succeeded, newer update queued")
		return
	}
	e.state.Confirm()
	e.metrics.SetPending(false)
	e.logger.Info("update succeeded")
}

func toControlRequest(c thermostat.Control) venstar.ControlRequest {
	req := venstar.ControlRequest{
		Mode:     int(c.Mode),
		HeatTemp: c.HeatTemp,
		CoolTemp: c.CoolTemp,
	}
	if c.Fan != nil {
		fan := int(*c.Fan)
		req.Fan = &fan
	}
	return req
}
