package bridge

import (
	"log/slog"

	"github.com/Agrid-Dev/venstar-mqtt/internal/events"
	"github.com/Agrid-Dev/venstar-mqtt/internal/thermostat"
	"github.com/Agrid-Dev/venstar-mqtt/internal/venstar"
)

// PollStatus fetches info, sensors and alerts. Each request is independent:
// a failure of one does not stop the others. Nothing is retried within a
// tick; the next tick is the retry.
func (e *Engine) PollStatus() {
	e.post(func() {
		async(e, e.client.Info, e.applyInfo)
		async(e, e.client.Sensors, e.applySensors)
		async(e, e.client.Alerts, e.applyAlerts)
	})
}

// PollRuntimes fetches the runtime history and publishes the latest record.
func (e *Engine) PollRuntimes() {
	e.post(func() { e.pollRuntimes(false) })
}

func (e *Engine) pollRuntimes(query bool) {
	async(e, e.client.Runtimes, func(runtimes []venstar.Runtime, err error) {
		e.applyRuntimes(runtimes, err, query)
	})
}

func (e *Engine) pollFailed(endpoint string, err error) {
	e.logger.Error("query "+endpoint+" failed", slog.Any("err", err))
	e.metrics.PollErrors.WithLabelValues(endpoint).Inc()
	e.health.Unhealthy("query " + endpoint + " failed: " + err.Error())
}

func (e *Engine) applyInfo(info venstar.Info, err error) {
	if err != nil {
		e.pollFailed("info", err)
		return
	}
	e.health.Healthy()

	e.fields = info.Fields
	if !e.state.ApplySnapshot(toSnapshot(info)) {
		e.logger.Debug("update pending, keeping desired state")
	}

	for _, f := range info.Fields {
		e.publisher.Publish(events.FieldUpdated{Name: f.Name, Value: f.Value})
	}
	if target, ok := e.state.TargetTemperature(); ok {
		e.publisher.Publish(events.TargetTemperatureUpdated{Value: target})
	}
	e.logger.Debug("info updated", slog.Int("fields", len(info.Fields)))
}

func (e *Engine) applySensors(sensors []venstar.Sensor, err error) {
	if err != nil {
		e.pollFailed("sensors", err)
		return
	}
	e.health.Healthy()

	for _, s := range sensors {
		e.publisher.Publish(events.SensorUpdated{Name: s.Name, Temp: s.Temp, Humidity: s.Humidity})
	}
	e.logger.Debug("sensors updated", slog.Int("sensors", len(sensors)))
}

func (e *Engine) applyAlerts(alerts []venstar.Alert, err error) {
	if err != nil {
		e.pollFailed("alerts", err)
		return
	}
	e.health.Healthy()

	for _, a := range alerts {
		e.publisher.Publish(events.AlertUpdated{Name: a.Name, Active: bool(a.Active)})
	}
	e.logger.Debug("alerts updated", slog.Int("alerts", len(alerts)))
}

func (e *Engine) applyRuntimes(runtimes []venstar.Runtime, err error, query bool) {
	if err != nil {
		e.pollFailed("runtimes", err)
		return
	}
	e.health.Healthy()

	if len(runtimes) == 0 {
		e.logger.Debug("no runtime records")
		return
	}
	latest := runtimes[len(runtimes)-1]
	e.publisher.Publish(events.RuntimeUpdated{Fields: toEventFields(latest.Fields), Query: query})
	e.logger.Debug("runtime updated", slog.Bool("query", query))
}

func toSnapshot(info venstar.Info) thermostat.Snapshot {
	var s thermostat.Snapshot
	if v, ok := info.Mode(); ok {
		m := thermostat.Mode(v)
		s.Mode = &m
	}
	if v, ok := info.Fan(); ok {
		f := thermostat.FanMode(v)
		s.Fan = &f
	}
	if v, ok := info.FanState(); ok {
		s.FanState = &v
	}
	if v, ok := info.HeatTemp(); ok {
		s.HeatTemp = &v
	}
	if v, ok := info.CoolTemp(); ok {
		s.CoolTemp = &v
	}
	if v, ok := info.SpaceTemp(); ok {
		s.SpaceTemp = &v
	}
	if v, ok := info.SetpointDelta(); ok {
		s.SetpointDelta = &v
	}
	return s
}

func toEventFields(fields venstar.Fields) []events.Field {
	if fields == nil {
		return nil
	}
	out := make([]events.Field, len(fields))
	for i, f := range fields {
		out[i] = events.Field{Name: f.Name, Value: f.Value}
	}
	return out
}
