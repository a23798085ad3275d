package ports

import (
	"context"

	"github.com/Agrid-Dev/venstar-mqtt/internal/events"
	"github.com/Agrid-Dev/venstar-mqtt/internal/thermostat"
)

// ThermostatService is the control-plane port used by controllers (MQTT/HTTP).
type ThermostatService interface {
	SetMode(mode string) error
	SetFan(fan string) error
	SetHeatTemp(v float64) error
	SetCoolTemp(v float64) error
	SetTargetTemp(v float64) error
	UpdateSetting(name, value string) error
	Query(target string) error
	Status(ctx context.Context) (Status, error)
}

// HealthSignal receives success/failure signals from the components.
type HealthSignal interface {
	Healthy()
	Unhealthy(reason string)
}

// EventSource is where controllers get poll results from.
type EventSource interface {
	Subscribe() <-chan events.Event
	Unsubscribe(<-chan events.Event)
}

// Status is a point-in-time copy of the bridge state.
type Status struct {
	Polled   bool
	Snapshot thermostat.Snapshot
	Desired  thermostat.Desired
	Pending  bool
	Target   *float64
	Fields   []events.Field
}
