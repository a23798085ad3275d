// Package events defines the notifications the bridge engine emits after
// polling the thermostat.
package events

// Event is one of FieldUpdated, TargetTemperatureUpdated, SensorUpdated,
// AlertUpdated or RuntimeUpdated.
type Event interface {
	event()
}

// FieldUpdated carries one field of the device's info response.
type FieldUpdated struct {
	Name  string
	Value any
}

// TargetTemperatureUpdated carries the midpoint of the heat and cool setpoints.
type TargetTemperatureUpdated struct {
	Value float64
}

// SensorUpdated carries one sensor reading. Humidity is nil for sensors
// that do not measure it.
type SensorUpdated struct {
	Name     string
	Temp     *float64
	Humidity *float64
}

type AlertUpdated struct {
	Name   string
	Active bool
}

// Field is a key/value pair kept in device order.
type Field struct {
	Name  string
	Value any
}

// RuntimeUpdated carries the most recent runtime record. Query is set when
// it answers an explicit query rather than the scheduled poll.
type RuntimeUpdated struct {
	Fields []Field
	Query  bool
}

func (FieldUpdated) event()             {}
func (TargetTemperatureUpdated) event() {}
func (SensorUpdated) event()            {}
func (AlertUpdated) event()             {}
func (RuntimeUpdated) event()           {}
