package testutil

import (
	"context"

	"github.com/Agrid-Dev/venstar-mqtt/internal/events"
	"github.com/Agrid-Dev/venstar-mqtt/internal/ports"
	"github.com/Agrid-Dev/venstar-mqtt/internal/thermostat"
)

// FakeThermostatService is a reusable fake implementing ports.ThermostatService.
// Put ONLY what multiple test packages need here.
type FakeThermostatService struct {
	S ports.Status

	SetModeCalled bool
	SetModeArg    string
	SetModeErr    error

	SetFanCalled bool
	SetFanArg    string
	SetFanErr    error

	SetHeatTempCalled bool
	SetHeatTempArg    float64

	SetCoolTempCalled bool
	SetCoolTempArg    float64

	SetTargetTempCalled bool
	SetTargetTempArg    float64
	SetTempErr          error

	UpdateSettingCalled bool
	UpdateSettingName   string
	UpdateSettingValue  string
	UpdateSettingErr    error

	QueryCalled bool
	QueryArg    string
	QueryErr    error

	StatusErr error
}

func ptr[T any](v T) *T { return &v }

func NewFakeThermostatService() *FakeThermostatService {
	target := 72.0
	return &FakeThermostatService{
		S: ports.Status{
			Polled: true,
			Snapshot: thermostat.Snapshot{
				Mode:          ptr(thermostat.ModeHeat),
				Fan:           ptr(thermostat.FanAuto),
				FanState:      ptr(0),
				HeatTemp:      ptr(70.0),
				CoolTemp:      ptr(74.0),
				SpaceTemp:     ptr(71.5),
				SetpointDelta: ptr(2.0),
			},
			Desired: thermostat.Desired{
				Mode:     ptr(thermostat.ModeHeat),
				Fan:      thermostat.FanAuto,
				HeatTemp: 70,
				CoolTemp: 74,
			},
			Target: &target,
			Fields: []events.Field{
				{Name: "name", Value: "Hallway"},
				{Name: "mode", Value: 1.0},
				{Name: "spacetemp", Value: 71.5},
			},
		},
	}
}

func (f *FakeThermostatService) Status(context.Context) (ports.Status, error) {
	return f.S, f.StatusErr
}

func (f *FakeThermostatService) SetMode(mode string) error {
	f.SetModeCalled = true
	f.SetModeArg = mode
	return f.SetModeErr
}

func (f *FakeThermostatService) SetFan(fan string) error {
	f.SetFanCalled = true
	f.SetFanArg = fan
	return f.SetFanErr
}

func (f *FakeThermostatService) SetHeatTemp(v float64) error {
	f.SetHeatTempCalled = true
	f.SetHeatTempArg = v
	return f.SetTempErr
}

func (f *FakeThermostatService) SetCoolTemp(v float64) error {
	f.SetCoolTempCalled = true
	f.SetCoolTempArg = v
	return f.SetTempErr
}

func (f *FakeThermostatService) SetTargetTemp(v float64) error {
	f.SetTargetTempCalled = true
	f.SetTargetTempArg = v
	return f.SetTempErr
}

func (f *FakeThermostatService) UpdateSetting(name, value string) error {
	f.UpdateSettingCalled = true
	f.UpdateSettingName = name
	f.UpdateSettingValue = value
	return f.UpdateSettingErr
}

func (f *FakeThermostatService) Query(target string) error {
	f.QueryCalled = true
	f.QueryArg = target
	return f.QueryErr
}
