package thermostat

import "fmt"

// Mode is the device's integer HVAC mode code.
type Mode int

const (
	ModeOff Mode = iota
	ModeHeat
	ModeCool
	ModeAuto
)

func (m Mode) Valid() bool {
	return m >= ModeOff && m <= ModeAuto
}

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeHeat:
		return "heat"
	case ModeCool:
		return "cool"
	case ModeAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// ParseMode maps the bus vocabulary to a device mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "off":
		return ModeOff, nil
	case "heat":
		return ModeHeat, nil
	case "cool":
		return ModeCool, nil
	case "auto":
		return ModeAuto, nil
	default:
		return ModeOff, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// FanMode is the device's integer fan code.
type FanMode int

const (
	FanAuto FanMode = iota
	FanOn
)

func (f FanMode) Valid() bool {
	return f == FanAuto || f == FanOn
}

func (f FanMode) String() string {
	switch f {
	case FanAuto:
		return "auto"
	case FanOn:
		return "on"
	default:
		return "unknown"
	}
}

// ParseFanMode accepts "off" as an alias of "auto": the device has no
// fan-off state, only "run when needed".
func ParseFanMode(s string) (FanMode, error) {
	switch s {
	case "auto", "off":
		return FanAuto, nil
	case "on":
		return FanOn, nil
	default:
		return FanAuto, fmt.Errorf("%w: %q", ErrInvalidFanMode, s)
	}
}
