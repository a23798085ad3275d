package thermostat

import "math"

// Command is one partial change request. Empty strings and non-positive
// temperatures mean "not supplied". TargetTemp, when supplied, overrides
// HeatTemp and CoolTemp.
type Command struct {
	Mode       string
	Fan        string
	HeatTemp   float64
	CoolTemp   float64
	TargetTemp float64
}

// Reconcile merges cmd into Desired and marks the state pending.
//
// Setpoints are rounded to the device's 0.5 degree granularity. After every
// call cool - heat >= delta holds: moving one setpoint drags the other along
// when the gap would become too small.
func (s *State) Reconcile(cmd Command) {
	delta := s.SetpointDelta()
	d := &s.Desired

	heat, cool := cmd.HeatTemp, cmd.CoolTemp
	if cmd.TargetTemp > 0 {
		target := RoundHalf(cmd.TargetTemp)
		cool = target + delta/2
		heat = target - delta/2
	}

	if cool > 0 {
		d.CoolTemp = round1(RoundHalf(cool))
		if d.HeatTemp <= 0 || tooClose(d.HeatTemp, d.CoolTemp, delta) {
			d.HeatTemp = round1(d.CoolTemp - delta)
		}
	}

	if heat > 0 {
		d.HeatTemp = round1(RoundHalf(heat))
		if d.CoolTemp <= 0 || tooClose(d.HeatTemp, d.CoolTemp, delta) {
			d.CoolTemp = round1(d.HeatTemp + delta)
		}
	}

	if m, err := ParseMode(cmd.Mode); err == nil {
		d.Mode = &m
	}

	if f, err := ParseFanMode(cmd.Fan); err == nil {
		d.Fan = f
		d.FanPending = true
	}

	// an inverted band is meaningless in auto
	if d.Mode != nil && *d.Mode == ModeAuto && d.CoolTemp < d.HeatTemp {
		d.CoolTemp = round1(d.HeatTemp + delta)
	}

	s.Pending = true
}

// setpoints carry one decimal, so allow for float noise in the difference
const epsilon = 1e-9

func tooClose(heat, cool, delta float64) bool {
	return cool-heat < delta-epsilon
}

// RoundHalf rounds to the nearest 0.5, halves away from zero.
func RoundHalf(v float64) float64 {
	return math.Round(v*2) / 2
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
