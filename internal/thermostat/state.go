// Package thermostat holds the bridge's view of the thermostat: the last
// snapshot read from the device, the desired overlay built from commands, and
// the logic that reconciles the two before a write.
//
// Nothing in this package is safe for concurrent use. The bridge engine owns
// a single State and serializes every call on its loop.
package thermostat

// DefaultSetpointDelta is used until the device has reported its own.
const DefaultSetpointDelta = 2.0

// Snapshot is the last status read from the device. Nil fields were not
// reported.
type Snapshot struct {
	Mode          *Mode
	Fan           *FanMode
	FanState      *int
	HeatTemp      *float64
	CoolTemp      *float64
	SpaceTemp     *float64
	SetpointDelta *float64
}

// Desired is the command in progress. Zero setpoints are unknown.
type Desired struct {
	Mode     *Mode
	Fan      FanMode
	HeatTemp float64
	CoolTemp float64

	// FanPending is set by a fan command and cleared once the fan value
	// has been included in an outbound write.
	FanPending bool
}

// Complete reports whether enough is known to build a control write.
func (d Desired) Complete() bool {
	return d.Mode != nil && d.HeatTemp > 0 && d.CoolTemp > 0
}

// Control is the payload of one outbound write. Fan is nil unless a fan
// change is pending.
type Control struct {
	Mode     Mode
	Fan      *FanMode
	HeatTemp float64
	CoolTemp float64
}

type State struct {
	Snapshot    Snapshot
	HasSnapshot bool
	Desired     Desired

	// Pending is true from the moment a command is reconciled until a
	// write carrying it has been accepted by the device. While it is set,
	// snapshots do not touch Desired.
	Pending bool
}

func NewState() *State {
	return &State{}
}

// SetpointDelta is the minimum heat/cool separation last reported by the device.
func (s *State) SetpointDelta() float64 {
	if s.HasSnapshot && s.Snapshot.SetpointDelta != nil && *s.Snapshot.SetpointDelta > 0 {
		return *s.Snapshot.SetpointDelta
	}
	return DefaultSetpointDelta
}

// ApplySnapshot replaces the snapshot. Unless a write is pending, the reported
// mode, fan and setpoints also become the desired values. While pending, only
// values Desired does not know yet are filled in. It returns whether Desired
// was overwritten.
func (s *State) ApplySnapshot(snap Snapshot) bool {
	s.Snapshot = snap
	s.HasSnapshot = true

	if s.Pending {
		s.fillUnknown(snap)
		return false
	}
	if snap.Mode != nil {
		m := *snap.Mode
		s.Desired.Mode = &m
	}
	if snap.Fan != nil {
		s.Desired.Fan = *snap.Fan
	}
	if snap.HeatTemp != nil {
		s.Desired.HeatTemp = *snap.HeatTemp
	}
	if snap.CoolTemp != nil {
		s.Desired.CoolTemp = *snap.CoolTemp
	}
	return true
}

func (s *State) fillUnknown(snap Snapshot) {
	if s.Desired.Mode == nil && snap.Mode != nil {
		m := *snap.Mode
		s.Desired.Mode = &m
	}
	if s.Desired.HeatTemp <= 0 && snap.HeatTemp != nil {
		s.Desired.HeatTemp = *snap.HeatTemp
	}
	if s.Desired.CoolTemp <= 0 && snap.CoolTemp != nil {
		s.Desired.CoolTemp = *snap.CoolTemp
	}
}

// TargetTemperature is the midpoint of the desired heat and cool setpoints.
func (s *State) TargetTemperature() (float64, bool) {
	if s.Desired.HeatTemp <= 0 || s.Desired.CoolTemp <= 0 {
		return 0, false
	}
	return (s.Desired.HeatTemp + s.Desired.CoolTemp) / 2, true
}

// TakeControl builds the next write from Desired. A pending fan change is
// included once and then cleared.
func (s *State) TakeControl() Control {
	c := Control{
		HeatTemp: s.Desired.HeatTemp,
		CoolTemp: s.Desired.CoolTemp,
	}
	if s.Desired.Mode != nil {
		c.Mode = *s.Desired.Mode
	}
	if s.Desired.FanPending {
		fan := s.Desired.Fan
		c.Fan = &fan
		s.Desired.FanPending = false
	}
	return c
}

// RestoreFan puts a fan change from a failed write back in place, unless a
// newer fan command has arrived since.
func (s *State) RestoreFan(c Control) {
	if c.Fan == nil || s.Desired.FanPending {
		return
	}
	s.Desired.Fan = *c.Fan
	s.Desired.FanPending = true
}

// Confirm records that a write was accepted by the device.
func (s *State) Confirm() {
	s.Pending = false
}
