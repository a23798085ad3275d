package thermostat

import "errors"

var (
	ErrInvalidMode    = errors.New("invalid mode")
	ErrInvalidFanMode = errors.New("invalid fan mode")
)
