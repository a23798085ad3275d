package venstar

import (
	"errors"
	"fmt"
)

var ErrUnsupportedSetting = errors.New("unsupported setting")

// TransportError means the thermostat could not be reached at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("venstar %s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DeviceError means the thermostat answered, but not with a usable success:
// a non-200 status or a body carrying an "error" field.
type DeviceError struct {
	Op         string
	StatusCode int
	Reason     string
}

func (e *DeviceError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("venstar %s: device returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("venstar %s: device error (status %d): %s", e.Op, e.StatusCode, e.Reason)
}

// ParseError means the thermostat returned a body that is not the expected JSON.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("venstar %s: parse response: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsDeviceError reports whether err came from the device side (bad status,
// error body or malformed response) rather than from the network.
func IsDeviceError(err error) bool {
	var de *DeviceError
	var pe *ParseError
	return errors.As(err, &de) || errors.As(err, &pe)
}

// IsTransportError reports whether err is a network-level failure.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
