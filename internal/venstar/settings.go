package venstar

import "strings"

var supportedSettings = map[string]struct{}{
	"tempunits":      {},
	"away":           {},
	"schedule":       {},
	"hum_setpoint":   {},
	"dehum_setpoint": {},
}

// SupportedSetting reports whether name can be written through /settings.
func SupportedSetting(name string) bool {
	_, ok := supportedSettings[name]
	return ok
}

// SettingValue maps the human vocabulary used on the bus to the API values.
// Anything else (e.g. a humidity setpoint) is passed through unchanged.
func SettingValue(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "off", "home", "fahrenheit", "f":
		return "0"
	case "away", "celsius", "on", "c":
		return "1"
	default:
		return strings.TrimSpace(v)
	}
}
