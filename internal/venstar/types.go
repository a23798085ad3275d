package venstar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Field is one key/value pair of a device response, kept in the order the
// device sent it.
type Field struct {
	Name  string
	Value any
}

// Fields is an ordered JSON object.
type Fields []Field

// Get returns the value for name.
func (f Fields) Get(name string) (any, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

// Float returns the numeric value for name. JSON numbers, booleans and
// numeric strings are accepted.
func (f Fields) Float(name string) (float64, bool) {
	v, ok := f.Get(name)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

func (f *Fields) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("expected JSON object")
	}

	out := Fields{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		out = append(out, Field{Name: key, Value: normalize(v)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*f = out
	return nil
}

// normalize turns json.Number into float64 so callers only see plain Go types.
func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	default:
		return v
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// Info is the response of GET /query/info.
type Info struct {
	Fields Fields
}

func (i Info) intField(name string) (int, bool) {
	v, ok := i.Fields.Float(name)
	return int(v), ok
}

func (i Info) Mode() (int, bool)              { return i.intField("mode") }
func (i Info) Fan() (int, bool)               { return i.intField("fan") }
func (i Info) FanState() (int, bool)          { return i.intField("fanstate") }
func (i Info) HeatTemp() (float64, bool)      { return i.Fields.Float("heattemp") }
func (i Info) CoolTemp() (float64, bool)      { return i.Fields.Float("cooltemp") }
func (i Info) SpaceTemp() (float64, bool)     { return i.Fields.Float("spacetemp") }
func (i Info) SetpointDelta() (float64, bool) { return i.Fields.Float("setpointdelta") }

// Sensor is one entry of GET /query/sensors.
type Sensor struct {
	Name     string   `json:"name"`
	Temp     *float64 `json:"temp"`
	Humidity *float64 `json:"hum"`
}

// Alert is one entry of GET /query/alerts.
type Alert struct {
	Name   string   `json:"name"`
	Active flexBool `json:"active"`
}

// flexBool accepts true/false as well as 0/1.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1", `"1"`, `"true"`:
		*b = true
	case "false", "0", `"0"`, `"false"`, "null":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

// Runtime is one record of GET /query/runtimes.
type Runtime struct {
	Fields Fields
}

func (r *Runtime) UnmarshalJSON(b []byte) error {
	return r.Fields.UnmarshalJSON(b)
}

// ControlRequest is the form sent to POST /control. Fan is only sent when set.
type ControlRequest struct {
	Mode     int
	Fan      *int
	HeatTemp float64
	CoolTemp float64
}
