// Package venstar talks to the local HTTP API of a Venstar ColorTouch style
// thermostat.
package venstar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	pathInfo     = "/query/info"
	pathSensors  = "/query/sensors"
	pathAlerts   = "/query/alerts"
	pathRuntimes = "/query/runtimes"
	pathControl  = "/control"
	pathSettings = "/settings"
)

// Client is stateless; every call is a single HTTP request.
type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client (e.g. to instrument its transport).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func New(host string, opts ...Option) *Client {
	base := strings.TrimRight(host, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	c := &Client{
		baseURL: base,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Info(ctx context.Context) (Info, error) {
	var info Info
	if err := c.get(ctx, pathInfo, &info.Fields); err != nil {
		return Info{}, err
	}
	return info, nil
}

func (c *Client) Sensors(ctx context.Context) ([]Sensor, error) {
	var resp struct {
		Sensors []Sensor `json:"sensors"`
	}
	if err := c.get(ctx, pathSensors, &resp); err != nil {
		return nil, err
	}
	return resp.Sensors, nil
}

func (c *Client) Alerts(ctx context.Context) ([]Alert, error) {
	var resp struct {
		Alerts []Alert `json:"alerts"`
	}
	if err := c.get(ctx, pathAlerts, &resp); err != nil {
		return nil, err
	}
	return resp.Alerts, nil
}

func (c *Client) Runtimes(ctx context.Context) ([]Runtime, error) {
	var resp struct {
		Runtimes []Runtime `json:"runtimes"`
	}
	if err := c.get(ctx, pathRuntimes, &resp); err != nil {
		return nil, err
	}
	return resp.Runtimes, nil
}

// Control writes mode and setpoints (and fan, when set) in one request.
func (c *Client) Control(ctx context.Context, req ControlRequest) error {
	form := url.Values{}
	form.Set("mode", strconv.Itoa(req.Mode))
	form.Set("heattemp", formatTemp(req.HeatTemp))
	form.Set("cooltemp", formatTemp(req.CoolTemp))
	if req.Fan != nil {
		form.Set("fan", strconv.Itoa(*req.Fan))
	}
	return c.post(ctx, pathControl, form)
}

// Setting writes a single device setting. Names outside the supported set are
// rejected before any request is made.
func (c *Client) Setting(ctx context.Context, name, value string) error {
	if !SupportedSetting(name) {
		return fmt.Errorf("%w: %q", ErrUnsupportedSetting, name)
	}
	form := url.Values{}
	form.Set(name, SettingValue(value))
	return c.post(ctx, pathSettings, form)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &TransportError{Op: path, Err: err}
	}
	body, err := c.do(path, req)
	if err != nil {
		return err
	}
	if err := checkDeviceError(path, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ParseError{Op: path, Err: err}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return &TransportError{Op: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(path, req)
	if err != nil {
		return err
	}
	return checkDeviceError(path, body)
}

// checkDeviceError reports a 200 reply whose body carries an "error" key.
func checkDeviceError(path string, body []byte) error {
	var result map[string]json.RawMessage
	if err := json.Unmarshal(body, &result); err != nil {
		return &ParseError{Op: path, Err: err}
	}
	v, ok := result["error"]
	if !ok {
		return nil
	}
	var reason string
	if raw, ok := result["reason"]; ok {
		_ = json.Unmarshal(raw, &reason)
	}
	if reason == "" {
		reason = string(v)
	}
	return &DeviceError{Op: path, StatusCode: http.StatusOK, Reason: reason}
}

func (c *Client) do(path string, req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: path, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &DeviceError{Op: path, StatusCode: resp.StatusCode, Reason: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func formatTemp(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
