package mqttctrl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Agrid-Dev/venstar-mqtt/internal/events"
	"github.com/Agrid-Dev/venstar-mqtt/internal/metrics"
	"github.com/Agrid-Dev/venstar-mqtt/internal/ports"
)

type Config struct {
	// MQTT connection
	BrokerURL string
	ClientID  string

	// Topics
	TopicPrefix string

	// Behavior
	QoS    byte
	Retain bool

	Username string
	Password string
}

type Controller struct {
	svc     ports.ThermostatService
	src     ports.EventSource
	health  ports.HealthSignal
	metrics *metrics.Metrics
	logger  *slog.Logger
	cfg     Config

	client mqtt.Client
}

func New(svc ports.ThermostatService, src ports.EventSource, cfg Config, health ports.HealthSignal, m *metrics.Metrics, logger *slog.Logger) (*Controller, error) {
	// ---- defaults ----

	if cfg.BrokerURL == "" {
		cfg.BrokerURL = "tcp://localhost:1883"
	}

	if cfg.TopicPrefix == "" {
		return nil, errors.New("mqtt: TopicPrefix is required")
	}
	cfg.TopicPrefix = strings.TrimRight(cfg.TopicPrefix, "/")
	if cfg.ClientID == "" {
		cfg.ClientID = "venstar-mqtt-" + strings.ReplaceAll(cfg.TopicPrefix, "/", "-")
	}
	if cfg.QoS > 1 {
		return nil, errors.New("mqtt: QoS must be 0 or 1")
	}
	return &Controller{
		svc:     svc,
		src:     src,
		health:  health,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
	}, nil
}

func (c *Controller) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.BrokerURL).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	// Subscribe when connected/reconnected.
	opts.OnConnect = c.subscribe
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.logger.Warn("connection lost", slog.Any("err", err))
		c.health.Unhealthy("mqtt connection lost: " + err.Error())
	}

	// Subscribe before connecting so the first poll is not missed.
	evs := c.src.Subscribe()
	defer c.src.Unsubscribe(evs)

	c.client = mqtt.NewClient(opts)
	c.logger.Info("connecting", slog.String("broker", c.cfg.BrokerURL), slog.String("clientID", c.cfg.ClientID))
	tok := c.client.Connect()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		c.client.Disconnect(250)
		return ctx.Err()
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	return c.loop(ctx, evs)
}

// loop publishes events until ctx is cancelled or the source closes.
func (c *Controller) loop(ctx context.Context, evs <-chan events.Event) error {
	for {
		select {
		case <-ctx.Done():
			c.client.Disconnect(250)
			return ctx.Err()

		case ev, ok := <-evs:
			if !ok {
				return nil
			}
			c.publishEvent(ev)
		}
	}
}

func (c *Controller) subscribe(cl mqtt.Client) {
	filters := map[string]byte{
		c.topic("mode/set"):          c.cfg.QoS,
		c.topic("fan/set"):           c.cfg.QoS,
		c.topic("temperature/+/set"): c.cfg.QoS,
		c.topic("setting/+/set"):     c.cfg.QoS,
		c.topic("query/set"):         c.cfg.QoS,
	}
	for f := range filters {
		c.logger.Info("subscribing", slog.String("topic", f))
	}
	token := cl.SubscribeMultiple(filters, c.onMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		c.logger.Error("subscribe failed", slog.Any("err", err))
		c.health.Unhealthy("mqtt subscribe failed: " + err.Error())
		return
	}
	c.health.Healthy()
}

func (c *Controller) publishEvent(ev events.Event) {
	switch ev := ev.(type) {
	case events.FieldUpdated:
		c.publish(c.topic(segment(ev.Name)), formatValue(ev.Value))

	case events.TargetTemperatureUpdated:
		c.publish(c.topic("temperature/target"), formatValue(ev.Value))

	case events.SensorUpdated:
		base := "sensor/" + segment(ev.Name)
		if ev.Temp != nil {
			c.publish(c.topic(base+"/temp"), formatValue(*ev.Temp))
		}
		if ev.Humidity != nil {
			c.publish(c.topic(base+"/humidity"), formatValue(*ev.Humidity))
		}

	case events.AlertUpdated:
		v := "0"
		if ev.Active {
			v = "1"
		}
		c.publish(c.topic("alert/"+segment(ev.Name)), v)

	case events.RuntimeUpdated:
		base := "runtime/"
		if ev.Query {
			base = "query/runtime/"
		}
		for _, f := range ev.Fields {
			c.publish(c.topic(base+segment(f.Name)), formatValue(f.Value))
		}

	default:
		c.logger.Warn("unknown event", slog.String("type", fmt.Sprintf("%T", ev)))
	}
}

func (c *Controller) publish(topic, payload string) {
	c.client.Publish(topic, c.cfg.QoS, c.cfg.Retain, payload)
	c.metrics.BusMessages.WithLabelValues("out").Inc()
}

func (c *Controller) onMessage(_ mqtt.Client, msg mqtt.Message) {
	// topic format: <prefix>/<command...>/set
	t := msg.Topic()
	prefix := c.cfg.TopicPrefix + "/"
	if !strings.HasPrefix(t, prefix) {
		return
	}
	c.metrics.BusMessages.WithLabelValues("in").Inc()
	command := strings.TrimPrefix(t, prefix)
	payload := msg.Payload()
	c.logger.Info("command received", slog.String("topic", t), slog.String("payload", string(payload)))

	var err error

	// Dispatch by command
	switch command {
	case "mode/set":
		var s string
		if s, err = payloadString(payload); err == nil {
			err = c.svc.SetMode(s)
		}

	case "fan/set":
		var s string
		if s, err = payloadString(payload); err == nil {
			err = c.svc.SetFan(s)
		}

	case "temperature/heat/set":
		var v float64
		if v, err = payloadFloat(payload); err == nil {
			err = c.svc.SetHeatTemp(v)
		}

	case "temperature/cool/set":
		var v float64
		if v, err = payloadFloat(payload); err == nil {
			err = c.svc.SetCoolTemp(v)
		}

	case "temperature/target/set":
		var v float64
		if v, err = payloadFloat(payload); err == nil {
			err = c.svc.SetTargetTemp(v)
		}

	case "query/set":
		var s string
		if s, err = payloadString(payload); err == nil {
			err = c.svc.Query(s)
		}

	default:
		name, ok := settingName(command)
		if !ok {
			c.logger.Debug("ignoring topic", slog.String("topic", t))
			return
		}
		var s string
		if s, err = payloadString(payload); err == nil {
			err = c.svc.UpdateSetting(name, s)
		}
	}

	if err != nil {
		c.logger.Warn("command rejected", slog.String("topic", t), slog.Any("err", err))
	}
}

// settingName extracts <name> from "setting/<name>/set".
func settingName(command string) (string, bool) {
	rest, ok := strings.CutPrefix(command, "setting/")
	if !ok {
		return "", false
	}
	name, ok := strings.CutSuffix(rest, "/set")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

func (c *Controller) topic(suffix string) string {
	return strings.TrimRight(c.cfg.TopicPrefix, "/") + "/" + suffix
}

// segment turns a device-supplied name into a single topic level.
func segment(name string) string {
	r := strings.NewReplacer(" ", "_", "/", "_", "+", "_", "#", "_")
	return strings.ToLower(r.Replace(strings.TrimSpace(name)))
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Command payloads are a bare value ("heat", "72.5") or {"value": ...}.
type valueReq[T any] struct {
	Value *T `json:"value"`
}

func isEnvelope(b []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(b), []byte("{"))
}

func payloadString(b []byte) (string, error) {
	if isEnvelope(b) {
		v, err := decodeValueStrict[any](b)
		if err != nil {
			return "", err
		}
		return formatValue(v), nil
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "", errors.New("empty payload")
	}
	return s, nil
}

func payloadFloat(b []byte) (float64, error) {
	if isEnvelope(b) {
		return decodeValueStrict[float64](b)
	}
	return strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
}

func decodeValueStrict[T any](b []byte) (T, error) {
	var zero T
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var req valueReq[T]
	if err := dec.Decode(&req); err != nil {
		return zero, err
	}
	if req.Value == nil {
		return zero, errors.New("missing field 'value'")
	}
	return *req.Value, nil
}
