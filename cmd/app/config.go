package app

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Venstar VenstarConfig `koanf:"venstar" yaml:"venstar"`
	MQTT    MQTTConfig    `koanf:"mqtt" yaml:"mqtt"`
	HTTP    HTTPConfig    `koanf:"http" yaml:"http"`
	Log     LogConfig     `koanf:"log" yaml:"log"`
}

type VenstarConfig struct {
	Host            string        `koanf:"host" yaml:"host"`
	QueryInterval   time.Duration `koanf:"query_interval" yaml:"query_interval"`
	UpdateDelay     time.Duration `koanf:"update_delay" yaml:"update_delay"`
	RuntimeSchedule string        `koanf:"runtime_schedule" yaml:"runtime_schedule"`
	Timeout         time.Duration `koanf:"timeout" yaml:"timeout"`
}

type MQTTConfig struct {
	BrokerURL   string `koanf:"broker_url" yaml:"broker_url"`
	ClientID    string `koanf:"client_id" yaml:"client_id"`
	TopicPrefix string `koanf:"topic_prefix" yaml:"topic_prefix"`
	QoS         byte   `koanf:"qos" yaml:"qos"`
	Retain      bool   `koanf:"retain" yaml:"retain"`
	Username    string `koanf:"username" yaml:"username"`
	Password    string `koanf:"password" yaml:"password"`
}

// HTTPConfig enables the status/command API when Addr is set.
type HTTPConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`   // "debug" | "info" | "warn" | "error"
	Format string `koanf:"format" yaml:"format"` // "text" | "json"
}

func Defaults() Config {
	return Config{
		Venstar: VenstarConfig{
			QueryInterval:   15 * time.Second,
			UpdateDelay:     5 * time.Second,
			RuntimeSchedule: "0 0 * * * *",
			Timeout:         10 * time.Second,
		},
		MQTT: MQTTConfig{
			BrokerURL: "tcp://localhost:1883",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadEnvFile loads a dotenv file into the environment. Variables already
// set win. An empty path loads ./.env if it exists.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Load merges defaults, the optional config file and the environment, in
// that order.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := loadFile(k, path); err != nil {
			return Config{}, err
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{TransformFunc: envTransform}), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.MQTT.BrokerURL = normalizeBrokerURL(cfg.MQTT.BrokerURL)
	return cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			// Config file missing → defaults and env only
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config extension %q", ext)
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

var envKeys = map[string]string{
	"VENSTAR_HOST":             "venstar.host",
	"VENSTAR_QUERY_INTERVAL":   "venstar.query_interval",
	"VENSTAR_UPDATE_DELAY":     "venstar.update_delay",
	"VENSTAR_RUNTIME_SCHEDULE": "venstar.runtime_schedule",
	"VENSTAR_TIMEOUT":          "venstar.timeout",
	"TOPIC_PREFIX":             "mqtt.topic_prefix",
	"MQTT_HOST":                "mqtt.broker_url",
	"MQTT_CLIENT_ID":           "mqtt.client_id",
	"MQTT_QOS":                 "mqtt.qos",
	"MQTT_RETAIN":              "mqtt.retain",
	"MQTT_USER":                "mqtt.username",
	"MQTT_PASS":                "mqtt.password",
	"HTTP_ADDR":                "http.addr",
	"LOG_LEVEL":                "log.level",
	"LOG_FORMAT":               "log.format",
}

// envKeyTransform maps an environment variable to its config key, or "" if
// it is not one of ours.
func envKeyTransform(k string) string {
	return envKeys[strings.ToUpper(strings.TrimSpace(k))]
}

func envTransform(k, v string) (string, any) {
	key := envKeyTransform(k)
	if key == "" || v == "" {
		return "", nil
	}
	switch key {
	case "venstar.query_interval", "venstar.update_delay", "venstar.timeout":
		// plain numbers are seconds
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			v += "s"
		}
	}
	return key, v
}

// normalizeBrokerURL accepts host[:port] and mqtt:// URLs as paho broker URLs.
func normalizeBrokerURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return u
	}
	if !strings.Contains(u, "://") {
		u = "tcp://" + u
	}
	scheme, hostport, _ := strings.Cut(u, "://")
	switch scheme {
	case "mqtt":
		scheme = "tcp"
	case "mqtts":
		scheme = "ssl"
	}
	if _, _, err := net.SplitHostPort(hostport); err != nil {
		switch scheme {
		case "tcp":
			hostport += ":1883"
		case "ssl":
			hostport += ":8883"
		}
	}
	return scheme + "://" + hostport
}

func (c Config) Validate() error {
	var errs []error
	if c.Venstar.Host == "" {
		errs = append(errs, errors.New("venstar.host (VENSTAR_HOST) is required"))
	}
	if c.MQTT.TopicPrefix == "" {
		errs = append(errs, errors.New("mqtt.topic_prefix (TOPIC_PREFIX) is required"))
	}
	if c.MQTT.QoS > 1 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0 or 1, got %d", c.MQTT.QoS))
	}
	if c.Venstar.QueryInterval < time.Second {
		errs = append(errs, fmt.Errorf("venstar.query_interval must be at least 1s, got %s", c.Venstar.QueryInterval))
	}
	if c.Venstar.UpdateDelay <= 0 {
		errs = append(errs, fmt.Errorf("venstar.update_delay must be positive, got %s", c.Venstar.UpdateDelay))
	}
	return errors.Join(errs...)
}
