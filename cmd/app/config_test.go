package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEnvKeyTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"VENSTAR_HOST", "venstar.host"},
		{"VENSTAR_QUERY_INTERVAL", "venstar.query_interval"},
		{"TOPIC_PREFIX", "mqtt.topic_prefix"},
		{"MQTT_HOST", "mqtt.broker_url"},
		{"mqtt_retain", "mqtt.retain"},
		{"HTTP_ADDR", "http.addr"},
		{"PATH", ""},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		got := envKeyTransform(tt.in)
		if got != tt.want {
			t.Fatalf("envKeyTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnvTransform_Seconds(t *testing.T) {
	tests := []struct {
		k, v string
		want string
	}{
		{"VENSTAR_QUERY_INTERVAL", "30", "30s"},
		{"VENSTAR_UPDATE_DELAY", "2.5", "2.5s"},
		{"VENSTAR_QUERY_INTERVAL", "1m", "1m"},
		{"VENSTAR_HOST", "10", "10"},
	}
	for _, tt := range tests {
		_, got := envTransform(tt.k, tt.v)
		if got != tt.want {
			t.Fatalf("envTransform(%q, %q) = %v, want %q", tt.k, tt.v, got, tt.want)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Venstar.QueryInterval != 15*time.Second {
		t.Fatalf("expected default query interval, got %v", cfg.Venstar.QueryInterval)
	}
	if cfg.Venstar.UpdateDelay != 5*time.Second {
		t.Fatalf("expected default update delay, got %v", cfg.Venstar.UpdateDelay)
	}
	if cfg.Venstar.RuntimeSchedule != "0 0 * * * *" {
		t.Fatalf("expected hourly runtime schedule, got %q", cfg.Venstar.RuntimeSchedule)
	}
	if cfg.MQTT.BrokerURL != "tcp://localhost:1883" {
		t.Fatalf("expected default broker, got %q", cfg.MQTT.BrokerURL)
	}
	if cfg.HTTP.Addr != "" {
		t.Fatalf("expected http disabled by default, got %q", cfg.HTTP.Addr)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error without host and prefix")
	}
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("VENSTAR_HOST", "192.168.1.50")
	t.Setenv("VENSTAR_QUERY_INTERVAL", "30")
	t.Setenv("TOPIC_PREFIX", "/home/thermostat")
	t.Setenv("MQTT_HOST", "mqtt://broker")
	t.Setenv("MQTT_RETAIN", "true")
	t.Setenv("MQTT_QOS", "1")
	t.Setenv("MQTT_USER", "bridge")
	t.Setenv("MQTT_PASS", "secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Venstar.Host != "192.168.1.50" || cfg.MQTT.TopicPrefix != "/home/thermostat" {
		t.Fatalf("unexpected host/prefix %q %q", cfg.Venstar.Host, cfg.MQTT.TopicPrefix)
	}
	if cfg.Venstar.QueryInterval != 30*time.Second {
		t.Fatalf("expected 30s, got %v", cfg.Venstar.QueryInterval)
	}
	if cfg.MQTT.BrokerURL != "tcp://broker:1883" {
		t.Fatalf("expected normalized broker, got %q", cfg.MQTT.BrokerURL)
	}
	if !cfg.MQTT.Retain || cfg.MQTT.QoS != 1 {
		t.Fatalf("expected retain and qos 1, got %v %d", cfg.MQTT.Retain, cfg.MQTT.QoS)
	}
	if cfg.MQTT.Username != "bridge" || cfg.MQTT.Password != "secret" {
		t.Fatal("expected credentials from env")
	}
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yaml", `
venstar:
  host: thermostat.local
  update_delay: 2s
mqtt:
  topic_prefix: venstar
  broker_url: broker.local:1884
http:
  addr: ":8080"
`)
	t.Setenv("VENSTAR_HOST", "10.0.0.2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Venstar.Host != "10.0.0.2" {
		t.Fatalf("expected env to override file, got %q", cfg.Venstar.Host)
	}
	if cfg.Venstar.UpdateDelay != 2*time.Second {
		t.Fatalf("expected 2s from file, got %v", cfg.Venstar.UpdateDelay)
	}
	if cfg.Venstar.QueryInterval != 15*time.Second {
		t.Fatalf("expected default to survive, got %v", cfg.Venstar.QueryInterval)
	}
	if cfg.MQTT.BrokerURL != "tcp://broker.local:1884" {
		t.Fatalf("unexpected broker %q", cfg.MQTT.BrokerURL)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected http addr %q", cfg.HTTP.Addr)
	}
}

func TestLoad_JSONFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.json", `{"venstar":{"host":"t"},"mqtt":{"topic_prefix":"p","qos":1}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Venstar.Host != "t" || cfg.MQTT.TopicPrefix != "p" || cfg.MQTT.QoS != 1 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Venstar.UpdateDelay != 5*time.Second {
		t.Fatalf("expected defaults, got %+v", cfg.Venstar)
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.toml", "x = 1")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Venstar.Host = "t"
	cfg.MQTT.TopicPrefix = "p"
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	cfg.MQTT.QoS = 2
	cfg.Venstar.QueryInterval = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "qos") || !strings.Contains(err.Error(), "query_interval") {
		t.Fatalf("expected both problems reported, got %v", err)
	}
}

func TestNormalizeBrokerURL(t *testing.T) {
	tests := map[string]string{
		"":                    "",
		"broker":              "tcp://broker:1883",
		"broker:1884":         "tcp://broker:1884",
		"mqtt://broker":       "tcp://broker:1883",
		"mqtts://broker":      "ssl://broker:8883",
		"tcp://10.0.0.1:1883": "tcp://10.0.0.1:1883",
		"ws://broker/mqtt":    "ws://broker/mqtt",
	}
	for in, want := range tests {
		if got := normalizeBrokerURL(in); got != want {
			t.Fatalf("normalizeBrokerURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "test.env", "VENSTAR_HOST=from-dotenv\nTOPIC_PREFIX=dotenv\n")
	t.Setenv("TOPIC_PREFIX", "from-env")

	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("VENSTAR_HOST") })

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Venstar.Host != "from-dotenv" {
		t.Fatalf("expected host from dotenv, got %q", cfg.Venstar.Host)
	}
	if cfg.MQTT.TopicPrefix != "from-env" {
		t.Fatalf("expected existing env to win, got %q", cfg.MQTT.TopicPrefix)
	}
}
