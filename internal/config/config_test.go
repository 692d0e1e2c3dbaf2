package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("server address = %q", cfg.Server.Address)
	}
	if cfg.Server.MetricsAddress != ":2112" {
		t.Errorf("metrics address = %q", cfg.Server.MetricsAddress)
	}
	if cfg.Correlation.WindowSeconds != 300 || cfg.Correlation.MinScore != 0.6 {
		t.Errorf("correlation defaults = %+v", cfg.Correlation)
	}
	if cfg.Decision.TTL != 30*time.Minute {
		t.Errorf("decision ttl = %v", cfg.Decision.TTL)
	}
	if cfg.Kafka.Enabled {
		t.Error("kafka should be disabled by default")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  address: ":9090"
store:
  addr: "redis:6379"
correlation:
  windowSeconds: 120
  minScore: 0.8
decision:
  ttl: 15m
kafka:
  enabled: true
  brokers: ["kafka-1:9092", "kafka-2:9092"]
logging:
  level: debug
  json: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != ":9090" {
		t.Errorf("server address = %q", cfg.Server.Address)
	}
	if cfg.Store.Addr != "redis:6379" {
		t.Errorf("store addr = %q", cfg.Store.Addr)
	}
	if cfg.Correlation.WindowSeconds != 120 || cfg.Correlation.MinScore != 0.8 {
		t.Errorf("correlation = %+v", cfg.Correlation)
	}
	if cfg.Decision.TTL != 15*time.Minute {
		t.Errorf("decision ttl = %v", cfg.Decision.TTL)
	}
	if !cfg.Kafka.Enabled || len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("kafka = %+v", cfg.Kafka)
	}
	if !cfg.Logging.JSON || cfg.Logging.Level != "debug" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	// Untouched fields keep defaults.
	if cfg.Server.MetricsAddress != ":2112" {
		t.Errorf("metrics address = %q", cfg.Server.MetricsAddress)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for explicit missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUTOPILOT_SERVER_ADDRESS", ":7070")
	t.Setenv("AUTOPILOT_STORE_ADDR", "valkey:6379")
	t.Setenv("AUTOPILOT_CORRELATION_WINDOW", "60")
	t.Setenv("AUTOPILOT_DECISION_TTL", "5m")
	t.Setenv("AUTOPILOT_KAFKA_ENABLED", "true")
	t.Setenv("AUTOPILOT_KAFKA_BROKERS", "a:9092, b:9092 ,")
	t.Setenv("AUTOPILOT_LOG_FORMAT", "json")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Address != ":7070" {
		t.Errorf("server address = %q", cfg.Server.Address)
	}
	if cfg.Store.Addr != "valkey:6379" {
		t.Errorf("store addr = %q", cfg.Store.Addr)
	}
	if cfg.Correlation.WindowSeconds != 60 {
		t.Errorf("window = %d", cfg.Correlation.WindowSeconds)
	}
	if cfg.Decision.TTL != 5*time.Minute {
		t.Errorf("ttl = %v", cfg.Decision.TTL)
	}
	if !cfg.Kafka.Enabled {
		t.Error("kafka should be enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if !cfg.Logging.JSON {
		t.Error("json logging should be enabled")
	}
}
