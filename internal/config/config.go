package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the decision engine.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Store       StoreConfig       `yaml:"store"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Decision    DecisionConfig    `yaml:"decision"`
	Safety      SafetyConfig      `yaml:"safety"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// StoreConfig configures the Redis/Valkey-compatible keyed store. When Addr
// is empty the engine falls back to an in-process store, useful for local
// development only.
type StoreConfig struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
}

// CorrelationConfig tunes signal clustering.
type CorrelationConfig struct {
	WindowSeconds int     `yaml:"windowSeconds"`
	MinScore      float64 `yaml:"minScore"`
}

// DecisionConfig tunes decision synthesis.
type DecisionConfig struct {
	TTL time.Duration `yaml:"ttl"`
	// ProcessInterval drives the background decide loop; zero disables it
	// and leaves runs to the HTTP trigger.
	ProcessInterval time.Duration `yaml:"processInterval"`
}

// SafetyConfig controls loading of additional safety rule packs.
type SafetyConfig struct {
	RulePackPath string `yaml:"rulePackPath"`
}

// KafkaConfig configures the optional streaming signal consumer.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"groupID"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("AUTOPILOT_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
		Correlation: CorrelationConfig{
			WindowSeconds: 300,
			MinScore:      0.6,
		},
		Decision: DecisionConfig{
			TTL:             30 * time.Minute,
			ProcessInterval: time.Minute,
		},
		Kafka: KafkaConfig{
			Topic:   "autopilot.signals",
			GroupID: "autopilot-core-signals",
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AUTOPILOT_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("AUTOPILOT_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("AUTOPILOT_STORE_ADDR"); v != "" {
		cfg.Store.Addr = v
	}
	if v := os.Getenv("AUTOPILOT_STORE_USERNAME"); v != "" {
		cfg.Store.Username = v
	}
	if v := os.Getenv("AUTOPILOT_STORE_PASSWORD"); v != "" {
		cfg.Store.Password = v
	}
	if v := os.Getenv("AUTOPILOT_STORE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Store.DB = db
		}
	}
	if v := os.Getenv("AUTOPILOT_CORRELATION_WINDOW"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Correlation.WindowSeconds = secs
		}
	}
	if v := os.Getenv("AUTOPILOT_CORRELATION_MIN_SCORE"); v != "" {
		if score, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Correlation.MinScore = score
		}
	}
	if v := os.Getenv("AUTOPILOT_DECISION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Decision.TTL = d
		}
	}
	if v := os.Getenv("AUTOPILOT_PROCESS_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Decision.ProcessInterval = d
		}
	}
	if v := os.Getenv("AUTOPILOT_SAFETY_RULE_PACK"); v != "" {
		cfg.Safety.RulePackPath = v
	}
	if v := os.Getenv("AUTOPILOT_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("AUTOPILOT_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitAndTrim(v)
	}
	if v := os.Getenv("AUTOPILOT_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("AUTOPILOT_KAFKA_GROUP_ID"); v != "" {
		cfg.Kafka.GroupID = v
	}
	if v := os.Getenv("AUTOPILOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AUTOPILOT_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
