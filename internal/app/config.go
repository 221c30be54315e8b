package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// OutboxConfig задаёт параметры publisher-воркера transactional outbox.
type OutboxConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	BatchSize      int           `yaml:"batch_size"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

// Config описывает настройки запуска приложения.
// Источники в порядке приоритета: переменные окружения, yaml-файл, дефолты.
type Config struct {
	HTTPAddr     string       `yaml:"http_addr"`
	MetricsAddr  string       `yaml:"metrics_addr"`
	PostgresDSN  string       `yaml:"postgres_dsn"`
	KafkaBrokers []string     `yaml:"kafka_brokers"`
	Outbox       OutboxConfig `yaml:"outbox"`
	LogLevel     string       `yaml:"log_level"`
}

// DefaultConfig возвращает конфигурацию для локального запуска:
// in-memory storage, без Kafka.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
		LogLevel:    "info",
		Outbox: OutboxConfig{
			PollInterval:   time.Second,
			BatchSize:      100,
			MaxAttempts:    3,
			RetryBaseDelay: 50 * time.Millisecond,
		},
	}
}

// LoadConfig читает конфигурацию из yaml-файла (путь может быть пустым)
// и накладывает переменные окружения.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers := make([]string, 0)
		for _, broker := range strings.Split(v, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				brokers = append(brokers, broker)
			}
		}
		cfg.KafkaBrokers = brokers
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
