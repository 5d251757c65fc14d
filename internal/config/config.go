package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env              string   `yaml:"env"`
	Port             int      `yaml:"port"`
	Debug            bool     `yaml:"debug"`
	DatabasePath     string   `yaml:"database_path"`
	ElasticsearchURL string   `yaml:"elasticsearch_url"`
	CORSOrigins      []string `yaml:"cors_origins"`
	UploadDirectory  string   `yaml:"upload_dir"`
	ResultsDirectory string   `yaml:"results_dir"`
	LogDirectory     string   `yaml:"log_dir"`
	ModelConfigPath  string   `yaml:"model_config_path"`
	ModelWeightsPath string   `yaml:"model_weights_path"`

	ConnectMaxAttempts int           `yaml:"connect_max_attempts"`
	ConnectRetryDelay  time.Duration `yaml:"connect_retry_delay"`

	TelemetryQueueCapacity  int           `yaml:"telemetry_queue_capacity"`
	TelemetryEnqueueTimeout time.Duration `yaml:"telemetry_enqueue_timeout"`
	TelemetryShutdownGrace  time.Duration `yaml:"telemetry_shutdown_grace"`
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables (a local .env file is honoured).
// Environment variables take precedence over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", EnvDevelopment)
	cfg := defaults(env)

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
		// The file may pick the environment itself; its env-dependent
		// defaults then apply beneath the file's own values.
		if os.Getenv("ENV") == "" && cfg.Env != env {
			cfg = defaults(cfg.Env)
			if err := loadFile(path, cfg); err != nil {
				return nil, err
			}
		}
	}

	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.Port = getEnvAsInt("PORT", cfg.Port)
	cfg.Debug = getEnvAsBool("DEBUG", cfg.Debug)
	cfg.DatabasePath = getEnv("DATABASE_PATH", cfg.DatabasePath)
	cfg.ElasticsearchURL = getEnv("ELASTICSEARCH_URL", cfg.ElasticsearchURL)
	cfg.CORSOrigins = getEnvAsList("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.UploadDirectory = getEnv("UPLOAD_DIR", cfg.UploadDirectory)
	cfg.ResultsDirectory = getEnv("RESULTS_DIR", cfg.ResultsDirectory)
	cfg.LogDirectory = getEnv("LOG_DIR", cfg.LogDirectory)
	cfg.ModelConfigPath = getEnv("MODEL_CONFIG_PATH", cfg.ModelConfigPath)
	cfg.ModelWeightsPath = getEnv("MODEL_WEIGHTS_PATH", cfg.ModelWeightsPath)
	cfg.ConnectMaxAttempts = getEnvAsInt("CONNECT_MAX_ATTEMPTS", cfg.ConnectMaxAttempts)
	cfg.ConnectRetryDelay = getEnvAsDuration("CONNECT_RETRY_DELAY", cfg.ConnectRetryDelay)
	cfg.TelemetryQueueCapacity = getEnvAsInt("TELEMETRY_QUEUE_CAPACITY", cfg.TelemetryQueueCapacity)
	cfg.TelemetryEnqueueTimeout = getEnvAsDuration("TELEMETRY_ENQUEUE_TIMEOUT", cfg.TelemetryEnqueueTimeout)
	cfg.TelemetryShutdownGrace = getEnvAsDuration("TELEMETRY_SHUTDOWN_GRACE", cfg.TelemetryShutdownGrace)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults(env string) *Config {
	origins := []string{"http://localhost:3000", "http://localhost", "http://localhost:80"}
	if env == EnvProduction {
		origins = []string{"http://localhost", "http://localhost:80"}
	}

	return &Config{
		Env:                     env,
		Port:                    8000,
		Debug:                   env != EnvProduction,
		DatabasePath:            filepath.Join(".", "data", "person_detection.db"),
		ElasticsearchURL:        "http://localhost:9200",
		CORSOrigins:             origins,
		UploadDirectory:         "uploads",
		ResultsDirectory:        "results",
		LogDirectory:            filepath.Join(".", "logs"),
		ModelConfigPath:         filepath.Join(".", "yolo", "yolov3.cfg"),
		ModelWeightsPath:        filepath.Join(".", "yolo", "yolov3.weights"),
		ConnectMaxAttempts:      5,
		ConnectRetryDelay:       5 * time.Second,
		TelemetryQueueCapacity:  1000,
		TelemetryEnqueueTimeout: 100 * time.Millisecond,
		TelemetryShutdownGrace:  5 * time.Second,
	}
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the process cannot start with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.ConnectMaxAttempts < 1 {
		return fmt.Errorf("connect max attempts must be at least 1, got %d", c.ConnectMaxAttempts)
	}
	if c.TelemetryQueueCapacity < 1 {
		return fmt.Errorf("telemetry queue capacity must be at least 1, got %d", c.TelemetryQueueCapacity)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("250ms") or plain seconds ("5").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
