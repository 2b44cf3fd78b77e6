package common

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	Schema     SchemaConfig     `toml:"schema"`
	Source     SourceConfig     `toml:"source"`
	Extraction ExtractionConfig `toml:"extraction"`
	Inference  InferenceConfig  `toml:"inference"`
	Store      StoreConfig      `toml:"store"`
	Server     ServerConfig     `toml:"server"`
	Logging    LoggingConfig    `toml:"logging"`
}

// SchemaConfig locates the column schema.
type SchemaConfig struct {
	Path string `toml:"path"`
}

// SourceConfig locates the documents to process.
type SourceConfig struct {
	Dir           string `toml:"dir"`
	IncludeHidden bool   `toml:"include_hidden"`
}

// ExtractionConfig holds the retry policy and prompt settings.
type ExtractionConfig struct {
	MaxRetries          int     `toml:"max_retries"`
	SkipCheck           bool    `toml:"skip_check"`
	WithholdCheckImages bool    `toml:"withhold_check_images"`
	TargetType          string  `toml:"target_type"`
	Instructions        string  `toml:"instructions"`
	InstructionsFile    string  `toml:"instructions_file"`
	ExampleSeed         int64   `toml:"example_seed"`
	StrictTypes         bool    `toml:"strict_types"`
	Workers             int     `toml:"workers"`
	MaxTokens           int     `toml:"max_tokens"`
	Temperature         float64 `toml:"temperature"`
	TemperatureStep     float64 `toml:"temperature_step"`
	MaxTemperature      float64 `toml:"max_temperature"`
	RepeatPenalty       float64 `toml:"repeat_penalty"`
	RepeatPenaltyStep   float64 `toml:"repeat_penalty_step"`
	MaxRepeatPenalty    float64 `toml:"max_repeat_penalty"`
	// TopP is sent only when positive; zero leaves the backend default.
	TopP float64 `toml:"top_p"`
}

// InferenceConfig holds LLM backend settings.
type InferenceConfig struct {
	Backend               string   `toml:"backend"`
	BaseURL               string   `toml:"base_url"`
	Model                 string   `toml:"model"`
	APIKey                string   `toml:"api_key"`
	TimeoutSeconds        int      `toml:"timeout_seconds"`
	RequestsPerSecond     float64  `toml:"requests_per_second"`
	RestartCommand        []string `toml:"restart_command"`
	RestartTimeoutSeconds int      `toml:"restart_timeout_seconds"`
}

// StoreConfig selects the result store.
type StoreConfig struct {
	Driver   string `toml:"driver"`
	Path     string `toml:"path"`
	DSN      string `toml:"dsn"`
	MaxConns int32  `toml:"max_conns"`
}

// ServerConfig holds daemon endpoints.
type ServerConfig struct {
	GRPCAddr              string `toml:"grpc_addr"`
	MetricsAddr           string `toml:"metrics_addr"`
	RescanIntervalSeconds int    `toml:"rescan_interval_seconds"`
	WatchSource           bool   `toml:"watch_source"` // also rescan when documents land in source.dir
}

// LoggingConfig holds the log level.
type LoggingConfig struct {
	Level string `toml:"level"`
}

const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"

	StoreCSV      = "csv"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Default returns the configuration used when no file or environment overrides are present.
func Default() Config {
	return Config{
		Source: SourceConfig{Dir: "./documents"},
		Extraction: ExtractionConfig{
			MaxRetries:          3,
			WithholdCheckImages: true,
			TargetType:          "paper",
			ExampleSeed:         1,
			Workers:             1,
			MaxTokens:           2048,
			Temperature:         0.1,
			TemperatureStep:     0.1,
			MaxTemperature:      1.0,
			RepeatPenalty:       1.1,
			RepeatPenaltyStep:   0.1,
			MaxRepeatPenalty:    2.0,
		},
		Inference: InferenceConfig{
			Backend:               BackendOllama,
			BaseURL:               "http://localhost:11434",
			Model:                 "llama3.1",
			TimeoutSeconds:        600,
			RestartTimeoutSeconds: 120,
		},
		Store: StoreConfig{
			Driver:   StoreCSV,
			Path:     "./results.csv",
			MaxConns: 4,
		},
		Server: ServerConfig{
			GRPCAddr:              ":8080",
			MetricsAddr:           ":9090",
			RescanIntervalSeconds: 300,
			WatchSource:           true,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig loads defaults, then the TOML file at path (when non-empty), then environment
// overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		file, err := os.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, NewAppError("CONFIG_ERROR", "config file not found: "+path, ErrNotFound)
			}
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "parse config", err)
		}
	}

	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Schema.Path = getEnv("LOA_SCHEMA", c.Schema.Path)
	c.Source.Dir = getEnv("LOA_SOURCE_DIR", c.Source.Dir)

	c.Extraction.MaxRetries = getEnvAsInt("LOA_MAX_RETRIES", c.Extraction.MaxRetries)
	c.Extraction.Workers = getEnvAsInt("LOA_WORKERS", c.Extraction.Workers)
	c.Extraction.Temperature = getEnvAsFloat64("LOA_TEMPERATURE", c.Extraction.Temperature)
	c.Extraction.TopP = getEnvAsFloat64("LOA_TOP_P", c.Extraction.TopP)
	c.Extraction.TargetType = getEnv("LOA_TARGET_TYPE", c.Extraction.TargetType)
	c.Extraction.InstructionsFile = getEnv("LOA_INSTRUCTIONS_FILE", c.Extraction.InstructionsFile)

	c.Inference.Backend = getEnv("LOA_INFERENCE_BACKEND", c.Inference.Backend)
	c.Inference.BaseURL = getEnv("LOA_INFERENCE_URL", c.Inference.BaseURL)
	c.Inference.Model = getEnv("LOA_MODEL", c.Inference.Model)
	c.Inference.APIKey = getEnv("LOA_API_KEY", getEnv("OPENAI_API_KEY", c.Inference.APIKey))
	c.Inference.TimeoutSeconds = getEnvAsInt("LOA_INFERENCE_TIMEOUT", c.Inference.TimeoutSeconds)

	c.Store.Driver = getEnv("LOA_STORE_DRIVER", c.Store.Driver)
	c.Store.Path = getEnv("LOA_STORE_PATH", c.Store.Path)
	c.Store.DSN = getEnv("LOA_DB_URL", c.Store.DSN)

	c.Server.GRPCAddr = getEnv("LOA_GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.MetricsAddr = getEnv("LOA_METRICS_ADDR", c.Server.MetricsAddr)

	c.Logging.Level = getEnv("LOA_LOG_LEVEL", c.Logging.Level)
}

func (c *Config) normalize() {
	c.Inference.Backend = strings.ToLower(strings.TrimSpace(c.Inference.Backend))
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Extraction.TargetType = strings.TrimSpace(c.Extraction.TargetType)
	if c.Extraction.TargetType == "" {
		c.Extraction.TargetType = "paper"
	}
	if c.Extraction.Workers <= 0 {
		c.Extraction.Workers = 1
	}
	if c.Extraction.MaxTemperature < c.Extraction.Temperature {
		c.Extraction.MaxTemperature = c.Extraction.Temperature
	}
	if c.Extraction.MaxRepeatPenalty < c.Extraction.RepeatPenalty {
		c.Extraction.MaxRepeatPenalty = c.Extraction.RepeatPenalty
	}
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("extraction.max_retries", c.Extraction.MaxRetries, Positive)
	v.Field("extraction.max_tokens", c.Extraction.MaxTokens, Positive)
	v.Field("extraction.temperature", c.Extraction.Temperature, NonNegative)
	v.Field("extraction.temperature_step", c.Extraction.TemperatureStep, NonNegative)
	v.Field("extraction.repeat_penalty_step", c.Extraction.RepeatPenaltyStep, NonNegative)
	v.Field("extraction.top_p", c.Extraction.TopP, NonNegative, AtMost(1))
	v.Field("inference.backend", c.Inference.Backend, OneOf(BackendOllama, BackendOpenAI))
	v.Field("inference.base_url", c.Inference.BaseURL, Required)
	v.Field("inference.model", c.Inference.Model, Required)
	v.Field("inference.timeout_seconds", c.Inference.TimeoutSeconds, Positive)
	v.Field("inference.requests_per_second", c.Inference.RequestsPerSecond, NonNegative)
	v.Field("store.driver", c.Store.Driver, OneOf(StoreCSV, StoreSQLite, StorePostgres))
	v.Field("logging.level", c.Logging.Level, OneOf("debug", "info", "warn", "error"))

	switch c.Store.Driver {
	case StoreCSV, StoreSQLite:
		v.Field("store.path", c.Store.Path, Required)
	case StorePostgres:
		v.Field("store.dsn", c.Store.DSN, Required)
	}
	if c.Inference.Backend == BackendOpenAI {
		v.Field("inference.api_key", c.Inference.APIKey, Required)
	}
	return v.Err("CONFIG_ERROR")
}

// ResolveInstructions returns the free-text user instructions, reading InstructionsFile when set.
func (c *Config) ResolveInstructions() (string, error) {
	if path := strings.TrimSpace(c.Extraction.InstructionsFile); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read instructions file: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return strings.TrimSpace(c.Extraction.Instructions), nil
}

// LogLevel maps the configured level onto slog.
func (c *Config) LogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
