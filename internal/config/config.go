package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all logkey configuration. It is built once at startup and
// passed by value to the components that need it.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Model   ModelConfig   `yaml:"model"`
	Train   TrainConfig   `yaml:"train"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// SourceConfig selects and configures the event stream connector.
type SourceConfig struct {
	Provider  string `yaml:"provider"` // "csv" or "sessions"
	Path      string `yaml:"path"`
	Column    string `yaml:"column"`    // csv only
	IDOffset  int    `yaml:"id_offset"` // added to every parsed identifier
	Windowing string `yaml:"windowing"` // "global" or "per_stream"
}

// ModelConfig holds the sequence model architecture.
type ModelConfig struct {
	WindowSize int `yaml:"window_size"`
	InputSize  int `yaml:"input_size"`
	HiddenSize int `yaml:"hidden_size"`
	NumLayers  int `yaml:"num_layers"`
	NumClasses int `yaml:"num_classes"`
}

// TrainConfig holds training loop settings.
type TrainConfig struct {
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	Optimizer    string  `yaml:"optimizer"` // only "Adam"
	LearningRate float64 `yaml:"learning_rate"`
	Shuffle      bool    `yaml:"shuffle"`
	Seed         int64   `yaml:"seed"`    // 0 seeds from the clock
	Workers      int     `yaml:"workers"` // 0 uses the device core count
	Device       string  `yaml:"device"`  // "auto", "cpu", "cuda"
	ModelDir     string  `yaml:"model_dir"`
}

// OutputConfig holds metric sink settings.
type OutputConfig struct {
	Format          string            `yaml:"format"`  // console format: "text" or "json"
	Summary         bool              `yaml:"summary"` // append sample/step counts to console lines
	LogDir          string            `yaml:"log_dir"`
	ScalarDB        bool              `yaml:"scalar_db"`
	MetricsFile     string            `yaml:"metrics_file"`
	MetricsMaxBytes int64             `yaml:"metrics_max_bytes"` // rotate the metrics file past this size; 0 never rotates
	WebhookURL      string            `yaml:"webhook_url"`
	WebhookHeaders  map[string]string `yaml:"webhook_headers"`
	WebhookTimeout  time.Duration     `yaml:"webhook_timeout"`
	WebhookBackoff  time.Duration     `yaml:"webhook_backoff"` // first 5xx retry delay, doubled per attempt
	OTLPEndpoint    string            `yaml:"otlp_endpoint"`
	OTLPInsecure    bool              `yaml:"otlp_insecure"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from environment variables with sensible defaults.
// When LOGKEY_CONFIG names a YAML file, its values are applied on top.
func Load() (Config, error) {
	cfg := fromEnv()
	if path := os.Getenv("LOGKEY_CONFIG"); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func fromEnv() Config {
	return Config{
		Source: SourceConfig{
			Provider:  getenv("LOGKEY_SOURCE", "csv"),
			Path:      getenv("LOGKEY_INPUT", "openstack_val_normal_n2_structured.csv"),
			Column:    getenv("LOGKEY_COLUMN", "EventId"),
			IDOffset:  getenvInt("LOGKEY_ID_OFFSET", 0),
			Windowing: getenv("LOGKEY_WINDOWING", "global"),
		},
		Model: ModelConfig{
			WindowSize: getenvInt("LOGKEY_WINDOW_SIZE", 10),
			InputSize:  1,
			HiddenSize: getenvInt("LOGKEY_HIDDEN_SIZE", 64),
			NumLayers:  getenvInt("LOGKEY_NUM_LAYERS", 2),
			NumClasses: getenvInt("LOGKEY_NUM_CLASSES", 43),
		},
		Train: TrainConfig{
			Epochs:       getenvInt("LOGKEY_EPOCHS", 300),
			BatchSize:    getenvInt("LOGKEY_BATCH_SIZE", 2048),
			Optimizer:    "Adam",
			LearningRate: getenvFloat("LOGKEY_LEARNING_RATE", 0.001),
			Shuffle:      getenvBool("LOGKEY_SHUFFLE", true),
			Seed:         int64(getenvInt("LOGKEY_SEED", 0)),
			Workers:      getenvInt("LOGKEY_WORKERS", 0),
			Device:       getenv("LOGKEY_DEVICE", "auto"),
			ModelDir:     getenv("LOGKEY_MODEL_DIR", "model"),
		},
		Output: OutputConfig{
			Format:          getenv("LOGKEY_OUTPUT_FORMAT", "text"),
			Summary:         getenvBool("LOGKEY_SUMMARY", false),
			LogDir:          getenv("LOGKEY_LOG_DIR", "log"),
			ScalarDB:        getenvBool("LOGKEY_SCALAR_DB", true),
			MetricsFile:     os.Getenv("LOGKEY_METRICS_FILE"),
			MetricsMaxBytes: int64(getenvInt("LOGKEY_METRICS_MAX_BYTES", 0)),
			WebhookURL:      os.Getenv("LOGKEY_WEBHOOK_URL"),
			WebhookHeaders:  webhookHeaders(os.Getenv("LOGKEY_WEBHOOK_TOKEN")),
			WebhookTimeout:  getenvDuration("LOGKEY_WEBHOOK_TIMEOUT", 10*time.Second),
			WebhookBackoff:  getenvDuration("LOGKEY_WEBHOOK_BACKOFF", time.Second),
			OTLPEndpoint:    os.Getenv("LOGKEY_OTLP_ENDPOINT"),
			OTLPInsecure:    getenvBool("LOGKEY_OTLP_INSECURE", false),
		},
		Logging: LoggingConfig{
			Level: getenv("LOGKEY_LOG_LEVEL", "info"),
		},
	}
}

// MergeFile overlays values from a YAML file. Keys absent from the file keep
// their current values.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// RunName encodes optimizer, batch size and epoch count, e.g.
// "Adam_batch_size=2048;epoch=300". It names both the checkpoint and the
// scalar log directory.
func (c Config) RunName() string {
	return fmt.Sprintf("%s_batch_size=%d;epoch=%d", c.Train.Optimizer, c.Train.BatchSize, c.Train.Epochs)
}

// Validate reports configuration errors. All of them are fatal.
func (c Config) Validate() error {
	var errs []error
	if c.Model.WindowSize <= 0 {
		errs = append(errs, fmt.Errorf("window size must be positive, got %d", c.Model.WindowSize))
	}
	if c.Model.InputSize != 1 {
		errs = append(errs, fmt.Errorf("input size is fixed at 1, got %d", c.Model.InputSize))
	}
	if c.Model.HiddenSize <= 0 {
		errs = append(errs, fmt.Errorf("hidden size must be positive, got %d", c.Model.HiddenSize))
	}
	if c.Model.NumLayers <= 0 {
		errs = append(errs, fmt.Errorf("layer count must be positive, got %d", c.Model.NumLayers))
	}
	if c.Model.NumClasses < 2 {
		errs = append(errs, fmt.Errorf("class count must be at least 2, got %d", c.Model.NumClasses))
	}
	if c.Train.Epochs <= 0 {
		errs = append(errs, fmt.Errorf("epoch count must be positive, got %d", c.Train.Epochs))
	}
	if c.Train.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", c.Train.BatchSize))
	}
	if c.Train.Optimizer != "Adam" {
		errs = append(errs, fmt.Errorf("unsupported optimizer %q", c.Train.Optimizer))
	}
	if c.Train.LearningRate <= 0 {
		errs = append(errs, fmt.Errorf("learning rate must be positive, got %g", c.Train.LearningRate))
	}
	switch c.Source.Windowing {
	case "global", "per_stream":
	default:
		errs = append(errs, fmt.Errorf("unknown windowing %q", c.Source.Windowing))
	}
	if c.Output.MetricsMaxBytes < 0 {
		errs = append(errs, fmt.Errorf("metrics max bytes must not be negative, got %d", c.Output.MetricsMaxBytes))
	}
	if c.Output.WebhookTimeout < 0 || c.Output.WebhookBackoff < 0 {
		errs = append(errs, fmt.Errorf("webhook durations must not be negative"))
	}
	switch c.Output.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown output format %q", c.Output.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// webhookHeaders turns a bearer token into an Authorization header.
func webhookHeaders(token string) map[string]string {
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}
