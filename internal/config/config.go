package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/densefeat/internal/engine/featurizer"
)

// Version is the densefeat release.
const Version = "0.3.0"

// Config holds all densefeat configuration.
type Config struct {
	Mode        string // "process" or "train"
	LogLevel    string
	ShowVersion bool
	Input       InputConfig
	Featurizer  FeaturizerConfig
	Vectorizer  VectorizerConfig
	Output      OutputConfig
}

// InputConfig selects where messages are read from.
type InputConfig struct {
	Path  string // "-" for stdin, a file path, or an http(s) URL
	Token string // bearer token for http(s) inputs

	// BatchWindow makes process mode featurize messages in micro-batches
	// collected over this window. 0 processes one message at a time.
	BatchWindow time.Duration
}

// FeaturizerConfig holds the dense featurizer settings.
type FeaturizerConfig struct {
	Pooling             string // "mean" or "max"
	ComponentConfigPath string // optional YAML file
}

// VectorizerConfig holds the token vectorizer settings.
type VectorizerConfig struct {
	ModelPath      string
	VocabPath      string
	ProjectionPath string // optional
	RuntimeLibPath string // optional; default is next to the model
	Threads        int
	BatchSize      int
}

// OutputConfig holds output destination settings.
type OutputConfig struct {
	Format     string // "stdout", "file", or "both"
	Path       string
	MaxSize    int64 // rotation threshold in bytes, 0 disables rotation
	MaxBackups int   // rotated files kept, 0 discards the old file
	Pretty     bool
}

// ComponentConfig is the YAML component file. Keys other than pooling are
// ignored.
type ComponentConfig struct {
	Pooling string `yaml:"pooling"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		Mode:     getenv("DENSEFEAT_MODE", "process"),
		LogLevel: getenv("DENSEFEAT_LOG_LEVEL", "info"),
		Input: InputConfig{
			Path:  getenv("DENSEFEAT_INPUT", "-"),
			Token: os.Getenv("DENSEFEAT_INPUT_TOKEN"),

			BatchWindow: getenvDuration("DENSEFEAT_BATCH_WINDOW", 0),
		},
		Featurizer: FeaturizerConfig{
			Pooling:             os.Getenv("DENSEFEAT_POOLING"),
			ComponentConfigPath: os.Getenv("DENSEFEAT_COMPONENT_CONFIG"),
		},
		Vectorizer: VectorizerConfig{
			ModelPath:      getenv("DENSEFEAT_MODEL_PATH", "models/model_quantized.onnx"),
			VocabPath:      getenv("DENSEFEAT_VOCAB_PATH", "models/vocab.txt"),
			ProjectionPath: os.Getenv("DENSEFEAT_PROJECTION_PATH"),
			RuntimeLibPath: os.Getenv("DENSEFEAT_ORT_LIB"),
			Threads:        getenvInt("DENSEFEAT_THREADS", 4),
			BatchSize:      getenvInt("DENSEFEAT_BATCH_SIZE", 32),
		},
		Output: OutputConfig{
			Format:     getenv("DENSEFEAT_OUTPUT", "stdout"),
			Path:       os.Getenv("DENSEFEAT_OUTPUT_FILE"),
			MaxSize:    int64(getenvInt("DENSEFEAT_OUTPUT_MAX_SIZE", 0)),
			MaxBackups: getenvInt("DENSEFEAT_OUTPUT_MAX_BACKUPS", 9),
			Pretty:     os.Getenv("DENSEFEAT_OUTPUT_PRETTY") == "true",
		},
	}
}

// LoadEnvFile loads KEY=VALUE lines from path into the environment.
// Variables already set are not overridden. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("env file %s: %w", path, err)
	}
	return nil
}

// LoadComponentConfig reads a YAML component file.
func LoadComponentConfig(path string) (ComponentConfig, error) {
	var cc ComponentConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cc, fmt.Errorf("component config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cc); err != nil {
		return cc, fmt.Errorf("component config %s: %w", path, err)
	}
	return cc, nil
}

// ResolvePooling fills Featurizer.Pooling from the component file when the
// environment left it empty, then falls back to "mean".
func (c *Config) ResolvePooling() error {
	if c.Featurizer.Pooling == "" && c.Featurizer.ComponentConfigPath != "" {
		cc, err := LoadComponentConfig(c.Featurizer.ComponentConfigPath)
		if err != nil {
			return err
		}
		c.Featurizer.Pooling = cc.Pooling
	}
	if c.Featurizer.Pooling == "" {
		c.Featurizer.Pooling = featurizer.DefaultPooling.String()
	}
	return nil
}

// Validate checks the configuration and reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Mode {
	case "process", "train":
	default:
		errs = append(errs, fmt.Errorf("invalid mode %q (want process or train)", c.Mode))
	}

	if _, err := featurizer.ParsePooling(c.Featurizer.Pooling); err != nil {
		errs = append(errs, fmt.Errorf("pooling: %w", err))
	}

	for name, path := range map[string]string{
		"model": c.Vectorizer.ModelPath,
		"vocab": c.Vectorizer.VocabPath,
	} {
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, fmt.Errorf("%s file %s: %w", name, path, err))
		}
	}
	if p := c.Vectorizer.ProjectionPath; p != "" {
		if _, err := os.Stat(p); err != nil {
			errs = append(errs, fmt.Errorf("projection file %s: %w", p, err))
		}
	}
	if c.Input.BatchWindow < 0 {
		errs = append(errs, fmt.Errorf("batch window must be >= 0, got %s", c.Input.BatchWindow))
	}
	if c.Vectorizer.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", c.Vectorizer.BatchSize))
	}

	switch c.Output.Format {
	case "stdout":
	case "file", "both":
		if c.Output.Path == "" {
			errs = append(errs, fmt.Errorf("%s output requires DENSEFEAT_OUTPUT_FILE", c.Output.Format))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid output %q (want stdout, file, or both)", c.Output.Format))
	}
	if c.Output.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("output max size must be >= 0, got %d", c.Output.MaxSize))
	}
	if c.Output.MaxBackups < 0 {
		errs = append(errs, fmt.Errorf("output max backups must be >= 0, got %d", c.Output.MaxBackups))
	}

	return errors.Join(errs...)
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
