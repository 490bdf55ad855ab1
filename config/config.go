package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Yousefhamdy22/ProjectGradution/detections"
	"github.com/Yousefhamdy22/ProjectGradution/inference"
)

// Config is the complete service configuration
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Model       ModelConfig       `yaml:"model"`
	Labels      []string          `yaml:"labels"`
	LabelsFile  string            `yaml:"labels_file"` // one label per line, overrides Labels
	Postprocess PostprocessConfig `yaml:"postprocess"`
}

type ServerConfig struct {
	Addr               string        `yaml:"addr"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"` // per client IP, 0 disables
}

type ModelConfig struct {
	Path           string        `yaml:"path"`
	RuntimeLibrary string        `yaml:"runtime_library"` // onnxruntime .so/.dylib/.dll
	InputName      string        `yaml:"input_name"`
	OutputName     string        `yaml:"output_name"`
	InputWidth     int           `yaml:"input_width"`
	InputHeight    int           `yaml:"input_height"`
	Stride         int           `yaml:"stride"` // values per output record
	PoolSize       int           `yaml:"pool_size"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	IntraOpThreads int           `yaml:"intra_op_threads"`
	InterOpThreads int           `yaml:"inter_op_threads"`
}

// PostprocessConfig enables optional behavior on top of the raw record pass-through
type PostprocessConfig struct {
	RescaleBoxes  bool    `yaml:"rescale_boxes"`
	Filter        bool    `yaml:"filter"`
	ConfThreshold float32 `yaml:"confidence_threshold"`
	IouThreshold  float32 `yaml:"iou_threshold"`
}

var DefaultLabels = []string{"Label1", "Label2", "Label3"}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Model: ModelConfig{
			Path:           "wwwroot/best.onnx",
			RuntimeLibrary: inference.DefaultLibraryPath(),
			InputName:      "images",
			OutputName:     "output0",
			InputWidth:     detections.InputWidth,
			InputHeight:    detections.InputHeight,
			Stride:         detections.RecordStride,
			PoolSize:       inference.DefaultPoolSize,
			AcquireTimeout: inference.DefaultAcquireTimeout,
		},
		Labels: append([]string(nil), DefaultLabels...),
		Postprocess: PostprocessConfig{
			ConfThreshold: detections.DefaultConfThreshold,
			IouThreshold:  detections.DefaultIouThreshold,
		},
	}
}

// Load reads an optional YAML file over the defaults, then applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.LabelsFile != "" {
		labels, err := LoadLabelFile(cfg.LabelsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load labels: %w", err)
		}
		cfg.Labels = labels
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	cfg.Server.Addr = getEnv("ADDR", cfg.Server.Addr)
	cfg.Model.Path = getEnv("MODEL_PATH", cfg.Model.Path)
	cfg.Model.RuntimeLibrary = getEnv("ONNXRUNTIME_LIB", cfg.Model.RuntimeLibrary)
	cfg.LabelsFile = getEnv("LABELS_FILE", cfg.LabelsFile)
	if os.Getenv("DEBUG") == "true" {
		cfg.Debug = true
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Validate checks if the configuration is usable
func Validate(cfg *Config) error {
	if cfg.Model.Path == "" {
		return fmt.Errorf("model.path is required")
	}
	if cfg.Model.InputWidth <= 0 || cfg.Model.InputHeight <= 0 {
		return fmt.Errorf("model input size must be > 0, got %vx%v", cfg.Model.InputWidth, cfg.Model.InputHeight)
	}
	if cfg.Model.Stride < detections.RecordStride {
		return fmt.Errorf("model.stride must be at least %v", detections.RecordStride)
	}
	if cfg.Model.PoolSize <= 0 {
		return fmt.Errorf("model.pool_size must be > 0")
	}
	if cfg.Model.InputName == "" || cfg.Model.OutputName == "" {
		return fmt.Errorf("model.input_name and model.output_name are required")
	}
	if cfg.Model.AcquireTimeout <= 0 {
		cfg.Model.AcquireTimeout = inference.DefaultAcquireTimeout
	}
	if cfg.Postprocess.ConfThreshold < 0 || cfg.Postprocess.ConfThreshold > 1 {
		return fmt.Errorf("postprocess.confidence_threshold must be within [0, 1]")
	}
	if cfg.Postprocess.IouThreshold < 0 || cfg.Postprocess.IouThreshold > 1 {
		return fmt.Errorf("postprocess.iou_threshold must be within [0, 1]")
	}
	if cfg.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("server.rate_limit_per_minute must not be negative")
	}
	return nil
}

// Load a text file with label names on each line
func LoadLabelFile(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	labels := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			labels = append(labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}

func (c *Config) InferenceOptions() inference.Options {
	return inference.Options{
		ModelPath:      c.Model.Path,
		InputName:      c.Model.InputName,
		OutputName:     c.Model.OutputName,
		InputWidth:     c.Model.InputWidth,
		InputHeight:    c.Model.InputHeight,
		PoolSize:       c.Model.PoolSize,
		AcquireTimeout: c.Model.AcquireTimeout,
		IntraOpThreads: c.Model.IntraOpThreads,
		InterOpThreads: c.Model.InterOpThreads,
	}
}

func (c *Config) PipelineOptions() detections.Options {
	return detections.Options{
		InputWidth:   c.Model.InputWidth,
		InputHeight:  c.Model.InputHeight,
		Stride:       c.Model.Stride,
		RescaleBoxes: c.Postprocess.RescaleBoxes,
		Filter: detections.FilterOptions{
			Enabled:       c.Postprocess.Filter,
			ConfThreshold: c.Postprocess.ConfThreshold,
			IouThreshold:  c.Postprocess.IouThreshold,
		},
	}
}

func (c *Config) LabelTable() detections.LabelTable {
	return detections.NewLabelTable(c.Labels)
}
