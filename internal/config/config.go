package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the application configuration
type Config struct {
	Detector  DetectorConfig  `json:"detector"`
	Embedder  EmbedderConfig  `json:"embedder"`
	Synthesis SynthesisConfig `json:"synthesis"`
	Pipeline  PipelineConfig  `json:"pipeline"`
	Output    OutputConfig    `json:"output"`
}

// DetectorConfig holds configuration for face localization
type DetectorConfig struct {
	CascadeFile   string  `json:"cascade_file"`
	MinConfidence float64 `json:"min_confidence"`
	MinDetectSize int     `json:"min_detect_size"`
	PaddingRatio  float64 `json:"padding_ratio"`
	TryRotations  bool    `json:"try_rotations"`
}

// EmbedderConfig holds configuration for the face embedding model
type EmbedderConfig struct {
	ModelsDir   string `json:"models_dir"`
	InputSize   int    `json:"input_size"`
	JPEGQuality int    `json:"jpeg_quality"`
}

// SynthesisConfig holds configuration for perturbation synthesis
type SynthesisConfig struct {
	Seed          int64             `json:"seed"`
	ProbeRatio    float64           `json:"probe_ratio"`
	SmoothDivisor float64           `json:"smooth_divisor"`
	Profiles      []ProfileOverride `json:"profiles,omitempty"`
}

// ProfileOverride replaces the built-in preset for one strength level.
// TimeBudget is in seconds to keep the file hand-editable.
type ProfileOverride struct {
	Strength       string  `json:"strength"`
	Epsilon        float64 `json:"epsilon"`
	Steps          int     `json:"steps"`
	StepFactor     float64 `json:"step_factor"`
	TargetDistance float64 `json:"target_distance"`
	TimeBudgetSec  float64 `json:"time_budget_sec"`
}

// PipelineConfig holds configuration for pipeline orchestration
type PipelineConfig struct {
	Workers     int `json:"workers"`
	MinFaceSize int `json:"min_face_size"`
}

// OutputConfig holds configuration for output encoding
type OutputConfig struct {
	Format         string `json:"format"`
	Quality        int    `json:"quality"`
	RenderAnalysis bool   `json:"render_analysis"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			CascadeFile:   "./models/facefinder",
			MinConfidence: 10.0,
			MinDetectSize: 20,
			PaddingRatio:  0.25,
			TryRotations:  true,
		},
		Embedder: EmbedderConfig{
			ModelsDir:   "./models",
			InputSize:   150,
			JPEGQuality: 95,
		},
		Synthesis: SynthesisConfig{
			Seed:          1,
			ProbeRatio:    0.5,
			SmoothDivisor: 32,
		},
		Pipeline: PipelineConfig{
			Workers:     0,
			MinFaceSize: 64,
		},
		Output: OutputConfig{
			Format:         "jpg",
			Quality:        95,
			RenderAnalysis: false,
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Detector.CascadeFile == "" {
		return fmt.Errorf("detector.cascade_file cannot be empty")
	}

	if c.Detector.MinConfidence < 0 {
		return fmt.Errorf("detector.min_confidence must not be negative")
	}

	if c.Detector.PaddingRatio < 0 || c.Detector.PaddingRatio > 1 {
		return fmt.Errorf("detector.padding_ratio must be between 0 and 1")
	}

	if c.Embedder.ModelsDir == "" {
		return fmt.Errorf("embedder.models_dir cannot be empty")
	}

	if c.Embedder.InputSize < 32 {
		return fmt.Errorf("embedder.input_size must be at least 32")
	}

	if c.Embedder.JPEGQuality < 1 || c.Embedder.JPEGQuality > 100 {
		return fmt.Errorf("embedder.jpeg_quality must be between 1 and 100")
	}

	if c.Synthesis.ProbeRatio <= 0 || c.Synthesis.ProbeRatio > 1 {
		return fmt.Errorf("synthesis.probe_ratio must be between 0 and 1")
	}

	for _, p := range c.Synthesis.Profiles {
		switch p.Strength {
		case "subtle", "standard", "maximum":
		default:
			return fmt.Errorf("synthesis.profiles: unknown strength %q", p.Strength)
		}
		if p.Epsilon <= 0 || p.Epsilon > 0.5 {
			return fmt.Errorf("synthesis.profiles[%s]: epsilon must be in (0, 0.5]", p.Strength)
		}
		if p.Steps < 1 {
			return fmt.Errorf("synthesis.profiles[%s]: steps must be positive", p.Strength)
		}
		if p.TimeBudgetSec <= 0 {
			return fmt.Errorf("synthesis.profiles[%s]: time_budget_sec must be positive", p.Strength)
		}
	}

	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline.workers must not be negative")
	}

	if c.Pipeline.MinFaceSize < 1 {
		return fmt.Errorf("pipeline.min_face_size must be positive")
	}

	switch c.Output.Format {
	case "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("output.format must be jpg, png or webp")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "void-cloak", "config.json")
}
