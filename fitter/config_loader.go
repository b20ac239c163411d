package fitter

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPublishPrefix is used when neither config nor environment name one.
const DefaultPublishPrefix = "robustfit"

// DefaultDefaults returns the search settings used when the config file
// leaves them out.
func DefaultDefaults() Defaults {
	return Defaults{
		Model:      string(ModelLine),
		Threshold:  1.0,
		Confidence: 0.99,
		MaxTrials:  1000,
		MinTrials:  1,
		Seed:       1,
		Workers:    1,
	}
}

// DefaultConfig returns a config with no datasets and MQTT disabled.
func DefaultConfig() *Config {
	return &Config{
		MQTT:     MQTTConfig{PublishPrefix: DefaultPublishPrefix},
		Defaults: DefaultDefaults(),
		HTTP:     HTTPConfig{Port: 8080},
	}
}

// LoadConfig loads the configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the defaults and every dataset entry.
func (c *Config) Validate() error {
	d := c.Defaults
	if _, err := ParseModel(d.Model); err != nil {
		return fmt.Errorf("defaults.model: %w", err)
	}
	if d.Threshold <= 0 {
		return fmt.Errorf("defaults.threshold must be positive, got %g", d.Threshold)
	}
	if d.Confidence <= 0 || d.Confidence >= 1 {
		return fmt.Errorf("defaults.confidence must be in (0,1), got %g", d.Confidence)
	}
	if d.MaxTrials < 1 {
		return fmt.Errorf("defaults.maxTrials must be at least 1, got %d", d.MaxTrials)
	}
	if d.MinTrials < 0 || d.MinTrials > d.MaxTrials {
		return fmt.Errorf("defaults.minTrials must be in [0,%d], got %d", d.MaxTrials, d.MinTrials)
	}
	if d.Workers < 0 {
		return fmt.Errorf("defaults.workers must not be negative, got %d", d.Workers)
	}

	seen := make(map[string]bool, len(c.Datasets))
	for i, ds := range c.Datasets {
		if ds.ID == "" {
			return fmt.Errorf("datasets[%d].id is required", i)
		}
		if seen[ds.ID] {
			return fmt.Errorf("datasets[%d].id %q is duplicated", i, ds.ID)
		}
		seen[ds.ID] = true

		if ds.Model != "" {
			if _, err := ParseModel(ds.Model); err != nil {
				return fmt.Errorf("datasets[%d].model for %s: %w", i, ds.ID, err)
			}
		}
		if ds.Path != "" && ds.URL != "" {
			return fmt.Errorf("datasets[%d] for %s: path and url are mutually exclusive", i, ds.ID)
		}
		if ds.Threshold != nil && *ds.Threshold <= 0 {
			return fmt.Errorf("datasets[%d].threshold for %s must be positive", i, ds.ID)
		}
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// FitConfigFor merges the defaults with the overrides of ds. A nil ds
// yields the defaults alone.
func (c *Config) FitConfigFor(ds *DatasetConfig) (FitConfig, error) {
	d := c.Defaults
	fc := DefaultFitConfig()
	fc.Search.Confidence = d.Confidence
	fc.Search.MaxTrials = d.MaxTrials
	fc.Search.MinTrials = d.MinTrials
	fc.Search.Seed = d.Seed
	fc.Search.Workers = d.Workers
	fc.Search.EarlyBail = d.EarlyBail
	fc.Threshold = d.Threshold

	name := d.Model
	if ds != nil {
		if ds.Model != "" {
			name = ds.Model
		}
		fc.Threshold = ds.GetThreshold(d.Threshold)
	}
	model, err := ParseModel(name)
	if err != nil {
		return FitConfig{}, err
	}
	fc.Model = model
	return fc, nil
}
