package fitter

import (
	"fmt"
	"strings"
)

// Model names a model family the fitter can estimate.
type Model string

const (
	ModelLine   Model = "line"
	ModelCircle Model = "circle"
	ModelPlane  Model = "plane"
	ModelRigid  Model = "rigid"
	ModelAffine Model = "affine"
)

// Models lists every supported model family.
var Models = []Model{ModelLine, ModelCircle, ModelPlane, ModelRigid, ModelAffine}

// ParseModel validates a model name, ignoring case and surrounding spaces.
func ParseModel(s string) (Model, error) {
	m := Model(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Models {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown model %q (want one of %v)", s, Models)
}

// RowWidth is the number of values each dataset row carries for the model:
// x,y for points, x,y,z for planes and srcX,srcY,dstX,dstY for correspondences.
func (m Model) RowWidth() int {
	switch m {
	case ModelPlane:
		return 3
	case ModelRigid, ModelAffine:
		return 4
	default:
		return 2
	}
}

// Planar reports whether the model can be drawn in two dimensions.
func (m Model) Planar() bool {
	return m != ModelPlane
}

// Dataset is a parsed fit request. Model and Threshold are optional hints
// carried by JSON payloads; configuration fills them in when absent.
type Dataset struct {
	ID        string      `json:"id,omitempty"`
	Model     Model       `json:"model,omitempty"`
	Threshold float64     `json:"threshold,omitempty"`
	Points    [][]float64 `json:"points"`
}

// ResidualStats summarises the model residuals over the inlier set.
type ResidualStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Median float64 `json:"median"`
	RMS    float64 `json:"rms"`
	Max    float64 `json:"max"`
}

// FitResult is the outcome of one robust fit
type FitResult struct {
	DatasetID   string        `json:"datasetId"`
	Model       Model         `json:"model"`
	Threshold   float64       `json:"threshold"`
	Parameters  []float64     `json:"parameters"`
	Summary     string        `json:"summary"`
	Inverse     []float64     `json:"inverse,omitempty"` // target to source, transform models only
	Inliers     []int         `json:"inliers"`
	Total       int           `json:"total"`
	InlierRatio float64       `json:"inlierRatio"`
	Trials      int           `json:"trials"`
	Degenerate  int           `json:"degenerate"`
	Canceled    bool          `json:"canceled,omitempty"`
	Residuals   ResidualStats `json:"residuals"`
	DurationMs  float64       `json:"durationMs"`
	Timestamp   int64         `json:"timestamp"`

	// Points keeps the fitted rows for rendering and GeoJSON export.
	Points [][]float64 `json:"points,omitempty"`
}

// InlierSet returns a lookup of the inlier indices.
func (r *FitResult) InlierSet() map[int]bool {
	set := make(map[int]bool, len(r.Inliers))
	for _, i := range r.Inliers {
		set[i] = true
	}
	return set
}

// Outliers returns the ascending indices that are not inliers.
func (r *FitResult) Outliers() []int {
	in := r.InlierSet()
	out := make([]int, 0, r.Total-len(r.Inliers))
	for i := 0; i < r.Total; i++ {
		if !in[i] {
			out = append(out, i)
		}
	}
	return out
}

// Defaults are the search settings applied to datasets that do not override them
type Defaults struct {
	Model      string  `yaml:"model" json:"model"`
	Threshold  float64 `yaml:"threshold" json:"threshold"`
	Confidence float64 `yaml:"confidence" json:"confidence"`
	MaxTrials  int     `yaml:"maxTrials" json:"maxTrials"`
	MinTrials  int     `yaml:"minTrials" json:"minTrials"`
	Seed       int64   `yaml:"seed" json:"seed"`
	Workers    int     `yaml:"workers" json:"workers"`
	EarlyBail  bool    `yaml:"earlyBail,omitempty" json:"earlyBail,omitempty"`
}

// DatasetConfig defines a dataset from the config file
type DatasetConfig struct {
	ID        string   `yaml:"id" json:"id"`
	Model     string   `yaml:"model,omitempty" json:"model,omitempty"`
	Path      string   `yaml:"path,omitempty" json:"path,omitempty"`
	URL       string   `yaml:"url,omitempty" json:"url,omitempty"`
	Threshold *float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"` // Optional override of defaults.threshold
	Topic     string   `yaml:"topic,omitempty" json:"topic,omitempty"`         // Optional MQTT topic carrying fit requests
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	Port int `yaml:"port,omitempty" json:"port,omitempty"`
}

// Config represents the full configuration file
type Config struct {
	MQTT     MQTTConfig      `yaml:"mqtt" json:"mqtt"`
	Defaults Defaults        `yaml:"defaults" json:"defaults"`
	Datasets []DatasetConfig `yaml:"datasets,omitempty" json:"datasets,omitempty"`
	HTTP     HTTPConfig      `yaml:"http,omitempty" json:"http,omitempty"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker,omitempty" json:"broker,omitempty"`
	PublishPrefix string `yaml:"publishPrefix,omitempty" json:"publishPrefix,omitempty"`
	ClientID      string `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// GetDatasetByID returns the dataset config for the given ID
func (c *Config) GetDatasetByID(id string) *DatasetConfig {
	for i := range c.Datasets {
		if c.Datasets[i].ID == id {
			return &c.Datasets[i]
		}
	}
	return nil
}

// GetThreshold returns the dataset threshold or def if not set
func (dc *DatasetConfig) GetThreshold(def float64) float64 {
	if dc.Threshold != nil {
		return *dc.Threshold
	}
	return def
}
