package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Artifact is a trained logistic model bundle. The feature list pins the slot
// order the weights were fit against; schemaVersion pins the extractor
// generation.
type Artifact struct {
	ModelVersion  string    `yaml:"modelVersion"`
	SchemaVersion string    `yaml:"schemaVersion"`
	Features      []string  `yaml:"features"`
	Weights       []float64 `yaml:"weights"`
	Intercept     float64   `yaml:"intercept"`
	Threshold     float64   `yaml:"threshold"`
}

func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if err := a.validate(); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return &a, nil
}

func (a *Artifact) validate() error {
	if a.ModelVersion == "" {
		return fmt.Errorf("modelVersion is required")
	}
	if a.SchemaVersion == "" {
		return fmt.Errorf("schemaVersion is required")
	}
	if len(a.Weights) == 0 {
		return fmt.Errorf("weights are required")
	}
	if len(a.Features) != len(a.Weights) {
		return fmt.Errorf("got %d features but %d weights", len(a.Features), len(a.Weights))
	}
	if a.Threshold < 0 || a.Threshold > 1 {
		return fmt.Errorf("threshold %v out of [0,1]", a.Threshold)
	}
	return nil
}
