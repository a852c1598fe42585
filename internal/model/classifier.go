package model

import (
	"fmt"
	"math"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/maroof-I/modlek/internal/feature"
	"github.com/maroof-I/modlek/internal/waf"
)

const defaultThreshold = 0.5

// Classifier scores feature vectors with a loaded artifact. The artifact is
// held behind an atomic pointer so Classify is safe for concurrent callers
// and the watcher can swap in a reloaded model without a lock.
type Classifier struct {
	path      string
	artifact  atomic.Pointer[Artifact]
	threshold float64
	logger    *zap.Logger
}

// NewClassifier loads the artifact at path and verifies it against the live
// extractor schema. threshold <= 0 defers to the artifact's own threshold.
func NewClassifier(path string, schema feature.Schema, threshold float64, logger *zap.Logger) (*Classifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	art, err := LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	if err := checkSchema(art, schema); err != nil {
		return nil, err
	}

	c := &Classifier{path: path, threshold: threshold, logger: logger}
	c.artifact.Store(art)

	logger.Info("model loaded",
		zap.String("path", path),
		zap.String("model_version", art.ModelVersion),
		zap.String("schema_version", art.SchemaVersion))
	return c, nil
}

func checkSchema(art *Artifact, schema feature.Schema) error {
	if art.SchemaVersion != schema.Version {
		return &SchemaMismatchError{ModelSchema: art.SchemaVersion, VectorSchema: schema.Version}
	}
	if len(art.Features) != len(schema.Names) {
		return &LoadError{Path: "", Err: fmt.Errorf("artifact has %d features, schema %s has %d",
			len(art.Features), schema.Version, len(schema.Names))}
	}
	for i, name := range art.Features {
		if schema.Names[i] != name {
			return &LoadError{Path: "", Err: fmt.Errorf("artifact feature %d is %q, schema has %q", i, name, schema.Names[i])}
		}
	}
	return nil
}

func (c *Classifier) Version() string {
	return c.artifact.Load().ModelVersion
}

// Classify returns the label and calibrated malicious probability for one
// vector. Pure: no shared state is mutated.
func (c *Classifier) Classify(v feature.Vector) (waf.Label, float64, error) {
	art := c.artifact.Load()

	if v.SchemaVersion != art.SchemaVersion {
		return "", 0, &SchemaMismatchError{ModelSchema: art.SchemaVersion, VectorSchema: v.SchemaVersion}
	}
	if len(v.Values) != len(art.Weights) {
		return "", 0, &SchemaMismatchError{ModelSchema: art.SchemaVersion, VectorSchema: v.SchemaVersion}
	}

	z := art.Intercept
	for i, w := range art.Weights {
		z += w * v.Values[i]
	}
	confidence := sigmoid(z)

	threshold := c.threshold
	if threshold <= 0 {
		threshold = art.Threshold
	}
	if threshold <= 0 {
		threshold = defaultThreshold
	}

	label := waf.LabelBenign
	if confidence >= threshold {
		label = waf.LabelMalicious
	}
	return label, confidence, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
