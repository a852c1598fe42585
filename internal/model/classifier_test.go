package model

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maroof-I/modlek/internal/feature"
	"github.com/maroof-I/modlek/internal/waf"
)

func writeArtifact(t *testing.T, schemaVersion string, names []string, weightFor func(name string) float64) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("modelVersion: rf-2025-06\n")
	b.WriteString("schemaVersion: " + schemaVersion + "\n")
	b.WriteString("threshold: 0.5\n")
	b.WriteString("intercept: -2.0\n")
	b.WriteString("features:\n")
	for _, name := range names {
		b.WriteString("  - " + name + "\n")
	}
	b.WriteString("weights:\n")
	for _, name := range names {
		w := 0.0
		if weightFor != nil {
			w = weightFor(name)
		}
		b.WriteString("  - " + strconv.FormatFloat(w, 'f', -1, 64) + "\n")
	}

	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func testArtifactPath(t *testing.T) string {
	schema := feature.DefaultSchema()
	return writeArtifact(t, schema.Version, schema.Names, func(name string) float64 {
		if name == "total_anomaly_score" {
			return 1.0
		}
		return 0
	})
}

func TestNewClassifierMissingArtifact(t *testing.T) {
	_, err := NewClassifier(filepath.Join(t.TempDir(), "absent.yaml"), feature.DefaultSchema(), 0, nil)
	var lerr *LoadError
	require.True(t, errors.As(err, &lerr), "want LoadError, got %v", err)
}

func TestNewClassifierCorruptArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o600))

	_, err := NewClassifier(path, feature.DefaultSchema(), 0, nil)
	var lerr *LoadError
	require.True(t, errors.As(err, &lerr))
}

func TestNewClassifierSchemaMismatch(t *testing.T) {
	schema := feature.DefaultSchema()
	path := writeArtifact(t, "fv1-legacy", schema.Names, nil)

	_, err := NewClassifier(path, schema, 0, nil)
	var merr *SchemaMismatchError
	require.True(t, errors.As(err, &merr), "want SchemaMismatchError, got %v", err)
}

func TestClassifyThresholding(t *testing.T) {
	c, err := NewClassifier(testArtifactPath(t), feature.DefaultSchema(), 0, nil)
	require.NoError(t, err)
	require.Equal(t, "rf-2025-06", c.Version())

	schema := feature.DefaultSchema()
	scoreSlot := schema.Index("total_anomaly_score")

	low := feature.Vector{SchemaVersion: schema.Version, Values: make([]float64, len(schema.Names))}
	label, conf, err := c.Classify(low)
	require.NoError(t, err)
	require.Equal(t, waf.LabelBenign, label)
	require.Less(t, conf, 0.5)

	high := feature.Vector{SchemaVersion: schema.Version, Values: make([]float64, len(schema.Names))}
	high.Values[scoreSlot] = 15 // intercept -2 + 15 => confidence ~1
	label, conf, err = c.Classify(high)
	require.NoError(t, err)
	require.Equal(t, waf.LabelMalicious, label)
	require.Greater(t, conf, 0.9)
}

func TestClassifyRejectsForeignVector(t *testing.T) {
	c, err := NewClassifier(testArtifactPath(t), feature.DefaultSchema(), 0, nil)
	require.NoError(t, err)

	_, _, err = c.Classify(feature.Vector{SchemaVersion: "fv9", Values: make([]float64, 3)})
	var merr *SchemaMismatchError
	require.True(t, errors.As(err, &merr))
}

func TestClassifyConcurrent(t *testing.T) {
	c, err := NewClassifier(testArtifactPath(t), feature.DefaultSchema(), 0, nil)
	require.NoError(t, err)

	schema := feature.DefaultSchema()
	v := feature.Vector{SchemaVersion: schema.Version, Values: make([]float64, len(schema.Names))}

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 200; j++ {
				if _, _, err := c.Classify(v); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
