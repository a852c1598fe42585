package model

import "fmt"

// LoadError reports a missing, unreadable, or malformed model artifact.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SchemaMismatchError reports a feature schema the model was not trained
// against. Scoring such a vector would silently misclassify, so this is fatal
// to the run.
type SchemaMismatchError struct {
	ModelSchema  string
	VectorSchema string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("feature schema mismatch: model trained on %q, vector produced by %q", e.ModelSchema, e.VectorSchema)
}
