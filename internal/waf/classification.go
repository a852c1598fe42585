package waf

import "time"

type Label string

const (
	LabelBenign    Label = "benign"
	LabelMalicious Label = "malicious"
)

// Classification is the persisted outcome of scoring one AuditRecord.
// Immutable once written; (RecordID, ModelVersion) is the idempotence key.
type Classification struct {
	RecordID     string    `json:"record_id"`
	Label        Label     `json:"label"`
	Confidence   float64   `json:"confidence"`
	ModelVersion string    `json:"model_version"`
	ClassifiedAt time.Time `json:"classified_at"`
}

func (c Classification) Malicious() bool {
	return c.Label == LabelMalicious
}
