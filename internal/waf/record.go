package waf

import "time"

// TriggeredRule is one detection rule that fired on a transaction, as reported
// by the inspection layer.
type TriggeredRule struct {
	ID            string `json:"rule_id"`
	ParanoiaLevel int    `json:"paranoia_level"`
	Severity      int    `json:"severity"`
	AnomalyScore  int    `json:"anomaly_score"`
}

// AuditRecord is one inspected HTTP transaction. Records come from an
// adversarial source: any field may be absent or garbage, so zero values are
// the defined sentinels and no accessor panics on them.
type AuditRecord struct {
	ID                string            `json:"transaction_id"`
	Timestamp         time.Time         `json:"timestamp"`
	ClientAddr        string            `json:"client_addr"`
	Method            string            `json:"http_method"`
	Path              string            `json:"request_path"`
	Query             string            `json:"request_query"`
	Headers           map[string]string `json:"headers"`
	UserAgent         string            `json:"user_agent"`
	ContentLength     int64             `json:"content_length"`
	BodyExcerpt       string            `json:"request_body"`
	TriggeredRules    []TriggeredRule   `json:"rules"`
	TotalAnomalyScore int               `json:"anomaly_score"`
}

// RuleIDs returns the triggered rule ids in record order.
func (r AuditRecord) RuleIDs() []string {
	if len(r.TriggeredRules) == 0 {
		return nil
	}
	ids := make([]string, 0, len(r.TriggeredRules))
	for _, tr := range r.TriggeredRules {
		ids = append(ids, tr.ID)
	}
	return ids
}
