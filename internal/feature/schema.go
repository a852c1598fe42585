package feature

// SchemaVersion identifies the slot layout produced by this extractor. Model
// artifacts declare the schema version they were trained against; the
// classifier refuses vectors from any other version.
const SchemaVersion = "fv2"

// Schema maps feature names to vector slots. Order is the contract: slot i of
// every Vector holds the value named by Names[i].
type Schema struct {
	Version string
	Names   []string
}

func DefaultSchema() Schema {
	return Schema{
		Version: SchemaVersion,
		Names: []string{
			"path_length",
			"path_depth",
			"query_length",
			"query_param_count",
			"special_char_ratio",
			"digit_ratio",
			"path_entropy",
			"body_entropy",
			"body_length",
			"header_count",
			"content_length",
			"ua_empty",
			"ua_script",
			"ua_browser",
			"method_get",
			"method_post",
			"method_put",
			"method_delete",
			"method_other",
			"pl1_rule_count",
			"pl2_rule_count",
			"pl3_rule_count",
			"pl4_rule_count",
			"total_anomaly_score",
		},
	}
}

// Index returns the slot for a feature name, or -1 when the schema does not
// carry it.
func (s Schema) Index(name string) int {
	for i, n := range s.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Vector is a fixed-shape feature representation of one AuditRecord.
type Vector struct {
	SchemaVersion string
	Values        []float64
}
