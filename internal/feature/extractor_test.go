package feature

import (
	"reflect"
	"testing"
	"time"

	"github.com/maroof-I/modlek/internal/waf"
)

func sampleRecord() waf.AuditRecord {
	return waf.AuditRecord{
		ID:            "tx-001",
		Timestamp:     time.Date(2025, 6, 19, 4, 12, 0, 0, time.UTC),
		ClientAddr:    "203.0.113.7",
		Method:        "POST",
		Path:          "/login",
		Query:         "user=admin&pass=%27%20OR%201%3D1--",
		Headers:       map[string]string{"Host": "shop.example", "User-Agent": "sqlmap/1.7"},
		UserAgent:     "sqlmap/1.7",
		BodyExcerpt:   "username=admin' OR 1=1--",
		ContentLength: 24,
		TriggeredRules: []waf.TriggeredRule{
			{ID: "942100", ParanoiaLevel: 1, Severity: 2, AnomalyScore: 5},
			{ID: "942480", ParanoiaLevel: 3, Severity: 2, AnomalyScore: 5},
		},
		TotalAnomalyScore: 10,
	}
}

func TestExtractDeterministic(t *testing.T) {
	ex := NewExtractor()
	rec := sampleRecord()

	a := ex.Extract(rec)
	b := ex.Extract(rec)

	if !reflect.DeepEqual(a, b) {
		t.Fatalf("extraction is not deterministic:\n%v\n%v", a, b)
	}
	if a.SchemaVersion != SchemaVersion {
		t.Fatalf("schema version = %q, want %q", a.SchemaVersion, SchemaVersion)
	}
	if len(a.Values) != len(DefaultSchema().Names) {
		t.Fatalf("vector has %d slots, schema has %d", len(a.Values), len(DefaultSchema().Names))
	}
}

func TestExtractEmptyRecord(t *testing.T) {
	ex := NewExtractor()
	v := ex.Extract(waf.AuditRecord{})

	for i, val := range v.Values {
		name := DefaultSchema().Names[i]
		switch name {
		case "ua_empty":
			if val != 1 {
				t.Fatalf("ua_empty = %v, want 1", val)
			}
		case "method_other":
			if val != 1 {
				t.Fatalf("method_other = %v, want 1", val)
			}
		default:
			if val != 0 {
				t.Fatalf("%s = %v, want 0 sentinel", name, val)
			}
		}
	}
}

func TestExtractFeatureValues(t *testing.T) {
	ex := NewExtractor()
	v := ex.Extract(sampleRecord())
	schema := ex.Schema()

	at := func(name string) float64 {
		i := schema.Index(name)
		if i < 0 {
			t.Fatalf("schema is missing %s", name)
		}
		return v.Values[i]
	}

	if at("method_post") != 1 || at("method_get") != 0 {
		t.Fatal("method one-hot wrong")
	}
	if at("ua_script") != 1 {
		t.Fatal("sqlmap agent not classed as script")
	}
	if at("pl3_rule_count") != 1 || at("pl1_rule_count") != 1 {
		t.Fatal("paranoia level counts wrong")
	}
	if at("total_anomaly_score") != 10 {
		t.Fatal("anomaly score not carried")
	}
	if at("query_param_count") != 2 {
		t.Fatalf("query_param_count = %v, want 2", at("query_param_count"))
	}
	if at("special_char_ratio") <= 0 {
		t.Fatal("special char ratio should be positive for quoted query")
	}
}

func TestExtractNegativeContentLength(t *testing.T) {
	ex := NewExtractor()
	v := ex.Extract(waf.AuditRecord{ContentLength: -5})
	if v.Values[ex.Schema().Index("content_length")] != 0 {
		t.Fatal("negative content length must clamp to zero")
	}
}
