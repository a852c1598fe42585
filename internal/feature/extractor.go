package feature

import (
	"math"
	"strings"

	"github.com/maroof-I/modlek/internal/normalize"
	"github.com/maroof-I/modlek/internal/waf"
)

// Extractor turns audit records into fixed-shape vectors. Extract is total:
// malformed or missing fields map to zero-value sentinels, never to an error,
// because records are attacker-controlled and must not stall the pipeline.
type Extractor struct {
	schema Schema
}

func NewExtractor() *Extractor {
	return &Extractor{schema: DefaultSchema()}
}

func (e *Extractor) Schema() Schema {
	return e.schema
}

func (e *Extractor) Extract(rec waf.AuditRecord) Vector {
	path := normalize.Path(rec.Path)
	pathText := normalize.Text(rec.Path)
	queryText := normalize.Text(rec.Query)
	bodyText := normalize.Text(rec.BodyExcerpt)

	requestText := pathText + queryText

	values := make([]float64, len(e.schema.Names))
	set := func(name string, v float64) {
		if i := e.schema.Index(name); i >= 0 {
			values[i] = v
		}
	}

	set("path_length", float64(len(rec.Path)))
	set("path_depth", float64(pathDepth(path)))
	set("query_length", float64(len(rec.Query)))
	set("query_param_count", float64(queryParamCount(rec.Query)))
	set("special_char_ratio", specialCharRatio(requestText))
	set("digit_ratio", digitRatio(requestText))
	set("path_entropy", entropy(pathText))
	set("body_entropy", entropy(bodyText))
	set("body_length", float64(len(rec.BodyExcerpt)))
	set("header_count", float64(len(rec.Headers)))
	set("content_length", float64(max64(rec.ContentLength, 0)))

	uaEmpty, uaScript, uaBrowser := userAgentClass(rec.UserAgent)
	set("ua_empty", uaEmpty)
	set("ua_script", uaScript)
	set("ua_browser", uaBrowser)

	get, post, put, del, other := methodOneHot(rec.Method)
	set("method_get", get)
	set("method_post", post)
	set("method_put", put)
	set("method_delete", del)
	set("method_other", other)

	var plCounts [5]float64
	for _, tr := range rec.TriggeredRules {
		if tr.ParanoiaLevel >= 1 && tr.ParanoiaLevel <= 4 {
			plCounts[tr.ParanoiaLevel]++
		}
	}
	set("pl1_rule_count", plCounts[1])
	set("pl2_rule_count", plCounts[2])
	set("pl3_rule_count", plCounts[3])
	set("pl4_rule_count", plCounts[4])
	set("total_anomaly_score", float64(rec.TotalAnomalyScore))

	return Vector{SchemaVersion: e.schema.Version, Values: values}
}

func pathDepth(path string) int {
	if path == "" || path == "/" {
		return 0
	}
	return strings.Count(path, "/")
}

func queryParamCount(query string) int {
	if query == "" {
		return 0
	}
	return strings.Count(query, "&") + 1
}

func specialCharRatio(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	special := 0
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '/' || r == '.' || r == '-' || r == '_':
		default:
			special++
		}
	}
	return float64(special) / float64(len(s))
}

func digitRatio(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return float64(digits) / float64(len(s))
}

// entropy is Shannon entropy over bytes, in bits. High-entropy paths and
// bodies correlate with encoded or randomized payloads.
func entropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	var counts [256]int
	for i := 0; i < len(s); i++ {
		counts[s[i]]++
	}
	total := float64(len(s))
	h := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		h -= p * math.Log2(p)
	}
	return h
}

var scriptAgents = []string{"curl", "wget", "python", "go-http-client", "libwww", "sqlmap", "nikto", "java/"}
var browserAgents = []string{"mozilla", "chrome", "safari", "firefox", "edge"}

func userAgentClass(ua string) (empty, script, browser float64) {
	lower := strings.ToLower(strings.TrimSpace(ua))
	if lower == "" || lower == "unknown" {
		return 1, 0, 0
	}
	for _, marker := range scriptAgents {
		if strings.Contains(lower, marker) {
			return 0, 1, 0
		}
	}
	for _, marker := range browserAgents {
		if strings.Contains(lower, marker) {
			return 0, 0, 1
		}
	}
	return 0, 0, 0
}

func methodOneHot(method string) (get, post, put, del, other float64) {
	switch strings.ToUpper(strings.TrimSpace(method)) {
	case "GET", "HEAD":
		return 1, 0, 0, 0, 0
	case "POST":
		return 0, 1, 0, 0, 0
	case "PUT", "PATCH":
		return 0, 0, 1, 0, 0
	case "DELETE":
		return 0, 0, 0, 1, 0
	default:
		return 0, 0, 0, 0, 1
	}
}

func max64(v, floor int64) int64 {
	if v < floor {
		return floor
	}
	return v
}
