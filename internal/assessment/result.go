package assessment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Levels and recommendations the model is asked to use. They are not
// enforced on the returned object.
const (
	LevelLow      = "LOW"
	LevelMedium   = "MEDIUM"
	LevelHigh     = "HIGH"
	LevelCritical = "CRITICAL"

	RecommendAccept           = "ACCEPT"
	RecommendAcceptConditions = "ACCEPT_WITH_CONDITIONS"
	RecommendDecline          = "DECLINE"
)

// Result is a lenient typed view of an assessment. Fields with an
// unexpected JSON type are left at their zero value.
type Result struct {
	Score          float64  `json:"score"`
	Level          string   `json:"level"`
	Risks          []string `json:"risks"`
	Summary        string   `json:"summary"`
	Recommendation string   `json:"recommendation"`
}

// ScoreText formats the score without a trailing ".0" for whole numbers.
func (r Result) ScoreText() string {
	if r.Score == math.Trunc(r.Score) && math.Abs(r.Score) < 1e15 {
		return strconv.FormatInt(int64(r.Score), 10)
	}
	return strconv.FormatFloat(r.Score, 'f', -1, 64)
}

// Assessment is a validated completion. Raw is the sanitized JSON object
// exactly as the model produced it.
type Assessment struct {
	Raw    json.RawMessage
	Result Result
}

var errNotObject = errors.New("completion is not a JSON object")

// decodeObject parses sanitized completion text. Valid JSON that is not an
// object yields errNotObject.
func decodeObject(text string) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, errNotObject
		}
		return nil, fmt.Errorf("parse completion: %w", err)
	}
	if obj == nil {
		return nil, errNotObject
	}
	return obj, nil
}

// hasRequiredFields checks the shape the renderer depends on: a numeric
// score plus truthy level and recommendation values.
func hasRequiredFields(obj map[string]json.RawMessage) bool {
	if !isNumber(obj["score"]) {
		return false
	}
	return truthy(obj["level"]) && truthy(obj["recommendation"])
}

func isNumber(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return false
	}
	// json.Number accepts quoted numeric strings; only bare numbers count.
	return raw[0] != '"'
}

// truthy mirrors a loose presence check: missing, null, false, 0 and ""
// all count as absent.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch string(raw) {
	case "null", "false", `""`:
		return false
	}
	if raw[0] == '"' || raw[0] == '{' || raw[0] == '[' || string(raw) == "true" {
		return true
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return true
	}
	return f != 0
}

// viewOf builds the lenient Result from a decoded object.
func viewOf(obj map[string]json.RawMessage) Result {
	var r Result
	_ = json.Unmarshal(obj["score"], &r.Score)
	r.Level = stringField(obj["level"])
	r.Summary = stringField(obj["summary"])
	r.Recommendation = stringField(obj["recommendation"])

	var items []json.RawMessage
	if err := json.Unmarshal(obj["risks"], &items); err == nil {
		for _, item := range items {
			if s := stringField(item); s != "" {
				r.Risks = append(r.Risks, s)
			}
		}
	}
	return r
}

// stringField returns strings as-is and other scalars in their JSON form.
func stringField(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if raw[0] == '{' || raw[0] == '[' {
		return ""
	}
	return string(raw)
}
