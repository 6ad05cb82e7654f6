// Package parser turns a vision model's loosely formatted answer into raw candidates.
//
// The answer should be a JSON array of {element_type, description, bbox, confidence}
// records but often arrives wrapped in markdown fences, surrounded by prose, or with
// unescaped quotes inside descriptions. Parse runs a fixed pipeline of text repairs
// and stops at the first one that decodes.
package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/adverant/nexus/ui-locator/internal/element"
	"github.com/adverant/nexus/ui-locator/internal/errors"
)

// DefaultConfidence is used when a record has no numeric confidence.
const DefaultConfidence = 0.8

// Record is one decoded object from the vision answer.
type Record map[string]interface{}

// Parse decodes raw into candidates. Records without a usable bbox are dropped; an
// answer that cannot be decoded at all yields a ParseError.
func Parse(raw string) ([]element.RawCandidate, error) {
	records, err := DecodeRecords(raw)
	if err != nil {
		return nil, err
	}

	candidates := make([]element.RawCandidate, 0, len(records))
	for _, rec := range records {
		if c, ok := rec.Candidate(); ok {
			candidates = append(candidates, c)
		}
	}
	return candidates, nil
}

// DecodeRecords runs the repair pipeline and returns every decoded object, before any
// bbox filtering.
func DecodeRecords(raw string) ([]Record, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, errors.NewParseError(raw, fmt.Errorf("empty response"))
	}

	records, err := decode(text)
	if err == nil {
		return records, nil
	}

	body := ExtractJSONArray(StripCodeFence(text))
	steps := []func(string) string{
		func(s string) string { return s },
		RepairQuotes,
		RepairQuotesScan,
	}
	for _, step := range steps {
		records, err = decode(step(body))
		if err == nil {
			return records, nil
		}
	}

	return nil, errors.NewParseError(raw, err)
}

func decode(text string) ([]Record, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}

	switch data := v.(type) {
	case []interface{}:
		records := make([]Record, 0, len(data))
		for _, item := range data {
			if obj, ok := item.(map[string]interface{}); ok {
				records = append(records, Record(obj))
			}
		}
		if len(data) > 0 && len(records) == 0 {
			return nil, fmt.Errorf("JSON array holds no objects")
		}
		return records, nil
	case map[string]interface{}:
		return []Record{Record(data)}, nil
	default:
		return nil, fmt.Errorf("expected JSON array or object, got %T", v)
	}
}

// Candidate converts the record, applying defaults. ok is false when bbox does not
// start with four numbers.
func (r Record) Candidate() (element.RawCandidate, bool) {
	bbox, ok := r.bbox()
	if !ok {
		return element.RawCandidate{}, false
	}

	return element.RawCandidate{
		ElementType: r.stringOr("element_type", element.TypeUnknown),
		Description: r.stringOr("description", ""),
		BBox:        bbox,
		Confidence:  r.confidence(),
	}, true
}

func (r Record) stringOr(key, def string) string {
	if s, ok := r[key].(string); ok && s != "" {
		return s
	}
	return def
}

func (r Record) confidence() float64 {
	c, ok := number(r["confidence"])
	if !ok {
		return DefaultConfidence
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func (r Record) bbox() (element.BBox, bool) {
	values, ok := r["bbox"].([]interface{})
	if !ok || len(values) < 4 {
		return element.BBox{}, false
	}

	var coords [4]int
	for i := 0; i < 4; i++ {
		f, ok := number(values[i])
		if !ok {
			return element.BBox{}, false
		}
		coords[i] = int(f)
	}
	return element.BBox{X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3]}, true
}

// number accepts JSON numbers and numeric strings.
func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
