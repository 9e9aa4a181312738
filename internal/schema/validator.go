// Package schema validates untyped collection documents against the dataset
// record rules. Every rule is evaluated so one call reports every problem.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/models"
)

const (
	MinCountryNameLength = 2
	MaxCountryNameLength = 100
	MinRegionLength      = 2
	MaxRegionLength      = 50

	// Counts above this are accepted with a warning.
	MaxPostalCodeCount = 10_000_000

	SampleFileSuffix = ".csv"
)

var (
	idPattern          = regexp.MustCompile(`^[a-z0-9-]+$`)
	countryCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)
	semverPattern      = regexp.MustCompile(`^v?\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?$`)
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

type Result struct {
	IsValid  bool         `json:"isValid"`
	Errors   []FieldError `json:"errors"`
	Warnings []FieldError `json:"warnings"`
}

func (r *Result) addError(field, format string, args ...any) {
	r.Errors = append(r.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) addWarning(field, format string, args ...any) {
	r.Warnings = append(r.Warnings, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r Result) finish() Result {
	r.IsValid = len(r.Errors) == 0
	return r
}

// ErrorStrings renders errors as "field: message".
func (r Result) ErrorStrings() []string {
	return fieldStrings(r.Errors)
}

func (r Result) WarningStrings() []string {
	return fieldStrings(r.Warnings)
}

func fieldStrings(in []FieldError) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		out = append(out, e.String())
	}
	return out
}

// DecodeDocument decodes a JSON document keeping numbers exact.
func DecodeDocument(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return out, nil
}

// ValidateRecord checks one raw record.
func ValidateRecord(raw any) Result {
	var res Result
	m, ok := raw.(map[string]any)
	if !ok {
		res.addError("", "record must be an object")
		return res.finish()
	}

	if id, ok := stringField(m, "id", &res); ok {
		if !idPattern.MatchString(id) {
			res.addError("id", "must match pattern [a-z0-9-]+")
		}
	}

	if name, ok := stringField(m, "countryName", &res); ok {
		n := utf8.RuneCountInString(strings.TrimSpace(name))
		if n < MinCountryNameLength {
			res.addError("countryName", "must be at least %d characters", MinCountryNameLength)
		} else if n > MaxCountryNameLength {
			res.addWarning("countryName", "is longer than %d characters", MaxCountryNameLength)
		}
	}

	if code, ok := stringField(m, "countryCode", &res); ok {
		if !countryCodePattern.MatchString(code) {
			res.addError("countryCode", "must be exactly 2 uppercase letters")
		}
	}

	if v, present := m["postalCodeCount"]; !present || v == nil {
		res.addError("postalCodeCount", "is required")
	} else {
		n, isNumber, isInteger := integerValue(v)
		switch {
		case !isNumber:
			res.addError("postalCodeCount", "must be a number")
		case !isInteger:
			res.addError("postalCodeCount", "must be an integer")
		case n <= 0:
			res.addError("postalCodeCount", "must be a positive integer")
		case n > MaxPostalCodeCount:
			res.addWarning("postalCodeCount", "%d exceeds %d, check the source", n, MaxPostalCodeCount)
		}
	}

	if region, ok := stringField(m, "region", &res); ok {
		n := utf8.RuneCountInString(strings.TrimSpace(region))
		if n < MinRegionLength {
			res.addError("region", "must be at least %d characters", MinRegionLength)
		} else if n > MaxRegionLength {
			res.addWarning("region", "is longer than %d characters", MaxRegionLength)
		}
	}

	if status, ok := stringField(m, "status", &res); ok {
		if !models.DatasetStatus(status).Valid() {
			res.addError("status", "must be one of %s", statusList())
		}
	}

	if file, ok := stringField(m, "sampleFileName", &res); ok {
		if !strings.HasSuffix(file, SampleFileSuffix) {
			res.addError("sampleFileName", "must end with %s", SampleFileSuffix)
		} else if code, _ := m["countryCode"].(string); countryCodePattern.MatchString(code) {
			want := ExpectedSampleFileName(code)
			if file != want {
				res.addWarning("sampleFileName", "expected %s", want)
			}
		}
	}

	return res.finish()
}

// ExpectedSampleFileName returns the conventional sample name for a country code.
func ExpectedSampleFileName(countryCode string) string {
	return strings.ToLower(countryCode) + "-postal-codes-sample" + SampleFileSuffix
}

// ValidateCollection checks the envelope. Record field rules are left to
// ValidateRecord so that one bad record does not fail the whole collection;
// only duplicate ids are fatal here.
func ValidateCollection(raw any) Result {
	var res Result
	m, ok := raw.(map[string]any)
	if !ok {
		res.addError("collection", "must be an object")
		return res.finish()
	}

	var entries []any
	switch v := m["datasets"].(type) {
	case nil:
		res.addError("datasets", "is required")
	case []any:
		entries = v
		if len(entries) == 0 {
			res.addWarning("datasets", "collection is empty")
		}
	default:
		res.addError("datasets", "must be an array")
	}

	seenIDs := make(map[string]int, len(entries))
	seenCodes := make(map[string]int, len(entries))
	for i, entry := range entries {
		rec, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := rec["id"].(string); ok && id != "" {
			if first, dup := seenIDs[id]; dup {
				res.addError(fmt.Sprintf("datasets[%d].id", i), "duplicate id %q (first seen at index %d)", id, first)
			} else {
				seenIDs[id] = i
			}
		}
		if code, ok := rec["countryCode"].(string); ok && code != "" {
			if first, dup := seenCodes[code]; dup {
				res.addWarning(fmt.Sprintf("datasets[%d].countryCode", i), "duplicate country code %q (first seen at index %d)", code, first)
			} else {
				seenCodes[code] = i
			}
		}
	}

	validateMetadata(m["metadata"], entries, m["datasets"] != nil, &res)
	return res.finish()
}

func validateMetadata(raw any, entries []any, haveDatasets bool, res *Result) {
	if raw == nil {
		res.addWarning("metadata", "is missing")
		return
	}
	meta, ok := raw.(map[string]any)
	if !ok {
		res.addWarning("metadata", "must be an object")
		return
	}

	switch v := meta["lastUpdated"].(type) {
	case nil:
		res.addWarning("metadata.lastUpdated", "is missing")
	case string:
		if !isISODate(v) {
			res.addWarning("metadata.lastUpdated", "must be an ISO 8601 date")
		}
	default:
		res.addWarning("metadata.lastUpdated", "must be a string")
	}

	switch v := meta["version"].(type) {
	case nil:
		res.addWarning("metadata.version", "is missing")
	case string:
		if !semverPattern.MatchString(v) {
			res.addWarning("metadata.version", "must be a semantic version")
		}
	default:
		res.addWarning("metadata.version", "must be a string")
	}

	total, present := meta["totalCountries"]
	if !present || total == nil {
		res.addWarning("metadata.totalCountries", "is missing")
		return
	}
	n, _, isInteger := integerValue(total)
	if !isInteger {
		res.addWarning("metadata.totalCountries", "must be an integer")
		return
	}
	if haveDatasets && n != int64(len(entries)) {
		res.addWarning("metadata.totalCountries", "declares %d but collection has %d datasets", n, len(entries))
	}
}

func isISODate(v string) bool {
	layouts := []string{"2006-01-02", time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05"}
	for _, layout := range layouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

func stringField(m map[string]any, field string, res *Result) (string, bool) {
	v, present := m[field]
	if !present || v == nil {
		res.addError(field, "is required")
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		res.addError(field, "must be a string")
		return "", false
	}
	return s, true
}

// integerValue accepts json.Number, float64 and Go integer kinds.
func integerValue(v any) (n int64, isNumber bool, isInteger bool) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true, true
		}
		f, err := x.Float64()
		if err != nil {
			return 0, false, false
		}
		return floatInteger(f)
	case float64:
		return floatInteger(x)
	case float32:
		return floatInteger(float64(x))
	case int:
		return int64(x), true, true
	case int32:
		return int64(x), true, true
	case int64:
		return x, true, true
	default:
		return 0, false, false
	}
}

func floatInteger(f float64) (int64, bool, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, true, false
	}
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, true, false
	}
	return int64(f), true, true
}

func statusList() string {
	names := make([]string, 0, len(models.DatasetStatuses))
	for _, s := range models.DatasetStatuses {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
