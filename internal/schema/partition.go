package schema

import (
	"fmt"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/models"
)

// Rejected is a record filtered out of a collection, with its reasons.
type Rejected struct {
	Index    int          `json:"index"`
	ID       string       `json:"id,omitempty"`
	Errors   []FieldError `json:"errors"`
	Warnings []FieldError `json:"warnings,omitempty"`
}

// Partitioned holds the outcome of PartitionRecords. Warnings are the
// warnings of accepted records, with fields prefixed by their index.
type Partitioned struct {
	Valid    []models.DatasetRecord
	Rejected []Rejected
	Warnings []FieldError
}

// PartitionRecords validates entries independently and splits them into
// valid records and rejected entries, both in input order.
func PartitionRecords(entries []any) Partitioned {
	out := Partitioned{
		Valid: make([]models.DatasetRecord, 0, len(entries)),
	}
	for i, entry := range entries {
		rec, res := RecordFromRaw(entry)
		if !res.IsValid {
			rej := Rejected{Index: i, Errors: res.Errors, Warnings: res.Warnings}
			if m, ok := entry.(map[string]any); ok {
				rej.ID, _ = m["id"].(string)
			}
			out.Rejected = append(out.Rejected, rej)
			continue
		}
		out.Valid = append(out.Valid, rec)
		for _, w := range res.Warnings {
			out.Warnings = append(out.Warnings, FieldError{
				Field:   fmt.Sprintf("datasets[%d].%s", i, w.Field),
				Message: w.Message,
			})
		}
	}
	return out
}

// RecordFromRaw validates raw and, when valid, converts it to a record.
func RecordFromRaw(raw any) (models.DatasetRecord, Result) {
	res := ValidateRecord(raw)
	if !res.IsValid {
		return models.DatasetRecord{}, res
	}
	m := raw.(map[string]any)
	count, _, _ := integerValue(m["postalCodeCount"])
	return models.DatasetRecord{
		ID:              m["id"].(string),
		CountryName:     m["countryName"].(string),
		CountryCode:     m["countryCode"].(string),
		PostalCodeCount: count,
		Region:          m["region"].(string),
		Status:          models.DatasetStatus(m["status"].(string)),
		SampleFileName:  m["sampleFileName"].(string),
	}, res
}

// Entries returns the datasets array of a decoded collection, or nil.
func Entries(raw any) []any {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	entries, _ := m["datasets"].([]any)
	return entries
}

// Metadata extracts the envelope metadata leniently; malformed fields are
// left at their zero value.
func Metadata(raw any) models.CollectionMetadata {
	var out models.CollectionMetadata
	m, ok := raw.(map[string]any)
	if !ok {
		return out
	}
	meta, ok := m["metadata"].(map[string]any)
	if !ok {
		return out
	}
	out.LastUpdated, _ = meta["lastUpdated"].(string)
	out.Version, _ = meta["version"].(string)
	if n, _, ok := integerValue(meta["totalCountries"]); ok {
		out.TotalCountries = int(n)
	}
	return out
}
