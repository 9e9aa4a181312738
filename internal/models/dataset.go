package models

import (
	"sort"
	"strings"
)

type DatasetStatus string

const (
	DatasetStatusActive     DatasetStatus = "active"
	DatasetStatusInactive   DatasetStatus = "inactive"
	DatasetStatusComingSoon DatasetStatus = "coming-soon"
)

// DatasetStatuses lists the accepted statuses in display order.
var DatasetStatuses = []DatasetStatus{
	DatasetStatusActive,
	DatasetStatusInactive,
	DatasetStatusComingSoon,
}

func (s DatasetStatus) Valid() bool {
	switch s {
	case DatasetStatusActive, DatasetStatusInactive, DatasetStatusComingSoon:
		return true
	default:
		return false
	}
}

// DatasetRecord describes one country's postal-code dataset.
type DatasetRecord struct {
	ID              string        `json:"id"`
	CountryName     string        `json:"countryName"`
	CountryCode     string        `json:"countryCode"`
	PostalCodeCount int64         `json:"postalCodeCount"`
	Region          string        `json:"region"`
	Status          DatasetStatus `json:"status"`
	SampleFileName  string        `json:"sampleFileName"`
}

func (r DatasetRecord) IsActive() bool {
	return r.Status == DatasetStatusActive
}

type CollectionMetadata struct {
	LastUpdated    string `json:"lastUpdated"`
	Version        string `json:"version"`
	TotalCountries int    `json:"totalCountries"`
}

// DatasetCollection is the envelope of the collection document.
type DatasetCollection struct {
	Datasets []DatasetRecord    `json:"datasets"`
	Metadata CollectionMetadata `json:"metadata"`
}

// FileExistenceStatus maps a sample file name to whether it can be fetched.
type FileExistenceStatus map[string]bool

// Available reports whether the sample for name was probed and found.
func (s FileExistenceStatus) Available(name string) bool {
	if s == nil {
		return false
	}
	return s[name]
}

// Filter selects records. Empty fields match everything.
type Filter struct {
	Region string
	Status DatasetStatus
	IDs    []string
}

func (f Filter) Match(r DatasetRecord) bool {
	if f.Region != "" && !strings.EqualFold(f.Region, r.Region) {
		return false
	}
	if f.Status != "" && f.Status != r.Status {
		return false
	}
	if len(f.IDs) > 0 {
		found := false
		for _, id := range f.IDs {
			if id == r.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func FilterRecords(records []DatasetRecord, f Filter) []DatasetRecord {
	out := make([]DatasetRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Regions returns the distinct regions of records, sorted.
func Regions(records []DatasetRecord) []string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0)
	for _, r := range records {
		if _, ok := seen[r.Region]; ok {
			continue
		}
		seen[r.Region] = struct{}{}
		out = append(out, r.Region)
	}
	sort.Strings(out)
	return out
}

func FindByID(records []DatasetRecord, id string) (DatasetRecord, bool) {
	for _, r := range records {
		if r.ID == id {
			return r, true
		}
	}
	return DatasetRecord{}, false
}

// SampleFileNames returns the sample file names of records in order.
func SampleFileNames(records []DatasetRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.SampleFileName)
	}
	return out
}
