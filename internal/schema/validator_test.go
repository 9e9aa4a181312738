package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRaw() map[string]any {
	return map[string]any{
		"id":              "us",
		"countryName":     "United States",
		"countryCode":     "US",
		"postalCodeCount": json.Number("41692"),
		"region":          "North America",
		"status":          "active",
		"sampleFileName":  "us-postal-codes-sample.csv",
	}
}

func fields(errs []FieldError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func TestValidateRecord_Valid(t *testing.T) {
	res := ValidateRecord(validRaw())
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
}

func TestValidateRecord_MissingFieldsAllReported(t *testing.T) {
	res := ValidateRecord(map[string]any{})
	require.False(t, res.IsValid)
	assert.ElementsMatch(t,
		[]string{"id", "countryName", "countryCode", "postalCodeCount", "region", "status", "sampleFileName"},
		fields(res.Errors),
	)
	for _, e := range res.Errors {
		assert.Equal(t, "is required", e.Message)
	}
}

func TestValidateRecord_EachMissingFieldErrors(t *testing.T) {
	for field := range validRaw() {
		t.Run(field, func(t *testing.T) {
			raw := validRaw()
			delete(raw, field)
			res := ValidateRecord(raw)
			require.False(t, res.IsValid)
			assert.Contains(t, res.ErrorStrings(), field+": is required")
		})
	}
}

func TestValidateRecord_WrongTypes(t *testing.T) {
	raw := validRaw()
	raw["id"] = 42
	raw["postalCodeCount"] = "many"
	res := ValidateRecord(raw)
	require.False(t, res.IsValid)
	assert.Contains(t, res.ErrorStrings(), "id: must be a string")
	assert.Contains(t, res.ErrorStrings(), "postalCodeCount: must be a number")
}

func TestValidateRecord_NotAnObject(t *testing.T) {
	res := ValidateRecord([]any{"us"})
	assert.False(t, res.IsValid)
	assert.Equal(t, []string{"record must be an object"}, res.ErrorStrings())
}

func TestValidateRecord_PostalCodeCount(t *testing.T) {
	tests := []struct {
		name        string
		value       any
		valid       bool
		wantWarning bool
	}{
		{name: "zero", value: json.Number("0"), valid: false},
		{name: "negative", value: json.Number("-5"), valid: false},
		{name: "one", value: json.Number("1"), valid: true},
		{name: "fraction", value: json.Number("1.5"), valid: false},
		{name: "float integer", value: float64(300), valid: true},
		{name: "at ceiling", value: int64(10_000_000), valid: true},
		{name: "above ceiling", value: json.Number("10000001"), valid: true, wantWarning: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			raw["postalCodeCount"] = tt.value
			res := ValidateRecord(raw)
			assert.Equal(t, tt.valid, res.IsValid, res.ErrorStrings())
			if tt.wantWarning {
				assert.Equal(t, []string{"postalCodeCount"}, fields(res.Warnings))
			} else {
				assert.Empty(t, res.Warnings)
			}
		})
	}
}

func TestValidateRecord_Status(t *testing.T) {
	raw := validRaw()
	raw["status"] = "bogus"
	res := ValidateRecord(raw)
	require.False(t, res.IsValid)
	assert.Equal(t, []string{"status: must be one of active, inactive, coming-soon"}, res.ErrorStrings())
}

func TestValidateRecord_PatternsAndLengths(t *testing.T) {
	raw := validRaw()
	raw["id"] = "US_1"
	raw["countryCode"] = "usa"
	raw["countryName"] = "X"
	raw["region"] = "E"
	raw["sampleFileName"] = "us.xlsx"
	res := ValidateRecord(raw)
	require.False(t, res.IsValid)
	assert.ElementsMatch(t, []string{"id", "countryCode", "countryName", "region", "sampleFileName"}, fields(res.Errors))
}

func TestValidateRecord_SoftLengthCeilingsWarn(t *testing.T) {
	raw := validRaw()
	raw["countryName"] = strings.Repeat("a", MaxCountryNameLength+1)
	raw["region"] = strings.Repeat("b", MaxRegionLength+1)
	res := ValidateRecord(raw)
	assert.True(t, res.IsValid)
	assert.ElementsMatch(t, []string{"countryName", "region"}, fields(res.Warnings))
}

func TestValidateRecord_UnconventionalSampleNameWarns(t *testing.T) {
	raw := validRaw()
	raw["sampleFileName"] = "united-states.csv"
	res := ValidateRecord(raw)
	assert.True(t, res.IsValid)
	assert.Equal(t, []string{"sampleFileName: expected us-postal-codes-sample.csv"}, res.WarningStrings())
}

func collection(entries ...any) map[string]any {
	return map[string]any{
		"datasets": entries,
		"metadata": map[string]any{
			"lastUpdated":    "2024-01-15",
			"version":        "1.2.0",
			"totalCountries": json.Number(itoa(len(entries))),
		},
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestValidateCollection_Valid(t *testing.T) {
	fr := validRaw()
	fr["id"], fr["countryCode"], fr["sampleFileName"] = "fr", "FR", "fr-postal-codes-sample.csv"
	res := ValidateCollection(collection(validRaw(), fr))
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Warnings)
}

func TestValidateCollection_DuplicateIDIsError(t *testing.T) {
	res := ValidateCollection(collection(validRaw(), validRaw()))
	require.False(t, res.IsValid)
	assert.Equal(t, []string{"datasets[1].id"}, fields(res.Errors))
	assert.Equal(t, []string{"datasets[1].countryCode"}, fields(res.Warnings))
}

func TestValidateCollection_DuplicateCountryCodeIsWarning(t *testing.T) {
	other := validRaw()
	other["id"] = "us-territories"
	res := ValidateCollection(collection(validRaw(), other))
	assert.True(t, res.IsValid)
	assert.Equal(t, []string{"datasets[1].countryCode"}, fields(res.Warnings))

	assert.True(t, ValidateRecord(validRaw()).IsValid)
	assert.True(t, ValidateRecord(other).IsValid)
}

func TestValidateCollection_EnvelopeShape(t *testing.T) {
	res := ValidateCollection("nope")
	assert.False(t, res.IsValid)

	res = ValidateCollection(map[string]any{"metadata": map[string]any{}})
	assert.False(t, res.IsValid)
	assert.Contains(t, res.ErrorStrings(), "datasets: is required")

	res = ValidateCollection(map[string]any{"datasets": "x"})
	assert.Contains(t, res.ErrorStrings(), "datasets: must be an array")
}

func TestValidateCollection_EmptyIsWarning(t *testing.T) {
	res := ValidateCollection(collection())
	assert.True(t, res.IsValid)
	assert.Equal(t, []string{"datasets: collection is empty"}, res.WarningStrings())
}

func TestValidateCollection_LenientMetadata(t *testing.T) {
	c := collection(validRaw())
	c["metadata"] = map[string]any{
		"lastUpdated":    "yesterday",
		"version":        "one",
		"totalCountries": json.Number("7"),
	}
	res := ValidateCollection(c)
	assert.True(t, res.IsValid)
	assert.ElementsMatch(t,
		[]string{"metadata.lastUpdated", "metadata.version", "metadata.totalCountries"},
		fields(res.Warnings),
	)

	delete(c, "metadata")
	res = ValidateCollection(c)
	assert.True(t, res.IsValid)
	assert.Equal(t, []string{"metadata: is missing"}, res.WarningStrings())
}

func TestDecodeDocument(t *testing.T) {
	raw, err := DecodeDocument([]byte(`{"datasets":[{"postalCodeCount": 12}]}`))
	require.NoError(t, err)
	entries := Entries(raw)
	require.Len(t, entries, 1)
	assert.Equal(t, json.Number("12"), entries[0].(map[string]any)["postalCodeCount"])

	_, err = DecodeDocument([]byte(`{"datasets":`))
	assert.Error(t, err)

	_, err = DecodeDocument([]byte(`{} {}`))
	assert.Error(t, err)
}
