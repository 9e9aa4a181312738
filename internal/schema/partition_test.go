package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/models"
)

func rawFor(code string) map[string]any {
	raw := validRaw()
	raw["id"] = strings.ToLower(code)
	raw["countryCode"] = code
	raw["sampleFileName"] = ExpectedSampleFileName(code)
	return raw
}

func TestPartitionRecords_FiltersInvalidKeepsOrder(t *testing.T) {
	codes := []string{"US", "FR", "DE", "GB", "ES", "IT"}
	entries := make([]any, 0, len(codes))
	for _, c := range codes {
		entries = append(entries, rawFor(c))
	}
	entries[3].(map[string]any)["status"] = "bogus"

	p := PartitionRecords(entries)
	require.Len(t, p.Valid, 5)
	require.Len(t, p.Rejected, 1)

	ids := make([]string, 0, len(p.Valid))
	for _, r := range p.Valid {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"us", "fr", "de", "es", "it"}, ids)

	rej := p.Rejected[0]
	assert.Equal(t, 3, rej.Index)
	assert.Equal(t, "gb", rej.ID)
	require.Len(t, rej.Errors, 1)
	assert.Equal(t, "status: must be one of active, inactive, coming-soon", rej.Errors[0].String())
}

func TestPartitionRecords_ErrorsNameEachField(t *testing.T) {
	bad := rawFor("FR")
	bad["postalCodeCount"] = json.Number("0")
	bad["countryCode"] = "france"
	p := PartitionRecords([]any{rawFor("US"), bad, "not-a-record"})

	require.Len(t, p.Valid, 1)
	require.Len(t, p.Rejected, 2)
	assert.ElementsMatch(t, []string{"postalCodeCount", "countryCode"}, fields(p.Rejected[0].Errors))
	assert.Equal(t, "", p.Rejected[1].ID)
	assert.Equal(t, 2, p.Rejected[1].Index)
}

func TestPartitionRecords_CollectsWarningsOfValid(t *testing.T) {
	big := rawFor("CN")
	big["postalCodeCount"] = json.Number("10000001")
	p := PartitionRecords([]any{big})
	require.Len(t, p.Valid, 1)
	assert.Equal(t, int64(10_000_001), p.Valid[0].PostalCodeCount)
	assert.Equal(t, []string{"datasets[0].postalCodeCount"}, fields(p.Warnings))
}

func TestRecordFromRaw(t *testing.T) {
	rec, res := RecordFromRaw(validRaw())
	require.True(t, res.IsValid)
	assert.Equal(t, models.DatasetRecord{
		ID:              "us",
		CountryName:     "United States",
		CountryCode:     "US",
		PostalCodeCount: 41692,
		Region:          "North America",
		Status:          models.DatasetStatusActive,
		SampleFileName:  "us-postal-codes-sample.csv",
	}, rec)
}

func TestMetadata(t *testing.T) {
	meta := Metadata(collection(validRaw()))
	assert.Equal(t, models.CollectionMetadata{LastUpdated: "2024-01-15", Version: "1.2.0", TotalCountries: 1}, meta)
	assert.Equal(t, models.CollectionMetadata{}, Metadata(nil))
}
