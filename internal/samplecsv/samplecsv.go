// Package samplecsv reads and writes the sample file format published next to
// each dataset.
package samplecsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	internalerrors "github.com/dhgavali-gis/get-postalcode-datacenter/internal/errors"
)

var Header = []string{
	"PostalCode", "PlaceName", "AdminName1", "AdminName2", "AdminName3",
	"Latitude", "Longitude", "Timezone",
}

var coordinatePattern = regexp.MustCompile(`^-?\d{1,3}\.\d{4}$`)

type Row struct {
	PostalCode string  `json:"postalCode"`
	PlaceName  string  `json:"placeName"`
	AdminName1 string  `json:"adminName1"`
	AdminName2 string  `json:"adminName2"`
	AdminName3 string  `json:"adminName3"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Timezone   string  `json:"timezone"`
}

// Parse reads a sample file. The header must match exactly and coordinates
// must carry four decimal places.
func Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, internalerrors.New(internalerrors.ErrEmptyFile, "sample file has no header", nil)
		}
		return nil, internalerrors.New(internalerrors.ErrParse, "read sample header failed", err)
	}
	if len(head) > 0 {
		head[0] = strings.TrimPrefix(head[0], "\ufeff")
	}
	if strings.Join(head, ",") != strings.Join(Header, ",") {
		return nil, internalerrors.New(internalerrors.ErrParse, fmt.Sprintf("unexpected sample header %q", strings.Join(head, ",")), nil)
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, internalerrors.New(internalerrors.ErrParse, fmt.Sprintf("read sample line %d failed", line), err)
		}
		row, err := parseRow(rec)
		if err != nil {
			return nil, internalerrors.New(internalerrors.ErrParse, fmt.Sprintf("sample line %d", line), err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(rec []string) (Row, error) {
	if strings.TrimSpace(rec[0]) == "" {
		return Row{}, fmt.Errorf("PostalCode is required")
	}
	lat, err := parseCoordinate("Latitude", rec[5], 90)
	if err != nil {
		return Row{}, err
	}
	lon, err := parseCoordinate("Longitude", rec[6], 180)
	if err != nil {
		return Row{}, err
	}
	return Row{
		PostalCode: rec[0],
		PlaceName:  rec[1],
		AdminName1: rec[2],
		AdminName2: rec[3],
		AdminName3: rec[4],
		Latitude:   lat,
		Longitude:  lon,
		Timezone:   rec[7],
	}, nil
}

func parseCoordinate(field, raw string, limit float64) (float64, error) {
	if !coordinatePattern.MatchString(raw) {
		return 0, fmt.Errorf("%s %q must be decimal degrees with 4 decimal places", field, raw)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", field, raw, err)
	}
	if v < -limit || v > limit {
		return 0, fmt.Errorf("%s %q out of range", field, raw)
	}
	return v, nil
}

// Write emits rows in the sample file format, header first.
func Write(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, row := range rows {
		rec := []string{
			row.PostalCode, row.PlaceName, row.AdminName1, row.AdminName2, row.AdminName3,
			strconv.FormatFloat(row.Latitude, 'f', 4, 64),
			strconv.FormatFloat(row.Longitude, 'f', 4, 64),
			row.Timezone,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
