package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/models"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/schema"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

type Formatter struct {
	Format Format
}

func NewFormatter(format Format) *Formatter {
	return &Formatter{Format: format}
}

// ParseFormat accepts "text", "json" or an empty string (text).
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.TrimSpace(raw)); f {
	case "":
		return FormatText, nil
	case FormatJSON, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("invalid --format: %q (supported: text|json)", raw)
	}
}

func (f *Formatter) format() Format {
	if f != nil && f.Format != "" {
		return f.Format
	}
	return FormatText
}

func (f *Formatter) render(v any, text func() string) (string, error) {
	switch format := f.format(); format {
	case FormatJSON:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil
	case FormatText:
		return text(), nil
	default:
		return "", fmt.Errorf("unsupported format: %q", format)
	}
}

// DatasetRow is a record plus the availability of its sample file. SampleAvailable is
// nil when availability was not checked.
type DatasetRow struct {
	models.DatasetRecord
	SampleAvailable *bool `json:"sampleAvailable,omitempty"`
}

func Rows(records []models.DatasetRecord, status models.FileExistenceStatus) []DatasetRow {
	rows := make([]DatasetRow, 0, len(records))
	for _, r := range records {
		row := DatasetRow{DatasetRecord: r}
		if status != nil {
			ok := status.Available(r.SampleFileName)
			row.SampleAvailable = &ok
		}
		rows = append(rows, row)
	}
	return rows
}

// NoDatasets is the text rendering of an empty selection, distinct from any
// load error.
const NoDatasets = "No datasets found."

func (f *Formatter) FormatDatasets(rows []DatasetRow) (string, error) {
	if rows == nil {
		rows = []DatasetRow{}
	}
	return f.render(rows, func() string {
		if len(rows) == 0 {
			return NoDatasets
		}
		var buf bytes.Buffer
		tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCODE\tCOUNTRY\tREGION\tSTATUS\tPOSTAL CODES\tSAMPLE")
		for _, r := range rows {
			sample := "-"
			if r.SampleAvailable != nil {
				sample = "missing"
				if *r.SampleAvailable {
					sample = r.SampleFileName
				}
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				r.ID, r.CountryCode, r.CountryName, r.Region, r.Status, r.PostalCodeCount, sample)
		}
		_ = tw.Flush()
		return strings.TrimRight(buf.String(), "\n")
	})
}

func (f *Formatter) FormatRegions(regions []string) (string, error) {
	if regions == nil {
		regions = []string{}
	}
	return f.render(regions, func() string {
		return strings.Join(regions, "\n")
	})
}

type FileStatusEntry struct {
	File      string `json:"file"`
	Available bool   `json:"available"`
}

func (f *Formatter) FormatFileStatus(status models.FileExistenceStatus) (string, error) {
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]FileStatusEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, FileStatusEntry{File: name, Available: status[name]})
	}

	return f.render(entries, func() string {
		lines := make([]string, 0, len(entries))
		for _, e := range entries {
			state := "missing"
			if e.Available {
				state = "available"
			}
			lines = append(lines, fmt.Sprintf("%s %s", state, e.File))
		}
		return strings.Join(lines, "\n")
	})
}

// ValidationReport summarizes one validation run over a collection document.
type ValidationReport struct {
	Source     string              `json:"source"`
	Collection schema.Result       `json:"collection"`
	Valid      int                 `json:"valid"`
	Rejected   []schema.Rejected   `json:"rejected"`
	Warnings   []schema.FieldError `json:"warnings"`
}

// OK reports whether the collection is usable: no collection errors and at
// least one valid record.
func (r ValidationReport) OK() bool {
	return r.Collection.IsValid && r.Valid > 0
}

func (f *Formatter) FormatValidation(report ValidationReport) (string, error) {
	return f.render(report, func() string {
		var b strings.Builder
		verdict := "OK"
		if !report.OK() {
			verdict = "INVALID"
		}
		fmt.Fprintf(&b, "%s %s valid=%d rejected=%d warnings=%d",
			verdict, report.Source, report.Valid, len(report.Rejected), len(report.Collection.Warnings)+len(report.Warnings))
		for _, e := range report.Collection.Errors {
			fmt.Fprintf(&b, "\nerror: %s", e)
		}
		for _, rej := range report.Rejected {
			for _, e := range rej.Errors {
				fmt.Fprintf(&b, "\nrejected datasets[%d] %s: %s", rej.Index, rej.ID, e)
			}
		}
		for _, w := range report.Collection.Warnings {
			fmt.Fprintf(&b, "\nwarning: %s", w)
		}
		for _, w := range report.Warnings {
			fmt.Fprintf(&b, "\nwarning: %s", w)
		}
		return b.String()
	})
}

// DownloadResult lists written files and the samples skipped because their
// existence check failed.
type DownloadResult struct {
	Files   []string `json:"files"`
	Missing []string `json:"missing,omitempty"`
}

func (f *Formatter) FormatDownloads(res DownloadResult) (string, error) {
	if res.Files == nil {
		res.Files = []string{}
	}
	return f.render(res, func() string {
		out := fmt.Sprintf("Files=%s", strings.Join(res.Files, ","))
		if len(res.Missing) > 0 {
			out += fmt.Sprintf("\nMissing=%s", strings.Join(res.Missing, ","))
		}
		return out
	})
}
