// Package importer reads backlink placements from CSV and Excel uploads.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/lukemcguire/backlinkwatch/backlink"
)

// Column names expected in the header row.
const (
	ColLiveLink     = "live_link"
	ColTargetURL    = "target_url"
	ColTargetAnchor = "target_anchor"

	headerRowIndex = 1 // rows are 1-based, header is row 1
)

// ErrMissingColumn is returned when the header row lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// Row is one parsed data row.
type Row struct {
	Row          int // source row number, for error reporting
	LiveLink     string
	TargetURL    string
	TargetAnchor string
}

// ImportError represents a validation error for a specific row.
type ImportError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// Result holds the accepted records and the rejected rows of one import.
type Result struct {
	Records []backlink.Record `json:"-"`
	Errors  []ImportError     `json:"errors"`
}

// ValidateRow validates a single row and returns an error message or empty string.
func ValidateRow(row Row) string {
	if strings.TrimSpace(row.LiveLink) == "" {
		return "live_link is required"
	}
	if strings.TrimSpace(row.TargetURL) == "" {
		return "target_url is required"
	}
	if strings.TrimSpace(row.TargetAnchor) == "" {
		return "target_anchor is required"
	}
	return ""
}

// ReadCSV parses a CSV document whose header names the live_link, target_url
// and target_anchor columns in any order. Extra columns are ignored.
func ReadCSV(r io.Reader) (Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	all, err := reader.ReadAll()
	if err != nil {
		return Result{}, fmt.Errorf("read csv: %w", err)
	}
	return parseRows(all)
}

// ReadXLSX parses the first sheet of an Excel workbook laid out like the CSV
// template.
func ReadXLSX(r io.Reader) (Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Result{}, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Result{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return parseRows(rows)
}

func parseRows(rows [][]string) (Result, error) {
	if len(rows) == 0 {
		return Result{}, fmt.Errorf("%w: empty document", ErrMissingColumn)
	}

	cols, err := headerIndex(rows[0])
	if err != nil {
		return Result{}, err
	}

	res := Result{Records: []backlink.Record{}, Errors: []ImportError{}}
	for i, fields := range rows[1:] {
		if blank(fields) {
			continue
		}
		row := Row{
			Row:          headerRowIndex + 1 + i,
			LiveLink:     cell(fields, cols[ColLiveLink]),
			TargetURL:    cell(fields, cols[ColTargetURL]),
			TargetAnchor: cell(fields, cols[ColTargetAnchor]),
		}
		if msg := ValidateRow(row); msg != "" {
			res.Errors = append(res.Errors, ImportError{Row: row.Row, Error: msg})
			continue
		}
		res.Records = append(res.Records, backlink.New(row.LiveLink, row.TargetURL, row.TargetAnchor))
	}
	return res, nil
}

func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}

	var missing []string
	for _, want := range []string{ColLiveLink, ColTargetURL, ColTargetAnchor} {
		if _, ok := cols[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return cols, nil
}

func cell(fields []string, idx int) string {
	if idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// templateRows are the sample placements written by WriteTemplate.
var templateRows = [][]string{
	{ColLiveLink, ColTargetURL, ColTargetAnchor},
	{"https://example.com/blog/post1", "https://mysite.com", "My Site"},
	{"https://example.com/resources", "https://mysite.com/products", "Our Products"},
	{"https://example.com/partners", "https://mysite.com/services", "Professional Services"},
}

// WriteTemplate writes a sample CSV upload.
func WriteTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(templateRows); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}

// WriteXLSXTemplate writes the sample upload as a workbook.
func WriteXLSXTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Backlinks"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for i, row := range templateRows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cellName, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
