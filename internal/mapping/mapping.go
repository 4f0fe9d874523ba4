package mapping

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Cloud identifies which per-cloud appendix column applies to a run.
type Cloud string

// Supported cloud selectors. The empty Cloud means no appendix is applied
// regardless of what the mapping entries contain.
const (
	CloudAWS   Cloud = "aws"
	CloudGCP   Cloud = "gcp"
	CloudAzure Cloud = "azure"
)

// ParseCloud validates a cloud selector. An empty string is valid and means
// "no cloud selected".
func ParseCloud(s string) (Cloud, error) {
	switch Cloud(strings.ToLower(s)) {
	case "", CloudAWS, CloudGCP, CloudAzure:
		return Cloud(strings.ToLower(s)), nil
	default:
		return "", fmt.Errorf("invalid cloud %q (use: aws, gcp, azure)", s)
	}
}

// Entry holds the canonical description for one variable, plus optional
// per-cloud appendix text. A cloud absent from Appendix has no extra text.
type Entry struct {
	Name        string
	Description string
	Appendix    map[Cloud]string
}

// Expected returns the description this entry prescribes for the given
// cloud: the canonical text, with the cloud appendix appended after a single
// space when one exists.
func (e Entry) Expected(cloud Cloud) string {
	if cloud == "" {
		return e.Description
	}
	if appendix, ok := e.Appendix[cloud]; ok {
		return e.Description + " " + appendix
	}
	return e.Description
}

// Table is the resolved variable-name → Entry lookup.
type Table struct {
	entries map[string]Entry
}

// Get returns the entry for a variable name.
func (t *Table) Get(name string) (Entry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

// Len returns the number of entries in the table.
func (t *Table) Len() int {
	return len(t.entries)
}

// ParseError reports a malformed mapping table row. It is fatal: a table
// that fails to parse must abort the run before any patching happens.
type ParseError struct {
	Row int // 1-based data row number
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("mapping row %d: %s", e.Row, e.Msg)
}

// ParseTSV reads a tab-separated mapping table. Columns: variable name,
// canonical description, then optional AWS, GCP, and Azure appendix columns.
// Rows whose second column is "description" (any case) are header rows and
// skipped. Duplicate variable names are rejected rather than overwritten.
func ParseTSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	entries := make(map[string]Entry)
	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading mapping table: %w", err)
		}
		row++

		if len(rec) < 2 {
			return nil, &ParseError{Row: row, Msg: fmt.Sprintf("expected at least 2 columns, got %d", len(rec))}
		}
		if strings.EqualFold(strings.TrimSpace(rec[1]), "description") {
			continue
		}

		name := rec[0]
		if name == "" {
			return nil, &ParseError{Row: row, Msg: "empty variable name"}
		}
		if _, exists := entries[name]; exists {
			return nil, &ParseError{Row: row, Msg: fmt.Sprintf("duplicate variable %q", name)}
		}

		entry := Entry{
			Name:        name,
			Description: rec[1],
			Appendix:    make(map[Cloud]string),
		}
		setAppendix(&entry, CloudAWS, column(rec, 2))
		setAppendix(&entry, CloudGCP, column(rec, 3))
		setAppendix(&entry, CloudAzure, column(rec, 4))

		entries[name] = entry
	}

	return &Table{entries: entries}, nil
}

// setAppendix records a cloud appendix unless the cell is empty or
// whitespace-only, which counts as absent.
func setAppendix(e *Entry, cloud Cloud, cell string) {
	if strings.TrimSpace(cell) == "" {
		return
	}
	e.Appendix[cloud] = cell
}

func column(rec []string, idx int) string {
	if idx < len(rec) {
		return rec[idx]
	}
	return ""
}
