// Package export serializes a filtered or selected subset of one entity
// collection to a transferable byte format. Exporting is a pure function of
// the rows handed in; the file-save collaborator owns the actual write.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// Format selects the output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// Saver receives the finished payload. Implementations write to disk, to an
// object store, or into a download response; the exporter does not care.
type Saver interface {
	Save(name string, data []byte) error
}

// Filename names an export {entityType}-export-{date}.{format}.
func Filename(entityType string, format Format, now time.Time) string {
	return fmt.Sprintf("%s-export-%s.%s", entityType, now.Format("2006-01-02"), format)
}

// Exporter renders rows and hands them to the saver.
type Exporter struct {
	saver Saver
}

// New creates an exporter writing through saver.
func New(saver Saver) *Exporter {
	return &Exporter{saver: saver}
}

// Export renders the rows in the given format and saves them under the
// conventional export filename. Headers name the columns; each row must be
// the same length as headers.
func (e *Exporter) Export(entityType string, headers []string, rows [][]any, format Format, now time.Time) error {
	data, err := Render(headers, rows, format)
	if err != nil {
		return err
	}
	return e.saver.Save(Filename(entityType, format, now), data)
}

// Render produces the payload bytes without saving; pure.
func Render(headers []string, rows [][]any, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return renderJSON(headers, rows)
	case FormatXLSX:
		return renderXLSX(headers, rows)
	default:
		return nil, fmt.Errorf("export: unsupported format %q", format)
	}
}

func renderJSON(headers []string, rows [][]any) ([]byte, error) {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		if len(row) != len(headers) {
			return nil, fmt.Errorf("export: row has %d cells, want %d", len(row), len(headers))
		}
		obj := make(map[string]any, len(headers))
		for i, h := range headers {
			obj[h] = row[i]
		}
		out = append(out, obj)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderXLSX(headers []string, rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if len(row) != len(headers) {
			return nil, fmt.Errorf("export: row has %d cells, want %d", len(row), len(headers))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		converted := make([]any, len(row))
		for j, v := range row {
			converted[j] = cellValue(v)
		}
		if err := f.SetSheetRow(sheet, cell, &converted); err != nil {
			return nil, err
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// cellValue flattens values excelize cannot encode directly.
func cellValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format(time.RFC3339)
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	case nil:
		return ""
	default:
		return v
	}
}
