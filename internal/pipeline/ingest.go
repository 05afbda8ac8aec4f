package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"go-insight-pipeline/internal/model"
)

// Delimiter separates fields in raw input. Quoting is not supported.
const Delimiter = ","

// IngestionError reports input that cannot be turned into a dataset. It is
// fatal: no later stage runs.
type IngestionError struct {
	Reason string
}

func (e *IngestionError) Error() string {
	return "ingestion: " + e.Reason
}

// ------------------- Delimited text -------------------

// Load parses raw delimited text. The first non-blank line is the header;
// every following non-blank line is a record. Fields that are empty after
// trimming become Null. Values are kept as Text until CastAndFill runs.
func Load(raw string) (model.Dataset, error) {
	lines := nonBlankLines(raw)
	if len(lines) == 0 {
		return model.Dataset{}, &IngestionError{Reason: "input has no non-blank lines"}
	}

	headers := uniqueHeaders(splitFields(lines[0]))

	rows := make([]model.Record, 0, len(lines)-1)
	for _, line := range lines[1:] {
		fields := splitFields(line)
		rec := make(model.Record, len(headers))
		for i, h := range headers {
			if i >= len(fields) {
				rec[h] = model.Null
				continue
			}
			v := strings.TrimSpace(fields[i])
			if v == "" {
				rec[h] = model.Null
				continue
			}
			rec[h] = model.Text(v)
		}
		rows = append(rows, rec)
	}

	return model.Dataset{Headers: headers, Rows: rows}, nil
}

func nonBlankLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

func splitFields(line string) []string {
	return strings.Split(line, Delimiter)
}

// uniqueHeaders trims header names and suffixes repeats with _2, _3, ... so
// every column keeps its own values.
func uniqueHeaders(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, h := range raw {
		name := strings.TrimSpace(h)
		for n := 2; seen[name]; n++ {
			name = fmt.Sprintf("%s_%d", strings.TrimSpace(h), n)
		}
		seen[name] = true
		out[i] = name
	}
	return out
}

// ------------------- Pre-parsed records -------------------

// LoadRecords builds a dataset from records produced by an external loader
// (a spreadsheet reader, a JSON decoder). Values go through model.FromAny;
// blank strings become Null and all other strings are trimmed.
func LoadRecords(headers []string, rows []map[string]interface{}) (model.Dataset, error) {
	if len(headers) == 0 {
		return model.Dataset{}, &IngestionError{Reason: "no header columns supplied"}
	}

	hs := uniqueHeaders(headers)

	out := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		rec := make(model.Record, len(hs))
		for i, h := range hs {
			v := model.FromAny(row[headers[i]])
			if v.Kind == model.KindText {
				s := strings.TrimSpace(v.Str)
				if s == "" {
					v = model.Null
				} else {
					v = model.Text(s)
				}
			}
			rec[h] = v
		}
		out = append(out, rec)
	}
	return model.Dataset{Headers: hs, Rows: out}, nil
}

// ------------------- Spreadsheets -------------------

// LoadXLSX reads one sheet of a spreadsheet file. An empty sheet name selects
// the first sheet. The first non-blank row is the header.
func LoadXLSX(path, sheetName string) (model.Dataset, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return model.Dataset{}, eris.Wrap(err, "xlsx: open file")
	}
	return loadWorkbook(f, sheetName)
}

// LoadXLSXBytes is LoadXLSX for an in-memory workbook.
func LoadXLSXBytes(content []byte, sheetName string) (model.Dataset, error) {
	f, err := xlsx.OpenBinary(content)
	if err != nil {
		return model.Dataset{}, &IngestionError{Reason: "unreadable workbook: " + err.Error()}
	}
	return loadWorkbook(f, sheetName)
}

// LoadFile picks a loader from the file extension: .xlsx goes through the
// spreadsheet reader, everything else is treated as delimited text.
func LoadFile(name string, content []byte) (model.Dataset, error) {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return LoadXLSXBytes(content, "")
	}
	return Load(string(content))
}

func loadWorkbook(f *xlsx.File, sheetName string) (model.Dataset, error) {
	var sheet *xlsx.Sheet
	if sheetName != "" {
		s, ok := f.Sheet[sheetName]
		if !ok {
			return model.Dataset{}, eris.Errorf("xlsx: sheet %q not found", sheetName)
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return model.Dataset{}, &IngestionError{Reason: "workbook has no sheets"}
		}
		sheet = f.Sheets[0]
	}

	var headers []string
	var rows []map[string]interface{}
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		blank := true
		for j, cell := range row.Cells {
			cells[j] = cell.String()
			if strings.TrimSpace(cells[j]) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		if headers == nil {
			headers = uniqueHeaders(cells)
			continue
		}
		rec := make(map[string]interface{}, len(headers))
		for i, h := range headers {
			if i < len(cells) {
				rec[h] = cells[i]
			}
		}
		rows = append(rows, rec)
	}

	if headers == nil {
		return model.Dataset{}, &IngestionError{Reason: fmt.Sprintf("sheet %q is empty", sheet.Name)}
	}
	return LoadRecords(headers, rows)
}
