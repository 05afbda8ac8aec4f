package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"go-insight-pipeline/internal/model"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

// exportSheet names the single sheet of an exported workbook.
const exportSheet = "data"

// ErrUnknownFormat is returned (wrapped) for an unsupported export format.
var ErrUnknownFormat = eris.New("pipeline: unknown export format")

// FormatFromPath picks an export format from a file extension. Anything
// unrecognised exports as CSV.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// ContentType returns the MIME type of an export format.
func ContentType(format string) string {
	switch format {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv"
	}
}

// Export writes ds to w in the given format and returns the number of rows
// written. Nulls export as empty cells in CSV and XLSX and as null in JSON.
func Export(w io.Writer, ds model.Dataset, format string) (int, error) {
	switch format {
	case FormatCSV:
		return exportCSV(w, ds)
	case FormatJSON:
		return exportJSON(w, ds)
	case FormatXLSX:
		return exportXLSX(w, ds)
	default:
		return 0, eris.Wrapf(ErrUnknownFormat, "format %q", format)
	}
}

func exportCSV(w io.Writer, ds model.Dataset) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Headers); err != nil {
		return 0, eris.Wrap(err, "csv: write header")
	}
	line := make([]string, len(ds.Headers))
	for i, r := range ds.Rows {
		for j, h := range ds.Headers {
			line[j] = r[h].String()
		}
		if err := cw.Write(line); err != nil {
			return i, eris.Wrapf(err, "csv: write row %d", i)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, eris.Wrap(err, "csv: flush")
	}
	return ds.Len(), nil
}

func exportJSON(w io.Writer, ds model.Dataset) (int, error) {
	rows := ds.Rows
	if rows == nil {
		rows = []model.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(model.Dataset{Headers: ds.Headers, Rows: rows}); err != nil {
		return 0, eris.Wrap(err, "json: encode dataset")
	}
	return ds.Len(), nil
}

func exportXLSX(w io.Writer, ds model.Dataset) (int, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(exportSheet)
	if err != nil {
		return 0, eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range ds.Headers {
		header.AddCell().SetString(h)
	}
	for _, r := range ds.Rows {
		row := sheet.AddRow()
		for _, h := range ds.Headers {
			cell := row.AddCell()
			switch v := r[h]; v.Kind {
			case model.KindNumber:
				cell.SetFloat(v.Num)
			case model.KindBool:
				cell.SetBool(v.Bool)
			case model.KindNull:
			default:
				cell.SetString(v.String())
			}
		}
	}

	if err := f.Write(w); err != nil {
		return 0, eris.Wrap(err, "xlsx: write workbook")
	}
	return ds.Len(), nil
}
