// Package xlsximport parses purchase rows from the first sheet of an XLSX
// workbook. Columns follow the csvimport layout.
package xlsximport

import (
	"io"
	"strings"

	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/bitegraph/internal/adapter"
	"github.com/sells-group/bitegraph/internal/adapter/csvimport"
	"github.com/sells-group/bitegraph/internal/identity"
	"github.com/sells-group/bitegraph/internal/model"
)

const (
	// SourceID is the registry key for this adapter.
	SourceID = "xlsx_import"
	// Format is the metadata format hint this adapter accepts.
	Format = "xlsx"

	defaultRawRef = "import.xlsx"
)

// Adapter parses XLSX workbooks.
type Adapter struct{}

// New creates an XLSX adapter.
func New() *Adapter {
	return &Adapter{}
}

// SourceID implements adapter.Adapter.
func (a *Adapter) SourceID() string { return SourceID }

// CanParse implements adapter.Adapter.
func (a *Adapter) CanParse(meta model.Metadata) bool {
	return meta.Source == SourceID || meta.Format == Format ||
		strings.HasSuffix(strings.ToLower(meta.FilePath), ".xlsx")
}

// Parse implements adapter.Adapter.
func (a *Adapter) Parse(raw []byte, meta model.Metadata) ([]model.PurchaseLineItem, error) {
	f, err := xlsx.OpenBinary(raw)
	if err != nil {
		return nil, adapter.InvalidWrap(SourceID, err, "open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, adapter.Invalid(SourceID, "workbook has no sheets")
	}

	rows := sheetRows(f.Sheets[0])
	if len(rows) == 0 {
		return nil, adapter.Invalid(SourceID, "sheet %q has no header row", f.Sheets[0].Name)
	}

	decoded, err := csvimport.Decode(SourceID, &rowReader{rows: rows[1:], width: len(rows[0])}, rows[0])
	if err != nil {
		return nil, err
	}
	return csvimport.Items(SourceID, decoded, meta, defaultRawRef, identity.PayloadHash(raw)), nil
}

func sheetRows(sheet *xlsx.Sheet) [][]string {
	var out [][]string
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			cells = append(cells, strings.TrimSpace(cell.String()))
		}
		out = append(out, cells)
	}
	return out
}

// rowReader feeds sheet rows to csvutil, padding or truncating each row to
// the header width since spreadsheets drop trailing empty cells.
type rowReader struct {
	rows  [][]string
	width int
	pos   int
}

func (r *rowReader) Read() ([]string, error) {
	if r.pos >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.pos]
	r.pos++

	out := make([]string, r.width)
	copy(out, row)
	return out, nil
}
