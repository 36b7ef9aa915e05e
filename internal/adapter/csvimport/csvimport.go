// Package csvimport parses generic purchase CSV files with one line item per row.
//
// Recognized columns (case-insensitive, spaces or underscores):
//
//	merchant_name, item_name, quantity, unit_price, line_total, timestamp, modifiers, order_id
//
// Only item_name is required. Modifiers are separated by semicolons.
package csvimport

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"slices"
	"strings"

	"github.com/jszwec/csvutil"

	"github.com/sells-group/bitegraph/internal/adapter"
	"github.com/sells-group/bitegraph/internal/identity"
	"github.com/sells-group/bitegraph/internal/model"
)

const (
	// SourceID is the registry key for this adapter.
	SourceID = "csv_import"
	// Format is the metadata format hint this adapter accepts.
	Format = "csv"

	defaultRawRef = "import.csv"
)

// Row is one generic purchase row.
type Row struct {
	MerchantName string `csv:"merchant_name"`
	Merchant     string `csv:"merchant"`
	ItemName     string `csv:"item_name"`
	Quantity     string `csv:"quantity"`
	UnitPrice    string `csv:"unit_price"`
	LineTotal    string `csv:"line_total"`
	Timestamp    string `csv:"timestamp"`
	Modifiers    string `csv:"modifiers"`
	OrderID      string `csv:"order_id"`
}

func (r Row) empty() bool {
	return r == Row{}
}

// Line converts the row into an adapter line. A missing line total is
// derived from quantity and unit price.
func (r Row) Line() adapter.Line {
	qty := adapter.ParseAmount(r.Quantity, 1)
	if qty <= 0 {
		qty = 1
	}
	unit := adapter.ParseAmount(r.UnitPrice, 0)
	total := adapter.ParseAmount(r.LineTotal, unit*qty)

	merchant := strings.TrimSpace(r.MerchantName)
	if merchant == "" {
		merchant = strings.TrimSpace(r.Merchant)
	}

	return adapter.Line{
		Merchant:  merchant,
		Timestamp: adapter.ParseTimestamp(r.Timestamp),
		Item:      strings.TrimSpace(r.ItemName),
		Modifiers: adapter.SplitModifiers(r.Modifiers, ";"),
		Quantity:  qty,
		UnitPrice: unit,
		LineTotal: total,
		OrderID:   strings.TrimSpace(r.OrderID),
	}
}

// Decode reads every row from r using the given raw header. The header is
// normalized before decoding; blank rows are skipped.
func Decode(source string, r csvutil.Reader, header []string) ([]Row, error) {
	header, err := adapter.Header(source, header)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(header, "item_name") {
		return nil, adapter.Invalid(source, "missing required column item_name (have %v)", header)
	}

	dec, err := csvutil.NewDecoder(r, header...)
	if err != nil {
		return nil, adapter.InvalidWrap(source, err, "decode header")
	}

	var rows []Row
	for {
		var row Row
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, adapter.InvalidWrap(source, err, "decode row")
		}
		if row.empty() {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Items converts decoded rows into line items.
func Items(source string, rows []Row, meta model.Metadata, rawRef, payloadHash string) []model.PurchaseLineItem {
	items := make([]model.PurchaseLineItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.Line().Build(source, meta, rawRef, payloadHash))
	}
	return items
}

// Adapter parses generic purchase CSV files.
type Adapter struct{}

// New creates a generic CSV adapter.
func New() *Adapter {
	return &Adapter{}
}

// SourceID implements adapter.Adapter.
func (a *Adapter) SourceID() string { return SourceID }

// CanParse implements adapter.Adapter.
func (a *Adapter) CanParse(meta model.Metadata) bool {
	return meta.Source == SourceID || meta.Format == Format
}

// Parse implements adapter.Adapter.
func (a *Adapter) Parse(raw []byte, meta model.Metadata) ([]model.PurchaseLineItem, error) {
	text, err := adapter.Text(SourceID, raw)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, adapter.Invalid(SourceID, "csv has no header row")
	}
	if err != nil {
		return nil, adapter.InvalidWrap(SourceID, err, "read header")
	}

	rows, err := Decode(SourceID, r, header)
	if err != nil {
		return nil, err
	}
	return Items(SourceID, rows, meta, defaultRawRef, identity.PayloadHash(raw)), nil
}
