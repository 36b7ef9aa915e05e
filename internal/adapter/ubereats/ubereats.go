// Package ubereats parses Uber Eats order history exports.
package ubereats

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"github.com/jszwec/csvutil"

	"github.com/sells-group/bitegraph/internal/adapter"
	"github.com/sells-group/bitegraph/internal/identity"
	"github.com/sells-group/bitegraph/internal/model"
)

const (
	// SourceID is the registry key for this adapter.
	SourceID = "uber_eats"
	// Format is the metadata format hint this adapter accepts.
	Format = "uber_eats_csv"

	defaultRawRef   = "ubereats_export.csv"
	unknownMerchant = "Unknown"
)

// row is one export line after header normalization. Alternate column
// spellings seen across export versions get their own field.
type row struct {
	RestaurantName   string `csv:"restaurant_name"`
	Restaurant       string `csv:"restaurant"`
	RequestTimeLocal string `csv:"request_time_local"`
	RequestTime      string `csv:"request_time"`
	OrderStatus      string `csv:"order_status"`
	OrderID          string `csv:"order_id"`
	ItemName         string `csv:"item_name"`
	Item             string `csv:"item"`
	ItemQuantity     string `csv:"item_quantity"`
	Quantity         string `csv:"quantity"`
	Customizations   string `csv:"customizations"`
	Customization    string `csv:"customization"`
	ItemPrice        string `csv:"item_price"`
	OrderPrice       string `csv:"order_price"`
	Currency         string `csv:"currency"`
}

// Adapter parses Uber Eats CSV exports.
type Adapter struct{}

// New creates an Uber Eats adapter.
func New() *Adapter {
	return &Adapter{}
}

// SourceID implements adapter.Adapter.
func (a *Adapter) SourceID() string { return SourceID }

// CanParse implements adapter.Adapter.
func (a *Adapter) CanParse(meta model.Metadata) bool {
	return meta.Source == SourceID || meta.Format == Format
}

// Parse implements adapter.Adapter. Rows whose order status is present and
// not completed or delivered are dropped unless meta.IncludeNonCompleted.
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

	header, err = adapter.Header(SourceID, header)
	if err != nil {
		return nil, err
	}

	dec, err := csvutil.NewDecoder(r, header...)
	if err != nil {
		return nil, adapter.InvalidWrap(SourceID, err, "decode header")
	}

	payloadHash := identity.PayloadHash(raw)
	var items []model.PurchaseLineItem
	for {
		var rec row
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, adapter.InvalidWrap(SourceID, err, "decode row")
		}

		if !meta.IncludeNonCompleted && !completed(rec.OrderStatus) {
			continue
		}
		items = append(items, rec.line().Build(SourceID, meta, defaultRawRef, payloadHash))
	}
	return items, nil
}

func completed(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "", "completed", "delivered":
		return true
	}
	return false
}

func (r row) line() adapter.Line {
	restaurant := first(r.RestaurantName, r.Restaurant, unknownMerchant)
	requestTime := first(r.RequestTimeLocal, r.RequestTime)

	orderID := strings.TrimSpace(r.OrderID)
	if orderID == "" {
		orderID = syntheticOrderID(restaurant, requestTime, r.OrderPrice, r.Currency)
	}

	qty := adapter.ParseAmount(first(r.ItemQuantity, r.Quantity), 1)
	if qty <= 0 {
		qty = 1
	}
	price := adapter.ParseAmount(r.ItemPrice, 0)

	return adapter.Line{
		Merchant:  restaurant,
		Timestamp: adapter.ParseTimestamp(requestTime),
		Item:      first(r.ItemName, r.Item),
		Modifiers: adapter.SplitModifiers(first(r.Customizations, r.Customization), ","),
		Quantity:  qty,
		UnitPrice: price / qty,
		LineTotal: price,
		OrderID:   orderID,
	}
}

// syntheticOrderID groups lines of one order when the export has no order id.
func syntheticOrderID(restaurant, requestTime, orderPrice, currency string) string {
	key := strings.Join([]string{restaurant, requestTime, orderPrice, currency}, "|")
	if strings.Trim(key, "|") == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:12]
}

func first(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
