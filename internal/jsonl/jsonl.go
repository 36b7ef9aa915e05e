// Package jsonl reads and writes the newline-delimited JSON stage files:
// normalized items, interpreted records and mapped records.
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bitegraph/internal/model"
	"github.com/sells-group/bitegraph/internal/pipeline"
)

// Stage file names written by WriteStages.
const (
	NormalizedFile  = "normalized.jsonl"
	InterpretedFile = "interpreted.jsonl"
	MappedFile      = "mapped.jsonl"
)

const maxLine = 4 << 20

// Interpreted is one line of the interpreted stage.
type Interpreted struct {
	Item           model.PurchaseLineItem         `json:"item"`
	Classification *model.ClassificationResult    `json:"classification"`
	Interpretation *model.FoodEventInterpretation `json:"interpretation,omitempty"`
}

// Mapped is one line of the mapped stage.
type Mapped struct {
	Item           model.PurchaseLineItem         `json:"item"`
	Classification *model.ClassificationResult    `json:"classification"`
	Mapping        *model.MappingResult           `json:"mapping"`
	Enrichment     *model.NutritionFlavorResult   `json:"enrichment,omitempty"`
	Consumption    *model.ConsumptionInference    `json:"consumption,omitempty"`
	Interpretation *model.FoodEventInterpretation `json:"interpretation,omitempty"`
}

// MappedFrom converts a pipeline result into a mapped record.
func MappedFrom(r pipeline.Result) Mapped {
	return Mapped{
		Item:           r.Item,
		Classification: r.Classification,
		Mapping:        r.Mapping,
		Enrichment:     r.Enrichment,
		Consumption:    r.Consumption,
		Interpretation: r.Interpretation,
	}
}

// Writer writes one JSON object per line.
type Writer struct {
	buf *bufio.Writer
	enc *json.Encoder
	n   int
}

// NewWriter creates a Writer. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &Writer{buf: buf, enc: enc}
}

// Write encodes v as one line.
func (w *Writer) Write(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return eris.Wrapf(err, "jsonl: encode record %d", w.n+1)
	}
	w.n++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	return w.n
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return eris.Wrap(w.buf.Flush(), "jsonl: flush")
}

// WriteFile writes records to path, creating parent directories.
func WriteFile[T any](path string, records []T) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "jsonl: create dir %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "jsonl: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := NewWriter(f)
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return eris.Wrapf(f.Close(), "jsonl: close %s", path)
}

// Read decodes every non-blank line of r into a T.
func Read[T any](r io.Reader) ([]T, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var out []T
	line := 0
	for sc.Scan() {
		line++
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, eris.Wrapf(err, "jsonl: line %d", line)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "jsonl: scan after line %d", line)
	}
	return out, nil
}

// ReadFile opens path and calls Read.
func ReadFile[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "jsonl: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return Read[T](f)
}

// ReadItems reads a normalized stage file.
func ReadItems(r io.Reader) ([]model.PurchaseLineItem, error) {
	return Read[model.PurchaseLineItem](r)
}

// ReadInterpreted reads an interpreted stage file. Records missing a
// classification are rejected.
func ReadInterpreted(r io.Reader) ([]Interpreted, error) {
	recs, err := Read[Interpreted](r)
	if err != nil {
		return nil, err
	}
	for i, rec := range recs {
		if rec.Classification == nil {
			return nil, eris.Errorf("jsonl: record %d (event %s) has no classification", i+1, rec.Item.EventID)
		}
	}
	return recs, nil
}

// WriteStages writes the three stage files for results into dir.
func WriteStages(dir string, results []pipeline.Result) error {
	normalized := make([]model.PurchaseLineItem, 0, len(results))
	interpreted := make([]Interpreted, 0, len(results))
	mapped := make([]Mapped, 0, len(results))
	for _, r := range results {
		normalized = append(normalized, r.Item)
		interpreted = append(interpreted, Interpreted{
			Item:           r.Item,
			Classification: r.Classification,
			Interpretation: r.Interpretation,
		})
		mapped = append(mapped, MappedFrom(r))
	}

	if err := WriteFile(filepath.Join(dir, NormalizedFile), normalized); err != nil {
		return err
	}
	if err := WriteFile(filepath.Join(dir, InterpretedFile), interpreted); err != nil {
		return err
	}
	return WriteFile(filepath.Join(dir, MappedFile), mapped)
}
