// Package adapter defines the contract source-specific parsers implement to
// turn raw payloads into purchase line items, and a registry to find them.
package adapter

import (
	"errors"
	"fmt"

	"github.com/sells-group/bitegraph/internal/model"
)

// Adapter parses one source's raw payloads.
type Adapter interface {
	// SourceID is the unique registry key, e.g. "uber_eats".
	SourceID() string
	// CanParse reports whether the adapter recognizes the payload described by meta.
	CanParse(meta model.Metadata) bool
	// Parse returns every line item in raw or an *InvalidInputError.
	// It never returns a partial list alongside an error.
	Parse(raw []byte, meta model.Metadata) ([]model.PurchaseLineItem, error)
}

// InvalidInputError reports an unparseable payload.
type InvalidInputError struct {
	Source string
	Cause  string
	Err    error
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("adapter: invalid input for %s: %s", e.Source, e.Cause)
}

func (e *InvalidInputError) Unwrap() error {
	return e.Err
}

// Invalid builds an *InvalidInputError with a formatted cause.
func Invalid(source, format string, args ...any) *InvalidInputError {
	return &InvalidInputError{Source: source, Cause: fmt.Sprintf(format, args...)}
}

// InvalidWrap builds an *InvalidInputError around an underlying error.
func InvalidWrap(source string, err error, cause string) *InvalidInputError {
	return &InvalidInputError{Source: source, Cause: cause + ": " + err.Error(), Err: err}
}

// IsInvalidInput reports whether err is an *InvalidInputError.
func IsInvalidInput(err error) bool {
	var ie *InvalidInputError
	return errors.As(err, &ie)
}
