// Package store persists interpretation versions as an append-only log keyed
// by event id. The current interpretation is the highest version.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bitegraph/internal/model"
)

var (
	// ErrNotFound is returned when an event has no interpretation.
	ErrNotFound = eris.New("store: interpretation not found")
	// ErrVersionConflict is returned when a concurrent writer already took
	// the version this write computed.
	ErrVersionConflict = eris.New("store: version conflict")
)

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is ErrVersionConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// Policy decides what happens to a write whose content matches the current version.
type Policy string

const (
	// PolicySkipUnchanged returns the current version without appending.
	PolicySkipUnchanged Policy = "skip_unchanged"
	// PolicyAlwaysAppend appends a new version even when content is identical.
	PolicyAlwaysAppend Policy = "always_append"
)

// ParsePolicy converts a config spelling into a Policy. Empty means the default.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "":
		return PolicySkipUnchanged, nil
	case PolicySkipUnchanged, PolicyAlwaysAppend:
		return Policy(s), nil
	default:
		return "", eris.Errorf("store: unknown policy %q (valid: skip_unchanged, always_append)", s)
	}
}

// PutResult describes the outcome of a write.
type PutResult struct {
	// Interpretation is the stored record: the new version when Appended,
	// otherwise the unchanged current version.
	Interpretation model.FoodEventInterpretation `json:"interpretation"`
	Appended       bool                          `json:"appended"`
}

// Store is the interpretation log.
type Store interface {
	// Put assigns version = current max + 1 and appends, subject to the policy.
	// The Version field of interp is ignored.
	Put(ctx context.Context, eventID string, interp model.FoodEventInterpretation) (*PutResult, error)
	// GetCurrent returns the latest version or ErrNotFound.
	GetCurrent(ctx context.Context, eventID string) (*model.FoodEventInterpretation, error)
	// GetHistory returns every version in increasing order; empty when unknown.
	GetHistory(ctx context.Context, eventID string) ([]model.FoodEventInterpretation, error)
	Close() error
}

// plan decides the next write. It returns the version to append, or skip=true
// when the policy suppresses the write.
func plan(policy Policy, latest *model.FoodEventInterpretation, latestHash string, interp model.FoodEventInterpretation) (version int, skip bool) {
	if latest == nil {
		return 1, false
	}
	if policy != PolicyAlwaysAppend && latestHash == interp.ContentHash() {
		return latest.Version, true
	}
	return latest.Version + 1, false
}

// prepare stamps the fields the store owns.
func prepare(eventID string, interp model.FoodEventInterpretation, version int) model.FoodEventInterpretation {
	out := interp
	out.EventID = eventID
	out.Version = version
	out.Reasons = append([]string{}, interp.Reasons...)
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = time.Now().UTC()
	}
	return out
}

func validateWrite(eventID string, interp model.FoodEventInterpretation) error {
	if eventID == "" {
		return &model.ValidationError{Field: "event_id"}
	}
	if interp.EventID != "" && interp.EventID != eventID {
		return eris.Errorf("store: interpretation event_id %q does not match %q", interp.EventID, eventID)
	}
	return nil
}
