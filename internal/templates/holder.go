package templates

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Holder publishes the current Snapshot. Readers take the pointer once and
// keep using that snapshot for the rest of their run.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// NewHolder creates a Holder publishing s.
func NewHolder(s *Snapshot) *Holder {
	h := &Holder{}
	h.current.Store(s)
	return h
}

// Current returns the published snapshot.
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// Swap publishes s and returns the snapshot it replaced.
func (h *Holder) Swap(s *Snapshot) *Snapshot {
	old := h.current.Swap(s)
	prev := ""
	if old != nil {
		prev = old.Version
	}
	zap.L().Info("templates: snapshot swapped",
		zap.String("previous_version", prev),
		zap.String("version", s.Version),
	)
	return old
}

// Reload loads dir (or the embedded set when dir is empty) and swaps it in.
// On error the current snapshot stays published.
func (h *Holder) Reload(dir string) (*Snapshot, error) {
	var (
		snap *Snapshot
		err  error
	)
	if dir == "" {
		snap, err = Default()
	} else {
		snap, err = LoadDir(dir)
	}
	if err != nil {
		return nil, err
	}
	h.Swap(snap)
	return snap, nil
}
