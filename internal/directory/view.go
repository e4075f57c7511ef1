// Package directory holds the patient directory view state: one fetched
// snapshot of the record collection, client-side search over it, row
// expansion, and the delete-then-reload action.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/scade330/clinic2-portal/internal/record"
)

var (
	ErrConfirmationRequired = errors.New("deletion requires confirmation")
	ErrDeleteInFlight       = errors.New("a deletion is already in flight")
)

// RecordAPI is the slice of the upstream client the view needs.
type RecordAPI interface {
	List(ctx context.Context) ([]record.PatientRecord, error)
	Delete(ctx context.Context, id string) error
}

// View owns the in-memory record snapshot. Search never mutates it; only
// Load replaces it.
type View struct {
	api    RecordAPI
	logger *zap.Logger

	mu       sync.Mutex
	records  []record.PatientRecord
	loaded   bool
	expanded string
	deleting bool
}

func NewView(api RecordAPI, logger *zap.Logger) *View {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &View{api: api, logger: logger}
}

// Load fetches the full collection. On failure the last snapshot is kept,
// empty when nothing was ever loaded, and the error is surfaced; there is
// no retry scheduling.
func (v *View) Load(ctx context.Context) error {
	records, err := v.api.List(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.loaded = true
	if err != nil {
		return fmt.Errorf("load patient directory: %w", err)
	}
	v.records = records
	return nil
}

// Ensure loads the snapshot on first use.
func (v *View) Ensure(ctx context.Context) error {
	v.mu.Lock()
	loaded := v.loaded
	v.mu.Unlock()
	if loaded {
		return nil
	}
	return v.Load(ctx)
}

// Records returns the snapshot filtered by the query.
func (v *View) Records(query string) []record.PatientRecord {
	v.mu.Lock()
	snapshot := v.records
	v.mu.Unlock()
	return record.Filter(snapshot, query)
}

// Find looks a record up in the snapshot by ID.
func (v *View) Find(id string) (record.PatientRecord, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, r := range v.records {
		if r.ID == id {
			return r, true
		}
	}
	return record.PatientRecord{}, false
}

// Toggle expands the row for id, collapsing whatever was expanded before.
// Toggling the currently expanded row collapses it. At most one row is
// expanded at a time. Returns the now-expanded ID, empty when collapsed.
func (v *View) Toggle(id string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.expanded == id {
		v.expanded = ""
	} else {
		v.expanded = id
	}
	return v.expanded
}

func (v *View) Expanded() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.expanded
}

// Delete removes a record upstream and reloads the collection. The two
// steps are not transactional: when the reload fails after a successful
// delete the stale snapshot is kept until the next refresh.
func (v *View) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}

	v.mu.Lock()
	if v.deleting {
		v.mu.Unlock()
		return ErrDeleteInFlight
	}
	v.deleting = true
	v.mu.Unlock()

	defer func() {
		v.mu.Lock()
		v.deleting = false
		v.mu.Unlock()
	}()

	if err := v.api.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}

	v.mu.Lock()
	if v.expanded == id {
		v.expanded = ""
	}
	v.mu.Unlock()

	if err := v.Load(ctx); err != nil {
		v.logger.Warn("reload after delete failed, directory may be stale",
			zap.String("record_id", id), zap.Error(err))
	}
	return nil
}
