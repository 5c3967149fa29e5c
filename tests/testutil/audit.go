package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
)

// AuditRecorder is an in-memory shared.AuditSink
type AuditRecorder struct {
	mu      sync.Mutex
	entries []shared.AuditEntry
}

// NewAuditRecorder creates an empty AuditRecorder
func NewAuditRecorder() *AuditRecorder {
	return &AuditRecorder{}
}

// Record stores the entry
func (r *AuditRecorder) Record(_ context.Context, entry shared.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

// Entries returns a copy of everything recorded
func (r *AuditRecorder) Entries() []shared.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// EventsFor returns the audit events recorded for one entity, in order
func (r *AuditRecorder) EventsFor(entityID uuid.UUID) []string {
	var events []string
	for _, e := range r.Entries() {
		if e.EntityID == entityID {
			events = append(events, e.Event)
		}
	}
	return events
}
