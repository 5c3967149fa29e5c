package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/shared"
)

// AuditRecordModel is an append-only row per mutating operation
type AuditRecordModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	EntityType string    `gorm:"type:varchar(32);not null;index:idx_audit_entity,priority:1"`
	EntityID   uuid.UUID `gorm:"type:uuid;not null;index:idx_audit_entity,priority:2"`
	Event      string    `gorm:"type:varchar(64);not null"`
	OldValues  []byte    `gorm:"type:jsonb"`
	NewValues  []byte    `gorm:"type:jsonb"`
	ActorID    string    `gorm:"type:varchar(128);not null"`
	OccurredAt time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (AuditRecordModel) TableName() string {
	return "audit_records"
}

// AuditRecordModelFromDomain creates a new persistence model from an audit entry
func AuditRecordModelFromDomain(e shared.AuditEntry) (*AuditRecordModel, error) {
	oldValues, err := marshalValues(e.OldValues)
	if err != nil {
		return nil, err
	}
	newValues, err := marshalValues(e.NewValues)
	if err != nil {
		return nil, err
	}
	return &AuditRecordModel{
		ID:         uuid.New(),
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Event:      e.Event,
		OldValues:  oldValues,
		NewValues:  newValues,
		ActorID:    e.ActorID,
		OccurredAt: e.OccurredAt,
	}, nil
}

// ToDomain converts the persistence model back to an audit entry
func (m *AuditRecordModel) ToDomain() (shared.AuditEntry, error) {
	entry := shared.AuditEntry{
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Event:      m.Event,
		ActorID:    m.ActorID,
		OccurredAt: m.OccurredAt,
	}
	if len(m.OldValues) > 0 {
		if err := json.Unmarshal(m.OldValues, &entry.OldValues); err != nil {
			return entry, err
		}
	}
	if len(m.NewValues) > 0 {
		if err := json.Unmarshal(m.NewValues, &entry.NewValues); err != nil {
			return entry, err
		}
	}
	return entry, nil
}

func marshalValues(values map[string]any) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	return json.Marshal(values)
}

// All returns every model, in dependency order, for AutoMigrate in tests
func All() []any {
	return []any{
		&AllocationModel{},
		&ReservationModel{},
		&CaseEntitlementModel{},
		&VoucherModel{},
		&VoucherTransferModel{},
		&AuditRecordModel{},
	}
}
