package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/igianni84/erp-crurated-new-sub006/internal/domain/allocation"
)

// AllocationModel is the persistence model for the Allocation aggregate root.
type AllocationModel struct {
	AggregateModel
	PoolKey          string            `gorm:"type:varchar(128);not null;index"`
	TotalQuantity    int               `gorm:"not null;default:0"`
	ConsumedQuantity int               `gorm:"not null;default:0"`
	Status           allocation.Status `gorm:"type:varchar(20);not null;default:'draft';index"`
}

// TableName returns the table name for GORM
func (AllocationModel) TableName() string {
	return "allocations"
}

// ToDomain converts the persistence model to a domain Allocation
func (m *AllocationModel) ToDomain() *allocation.Allocation {
	return &allocation.Allocation{
		BaseAggregateRoot: m.root(),
		PoolKey:           m.PoolKey,
		TotalQuantity:     m.TotalQuantity,
		ConsumedQuantity:  m.ConsumedQuantity,
		Status:            m.Status,
	}
}

// FromDomain populates the persistence model from a domain Allocation
func (m *AllocationModel) FromDomain(a *allocation.Allocation) {
	m.setRoot(a.BaseAggregateRoot)
	m.PoolKey = a.PoolKey
	m.TotalQuantity = a.TotalQuantity
	m.ConsumedQuantity = a.ConsumedQuantity
	m.Status = a.Status
}

// AllocationModelFromDomain creates a new persistence model from a domain Allocation
func AllocationModelFromDomain(a *allocation.Allocation) *AllocationModel {
	m := &AllocationModel{}
	m.FromDomain(a)
	return m
}

// ReservationModel is the persistence model for an allocation reservation.
type ReservationModel struct {
	BaseModel
	AllocationID uuid.UUID `gorm:"type:uuid;not null;index:idx_reservation_holding,priority:1"`
	Quantity     int       `gorm:"not null"`
	Active       bool      `gorm:"not null;default:true;index:idx_reservation_holding,priority:2"`
	ExpiresAt    time.Time `gorm:"not null;index"`
	ReleasedAt   *time.Time
}

// TableName returns the table name for GORM
func (ReservationModel) TableName() string {
	return "allocation_reservations"
}

// ToDomain converts the persistence model to a domain Reservation
func (m *ReservationModel) ToDomain() *allocation.Reservation {
	return &allocation.Reservation{
		BaseEntity:   m.entity(),
		AllocationID: m.AllocationID,
		Quantity:     m.Quantity,
		Active:       m.Active,
		ExpiresAt:    m.ExpiresAt,
		ReleasedAt:   m.ReleasedAt,
	}
}

// ReservationModelFromDomain creates a new persistence model from a domain Reservation
func ReservationModelFromDomain(r *allocation.Reservation) *ReservationModel {
	m := &ReservationModel{
		AllocationID: r.AllocationID,
		Quantity:     r.Quantity,
		Active:       r.Active,
		ExpiresAt:    r.ExpiresAt,
		ReleasedAt:   r.ReleasedAt,
	}
	m.setEntity(r.BaseEntity)
	return m
}
