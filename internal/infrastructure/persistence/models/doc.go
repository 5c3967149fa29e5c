// Package models contains GORM persistence models for the entitlement tables.
// Domain types carry no ORM tags; each model converts with ToDomain and a
// XxxModelFromDomain constructor.
package models
