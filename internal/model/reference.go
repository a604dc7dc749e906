package model

import (
	"time"

	"github.com/google/uuid"
)

// Reference is a customer segment ("Public", "Doctors", "Companies") bound to
// an optional default tariff.
type Reference struct {
	Base
	Name            string     `json:"name" db:"name"`
	DefaultTariffID *uuid.UUID `json:"default_tariff_id,omitempty" db:"default_tariff_id"`
	Active          bool       `json:"active" db:"active"`
}

// UserReference binds an account to a reference. A user may hold several.
type UserReference struct {
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	ReferenceID uuid.UUID `json:"reference_id" db:"reference_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ReferenceAssignment is a user's reference joined with its tariff binding,
// as used by price resolution.
type ReferenceAssignment struct {
	ReferenceID     uuid.UUID  `json:"reference_id" db:"reference_id"`
	ReferenceName   string     `json:"reference_name" db:"reference_name"`
	DefaultTariffID *uuid.UUID `json:"default_tariff_id,omitempty" db:"default_tariff_id"`
	AssignedAt      time.Time  `json:"assigned_at" db:"assigned_at"`
}
