package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ExamKind string

const (
	ExamKindAnalysis ExamKind = "analysis"
	ExamKindProfile  ExamKind = "profile"
)

// Exam is a purchasable catalog entry (an analysis or a wellness profile).
// LegacyPrice and LegacyReferencePrice are the flat prices that predate tariffs.
type Exam struct {
	Base
	Code                 string              `json:"code" db:"code"`
	Name                 string              `json:"name" db:"name"`
	Description          string              `json:"description" db:"description"`
	Kind                 ExamKind            `json:"kind" db:"kind"`
	CategoryID           *uuid.UUID          `json:"category_id,omitempty" db:"category_id"`
	CategoryName         string              `json:"category" db:"category_name"`
	LegacyPrice          decimal.NullDecimal `json:"-" db:"price"`
	LegacyReferencePrice decimal.NullDecimal `json:"-" db:"reference_price"`
	Active               bool                `json:"active" db:"active"`
}

// HasLegacyPrice reports whether the exam carries a positive flat price.
func (e *Exam) HasLegacyPrice() bool {
	return e.LegacyPrice.Valid && e.LegacyPrice.Decimal.IsPositive()
}

// HasLegacyReferencePrice reports whether the exam carries a positive flat reference price.
func (e *Exam) HasLegacyReferencePrice() bool {
	return e.LegacyReferencePrice.Valid && e.LegacyReferencePrice.Decimal.IsPositive()
}

// ExamFilters narrows catalog listings.
type ExamFilters struct {
	CategoryID *uuid.UUID
	Kind       ExamKind
	Search     string
	OnlyActive bool
}

// CatalogEntry is an exam with the caller's resolved price. Price is nil when
// no price could be resolved, in which case the UI hides it.
type CatalogEntry struct {
	Exam
	Price      *decimal.Decimal `json:"price,omitempty"`
	TariffName string           `json:"tariff_name,omitempty"`
}
