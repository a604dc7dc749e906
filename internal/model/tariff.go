package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const TariffTypeSale = "sale"

// Tariff is a named price list.
type Tariff struct {
	Base
	Name   string `json:"name" db:"name"`
	Type   string `json:"type" db:"type"`
	Active bool   `json:"active" db:"active"`
}

// TariffPrice is the price of one exam under one tariff. (tariff_id, exam_id) is unique.
type TariffPrice struct {
	Base
	TariffID uuid.UUID       `json:"tariff_id" db:"tariff_id"`
	ExamID   uuid.UUID       `json:"exam_id" db:"exam_id"`
	Price    decimal.Decimal `json:"price" db:"price"`
}

// TariffPriceView is a price row joined with the exam name for admin listings.
type TariffPriceView struct {
	TariffPrice
	ExamName string `json:"exam_name" db:"exam_name"`
}

type PriceSource string

const (
	PriceSourceTariff PriceSource = "tariff"
	PriceSourceLegacy PriceSource = "legacy"
)

// PriceResolution is the effective price of an exam for a caller, along with
// the price list that produced it.
type PriceResolution struct {
	ExamID        uuid.UUID       `json:"exam_id"`
	Price         decimal.Decimal `json:"price"`
	TariffID      *uuid.UUID      `json:"tariff_id,omitempty"`
	TariffName    string          `json:"tariff_name"`
	ReferenceName string          `json:"reference_name,omitempty"`
	Source        PriceSource     `json:"source"`
}
