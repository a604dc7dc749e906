package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartState string

const (
	CartEmpty       CartState = "empty"
	CartPopulated   CartState = "populated"
	CartCheckingOut CartState = "checking_out"
	CartCompleted   CartState = "completed"
	CartAbandoned   CartState = "abandoned"
)

type PaymentMethod string

const (
	PaymentYape PaymentMethod = "yape"
	PaymentPlin PaymentMethod = "plin"
)

// PatientDetails identifies who the samples are taken from.
type PatientDetails struct {
	FullName       string `json:"full_name" binding:"required"`
	DocumentNumber string `json:"document_number" binding:"required"`
	Phone          string `json:"phone" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	BirthDate      string `json:"birth_date,omitempty"`
}

// PickupSchedule is where and when the samples are collected.
type PickupSchedule struct {
	Date     string `json:"date" binding:"required"`
	Time     string `json:"time" binding:"required"`
	Address  string `json:"address" binding:"required"`
	District string `json:"district,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// CartItem holds the price resolved when the exam was added.
type CartItem struct {
	ExamID         uuid.UUID       `json:"exam_id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	TariffName     string          `json:"tariff_name,omitempty"`
	Quantity       int             `json:"quantity"`
	PatientDetails *PatientDetails `json:"patient_details,omitempty"`
}

// Subtotal is price × quantity.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Cart struct {
	ID        string          `json:"id"`
	UserID    *uuid.UUID      `json:"user_id,omitempty"`
	State     CartState       `json:"state"`
	Items     []CartItem      `json:"items"`
	Patient   *PatientDetails `json:"patient,omitempty"`
	Schedule  *PickupSchedule `json:"schedule,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Total is Σ price × quantity over all lines.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Find returns the index of the line for examID, or -1.
func (c *Cart) Find(examID uuid.UUID) int {
	for i, item := range c.Items {
		if item.ExamID == examID {
			return i
		}
	}
	return -1
}

// PriceChange reports a line whose price moved between add-time and checkout.
type PriceChange struct {
	ExamID   uuid.UUID       `json:"exam_id"`
	Name     string          `json:"name"`
	OldPrice decimal.Decimal `json:"old_price"`
	NewPrice decimal.Decimal `json:"new_price"`
}

// CheckoutResult is returned to the client after a successful checkout.
type CheckoutResult struct {
	CartID        string          `json:"cart_id"`
	State         CartState       `json:"state"`
	Reference     string          `json:"reference"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	PaymentLink   string          `json:"payment_link"`
	Items         []CartItem      `json:"items"`
	PriceChanges  []PriceChange   `json:"price_changes,omitempty"`
}
