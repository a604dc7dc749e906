package email

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Template parameter names. The hosted template references these keys, so
// renaming one breaks the email.
const (
	FieldToEmail         = "to_email"
	FieldOrderReference  = "order_reference"
	FieldPatientName     = "patient_name"
	FieldPatientDocument = "patient_document"
	FieldPatientPhone    = "patient_phone"
	FieldPatientEmail    = "patient_email"
	FieldPatientBirth    = "patient_birth_date"
	FieldPickupDate      = "pickup_date"
	FieldPickupTime      = "pickup_time"
	FieldPickupAddress   = "pickup_address"
	FieldPickupDistrict  = "pickup_district"
	FieldPickupNotes     = "pickup_notes"
	FieldExams           = "exams"
	FieldItemCount       = "item_count"
	FieldTotal           = "total"
	FieldPaymentMethod   = "payment_method"
	FieldPaymentLink     = "payment_link"
)

// Payload is the flat key/value set handed to the email template.
type Payload map[string]string

// Notifier delivers a checkout notification. Send is attempted once; the
// caller decides whether to let the user retry.
type Notifier interface {
	Send(ctx context.Context, payload Payload) error
}

// Validate reports missing required fields.
func (p Payload) Validate() error {
	var missing []string
	for _, key := range []string{FieldOrderReference, FieldPatientName, FieldPatientEmail, FieldExams, FieldTotal, FieldPaymentMethod} {
		if strings.TrimSpace(p[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("notification payload missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Render lays the payload out as plain text, one "key: value" per line in
// key order, for transports without a hosted template.
func (p Payload) Render() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		if p[k] == "" {
			continue
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(p[k])
		b.WriteByte('\n')
	}
	return b.String()
}
