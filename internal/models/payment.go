package models

import "time"

// Payment statuses mirror the payment provider's state machine verbatim.
const (
	PaymentStatusRequiresCapture = "requires_capture"
	PaymentStatusSucceeded       = "succeeded"
	PaymentStatusCanceled        = "canceled"
	PaymentStatusFailed          = "failed"
	PaymentStatusPending         = "pending"
)

type Payment struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	BookingID uint `gorm:"not null;index:idx_payment_booking" json:"booking_id"`

	// Amount is signed: positive for a charge, negative for a refund.
	Amount      float64 `gorm:"not null" json:"amount"`
	ProviderRef *string `gorm:"size:100" json:"provider_ref,omitempty"`
	IsCaptured  bool    `gorm:"not null;default:false" json:"is_captured"`
	Status      string  `gorm:"size:30;not null" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActiveHold reports whether this payment represents money reserved but
// not yet taken.
func (p *Payment) ActiveHold() bool {
	return !p.IsCaptured && p.Status != PaymentStatusCanceled && p.Status != PaymentStatusFailed
}
