package models

import "time"

// Settings is a singleton row (id = 1) holding operational knobs read by
// every hold-eligibility decision.
type Settings struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// PaymentHoldDelayHours is nil when holds should always be placed
	// immediately at booking time.
	PaymentHoldDelayHours   *int    `json:"payment_hold_delay_hours,omitempty"`
	CancellationWindowHours int     `gorm:"not null;default:24" json:"cancellation_window_hours"`
	CancellationFee         float64 `gorm:"not null;default:0" json:"cancellation_fee"`

	UpdatedAt time.Time `json:"updated_at"`
}

const SettingsID uint = 1
