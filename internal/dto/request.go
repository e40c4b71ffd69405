package dto

import "github.com/sprucehq/cleanops/internal/models"

type CreateBookingRequest struct {
	ClientID         string                  `json:"client_id"`
	CleanerID        *string                 `json:"cleaner_id,omitempty"`
	ServiceType      string                  `json:"service_type"`
	ServiceFrequency models.ServiceFrequency `json:"service_frequency,omitempty"`
	ScheduledDate    string                  `json:"scheduled_date"` // "2006-01-02"
	ScheduledTime    string                  `json:"scheduled_time"` // "15:04"
	DurationHours    *float64                `json:"duration_hours,omitempty"`
	Address          string                  `json:"address"`
	Price            *float64                `json:"price,omitempty"`
	SquareFootage    *int                    `json:"square_footage,omitempty"`
	Bedrooms         *int                    `json:"bedrooms,omitempty"`
	Bathrooms        *int                    `json:"bathrooms,omitempty"`
	Extras           string                  `json:"extras,omitempty"`
}

type UpdateScheduleRequest struct {
	ScheduledDate    *string                  `json:"scheduled_date,omitempty"`
	ScheduledTime    *string                  `json:"scheduled_time,omitempty"`
	ServiceFrequency *models.ServiceFrequency `json:"service_frequency,omitempty"`
}

type CancelBookingRequest struct {
	Reason  string `json:"reason,omitempty"`
	Cascade bool   `json:"cascade,omitempty"`
}

type UpdateSettingsRequest struct {
	PaymentHoldDelayHours   *int    `json:"payment_hold_delay_hours"`
	CancellationWindowHours int     `json:"cancellation_window_hours"`
	CancellationFee         float64 `json:"cancellation_fee"`
}

type RunSweepRequest struct {
	OverrideDelayHours *int `json:"override_delay_hours,omitempty"`
}
