package dto

import (
	"time"

	"github.com/sprucehq/cleanops/internal/models"
	"github.com/sprucehq/cleanops/internal/service"
)

type BookingResponse struct {
	ID               uint                    `json:"id"`
	ClientID         string                  `json:"client_id"`
	CleanerID        *string                 `json:"cleaner_id,omitempty"`
	ServiceType      string                  `json:"service_type"`
	ServiceFrequency models.ServiceFrequency `json:"service_frequency"`
	ScheduledDate    string                  `json:"scheduled_date"`
	ScheduledTime    string                  `json:"scheduled_time"`
	DurationHours    *float64                `json:"duration_hours,omitempty"`
	Address          string                  `json:"address"`
	Price            *float64                `json:"price,omitempty"`
	Status           models.BookingStatus    `json:"status"`
	Notes            string                  `json:"notes,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
}

// HoldResponse reports the secondary hold outcome of a booking create.
type HoldResponse struct {
	Placed  bool   `json:"placed"`
	Skipped bool   `json:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
	Status  string `json:"status,omitempty"`
}

type CreateBookingResponse struct {
	Booking      BookingResponse `json:"booking"`
	Materialized int             `json:"materialized_instances"`
	Hold         *HoldResponse   `json:"hold,omitempty"`
}

type UpdateScheduleResponse struct {
	Booking    BookingResponse         `json:"booking"`
	Reconciled service.ReconcileResult `json:"reconciled"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func ToBookingResponse(b *models.Booking) BookingResponse {
	return BookingResponse{
		ID:               b.ID,
		ClientID:         b.ClientID,
		CleanerID:        b.CleanerID,
		ServiceType:      b.ServiceType,
		ServiceFrequency: b.ServiceFrequency,
		ScheduledDate:    b.ScheduledDate.Format("2006-01-02"),
		ScheduledTime:    b.ScheduledTime,
		DurationHours:    b.DurationHours,
		Address:          b.Address,
		Price:            b.Price,
		Status:           b.Status,
		Notes:            b.Notes,
		CreatedAt:        b.CreatedAt,
	}
}

func ToHoldResponse(r *service.HoldResult) *HoldResponse {
	if r == nil {
		return nil
	}
	resp := &HoldResponse{Placed: r.Placed, Skipped: r.Skipped, Reason: r.Reason}
	if r.Err != nil {
		resp.Error = r.Err.Error()
	}
	if r.Payment != nil {
		resp.Status = r.Payment.Status
	}
	return resp
}
