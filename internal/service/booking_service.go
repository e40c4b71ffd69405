package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sprucehq/cleanops/internal/clock"
	"github.com/sprucehq/cleanops/internal/models"
	"github.com/sprucehq/cleanops/internal/recurrence"
	"github.com/sprucehq/cleanops/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrBookingNotFound  = errors.New("booking not found")
	ErrClientNotFound   = errors.New("client not found")
	ErrInvalidSchedule  = errors.New("invalid scheduled date or time")
	ErrInvalidFrequency = errors.New("invalid service frequency")
	ErrInvalidPrice     = errors.New("price must be positive")
	ErrAlreadyCancelled = errors.New("booking is already cancelled")
	ErrBookingImmutable = errors.New("completed or cancelled bookings cannot be rescheduled")
)

type CreateBookingInput struct {
	ClientID         string
	CleanerID        *string
	ServiceType      string
	ServiceFrequency models.ServiceFrequency
	ScheduledDate    time.Time
	ScheduledTime    string
	DurationHours    *float64
	Address          string
	Price            *float64
	SquareFootage    *int
	Bedrooms         *int
	Bathrooms        *int
	Extras           string
}

// CreateBookingOutput carries the primary result plus the two secondary,
// non-blocking outcomes: how many series instances were materialized and
// what happened to the inline hold attempt (nil when deferred).
type CreateBookingOutput struct {
	Booking      *models.Booking
	Materialized int
	Hold         *HoldResult
}

type UpdateScheduleInput struct {
	ScheduledDate    *time.Time
	ScheduledTime    *string
	ServiceFrequency *models.ServiceFrequency
}

type UpdateScheduleOutput struct {
	Booking    *models.Booking
	Reconciled ReconcileResult
}

type BookingService interface {
	CreateBooking(ctx context.Context, in CreateBookingInput) (*CreateBookingOutput, error)
	UpdateSchedule(ctx context.Context, id uint, in UpdateScheduleInput) (*UpdateScheduleOutput, error)
	CancelBooking(ctx context.Context, id uint, reason string, cascade bool) (*models.Booking, error)
	CompleteBooking(ctx context.Context, id uint) (*models.Booking, error)
	GetBooking(ctx context.Context, id uint) (*models.Booking, error)
	ListBookings(ctx context.Context, clientID string, status *models.BookingStatus, from, to *time.Time) ([]models.Booking, error)
}

type bookingService struct {
	bookingRepo  repository.BookingRepository
	clientRepo   repository.ClientRepository
	settingsRepo repository.SettingsRepository
	series       SeriesService
	holds        HoldService
	clk          clock.Clock
}

type BookingOption func(*bookingService)

func WithBookingClock(c clock.Clock) BookingOption {
	return func(s *bookingService) { s.clk = c }
}

func NewBookingService(bookingRepo repository.BookingRepository, clientRepo repository.ClientRepository, settingsRepo repository.SettingsRepository, series SeriesService, holds HoldService, opts ...BookingOption) BookingService {
	s := &bookingService{
		bookingRepo:  bookingRepo,
		clientRepo:   clientRepo,
		settingsRepo: settingsRepo,
		series:       series,
		holds:        holds,
		clk:          clock.System(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *bookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*CreateBookingOutput, error) {
	if in.ServiceFrequency == "" {
		in.ServiceFrequency = models.FrequencyOneTime
	}
	if !in.ServiceFrequency.Valid() {
		return nil, ErrInvalidFrequency
	}
	if in.ScheduledDate.IsZero() {
		return nil, ErrInvalidSchedule
	}
	if _, err := time.Parse("15:04", in.ScheduledTime); err != nil {
		return nil, ErrInvalidSchedule
	}
	if in.Price != nil && *in.Price <= 0 {
		return nil, ErrInvalidPrice
	}

	if _, err := s.clientRepo.FindByID(ctx, in.ClientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("load client %s: %w", in.ClientID, err)
	}

	booking := &models.Booking{
		ClientID:         in.ClientID,
		CleanerID:        in.CleanerID,
		ServiceType:      in.ServiceType,
		ServiceFrequency: in.ServiceFrequency,
		Extras:           in.Extras,
		ScheduledDate:    recurrence.DateOnly(in.ScheduledDate),
		ScheduledTime:    in.ScheduledTime,
		DurationHours:    in.DurationHours,
		Address:          in.Address,
		Price:            in.Price,
		SquareFootage:    in.SquareFootage,
		Bedrooms:         in.Bedrooms,
		Bathrooms:        in.Bathrooms,
		Status:           models.StatusPending,
	}
	if err := s.bookingRepo.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	out := &CreateBookingOutput{Booking: booking}

	if booking.ServiceFrequency != models.FrequencyOneTime {
		n, err := s.series.Materialize(ctx, booking)
		if err != nil {
			return nil, err
		}
		out.Materialized = n
	}

	// The hold is a secondary outcome: its failure never fails the
	// create. A deferred hold is picked up later by the sweep.
	if hold := s.maybeHoldInline(ctx, booking); hold != nil {
		out.Hold = hold
	}
	return out, nil
}

func (s *bookingService) maybeHoldInline(ctx context.Context, booking *models.Booking) *HoldResult {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		log.Printf("[Booking] settings unavailable, deferring hold for booking %d: %v", booking.ID, err)
		return nil
	}
	if !ShouldHoldNow(booking.ScheduledAt(), s.clk.Now(), settings.PaymentHoldDelayHours) {
		return nil
	}
	r := s.holds.PlaceHold(ctx, booking)
	if r.Err != nil {
		log.Printf("[Booking] inline hold failed for booking %d: %v", booking.ID, r.Err)
	}
	return &r
}

// UpdateSchedule applies a date/time/frequency change to one booking and
// reconciles its series. Reconciliation failures are reported in the
// result but the primary save stands.
func (s *bookingService) UpdateSchedule(ctx context.Context, id uint, in UpdateScheduleInput) (*UpdateScheduleOutput, error) {
	booking, err := s.bookingRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if booking.Status == models.StatusCancelled || booking.Status == models.StatusCompleted {
		return nil, ErrBookingImmutable
	}

	prev := ScheduleBefore{
		ScheduledDate: booking.ScheduledDate,
		ScheduledTime: booking.ScheduledTime,
		Frequency:     booking.ServiceFrequency,
	}

	if in.ScheduledDate != nil {
		if in.ScheduledDate.IsZero() {
			return nil, ErrInvalidSchedule
		}
		booking.ScheduledDate = recurrence.DateOnly(*in.ScheduledDate)
	}
	if in.ScheduledTime != nil {
		if _, err := time.Parse("15:04", *in.ScheduledTime); err != nil {
			return nil, ErrInvalidSchedule
		}
		booking.ScheduledTime = *in.ScheduledTime
	}
	if in.ServiceFrequency != nil {
		if !in.ServiceFrequency.Valid() {
			return nil, ErrInvalidFrequency
		}
		booking.ServiceFrequency = *in.ServiceFrequency
	}

	if err := s.bookingRepo.Save(ctx, booking); err != nil {
		return nil, fmt.Errorf("save booking %d: %w", id, err)
	}

	reconciled, err := s.series.Reconcile(ctx, booking, prev)
	if err != nil {
		log.Printf("[Booking] reconcile after update of booking %d failed: %v", id, err)
	}
	return &UpdateScheduleOutput{Booking: booking, Reconciled: reconciled}, nil
}

// CancelBooking releases any active hold (best-effort: a provider failure
// is logged, never blocks the cancellation), appends the reason to the
// booking's notes and marks it cancelled. With cascade set, every future
// downstream instance of the series is cancelled the same way.
func (s *bookingService) CancelBooking(ctx context.Context, id uint, reason string, cascade bool) (*models.Booking, error) {
	booking, err := s.bookingRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if booking.Status == models.StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	if err := s.cancelOne(ctx, booking, reason); err != nil {
		return nil, err
	}

	if cascade {
		today := recurrence.DateOnly(s.clk.Now())
		downstream, err := s.bookingRepo.FindSeriesAfter(ctx, booking.SeriesKey(), recurrence.DateOnly(booking.ScheduledDate))
		if err != nil {
			log.Printf("[Booking] cascade lookup for booking %d failed: %v", id, err)
			return booking, nil
		}
		for i := range downstream {
			inst := &downstream[i]
			if inst.ID == booking.ID {
				continue
			}
			if !recurrence.DateOnly(inst.ScheduledDate).After(today) {
				continue
			}
			if err := s.cancelOne(ctx, inst, reason); err != nil {
				log.Printf("[Booking] cascade cancel of booking %d failed: %v", inst.ID, err)
			}
		}
	}
	return booking, nil
}

func (s *bookingService) cancelOne(ctx context.Context, booking *models.Booking, reason string) error {
	if err := s.holds.ReleaseHold(ctx, booking.ID); err != nil {
		log.Printf("[Booking] release hold for booking %d failed: %v", booking.ID, err)
	}

	if reason != "" {
		booking.Notes = appendNote(booking.Notes, "Cancelled: "+reason)
	}
	booking.Status = models.StatusCancelled
	if err := s.bookingRepo.Save(ctx, booking); err != nil {
		return fmt.Errorf("cancel booking %d: %w", booking.ID, err)
	}
	return nil
}

// CompleteBooking captures the active hold, if any, and marks the booking
// completed. Capture failure is a secondary outcome, logged for manual
// retry.
func (s *bookingService) CompleteBooking(ctx context.Context, id uint) (*models.Booking, error) {
	booking, err := s.bookingRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if booking.Status == models.StatusCancelled {
		return nil, ErrAlreadyCancelled
	}

	if err := s.holds.CaptureHold(ctx, id); err != nil {
		log.Printf("[Booking] capture on completion of booking %d failed: %v", id, err)
	}

	booking.Status = models.StatusCompleted
	if err := s.bookingRepo.Save(ctx, booking); err != nil {
		return nil, fmt.Errorf("complete booking %d: %w", id, err)
	}
	return booking, nil
}

func (s *bookingService) GetBooking(ctx context.Context, id uint) (*models.Booking, error) {
	booking, err := s.bookingRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return booking, nil
}

func (s *bookingService) ListBookings(ctx context.Context, clientID string, status *models.BookingStatus, from, to *time.Time) ([]models.Booking, error) {
	return s.bookingRepo.FindByClient(ctx, clientID, status, from, to)
}
