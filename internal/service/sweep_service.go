package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/sprucehq/cleanops/internal/clock"
	"github.com/sprucehq/cleanops/internal/models"
	"github.com/sprucehq/cleanops/internal/recurrence"
	"github.com/sprucehq/cleanops/internal/repository"
	"gorm.io/gorm"
)

// SweepResult summarizes one sweep run. Per-booking failures land in
// Errors; only a systemic failure (settings unreadable, store down)
// aborts a run.
type SweepResult struct {
	RunID     string   `json:"run_id"`
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

type SweepService interface {
	// Sweep places holds on every upcoming booking that entered the
	// configured delay window. A non-nil override replaces the stored
	// delay for this run only.
	Sweep(ctx context.Context, overrideDelayHours *int) (*SweepResult, error)
}

type sweepService struct {
	bookingRepo  repository.BookingRepository
	paymentRepo  repository.PaymentRepository
	settingsRepo repository.SettingsRepository
	holds        HoldService
	clk          clock.Clock
}

type SweepOption func(*sweepService)

func WithSweepClock(c clock.Clock) SweepOption {
	return func(s *sweepService) { s.clk = c }
}

func NewSweepService(bookingRepo repository.BookingRepository, paymentRepo repository.PaymentRepository, settingsRepo repository.SettingsRepository, holds HoldService, opts ...SweepOption) SweepService {
	s := &sweepService{
		bookingRepo:  bookingRepo,
		paymentRepo:  paymentRepo,
		settingsRepo: settingsRepo,
		holds:        holds,
		clk:          clock.System(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *sweepService) Sweep(ctx context.Context, overrideDelayHours *int) (*SweepResult, error) {
	res := &SweepResult{RunID: uuid.NewString()}

	delay := overrideDelayHours
	if delay == nil {
		settings, err := s.settingsRepo.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
		delay = settings.PaymentHoldDelayHours
	}
	if delay == nil {
		// Immediate-hold mode: nothing is ever deferred, so there is
		// no backlog to sweep.
		return res, nil
	}

	now := s.clk.Now()
	windowEnd := now.Add(time.Duration(*delay) * time.Hour)

	// Dates are stored at midnight, so the coarse query starts a day
	// early and the wall-clock filter below does the exact cut.
	candidates, err := s.bookingRepo.FindScheduledBetween(ctx,
		recurrence.DateOnly(now).AddDate(0, 0, -1),
		recurrence.DateOnly(windowEnd),
		[]models.BookingStatus{models.StatusCancelled, models.StatusCompleted, models.StatusInProgress},
	)
	if err != nil {
		return nil, fmt.Errorf("select sweep candidates: %w", err)
	}

	for i := range candidates {
		booking := &candidates[i]
		at := booking.ScheduledAt()
		if !at.After(now) {
			continue // started or past
		}
		if !ShouldHoldNow(at, now, delay) {
			continue // not yet inside the window
		}

		// Already-held bookings are excluded from the selection; this
		// is what makes re-running the sweep on an interval safe.
		if _, err := s.paymentRepo.FindActiveHold(ctx, booking.ID); err == nil {
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("booking %d: %v", booking.ID, err))
			continue
		}

		res.Processed++
		r := s.holds.PlaceHold(ctx, booking)
		switch {
		case r.Placed:
			res.Succeeded++
		case r.Skipped:
			res.Skipped++
		default:
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("booking %d: %v", booking.ID, r.Err))
		}
	}

	log.Printf("[Sweep] run %s: processed=%d succeeded=%d failed=%d skipped=%d",
		res.RunID, res.Processed, res.Succeeded, res.Failed, res.Skipped)
	return res, nil
}
