package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sprucehq/cleanops/internal/clock"
	"github.com/sprucehq/cleanops/internal/models"
	"github.com/sprucehq/cleanops/internal/recurrence"
	"github.com/sprucehq/cleanops/internal/repository"
)

// ScheduleBefore is the pre-update schedule of an edited booking, needed
// by the reconciler to locate the downstream instances and compute the
// shift delta.
type ScheduleBefore struct {
	ScheduledDate time.Time
	ScheduledTime string
	Frequency     models.ServiceFrequency
}

type ReconcileResult struct {
	Created int `json:"created"`
	Shifted int `json:"shifted"`
	Removed int `json:"removed"`
}

type SeriesService interface {
	Materialize(ctx context.Context, parent *models.Booking) (int, error)
	Reconcile(ctx context.Context, booking *models.Booking, prev ScheduleBefore) (ReconcileResult, error)
}

type seriesService struct {
	bookingRepo repository.BookingRepository
	paymentRepo repository.PaymentRepository
	clk         clock.Clock
	horizon     int

	// propagateTimeShift controls whether a time-of-day-only edit on a
	// series member shifts the downstream instances' time as well.
	propagateTimeShift bool
}

type SeriesOption func(*seriesService)

func WithSeriesClock(c clock.Clock) SeriesOption {
	return func(s *seriesService) { s.clk = c }
}

func WithHorizon(n int) SeriesOption {
	return func(s *seriesService) {
		if n > 0 {
			s.horizon = n
		}
	}
}

func WithTimeShiftPropagation(on bool) SeriesOption {
	return func(s *seriesService) { s.propagateTimeShift = on }
}

func NewSeriesService(bookingRepo repository.BookingRepository, paymentRepo repository.PaymentRepository, opts ...SeriesOption) SeriesService {
	s := &seriesService{
		bookingRepo:        bookingRepo,
		paymentRepo:        paymentRepo,
		clk:                clock.System(),
		horizon:            recurrence.DefaultHorizon,
		propagateTimeShift: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Materialize creates the future instances of a freshly created recurring
// booking. It is intentionally not idempotent: it runs once per parent,
// at creation time; every later change goes through Reconcile.
func (s *seriesService) Materialize(ctx context.Context, parent *models.Booking) (int, error) {
	if parent.ServiceFrequency == models.FrequencyOneTime || parent.ServiceFrequency == "" {
		return 0, nil
	}

	dates := recurrence.Occurrences(recurrence.DateOnly(parent.ScheduledDate), parent.ServiceFrequency, s.horizon)
	instances := make([]*models.Booking, 0, len(dates))
	for _, d := range dates {
		instances = append(instances, cloneForDate(parent, d))
	}

	if err := s.bookingRepo.CreateAll(ctx, instances); err != nil {
		return 0, fmt.Errorf("materialize series for booking %d: %w", parent.ID, err)
	}

	log.Printf("[Series] materialized %d instances for booking %d (%s)", len(instances), parent.ID, parent.ServiceFrequency)
	return len(instances), nil
}

// Reconcile applies the minimal diff to a series after one of its members
// had its date, time or frequency edited. Instances dated at or before
// today are never touched, whatever the new cadence looks like. Running
// it again with no further edits is a no-op.
func (s *seriesService) Reconcile(ctx context.Context, booking *models.Booking, prev ScheduleBefore) (ReconcileResult, error) {
	var res ReconcileResult

	dateChanged := !recurrence.SameDay(booking.ScheduledDate, prev.ScheduledDate)
	timeChanged := booking.ScheduledTime != prev.ScheduledTime
	freqChanged := booking.ServiceFrequency != prev.Frequency
	if !dateChanged && !timeChanged && !freqChanged {
		return res, nil
	}

	// Downstream instances still carry the pre-edit frequency, so the
	// lookup key uses it; kept instances are rewritten to the new one.
	lookupKey := booking.SeriesKey()
	lookupKey.Frequency = prev.Frequency

	downstream, err := s.bookingRepo.FindSeriesAfter(ctx, lookupKey, recurrence.DateOnly(prev.ScheduledDate))
	if err != nil {
		return res, fmt.Errorf("load series for booking %d: %w", booking.ID, err)
	}

	today := recurrence.DateOnly(s.clk.Now())

	if !freqChanged {
		return s.shiftSeries(ctx, booking, prev, downstream, today, dateChanged, timeChanged)
	}
	return s.rebuildSeries(ctx, booking, downstream, today)
}

// shiftSeries translates every future downstream instance in place by the
// same date delta as the edited booking. Same rows, same payments.
func (s *seriesService) shiftSeries(ctx context.Context, booking *models.Booking, prev ScheduleBefore, downstream []models.Booking, today time.Time, dateChanged, timeChanged bool) (ReconcileResult, error) {
	var res ReconcileResult

	dayDelta := int(recurrence.DateOnly(booking.ScheduledDate).Sub(recurrence.DateOnly(prev.ScheduledDate)).Hours() / 24)
	applyTime := timeChanged && (dateChanged || s.propagateTimeShift)
	if dayDelta == 0 && !applyTime {
		return res, nil
	}

	for i := range downstream {
		inst := &downstream[i]
		if inst.ID == booking.ID {
			// The edited booking already carries its new schedule; when
			// its date moved forward it matches its own series query.
			continue
		}
		if !recurrence.DateOnly(inst.ScheduledDate).After(today) {
			continue // history is preserved unconditionally
		}

		target := recurrence.DateOnly(inst.ScheduledDate).AddDate(0, 0, dayDelta)
		timeOfDay := inst.ScheduledTime
		if applyTime {
			timeOfDay = booking.ScheduledTime
		}
		if recurrence.SameDay(target, inst.ScheduledDate) && timeOfDay == inst.ScheduledTime {
			continue
		}

		if err := s.bookingRepo.UpdateSchedule(ctx, inst.ID, target, timeOfDay); err != nil {
			log.Printf("[Series] shift booking %d failed: %v", inst.ID, err)
			continue
		}
		res.Shifted++
	}

	log.Printf("[Series] shifted %d instances for booking %d by %d day(s)", res.Shifted, booking.ID, dayDelta)
	return res, nil
}

// rebuildSeries diffs the existing downstream instances against the
// occurrence set of the new frequency: day-matching instances are kept
// (payments and checklists intact), future off-cadence ones are removed,
// missing ones are created.
func (s *seriesService) rebuildSeries(ctx context.Context, booking *models.Booking, downstream []models.Booking, today time.Time) (ReconcileResult, error) {
	var res ReconcileResult

	expected := recurrence.Occurrences(recurrence.DateOnly(booking.ScheduledDate), booking.ServiceFrequency, s.horizon)
	matched := make([]bool, len(expected))

	for i := range downstream {
		inst := &downstream[i]
		if inst.ID == booking.ID {
			continue
		}

		idx := -1
		for j, d := range expected {
			if !matched[j] && recurrence.SameDay(d, inst.ScheduledDate) {
				idx = j
				break
			}
		}

		if idx >= 0 {
			matched[idx] = true
			if err := s.keepInstance(ctx, inst, booking); err != nil {
				log.Printf("[Series] update kept booking %d failed: %v", inst.ID, err)
			}
			continue
		}

		// Off-cadence under the new frequency.
		if !recurrence.DateOnly(inst.ScheduledDate).After(today) {
			continue // past or today: historical, untouchable
		}
		if err := s.removeInstance(ctx, inst); err != nil {
			log.Printf("[Series] remove booking %d failed: %v", inst.ID, err)
			continue
		}
		res.Removed++
	}

	for j, d := range expected {
		if matched[j] {
			continue
		}
		if !recurrence.DateOnly(d).After(today) {
			continue // never backfill occurrences into the past
		}
		inst := cloneForDate(booking, d)
		if err := s.bookingRepo.Create(ctx, inst); err != nil {
			log.Printf("[Series] create instance on %s failed: %v", d.Format("2006-01-02"), err)
			continue
		}
		res.Created++
	}

	log.Printf("[Series] rebuilt series for booking %d: created=%d removed=%d", booking.ID, res.Created, res.Removed)
	return res, nil
}

// keepInstance carries parent edits onto an instance that survives a
// frequency change without recreating the row.
func (s *seriesService) keepInstance(ctx context.Context, inst, parent *models.Booking) error {
	changed := false
	if inst.ServiceFrequency != parent.ServiceFrequency {
		inst.ServiceFrequency = parent.ServiceFrequency
		changed = true
	}
	if inst.ScheduledTime != parent.ScheduledTime {
		inst.ScheduledTime = parent.ScheduledTime
		changed = true
	}
	if !changed {
		return nil
	}
	return s.bookingRepo.Save(ctx, inst)
}

// removeInstance drops a future off-cadence instance. Instances that
// never saw money are hard-deleted; anything with payment history is
// cancelled instead so the records stay reachable.
func (s *seriesService) removeInstance(ctx context.Context, inst *models.Booking) error {
	payments, err := s.paymentRepo.FindByBookingID(ctx, inst.ID)
	if err != nil {
		return fmt.Errorf("check payments for booking %d: %w", inst.ID, err)
	}
	if len(payments) == 0 {
		return s.bookingRepo.Delete(ctx, inst.ID)
	}

	inst.Status = models.StatusCancelled
	inst.Notes = appendNote(inst.Notes, "Cancelled: removed from series schedule")
	return s.bookingRepo.Save(ctx, inst)
}

// cloneForDate copies the parent's descriptive attributes onto a new
// instance for one occurrence date. Payments and checklists are never
// copied; each instance earns its own.
func cloneForDate(parent *models.Booking, date time.Time) *models.Booking {
	return &models.Booking{
		ClientID:         parent.ClientID,
		CleanerID:        parent.CleanerID,
		ServiceType:      parent.ServiceType,
		ServiceFrequency: parent.ServiceFrequency,
		Extras:           parent.Extras,
		ScheduledDate:    recurrence.DateOnly(date),
		ScheduledTime:    parent.ScheduledTime,
		DurationHours:    parent.DurationHours,
		Address:          parent.Address,
		Price:            parent.Price,
		SquareFootage:    parent.SquareFootage,
		Bedrooms:         parent.Bedrooms,
		Bathrooms:        parent.Bathrooms,
		Status:           models.StatusPending,
	}
}

func appendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}
