package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/sprucehq/cleanops/internal/clock"
	"github.com/sprucehq/cleanops/internal/models"
	"github.com/sprucehq/cleanops/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// --- In-memory BookingRepository ---

type fakeBookingRepo struct {
	seq      uint
	bookings map[uint]*models.Booking
}

var _ repository.BookingRepository = (*fakeBookingRepo)(nil)

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[uint]*models.Booking)}
}

func (f *fakeBookingRepo) Create(ctx context.Context, b *models.Booking) error {
	f.seq++
	b.ID = f.seq
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeBookingRepo) CreateAll(ctx context.Context, bs []*models.Booking) error {
	for _, b := range bs {
		if err := f.Create(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBookingRepo) FindByID(ctx context.Context, id uint) (*models.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookingRepo) Save(ctx context.Context, b *models.Booking) error {
	if _, ok := f.bookings[b.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeBookingRepo) UpdateSchedule(ctx context.Context, id uint, date time.Time, timeOfDay string) error {
	b, ok := f.bookings[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	b.ScheduledDate = date
	b.ScheduledTime = timeOfDay
	return nil
}

func (f *fakeBookingRepo) UpdateStatus(ctx context.Context, id uint, status models.BookingStatus) error {
	b, ok := f.bookings[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	b.Status = status
	return nil
}

func (f *fakeBookingRepo) Delete(ctx context.Context, id uint) error {
	delete(f.bookings, id)
	return nil
}

func (f *fakeBookingRepo) FindSeriesAfter(ctx context.Context, key models.SeriesKey, after time.Time) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range f.bookings {
		if b.ClientID != key.ClientID || b.ServiceType != key.ServiceType ||
			b.Address != key.Address || b.ServiceFrequency != key.Frequency {
			continue
		}
		if !b.ScheduledDate.After(after) {
			continue
		}
		if b.Status == models.StatusCancelled || b.Status == models.StatusCompleted {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledDate.Before(out[j].ScheduledDate)
	})
	return out, nil
}

func (f *fakeBookingRepo) FindScheduledBetween(ctx context.Context, from, to time.Time, exclude []models.BookingStatus) ([]models.Booking, error) {
	excluded := func(s models.BookingStatus) bool {
		for _, e := range exclude {
			if s == e {
				return true
			}
		}
		return false
	}
	var out []models.Booking
	for _, b := range f.bookings {
		if !b.ScheduledDate.After(from) || b.ScheduledDate.After(to) {
			continue
		}
		if excluded(b.Status) {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeBookingRepo) FindByClient(ctx context.Context, clientID string, status *models.BookingStatus, from, to *time.Time) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range f.bookings {
		if b.ClientID != clientID {
			continue
		}
		if status != nil && b.Status != *status {
			continue
		}
		if from != nil && b.ScheduledDate.Before(*from) {
			continue
		}
		if to != nil && b.ScheduledDate.After(*to) {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// activeDates returns the scheduled dates of all live bookings except the
// parent, formatted for easy comparison.
func (f *fakeBookingRepo) activeDates(parentID uint) []string {
	var out []string
	for _, b := range f.bookings {
		if b.ID == parentID || b.Status == models.StatusCancelled {
			continue
		}
		out = append(out, b.ScheduledDate.Format("2006-01-02"))
	}
	sort.Strings(out)
	return out
}

// --- In-memory PaymentRepository ---

type fakePaymentRepo struct {
	seq      uint
	payments map[uint]*models.Payment
}

var _ repository.PaymentRepository = (*fakePaymentRepo)(nil)

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[uint]*models.Payment)}
}

func (f *fakePaymentRepo) Create(ctx context.Context, p *models.Payment) error {
	f.seq++
	p.ID = f.seq
	cp := *p
	f.payments[p.ID] = &cp
	return nil
}

func (f *fakePaymentRepo) FindByBookingID(ctx context.Context, bookingID uint) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range f.payments {
		if p.BookingID == bookingID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakePaymentRepo) FindActiveHold(ctx context.Context, bookingID uint) (*models.Payment, error) {
	for _, p := range f.payments {
		if p.BookingID == bookingID && p.ActiveHold() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepo) UpdateStatus(ctx context.Context, id uint, status string, captured bool) error {
	p, ok := f.payments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Status = status
	p.IsCaptured = captured
	return nil
}

// --- Helpers ---

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func weeklyParent() *models.Booking {
	price := 120.0
	duration := 3.0
	return &models.Booking{
		ClientID:         "client-1",
		ServiceType:      "deep_clean",
		ServiceFrequency: models.FrequencyWeekly,
		ScheduledDate:    day(2025, 1, 1),
		ScheduledTime:    "10:00",
		DurationHours:    &duration,
		Address:          "12 Alder St",
		Price:            &price,
		Status:           models.StatusPending,
	}
}

func newSeries(t *testing.T, now time.Time, horizon int) (*fakeBookingRepo, *fakePaymentRepo, SeriesService) {
	t.Helper()
	bookings := newFakeBookingRepo()
	payments := newFakePaymentRepo()
	svc := NewSeriesService(bookings, payments,
		WithSeriesClock(clock.Fixed(now)),
		WithHorizon(horizon),
	)
	return bookings, payments, svc
}

// --- Materializer ---

func TestMaterialize_Weekly(t *testing.T) {
	bookings, _, svc := newSeries(t, day(2024, 12, 30), 3)
	parent := weeklyParent()
	require.NoError(t, bookings.Create(context.Background(), parent))

	n, err := svc.Materialize(context.Background(), parent)

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"2025-01-08", "2025-01-15", "2025-01-22"}, bookings.activeDates(parent.ID))
}

func TestMaterialize_CopiesAttributes(t *testing.T) {
	bookings, _, svc := newSeries(t, day(2024, 12, 30), 1)
	parent := weeklyParent()
	require.NoError(t, bookings.Create(context.Background(), parent))

	_, err := svc.Materialize(context.Background(), parent)
	require.NoError(t, err)

	series, err := bookings.FindSeriesAfter(context.Background(), parent.SeriesKey(), parent.ScheduledDate)
	require.NoError(t, err)
	require.Len(t, series, 1)

	inst := series[0]
	assert.Equal(t, parent.ClientID, inst.ClientID)
	assert.Equal(t, parent.ServiceType, inst.ServiceType)
	assert.Equal(t, parent.Address, inst.Address)
	assert.Equal(t, parent.ScheduledTime, inst.ScheduledTime)
	assert.Equal(t, *parent.Price, *inst.Price)
	assert.Equal(t, *parent.DurationHours, *inst.DurationHours)
	assert.Equal(t, models.StatusPending, inst.Status)
}

func TestMaterialize_OneTimeCreatesNothing(t *testing.T) {
	bookings, _, svc := newSeries(t, day(2024, 12, 30), 5)
	parent := weeklyParent()
	parent.ServiceFrequency = models.FrequencyOneTime
	require.NoError(t, bookings.Create(context.Background(), parent))

	n, err := svc.Materialize(context.Background(), parent)

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, bookings.activeDates(parent.ID))
}

// --- Reconciler: shift path ---

func TestReconcile_DateShiftTranslatesDownstream(t *testing.T) {
	bookings, _, svc := newSeries(t, day(2024, 12, 30), 3)
	parent := weeklyParent()
	require.NoError(t, bookings.Create(context.Background(), parent))
	_, err := svc.Materialize(context.Background(), parent)
	require.NoError(t, err)

	series, _ := bookings.FindSeriesAfter(context.Background(), parent.SeriesKey(), parent.ScheduledDate)
	idsBefore := make([]uint, len(series))
	for i, b := range series {
		idsBefore[i] = b.ID
	}

	prev := ScheduleBefore{ScheduledDate: parent.ScheduledDate, ScheduledTime: parent.ScheduledTime, Frequency: parent.ServiceFrequency}
	parent.ScheduledDate = day(2025, 1, 2) // move one day later

	res, err := svc.Reconcile(context.Background(), parent, prev)

	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Shifted: 3}, res)
	assert.Equal(t, []string{"2025-01-09", "2025-01-16", "2025-01-23"}, bookings.activeDates(parent.ID))

	// Same rows shifted in place, not recreated.
	after, _ := bookings.FindSeriesAfter(context.Background(), parent.SeriesKey(), parent.ScheduledDate)
	for i, b := range after {
		assert.Equal(t, idsBefore[i], b.ID)
	}
}

func TestReconcile_TimeOnlyShiftPropagates(t *testing.T) {
	bookings, _, svc := newSeries(t, day(2024, 12, 30), 2)
	parent := weeklyParent()
	require.NoError(t, bookings.Create(context.Background(), parent))
	_, err := svc.Materialize(context.Background(), parent)
	require.NoError(t, err)

	prev := ScheduleBefore{ScheduledDate: parent.ScheduledDate, ScheduledTime: "10:00", Frequency: parent.ServiceFrequency}
	parent.ScheduledTime = "14:00"

	res, err := svc.Reconcile(context.Background(), parent, prev)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Shifted)

	series, _ := bookings.FindSeriesAfter(context.Background(), parent.SeriesKey(), parent.ScheduledDate)
	for _, b := range series {
		assert.Equal(t, "14:00", b.ScheduledTime)
	}
}

func TestReconcile_TimeOnlyShiftDisabled(t *testing.T) {
	bookings := newFakeBookingRepo()
	svc := NewSeriesService(bookings, newFakePaymentRepo(),
		WithSeriesClock(clock.Fixed(day(2024, 12, 30))),
		WithHorizon(2),
		WithTimeShiftPropagation(false),
	)
	parent := weeklyParent()
	require.NoError(t, bookings.Create(context.Background(), parent))
	_, err := svc.Materialize(context.Background(), parent)
	require.NoError(t, err)

	prev := ScheduleBefore{ScheduledDate: parent.ScheduledDate, ScheduledTime: "10:00", Frequency: parent.ServiceFrequency}
	parent.ScheduledTime = "14:00"

	res, err := svc.Reconcile(context.Background(), parent, prev)

	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{}, res)

	series, _ := bookings.FindSeriesAfter(context.Background(), parent.SeriesKey(), parent.ScheduledDate)
	for _, b := range series {
		assert.Equal(t, "10:00", b.ScheduledTime)
	}
}

func TestReconcile_ShiftSkipsPastInstances(t *testing.T) {
	// Now sits between the second and third instance.
	bookings, _, svc := newSeries(t, day(2025, 1, 16), 3)
	parent := weeklyParent()
	require.NoError(t, bookings.Create(context.Background(), parent))
	_, err := svc.Materialize(context.Background(), parent)
	require.NoError(t, err)

	prev := ScheduleBefore{ScheduledDate: parent.ScheduledDate, ScheduledTime: parent.ScheduledTime, Frequency: parent.ServiceFrequency}
	parent.ScheduledDate = day(2025, 1, 3)

	res, err := svc.Reconcile(context.Background(), parent, prev)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Shifted) // only 01-22 is still in the future
	assert.Equal(t, []string{"2025-01-08", "2025-01-15", "2025-01-24"}, bookings.activeDates(parent.ID))
}

func TestReconcile_EditedBookingKeepsItsOwnNewDate(t *testing.T) {
	bookings, _, svc := newSeries(t, day(2024, 12, 30), 3)
	parent := weeklyParent()
	require.NoError(t, bookings.Create(context.Background(), parent))
	_, err := svc.Materialize(context.Background(), parent)
	require.NoError(t, err)

	// Persist the new anchor date before reconciling, the way
	// UpdateSchedule does. Moved forward, the booking now matches its
	// own series query and must not be shifted a second time.
	prev := ScheduleBefore{ScheduledDate: parent.ScheduledDate, ScheduledTime: parent.ScheduledTime, Frequency: parent.ServiceFrequency}
	parent.ScheduledDate = day(2025, 1, 2)
	require.NoError(t, bookings.Save(context.Background(), parent))

	res, err := svc.Reconcile(context.Background(), parent, prev)

	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Shifted: 3}, res)

	stored, err := bookings.FindByID(context.Background(), parent.ID)
	require.NoError(t, err)
	assert.Equal(t, day(2025, 1, 2), stored.ScheduledDate)
	assert.Equal(t, []string{"2025-01-09", "2025-01-16", "2025-01-23"}, bookings.activeDates(parent.ID))
}

// --- Reconciler: frequency change ---

func TestReconcile_WeeklyToBiweekly(t *testing.T) {
	bookings, _, svc := newSeries(t, day(2024, 12, 30), 3)
	parent := weeklyParent()
	require.NoError(t, bookings.Create(context.Background(), parent))
	_, err := svc.Materialize(context.Background(), parent)
	require.NoError(t, err)
	// Downstream: 01-08, 01-15, 01-22.

	prev := ScheduleBefore{ScheduledDate: parent.ScheduledDate, ScheduledTime: parent.ScheduledTime, Frequency: models.FrequencyWeekly}
	parent.ServiceFrequency = models.FrequencyBiweekly

	res, err := svc.Reconcile(context.Background(), parent, prev)

	require.NoError(t, err)
	// Biweekly from 01-01: 01-15, 01-29, 02-12. 01-15 is kept; 01-08 and
	// 01-22 are off-cadence; 01-29 and 02-12 are created.
	assert.Equal(t, ReconcileResult{Created: 2, Removed: 2}, res)
	assert.Equal(t, []string{"2025-01-15", "2025-01-29", "2025-02-12"}, bookings.activeDates(parent.ID))
}

func TestReconcile_KeptInstanceRetainsIdentity(t *testing.T) {
	bookings, _, svc := newSeries(t, day(2024, 12, 30), 3)
	parent := weeklyParent()
	require.NoError(t, bookings.Create(context.Background(), parent))
	_, err := svc.Materialize(context.Background(), parent)
	require.NoError(t, err)

	series, _ := bookings.FindSeriesAfter(context.Background(), parent.SeriesKey(), parent.ScheduledDate)
	var keptID uint
	for _, b := range series {
		if b.ScheduledDate.Equal(day(2025, 1, 15)) {
			keptID = b.ID
		}
	}
	require.NotZero(t, keptID)

	prev := ScheduleBefore{ScheduledDate: parent.ScheduledDate, ScheduledTime: parent.ScheduledTime, Frequency: models.FrequencyWeekly}
	parent.ServiceFrequency = models.FrequencyBiweekly
	_, err = svc.Reconcile(context.Background(), parent, prev)
	require.NoError(t, err)

	kept, err := bookings.FindByID(context.Background(), keptID)
	require.NoError(t, err)
	assert.Equal(t, day(2025, 1, 15), kept.ScheduledDate)
	assert.Equal(t, models.FrequencyBiweekly, kept.ServiceFrequency)
}

func TestReconcile_HistoryPreservedOnFrequencyChange(t *testing.T) {
	// "Now" is 2025-01-20: 01-08 and 01-15 are history, 01-22 is future.
	bookings, _, svc := newSeries(t, day(2025, 1, 20), 3)
	parent := weeklyParent()
	require.NoError(t, bookings.Create(context.Background(), parent))
	_, err := svc.Materialize(context.Background(), parent)
	require.NoError(t, err)

	prev := ScheduleBefore{ScheduledDate: parent.ScheduledDate, ScheduledTime: parent.ScheduledTime, Frequency: models.FrequencyWeekly}
	parent.ServiceFrequency = models.FrequencyMonthly

	res, err := svc.Reconcile(context.Background(), parent, prev)

	require.NoError(t, err)
	// Monthly from 01-01: 02-01, 03-01, 04-01 all created. Of the old
	// weekly instances only the future 01-22 is off-cadence-removable;
	// the past ones stay untouched regardless of cadence.
	assert.Equal(t, ReconcileResult{Created: 3, Removed: 1}, res)
	assert.Equal(t,
		[]string{"2025-01-08", "2025-01-15", "2025-02-01", "2025-03-01", "2025-04-01"},
		bookings.activeDates(parent.ID))
}

func TestReconcile_OffCadenceWithPaymentIsCancelledNotDeleted(t *testing.T) {
	bookings, payments, svc := newSeries(t, day(2024, 12, 30), 3)
	parent := weeklyParent()
	require.NoError(t, bookings.Create(context.Background(), parent))
	_, err := svc.Materialize(context.Background(), parent)
	require.NoError(t, err)

	series, _ := bookings.FindSeriesAfter(context.Background(), parent.SeriesKey(), parent.ScheduledDate)
	var heldID uint
	for _, b := range series {
		if b.ScheduledDate.Equal(day(2025, 1, 8)) {
			heldID = b.ID
		}
	}
	require.NotZero(t, heldID)
	ref := "pi_1"
	require.NoError(t, payments.Create(context.Background(), &models.Payment{
		BookingID: heldID, Amount: 120, ProviderRef: &ref, Status: models.PaymentStatusRequiresCapture,
	}))

	prev := ScheduleBefore{ScheduledDate: parent.ScheduledDate, ScheduledTime: parent.ScheduledTime, Frequency: models.FrequencyWeekly}
	parent.ServiceFrequency = models.FrequencyBiweekly
	_, err = svc.Reconcile(context.Background(), parent, prev)
	require.NoError(t, err)

	held, err := bookings.FindByID(context.Background(), heldID)
	require.NoError(t, err, "booking with payment history must not be hard-deleted")
	assert.Equal(t, models.StatusCancelled, held.Status)
	assert.Contains(t, held.Notes, "removed from series schedule")
}

func TestReconcile_SecondRunIsNoop(t *testing.T) {
	bookings, _, svc := newSeries(t, day(2024, 12, 30), 3)
	parent := weeklyParent()
	require.NoError(t, bookings.Create(context.Background(), parent))
	_, err := svc.Materialize(context.Background(), parent)
	require.NoError(t, err)

	prev := ScheduleBefore{ScheduledDate: parent.ScheduledDate, ScheduledTime: parent.ScheduledTime, Frequency: models.FrequencyWeekly}
	parent.ServiceFrequency = models.FrequencyBiweekly
	_, err = svc.Reconcile(context.Background(), parent, prev)
	require.NoError(t, err)

	// With no further edits the pre-update state equals the current one.
	samePrev := ScheduleBefore{ScheduledDate: parent.ScheduledDate, ScheduledTime: parent.ScheduledTime, Frequency: parent.ServiceFrequency}
	res, err := svc.Reconcile(context.Background(), parent, samePrev)

	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{}, res)
	assert.Equal(t, []string{"2025-01-15", "2025-01-29", "2025-02-12"}, bookings.activeDates(parent.ID))
}

func TestReconcile_NoDuplicateDatesAfterRepeatedEdits(t *testing.T) {
	bookings, _, svc := newSeries(t, day(2024, 12, 30), 3)
	parent := weeklyParent()
	require.NoError(t, bookings.Create(context.Background(), parent))
	_, err := svc.Materialize(context.Background(), parent)
	require.NoError(t, err)

	// weekly -> biweekly -> weekly
	prev := ScheduleBefore{ScheduledDate: parent.ScheduledDate, ScheduledTime: parent.ScheduledTime, Frequency: models.FrequencyWeekly}
	parent.ServiceFrequency = models.FrequencyBiweekly
	_, err = svc.Reconcile(context.Background(), parent, prev)
	require.NoError(t, err)

	prev.Frequency = models.FrequencyBiweekly
	parent.ServiceFrequency = models.FrequencyWeekly
	_, err = svc.Reconcile(context.Background(), parent, prev)
	require.NoError(t, err)

	dates := bookings.activeDates(parent.ID)
	seen := map[string]bool{}
	for _, d := range dates {
		assert.False(t, seen[d], "duplicate occurrence on %s", d)
		seen[d] = true
	}
}

func TestReconcile_SameDayComparisonIgnoresTimeNoise(t *testing.T) {
	bookings, _, svc := newSeries(t, day(2024, 12, 30), 2)
	parent := weeklyParent()
	require.NoError(t, bookings.Create(context.Background(), parent))
	_, err := svc.Materialize(context.Background(), parent)
	require.NoError(t, err)

	// Inject incidental time-of-day noise into a stored instance date.
	series, _ := bookings.FindSeriesAfter(context.Background(), parent.SeriesKey(), parent.ScheduledDate)
	noisy := series[1] // 01-15
	noisy.ScheduledDate = time.Date(2025, 1, 15, 11, 30, 0, 0, time.UTC)
	require.NoError(t, bookings.Save(context.Background(), &noisy))

	prev := ScheduleBefore{ScheduledDate: parent.ScheduledDate, ScheduledTime: parent.ScheduledTime, Frequency: models.FrequencyWeekly}
	parent.ServiceFrequency = models.FrequencyBiweekly
	res, err := svc.Reconcile(context.Background(), parent, prev)

	require.NoError(t, err)
	// The noisy 01-15 still matches the biweekly cadence point by
	// calendar date and is kept, not removed-and-recreated.
	assert.Equal(t, 1, res.Removed)
	_, err = bookings.FindByID(context.Background(), noisy.ID)
	assert.NoError(t, err)
}
