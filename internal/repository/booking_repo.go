package repository

import (
	"context"
	"time"

	"github.com/sprucehq/cleanops/internal/models"
	"gorm.io/gorm"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	CreateAll(ctx context.Context, bookings []*models.Booking) error
	FindByID(ctx context.Context, id uint) (*models.Booking, error)
	Save(ctx context.Context, booking *models.Booking) error
	UpdateSchedule(ctx context.Context, id uint, date time.Time, timeOfDay string) error
	UpdateStatus(ctx context.Context, id uint, status models.BookingStatus) error
	Delete(ctx context.Context, id uint) error
	FindSeriesAfter(ctx context.Context, key models.SeriesKey, after time.Time) ([]models.Booking, error)
	FindScheduledBetween(ctx context.Context, from, to time.Time, excludeStatuses []models.BookingStatus) ([]models.Booking, error)
	FindByClient(ctx context.Context, clientID string, status *models.BookingStatus, from, to *time.Time) ([]models.Booking, error)
}

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *bookingRepository) CreateAll(ctx context.Context, bookings []*models.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(bookings).Error
}

func (r *bookingRepository) FindByID(ctx context.Context, id uint) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).First(&booking, id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) Save(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Save(booking).Error
}

func (r *bookingRepository) UpdateSchedule(ctx context.Context, id uint, date time.Time, timeOfDay string) error {
	return r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", id).
		Updates(map[string]any{"scheduled_date": date, "scheduled_time": timeOfDay}).Error
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, id uint, status models.BookingStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *bookingRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Booking{}, id).Error
}

// FindSeriesAfter returns the downstream instances of a series: bookings
// sharing the series key, scheduled strictly after the given date, that
// are still live (not cancelled or completed). Ordered by date so callers
// can walk the series forward.
func (r *bookingRepository) FindSeriesAfter(ctx context.Context, key models.SeriesKey, after time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND service_type = ? AND address = ? AND service_frequency = ?",
			key.ClientID, key.ServiceType, key.Address, key.Frequency).
		Where("scheduled_date > ?", after).
		Where("status NOT IN ?", []models.BookingStatus{models.StatusCancelled, models.StatusCompleted}).
		Order("scheduled_date ASC, id ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *bookingRepository) FindScheduledBetween(ctx context.Context, from, to time.Time, excludeStatuses []models.BookingStatus) ([]models.Booking, error) {
	var bookings []models.Booking
	q := r.db.WithContext(ctx).
		Where("scheduled_date > ? AND scheduled_date <= ?", from, to)
	if len(excludeStatuses) > 0 {
		q = q.Where("status NOT IN ?", excludeStatuses)
	}
	if err := q.Order("scheduled_date ASC, id ASC").Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *bookingRepository) FindByClient(ctx context.Context, clientID string, status *models.BookingStatus, from, to *time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	q := r.db.WithContext(ctx).Where("client_id = ?", clientID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if from != nil {
		q = q.Where("scheduled_date >= ?", *from)
	}
	if to != nil {
		q = q.Where("scheduled_date <= ?", *to)
	}
	if err := q.Order("scheduled_date ASC, id ASC").Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}
