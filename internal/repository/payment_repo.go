package repository

import (
	"context"

	"github.com/sprucehq/cleanops/internal/models"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByBookingID(ctx context.Context, bookingID uint) ([]models.Payment, error)
	FindActiveHold(ctx context.Context, bookingID uint) (*models.Payment, error)
	UpdateStatus(ctx context.Context, id uint, status string, captured bool) error
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepository) FindByBookingID(ctx context.Context, bookingID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("id ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// FindActiveHold returns the booking's uncaptured, still-live authorization,
// or gorm.ErrRecordNotFound when none exists.
func (r *paymentRepository) FindActiveHold(ctx context.Context, bookingID uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("booking_id = ? AND is_captured = false AND status NOT IN ?",
			bookingID, []string{models.PaymentStatusCanceled, models.PaymentStatusFailed}).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, id uint, status string, captured bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "is_captured": captured}).Error
}
