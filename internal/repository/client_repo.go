package repository

import (
	"context"

	"github.com/sprucehq/cleanops/internal/models"
	"gorm.io/gorm"
)

type ClientRepository interface {
	FindByID(ctx context.Context, id string) (*models.Client, error)
	FindPaymentMethods(ctx context.Context, clientID string) ([]models.PaymentMethod, error)
}

type clientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) FindByID(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).First(&client, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

// FindPaymentMethods returns the client's saved methods in resolution
// order: default methods first, most recently updated first within each
// group.
func (r *clientRepository) FindPaymentMethods(ctx context.Context, clientID string) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("is_default DESC, updated_at DESC").
		Find(&methods).Error
	if err != nil {
		return nil, err
	}
	return methods, nil
}
