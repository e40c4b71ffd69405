package repository

import (
	"context"
	"errors"

	"github.com/sprucehq/cleanops/internal/models"
	"gorm.io/gorm"
)

type SettingsRepository interface {
	Get(ctx context.Context) (*models.Settings, error)
	Save(ctx context.Context, settings *models.Settings) error
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// Get reads the singleton settings row, creating it with defaults on
// first access.
func (r *settingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	err := r.db.WithContext(ctx).First(&settings, models.SettingsID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = models.Settings{ID: models.SettingsID, CancellationWindowHours: 24}
		if err := r.db.WithContext(ctx).Create(&settings).Error; err != nil {
			return nil, err
		}
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *settingsRepository) Save(ctx context.Context, settings *models.Settings) error {
	settings.ID = models.SettingsID
	return r.db.WithContext(ctx).Save(settings).Error
}
