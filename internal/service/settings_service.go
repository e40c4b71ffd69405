package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/sprucehq/cleanops/internal/models"
	"github.com/sprucehq/cleanops/internal/repository"
)

// Publisher is the queue-side seam used to trigger background work
// without blocking the request that caused it.
type Publisher interface {
	Publish(routingKey string, payload any) error
}

// SweepRequest is the message emitted when the hold backlog should be
// re-evaluated, e.g. right after the delay configuration changed.
type SweepRequest struct {
	RunID              string `json:"run_id"`
	OverrideDelayHours *int   `json:"override_delay_hours,omitempty"`
}

const SweepRequestedKey = "sweep.requested"

type SettingsService interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	UpdateSettings(ctx context.Context, settings *models.Settings) (*models.Settings, error)
}

type settingsService struct {
	repo      repository.SettingsRepository
	publisher Publisher
}

func NewSettingsService(repo repository.SettingsRepository, publisher Publisher) SettingsService {
	return &settingsService{repo: repo, publisher: publisher}
}

func (s *settingsService) GetSettings(ctx context.Context) (*models.Settings, error) {
	return s.repo.Get(ctx)
}

// UpdateSettings saves the singleton and, when the hold delay is set,
// fires a sweep request carrying the new delay so bookings that just
// entered the window get their holds without waiting for the next
// scheduled run. The request is fire-and-forget: publish failure is
// logged, the save stands.
func (s *settingsService) UpdateSettings(ctx context.Context, settings *models.Settings) (*models.Settings, error) {
	if settings.PaymentHoldDelayHours != nil && *settings.PaymentHoldDelayHours < 0 {
		return nil, fmt.Errorf("payment hold delay must not be negative")
	}
	if settings.CancellationWindowHours < 0 {
		return nil, fmt.Errorf("cancellation window must not be negative")
	}
	if settings.CancellationFee < 0 {
		return nil, fmt.Errorf("cancellation fee must not be negative")
	}

	if err := s.repo.Save(ctx, settings); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}

	if s.publisher != nil && settings.PaymentHoldDelayHours != nil {
		req := SweepRequest{
			RunID:              uuid.NewString(),
			OverrideDelayHours: settings.PaymentHoldDelayHours,
		}
		if err := s.publisher.Publish(SweepRequestedKey, req); err != nil {
			log.Printf("[Settings] failed to request sweep after update: %v", err)
		}
	}
	return settings, nil
}
