package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/sprucehq/cleanops/internal/models"
	"github.com/sprucehq/cleanops/internal/payment"
	"github.com/sprucehq/cleanops/internal/repository"
	"gorm.io/gorm"
)

// ShouldHoldNow decides whether a payment hold is due. A nil delay means
// holds are always placed immediately. Otherwise the hold is due exactly
// when the booking is within delayHours of its scheduled start.
func ShouldHoldNow(scheduledAt, now time.Time, delayHours *int) bool {
	if delayHours == nil {
		return true
	}
	return scheduledAt.Sub(now) <= time.Duration(*delayHours)*time.Hour
}

// HoldResult reports one hold attempt. Exactly one of Placed, Skipped or
// Err describes the outcome; a failed attempt never fails the booking
// operation that triggered it.
type HoldResult struct {
	Placed  bool            `json:"placed"`
	Skipped bool            `json:"skipped"`
	Reason  string          `json:"reason,omitempty"`
	Payment *models.Payment `json:"payment,omitempty"`
	Err     error           `json:"-"`
}

type HoldService interface {
	PlaceHold(ctx context.Context, booking *models.Booking) HoldResult
	ReleaseHold(ctx context.Context, bookingID uint) error
	CaptureHold(ctx context.Context, bookingID uint) error
}

type holdService struct {
	paymentRepo repository.PaymentRepository
	clientRepo  repository.ClientRepository
	provider    payment.Provider
}

func NewHoldService(paymentRepo repository.PaymentRepository, clientRepo repository.ClientRepository, provider payment.Provider) HoldService {
	return &holdService{
		paymentRepo: paymentRepo,
		clientRepo:  clientRepo,
		provider:    provider,
	}
}

// PlaceHold resolves a usable payment method and creates a manual-capture
// authorization for the booking's price. A booking without a price,
// payment profile or method is skipped, not failed: it stays eligible for
// a later attempt.
func (s *holdService) PlaceHold(ctx context.Context, booking *models.Booking) HoldResult {
	if booking.Price == nil || *booking.Price <= 0 {
		return HoldResult{Skipped: true, Reason: "booking has no positive price"}
	}

	client, err := s.clientRepo.FindByID(ctx, booking.ClientID)
	if err != nil {
		return HoldResult{Err: fmt.Errorf("load client %s: %w", booking.ClientID, err)}
	}
	if client.StripeCustomerID == nil || *client.StripeCustomerID == "" {
		return HoldResult{Skipped: true, Reason: "client has no payment profile"}
	}

	methodID, ok, err := s.resolveMethod(ctx, client)
	if err != nil {
		return HoldResult{Err: err}
	}
	if !ok {
		return HoldResult{Skipped: true, Reason: "no payment method available"}
	}

	// Re-check the active-hold guard immediately before authorizing to
	// keep the race window with concurrent sweeps as small as possible.
	if _, err := s.paymentRepo.FindActiveHold(ctx, booking.ID); err == nil {
		return HoldResult{Skipped: true, Reason: "hold already active"}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return HoldResult{Err: fmt.Errorf("check active hold for booking %d: %w", booking.ID, err)}
	}

	auth, err := s.provider.CreateAuthorization(ctx, *client.StripeCustomerID, methodID, *booking.Price, map[string]string{
		"booking_id": strconv.FormatUint(uint64(booking.ID), 10),
		"client_id":  booking.ClientID,
	})
	if err != nil {
		log.Printf("[Hold] authorization failed for booking %d: %v", booking.ID, err)
		return HoldResult{Err: fmt.Errorf("authorize booking %d: %w", booking.ID, err)}
	}

	record := &models.Payment{
		BookingID:   booking.ID,
		Amount:      *booking.Price,
		ProviderRef: &auth.ID,
		IsCaptured:  false,
		Status:      auth.Status,
	}
	if err := s.paymentRepo.Create(ctx, record); err != nil {
		// The provider-side hold exists but the local record does not;
		// surface it loudly for manual cleanup.
		log.Printf("[Hold] authorization %s placed but payment record failed for booking %d: %v", auth.ID, booking.ID, err)
		return HoldResult{Err: fmt.Errorf("record hold for booking %d: %w", booking.ID, err)}
	}

	log.Printf("[Hold] placed hold %s (%s) for booking %d", auth.ID, auth.Status, booking.ID)
	return HoldResult{Placed: true, Payment: record}
}

// resolveMethod picks a payment method: locally saved methods first
// (default-first order from the repository), then the provider's own list
// with the oldest-created method as a conservative fallback.
func (s *holdService) resolveMethod(ctx context.Context, client *models.Client) (string, bool, error) {
	saved, err := s.clientRepo.FindPaymentMethods(ctx, client.ID)
	if err != nil {
		return "", false, fmt.Errorf("load saved methods for %s: %w", client.ID, err)
	}
	if len(saved) > 0 {
		return saved[0].ProviderMethodID, true, nil
	}

	remote, err := s.provider.ListPaymentMethods(ctx, *client.StripeCustomerID)
	if err != nil {
		return "", false, fmt.Errorf("list provider methods for %s: %w", client.ID, err)
	}
	if len(remote) == 0 {
		return "", false, nil
	}

	oldest := remote[0]
	for _, m := range remote[1:] {
		if m.Created < oldest.Created {
			oldest = m
		}
	}
	return oldest.ID, true, nil
}

// ReleaseHold cancels the booking's active authorization, if any. A
// missing hold is not an error; a provider failure is.
func (s *holdService) ReleaseHold(ctx context.Context, bookingID uint) error {
	hold, err := s.paymentRepo.FindActiveHold(ctx, bookingID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find active hold for booking %d: %w", bookingID, err)
	}

	if hold.ProviderRef != nil {
		auth, err := s.provider.CancelAuthorization(ctx, *hold.ProviderRef)
		if err != nil {
			return fmt.Errorf("cancel authorization %s: %w", *hold.ProviderRef, err)
		}
		if err := s.paymentRepo.UpdateStatus(ctx, hold.ID, auth.Status, false); err != nil {
			return fmt.Errorf("update payment %d: %w", hold.ID, err)
		}
		log.Printf("[Hold] released hold %s for booking %d", *hold.ProviderRef, bookingID)
		return nil
	}

	return s.paymentRepo.UpdateStatus(ctx, hold.ID, models.PaymentStatusCanceled, false)
}

// CaptureHold captures the booking's active authorization, turning the
// reserved amount into a charge.
func (s *holdService) CaptureHold(ctx context.Context, bookingID uint) error {
	hold, err := s.paymentRepo.FindActiveHold(ctx, bookingID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find active hold for booking %d: %w", bookingID, err)
	}
	if hold.ProviderRef == nil {
		return s.paymentRepo.UpdateStatus(ctx, hold.ID, models.PaymentStatusSucceeded, true)
	}

	auth, err := s.provider.CaptureAuthorization(ctx, *hold.ProviderRef)
	if err != nil {
		return fmt.Errorf("capture authorization %s: %w", *hold.ProviderRef, err)
	}
	if err := s.paymentRepo.UpdateStatus(ctx, hold.ID, auth.Status, true); err != nil {
		return fmt.Errorf("update payment %d: %w", hold.ID, err)
	}

	log.Printf("[Hold] captured hold %s for booking %d", *hold.ProviderRef, bookingID)
	return nil
}
