package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/flosla/services/registration/internal/cache"
	"example.com/flosla/services/registration/internal/models"
	"example.com/flosla/services/registration/internal/repositories"
)

const receiptTTL = time.Hour

// ReceiptView is the human-facing receipt derived from a settled payment.
// Amount is in major currency units.
type ReceiptView struct {
	ReceiptNumber string    `json:"receipt_number"`
	PlayerName    string    `json:"player_name"`
	GuardianName  string    `json:"guardian_name"`
	Email         string    `json:"email"`
	EventName     string    `json:"event_name"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Channel       string    `json:"channel"`
	PaidAt        time.Time `json:"paid_at"`
}

// ReceiptStatus reports whether a reference corresponds to a paid registration
type ReceiptStatus struct {
	Valid  bool   `json:"valid"`
	Status string `json:"status"`
}

// FormatReceipt flattens a payment, its registration and the event into a
// receipt view. Pure; the caller is responsible for existence checks.
func FormatReceipt(payment *models.Payment, registration *models.Registration, event *models.Event) ReceiptView {
	return ReceiptView{
		ReceiptNumber: payment.ReceiptNumber,
		PlayerName:    registration.FullName(),
		GuardianName:  registration.GuardianFullName,
		Email:         registration.ContactEmail(),
		EventName:     event.Name,
		Amount:        MajorUnits(payment.Amount),
		Currency:      payment.Currency,
		Channel:       payment.Channel,
		PaidAt:        payment.PaidAt,
	}
}

// ReceiptService materializes receipts for settled payments
type ReceiptService struct {
	paymentRepo *repositories.PaymentRepository
	regRepo     *repositories.RegistrationRepository
	eventRepo   *repositories.EventRepository
	cache       *cache.RedisCache
}

// NewReceiptService creates a new receipt service
func NewReceiptService(db *gorm.DB, readOnlyDB *gorm.DB, redisCache *cache.RedisCache) *ReceiptService {
	return &ReceiptService{
		paymentRepo: repositories.NewPaymentRepository(db, readOnlyDB),
		regRepo:     repositories.NewRegistrationRepository(db, readOnlyDB),
		eventRepo:   repositories.NewEventRepository(db, readOnlyDB),
		cache:       redisCache,
	}
}

// GetReceipt returns the receipt view for a settled reference. Payments are
// immutable once written, so the cached view never goes stale.
func (s *ReceiptService) GetReceipt(ctx context.Context, reference string) (*ReceiptView, error) {
	var cached ReceiptView
	if err := s.cache.Get(ctx, cache.ReceiptKey(reference), &cached); err == nil {
		return &cached, nil
	}

	payment, err := s.paymentRepo.GetByReceiptNumber(ctx, reference)
	if err != nil {
		if errors.Is(errors.Cause(err), gorm.ErrRecordNotFound) {
			return nil, ErrReceiptNotFound
		}
		return nil, err
	}

	registration, err := s.regRepo.GetByID(ctx, payment.RegistrationID)
	if err != nil {
		if errors.Is(errors.Cause(err), gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}

	event, err := s.eventRepo.GetByID(ctx, registration.EventID)
	if err != nil {
		if errors.Is(errors.Cause(err), gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	receipt := FormatReceipt(payment, registration, event)

	if err := s.cache.Set(ctx, cache.ReceiptKey(reference), receipt, receiptTTL); err != nil {
		log.Warn().Err(err).Str("reference", reference).Msg("Failed to cache receipt")
	}

	return &receipt, nil
}

// VerifyReceipt reports whether a reference corresponds to a paid
// registration. Unknown references are a soft NOT_FOUND result, not an
// error, so the public check endpoint never leaks registration details.
func (s *ReceiptService) VerifyReceipt(ctx context.Context, reference string) (*ReceiptStatus, error) {
	registration, err := s.regRepo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(errors.Cause(err), gorm.ErrRecordNotFound) {
			return &ReceiptStatus{Valid: false, Status: "NOT_FOUND"}, nil
		}
		return nil, err
	}

	return &ReceiptStatus{
		Valid:  registration.PaymentStatus == models.PaymentStatusPaid,
		Status: registration.PaymentStatus,
	}, nil
}
