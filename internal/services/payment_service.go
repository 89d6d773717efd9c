package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/flosla/services/registration/internal/messaging"
	"example.com/flosla/services/registration/internal/metrics"
	"example.com/flosla/services/registration/internal/models"
	"example.com/flosla/services/registration/internal/paystack"
	"example.com/flosla/services/registration/internal/repositories"
	"example.com/flosla/services/registration/internal/tracing"
)

// ProviderClient is the slice of the Paystack API the reconciler needs
type ProviderClient interface {
	InitializeTransaction(ctx context.Context, req *paystack.InitializeRequest) (*paystack.InitializeData, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.TransactionData, error)
}

// PaymentIndexer indexes settled payments for search
type PaymentIndexer interface {
	IndexPayment(ctx context.Context, payment *models.Payment, registration *models.Registration, event *models.Event) error
}

// VerificationResult is returned by the client-initiated verification path
type VerificationResult struct {
	Success         bool      `json:"success"`
	Status          string    `json:"status"`
	Reference       string    `json:"reference"`
	RegistrationID  uuid.UUID `json:"registration_id,omitempty"`
	Amount          float64   `json:"amount,omitempty"`
	AlreadyVerified bool      `json:"already_verified,omitempty"`
}

// PaymentService reconciles provider-side payment state with local
// registration state. Two entry points converge on the same settlement
// transaction: the client-initiated verification poll and the
// provider-pushed webhook. There is no in-process coordination between
// them; correctness rests on the database transaction plus the unique
// index on payments.receipt_number.
type PaymentService struct {
	db          *gorm.DB
	regRepo     *repositories.RegistrationRepository
	paymentRepo *repositories.PaymentRepository
	eventRepo   *repositories.EventRepository
	provider    ProviderClient
	publisher   messaging.SettlementPublisher
	indexer     PaymentIndexer
	metrics     *metrics.Metrics
	tracer      tracing.Tracer
	callbackURL string
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	db *gorm.DB,
	readOnlyDB *gorm.DB,
	provider ProviderClient,
	publisher messaging.SettlementPublisher,
	indexer PaymentIndexer,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
	callbackURL string,
) *PaymentService {
	return &PaymentService{
		db:          db,
		regRepo:     repositories.NewRegistrationRepository(db, readOnlyDB),
		paymentRepo: repositories.NewPaymentRepository(db, readOnlyDB),
		eventRepo:   repositories.NewEventRepository(db, readOnlyDB),
		provider:    provider,
		publisher:   publisher,
		indexer:     indexer,
		metrics:     metricsCollector,
		tracer:      tracer,
		callbackURL: callbackURL,
	}
}

// InitializePayment creates a provider transaction for a pending
// registration and returns the hosted authorization URL.
func (s *PaymentService) InitializePayment(ctx context.Context, registrationID uuid.UUID, reference string) (string, error) {
	registration, err := s.regRepo.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(errors.Cause(err), gorm.ErrRecordNotFound) {
			return "", ErrRegistrationNotFound
		}
		return "", err
	}

	if registration.PaystackReference != reference {
		return "", ErrInvalidReference
	}

	if registration.PaymentStatus == models.PaymentStatusPaid {
		return "", ErrAlreadyPaid
	}

	event, err := s.eventRepo.GetByID(ctx, registration.EventID)
	if err != nil {
		if errors.Is(errors.Cause(err), gorm.ErrRecordNotFound) {
			return "", ErrEventNotFound
		}
		return "", err
	}

	data, err := s.provider.InitializeTransaction(ctx, &paystack.InitializeRequest{
		Email:       registration.ContactEmail(),
		Amount:      event.Amount,
		Reference:   registration.PaystackReference,
		Currency:    event.Currency,
		CallbackURL: s.callbackURL + "/payment/verify",
		Metadata: map[string]string{
			"registrationId": registration.ID.String(),
			"eventId":        event.ID.String(),
			"playerName":     registration.FullName(),
			"guardianName":   registration.GuardianFullName,
			"guardianPhone":  registration.GuardianPhoneNumber,
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to initialize provider transaction")
	}

	log.Info().
		Str("reference", registration.PaystackReference).
		Str("registration_id", registration.ID.String()).
		Int64("amount", event.Amount).
		Msg("Payment initialized")

	return data.AuthorizationURL, nil
}

// VerifyPayment is the client-initiated verification path. It asks the
// provider for the authoritative status of the reference, then applies the
// settlement transaction at most once. Safe to call repeatedly: an
// already-paid registration returns success with zero writes.
func (s *PaymentService) VerifyPayment(ctx context.Context, reference string) (*VerificationResult, error) {
	txn := s.tracer.StartTransaction("verify-payment")
	defer s.tracer.EndTransaction(txn)
	s.tracer.AddAttribute(txn, "reference", reference)

	span := s.tracer.StartSpan("provider-verify", txn)
	data, err := s.provider.VerifyTransaction(ctx, reference)
	span.End()
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	if data.Status != "success" {
		// Provider says the charge did not complete. No local state changes.
		return &VerificationResult{
			Success:   false,
			Status:    data.Status,
			Reference: reference,
		}, nil
	}

	registration, err := s.regRepo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(errors.Cause(err), gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	s.metrics.IncrCounter(metrics.PaymentsVerified)

	if registration.PaymentStatus == models.PaymentStatusPaid {
		return &VerificationResult{
			Success:         true,
			Status:          "success",
			Reference:       reference,
			RegistrationID:  registration.ID,
			Amount:          MajorUnits(data.Amount),
			AlreadyVerified: true,
		}, nil
	}

	event, err := s.eventRepo.GetByID(ctx, registration.EventID)
	if err != nil {
		if errors.Is(errors.Cause(err), gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	if data.Amount != event.Amount || data.Currency != event.Currency {
		s.metrics.IncrCounter(metrics.PaymentsMismatched)
		log.Error().
			Str("reference", reference).
			Int64("expected_amount", event.Amount).
			Int64("received_amount", data.Amount).
			Str("expected_currency", event.Currency).
			Str("received_currency", data.Currency).
			Msg("Amount/currency mismatch on verification")
		return nil, ErrAmountMismatch
	}

	settleSpan := s.tracer.StartSpan("settle", txn)
	settled, err := s.settle(ctx, registration, data)
	settleSpan.End()
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	if settled != nil {
		s.afterSettlement(ctx, settled, registration, event, "verify")
	}

	return &VerificationResult{
		Success:        true,
		Status:         "success",
		Reference:      reference,
		RegistrationID: registration.ID,
		Amount:         MajorUnits(data.Amount),
	}, nil
}

// HandleWebhook is the provider-pushed path. The caller has already
// authenticated the request signature against the raw body. The returned
// error is for logging only; the HTTP layer acknowledges 200 regardless so
// the provider does not retry-storm. A dropped webhook credit is later
// recovered by the client's own verify poll or the reconciliation sweep.
func (s *PaymentService) HandleWebhook(ctx context.Context, event *paystack.WebhookEvent) error {
	txn := s.tracer.StartTransaction("handle-webhook")
	defer s.tracer.EndTransaction(txn)

	s.metrics.IncrCounter(metrics.WebhooksReceived)

	if event.Event != paystack.EventChargeSuccess {
		s.metrics.IncrCounter(metrics.WebhooksIgnored)
		log.Debug().Str("event", event.Event).Msg("Ignoring webhook event type")
		return nil
	}

	data, err := paystack.ParseTransactionData(event.Data)
	if err != nil {
		s.metrics.IncrCounter(metrics.WebhooksIgnored)
		log.Warn().Err(err).Msg("Ignoring webhook with malformed data")
		return nil
	}

	s.tracer.AddAttribute(txn, "reference", data.Reference)

	registration, err := s.regRepo.GetByReference(ctx, data.Reference)
	if err != nil {
		if errors.Is(errors.Cause(err), gorm.ErrRecordNotFound) {
			log.Warn().Str("reference", data.Reference).Msg("Webhook for unknown reference")
			return nil
		}
		s.tracer.RecordError(txn, err)
		return errors.Wrap(err, "failed to look up registration for webhook")
	}

	if registration.PaymentStatus == models.PaymentStatusPaid {
		// The verify path got here first. Idempotent no-op.
		return nil
	}

	eventDoc, err := s.eventRepo.GetByID(ctx, registration.EventID)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return errors.Wrap(err, "failed to look up event for webhook")
	}

	if data.Amount != eventDoc.Amount || data.Currency != eventDoc.Currency {
		s.metrics.IncrCounter(metrics.PaymentsMismatched)
		log.Error().
			Str("reference", data.Reference).
			Int64("expected_amount", eventDoc.Amount).
			Int64("received_amount", data.Amount).
			Msg("Amount/currency mismatch on webhook, not crediting")
		return nil
	}

	settled, err := s.settle(ctx, registration, data)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return errors.Wrap(err, "webhook settlement transaction failed")
	}

	if settled != nil {
		s.afterSettlement(ctx, settled, registration, eventDoc, "webhook")
	}

	return nil
}

// settle flips the registration PENDING -> PAID and inserts the Payment row
// in one transaction. The status flip is a guarded update (compare-and-set
// on payment_status) and the insert is guarded by a receipt_number
// existence check, so two racing callers produce exactly one credit.
// Returns the created payment, or nil when another caller settled first.
func (s *PaymentService) settle(ctx context.Context, registration *models.Registration, data *paystack.TransactionData) (*models.Payment, error) {
	var payment *models.Payment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Registration{}).
			Where("id = ? AND payment_status = ?", registration.ID, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"payment_status":    models.PaymentStatusPaid,
				"receipt_generated": true,
			})
		if result.Error != nil {
			return errors.Wrap(result.Error, "failed to update registration status")
		}

		if result.RowsAffected == 0 {
			// Lost the race: the other trigger path already settled.
			return nil
		}

		var existing int64
		if err := tx.Model(&models.Payment{}).
			Where("receipt_number = ?", data.Reference).
			Count(&existing).Error; err != nil {
			return errors.Wrap(err, "failed to check for existing payment")
		}
		if existing > 0 {
			return nil
		}

		payment = &models.Payment{
			ID:               uuid.New(),
			RegistrationID:   registration.ID,
			ReceiptNumber:    data.Reference,
			Amount:           data.Amount,
			Currency:         data.Currency,
			Channel:          data.Channel,
			Status:           "success",
			PaystackResponse: data.Raw,
			PaidAt:           parsePaidAt(data.PaidAt),
		}
		if err := tx.Create(payment).Error; err != nil {
			payment = nil
			return errors.Wrap(err, "failed to create payment record")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if payment != nil {
		s.metrics.IncrCounter(metrics.PaymentsSettled)
		log.Info().
			Str("reference", payment.ReceiptNumber).
			Str("registration_id", registration.ID.String()).
			Int64("amount", payment.Amount).
			Str("channel", payment.Channel).
			Msg("Payment settled")
	}

	return payment, nil
}

// afterSettlement runs the non-transactional side effects: search indexing
// and the settlement notification. Failures here are logged and dropped;
// the credit has already committed and must not be disturbed.
func (s *PaymentService) afterSettlement(ctx context.Context, payment *models.Payment, registration *models.Registration, event *models.Event, via string) {
	if s.indexer != nil {
		if err := s.indexer.IndexPayment(ctx, payment, registration, event); err != nil {
			log.Warn().Err(err).Str("reference", payment.ReceiptNumber).Msg("Failed to index payment")
		}
	}

	if s.publisher != nil {
		msg := &messaging.SettlementMessage{
			Reference:      payment.ReceiptNumber,
			RegistrationID: registration.ID.String(),
			EventID:        event.ID.String(),
			Amount:         payment.Amount,
			Currency:       payment.Currency,
			Channel:        payment.Channel,
			PaidAt:         payment.PaidAt,
			SettledVia:     via,
		}
		if err := s.publisher.PublishSettlement(ctx, msg); err != nil {
			log.Warn().Err(err).Str("reference", payment.ReceiptNumber).Msg("Failed to publish settlement message")
		}
	}
}

// ReconcilePending re-verifies stale PENDING registrations against the
// provider. This is the safety net for webhook deliveries dropped during
// storage outages: the sweep finds any registration the provider settled
// but the service never credited, and routes it through the same
// idempotent verification path.
func (s *PaymentService) ReconcilePending(ctx context.Context, grace time.Duration, batch int) error {
	txn := s.tracer.StartTransaction("reconcile-pending")
	defer s.tracer.EndTransaction(txn)

	cutoff := time.Now().Add(-grace)
	registrations, err := s.regRepo.ListStalePending(ctx, cutoff, batch)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return errors.Wrap(err, "failed to list stale pending registrations")
	}

	if len(registrations) == 0 {
		return nil
	}

	log.Info().Int("count", len(registrations)).Msg("Reconciling stale pending registrations")

	for _, registration := range registrations {
		result, err := s.VerifyPayment(ctx, registration.PaystackReference)
		if err != nil {
			// Expected for registrations the guardian abandoned; the
			// provider has no successful charge for them.
			log.Debug().
				Err(err).
				Str("reference", registration.PaystackReference).
				Msg("Sweep verification did not settle")
			continue
		}
		if result.Success && !result.AlreadyVerified {
			s.metrics.IncrCounter(metrics.SweepRecovered)
			log.Info().
				Str("reference", registration.PaystackReference).
				Msg("Sweep recovered a dropped credit")
		}
	}

	return nil
}

func parsePaidAt(value string) time.Time {
	if value == "" {
		return time.Now().UTC()
	}
	paidAt, err := time.Parse(time.RFC3339, value)
	if err != nil {
		log.Warn().Str("paid_at", value).Msg("Unparseable paid_at from provider, using current time")
		return time.Now().UTC()
	}
	return paidAt
}

// MajorUnits converts a minor-currency-unit amount (kobo) to major units
// (naira) for human-facing views.
func MajorUnits(minor int64) float64 {
	return float64(minor) / 100
}
