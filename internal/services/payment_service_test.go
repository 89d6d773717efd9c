package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"example.com/flosla/services/registration/config"
	"example.com/flosla/services/registration/internal/metrics"
	"example.com/flosla/services/registration/internal/models"
	"example.com/flosla/services/registration/internal/paystack"
	"example.com/flosla/services/registration/internal/tracing"
)

// stubProvider fakes the Paystack API
type stubProvider struct {
	verifyData    *paystack.TransactionData
	verifyErr     error
	verifyCalls   int
	initializeURL string
}

func (p *stubProvider) VerifyTransaction(_ context.Context, reference string) (*paystack.TransactionData, error) {
	p.verifyCalls++
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	return p.verifyData, nil
}

func (p *stubProvider) InitializeTransaction(_ context.Context, _ *paystack.InitializeRequest) (*paystack.InitializeData, error) {
	return &paystack.InitializeData{AuthorizationURL: p.initializeURL}, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.SetupModels(db))

	return db
}

func newTestPaymentService(t *testing.T, db *gorm.DB, provider *stubProvider) *PaymentService {
	t.Helper()

	tracer, err := tracing.NewTracer(config.TracingConfig{})
	require.NoError(t, err)

	return NewPaymentService(db, db, provider, nil, nil, metrics.NewMetrics(), tracer, "http://localhost:3001")
}

func seedEventAndRegistration(t *testing.T, db *gorm.DB, reference string, amount int64) (*models.Event, *models.Registration) {
	t.Helper()

	event := &models.Event{
		ID:          uuid.New(),
		Name:        "U-13 Championship",
		Description: "Annual youth tournament",
		Amount:      amount,
		Currency:    "NGN",
		IsActive:    true,
	}
	require.NoError(t, db.Create(event).Error)

	registration := &models.Registration{
		ID:                  uuid.New(),
		EventID:             event.ID,
		FirstName:           "Ada",
		Surname:             "Obi",
		Sex:                 "female",
		DateOfBirth:         "2012-03-14",
		Age:                 12,
		StateOfResidence:    "Lagos",
		StateOfOrigin:       "Anambra",
		PositionOfPlay:      "midfielder",
		GuardianFullName:    "Ngozi Obi",
		GuardianPhoneNumber: "+2348012345678",
		PaymentStatus:       models.PaymentStatusPending,
		PaystackReference:   reference,
	}
	require.NoError(t, db.Create(registration).Error)

	return event, registration
}

func successData(reference string, amount int64) *paystack.TransactionData {
	raw, _ := json.Marshal(map[string]interface{}{
		"status": "success", "reference": reference, "amount": amount,
		"currency": "NGN", "channel": "card", "paid_at": "2024-01-01T00:00:00Z",
	})
	return &paystack.TransactionData{
		Status:    "success",
		Reference: reference,
		Amount:    amount,
		Currency:  "NGN",
		Channel:   "card",
		PaidAt:    "2024-01-01T00:00:00Z",
		Raw:       raw,
	}
}

func countPayments(t *testing.T, db *gorm.DB, reference string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Where("receipt_number = ?", reference).Count(&count).Error)
	return count
}

func reload(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Registration {
	t.Helper()
	var registration models.Registration
	require.NoError(t, db.First(&registration, "id = ?", id).Error)
	return &registration
}

func TestVerifyPaymentSettles(t *testing.T) {
	db := setupTestDB(t)
	provider := &stubProvider{verifyData: successData("EVT_ABC123", 500000)}
	svc := newTestPaymentService(t, db, provider)

	_, registration := seedEventAndRegistration(t, db, "EVT_ABC123", 500000)

	result, err := svc.VerifyPayment(context.Background(), "EVT_ABC123")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "success", result.Status)
	require.Equal(t, registration.ID, result.RegistrationID)
	require.Equal(t, float64(5000), result.Amount)
	require.False(t, result.AlreadyVerified)

	updated := reload(t, db, registration.ID)
	require.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)
	require.True(t, updated.ReceiptGenerated)

	var payment models.Payment
	require.NoError(t, db.First(&payment, "receipt_number = ?", "EVT_ABC123").Error)
	require.Equal(t, int64(500000), payment.Amount)
	require.Equal(t, "NGN", payment.Currency)
	require.Equal(t, "card", payment.Channel)
	require.Equal(t, "success", payment.Status)
	require.Equal(t, registration.ID, payment.RegistrationID)
	require.NotEmpty(t, payment.PaystackResponse)
}

func TestVerifyPaymentIdempotent(t *testing.T) {
	db := setupTestDB(t)
	provider := &stubProvider{verifyData: successData("EVT_IDEM1", 500000)}
	svc := newTestPaymentService(t, db, provider)

	_, registration := seedEventAndRegistration(t, db, "EVT_IDEM1", 500000)

	first, err := svc.VerifyPayment(context.Background(), "EVT_IDEM1")
	require.NoError(t, err)
	require.False(t, first.AlreadyVerified)

	firstState := reload(t, db, registration.ID)

	second, err := svc.VerifyPayment(context.Background(), "EVT_IDEM1")
	require.NoError(t, err)
	require.True(t, second.Success)
	require.True(t, second.AlreadyVerified)

	require.Equal(t, int64(1), countPayments(t, db, "EVT_IDEM1"))
	require.Equal(t, firstState.UpdatedAt, reload(t, db, registration.ID).UpdatedAt)
}

func TestVerifyPaymentProviderNonSuccess(t *testing.T) {
	db := setupTestDB(t)
	provider := &stubProvider{verifyData: &paystack.TransactionData{
		Status:    "failed",
		Reference: "EVT_FAIL1",
		Amount:    500000,
		Currency:  "NGN",
	}}
	svc := newTestPaymentService(t, db, provider)

	_, registration := seedEventAndRegistration(t, db, "EVT_FAIL1", 500000)

	result, err := svc.VerifyPayment(context.Background(), "EVT_FAIL1")
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, "failed", result.Status)

	require.Equal(t, models.PaymentStatusPending, reload(t, db, registration.ID).PaymentStatus)
	require.Equal(t, int64(0), countPayments(t, db, "EVT_FAIL1"))
}

func TestVerifyPaymentUnknownReference(t *testing.T) {
	db := setupTestDB(t)
	provider := &stubProvider{verifyData: successData("EVT_GHOST", 500000)}
	svc := newTestPaymentService(t, db, provider)

	_, err := svc.VerifyPayment(context.Background(), "EVT_GHOST")
	require.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestVerifyPaymentAmountMismatch(t *testing.T) {
	db := setupTestDB(t)
	// Provider reports a stale, lower amount
	provider := &stubProvider{verifyData: successData("EVT_TAMPER", 300000)}
	svc := newTestPaymentService(t, db, provider)

	_, registration := seedEventAndRegistration(t, db, "EVT_TAMPER", 500000)

	_, err := svc.VerifyPayment(context.Background(), "EVT_TAMPER")
	require.ErrorIs(t, err, ErrAmountMismatch)

	require.Equal(t, models.PaymentStatusPending, reload(t, db, registration.ID).PaymentStatus)
	require.Equal(t, int64(0), countPayments(t, db, "EVT_TAMPER"))
}

func TestVerifyPaymentCurrencyMismatch(t *testing.T) {
	db := setupTestDB(t)
	data := successData("EVT_CURR", 500000)
	data.Currency = "USD"
	provider := &stubProvider{verifyData: data}
	svc := newTestPaymentService(t, db, provider)

	_, registration := seedEventAndRegistration(t, db, "EVT_CURR", 500000)

	_, err := svc.VerifyPayment(context.Background(), "EVT_CURR")
	require.ErrorIs(t, err, ErrAmountMismatch)
	require.Equal(t, models.PaymentStatusPending, reload(t, db, registration.ID).PaymentStatus)
}

func TestVerifyPaymentProviderUnavailable(t *testing.T) {
	db := setupTestDB(t)
	provider := &stubProvider{verifyErr: paystack.ErrProviderUnavailable}
	svc := newTestPaymentService(t, db, provider)

	_, registration := seedEventAndRegistration(t, db, "EVT_DOWN", 500000)

	_, err := svc.VerifyPayment(context.Background(), "EVT_DOWN")
	require.ErrorIs(t, err, paystack.ErrProviderUnavailable)

	// Recoverable: nothing changed, a later retry can still settle
	require.Equal(t, models.PaymentStatusPending, reload(t, db, registration.ID).PaymentStatus)
}

func webhookEvent(t *testing.T, eventType, reference string, amount int64) *paystack.WebhookEvent {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{
		"status": "success", "reference": reference, "amount": amount,
		"currency": "NGN", "channel": "card", "paid_at": "2024-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	return &paystack.WebhookEvent{Event: eventType, Data: data}
}

func TestWebhookSettles(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestPaymentService(t, db, &stubProvider{})

	_, registration := seedEventAndRegistration(t, db, "EVT_HOOK1", 500000)

	err := svc.HandleWebhook(context.Background(), webhookEvent(t, paystack.EventChargeSuccess, "EVT_HOOK1", 500000))
	require.NoError(t, err)

	updated := reload(t, db, registration.ID)
	require.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)
	require.True(t, updated.ReceiptGenerated)
	require.Equal(t, int64(1), countPayments(t, db, "EVT_HOOK1"))
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestPaymentService(t, db, &stubProvider{})

	_, registration := seedEventAndRegistration(t, db, "EVT_HOOK2", 500000)

	err := svc.HandleWebhook(context.Background(), webhookEvent(t, "charge.dispute.create", "EVT_HOOK2", 500000))
	require.NoError(t, err)

	require.Equal(t, models.PaymentStatusPending, reload(t, db, registration.ID).PaymentStatus)
	require.Equal(t, int64(0), countPayments(t, db, "EVT_HOOK2"))
}

func TestWebhookUnknownReferenceAcknowledged(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestPaymentService(t, db, &stubProvider{})

	err := svc.HandleWebhook(context.Background(), webhookEvent(t, paystack.EventChargeSuccess, "EVT_NOBODY", 500000))
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestWebhookAmountMismatchNoCredit(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestPaymentService(t, db, &stubProvider{})

	_, registration := seedEventAndRegistration(t, db, "EVT_HOOK3", 500000)

	// Mismatched webhooks are acknowledged without crediting
	err := svc.HandleWebhook(context.Background(), webhookEvent(t, paystack.EventChargeSuccess, "EVT_HOOK3", 100))
	require.NoError(t, err)

	require.Equal(t, models.PaymentStatusPending, reload(t, db, registration.ID).PaymentStatus)
	require.Equal(t, int64(0), countPayments(t, db, "EVT_HOOK3"))
}

func TestWebhookAfterVerifyIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	provider := &stubProvider{verifyData: successData("EVT_RACE1", 500000)}
	svc := newTestPaymentService(t, db, provider)

	_, registration := seedEventAndRegistration(t, db, "EVT_RACE1", 500000)

	_, err := svc.VerifyPayment(context.Background(), "EVT_RACE1")
	require.NoError(t, err)

	err = svc.HandleWebhook(context.Background(), webhookEvent(t, paystack.EventChargeSuccess, "EVT_RACE1", 500000))
	require.NoError(t, err)

	require.Equal(t, int64(1), countPayments(t, db, "EVT_RACE1"))
	require.Equal(t, models.PaymentStatusPaid, reload(t, db, registration.ID).PaymentStatus)
}

func TestVerifyAfterWebhookIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	provider := &stubProvider{verifyData: successData("EVT_RACE2", 500000)}
	svc := newTestPaymentService(t, db, provider)

	_, registration := seedEventAndRegistration(t, db, "EVT_RACE2", 500000)

	err := svc.HandleWebhook(context.Background(), webhookEvent(t, paystack.EventChargeSuccess, "EVT_RACE2", 500000))
	require.NoError(t, err)

	result, err := svc.VerifyPayment(context.Background(), "EVT_RACE2")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.True(t, result.AlreadyVerified)

	require.Equal(t, int64(1), countPayments(t, db, "EVT_RACE2"))
	require.Equal(t, models.PaymentStatusPaid, reload(t, db, registration.ID).PaymentStatus)
}

func TestSettlementAtomicity(t *testing.T) {
	db := setupTestDB(t)
	provider := &stubProvider{verifyData: successData("EVT_ATOM1", 500000)}
	svc := newTestPaymentService(t, db, provider)

	_, registration := seedEventAndRegistration(t, db, "EVT_ATOM1", 500000)

	// Force the payment insert step to fail after the status update has
	// been applied inside the transaction.
	require.NoError(t, db.Migrator().DropTable(&models.Payment{}))

	_, err := svc.VerifyPayment(context.Background(), "EVT_ATOM1")
	require.Error(t, err)

	// Both-or-neither: the status flip must have rolled back with it
	require.Equal(t, models.PaymentStatusPending, reload(t, db, registration.ID).PaymentStatus)
	require.False(t, reload(t, db, registration.ID).ReceiptGenerated)

	// Once storage recovers, a retry settles normally
	require.NoError(t, db.AutoMigrate(&models.Payment{}))

	result, err := svc.VerifyPayment(context.Background(), "EVT_ATOM1")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, int64(1), countPayments(t, db, "EVT_ATOM1"))
}

func TestReconcilePendingRecoversDroppedCredit(t *testing.T) {
	db := setupTestDB(t)
	provider := &stubProvider{verifyData: successData("EVT_SWEEP1", 500000)}
	svc := newTestPaymentService(t, db, provider)

	_, registration := seedEventAndRegistration(t, db, "EVT_SWEEP1", 500000)

	// Backdate the registration past the sweep grace window
	require.NoError(t, db.Model(&models.Registration{}).
		Where("id = ?", registration.ID).
		Update("created_at", registration.CreatedAt.AddDate(0, 0, -1)).Error)

	require.NoError(t, svc.ReconcilePending(context.Background(), 0, 10))

	require.Equal(t, models.PaymentStatusPaid, reload(t, db, registration.ID).PaymentStatus)
	require.Equal(t, int64(1), countPayments(t, db, "EVT_SWEEP1"))
}

func TestInitializePayment(t *testing.T) {
	db := setupTestDB(t)
	provider := &stubProvider{initializeURL: "https://checkout.paystack.com/abc123"}
	svc := newTestPaymentService(t, db, provider)

	_, registration := seedEventAndRegistration(t, db, "EVT_INIT1", 500000)

	url, err := svc.InitializePayment(context.Background(), registration.ID, "EVT_INIT1")
	require.NoError(t, err)
	require.Equal(t, "https://checkout.paystack.com/abc123", url)
}

func TestInitializePaymentWrongReference(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestPaymentService(t, db, &stubProvider{})

	_, registration := seedEventAndRegistration(t, db, "EVT_INIT2", 500000)

	_, err := svc.InitializePayment(context.Background(), registration.ID, "EVT_OTHER")
	require.ErrorIs(t, err, ErrInvalidReference)
}

func TestInitializePaymentAlreadyPaid(t *testing.T) {
	db := setupTestDB(t)
	provider := &stubProvider{verifyData: successData("EVT_INIT3", 500000)}
	svc := newTestPaymentService(t, db, provider)

	_, registration := seedEventAndRegistration(t, db, "EVT_INIT3", 500000)

	_, err := svc.VerifyPayment(context.Background(), "EVT_INIT3")
	require.NoError(t, err)

	_, err = svc.InitializePayment(context.Background(), registration.ID, "EVT_INIT3")
	require.ErrorIs(t, err, ErrAlreadyPaid)
}
