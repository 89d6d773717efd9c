package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/flosla/services/registration/config"
	"example.com/flosla/services/registration/internal/metrics"
	"example.com/flosla/services/registration/internal/paystack"
	"example.com/flosla/services/registration/internal/services"
)

// PaymentHandler handles payment-related HTTP requests
type PaymentHandler struct {
	paymentService *services.PaymentService
	paystackCfg    config.PaystackConfig
	metrics        *metrics.Metrics
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService *services.PaymentService, paystackCfg config.PaystackConfig, metricsCollector *metrics.Metrics) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		paystackCfg:    paystackCfg,
		metrics:        metricsCollector,
	}
}

// InitializePaymentRequest is the request body for payment initialization
type InitializePaymentRequest struct {
	RegistrationID string `json:"registrationId" binding:"required"`
	Reference      string `json:"reference" binding:"required"`
}

// HandleInitializePayment creates a provider transaction and returns the
// hosted authorization URL.
func (h *PaymentHandler) HandleInitializePayment(c *gin.Context) {
	var req InitializePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	registrationID, err := uuid.Parse(req.RegistrationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid registration ID"})
		return
	}

	authorizationURL, err := h.paymentService.InitializePayment(c.Request.Context(), registrationID, req.Reference)
	if err != nil {
		status := statusForError(err)
		log.Error().Err(err).Str("registration_id", req.RegistrationID).Msg("Payment initialization failed")
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"authorizationUrl": authorizationURL},
	})
}

// HandleVerifyPayment is the client-initiated verification poll
func (h *PaymentHandler) HandleVerifyPayment(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Payment reference is required"})
		return
	}

	result, err := h.paymentService.VerifyPayment(c.Request.Context(), reference)
	if err != nil {
		status := statusForError(err)
		log.Error().Err(err).Str("reference", reference).Msg("Payment verification failed")
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	if !result.Success {
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": "Payment verification failed",
			"status":  result.Status,
		})
		return
	}

	message := "Payment verified successfully"
	if result.AlreadyVerified {
		message = "Payment already verified"
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
		"data": gin.H{
			"registrationId": result.RegistrationID,
			"reference":      result.Reference,
			"amount":         result.Amount,
			"status":         result.Status,
		},
	})
}

// HandleWebhook receives provider-pushed notifications. The signature is
// checked against the exact raw bytes before any parsing or database
// access. Once the signature passes, the provider always gets a 200 so it
// stops retrying; internal failures are logged, not signaled.
func (h *PaymentHandler) HandleWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read request body"})
		return
	}

	signature := c.GetHeader(paystack.SignatureHeader)
	if !paystack.VerifySignature(h.paystackCfg.SecretKey, body, signature) {
		h.metrics.IncrCounter(metrics.WebhooksRejected)
		log.Warn().Str("client_ip", c.ClientIP()).Msg("Webhook signature rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": paystack.ErrSignatureInvalid.Error()})
		return
	}

	var event paystack.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		// Authenticated but unparseable; acknowledge to stop retries.
		log.Warn().Err(err).Msg("Ignoring unparseable webhook body")
		c.Status(http.StatusOK)
		return
	}

	if err := h.paymentService.HandleWebhook(c.Request.Context(), &event); err != nil {
		log.Error().Err(err).Str("event", event.Event).Msg("Webhook processing failed")
	}

	c.Status(http.StatusOK)
}

// RegisterRoutes registers the handler's routes
func (h *PaymentHandler) RegisterRoutes(api *gin.RouterGroup) {
	payments := api.Group("/payments")
	payments.POST("/initialize", h.HandleInitializePayment)
	payments.GET("/verify", h.HandleVerifyPayment)
	payments.POST("/webhook", h.HandleWebhook)
}

// statusForError maps service errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrRegistrationNotFound),
		errors.Is(err, services.ErrEventNotFound),
		errors.Is(err, services.ErrReceiptNotFound),
		errors.Is(err, services.ErrAdminNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAmountMismatch),
		errors.Is(err, services.ErrInvalidReference),
		errors.Is(err, services.ErrAlreadyPaid),
		errors.Is(err, services.ErrDuplicateRegistration),
		errors.Is(err, services.ErrEventExists),
		errors.Is(err, services.ErrAdminExists):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, paystack.ErrProviderUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
