package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"example.com/flosla/services/registration/config"
)

// ErrProviderUnavailable marks network failures, timeouts and unexpected
// response shapes from Paystack. Callers may retry; it never indicates
// payment success or failure.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// EventChargeSuccess is the only webhook event type that triggers a credit
const EventChargeSuccess = "charge.success"

// InitializeRequest is the payload for POST /transaction/initialize.
// Amount is in minor currency units.
type InitializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Reference   string            `json:"reference"`
	Currency    string            `json:"currency"`
	CallbackURL string            `json:"callback_url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// InitializeData is the data object of an initialize response
type InitializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// TransactionData is the authoritative provider view of a transaction,
// returned by GET /transaction/verify/{reference} and carried in webhook
// payloads.
type TransactionData struct {
	ID              int64           `json:"id"`
	Status          string          `json:"status"`
	Reference       string          `json:"reference"`
	Amount          int64           `json:"amount"`
	Currency        string          `json:"currency"`
	Channel         string          `json:"channel"`
	GatewayResponse string          `json:"gateway_response"`
	PaidAt          string          `json:"paid_at"`
	Raw             json.RawMessage `json:"-"`
}

// WebhookEvent is the envelope of a provider-pushed notification
type WebhookEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the Paystack REST API
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient creates a new Paystack client. The configured timeout bounds
// every outbound call.
func NewClient(cfg config.PaystackConfig) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		secretKey: cfg.SecretKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// InitializeTransaction creates a provider transaction for a reference and
// returns the hosted authorization URL.
func (c *Client) InitializeTransaction(ctx context.Context, req *InitializeRequest) (*InitializeData, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal initialize request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build initialize request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	envelope, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var data InitializeData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, errors.Wrapf(ErrProviderUnavailable, "unexpected initialize response shape: %v", err)
	}
	if data.AuthorizationURL == "" {
		return nil, errors.Wrap(ErrProviderUnavailable, "initialize response missing authorization_url")
	}

	return &data, nil
}

// VerifyTransaction fetches the authoritative status of a reference.
// Client-supplied amounts and statuses are never trusted; this is the only
// source of truth for the reconciler.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*TransactionData, error) {
	url := fmt.Sprintf("%s/transaction/verify/%s", c.baseURL, reference)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build verify request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

	envelope, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	data, err := ParseTransactionData(envelope.Data)
	if err != nil {
		return nil, errors.Wrapf(ErrProviderUnavailable, "unexpected verify response shape: %v", err)
	}

	return data, nil
}

// ParseTransactionData decodes a provider data object, preserving the
// verbatim payload for audit storage.
func ParseTransactionData(raw json.RawMessage) (*TransactionData, error) {
	var data TransactionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if data.Reference == "" {
		return nil, errors.New("missing transaction reference")
	}
	data.Raw = raw
	return &data, nil
}

func (c *Client) do(req *http.Request) (*apiEnvelope, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrProviderUnavailable, "paystack request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(ErrProviderUnavailable, "failed to read paystack response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Wrapf(ErrProviderUnavailable, "paystack returned status %d: %s", resp.StatusCode, body)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Wrapf(ErrProviderUnavailable, "failed to decode paystack response: %v", err)
	}
	if !envelope.Status {
		return nil, errors.Wrapf(ErrProviderUnavailable, "paystack request rejected: %s", envelope.Message)
	}

	return &envelope, nil
}
