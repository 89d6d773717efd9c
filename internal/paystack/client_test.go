package paystack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/flosla/services/registration/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.PaystackConfig{
		SecretKey: "sk_test_abc123",
		BaseURL:   baseURL,
		Timeout:   2 * time.Second,
	})
}

func TestVerifyTransactionSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/transaction/verify/EVT_ABC123", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_abc123", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": true,
			"message": "Verification successful",
			"data": {
				"id": 12345,
				"status": "success",
				"reference": "EVT_ABC123",
				"amount": 500000,
				"currency": "NGN",
				"channel": "card",
				"gateway_response": "Successful",
				"paid_at": "2024-01-01T00:00:00Z"
			}
		}`))
	}))
	defer server.Close()

	data, err := newTestClient(server.URL).VerifyTransaction(context.Background(), "EVT_ABC123")
	require.NoError(t, err)
	assert.Equal(t, "success", data.Status)
	assert.Equal(t, "EVT_ABC123", data.Reference)
	assert.Equal(t, int64(500000), data.Amount)
	assert.Equal(t, "NGN", data.Currency)
	assert.Equal(t, "card", data.Channel)
	assert.Equal(t, "2024-01-01T00:00:00Z", data.PaidAt)
	assert.NotEmpty(t, data.Raw)
}

func TestVerifyTransactionFailedCharge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"status": true,
			"message": "Verification successful",
			"data": {"status": "failed", "reference": "EVT_ABC123", "amount": 500000, "currency": "NGN"}
		}`))
	}))
	defer server.Close()

	// A failed charge is a valid answer, not a transport error
	data, err := newTestClient(server.URL).VerifyTransaction(context.Background(), "EVT_ABC123")
	require.NoError(t, err)
	assert.Equal(t, "failed", data.Status)
}

func TestVerifyTransactionServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).VerifyTransaction(context.Background(), "EVT_ABC123")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestVerifyTransactionRejectedEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": false, "message": "Transaction reference not found"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).VerifyTransaction(context.Background(), "EVT_NOBODY")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestVerifyTransactionMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway timeout</html>`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).VerifyTransaction(context.Background(), "EVT_ABC123")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestVerifyTransactionConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := newTestClient(server.URL).VerifyTransaction(context.Background(), "EVT_ABC123")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestInitializeTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req InitializeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ngozi@example.com", req.Email)
		assert.Equal(t, int64(500000), req.Amount)
		assert.Equal(t, "EVT_ABC123", req.Reference)

		w.Write([]byte(`{
			"status": true,
			"message": "Authorization URL created",
			"data": {
				"authorization_url": "https://checkout.paystack.com/abc123",
				"access_code": "abc123",
				"reference": "EVT_ABC123"
			}
		}`))
	}))
	defer server.Close()

	data, err := newTestClient(server.URL).InitializeTransaction(context.Background(), &InitializeRequest{
		Email:     "ngozi@example.com",
		Amount:    500000,
		Reference: "EVT_ABC123",
		Currency:  "NGN",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc123", data.AuthorizationURL)
}

func TestInitializeTransactionMissingURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": true, "message": "ok", "data": {}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).InitializeTransaction(context.Background(), &InitializeRequest{
		Email:     "ngozi@example.com",
		Amount:    500000,
		Reference: "EVT_ABC123",
	})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestParseTransactionDataMissingReference(t *testing.T) {
	_, err := ParseTransactionData(json.RawMessage(`{"status":"success","amount":500000}`))
	assert.Error(t, err)
}
