package facilitator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teresa-solution/x402-gateway/internal/model"
)

func TestClient_Verify_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/verify", r.URL.Path)
		_ = json.NewEncoder(w).Encode(VerifyResult{IsValid: true, Payer: "0xB"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	result := c.Verify(context.Background(), &model.PaymentPayload{}, model.PaymentRequirement{})
	assert.True(t, result.IsValid)
	assert.Equal(t, "0xB", result.Payer)
}

func TestClient_Verify_NonTwoXXMapsToInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	result := c.Verify(context.Background(), &model.PaymentPayload{}, model.PaymentRequirement{})
	assert.False(t, result.IsValid)
	assert.NotEmpty(t, result.InvalidReason)
}

func TestClient_Verify_TransportErrorMapsToInvalid(t *testing.T) {
	c := New("http://127.0.0.1:1")
	result := c.Verify(context.Background(), &model.PaymentPayload{}, model.PaymentRequirement{})
	assert.False(t, result.IsValid)
	assert.NotEmpty(t, result.InvalidReason)
}

func TestClient_Settle_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/settle", r.URL.Path)
		_ = json.NewEncoder(w).Encode(SettleResult{Success: true, Transaction: "0xT"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	result := c.Settle(context.Background(), &model.PaymentPayload{}, model.PaymentRequirement{})
	assert.True(t, result.Success)
	assert.Equal(t, "0xT", result.Transaction)
}

func TestClient_Settle_TransportErrorMapsToFailure(t *testing.T) {
	c := New("http://127.0.0.1:1")
	result := c.Settle(context.Background(), &model.PaymentPayload{}, model.PaymentRequirement{})
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.ErrorReason)
}
