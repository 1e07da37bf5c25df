package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/teresa-solution/x402-gateway/internal/model"
	"github.com/teresa-solution/x402-gateway/internal/monitoring"
)

const (
	defaultTimeout = 10 * time.Second
)

// VerifyResult is the facilitator's verdict on a PaymentPayload (§4.4.4).
type VerifyResult struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResult is the facilitator's outcome from committing a payment
// on-chain (§4.4.4).
type SettleResult struct {
	Success      bool   `json:"success"`
	Transaction  string `json:"transaction,omitempty"`
	ErrorReason  string `json:"errorReason,omitempty"`
}

type verifyRequest struct {
	Payload     *model.PaymentPayload     `json:"payload"`
	Requirement model.PaymentRequirement `json:"requirement"`
}

type settleRequest struct {
	Payload     *model.PaymentPayload     `json:"payload"`
	Requirement model.PaymentRequirement `json:"requirement"`
}

// Client talks to the external x402 facilitator over HTTP (§4.4.4, §6.3).
// It is built once at process start (§9's "initialize eagerly" design note
// — this replaces the lazy-singleton pattern the source used) and every
// method is safe for concurrent use: http.Client itself is concurrency-safe
// and Client carries no other mutable state.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New builds a Client against baseURL. It makes no network call; an
// unreachable facilitator first shows up as a failed Verify or Settle.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Verify asks the facilitator to validate payload against requirement.
// Every failure mode — transport error, non-2xx, malformed response body —
// is mapped to a structured {isValid:false, invalidReason} rather than
// returned as an error, per §4.4.4: "the client never throws to callers".
func (c *Client) Verify(ctx context.Context, payload *model.PaymentPayload, requirement model.PaymentRequirement) VerifyResult {
	var result VerifyResult
	start := time.Now()
	status, err := c.post(ctx, "/verify", verifyRequest{Payload: payload, Requirement: requirement}, &result)
	elapsed := time.Since(start)
	monitoring.FacilitatorLatency.WithLabelValues("verify").Observe(elapsed.Seconds())
	monitoring.LogFacilitatorCall(monitoring.FacilitatorCallLog{RPC: "verify", HTTPStatus: status, Duration: elapsed, Err: err})
	if err != nil {
		log.Warn().Err(err).Msg("facilitator: verify call failed")
		return VerifyResult{IsValid: false, InvalidReason: "facilitator unreachable"}
	}
	return result
}

// Settle asks the facilitator to commit payload on-chain against
// requirement. Failure modes are mapped to {success:false, errorReason}
// exactly as Verify maps to invalidReason.
func (c *Client) Settle(ctx context.Context, payload *model.PaymentPayload, requirement model.PaymentRequirement) SettleResult {
	var result SettleResult
	start := time.Now()
	status, err := c.post(ctx, "/settle", settleRequest{Payload: payload, Requirement: requirement}, &result)
	elapsed := time.Since(start)
	monitoring.FacilitatorLatency.WithLabelValues("settle").Observe(elapsed.Seconds())
	monitoring.LogFacilitatorCall(monitoring.FacilitatorCallLog{RPC: "settle", HTTPStatus: status, Duration: elapsed, Err: err})
	if err != nil {
		log.Warn().Err(err).Msg("facilitator: settle call failed")
		return SettleResult{Success: false, ErrorReason: "facilitator unreachable"}
	}
	return result
}

// post returns the HTTP status code it observed (0 if the request never
// reached the server) alongside any error, so callers can attach it to the
// diagnostic call log even on failure.
func (c *Client) post(ctx context.Context, path string, body, out interface{}) (int, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &httpStatusError{status: resp.StatusCode}
	}

	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return http.StatusText(e.status)
}
