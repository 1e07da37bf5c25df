package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a Payment row (§3).
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentVerified PaymentStatus = "verified"
	PaymentSettled  PaymentStatus = "settled"
	PaymentFailed   PaymentStatus = "failed"
)

// Terminal reports whether status transitions are no longer expected — a
// Payment is terminal once settled or failed, per §3's lifecycle note.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSettled || s == PaymentFailed
}

// Payment represents a row in the payments table — one audited settlement
// attempt against an Endpoint. EndpointID/TenantID are weak references
// (set-null on referent delete, §3) so history survives endpoint removal;
// that nullability is modeled with uuid.NullUUID.
type Payment struct {
	ID                   uuid.UUID       `json:"id"`
	EndpointID           uuid.NullUUID   `json:"endpoint_id"`
	TenantID             uuid.NullUUID   `json:"tenant_id"`
	PayerAddress         string          `json:"payer_address"`
	AmountUSD            decimal.Decimal `json:"amount_usd"`
	ChainID              int64           `json:"chain_id"`
	Network              string          `json:"network"`
	TxHash               string          `json:"tx_hash,omitempty"`
	Status               PaymentStatus   `json:"status"`
	PayloadJSON          []byte          `json:"payload_json,omitempty"`
	SettlementJSON       []byte          `json:"settlement_json,omitempty"`
	RequestPath          string          `json:"request_path"`
	RequestMethod        string          `json:"request_method"`
	ErrorMessage         string          `json:"error_message,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	SettledAt            *time.Time      `json:"settled_at,omitempty"`
}

// RequestLog represents a row in the request_logs table — an append-only
// audit trail entry for every inbound request handled by the pipeline.
type RequestLog struct {
	ID             uuid.UUID     `json:"id"`
	EndpointID     uuid.NullUUID `json:"endpoint_id"`
	TenantID       uuid.NullUUID `json:"tenant_id"`
	PaymentID      uuid.NullUUID `json:"payment_id"`
	Path           string        `json:"path"`
	Method         string        `json:"method"`
	StatusCode     int           `json:"status_code"`
	ElapsedMs      int64         `json:"elapsed_ms"`
	ClientIP       string        `json:"client_ip"`
	UserAgent      string        `json:"user_agent"`
	IsBrowser      bool          `json:"is_browser"`
	Paid           bool          `json:"paid"`
	RateLimited    bool          `json:"rate_limited"`
	CreatedAt      time.Time     `json:"created_at"`
}
