package facilitator

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/teresa-solution/x402-gateway/internal/model"
)

const (
	headerXPaymentSignature = "X-PAYMENT-SIGNATURE"
	headerPaymentSignature  = "PAYMENT-SIGNATURE"
)

// ParsePaymentHeader reads either X-PAYMENT-SIGNATURE or PAYMENT-SIGNATURE
// from the request, base64+JSON-decodes it into a PaymentPayload, and
// returns nil when the header is absent or malformed — per §4.4.1, this
// never returns an error to the caller, only a diagnostic log line.
func ParsePaymentHeader(h http.Header) *model.PaymentPayload {
	decoded := decodePaymentHeader(h)
	if decoded == nil {
		return nil
	}

	var payload model.PaymentPayload
	if err := json.Unmarshal(decoded, &payload); err != nil {
		log.Warn().Err(err).Msg("facilitator: malformed payment header json")
		return nil
	}

	return &payload
}

// ParseInnerPayloadRaw decodes the same header as ParsePaymentHeader but
// returns the generic `payload` sub-object untyped, so ExtractPayer can
// search fields the typed InnerPayload struct doesn't model (protocols in
// the wild carry extra fields in the inner payload per §4.4.5).
func ParseInnerPayloadRaw(h http.Header) map[string]interface{} {
	decoded := decodePaymentHeader(h)
	if decoded == nil {
		return nil
	}

	var full map[string]interface{}
	if err := json.Unmarshal(decoded, &full); err != nil {
		return nil
	}
	inner, _ := full["payload"].(map[string]interface{})
	return inner
}

func decodePaymentHeader(h http.Header) []byte {
	raw := h.Get(headerXPaymentSignature)
	if raw == "" {
		raw = h.Get(headerPaymentSignature)
	}
	if raw == "" {
		return nil
	}

	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		log.Warn().Err(err).Msg("facilitator: malformed payment header base64")
		return nil
	}
	return decoded
}

// ExtractPayer derives the payer address from a decoded payment payload
// when the facilitator's verify response omits one, searching in the
// order prescribed by §4.4.5: top-level from, authorization.from, sender,
// payer. It never fails — "unknown" is a valid, expected result.
func ExtractPayer(payload *model.PaymentPayload, rawInner map[string]interface{}) string {
	if from, ok := stringField(rawInner, "from"); ok {
		return from
	}
	if auth, ok := rawInner["authorization"].(map[string]interface{}); ok {
		if from, ok := stringField(auth, "from"); ok {
			return from
		}
	}
	if payload != nil && payload.Payload.Authorization.From != "" {
		return payload.Payload.Authorization.From
	}
	if sender, ok := stringField(rawInner, "sender"); ok {
		return sender
	}
	if payer, ok := stringField(rawInner, "payer"); ok {
		return payer
	}
	return "unknown"
}

func stringField(m map[string]interface{}, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
