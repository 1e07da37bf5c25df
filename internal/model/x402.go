package model

// PaymentRequirement is the ephemeral "accepts" entry of an x402 402 body
// (§3, §4.4.3, §6.2).
type PaymentRequirement struct {
	Scheme            string            `json:"scheme"`
	Network           string            `json:"network"`
	Amount            string            `json:"amount"`
	PayTo             string            `json:"payTo"`
	Asset             string            `json:"asset"`
	MaxTimeoutSeconds int               `json:"maxTimeoutSeconds"`
	Extra             map[string]string `json:"extra"`
}

// Authorization is the signed EIP-3009-style transfer authorization carried
// inside a PaymentPayload's inner payload (§6.2).
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// InnerPayload is the `payload` field of a PaymentPayload: a signature over
// an Authorization.
type InnerPayload struct {
	Signature     string        `json:"signature"`
	Authorization Authorization `json:"authorization"`
}

// Resource describes the resource the payment is for, echoed back in both
// the 402 body and the payment payload (§6.2).
type Resource struct {
	URL         string `json:"url"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType"`
}

// PaymentPayload is the decoded X-PAYMENT-SIGNATURE / PAYMENT-SIGNATURE
// header value (§3, §6.2).
type PaymentPayload struct {
	X402Version int                `json:"x402Version"`
	Payload     InnerPayload       `json:"payload"`
	Accepted    PaymentRequirement `json:"accepted"`
	Resource    Resource           `json:"resource"`
}

// PaymentRequiredDocument is the body of a 402 JSON response (§4.4.6).
type PaymentRequiredDocument struct {
	X402Version int                  `json:"x402Version"`
	Resource    Resource             `json:"resource"`
	Accepts     []PaymentRequirement `json:"accepts"`
}
