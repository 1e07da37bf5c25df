package facilitator

import (
	"github.com/shopspring/decimal"

	"github.com/teresa-solution/x402-gateway/internal/model"
)

const (
	mainnetNetwork           = "eip155:8453"
	testnetNetwork           = "eip155:84532"
	defaultMaxTimeoutSeconds = 300
)

// RequirementInput is the parameter set for BuildRequirement (§4.4.3).
type RequirementInput struct {
	PriceUSD          decimal.Decimal
	PayTo             string
	Testnet           bool
	MaxTimeoutSeconds int
}

// BuildRequirement constructs the ephemeral PaymentRequirement advertised
// to a paying client, per §4.4.3's scheme/network/price/payTo/timeout shape.
func BuildRequirement(in RequirementInput, assets AssetConfig) model.PaymentRequirement {
	network := mainnetNetwork
	if in.Testnet {
		network = testnetNetwork
	}

	timeout := in.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = defaultMaxTimeoutSeconds
	}

	price := UsdToStable(in.PriceUSD, in.Testnet, assets)

	return model.PaymentRequirement{
		Scheme:            "exact",
		Network:           network,
		Amount:            price.Amount,
		PayTo:             in.PayTo,
		Asset:             price.Asset,
		MaxTimeoutSeconds: timeout,
		Extra: map[string]string{
			"name":    price.Extra.Name,
			"version": price.Extra.Version,
		},
	}
}

// PaymentRequiredInput is the parameter set for GeneratePaymentRequired
// (§4.4.6).
type PaymentRequiredInput struct {
	URL         string
	Description string
	PriceUSD    decimal.Decimal
	PayTo       string
	Testnet     bool
}

// GeneratePaymentRequired builds the full x402 402-body document (§4.4.6).
func GeneratePaymentRequired(in PaymentRequiredInput, assets AssetConfig) model.PaymentRequiredDocument {
	requirement := BuildRequirement(RequirementInput{
		PriceUSD: in.PriceUSD,
		PayTo:    in.PayTo,
		Testnet:  in.Testnet,
	}, assets)

	return model.PaymentRequiredDocument{
		X402Version: 2,
		Resource: model.Resource{
			URL:         in.URL,
			Description: in.Description,
			MimeType:    "application/json",
		},
		Accepts: []model.PaymentRequirement{requirement},
	}
}
