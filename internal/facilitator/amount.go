package facilitator

import (
	"github.com/shopspring/decimal"
)

// StablecoinExtra is the fixed {name, version} domain tag for the USDC-like
// asset used by the exact scheme (§4.4.2).
type StablecoinExtra struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Price is the result of usdToStable: an atomic 6-decimal amount plus the
// asset address it denominates.
type Price struct {
	Asset  string
	Amount string
	Extra  StablecoinExtra
}

const (
	stableDecimals = 6
)

// UsdToStable converts a USD decimal.Decimal amount into the atomic
// 6-decimal fixed-point representation used by the exact scheme (§4.4.2).
// The conversion floors to the nearest atomic unit, matching the spec's
// `floor(usd * 1e6)`. Amounts below one atomic unit round to "0" (§8).
func UsdToStable(usd decimal.Decimal, testnet bool, assets AssetConfig) Price {
	scaled := usd.Shift(stableDecimals)
	atomic := scaled.Floor()

	asset := assets.Mainnet
	if testnet {
		asset = assets.Testnet
	}

	return Price{
		Asset:  asset,
		Amount: atomic.String(),
		Extra:  StablecoinExtra{Name: "USDC", Version: "2"},
	}
}

// AssetConfig carries the mainnet/testnet stablecoin addresses, sourced
// from process configuration (§6.5).
type AssetConfig struct {
	Mainnet string
	Testnet string
}
