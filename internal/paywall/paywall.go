// Package paywall renders the HTML body a browser sees on the no-payment
// branch of the pipeline. It is deliberately side-effect free: given an
// endpoint's public branding fields and a computed price, it produces a
// string and touches nothing else.
package paywall

import (
	"encoding/base64"
	"encoding/json"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/teresa-solution/x402-gateway/internal/model"
)

const customTemplateMarker = "{{payment-config}}"

// ConfigObject is the JSON blob embedded (base64-encoded) into either the
// custom template's marker substitution or the default page's meta tag, per
// §4.5. Client-side wallet code reads it to drive the payment flow.
type ConfigObject struct {
	BrandName           string                     `json:"brandName,omitempty"`
	BrandLogoURL        string                     `json:"brandLogoUrl,omitempty"`
	ThemePreset         string                     `json:"themePreset,omitempty"`
	WalletConnectProject string                    `json:"walletConnectProjectId,omitempty"`
	AmountDisplay       string                     `json:"amountDisplay"`
	PaymentRequired     model.PaymentRequiredDocument `json:"paymentRequired"`
}

// Input is everything the renderer is allowed to see (§4.5: "must never
// access secrets or tenant credentials").
type Input struct {
	Paywall             model.PaywallConfig
	CustomHTMLTemplate  string
	PriceUSD            decimal.Decimal
	PaymentRequired     model.PaymentRequiredDocument
}

// Render produces the HTML body for in.CustomHTMLTemplate when present,
// otherwise the default self-contained page.
func Render(in Input) (string, error) {
	configJSON, err := json.Marshal(ConfigObject{
		BrandName:            in.Paywall.BrandName,
		BrandLogoURL:         in.Paywall.BrandLogoURL,
		ThemePreset:          in.Paywall.ThemePreset,
		WalletConnectProject: in.Paywall.WalletConnectProject,
		AmountDisplay:        FormatAmount(in.PriceUSD),
		PaymentRequired:      in.PaymentRequired,
	})
	if err != nil {
		return "", err
	}
	encoded := base64.StdEncoding.EncodeToString(configJSON)

	if in.CustomHTMLTemplate != "" {
		return strings.ReplaceAll(in.CustomHTMLTemplate, customTemplateMarker, encoded), nil
	}
	return renderDefault(in, encoded)
}

// FormatAmount implements §4.5's display rule: two decimals once the amount
// is at least a cent, otherwise up to six decimals with trailing zeros
// trimmed (so sub-cent prices don't render as "0.00").
func FormatAmount(amount decimal.Decimal) string {
	cent := decimal.NewFromFloat(0.01)
	if amount.GreaterThanOrEqual(cent) {
		return amount.StringFixed(2)
	}
	s := amount.StringFixed(6)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		s = "0"
	}
	return s
}

var defaultPageTemplate = template.Must(template.New("paywall").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="x-paywall-config" content="{{.ConfigBase64}}">
<title>{{.BrandName}} — Payment required</title>
<style>
body{font-family:-apple-system,sans-serif;background:{{.Background}};color:#111;display:flex;min-height:100vh;align-items:center;justify-content:center;margin:0}
.card{background:#fff;border-radius:12px;padding:2.5rem;box-shadow:0 4px 24px rgba(0,0,0,.08);text-align:center;max-width:360px}
.logo{max-height:48px;margin-bottom:1rem}
.price{font-size:2.25rem;font-weight:700;margin:.5rem 0}
.desc{color:#555;font-size:.9rem}
</style>
</head>
<body>
<div class="card">
{{if .BrandLogoURL}}<img class="logo" src="{{.BrandLogoURL}}" alt="{{.BrandName}}">{{end}}
<h1>{{.BrandName}}</h1>
<div class="price">${{.AmountDisplay}}</div>
<p class="desc">{{.Description}}</p>
<p class="desc">Connect a wallet to continue. Payment is handled client-side.</p>
</div>
</body>
</html>
`))

type defaultPageData struct {
	ConfigBase64 string
	BrandName    string
	BrandLogoURL string
	Background   string
	AmountDisplay string
	Description  string
}

func renderDefault(in Input, configBase64 string) (string, error) {
	brandName := in.Paywall.BrandName
	if brandName == "" {
		brandName = "Payment Required"
	}
	var sb strings.Builder
	err := defaultPageTemplate.Execute(&sb, defaultPageData{
		ConfigBase64:  configBase64,
		BrandName:     brandName,
		BrandLogoURL:  in.Paywall.BrandLogoURL,
		Background:    themeBackground(in.Paywall.ThemePreset),
		AmountDisplay: FormatAmount(in.PriceUSD),
		Description:   descriptionOf(in.PaymentRequired),
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

func themeBackground(preset string) string {
	switch preset {
	case "dark":
		return "#1a1a1a"
	case "brand":
		return "#f5f0ff"
	default:
		return "#f4f4f5"
	}
}

func descriptionOf(doc model.PaymentRequiredDocument) string {
	if doc.Resource.Description != "" {
		return doc.Resource.Description
	}
	return "Access to " + doc.Resource.URL
}

// IsBrowser implements §4.7's detection rule: Accept containing text/html,
// or a User-Agent matching a common browser token.
func IsBrowser(accept, userAgent string) bool {
	if strings.Contains(accept, "text/html") {
		return true
	}
	for _, token := range []string{"Mozilla", "Chrome", "Safari", "Firefox", "Edge"} {
		if strings.Contains(userAgent, token) {
			return true
		}
	}
	return false
}
