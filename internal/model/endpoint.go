package model

import (
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuthKind selects how the Auth Header Builder (C3) assembles upstream
// credentials for an Endpoint.
type AuthKind string

const (
	AuthKindNone          AuthKind = "none"
	AuthKindBearer        AuthKind = "bearer"
	AuthKindHeaderKey     AuthKind = "header-key"
	AuthKindQueryKey      AuthKind = "query-key"
	AuthKindBasic         AuthKind = "basic"
	AuthKindCustomHeaders AuthKind = "custom-headers"
)

func (k AuthKind) Valid() bool {
	switch k {
	case AuthKindNone, AuthKindBearer, AuthKindHeaderKey, AuthKindQueryKey, AuthKindBasic, AuthKindCustomHeaders:
		return true
	}
	return false
}

const (
	endpointSlugMaxLen    = 64
	defaultRateLimitRPS   = 5
	maxRateLimitRPS       = 100
)

// PaywallConfig is the branding/theme blob rendered by the Paywall Renderer
// (C5). It never carries secrets.
type PaywallConfig struct {
	BrandName           string `json:"brandName,omitempty"`
	BrandLogoURL         string `json:"brandLogoUrl,omitempty"`
	ThemePreset          string `json:"themePreset,omitempty"`
	WalletConnectProject string `json:"walletConnectProjectId,omitempty"`
}

// Endpoint represents a row in the endpoints table: one monetized route
// owned by a Tenant.
type Endpoint struct {
	ID                uuid.UUID         `json:"id"`
	TenantID          uuid.UUID         `json:"tenant_id"`
	Slug              string            `json:"slug"`
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	UpstreamURL       string            `json:"upstream_url"`
	AuthKind          AuthKind          `json:"auth_kind"`
	AuthConfig        map[string]string `json:"auth_config,omitempty"`
	PriceUSD          decimal.Decimal   `json:"price_usd"`
	Recipient         string            `json:"recipient,omitempty"`
	Testnet           bool              `json:"testnet"`
	Paywall           PaywallConfig     `json:"paywall"`
	CustomHTMLTemplate string           `json:"custom_html_template,omitempty"`
	CNAME             string            `json:"cname,omitempty"`
	Active            bool              `json:"active"`
	RateLimitPerSec   int               `json:"rate_limit_per_sec"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// ValidateEndpointSlug enforces the 1-64 char [a-z0-9-] charset shared with
// tenant slugs (minus the minimum length, which is looser for endpoints).
func ValidateEndpointSlug(slug string) error {
	if len(slug) < 1 || len(slug) > endpointSlugMaxLen {
		return ErrInvalidSlug
	}
	if !isSlugCharset(slug) {
		return ErrInvalidSlug
	}
	return nil
}

// ValidateUpstreamURL enforces scheme/hostname rules from §3: scheme in
// {http, https}, non-empty hostname, loopback/IP disallowed unless the
// caller opts in via allowLoopback/allowOtherSchemes.
func ValidateUpstreamURL(raw string, allowLoopback, allowOtherSchemes bool) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidUpstreamURL
	}
	if u.Scheme != "http" && u.Scheme != "https" && !allowOtherSchemes {
		return ErrInvalidUpstreamURL
	}
	host := u.Hostname()
	if host == "" {
		return ErrInvalidUpstreamURL
	}
	if !allowLoopback && isLoopbackOrBareIP(host) {
		return ErrInvalidUpstreamURL
	}
	return nil
}

func isLoopbackOrBareIP(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified()
}

// EffectiveRateLimit returns the configured rate limit, falling back to the
// package default when unset, as described in §3.
func (e *Endpoint) EffectiveRateLimit() int {
	if e.RateLimitPerSec <= 0 {
		return defaultRateLimitRPS
	}
	if e.RateLimitPerSec > maxRateLimitRPS {
		return maxRateLimitRPS
	}
	return e.RateLimitPerSec
}
