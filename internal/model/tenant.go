package model

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents a row in the tenants table.
type Tenant struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	DefaultRecipient string    `json:"default_recipient,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

const (
	slugMinLen = 3
	slugMaxLen = 32
)

// reservedTenantSlugs is policy, not security — see internal/resolver for the
// set actually enforced at request-resolution time. This copy is only
// consulted when a tenant is created, an external collaborator in this core.
var reservedTenantSlugs = map[string]struct{}{
	"api": {}, "dashboard": {}, "login": {}, "register": {},
	"www": {}, "admin": {}, "static": {}, "assets": {},
}

// ValidateSlug checks a tenant slug against the 3-32 char [a-z0-9-] charset
// and the reserved-name set.
func ValidateSlug(slug string) error {
	if len(slug) < slugMinLen || len(slug) > slugMaxLen {
		return ErrInvalidSlug
	}
	if !isSlugCharset(slug) {
		return ErrInvalidSlug
	}
	if _, reserved := reservedTenantSlugs[slug]; reserved {
		return ErrReservedSlug
	}
	return nil
}

func isSlugCharset(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		isLower := r >= 'a' && r <= 'z'
		isDigit := r >= '0' && r <= '9'
		if !isLower && !isDigit && r != '-' {
			return false
		}
	}
	return true
}
