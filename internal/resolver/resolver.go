// Package resolver implements C6: turning an inbound (tenantSlug,
// endpointSlug) pair into a ResolvedRoute, or rejecting it. Reserved tenant
// slugs are rejected before any database lookup runs.
package resolver

import (
	"context"

	"github.com/google/uuid"

	"github.com/teresa-solution/x402-gateway/internal/apperr"
	"github.com/teresa-solution/x402-gateway/internal/model"
)

// reservedSlugs is the request-time blocklist from §4.6. It is deliberately
// separate from model.ValidateSlug's creation-time set: a tenant slug is
// rejected at creation for being reserved, but the resolver must also
// shadow any path prefix the rest of the app owns (health checks, static
// assets) even if a stale row exists.
var reservedSlugs = map[string]struct{}{
	"api":       {},
	"dashboard": {},
	"login":     {},
	"register":  {},
	"www":       {},
	"admin":     {},
	"static":    {},
	"assets":    {},
	"healthz":   {},
	"metrics":   {},
}

// TenantLookup and EndpointLookup abstract the store so this package stays
// free of any database driver import.
type TenantLookup func(ctx context.Context, slug string) (*model.Tenant, error)
type EndpointLookup func(ctx context.Context, tenantID uuid.UUID, slug string) (*model.Endpoint, error)

// ResolvedRoute is the immutable result of a successful resolution, passed
// down the rest of the pipeline.
type ResolvedRoute struct {
	Tenant   *model.Tenant
	Endpoint *model.Endpoint
	PayTo    string
}

// Resolve implements §4.6's five-step check in order: reserved slug, tenant
// lookup, endpoint lookup, active flag, resolvable recipient. Every
// not-found branch collapses to the same apperr.KindNotFound so a client
// cannot distinguish "no such tenant" from "endpoint disabled".
func Resolve(ctx context.Context, tenantSlug, endpointSlug string, lookupTenant TenantLookup, lookupEndpoint EndpointLookup) (*ResolvedRoute, error) {
	if _, reserved := reservedSlugs[tenantSlug]; reserved {
		return nil, apperr.New(apperr.KindNotFound, "resolver: reserved tenant slug")
	}

	tenant, err := lookupTenant(ctx, tenantSlug)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "resolver: tenant lookup failed", err)
	}
	if tenant == nil {
		return nil, apperr.New(apperr.KindNotFound, "resolver: unknown tenant")
	}

	endpoint, err := lookupEndpoint(ctx, tenant.ID, endpointSlug)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "resolver: endpoint lookup failed", err)
	}
	if endpoint == nil {
		return nil, apperr.New(apperr.KindNotFound, "resolver: unknown endpoint")
	}
	if !endpoint.Active {
		return nil, apperr.New(apperr.KindNotFound, "resolver: inactive endpoint")
	}

	payTo := endpoint.Recipient
	if payTo == "" {
		payTo = tenant.DefaultRecipient
	}
	if payTo == "" {
		return nil, apperr.New(apperr.KindMisconfigured, "resolver: no resolvable recipient")
	}

	return &ResolvedRoute{Tenant: tenant, Endpoint: endpoint, PayTo: payTo}, nil
}
