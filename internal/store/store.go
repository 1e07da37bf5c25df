// Package store is the Postgres-backed persistence layer (A5): Tenant and
// Endpoint lookups go through a Redis read-through cache since they sit on
// every request's hot path; Secret, Payment, and RequestLog writes go
// straight to Postgres since they are write-once or write-rarely.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/teresa-solution/x402-gateway/internal/audit"
	"github.com/teresa-solution/x402-gateway/internal/model"
	"github.com/teresa-solution/x402-gateway/internal/secretstore"
)

const tenantCacheTTL = 1 * time.Hour
const endpointCacheTTL = 1 * time.Hour

// RedisClient abstracts the subset of *redis.Client the store depends on,
// matching the teacher's pattern of narrowing the dependency to an
// interface so a fake can stand in for tests.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Store is the pgxpool + Redis-backed implementation of every persistence
// operation the pipeline and its supporting components need. A single
// pgxpool.Pool replaces the teacher's per-tenant connection-pool-manager
// client: this gateway is single-database, so there is nothing for that
// indirection to multiplex.
type Store struct {
	pool  *pgxpool.Pool
	redis RedisClient
}

// Open connects a pgxpool.Pool to dsn with the teacher's pool-sizing
// defaults and wraps it with redisClient for tenant/endpoint caching.
// redisClient may be nil to run without a cache (lookups always hit
// Postgres — cmd/proxy passes nil when REDIS_ADDR is unset).
func Open(ctx context.Context, dsn string, redisClient RedisClient) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to parse DSN: %w", err)
	}
	config.MaxConns = 20
	config.MinConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("store: failed to create connection pool: %w", err)
	}

	return &Store{pool: pool, redis: redisClient}, nil
}

// Close releases the pool and the Redis connection.
func (s *Store) Close() {
	s.pool.Close()
	if s.redis != nil {
		_ = s.redis.Close()
	}
}

// GetTenantBySlug satisfies internal/resolver.TenantLookup.
func (s *Store) GetTenantBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	cacheKey := "tenant:slug:" + slug
	if s.redis != nil {
		if tenant, ok := s.getCachedTenant(ctx, cacheKey); ok {
			return tenant, nil
		}
	}

	const query = `SELECT id, name, slug, default_recipient, created_at, updated_at
	               FROM tenants WHERE slug = $1`
	tenant := &model.Tenant{}
	err := s.pool.QueryRow(ctx, query, slug).Scan(
		&tenant.ID, &tenant.Name, &tenant.Slug, &tenant.DefaultRecipient, &tenant.CreatedAt, &tenant.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		s.cacheTenant(ctx, cacheKey, tenant)
	}
	return tenant, nil
}

func (s *Store) getCachedTenant(ctx context.Context, key string) (*model.Tenant, bool) {
	cached, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	tenant := &model.Tenant{}
	if err := json.Unmarshal([]byte(cached), tenant); err != nil {
		return nil, false
	}
	return tenant, true
}

func (s *Store) cacheTenant(ctx context.Context, key string, tenant *model.Tenant) {
	data, err := json.Marshal(tenant)
	if err != nil {
		return
	}
	s.redis.SetEx(ctx, key, data, tenantCacheTTL)
}

// GetEndpointBySlug satisfies internal/resolver.EndpointLookup.
func (s *Store) GetEndpointBySlug(ctx context.Context, tenantID uuid.UUID, slug string) (*model.Endpoint, error) {
	cacheKey := fmt.Sprintf("endpoint:%s:%s", tenantID, slug)
	if s.redis != nil {
		if endpoint, ok := s.getCachedEndpoint(ctx, cacheKey); ok {
			return endpoint, nil
		}
	}

	const query = `SELECT id, tenant_id, slug, name, description, upstream_url, auth_kind, auth_config,
	                      price_usd, recipient, testnet, paywall_config, custom_html_template, cname,
	                      active, rate_limit_per_sec, created_at, updated_at
	               FROM endpoints WHERE tenant_id = $1 AND slug = $2`
	endpoint := &model.Endpoint{}
	var authConfig, paywallConfig []byte
	err := s.pool.QueryRow(ctx, query, tenantID, slug).Scan(
		&endpoint.ID, &endpoint.TenantID, &endpoint.Slug, &endpoint.Name, &endpoint.Description,
		&endpoint.UpstreamURL, &endpoint.AuthKind, &authConfig, &endpoint.PriceUSD, &endpoint.Recipient,
		&endpoint.Testnet, &paywallConfig, &endpoint.CustomHTMLTemplate, &endpoint.CNAME,
		&endpoint.Active, &endpoint.RateLimitPerSec, &endpoint.CreatedAt, &endpoint.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(authConfig) > 0 {
		if err := json.Unmarshal(authConfig, &endpoint.AuthConfig); err != nil {
			return nil, err
		}
	}
	if len(paywallConfig) > 0 {
		if err := json.Unmarshal(paywallConfig, &endpoint.Paywall); err != nil {
			return nil, err
		}
	}

	if s.redis != nil {
		s.cacheEndpoint(ctx, cacheKey, endpoint)
	}
	return endpoint, nil
}

func (s *Store) getCachedEndpoint(ctx context.Context, key string) (*model.Endpoint, bool) {
	cached, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	endpoint := &model.Endpoint{}
	if err := json.Unmarshal([]byte(cached), endpoint); err != nil {
		return nil, false
	}
	return endpoint, true
}

func (s *Store) cacheEndpoint(ctx context.Context, key string, endpoint *model.Endpoint) {
	data, err := json.Marshal(endpoint)
	if err != nil {
		return
	}
	s.redis.SetEx(ctx, key, data, endpointCacheTTL)
}

// GetSecretByName satisfies internal/pipeline.SecretLookup via a thin
// adapter at the wiring site — it returns the stored ciphertext, never a
// decrypted value, per §3's invariant that plaintext only exists
// transiently between a Decrypt call and the outbound header.
func (s *Store) GetSecretByName(ctx context.Context, tenantID uuid.UUID, name string) (*secretstore.EncryptedSecret, error) {
	const query = `SELECT ciphertext, nonce FROM secrets WHERE tenant_id = $1 AND name = $2`
	var enc secretstore.EncryptedSecret
	err := s.pool.QueryRow(ctx, query, tenantID, name).Scan(&enc.Ciphertext, &enc.Nonce)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &enc, nil
}

// CreateTenant validates slug and inserts a new tenant row. It is the only
// path by which a tenant enters the table outside a migration fixture, so it
// is where §3's slug invariant is actually enforced rather than merely
// documented.
func (s *Store) CreateTenant(ctx context.Context, tenant *model.Tenant) error {
	if err := model.ValidateSlug(tenant.Slug); err != nil {
		return err
	}
	const query = `INSERT INTO tenants (id, name, slug, default_recipient, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := s.pool.Exec(ctx, query,
		tenant.ID, tenant.Name, tenant.Slug, tenant.DefaultRecipient, tenant.CreatedAt, tenant.UpdatedAt)
	return err
}

// CreateEndpoint validates the endpoint slug and upstream URL before
// inserting. allowLoopback/allowOtherSchemes mirror the flags
// ValidateUpstreamURL takes directly — an operator provisioning endpoints
// against a local upstream during development sets allowLoopback true, the
// same carve-out ValidateUpstreamURL itself exposes.
func (s *Store) CreateEndpoint(ctx context.Context, endpoint *model.Endpoint, allowLoopback, allowOtherSchemes bool) error {
	if err := model.ValidateEndpointSlug(endpoint.Slug); err != nil {
		return err
	}
	if err := model.ValidateUpstreamURL(endpoint.UpstreamURL, allowLoopback, allowOtherSchemes); err != nil {
		return err
	}
	authConfig, err := json.Marshal(endpoint.AuthConfig)
	if err != nil {
		return fmt.Errorf("store: failed to marshal auth config: %w", err)
	}
	paywallConfig, err := json.Marshal(endpoint.Paywall)
	if err != nil {
		return fmt.Errorf("store: failed to marshal paywall config: %w", err)
	}
	const query = `INSERT INTO endpoints
		(id, tenant_id, slug, name, description, upstream_url, auth_kind, auth_config,
		 price_usd, recipient, testnet, paywall_config, custom_html_template, cname,
		 active, rate_limit_per_sec, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`
	_, err = s.pool.Exec(ctx, query,
		endpoint.ID, endpoint.TenantID, endpoint.Slug, endpoint.Name, endpoint.Description,
		endpoint.UpstreamURL, endpoint.AuthKind, authConfig, endpoint.PriceUSD, endpoint.Recipient,
		endpoint.Testnet, paywallConfig, endpoint.CustomHTMLTemplate, endpoint.CNAME,
		endpoint.Active, endpoint.RateLimitPerSec, endpoint.CreatedAt, endpoint.UpdatedAt,
	)
	return err
}

// CreateSecret validates the {{SECRET:NAME}} name grammar before inserting
// the ciphertext/nonce pair. Callers encrypt with internal/crypto before
// reaching this method; plaintext never passes through the store.
func (s *Store) CreateSecret(ctx context.Context, secret *model.Secret) error {
	if err := model.ValidateSecretName(secret.Name); err != nil {
		return err
	}
	const query = `INSERT INTO secrets (id, tenant_id, name, ciphertext, nonce, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := s.pool.Exec(ctx, query,
		secret.ID, secret.TenantID, secret.Name, secret.Ciphertext, secret.Nonce, secret.CreatedAt)
	return err
}

// InsertPayment satisfies internal/audit.Store.
func (s *Store) InsertPayment(ctx context.Context, p *model.Payment) error {
	const query = `INSERT INTO payments
		(id, endpoint_id, tenant_id, payer_address, amount_usd, chain_id, network, tx_hash, status,
		 payload_json, settlement_json, request_path, request_method, error_message, created_at, settled_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO NOTHING`
	_, err := s.pool.Exec(ctx, query,
		p.ID, nullable(p.EndpointID), nullable(p.TenantID), p.PayerAddress, p.AmountUSD, p.ChainID, p.Network,
		nullString(p.TxHash), p.Status, p.PayloadJSON, p.SettlementJSON, p.RequestPath, p.RequestMethod,
		nullString(p.ErrorMessage), p.CreatedAt, p.SettledAt,
	)
	return err
}

// UpdatePayment satisfies internal/audit.Store. It is only ever called for
// a payment row the same pipeline run just inserted (§4.8), so it updates
// unconditionally by id.
func (s *Store) UpdatePayment(ctx context.Context, id uuid.UUID, update audit.PaymentUpdate) error {
	const query = `UPDATE payments
		SET status = $2, tx_hash = $3, settlement_json = $4, settled_at = $5, error_message = $6
		WHERE id = $1`
	_, err := s.pool.Exec(ctx, query,
		id, update.Status, nullString(update.TxHash), update.SettlementJSON, update.SettledAt, nullString(update.ErrorMessage),
	)
	return err
}

// InsertRequestLog satisfies internal/audit.Store.
func (s *Store) InsertRequestLog(ctx context.Context, l *model.RequestLog) error {
	const query = `INSERT INTO request_logs
		(id, endpoint_id, tenant_id, payment_id, path, method, status_code, elapsed_ms,
		 client_ip, user_agent, is_browser, paid, rate_limited, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO NOTHING`
	_, err := s.pool.Exec(ctx, query,
		l.ID, nullable(l.EndpointID), nullable(l.TenantID), nullable(l.PaymentID), l.Path, l.Method,
		l.StatusCode, l.ElapsedMs, l.ClientIP, l.UserAgent, l.IsBrowser, l.Paid, l.RateLimited, l.CreatedAt,
	)
	return err
}

func nullable(id uuid.NullUUID) interface{} {
	if !id.Valid {
		return nil
	}
	return id.UUID
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
