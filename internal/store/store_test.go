package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teresa-solution/x402-gateway/internal/audit"
	"github.com/teresa-solution/x402-gateway/internal/model"
)

// setupTestStore mirrors the teacher's integration-test pattern: it dials a
// real local Postgres and Redis rather than mocking the driver, and truncates
// every table this package touches before each test. Skipped unless
// TEST_DATABASE_URL is set, since unlike the rest of the suite this one
// needs a live Postgres and Redis.
func setupTestStore(t *testing.T) (*Store, func()) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping store integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})

	s, err := Open(context.Background(), dsn, rdb)
	require.NoError(t, err)

	_, err = s.pool.Exec(context.Background(),
		"TRUNCATE TABLE payments, request_logs, secrets, endpoints, tenants RESTART IDENTITY CASCADE")
	require.NoError(t, err)
	rdb.FlushAll(context.Background())

	return s, func() { s.Close() }
}

func insertTestTenant(t *testing.T, s *Store, slug string) *model.Tenant {
	tenant := &model.Tenant{
		ID:               uuid.New(),
		Name:             "Test Tenant",
		Slug:             slug,
		DefaultRecipient: "0xDefaultRecipient",
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	require.NoError(t, s.CreateTenant(context.Background(), tenant))
	return tenant
}

func insertTestEndpoint(t *testing.T, s *Store, tenantID uuid.UUID, slug string) *model.Endpoint {
	endpoint := &model.Endpoint{
		ID:              uuid.New(),
		TenantID:        tenantID,
		Slug:            slug,
		Name:            "Weather",
		UpstreamURL:     "https://upstream.example.com",
		AuthKind:        model.AuthKindBearer,
		AuthConfig:      map[string]string{"token": "{{SECRET:WEATHER_TOKEN}}"},
		PriceUSD:        decimal.NewFromFloat(0.05),
		Recipient:       "0xRecipient",
		Paywall:         model.PaywallConfig{BrandName: "Acme"},
		Active:          true,
		RateLimitPerSec: 10,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	require.NoError(t, s.CreateEndpoint(context.Background(), endpoint, false, false))
	return endpoint
}

func insertTestSecret(t *testing.T, s *Store, tenantID uuid.UUID, name string) *model.Secret {
	secret := &model.Secret{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Name:       name,
		Ciphertext: []byte{0x01, 0x02},
		Nonce:      []byte{0x03},
		CreatedAt:  time.Now(),
	}
	require.NoError(t, s.CreateSecret(context.Background(), secret))
	return secret
}

func TestStore_GetTenantBySlug_FetchesAndCaches(t *testing.T) {
	s, teardown := setupTestStore(t)
	defer teardown()

	tenant := insertTestTenant(t, s, "acme")

	fetched, err := s.GetTenantBySlug(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, fetched.ID)
	assert.Equal(t, "0xDefaultRecipient", fetched.DefaultRecipient)

	cached, err := s.GetTenantBySlug(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, cached.ID)
}

func TestStore_GetTenantBySlug_UnknownReturnsNil(t *testing.T) {
	s, teardown := setupTestStore(t)
	defer teardown()

	fetched, err := s.GetTenantBySlug(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, fetched)
}

func TestStore_GetEndpointBySlug_RoundTripsAuthAndPaywallConfig(t *testing.T) {
	s, teardown := setupTestStore(t)
	defer teardown()

	tenant := insertTestTenant(t, s, "acme")
	insertTestEndpoint(t, s, tenant.ID, "weather")

	endpoint, err := s.GetEndpointBySlug(context.Background(), tenant.ID, "weather")
	require.NoError(t, err)
	require.NotNil(t, endpoint)
	assert.Equal(t, model.AuthKindBearer, endpoint.AuthKind)
	assert.Equal(t, "{{SECRET:WEATHER_TOKEN}}", endpoint.AuthConfig["token"])
	assert.Equal(t, "Acme", endpoint.Paywall.BrandName)
	assert.True(t, endpoint.PriceUSD.Equal(decimal.NewFromFloat(0.05)))
}

func TestStore_GetEndpointBySlug_UnknownReturnsNil(t *testing.T) {
	s, teardown := setupTestStore(t)
	defer teardown()

	tenant := insertTestTenant(t, s, "acme")
	endpoint, err := s.GetEndpointBySlug(context.Background(), tenant.ID, "missing")
	require.NoError(t, err)
	assert.Nil(t, endpoint)
}

func TestStore_GetSecretByName_RoundTrips(t *testing.T) {
	s, teardown := setupTestStore(t)
	defer teardown()

	tenant := insertTestTenant(t, s, "acme")
	insertTestSecret(t, s, tenant.ID, "WEATHER_TOKEN")

	enc, err := s.GetSecretByName(context.Background(), tenant.ID, "WEATHER_TOKEN")
	require.NoError(t, err)
	require.NotNil(t, enc)
	assert.Equal(t, []byte{0x01, 0x02}, enc.Ciphertext)
	assert.Equal(t, []byte{0x03}, enc.Nonce)
}

func TestStore_GetSecretByName_UnknownReturnsNil(t *testing.T) {
	s, teardown := setupTestStore(t)
	defer teardown()

	tenant := insertTestTenant(t, s, "acme")
	enc, err := s.GetSecretByName(context.Background(), tenant.ID, "MISSING")
	require.NoError(t, err)
	assert.Nil(t, enc)
}

func TestStore_InsertAndUpdatePayment(t *testing.T) {
	s, teardown := setupTestStore(t)
	defer teardown()

	tenant := insertTestTenant(t, s, "acme")
	payment := &model.Payment{
		ID:            uuid.New(),
		TenantID:      uuid.NullUUID{UUID: tenant.ID, Valid: true},
		PayerAddress:  "0xPayer",
		AmountUSD:     decimal.NewFromFloat(0.05),
		ChainID:       8453,
		Network:       "eip155:8453",
		Status:        model.PaymentVerified,
		RequestPath:   "/acme/weather",
		RequestMethod: "GET",
		CreatedAt:     time.Now(),
	}
	require.NoError(t, s.InsertPayment(context.Background(), payment))

	settledAt := time.Now()
	err := s.UpdatePayment(context.Background(), payment.ID, audit.PaymentUpdate{
		Status:         model.PaymentSettled,
		TxHash:         "0xTxHash",
		SettlementJSON: []byte(`{"success":true}`),
		SettledAt:      &settledAt,
	})
	require.NoError(t, err)

	var status string
	var txHash string
	err = s.pool.QueryRow(context.Background(),
		"SELECT status, tx_hash FROM payments WHERE id = $1", payment.ID).Scan(&status, &txHash)
	require.NoError(t, err)
	assert.Equal(t, string(model.PaymentSettled), status)
	assert.Equal(t, "0xTxHash", txHash)
}

func TestStore_InsertRequestLog(t *testing.T) {
	s, teardown := setupTestStore(t)
	defer teardown()

	tenant := insertTestTenant(t, s, "acme")
	entry := &model.RequestLog{
		ID:         uuid.New(),
		TenantID:   uuid.NullUUID{UUID: tenant.ID, Valid: true},
		Path:       "/acme/weather",
		Method:     "GET",
		StatusCode: 200,
		ElapsedMs:  42,
		ClientIP:   "203.0.113.1",
		UserAgent:  "curl/8.0",
		Paid:       true,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, s.InsertRequestLog(context.Background(), entry))

	var statusCode int
	err := s.pool.QueryRow(context.Background(),
		"SELECT status_code FROM request_logs WHERE id = $1", entry.ID).Scan(&statusCode)
	require.NoError(t, err)
	assert.Equal(t, 200, statusCode)
}

func TestStore_CreateTenant_RejectsInvalidSlug(t *testing.T) {
	s, teardown := setupTestStore(t)
	defer teardown()

	tenant := &model.Tenant{ID: uuid.New(), Name: "Bad", Slug: "AD", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	err := s.CreateTenant(context.Background(), tenant)
	assert.ErrorIs(t, err, model.ErrInvalidSlug)

	fetched, err := s.GetTenantBySlug(context.Background(), "AD")
	require.NoError(t, err)
	assert.Nil(t, fetched, "rejected tenant must not reach the table")
}

func TestStore_CreateTenant_RejectsReservedSlug(t *testing.T) {
	s, teardown := setupTestStore(t)
	defer teardown()

	tenant := &model.Tenant{ID: uuid.New(), Name: "Admin", Slug: "admin", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	err := s.CreateTenant(context.Background(), tenant)
	assert.ErrorIs(t, err, model.ErrReservedSlug)
}

func TestStore_CreateEndpoint_RejectsLoopbackUpstream(t *testing.T) {
	s, teardown := setupTestStore(t)
	defer teardown()

	tenant := insertTestTenant(t, s, "acme")
	endpoint := &model.Endpoint{
		ID: uuid.New(), TenantID: tenant.ID, Slug: "internal", Name: "Internal",
		UpstreamURL: "http://127.0.0.1:9000/admin", AuthKind: model.AuthKindNone,
		PriceUSD: decimal.NewFromFloat(0.01), CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	err := s.CreateEndpoint(context.Background(), endpoint, false, false)
	assert.ErrorIs(t, err, model.ErrInvalidUpstreamURL)

	fetched, err := s.GetEndpointBySlug(context.Background(), tenant.ID, "internal")
	require.NoError(t, err)
	assert.Nil(t, fetched, "rejected endpoint must not reach the table")
}

func TestStore_CreateEndpoint_AllowLoopbackPermitsLocalUpstream(t *testing.T) {
	s, teardown := setupTestStore(t)
	defer teardown()

	tenant := insertTestTenant(t, s, "acme")
	endpoint := &model.Endpoint{
		ID: uuid.New(), TenantID: tenant.ID, Slug: "internal", Name: "Internal",
		UpstreamURL: "http://127.0.0.1:9000/admin", AuthKind: model.AuthKindNone,
		PriceUSD: decimal.NewFromFloat(0.01), CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, s.CreateEndpoint(context.Background(), endpoint, true, false))
}

func TestStore_CreateSecret_RejectsMalformedName(t *testing.T) {
	s, teardown := setupTestStore(t)
	defer teardown()

	tenant := insertTestTenant(t, s, "acme")
	secret := &model.Secret{ID: uuid.New(), TenantID: tenant.ID, Name: "weather-token", CreatedAt: time.Now()}
	err := s.CreateSecret(context.Background(), secret)
	assert.ErrorIs(t, err, model.ErrInvalidSecretName)

	enc, err := s.GetSecretByName(context.Background(), tenant.ID, "weather-token")
	require.NoError(t, err)
	assert.Nil(t, enc, "rejected secret must not reach the table")
}
