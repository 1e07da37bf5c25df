// Package pipeline implements C7: the per-request state machine that ties
// every other component together — resolve, rate-limit, parse payment,
// verify, record, assemble upstream credentials, forward, settle, respond.
package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/teresa-solution/x402-gateway/internal/apperr"
	"github.com/teresa-solution/x402-gateway/internal/audit"
	"github.com/teresa-solution/x402-gateway/internal/authheader"
	"github.com/teresa-solution/x402-gateway/internal/facilitator"
	"github.com/teresa-solution/x402-gateway/internal/model"
	"github.com/teresa-solution/x402-gateway/internal/monitoring"
	"github.com/teresa-solution/x402-gateway/internal/paywall"
	"github.com/teresa-solution/x402-gateway/internal/ratelimit"
	"github.com/teresa-solution/x402-gateway/internal/resolver"
	"github.com/teresa-solution/x402-gateway/internal/secretstore"
)

const settleTimeout = 20 * time.Second

// SecretLookup resolves a tenant-scoped secret name to its stored
// ciphertext, matching secretstore.Lookup's shape plus the tenant scope
// internal/authheader needs bound in via closure.
type SecretLookup func(tenantID uuid.UUID, name string) (*secretstore.EncryptedSecret, bool)

// Config carries the process-level settings §6.5 names.
type Config struct {
	AppBaseURL   string
	Assets       facilitator.AssetConfig
	TestnetForce bool
}

// Dependencies wires every collaborator component the pipeline orchestrates.
// None of them are constructed here — main wires concrete implementations.
type Dependencies struct {
	Limiter        *ratelimit.Limiter
	Secrets        *secretstore.Store
	Facilitator    *facilitator.Client
	LookupTenant   resolver.TenantLookup
	LookupEndpoint resolver.EndpointLookup
	LookupSecret   SecretLookup
	Audit          *audit.Writer
	UpstreamClient *http.Client
	Config         Config
}

// Pipeline is the assembled C7 orchestrator, safe for concurrent use: every
// field is either read-only after construction or itself concurrency-safe
// (the rate limiter's mutex, the facilitator client's http.Client, the
// audit writer's channel).
type Pipeline struct {
	limiter        *ratelimit.Limiter
	secrets        *secretstore.Store
	facilitator    *facilitator.Client
	lookupTenant   resolver.TenantLookup
	lookupEndpoint resolver.EndpointLookup
	lookupSecret   SecretLookup
	audit          *audit.Writer
	upstreamClient *http.Client
	config         Config
}

// New assembles a Pipeline from deps.
func New(deps Dependencies) *Pipeline {
	client := deps.UpstreamClient
	if client == nil {
		client = &http.Client{}
	}
	return &Pipeline{
		limiter:        deps.Limiter,
		secrets:        deps.Secrets,
		facilitator:    deps.Facilitator,
		lookupTenant:   deps.LookupTenant,
		lookupEndpoint: deps.LookupEndpoint,
		lookupSecret:   deps.LookupSecret,
		audit:          deps.Audit,
		upstreamClient: client,
		config:         deps.Config,
	}
}

// Handle runs the full state machine for one inbound request. tenantSlug
// and endpointSlug are the first two path segments; restPath is everything
// after, with no leading slash.
func (p *Pipeline) Handle(w http.ResponseWriter, r *http.Request, tenantSlug, endpointSlug, restPath string) {
	start := time.Now()
	ctx := r.Context()

	clientIP := clientIPOf(r)
	userAgent := r.UserAgent()
	isBrowser := paywall.IsBrowser(r.Header.Get("Accept"), userAgent)

	route, err := resolver.Resolve(ctx, tenantSlug, endpointSlug, p.lookupTenant, p.lookupEndpoint)
	if err != nil {
		p.writeError(w, err)
		return
	}

	rlResult := p.limiter.Check(route.Endpoint.ID.String(), route.Endpoint.EffectiveRateLimit())
	if !rlResult.Allowed {
		monitoring.RateLimitDenialsTotal.WithLabelValues(route.Endpoint.ID.String()).Inc()
		ratelimit.WriteDenied(w, rlResult)
		p.logRequest(route, r, clientIP, userAgent, isBrowser, http.StatusTooManyRequests, time.Since(start), false, true, uuid.NullUUID{})
		return
	}
	ratelimit.SetHeaders(w.Header(), rlResult)

	requirement := p.buildRequirement(route)
	resourceURL := p.resourceURL(tenantSlug, endpointSlug, restPath)

	payload := facilitator.ParsePaymentHeader(r.Header)
	if payload == nil {
		p.respondPaymentRequired(w, route, resourceURL, isBrowser)
		p.logRequest(route, r, clientIP, userAgent, isBrowser, http.StatusPaymentRequired, time.Since(start), false, false, uuid.NullUUID{})
		return
	}

	verifyResult := p.facilitator.Verify(ctx, payload, requirement)
	if !verifyResult.IsValid {
		monitoring.PaymentsTotal.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusPaymentRequired, map[string]string{
			"error":  "Payment verification failed",
			"reason": verifyResult.InvalidReason,
		})
		p.logRequest(route, r, clientIP, userAgent, isBrowser, http.StatusPaymentRequired, time.Since(start), false, false, uuid.NullUUID{})
		return
	}

	payer := verifyResult.Payer
	if payer == "" {
		payer = facilitator.ExtractPayer(payload, facilitator.ParseInnerPayloadRaw(r.Header))
	}

	payment := p.recordPayment(route, r, payload, requirement, payer)
	paymentRef := uuid.NullUUID{UUID: payment.ID, Valid: true}

	authResult, err := p.assembleAuth(route.Endpoint)
	if err != nil {
		p.audit.UpdatePayment(payment.ID, audit.PaymentUpdate{Status: model.PaymentFailed, ErrorMessage: err.Error()})
		p.writeError(w, apperr.Wrap(apperr.KindMisconfigured, "pipeline: auth header assembly failed", err))
		p.logRequest(route, r, clientIP, userAgent, isBrowser, http.StatusInternalServerError, time.Since(start), true, false, paymentRef)
		return
	}

	upstreamReq, err := p.buildUpstreamRequest(ctx, r, route.Endpoint, restPath, authResult)
	if err != nil {
		p.audit.UpdatePayment(payment.ID, audit.PaymentUpdate{Status: model.PaymentFailed, ErrorMessage: err.Error()})
		p.writeError(w, apperr.Wrap(apperr.KindUpstreamUnreachable, "pipeline: upstream request could not be built", err))
		p.logRequest(route, r, clientIP, userAgent, isBrowser, http.StatusBadGateway, time.Since(start), true, false, paymentRef)
		return
	}

	upstreamStart := time.Now()
	upstreamResp, err := p.upstreamClient.Do(upstreamReq)
	monitoring.UpstreamLatency.WithLabelValues(route.Endpoint.ID.String()).Observe(time.Since(upstreamStart).Seconds())
	if err != nil {
		p.audit.UpdatePayment(payment.ID, audit.PaymentUpdate{Status: model.PaymentFailed, ErrorMessage: err.Error()})
		monitoring.PaymentsTotal.WithLabelValues(string(model.PaymentFailed)).Inc()
		p.writeError(w, apperr.Wrap(apperr.KindUpstreamUnreachable, "pipeline: upstream unreachable", err))
		p.logRequest(route, r, clientIP, userAgent, isBrowser, http.StatusBadGateway, time.Since(start), true, false, paymentRef)
		return
	}
	defer upstreamResp.Body.Close()

	body, err := io.ReadAll(upstreamResp.Body)
	if err != nil {
		p.audit.UpdatePayment(payment.ID, audit.PaymentUpdate{Status: model.PaymentFailed, ErrorMessage: err.Error()})
		p.writeError(w, apperr.Wrap(apperr.KindUpstreamUnreachable, "pipeline: upstream response could not be read", err))
		p.logRequest(route, r, clientIP, userAgent, isBrowser, http.StatusBadGateway, time.Since(start), true, false, paymentRef)
		return
	}

	// Settlement uses a context detached from the inbound request's
	// cancellation: a client disconnecting must not abort a settlement
	// that's already in flight, since funds may already be moving (§5).
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	settleResult := p.facilitator.Settle(settleCtx, payload, requirement)
	cancel()

	var settlementHeader string
	settlementJSON, _ := json.Marshal(settleResult)
	if settleResult.Success {
		settlementHeader = base64.StdEncoding.EncodeToString(settlementJSON)
		settledAt := time.Now()
		p.audit.UpdatePayment(payment.ID, audit.PaymentUpdate{
			Status:         model.PaymentSettled,
			TxHash:         settleResult.Transaction,
			SettlementJSON: settlementJSON,
			SettledAt:      &settledAt,
		})
		monitoring.PaymentsTotal.WithLabelValues(string(model.PaymentSettled)).Inc()
	} else {
		p.audit.UpdatePayment(payment.ID, audit.PaymentUpdate{
			Status:         model.PaymentFailed,
			SettlementJSON: settlementJSON,
			ErrorMessage:   settleResult.ErrorReason,
		})
		monitoring.PaymentsTotal.WithLabelValues(string(model.PaymentFailed)).Inc()
	}

	if ct := upstreamResp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	ratelimit.SetHeaders(w.Header(), rlResult)
	if settlementHeader != "" {
		w.Header().Set("X-Payment-Response", settlementHeader)
		w.Header().Set("Payment-Response", settlementHeader)
	}
	w.WriteHeader(upstreamResp.StatusCode)
	_, _ = w.Write(body)

	p.logRequest(route, r, clientIP, userAgent, isBrowser, upstreamResp.StatusCode, time.Since(start), true, false, paymentRef)
}

func (p *Pipeline) testnetFor(endpoint *model.Endpoint) bool {
	return endpoint.Testnet || p.config.TestnetForce
}

func (p *Pipeline) buildRequirement(route *resolver.ResolvedRoute) model.PaymentRequirement {
	return facilitator.BuildRequirement(facilitator.RequirementInput{
		PriceUSD: route.Endpoint.PriceUSD,
		PayTo:    route.PayTo,
		Testnet:  p.testnetFor(route.Endpoint),
	}, p.config.Assets)
}

func (p *Pipeline) resourceURL(tenantSlug, endpointSlug, restPath string) string {
	u := strings.TrimRight(p.config.AppBaseURL, "/") + "/" + tenantSlug + "/" + endpointSlug
	restPath = strings.TrimPrefix(restPath, "/")
	if restPath != "" {
		u += "/" + restPath
	}
	return u
}

func (p *Pipeline) respondPaymentRequired(w http.ResponseWriter, route *resolver.ResolvedRoute, resourceURL string, isBrowser bool) {
	doc := facilitator.GeneratePaymentRequired(facilitator.PaymentRequiredInput{
		URL:         resourceURL,
		Description: route.Endpoint.Description,
		PriceUSD:    route.Endpoint.PriceUSD,
		PayTo:       route.PayTo,
		Testnet:     p.testnetFor(route.Endpoint),
	}, p.config.Assets)

	if !isBrowser {
		writeJSON(w, http.StatusPaymentRequired, doc)
		return
	}

	html, err := paywall.Render(paywall.Input{
		Paywall:            route.Endpoint.Paywall,
		CustomHTMLTemplate: route.Endpoint.CustomHTMLTemplate,
		PriceUSD:           route.Endpoint.PriceUSD,
		PaymentRequired:    doc,
	})
	if err != nil {
		p.writeError(w, apperr.Wrap(apperr.KindInternal, "pipeline: paywall render failed", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusPaymentRequired)
	_, _ = w.Write([]byte(html))
}

func (p *Pipeline) recordPayment(route *resolver.ResolvedRoute, r *http.Request, payload *model.PaymentPayload, requirement model.PaymentRequirement, payer string) *model.Payment {
	payloadJSON, _ := json.Marshal(payload)
	payment := &model.Payment{
		ID:            uuid.New(),
		EndpointID:    uuid.NullUUID{UUID: route.Endpoint.ID, Valid: true},
		TenantID:      uuid.NullUUID{UUID: route.Tenant.ID, Valid: true},
		PayerAddress:  payer,
		AmountUSD:     route.Endpoint.PriceUSD,
		ChainID:       parseChainID(requirement.Network),
		Network:       requirement.Network,
		Status:        model.PaymentVerified,
		PayloadJSON:   payloadJSON,
		RequestPath:   r.URL.Path,
		RequestMethod: r.Method,
		CreatedAt:     time.Now(),
	}
	p.audit.InsertPayment(payment)
	return payment
}

func (p *Pipeline) assembleAuth(endpoint *model.Endpoint) (authheader.Result, error) {
	lookup := func(name string) (*secretstore.EncryptedSecret, bool) {
		return p.lookupSecret(endpoint.TenantID, name)
	}
	return authheader.Build(p.secrets, endpoint, lookup)
}

func (p *Pipeline) buildUpstreamRequest(ctx context.Context, r *http.Request, endpoint *model.Endpoint, restPath string, auth authheader.Result) (*http.Request, error) {
	upstreamURL, err := assembleUpstreamURL(endpoint.UpstreamURL, restPath, r.URL.Query(), auth.QueryParams)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		body = r.Body
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, upstreamURL, body)
	if err != nil {
		return nil, err
	}

	copyForwardableHeaders(req.Header, r.Header)
	for key, values := range auth.Headers {
		req.Header[key] = values
	}
	return req, nil
}

func (p *Pipeline) logRequest(route *resolver.ResolvedRoute, r *http.Request, clientIP, userAgent string, isBrowser bool, status int, elapsed time.Duration, paid, rateLimited bool, paymentID uuid.NullUUID) {
	p.audit.InsertRequestLog(&model.RequestLog{
		ID:          uuid.New(),
		EndpointID:  uuid.NullUUID{UUID: route.Endpoint.ID, Valid: true},
		TenantID:    uuid.NullUUID{UUID: route.Tenant.ID, Valid: true},
		PaymentID:   paymentID,
		Path:        r.URL.Path,
		Method:      r.Method,
		StatusCode:  status,
		ElapsedMs:   elapsed.Milliseconds(),
		ClientIP:    clientIP,
		UserAgent:   userAgent,
		IsBrowser:   isBrowser,
		Paid:        paid,
		RateLimited: rateLimited,
		CreatedAt:   time.Now(),
	})
}

func (p *Pipeline) writeError(w http.ResponseWriter, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.Wrap(apperr.KindInternal, "pipeline: unclassified error", err)
	}
	if appErr.Kind == apperr.KindInternal || appErr.Kind == apperr.KindMisconfigured {
		log.Error().Err(appErr).Msg("pipeline: request failed")
	}
	writeJSON(w, apperr.HTTPStatus(appErr.Kind), map[string]string{"error": clientMessage(appErr.Kind)})
}

func clientMessage(kind apperr.Kind) string {
	switch kind {
	case apperr.KindNotFound:
		return "not found"
	case apperr.KindUpstreamUnreachable:
		return "upstream unreachable"
	default:
		return "internal server error"
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func clientIPOf(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.SplitN(fwd, ",", 2)[0]
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseChainID(network string) int64 {
	const prefix = "eip155:"
	if !strings.HasPrefix(network, prefix) {
		return 0
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(network, prefix), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

var droppedRequestHeaders = map[string]struct{}{
	"host":                {},
	"connection":          {},
	"keep-alive":          {},
	"te":                  {},
	"trailer":             {},
	"upgrade":             {},
	"content-length":      {},
	"x-payment":           {},
	"x-payment-signature": {},
	"payment-signature":   {},
}

func copyForwardableHeaders(dst, src http.Header) {
	for key, values := range src {
		if _, dropped := droppedRequestHeaders[strings.ToLower(key)]; dropped {
			continue
		}
		dst[key] = append([]string(nil), values...)
	}
}

func assembleUpstreamURL(base, restPath string, inboundQuery url.Values, overlay map[string]string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", err
	}

	restPath = strings.TrimPrefix(restPath, "/")
	if restPath != "" {
		u.Path = u.Path + "/" + restPath
	}

	q := u.Query()
	for key, values := range inboundQuery {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	for key, value := range overlay {
		q.Set(key, value)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
