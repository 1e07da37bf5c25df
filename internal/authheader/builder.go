package authheader

import (
	"encoding/base64"
	"net/http"

	"github.com/teresa-solution/x402-gateway/internal/model"
	"github.com/teresa-solution/x402-gateway/internal/secretstore"
)

// Resolver resolves {{SECRET:NAME}} placeholders, matching
// secretstore.Store.ResolveReferences's signature.
type Resolver interface {
	ResolveReferences(template string, lookup secretstore.Lookup) string
}

// Result is what Build produces: headers to layer onto the upstream
// request, plus query parameters to merge into the upstream URL (only
// populated for AuthKindQueryKey).
type Result struct {
	Headers     http.Header
	QueryParams map[string]string
}

// Build assembles upstream credentials for endpoint, dispatching on its
// AuthKind per §4.3's table. lookup resolves secret names scoped to the
// endpoint's owning tenant.
func Build(resolver Resolver, endpoint *model.Endpoint, lookup secretstore.Lookup) (Result, error) {
	result := Result{Headers: http.Header{}, QueryParams: map[string]string{}}

	resolve := func(s string) string {
		return resolver.ResolveReferences(s, lookup)
	}

	switch endpoint.AuthKind {
	case model.AuthKindNone, "":
		// empty map

	case model.AuthKindBearer:
		token := resolve(endpoint.AuthConfig["token"])
		result.Headers.Set("Authorization", "Bearer "+token)

	case model.AuthKindHeaderKey:
		name := endpoint.AuthConfig["headerName"]
		value := resolve(endpoint.AuthConfig["headerValue"])
		if name != "" {
			result.Headers.Set(name, value)
		}

	case model.AuthKindQueryKey:
		param := endpoint.AuthConfig["queryParam"]
		value := resolve(endpoint.AuthConfig["queryValue"])
		if param != "" {
			result.QueryParams[param] = value
		}

	case model.AuthKindBasic:
		user := resolve(endpoint.AuthConfig["user"])
		pass := resolve(endpoint.AuthConfig["pass"])
		encoded := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
		result.Headers.Set("Authorization", "Basic "+encoded)

	case model.AuthKindCustomHeaders:
		for key, value := range customHeaderEntries(endpoint.AuthConfig) {
			result.Headers.Set(key, resolve(value))
		}

	default:
		return result, model.ErrInvalidAuthKind
	}

	return result, nil
}

// customHeaderEntries extracts the "headers.<Name>" entries of AuthConfig
// produced by flattening a config.headers map at the storage boundary —
// the map itself is a flat map[string]string (§3), so nested header names
// are namespaced with a "headers." prefix when an endpoint is configured.
func customHeaderEntries(cfg map[string]string) map[string]string {
	const prefix = "headers."
	out := make(map[string]string, len(cfg))
	for key, value := range cfg {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			out[key[len(prefix):]] = value
		}
	}
	return out
}
