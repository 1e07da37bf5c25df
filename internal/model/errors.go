package model

import "errors"

// Validation errors returned by the model package's own invariant checks.
// The pipeline and resolver translate these into the apperr taxonomy; they
// are not HTTP-facing themselves.
var (
	ErrInvalidSlug        = errors.New("model: slug must be lowercase alphanumeric/hyphen characters within the allowed length")
	ErrReservedSlug       = errors.New("model: slug is reserved")
	ErrInvalidSecretName  = errors.New("model: secret name must match [A-Z_][A-Z0-9_]* and be <=64 chars")
	ErrInvalidUpstreamURL = errors.New("model: upstream url is invalid")
	ErrInvalidAmount      = errors.New("model: payment amount must be positive with scale <= 6")
	ErrInvalidAuthKind    = errors.New("model: unknown auth kind")
)
