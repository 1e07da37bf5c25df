package model

import (
	"time"

	"github.com/google/uuid"
)

const secretNameMaxLen = 64

// Secret represents a row in the secrets table: ciphertext plus nonce for
// one tenant-scoped named value, consumed through {{SECRET:NAME}} references
// in an Endpoint's AuthConfig. Plaintext is never a field on this struct —
// it only exists transiently between internal/crypto.Decrypt and the
// outbound request, per §3's invariant.
type Secret struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	Name       string    `json:"name"`
	Ciphertext []byte    `json:"-"`
	Nonce      []byte    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// ValidateSecretName enforces the uppercase [A-Z_][A-Z0-9_]* charset, <=64
// chars, shared with the {{SECRET:NAME}} reference grammar in
// internal/secretstore.
func ValidateSecretName(name string) error {
	if len(name) == 0 || len(name) > secretNameMaxLen {
		return ErrInvalidSecretName
	}
	for i, r := range name {
		isUpper := r >= 'A' && r <= 'Z'
		isDigit := r >= '0' && r <= '9'
		if i == 0 {
			if !isUpper && r != '_' {
				return ErrInvalidSecretName
			}
			continue
		}
		if !isUpper && !isDigit && r != '_' {
			return ErrInvalidSecretName
		}
	}
	return nil
}
