package secretstore

import (
	"regexp"

	"github.com/rs/zerolog/log"

	"github.com/teresa-solution/x402-gateway/internal/crypto"
)

// referencePattern matches {{SECRET:NAME}} where NAME follows the secret
// name charset from internal/model.ValidateSecretName: [A-Z_][A-Z0-9_]*.
var referencePattern = regexp.MustCompile(`\{\{SECRET:([A-Z_][A-Z0-9_]*)\}\}`)

// EncryptedSecret is the ciphertext+nonce pair a Lookup returns, matching
// what the store persists for a Secret row.
type EncryptedSecret struct {
	Ciphertext []byte
	Nonce      []byte
}

// Lookup resolves a secret name to its stored ciphertext, scoped to
// whatever tenant the caller has already bound (internal/authheader passes
// a closure over the tenant id). A nil return means "not found" — resolution
// never aborts on a missing secret.
type Lookup func(name string) (*EncryptedSecret, bool)

// Store resolves {{SECRET:NAME}} placeholders against a Sealer and a Lookup.
type Store struct {
	sealer *crypto.Sealer
}

// New builds a Store backed by the given Sealer.
func New(sealer *crypto.Sealer) *Store {
	return &Store{sealer: sealer}
}

// ResolveReferences finds every non-overlapping {{SECRET:NAME}} occurrence
// in template, decrypts each via lookup, and substitutes the plaintext.
// Unknown references (lookup returns false, or decryption fails) are left
// intact in the output and reported through a server-side diagnostic log —
// resolution never aborts and never leaks a partially-decrypted value.
func (s *Store) ResolveReferences(template string, lookup Lookup) string {
	return referencePattern.ReplaceAllStringFunc(template, func(match string) string {
		sub := referencePattern.FindStringSubmatch(match)
		if len(sub) != 2 {
			return match
		}
		name := sub[1]

		enc, ok := lookup(name)
		if !ok || enc == nil {
			logUnknownReference(name)
			return match
		}

		plaintext, err := s.sealer.Decrypt(enc.Ciphertext, enc.Nonce)
		if err != nil {
			logUnknownReference(name)
			return match
		}
		return plaintext
	})
}

// logUnknownReference is the diagnostic channel required by §4.2: it must
// never abort resolution and must never place the secret name in a
// response body, only in server-side logs.
func logUnknownReference(name string) {
	log.Warn().Str("secret_name", name).Msg("secretstore: unresolved secret reference")
}
