package crypto

import (
	stded25519 "crypto/ed25519"

	"github.com/jamchain/jamd/types"
)

// Ed25519Verify checks sig over msg under pub. msg is expected to already
// carry its domain separator prefix (see DomainMessage).
func Ed25519Verify(pub types.Ed25519Public, msg []byte, sig types.Ed25519Signature) bool {
	return stded25519.Verify(pub[:], msg, sig[:])
}

// DomainMessage prepends a domain separator to payload, matching the
// "domain ‖ payload" signing convention used for tickets, judgements,
// guarantees, and assurances.
func DomainMessage(domain []byte, payload ...[]byte) []byte {
	total := len(domain)
	for _, p := range payload {
		total += len(p)
	}
	buf := make([]byte, 0, total)
	buf = append(buf, domain...)
	for _, p := range payload {
		buf = append(buf, p...)
	}
	return buf
}

// CachedEd25519Verifier verifies Ed25519 signatures through a SignatureCache,
// avoiding repeat verification of the same (key, message, signature) triple
// for as long as the cache holds it, across block imports when the verifier
// is shared.
type CachedEd25519Verifier struct {
	cache *SignatureCache
}

// NewCachedEd25519Verifier wraps cache, or allocates a default-sized one if
// cache is nil.
func NewCachedEd25519Verifier(cache *SignatureCache) *CachedEd25519Verifier {
	if cache == nil {
		cache = NewSignatureCache(0)
	}
	return &CachedEd25519Verifier{cache: cache}
}

// Verify checks sig over msg under pub, consulting and populating the cache.
func (v *CachedEd25519Verifier) Verify(pub types.Ed25519Public, msg []byte, sig types.Ed25519Signature) bool {
	msgHash := Keccak256Hash(msg)
	key := SigCacheKey(SigTypeEd25519, sig[:], msgHash)
	if entry, ok := v.cache.Get(key); ok && entry.Signer == pub {
		return entry.Valid
	}
	valid := Ed25519Verify(pub, msg, sig)
	v.cache.Add(key, SigCacheEntry{Signer: pub, Valid: valid, SigType: SigTypeEd25519})
	return valid
}
