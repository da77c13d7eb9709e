package consensus

import (
	stded25519 "crypto/ed25519"
	"testing"

	"github.com/jamchain/jamd/crypto"
	"github.com/jamchain/jamd/state"
	"github.com/jamchain/jamd/types"
)

// testValidator pairs a deterministic Ed25519 keypair with the validator
// record installed into the test state.
type testValidator struct {
	priv stded25519.PrivateKey
	pub  types.Ed25519Public
}

// makeValidators derives VALIDATORS_COUNT deterministic keypairs (seed i+1
// repeated) so signatures in tests verify for real.
func makeValidators(t *testing.T) []testValidator {
	t.Helper()
	out := make([]testValidator, types.ValidatorsCount)
	for i := range out {
		seed := make([]byte, stded25519.SeedSize)
		for j := range seed {
			seed[j] = byte(i + 1)
		}
		priv := stded25519.NewKeyFromSeed(seed)
		var pub types.Ed25519Public
		copy(pub[:], priv.Public().(stded25519.PublicKey))
		out[i] = testValidator{priv: priv, pub: pub}
	}
	return out
}

// testState builds a state whose three validator snapshots all hold the
// given keys, with distinct Bandersnatch bytes per index.
func testState(t *testing.T, vals []testValidator) *state.State {
	t.Helper()
	s := state.New(types.ValidatorsCount, types.CoresCount, types.EpochLength, types.RecentHistorySize)
	for i, v := range vals {
		var rec types.ValidatorRecord
		rec.Ed25519 = v.pub
		rec.Bandersnatch[0] = byte(i + 1)
		s.Validators.Previous[i] = rec
		s.Validators.Current[i] = rec
		s.Validators.Next[i] = rec
		s.Safrole.Pending[i] = rec
	}
	s.Entropy[2][0] = 0xE2
	s.Entropy[3][0] = 0xE3
	return &s
}

func (v testValidator) sign(domain []byte, payload ...[]byte) types.Ed25519Signature {
	msg := crypto.DomainMessage(domain, payload...)
	var sig types.Ed25519Signature
	copy(sig[:], stded25519.Sign(v.priv, msg))
	return sig
}

func newVerifier() *crypto.CachedEd25519Verifier {
	return crypto.NewCachedEd25519Verifier(nil)
}
