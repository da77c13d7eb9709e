package state

import (
	"testing"

	"github.com/jamchain/jamd/types"
)

func TestU8Key(t *testing.T) {
	k := U8Key(7)
	if k[0] != 7 {
		t.Fatalf("k[0] = %d", k[0])
	}
	for i := 1; i < types.StateKeyLength; i++ {
		if k[i] != 0 {
			t.Fatalf("k[%d] = %d, want 0", i, k[i])
		}
	}
}

func TestServiceKeyInterleave(t *testing.T) {
	k := ServiceKey(0xFF, types.ServiceId(0x04030201))
	want := []byte{0xFF, 0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0x04, 0x00}
	for i, b := range want {
		if k[i] != b {
			t.Fatalf("k[%d] = %#x, want %#x", i, k[i], b)
		}
	}
}

func TestAccountKeyInterleave(t *testing.T) {
	sub := make([]byte, 27)
	for i := range sub {
		sub[i] = byte(0xA0 + i)
	}
	k := AccountKey(types.ServiceId(0x04030201), sub)
	head := []byte{0x01, 0xA0, 0x02, 0xA1, 0x03, 0xA2, 0x04, 0xA3}
	for i, b := range head {
		if k[i] != b {
			t.Fatalf("k[%d] = %#x, want %#x", i, k[i], b)
		}
	}
	for i := 0; i < 23; i++ {
		if k[8+i] != sub[4+i] {
			t.Fatalf("tail byte %d = %#x, want %#x", i, k[8+i], sub[4+i])
		}
	}
}

func TestSubKeysDisjoint(t *testing.T) {
	svc := types.ServiceId(42)
	var hash types.Hash
	hash[0] = 0x55

	storage := StorageKey(svc, []byte("raw"))
	preimage := PreimageKey(svc, hash)
	lookup := LookupKey(svc, hash, 100)

	if storage == preimage || storage == lookup || preimage == lookup {
		t.Fatal("sub-key kinds collide")
	}
}

func TestStorageKeyDiscriminator(t *testing.T) {
	k := StorageKey(types.ServiceId(1), []byte("x"))
	// Interleaved discriminator bytes 0xFF land at odd head positions.
	for _, i := range []int{1, 3, 5, 7} {
		if k[i] != 0xFF {
			t.Fatalf("k[%d] = %#x, want 0xFF", i, k[i])
		}
	}
}

func TestLookupKeyLengthSensitive(t *testing.T) {
	var hash types.Hash
	if LookupKey(1, hash, 10) == LookupKey(1, hash, 11) {
		t.Fatal("lookup keys with different lengths collide")
	}
}

func TestAccountThreshold(t *testing.T) {
	acc := NewAccount()
	if got := acc.Threshold(); got != types.MinBalance {
		t.Fatalf("empty threshold = %d, want %d", got, types.MinBalance)
	}
	acc.Items = 3
	acc.Octets = 100
	want := uint64(types.MinBalance + 3*types.PerItem + 100*types.PerOctet)
	if got := acc.Threshold(); got != want {
		t.Fatalf("threshold = %d, want %d", got, want)
	}
	acc.GratisStorageOffset = want + 1000
	if got := acc.Threshold(); got != 0 {
		t.Fatalf("gratis-offset threshold = %d, want 0", got)
	}
}
