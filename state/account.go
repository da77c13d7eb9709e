package state

import (
	"github.com/holiman/uint256"

	"github.com/jamchain/jamd/types"
)

// LookupRecord tracks the availability timeslots of a requested/provided
// preimage: empty while awaiting provision, then the slots at which it was
// made available.
type LookupRecord struct {
	Length uint32
	Slots  []uint32
}

// Account is a service's on-chain record. Storage is keyed by
// the 31-byte sub-keys derived in keys.go.
type Account struct {
	Storage             map[types.StateKey][]byte
	Preimages           map[types.Hash][]byte
	Lookups             map[types.StateKey]LookupRecord
	CodeHash             types.Hash
	Balance              *uint256.Int
	AccMinGas            types.Gas
	XferMinGas           types.Gas
	Items                uint32
	Octets               uint64
	CreatedAt            uint32
	LastAcc              uint32
	ParentService        types.ServiceId
	GratisStorageOffset  uint64
}

// NewAccount returns a zeroed account with its maps allocated.
func NewAccount() *Account {
	return &Account{
		Storage:   make(map[types.StateKey][]byte),
		Preimages: make(map[types.Hash][]byte),
		Lookups:   make(map[types.StateKey]LookupRecord),
		Balance:   uint256.NewInt(0),
	}
}

// Threshold computes the minimum balance an account must carry:
// max(0, MIN_BALANCE + items*PER_ITEM + octets*PER_OCTET - gratis_offset).
func (a *Account) Threshold() uint64 {
	required := int64(types.MinBalance) + int64(a.Items)*int64(types.PerItem) + int64(a.Octets)*int64(types.PerOctet) - int64(a.GratisStorageOffset)
	if required < 0 {
		return 0
	}
	return uint64(required)
}

// MeetsThreshold reports whether the account's balance is at or above its
// own threshold.
func (a *Account) MeetsThreshold() bool {
	return a.Balance.Cmp(uint256.NewInt(a.Threshold())) >= 0
}

// Clone returns a deep copy, used when building per-service snapshots for
// the parallel accumulation phase.
func (a *Account) Clone() *Account {
	out := &Account{
		Storage:             make(map[types.StateKey][]byte, len(a.Storage)),
		Preimages:           make(map[types.Hash][]byte, len(a.Preimages)),
		Lookups:             make(map[types.StateKey]LookupRecord, len(a.Lookups)),
		CodeHash:            a.CodeHash,
		Balance:             new(uint256.Int).Set(a.Balance),
		AccMinGas:           a.AccMinGas,
		XferMinGas:          a.XferMinGas,
		Items:               a.Items,
		Octets:              a.Octets,
		CreatedAt:           a.CreatedAt,
		LastAcc:             a.LastAcc,
		ParentService:       a.ParentService,
		GratisStorageOffset: a.GratisStorageOffset,
	}
	for k, v := range a.Storage {
		cp := make([]byte, len(v))
		copy(cp, v)
		out.Storage[k] = cp
	}
	for k, v := range a.Preimages {
		cp := make([]byte, len(v))
		copy(cp, v)
		out.Preimages[k] = cp
	}
	for k, v := range a.Lookups {
		slots := make([]uint32, len(v.Slots))
		copy(slots, v.Slots)
		out.Lookups[k] = LookupRecord{Length: v.Length, Slots: slots}
	}
	return out
}

// ServiceAccounts maps service ids to their accounts.
type ServiceAccounts map[types.ServiceId]*Account

// Clone deep-copies every account in the map.
func (s ServiceAccounts) Clone() ServiceAccounts {
	out := make(ServiceAccounts, len(s))
	for id, acc := range s {
		out[id] = acc.Clone()
	}
	return out
}
