package hostcall

import (
	"github.com/jamchain/jamd/crypto"
	"github.com/jamchain/jamd/state"
	"github.com/jamchain/jamd/types"
)

// Argument/result register indices for the calling convention a PVM program
// uses when trapping into a host call: Regs[0] carries the
// call's result, Regs[1..7] carry its arguments.
const (
	RegResult = 0
	RegA0     = 1
	RegA1     = 2
	RegA2     = 3
	RegA3     = 4
	RegA4     = 5
	RegA5     = 6
	RegA6     = 7
)

// Provided is a preimage queued by the provide host call for integration
// into a named service's account once the surrounding accumulation phase
// merges.
type Provided struct {
	Service types.ServiceId
	Blob    []byte
}

// Context is the accumulation/on-transfer invocation a host call executes
// within: the invoking service, an isolated clone of every account it may
// address, the chain entropy and slot it may read, and the side effects
// (deferred transfers, provided preimages, log lines, ejections, the
// yielded accumulation hash) it collects for the caller to fold back into
// state once the PVM run completes.
type Context struct {
	Service        types.ServiceId
	Accounts       state.ServiceAccounts
	Privileges     *state.Privileges
	NextValidators *state.ValidatorSet
	AuthQueues     []state.AuthQueue
	Entropy        types.Hash
	Slot           uint32
	CoreIndex      uint16
	Deferred       []Deferred
	Provided       []Provided
	Logs           []LogEntry
	Ejected        map[types.ServiceId]bool
	YieldHash      *types.Hash
	nextSeed       uint64

	chk *snapshot
}

// snapshot is the rollback point installed by the checkpoint host call: a
// deep copy of everything a panicking or gas-exhausted run must revert to.
type snapshot struct {
	accounts  state.ServiceAccounts
	priv      state.Privileges
	nextVals  state.ValidatorSet
	queues    []state.AuthQueue
	deferred  []Deferred
	provided  []Provided
	ejected   map[types.ServiceId]bool
	yieldHash *types.Hash
}

// NewContext returns a host-call context for one service's PVM invocation.
// accounts and priv must already be isolated clones owned by this run; the
// next-validator set and auth queues default to empty and are installed by
// the accumulation engine via WithPrivilegedSlices.
func NewContext(service types.ServiceId, accounts state.ServiceAccounts, priv *state.Privileges, entropy types.Hash, slot uint32, core uint16) *Context {
	return &Context{
		Service:        service,
		Accounts:       accounts,
		Privileges:     priv,
		NextValidators: &state.ValidatorSet{},
		Entropy:        entropy,
		Slot:           slot,
		CoreIndex:      core,
		Ejected:        make(map[types.ServiceId]bool),
	}
}

// WithPrivilegedSlices installs the remaining privileged state slices a
// designate/assign call may overwrite. Both must be
// isolated clones owned by this run.
func (c *Context) WithPrivilegedSlices(nextVals *state.ValidatorSet, queues []state.AuthQueue) *Context {
	c.NextValidators = nextVals
	c.AuthQueues = queues
	return c
}

func cloneQueues(queues []state.AuthQueue) []state.AuthQueue {
	out := make([]state.AuthQueue, len(queues))
	for i, q := range queues {
		out[i] = state.AuthQueue{Hashes: append([]types.Hash(nil), q.Hashes...)}
	}
	return out
}

func (c *Context) self() *state.Account { return c.Accounts[c.Service] }

// checkpoint installs the rollback point a later panic or out-of-gas exit
// unwinds to.
func (c *Context) checkpoint() {
	ejected := make(map[types.ServiceId]bool, len(c.Ejected))
	for k, v := range c.Ejected {
		ejected[k] = v
	}
	var yh *types.Hash
	if c.YieldHash != nil {
		cp := *c.YieldHash
		yh = &cp
	}
	c.chk = &snapshot{
		accounts:  c.Accounts.Clone(),
		priv:      c.Privileges.Clone(),
		nextVals:  *c.NextValidators,
		queues:    cloneQueues(c.AuthQueues),
		deferred:  append([]Deferred(nil), c.Deferred...),
		provided:  append([]Provided(nil), c.Provided...),
		ejected:   ejected,
		yieldHash: yh,
	}
}

// Rollback reverts the context to the most recent checkpoint, reporting
// whether one existed. Without a checkpoint the run's effects are simply
// discarded by the caller.
func (c *Context) Rollback() bool {
	if c.chk == nil {
		return false
	}
	c.Accounts = c.chk.accounts
	*c.Privileges = c.chk.priv
	*c.NextValidators = c.chk.nextVals
	c.AuthQueues = c.chk.queues
	c.Deferred = c.chk.deferred
	c.Provided = c.chk.provided
	c.Ejected = c.chk.ejected
	c.YieldHash = c.chk.yieldHash
	c.chk = nil
	return true
}

// deriveServiceID computes a candidate new service id from the invoking
// service, the chain entropy, and the current slot, stepping to the next id
// on collision with an existing account until an unused id at or above the
// reserved range is found.
func (c *Context) deriveServiceID() types.ServiceId {
	const reserved = 1 << 8
	seed := make([]byte, 0, 44)
	seed = append(seed, c.Service.Encode()...)
	seed = append(seed, c.Entropy.Bytes()...)
	var slotb [4]byte
	slotb[0] = byte(c.Slot)
	slotb[1] = byte(c.Slot >> 8)
	slotb[2] = byte(c.Slot >> 16)
	slotb[3] = byte(c.Slot >> 24)
	seed = append(seed, slotb[:]...)
	var nonce [8]byte
	n := c.nextSeed
	for i := 0; i < 8; i++ {
		nonce[i] = byte(n >> (8 * uint(i)))
	}
	seed = append(seed, nonce[:]...)
	c.nextSeed++

	h := crypto.Blake2b256(seed)
	id := types.ServiceId(h[0]) | types.ServiceId(h[1])<<8 | types.ServiceId(h[2])<<16 | types.ServiceId(h[3])<<24
	id = types.ServiceId(uint64(id)%((1<<32)-(1<<9))) + reserved
	for {
		if _, exists := c.Accounts[id]; !exists {
			return id
		}
		id = types.ServiceId((uint64(id)-reserved+1)%((1<<32)-(1<<9))) + reserved
	}
}
