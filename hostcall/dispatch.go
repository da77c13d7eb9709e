package hostcall

import (
	"encoding/binary"

	"github.com/holiman/uint256"

	"github.com/jamchain/jamd/crypto"
	"github.com/jamchain/jamd/pvm"
	"github.com/jamchain/jamd/state"
	"github.com/jamchain/jamd/types"
)

// baseGas is the flat charge every host call levies on top of the
// dispatching instruction's own cost.
const baseGas = 10

// Dispatch implements pvm.HostCallHandler: it decodes the trapped call
// number, charges the call's base gas, runs the corresponding host-call
// semantics against ctx, leaves a Status (or, for gas, fetch, lookup, read,
// query and new, a direct value) in Regs[RegResult], and returns true so the machine resumes at
// the next instruction. Host calls never themselves halt the machine; an
// overdrawn gas counter surfaces as OutOfGas on the next dispatch step.
func Dispatch(ctx *Context) pvm.HostCallHandler {
	return func(m *pvm.Machine, call uint32) bool {
		m.Gas -= baseGas
		if m.Gas < 0 {
			return true
		}
		switch call {
		case CallGas:
			m.Regs[RegResult] = uint64(m.Gas)
		case CallLookup:
			ctx.lookup(m)
		case CallRead:
			ctx.read(m)
		case CallWrite:
			ctx.write(m)
		case CallInfo:
			ctx.info(m)
		case CallBless:
			ctx.bless(m)
		case CallAssign:
			ctx.assign(m)
		case CallDesignate:
			ctx.designate(m)
		case CallCheckpoint:
			ctx.checkpoint()
			m.Regs[RegResult] = uint64(StOK)
		case CallNew:
			ctx.newService(m)
		case CallUpgrade:
			ctx.upgrade(m)
		case CallTransfer:
			ctx.transfer(m)
		case CallEject:
			ctx.eject(m)
		case CallQuery:
			ctx.query(m)
		case CallSolicit:
			ctx.solicit(m)
		case CallForget:
			ctx.forget(m)
		case CallYield:
			ctx.yield(m)
		case CallProvide:
			ctx.provide(m)
		case CallFetch:
			ctx.fetch(m)
		case CallLog:
			ctx.log(m)
		default:
			m.Regs[RegResult] = uint64(StWhat)
		}
		return true
	}
}

// target resolves a service-id argument, with 0 meaning "the invoking
// service itself" as is conventional across the call surface.
func (c *Context) target(id types.ServiceId) (*state.Account, types.ServiceId, bool) {
	sid := id
	if sid == 0 {
		sid = c.Service
	}
	acc, ok := c.Accounts[sid]
	return acc, sid, ok
}

func readU32(m *pvm.Machine, reg int) uint32 { return uint32(m.Regs[reg]) }

func readBuf(m *pvm.Machine, ptr, length uint32) ([]byte, bool) {
	data, _, ok := m.Mem.ReadBytes(ptr, int(length))
	return data, ok
}

func writeBuf(m *pvm.Machine, ptr uint32, data []byte) bool {
	_, ok := m.Mem.WriteBytes(ptr, data)
	return ok
}

func (c *Context) lookup(m *pvm.Machine) {
	_, sid, ok := c.target(types.ServiceId(readU32(m, RegA0)))
	if !ok {
		m.Regs[RegResult] = uint64(StWho)
		return
	}
	hashBytes, ok := readBuf(m, readU32(m, RegA1), types.HashLength)
	if !ok {
		m.Regs[RegResult] = uint64(StOOB)
		return
	}
	hash := types.BytesToHash(hashBytes)
	blob, ok := c.Accounts[sid].Preimages[hash]
	if !ok {
		m.Regs[RegResult] = uint64(StNone)
		return
	}
	outPtr, outLen := readU32(m, RegA2), readU32(m, RegA3)
	n := len(blob)
	if uint32(n) > outLen {
		n = int(outLen)
	}
	if !writeBuf(m, outPtr, blob[:n]) {
		m.Regs[RegResult] = uint64(StOOB)
		return
	}
	m.Regs[RegResult] = uint64(len(blob))
}

func (c *Context) read(m *pvm.Machine) {
	_, sid, ok := c.target(types.ServiceId(readU32(m, RegA0)))
	if !ok {
		m.Regs[RegResult] = uint64(StWho)
		return
	}
	rawKey, ok := readBuf(m, readU32(m, RegA1), readU32(m, RegA2))
	if !ok {
		m.Regs[RegResult] = uint64(StOOB)
		return
	}
	key := state.StorageKey(sid, rawKey)
	val, ok := c.Accounts[sid].Storage[key]
	if !ok {
		m.Regs[RegResult] = uint64(StNone)
		return
	}
	outPtr, outLen := readU32(m, RegA3), readU32(m, RegA4)
	n := len(val)
	if uint32(n) > outLen {
		n = int(outLen)
	}
	if !writeBuf(m, outPtr, val[:n]) {
		m.Regs[RegResult] = uint64(StOOB)
		return
	}
	m.Regs[RegResult] = uint64(len(val))
}

func (c *Context) write(m *pvm.Machine) {
	acc := c.self()
	rawKey, ok := readBuf(m, readU32(m, RegA0), readU32(m, RegA1))
	if !ok {
		m.Regs[RegResult] = uint64(StOOB)
		return
	}
	key := state.StorageKey(c.Service, rawKey)
	dataLen := readU32(m, RegA3)
	m.Gas -= int64(dataLen)
	if m.Gas < 0 {
		return
	}
	if dataLen == 0 {
		if old, existed := acc.Storage[key]; existed {
			acc.Octets -= uint64(len(old))
			acc.Items--
			delete(acc.Storage, key)
		}
		if !acc.MeetsThreshold() {
			m.Regs[RegResult] = uint64(StFull)
			return
		}
		m.Regs[RegResult] = uint64(StOK)
		return
	}
	data, ok := readBuf(m, readU32(m, RegA2), dataLen)
	if !ok {
		m.Regs[RegResult] = uint64(StOOB)
		return
	}
	old, existed := acc.Storage[key]
	acc.Storage[key] = data
	if existed {
		acc.Octets = acc.Octets - uint64(len(old)) + uint64(len(data))
	} else {
		acc.Items++
		acc.Octets += uint64(len(data))
	}
	if !acc.MeetsThreshold() {
		if existed {
			acc.Storage[key] = old
			acc.Octets = acc.Octets - uint64(len(data)) + uint64(len(old))
		} else {
			delete(acc.Storage, key)
			acc.Items--
			acc.Octets -= uint64(len(data))
		}
		m.Regs[RegResult] = uint64(StFull)
		return
	}
	m.Regs[RegResult] = uint64(StOK)
}

func (c *Context) info(m *pvm.Machine) {
	acc, _, ok := c.target(types.ServiceId(readU32(m, RegA0)))
	if !ok {
		m.Regs[RegResult] = uint64(StNone)
		return
	}
	buf := make([]byte, 0, 64)
	buf = append(buf, acc.CodeHash.Bytes()...)
	var b8 [8]byte
	binary.LittleEndian.PutUint64(b8[:], acc.Balance.Uint64())
	buf = append(buf, b8[:]...)
	binary.LittleEndian.PutUint64(b8[:], uint64(acc.AccMinGas))
	buf = append(buf, b8[:]...)
	binary.LittleEndian.PutUint64(b8[:], uint64(acc.XferMinGas))
	buf = append(buf, b8[:]...)
	var b4 [4]byte
	binary.LittleEndian.PutUint32(b4[:], acc.Items)
	buf = append(buf, b4[:]...)
	binary.LittleEndian.PutUint64(b8[:], acc.Octets)
	buf = append(buf, b8[:]...)
	if !writeBuf(m, readU32(m, RegA1), buf) {
		m.Regs[RegResult] = uint64(StOOB)
		return
	}
	m.Regs[RegResult] = uint64(StOK)
}

// bless installs the full privilege assignment: manager, per-core assign
// services (CORES_COUNT u32s read from RAM), designate, and the
// always-accumulate map read as (u32 id, u64 gas) pairs. Only the current
// manager (or, at genesis, any service while the manager is unset) may
// invoke it.
func (c *Context) bless(m *pvm.Machine) {
	if c.Privileges.Manager != 0 && c.Privileges.Manager != c.Service {
		m.Regs[RegResult] = uint64(StHuh)
		return
	}
	manager := types.ServiceId(readU32(m, RegA0))
	assignPtr := readU32(m, RegA1)
	designate := types.ServiceId(readU32(m, RegA2))
	alwaysPtr, count := readU32(m, RegA3), readU32(m, RegA4)

	assign := make([]types.ServiceId, len(c.Privileges.Assign))
	for i := range assign {
		b, ok := readBuf(m, assignPtr+uint32(i)*4, 4)
		if !ok {
			m.Regs[RegResult] = uint64(StOOB)
			return
		}
		assign[i] = types.ServiceId(binary.LittleEndian.Uint32(b))
	}

	always := make(map[types.ServiceId]types.Gas, count)
	for i := uint32(0); i < count; i++ {
		entry, ok := readBuf(m, alwaysPtr+12*i, 12)
		if !ok {
			m.Regs[RegResult] = uint64(StOOB)
			return
		}
		id := types.ServiceId(binary.LittleEndian.Uint32(entry[0:4]))
		always[id] = types.Gas(binary.LittleEndian.Uint64(entry[4:12]))
	}

	c.Privileges.Manager = manager
	c.Privileges.Assign = assign
	c.Privileges.Designate = designate
	c.Privileges.AlwaysAcc = always
	m.Regs[RegResult] = uint64(StOK)
}

// assign overwrites one core's authorizer queue, read as a sequence of
// 32-byte hashes from RAM. Only the service named by assign[core] may
// invoke it.
func (c *Context) assign(m *pvm.Machine) {
	core := readU32(m, RegA0)
	if int(core) >= len(c.Privileges.Assign) || int(core) >= len(c.AuthQueues) {
		m.Regs[RegResult] = uint64(StCore)
		return
	}
	if c.Privileges.Assign[core] != c.Service {
		m.Regs[RegResult] = uint64(StHuh)
		return
	}
	ptr, count := readU32(m, RegA1), readU32(m, RegA2)
	hashes := make([]types.Hash, count)
	for i := uint32(0); i < count; i++ {
		b, ok := readBuf(m, ptr+types.HashLength*i, types.HashLength)
		if !ok {
			m.Regs[RegResult] = uint64(StOOB)
			return
		}
		hashes[i] = types.BytesToHash(b)
	}
	c.AuthQueues[core] = state.AuthQueue{Hashes: hashes}
	m.Regs[RegResult] = uint64(StOK)
}

// designate overwrites the next validator set, read as VALIDATORS_COUNT
// canonical 336-byte records from RAM. Only the designate service may
// invoke it.
func (c *Context) designate(m *pvm.Machine) {
	if c.Privileges.Designate != c.Service {
		m.Regs[RegResult] = uint64(StHuh)
		return
	}
	ptr := readU32(m, RegA0)
	var next state.ValidatorSet
	for i := range next {
		b, ok := readBuf(m, ptr+uint32(i)*types.ValidatorRecordLength, types.ValidatorRecordLength)
		if !ok {
			m.Regs[RegResult] = uint64(StOOB)
			return
		}
		rec, err := types.DecodeValidatorRecord(b)
		if err != nil {
			m.Regs[RegResult] = uint64(StOOB)
			return
		}
		next[i] = rec
	}
	*c.NextValidators = next
	m.Regs[RegResult] = uint64(StOK)
}

// newService creates a fresh account seeded with a code hash and gas
// floors, funded from the invoking service's balance.
func (c *Context) newService(m *pvm.Machine) {
	codeHashBytes, ok := readBuf(m, readU32(m, RegA0), types.HashLength)
	if !ok {
		m.Regs[RegResult] = uint64(StOOB)
		return
	}
	accMinGas := types.Gas(m.Regs[RegA1])
	xferMinGas := types.Gas(m.Regs[RegA2])
	transfer := m.Regs[RegA3]

	self := c.self()
	if self.Balance.Uint64() < transfer {
		m.Regs[RegResult] = uint64(StCash)
		return
	}

	id := c.deriveServiceID()
	acc := state.NewAccount()
	acc.CodeHash = types.BytesToHash(codeHashBytes)
	acc.AccMinGas = accMinGas
	acc.XferMinGas = xferMinGas
	acc.Balance = uint256.NewInt(transfer)
	acc.CreatedAt = c.Slot
	acc.LastAcc = c.Slot
	acc.ParentService = c.Service
	c.Accounts[id] = acc

	self.Balance = new(uint256.Int).Sub(self.Balance, uint256.NewInt(transfer))
	if !self.MeetsThreshold() {
		delete(c.Accounts, id)
		self.Balance = new(uint256.Int).Add(self.Balance, uint256.NewInt(transfer))
		m.Regs[RegResult] = uint64(StCash)
		return
	}
	m.Regs[RegResult] = uint64(id)
}

// upgrade replaces the invoking service's own code hash and gas floors.
func (c *Context) upgrade(m *pvm.Machine) {
	codeHashBytes, ok := readBuf(m, readU32(m, RegA0), types.HashLength)
	if !ok {
		m.Regs[RegResult] = uint64(StOOB)
		return
	}
	self := c.self()
	self.CodeHash = types.BytesToHash(codeHashBytes)
	self.AccMinGas = types.Gas(m.Regs[RegA1])
	self.XferMinGas = types.Gas(m.Regs[RegA2])
	m.Regs[RegResult] = uint64(StOK)
}

// transfer queues a balance movement to be applied once the invoking
// service's execution completes.
func (c *Context) transfer(m *pvm.Machine) {
	dest := types.ServiceId(readU32(m, RegA0))
	amount := m.Regs[RegA1]
	gas := types.Gas(m.Regs[RegA2])

	destAcc, ok := c.Accounts[dest]
	if !ok {
		m.Regs[RegResult] = uint64(StWho)
		return
	}
	if gas < destAcc.XferMinGas {
		m.Regs[RegResult] = uint64(StLow)
		return
	}
	self := c.self()
	if self.Balance.Uint64() < amount {
		m.Regs[RegResult] = uint64(StCash)
		return
	}
	var memo [128]byte
	if data, ok := readBuf(m, readU32(m, RegA3), 128); ok {
		copy(memo[:], data)
	}
	self.Balance = new(uint256.Int).Sub(self.Balance, uint256.NewInt(amount))
	c.Deferred = append(c.Deferred, Deferred{Source: c.Service, Dest: dest, Amount: amount, Memo: memo, Gas: gas})
	m.Regs[RegResult] = uint64(StOK)
}

// eject removes a service the invoking service is the sole owner of,
// folding its balance back into the invoker.
func (c *Context) eject(m *pvm.Machine) {
	target := types.ServiceId(readU32(m, RegA0))
	acc, ok := c.Accounts[target]
	if !ok || acc.ParentService != c.Service {
		m.Regs[RegResult] = uint64(StWho)
		return
	}
	self := c.self()
	self.Balance = new(uint256.Int).Add(self.Balance, acc.Balance)
	delete(c.Accounts, target)
	c.Ejected[target] = true
	m.Regs[RegResult] = uint64(StOK)
}

// query reports how many slots a preimage's lookup record holds to the
// calling service; the slot values themselves are not returned.
func (c *Context) query(m *pvm.Machine) {
	hashBytes, ok := readBuf(m, readU32(m, RegA0), types.HashLength)
	if !ok {
		m.Regs[RegResult] = uint64(StOOB)
		return
	}
	length := readU32(m, RegA1)
	hash := types.BytesToHash(hashBytes)
	key := state.LookupKey(c.Service, hash, length)
	rec, ok := c.self().Lookups[key]
	if !ok {
		m.Regs[RegResult] = uint64(StNone)
		return
	}
	m.Regs[RegResult] = uint64(len(rec.Slots))
}

// solicit marks a preimage as requested (awaiting provision) by allocating
// an empty lookup record.
func (c *Context) solicit(m *pvm.Machine) {
	hashBytes, ok := readBuf(m, readU32(m, RegA0), types.HashLength)
	if !ok {
		m.Regs[RegResult] = uint64(StOOB)
		return
	}
	length := readU32(m, RegA1)
	hash := types.BytesToHash(hashBytes)
	key := state.LookupKey(c.Service, hash, length)
	acc := c.self()
	if _, exists := acc.Lookups[key]; exists {
		m.Regs[RegResult] = uint64(StHuh)
		return
	}
	acc.Lookups[key] = state.LookupRecord{Length: length}
	acc.Items++
	if !acc.MeetsThreshold() {
		delete(acc.Lookups, key)
		acc.Items--
		m.Regs[RegResult] = uint64(StFull)
		return
	}
	m.Regs[RegResult] = uint64(StOK)
}

// forget removes a preimage and its lookup record once it is no longer
// referenced by any availability slot.
func (c *Context) forget(m *pvm.Machine) {
	hashBytes, ok := readBuf(m, readU32(m, RegA0), types.HashLength)
	if !ok {
		m.Regs[RegResult] = uint64(StOOB)
		return
	}
	length := readU32(m, RegA1)
	hash := types.BytesToHash(hashBytes)
	key := state.LookupKey(c.Service, hash, length)
	acc := c.self()
	rec, ok := acc.Lookups[key]
	if !ok {
		m.Regs[RegResult] = uint64(StNone)
		return
	}
	if len(rec.Slots) != 0 {
		m.Regs[RegResult] = uint64(StHuh)
		return
	}
	delete(acc.Lookups, key)
	acc.Items--
	if blob, ok := acc.Preimages[hash]; ok {
		acc.Octets -= uint64(len(blob))
		delete(acc.Preimages, hash)
	}
	m.Regs[RegResult] = uint64(StOK)
}

// yield records the 32-byte hash that becomes the invoking service's
// accumulation hash if the run completes successfully.
func (c *Context) yield(m *pvm.Machine) {
	hashBytes, ok := readBuf(m, readU32(m, RegA0), types.HashLength)
	if !ok {
		m.Regs[RegResult] = uint64(StOOB)
		return
	}
	h := types.BytesToHash(hashBytes)
	c.YieldHash = &h
	m.Regs[RegResult] = uint64(StOK)
}

// provide enqueues a preimage blob for integration into a named (or the
// invoking) service's account once the surrounding accumulation phase
// merges; the target must hold a matching awaiting-provision lookup record
// at integration time.
func (c *Context) provide(m *pvm.Machine) {
	_, sid, ok := c.target(types.ServiceId(readU32(m, RegA0)))
	if !ok {
		m.Regs[RegResult] = uint64(StWho)
		return
	}
	data, ok := readBuf(m, readU32(m, RegA1), readU32(m, RegA2))
	if !ok {
		m.Regs[RegResult] = uint64(StOOB)
		return
	}
	hash := crypto.Blake2b256Hash(data)
	key := state.LookupKey(sid, hash, uint32(len(data)))
	rec, ok := c.Accounts[sid].Lookups[key]
	if !ok || len(rec.Slots) != 0 {
		m.Regs[RegResult] = uint64(StHuh)
		return
	}
	c.Provided = append(c.Provided, Provided{Service: sid, Blob: data})
	m.Regs[RegResult] = uint64(StOK)
}

// fetch returns chain-provided operand data to the invoking program: entropy,
// the current slot, the invoking service's own id, or the core index,
// selected by a kind tag in a0.
func (c *Context) fetch(m *pvm.Machine) {
	switch readU32(m, RegA0) {
	case 0:
		writeBuf(m, readU32(m, RegA1), c.Entropy.Bytes())
		m.Regs[RegResult] = uint64(types.HashLength)
	case 1:
		m.Regs[RegResult] = uint64(c.Slot)
	case 2:
		m.Regs[RegResult] = uint64(c.Service)
	case 3:
		m.Regs[RegResult] = uint64(c.CoreIndex)
	default:
		m.Regs[RegResult] = uint64(StWhat)
	}
}

func (c *Context) log(m *pvm.Machine) {
	level := readU32(m, RegA0)
	msgLen := readU32(m, RegA2)
	data, ok := readBuf(m, readU32(m, RegA1), msgLen)
	if !ok {
		m.Regs[RegResult] = uint64(StOOB)
		return
	}
	c.Logs = append(c.Logs, LogEntry{Level: level, Target: c.Service, Message: string(data)})
	m.Regs[RegResult] = uint64(StOK)
}
