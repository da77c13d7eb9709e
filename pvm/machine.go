package pvm

import (
	"encoding/binary"

	"github.com/jamchain/jamd/types"
)

// NumRegisters is the register file size.
const NumRegisters = 13

// ExitReason is the fixed taxonomy a PVM run can terminate with.
type ExitReason int

const (
	ExitContinue ExitReason = iota
	ExitHalt
	ExitOutOfGas
	ExitPanic
	ExitPageFault
	ExitHostCall
)

func (r ExitReason) String() string {
	switch r {
	case ExitContinue:
		return "continue"
	case ExitHalt:
		return "halt"
	case ExitOutOfGas:
		return "out-of-gas"
	case ExitPanic:
		return "panic"
	case ExitPageFault:
		return "page-fault"
	case ExitHostCall:
		return "host-call"
	default:
		return "unknown"
	}
}

// Exit describes why Run stopped.
type Exit struct {
	Reason      ExitReason
	FaultAddr   uint32
	HostCallNum uint32
}

// indirectHalt is the sentinel register value that triggers a normal Halt
// when used as an indirect jump target.
const indirectHalt = 0xFFFF0000

// Machine is one instance of the PVM: registers, program counter, gas
// counter, program, and address space.
type Machine struct {
	Regs    [NumRegisters]uint64
	PC      uint32
	Gas     int64
	Program *Program
	Mem     *Memory
}

// NewMachine returns a fresh machine ready to execute program with the
// given starting gas budget.
func NewMachine(program *Program, mem *Memory, gas int64) *Machine {
	return &Machine{Program: program, Mem: mem, Gas: gas}
}

// HostCallHandler is invoked when the machine traps into a host call; it
// returns true to resume execution (registers/memory already mutated by
// the handler) or false to stop the run with ExitHostCall carrying the call
// number. Run stops the same way when no handler is given.
type HostCallHandler func(m *Machine, call uint32) bool

// Run executes until a terminal exit condition: one
// instruction costs 1 gas; OutOfGas is reported once the counter goes
// negative; Halt/Panic/PageFault stop the loop immediately.
func (m *Machine) Run(onHostCall HostCallHandler) Exit {
	for {
		if int(m.PC) >= len(m.Program.Code) {
			return Exit{Reason: ExitPanic}
		}
		if !m.Program.Bitmask[m.PC] {
			return Exit{Reason: ExitPanic}
		}

		op := Opcode(m.Program.Code[m.PC])
		class := argClasses[op]
		width := operandWidth(class)
		if int(m.PC)+1+width > len(m.Program.Code) {
			return Exit{Reason: ExitPanic}
		}
		operands := m.Program.Code[m.PC+1 : int(m.PC)+1+width]

		m.Gas--
		if m.Gas < 0 {
			return Exit{Reason: ExitOutOfGas}
		}

		exit, advance := m.step(op, operands)
		if exit != nil {
			return *exit
		}
		if advance {
			// skip() spans exactly the operand bytes, whose bitmask bits
			// are clear.
			m.PC += 1 + m.Program.skip(m.PC)
		}
		if op == OpHostCall {
			call := binary.LittleEndian.Uint32(operands)
			if onHostCall == nil || !onHostCall(m, call) {
				return Exit{Reason: ExitHostCall, HostCallNum: call}
			}
		}
	}
}

// step executes one decoded instruction. It returns a non-nil exit to stop
// the run, or advance=true to move pc forward by the instruction's width
// (branches/jumps set advance=false and move pc themselves).
func (m *Machine) step(op Opcode, ops []byte) (*Exit, bool) {
	switch op {
	case OpTrap:
		return &Exit{Reason: ExitPanic}, false
	case OpHalt:
		return &Exit{Reason: ExitHalt}, false
	case OpFallthrough:
		return nil, true

	case OpAdd, OpSub, OpMul, OpDivU, OpDivS, OpRemU, OpRemS,
		OpAnd, OpOr, OpXor, OpShl, OpShr, OpSar,
		OpCmpEq, OpCmpLtU, OpCmpLtS:
		rd, ra, rb := ops[0], ops[1], ops[2]
		m.Regs[rd] = alu64(op, m.Regs[ra], m.Regs[rb])
		return nil, true

	case OpAdd32, OpSub32, OpMul32, OpDivU32, OpDivS32, OpRemU32, OpRemS32:
		rd, ra, rb := ops[0], ops[1], ops[2]
		m.Regs[rd] = alu32(op, uint32(m.Regs[ra]), uint32(m.Regs[rb]))
		return nil, true

	case OpMoveImm:
		rd := ops[0]
		m.Regs[rd] = binary.LittleEndian.Uint64(ops[1:9])
		return nil, true

	case OpMoveReg:
		rd, rs := ops[0], ops[1]
		m.Regs[rd] = m.Regs[rs]
		return nil, true

	case OpBeq, OpBne, OpBltU, OpBltS:
		ra, rb := ops[0], ops[1]
		offset := int32(binary.LittleEndian.Uint32(ops[2:6]))
		if branchTaken(op, m.Regs[ra], m.Regs[rb]) {
			return m.branch(offset)
		}
		return nil, true

	case OpJump:
		offset := int32(binary.LittleEndian.Uint32(ops[0:4]))
		return m.branch(offset)

	case OpJumpInd:
		ra := ops[0]
		return m.jumpIndirect(m.Regs[ra])

	case OpLoadU8, OpLoadU16, OpLoadU32, OpLoadU64, OpLoadI8, OpLoadI16, OpLoadI32:
		rd, ra := ops[0], ops[1]
		offset := int32(binary.LittleEndian.Uint32(ops[2:6]))
		addr := uint32(int64(m.Regs[ra]) + int64(offset))
		return m.load(op, rd, addr)

	case OpStore8, OpStore16, OpStore32, OpStore64:
		ra, rb := ops[0], ops[1]
		offset := int32(binary.LittleEndian.Uint32(ops[2:6]))
		addr := uint32(int64(m.Regs[ra]) + int64(offset))
		return m.store(op, addr, m.Regs[rb])

	case OpSbrk:
		rd := ops[0]
		delta := binary.LittleEndian.Uint64(ops[1:9])
		return nil, m.sbrk(rd, delta)

	case OpHostCall:
		// Handled by the caller in Run after step returns.
		return nil, true

	default:
		return &Exit{Reason: ExitPanic}, false
	}
}

func (m *Machine) branch(offset int32) (*Exit, bool) {
	target := int64(m.PC) + int64(offset)
	if target < 0 || target >= int64(len(m.Program.Code)) || !m.Program.startsBlock(uint32(target)) {
		return &Exit{Reason: ExitPanic}, false
	}
	m.PC = uint32(target)
	return nil, false
}

func (m *Machine) jumpIndirect(a uint64) (*Exit, bool) {
	if a == indirectHalt {
		return &Exit{Reason: ExitHalt}, false
	}
	if a%types.JumpAlignment != 0 {
		return &Exit{Reason: ExitPanic}, false
	}
	idx := a / types.JumpAlignment
	if idx == 0 || int(idx) > len(m.Program.JumpTable) {
		return &Exit{Reason: ExitPanic}, false
	}
	target := m.Program.JumpTable[idx-1]
	if !m.Program.startsBlock(target) {
		return &Exit{Reason: ExitPanic}, false
	}
	m.PC = target
	return nil, false
}

func (m *Machine) load(op Opcode, rd byte, addr uint32) (*Exit, bool) {
	var n int
	switch op {
	case OpLoadU8, OpLoadI8:
		n = 1
	case OpLoadU16, OpLoadI16:
		n = 2
	case OpLoadU32, OpLoadI32:
		n = 4
	case OpLoadU64:
		n = 8
	}
	data, fault, ok := m.Mem.ReadBytes(addr, n)
	if !ok {
		return &Exit{Reason: ExitPageFault, FaultAddr: fault}, false
	}
	var buf [8]byte
	copy(buf[:], data)
	v := binary.LittleEndian.Uint64(buf[:])
	switch op {
	case OpLoadI8:
		v = uint64(uint64(int64(int8(data[0]))))
	case OpLoadI16:
		v = uint64(int64(int16(binary.LittleEndian.Uint16(data))))
	case OpLoadI32:
		v = uint64(int64(int32(binary.LittleEndian.Uint32(data))))
	}
	m.Regs[rd] = v
	return nil, true
}

func (m *Machine) store(op Opcode, addr uint32, v uint64) (*Exit, bool) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	var n int
	switch op {
	case OpStore8:
		n = 1
	case OpStore16:
		n = 2
	case OpStore32:
		n = 4
	case OpStore64:
		n = 8
	}
	fault, ok := m.Mem.WriteBytes(addr, buf[:n])
	if !ok {
		return &Exit{Reason: ExitPageFault, FaultAddr: fault}, false
	}
	return nil, true
}

// sbrk grows the heap by delta bytes starting at the current value of rd,
// mapping the new pages read-write, and leaves the new heap top in rd.
func (m *Machine) sbrk(rd byte, delta uint64) bool {
	top := m.Regs[rd]
	newTop := top + delta
	if delta > 0 {
		m.Mem.MapRange(uint32(top), uint32(delta), true, true)
	}
	m.Regs[rd] = newTop
	return true
}

func branchTaken(op Opcode, a, b uint64) bool {
	switch op {
	case OpBeq:
		return a == b
	case OpBne:
		return a != b
	case OpBltU:
		return a < b
	case OpBltS:
		return int64(a) < int64(b)
	default:
		return false
	}
}

// alu64 evaluates a three-register 64-bit ALU operation. Div by zero
// returns u64::MAX, signed INT_MIN/-1 returns INT_MIN without trapping,
// and shift counts are masked to & 63.
func alu64(op Opcode, a, b uint64) uint64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDivU:
		if b == 0 {
			return ^uint64(0)
		}
		return a / b
	case OpDivS:
		sa, sb := int64(a), int64(b)
		if sb == 0 {
			return ^uint64(0)
		}
		if sa == minInt64 && sb == -1 {
			return uint64(sa)
		}
		return uint64(sa / sb)
	case OpRemU:
		if b == 0 {
			return a
		}
		return a % b
	case OpRemS:
		sa, sb := int64(a), int64(b)
		if sb == 0 {
			return uint64(sa)
		}
		if sa == minInt64 && sb == -1 {
			return 0
		}
		return uint64(sa % sb)
	case OpAnd:
		return a & b
	case OpOr:
		return a | b
	case OpXor:
		return a ^ b
	case OpShl:
		return a << (b & 63)
	case OpShr:
		return a >> (b & 63)
	case OpSar:
		return uint64(int64(a) >> (b & 63))
	case OpCmpEq:
		if a == b {
			return 1
		}
		return 0
	case OpCmpLtU:
		if a < b {
			return 1
		}
		return 0
	case OpCmpLtS:
		if int64(a) < int64(b) {
			return 1
		}
		return 0
	default:
		return 0
	}
}

const minInt64 = -1 << 63

// alu32 evaluates a three-register 32-bit ALU operation: operands are
// truncated to u32, the op is performed, and the result is sign-extended
// back to 64 bits.
func alu32(op Opcode, a, b uint32) uint64 {
	var r int32
	switch op {
	case OpAdd32:
		r = int32(a + b)
	case OpSub32:
		r = int32(a - b)
	case OpMul32:
		r = int32(a * b)
	case OpDivU32:
		if b == 0 {
			return ^uint64(0)
		}
		return uint64(int32(a / b))
	case OpDivS32:
		sa, sb := int32(a), int32(b)
		if sb == 0 {
			return ^uint64(0)
		}
		if sa == -1<<31 && sb == -1 {
			r = sa
		} else {
			r = sa / sb
		}
	case OpRemU32:
		if b == 0 {
			return uint64(int32(a))
		}
		return uint64(int32(a % b))
	case OpRemS32:
		sa, sb := int32(a), int32(b)
		if sb == 0 {
			r = sa
		} else if sa == -1<<31 && sb == -1 {
			r = 0
		} else {
			r = sa % sb
		}
	default:
		r = 0
	}
	return uint64(int64(r))
}
