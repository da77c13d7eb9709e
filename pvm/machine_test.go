package pvm

import (
	"encoding/binary"
	"testing"
)

// asm builds a raw program byte-by-byte for tests.
type asm struct {
	code []byte
}

func (a *asm) op(op Opcode, operands ...byte) *asm {
	a.code = append(a.code, byte(op))
	a.code = append(a.code, operands...)
	return a
}

func imm64(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

func off32(v int32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return b[:]
}

func moveImm(rd byte, v uint64) []byte {
	return append([]byte{rd}, imm64(v)...)
}

func run(t *testing.T, code []byte, gas int64) (*Machine, Exit) {
	t.Helper()
	m := NewMachine(Decode(code), NewMemory(), gas)
	exit := m.Run(nil)
	return m, exit
}

func TestHaltLeavesGas(t *testing.T) {
	var a asm
	a.op(OpHalt)
	m, exit := run(t, a.code, 10)
	if exit.Reason != ExitHalt {
		t.Fatalf("exit = %v", exit.Reason)
	}
	if m.Gas != 9 {
		t.Fatalf("gas = %d, want 9", m.Gas)
	}
}

func TestOutOfGas(t *testing.T) {
	var a asm
	a.op(OpMoveImm, moveImm(0, 1)...)
	a.op(OpMoveImm, moveImm(1, 2)...)
	a.op(OpHalt)
	m, exit := run(t, a.code, 1)
	if exit.Reason != ExitOutOfGas {
		t.Fatalf("exit = %v", exit.Reason)
	}
	if m.Gas >= 0 {
		t.Fatalf("gas = %d, want negative", m.Gas)
	}
}

func TestPageFaultReportsAddress(t *testing.T) {
	var a asm
	a.op(OpLoadU32, append([]byte{2, 0}, off32(0x1000)...)...)
	a.op(OpHalt)
	m, exit := run(t, a.code, 100)
	if exit.Reason != ExitPageFault {
		t.Fatalf("exit = %v", exit.Reason)
	}
	if exit.FaultAddr != 0x1000 {
		t.Fatalf("fault addr = %#x, want 0x1000", exit.FaultAddr)
	}
	if m.Regs[2] != 0 {
		t.Fatal("faulting load mutated its destination register")
	}
}

func TestArithmetic(t *testing.T) {
	var a asm
	a.op(OpMoveImm, moveImm(1, 20)...)
	a.op(OpMoveImm, moveImm(2, 22)...)
	a.op(OpAdd, 3, 1, 2)
	a.op(OpSub, 4, 1, 2)
	a.op(OpMul, 5, 1, 2)
	a.op(OpHalt)
	m, exit := run(t, a.code, 100)
	if exit.Reason != ExitHalt {
		t.Fatalf("exit = %v", exit.Reason)
	}
	if m.Regs[3] != 42 {
		t.Fatalf("add = %d", m.Regs[3])
	}
	if m.Regs[4] != ^uint64(1) { // 20 - 22 wraps to -2
		t.Fatalf("sub = %d", m.Regs[4])
	}
	if m.Regs[5] != 440 {
		t.Fatalf("mul = %d", m.Regs[5])
	}
}

func TestDivByZeroReturnsAllOnes(t *testing.T) {
	var a asm
	a.op(OpMoveImm, moveImm(1, 7)...)
	a.op(OpDivU, 3, 1, 2) // reg 2 is zero
	a.op(OpDivS, 4, 1, 2)
	a.op(OpRemU, 5, 1, 2)
	a.op(OpHalt)
	m, _ := run(t, a.code, 100)
	if m.Regs[3] != ^uint64(0) {
		t.Fatalf("divu/0 = %#x", m.Regs[3])
	}
	if m.Regs[4] != ^uint64(0) {
		t.Fatalf("divs/0 = %#x", m.Regs[4])
	}
	if m.Regs[5] != 7 {
		t.Fatalf("remu/0 = %d, want dividend", m.Regs[5])
	}
}

func TestSignedDivOverflow(t *testing.T) {
	var a asm
	a.op(OpMoveImm, moveImm(1, uint64(1)<<63)...) // INT_MIN
	a.op(OpMoveImm, moveImm(2, ^uint64(0))...)    // -1
	a.op(OpDivS, 3, 1, 2)
	a.op(OpRemS, 4, 1, 2)
	a.op(OpHalt)
	m, _ := run(t, a.code, 100)
	if m.Regs[3] != uint64(1)<<63 {
		t.Fatalf("INT_MIN / -1 = %#x, want INT_MIN", m.Regs[3])
	}
	if m.Regs[4] != 0 {
		t.Fatalf("INT_MIN %% -1 = %d, want 0", m.Regs[4])
	}
}

func TestAlu32SignExtends(t *testing.T) {
	var a asm
	a.op(OpMoveImm, moveImm(1, 0xFFFF_FFFF)...)
	a.op(OpMoveImm, moveImm(2, 1)...)
	a.op(OpAdd32, 3, 1, 2) // 0xFFFFFFFF + 1 wraps to 0
	a.op(OpSub32, 4, 2, 1) // 1 - 0xFFFFFFFF = 2 (mod 2^32)
	a.op(OpMoveImm, moveImm(5, 0x7FFF_FFFF)...)
	a.op(OpAdd32, 6, 5, 2) // overflows to 0x80000000, sign-extends
	a.op(OpHalt)
	m, _ := run(t, a.code, 100)
	if m.Regs[3] != 0 {
		t.Fatalf("add32 wrap = %#x", m.Regs[3])
	}
	if m.Regs[4] != 2 {
		t.Fatalf("sub32 = %#x", m.Regs[4])
	}
	if m.Regs[6] != 0xFFFF_FFFF_8000_0000 {
		t.Fatalf("add32 sign extension = %#x", m.Regs[6])
	}
}

func TestShiftCountsMasked(t *testing.T) {
	var a asm
	a.op(OpMoveImm, moveImm(1, 1)...)
	a.op(OpMoveImm, moveImm(2, 64)...) // masked to 0
	a.op(OpShl, 3, 1, 2)
	a.op(OpHalt)
	m, _ := run(t, a.code, 100)
	if m.Regs[3] != 1 {
		t.Fatalf("shl by 64 = %d, want 1 (count masked)", m.Regs[3])
	}
}

func TestBranchTakenToBlockStart(t *testing.T) {
	var a asm
	a.op(OpMoveImm, moveImm(1, 5)...)
	a.op(OpMoveImm, moveImm(2, 5)...)
	// Skip over the trap to the halt that follows it; both start blocks
	// (they follow terminators).
	a.op(OpBeq, append([]byte{1, 2}, off32(8)...)...) // 7 bytes wide, trap at +7
	a.op(OpTrap)
	a.op(OpHalt)
	_, exit := run(t, a.code, 100)
	if exit.Reason != ExitHalt {
		t.Fatalf("exit = %v, want halt via taken branch", exit.Reason)
	}
}

func TestBranchToNonBlockStartPanics(t *testing.T) {
	var a asm
	a.op(OpMoveImm, moveImm(1, 0)...)
	a.op(OpMoveImm, moveImm(2, 0)...)
	// Branch into the middle of the following instruction.
	a.op(OpBeq, append([]byte{1, 2}, off32(9)...)...)
	a.op(OpMoveImm, moveImm(3, 1)...)
	a.op(OpHalt)
	_, exit := run(t, a.code, 100)
	if exit.Reason != ExitPanic {
		t.Fatalf("exit = %v, want panic", exit.Reason)
	}
}

func TestIndirectHaltSentinel(t *testing.T) {
	var a asm
	a.op(OpMoveImm, moveImm(1, 0xFFFF0000)...)
	a.op(OpJumpInd, 1)
	_, exit := run(t, a.code, 100)
	if exit.Reason != ExitHalt {
		t.Fatalf("exit = %v, want halt via sentinel", exit.Reason)
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	var a asm
	a.op(OpMoveImm, moveImm(1, 0x100)...)          // address
	a.op(OpMoveImm, moveImm(2, 0xDEADBEEF)...)     // value
	a.op(OpStore32, append([]byte{1, 2}, off32(0)...)...)
	a.op(OpLoadU32, append([]byte{3, 1}, off32(0)...)...)
	a.op(OpLoadI8, append([]byte{4, 1}, off32(3)...)...) // 0xDE sign-extends
	a.op(OpHalt)

	mem := NewMemory()
	mem.MapRange(0, 0x1000, true, true)
	m := NewMachine(Decode(a.code), mem, 100)
	exit := m.Run(nil)
	if exit.Reason != ExitHalt {
		t.Fatalf("exit = %v", exit.Reason)
	}
	if m.Regs[3] != 0xDEADBEEF {
		t.Fatalf("load32 = %#x", m.Regs[3])
	}
	if m.Regs[4] != 0xFFFF_FFFF_FFFF_FFDE {
		t.Fatalf("loadi8 = %#x, want sign-extended 0xDE", m.Regs[4])
	}
}

func TestWriteToReadOnlyPageFaults(t *testing.T) {
	var a asm
	a.op(OpMoveImm, moveImm(1, 0x10)...)
	a.op(OpStore8, append([]byte{1, 2}, off32(0)...)...)
	mem := NewMemory()
	mem.MapRange(0, 0x1000, true, false)
	m := NewMachine(Decode(a.code), mem, 100)
	exit := m.Run(nil)
	if exit.Reason != ExitPageFault || exit.FaultAddr != 0x10 {
		t.Fatalf("exit = %v addr=%#x", exit.Reason, exit.FaultAddr)
	}
}

func TestSbrkMapsHeap(t *testing.T) {
	var a asm
	a.op(OpMoveImm, moveImm(1, 0x20_0000)...) // heap base
	a.op(OpSbrk, append([]byte{1}, imm64(0x100)...)...)
	a.op(OpMoveImm, moveImm(2, 0x20_0000)...)
	a.op(OpMoveImm, moveImm(3, 7)...)
	a.op(OpStore8, append([]byte{2, 3}, off32(0)...)...)
	a.op(OpLoadU8, append([]byte{4, 2}, off32(0)...)...)
	a.op(OpHalt)
	m, exit := run(t, a.code, 100)
	if exit.Reason != ExitHalt {
		t.Fatalf("exit = %v", exit.Reason)
	}
	if m.Regs[1] != 0x20_0100 {
		t.Fatalf("sbrk result = %#x", m.Regs[1])
	}
	if m.Regs[4] != 7 {
		t.Fatalf("heap readback = %d", m.Regs[4])
	}
}

func TestHostCallDispatch(t *testing.T) {
	var a asm
	a.op(OpHostCall, off32(42)...)
	a.op(OpHalt)
	var got uint32
	m := NewMachine(Decode(a.code), NewMemory(), 100)
	exit := m.Run(func(m *Machine, call uint32) bool {
		got = call
		m.Regs[0] = 99
		return true
	})
	if exit.Reason != ExitHalt {
		t.Fatalf("exit = %v", exit.Reason)
	}
	if got != 42 {
		t.Fatalf("call = %d", got)
	}
	if m.Regs[0] != 99 {
		t.Fatal("handler register mutation lost")
	}
}

func TestDeterminism(t *testing.T) {
	var a asm
	a.op(OpMoveImm, moveImm(1, 123)...)
	a.op(OpMoveImm, moveImm(2, 456)...)
	a.op(OpMul, 3, 1, 2)
	a.op(OpHalt)
	m1, _ := run(t, a.code, 50)
	m2, _ := run(t, a.code, 50)
	if m1.Regs != m2.Regs || m1.Gas != m2.Gas {
		t.Fatal("identical runs diverged")
	}
}
