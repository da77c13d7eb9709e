package pvm

// Opcode identifies one PVM instruction. The encoding is a simplified,
// fixed-width-per-argument-class scheme: one opcode byte followed by an
// operand layout fixed by the opcode's argument class (no-arg,
// one-immediate, one-offset, one-reg, two-reg, two-reg-one-imm,
// two-reg-one-offset, three-reg, one-reg-one-imm, host-call), sized for a
// 13-register, 64-bit machine.
type Opcode byte

const (
	OpTrap Opcode = iota
	OpFallthrough
	OpAdd
	OpSub
	OpMul
	OpDivU
	OpDivS
	OpRemU
	OpRemS
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpSar
	OpAdd32
	OpSub32
	OpMul32
	OpDivU32
	OpDivS32
	OpRemU32
	OpRemS32
	OpMoveImm
	OpMoveReg
	OpCmpEq
	OpCmpLtU
	OpCmpLtS
	OpBeq
	OpBne
	OpBltU
	OpBltS
	OpJump
	OpJumpInd
	OpLoadU8
	OpLoadU16
	OpLoadU32
	OpLoadU64
	OpLoadI8
	OpLoadI16
	OpLoadI32
	OpStore8
	OpStore16
	OpStore32
	OpStore64
	OpSbrk
	OpHostCall
	OpHalt
)

// ArgClass names the operand layout following an opcode byte.
type ArgClass int

const (
	ClassNoArg ArgClass = iota
	ClassOneImm
	ClassOneOffset
	ClassOneReg
	ClassTwoReg
	ClassTwoRegOneImm
	ClassTwoRegOneOffset
	ClassThreeReg
	ClassOneRegOneImm
	ClassHostCall
)

// argClasses maps each opcode to its operand layout.
var argClasses = map[Opcode]ArgClass{
	OpTrap:        ClassNoArg,
	OpFallthrough: ClassNoArg,
	OpHalt:        ClassNoArg,

	OpAdd: ClassThreeReg, OpSub: ClassThreeReg, OpMul: ClassThreeReg,
	OpDivU: ClassThreeReg, OpDivS: ClassThreeReg, OpRemU: ClassThreeReg, OpRemS: ClassThreeReg,
	OpAnd: ClassThreeReg, OpOr: ClassThreeReg, OpXor: ClassThreeReg,
	OpShl: ClassThreeReg, OpShr: ClassThreeReg, OpSar: ClassThreeReg,
	OpAdd32: ClassThreeReg, OpSub32: ClassThreeReg, OpMul32: ClassThreeReg,
	OpDivU32: ClassThreeReg, OpDivS32: ClassThreeReg, OpRemU32: ClassThreeReg, OpRemS32: ClassThreeReg,
	OpCmpEq: ClassThreeReg, OpCmpLtU: ClassThreeReg, OpCmpLtS: ClassThreeReg,

	OpMoveImm: ClassOneRegOneImm,
	OpMoveReg: ClassTwoReg,

	OpBeq: ClassTwoRegOneOffset, OpBne: ClassTwoRegOneOffset,
	OpBltU: ClassTwoRegOneOffset, OpBltS: ClassTwoRegOneOffset,

	OpJump:    ClassOneOffset,
	OpJumpInd: ClassOneReg,

	OpLoadU8: ClassTwoRegOneOffset, OpLoadU16: ClassTwoRegOneOffset,
	OpLoadU32: ClassTwoRegOneOffset, OpLoadU64: ClassTwoRegOneOffset,
	OpLoadI8: ClassTwoRegOneOffset, OpLoadI16: ClassTwoRegOneOffset, OpLoadI32: ClassTwoRegOneOffset,

	OpStore8: ClassTwoRegOneOffset, OpStore16: ClassTwoRegOneOffset,
	OpStore32: ClassTwoRegOneOffset, OpStore64: ClassTwoRegOneOffset,

	OpSbrk:     ClassOneRegOneImm,
	OpHostCall: ClassHostCall,
}

// operandWidth returns the number of operand bytes following the opcode
// byte for class c.
func operandWidth(c ArgClass) int {
	switch c {
	case ClassNoArg:
		return 0
	case ClassOneImm:
		return 8
	case ClassOneOffset:
		return 4
	case ClassOneReg:
		return 1
	case ClassTwoReg:
		return 2
	case ClassTwoRegOneImm:
		return 2 + 8
	case ClassTwoRegOneOffset:
		return 2 + 4
	case ClassThreeReg:
		return 3
	case ClassOneRegOneImm:
		return 1 + 8
	case ClassHostCall:
		return 4
	default:
		return 0
	}
}

// Program is a decoded piece of service code: the raw bytes, a bitmask
// marking instruction-start bytes, and a jump table of basic-block-start
// offsets addressable by indirect jumps.
type Program struct {
	Code      []byte
	Bitmask   []bool
	JumpTable []uint32
}

// Decode builds a Program from raw code, computing the instruction-start
// bitmask and collecting every basic-block start (offset 0 and every
// offset immediately following a branch-terminator instruction) into the
// jump table, in program order.
func Decode(code []byte) *Program {
	p := &Program{Code: code, Bitmask: make([]bool, len(code))}
	pc := 0
	blockStart := true
	for pc < len(code) {
		p.Bitmask[pc] = true
		if blockStart {
			p.JumpTable = append(p.JumpTable, uint32(pc))
			blockStart = false
		}
		op := Opcode(code[pc])
		width := operandWidth(argClasses[op])
		next := pc + 1 + width
		if isTerminator(op) {
			blockStart = true
		}
		pc = next
	}
	return p
}

func isTerminator(op Opcode) bool {
	switch op {
	case OpJump, OpJumpInd, OpBeq, OpBne, OpBltU, OpBltS, OpTrap, OpHalt:
		return true
	default:
		return false
	}
}

// skip returns the number of bitmask-zero bytes immediately following pc,
// i.e. the width of the instruction starting at pc.
func (p *Program) skip(pc uint32) uint32 {
	n := uint32(0)
	for int(pc)+1+int(n) < len(p.Bitmask) && !p.Bitmask[pc+1+n] {
		n++
	}
	return n
}

// startsBlock reports whether pc is a recorded basic-block start.
func (p *Program) startsBlock(pc uint32) bool {
	for _, b := range p.JumpTable {
		if b == pc {
			return true
		}
	}
	return false
}
