package bytecode

import "fmt"

// Opcode enumerates bytecode operations.
type Opcode uint16

// Delta selects a type-specialised variant of an operator family. The variant
// opcode is the family base plus the delta.
type Delta uint8

const (
	DeltaNone Delta = iota
	DeltaNumber
	DeltaString
	DeltaDate
	DeltaBoolean
)

var deltaNames = [...]string{"", "num", "str", "date", "bool"}

func (d Delta) String() string {
	if int(d) < len(deltaNames) {
		return deltaNames[d]
	}
	return fmt.Sprintf("delta(%d)", d)
}

const familyWidth = 8

const (
	OpNop Opcode = 0x00
	OpEnd Opcode = 0x01

	OpLet          Opcode = 0x02 // A = B
	OpSetArraySize Opcode = 0x03 // A var, B count
	OpCheckType    Opcode = 0x04 // A var, B const type name
	OpNew          Opcode = 0x05 // A dst, B const type name, C argc; followed by OpArg
	OpArg          Opcode = 0x06 // A value or skip
	OpNeg          Opcode = 0x07 // A = -B
	OpNot          Opcode = 0x08 // A = not B
)

// Typed families: each occupies familyWidth codes, base first.
const (
	OpAdd Opcode = 0x10 + iota*familyWidth
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	opFamilyEnd
)

const (
	OpJump        Opcode = 0x80 // A addr
	OpJumpIfFalse Opcode = 0x81 // A cond, B addr
	OpForTest     Opcode = 0x83 // A var, B bound, C exit addr; leaves when A > B
	OpInc         Opcode = 0x84 // A var
	OpIterInit    Opcode = 0x85 // A iterator, B collection
	OpIterNext    Opcode = 0x86 // A var, B iterator, C exit addr
	OpTry         Opcode = 0x87 // A handler addr
	OpEndTry      Opcode = 0x88 // A addr after the handler
	OpRaise       Opcode = 0x89 // A message, none re-raises

	OpFunc         Opcode = 0x90 // A locals, B scope id, C addr after the body, D params
	OpEndFunc      Opcode = 0x91
	OpParam        Opcode = 0x92 // A slot, B param index, C by value (0/1)
	OpParamDefault Opcode = 0x93 // A slot, B param index, C const default, D by value
	OpCall         Opcode = 0x94 // A result, B entry addr, C argc, D module hops; followed by OpArg
	OpCallContext  Opcode = 0x95 // A result, B owner object, C const method name, D argc
	OpCallMethod   Opcode = 0x96 // A result, B object, C const method name, D argc
	OpReturn       Opcode = 0x97 // A value or none

	OpGetIndex  Opcode = 0xA0 // A dst, B object, C index
	OpSetIndex  Opcode = 0xA1 // A object, B index, C value
	OpGetMember Opcode = 0xA2 // A dst, B object, C const name
	OpSetMember Opcode = 0xA3 // A object, B const name, C value
)

var opNames = map[Opcode]string{
	OpNop:          "NOP",
	OpEnd:          "END",
	OpLet:          "LET",
	OpSetArraySize: "SET_ARRAY_SIZE",
	OpCheckType:    "CHECK_TYPE",
	OpNew:          "NEW",
	OpArg:          "ARG",
	OpNeg:          "NEG",
	OpNot:          "NOT",
	OpAdd:          "ADD",
	OpSub:          "SUB",
	OpMul:          "MUL",
	OpDiv:          "DIV",
	OpMod:          "MOD",
	OpEq:           "EQ",
	OpNe:           "NE",
	OpLt:           "LT",
	OpLe:           "LE",
	OpGt:           "GT",
	OpGe:           "GE",
	OpAnd:          "AND",
	OpOr:           "OR",
	OpJump:         "JUMP",
	OpJumpIfFalse:  "JUMP_IF_FALSE",
	OpForTest:      "FOR_TEST",
	OpInc:          "INC",
	OpIterInit:     "ITER_INIT",
	OpIterNext:     "ITER_NEXT",
	OpTry:          "TRY",
	OpEndTry:       "END_TRY",
	OpRaise:        "RAISE",
	OpFunc:         "FUNC",
	OpEndFunc:      "END_FUNC",
	OpParam:        "PARAM",
	OpParamDefault: "PARAM_DEFAULT",
	OpCall:         "CALL",
	OpCallContext:  "CALL_CONTEXT",
	OpCallMethod:   "CALL_METHOD",
	OpReturn:       "RETURN",
	OpGetIndex:     "GET_INDEX",
	OpSetIndex:     "SET_INDEX",
	OpGetMember:    "GET_MEMBER",
	OpSetMember:    "SET_MEMBER",
}

// Typed reports whether op is the base of a type-specialised family.
func (op Opcode) Typed() bool {
	return op >= OpAdd && op < opFamilyEnd && (op-OpAdd)%familyWidth == 0
}

// WithDelta returns the family variant selected by d. Non-family opcodes are
// returned unchanged.
func (op Opcode) WithDelta(d Delta) Opcode {
	if !op.Typed() {
		return op
	}
	return op + Opcode(d)
}

// Split returns the family base and delta of op.
func (op Opcode) Split() (Opcode, Delta) {
	if op >= OpAdd && op < opFamilyEnd {
		off := (op - OpAdd) % familyWidth
		return op - off, Delta(off)
	}
	return op, DeltaNone
}

func (op Opcode) String() string {
	base, d := op.Split()
	name, ok := opNames[base]
	if !ok {
		return fmt.Sprintf("OP_0x%02X", uint16(op))
	}
	if d != DeltaNone {
		return name + "." + d.String()
	}
	return name
}
