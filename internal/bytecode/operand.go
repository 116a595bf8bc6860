package bytecode

import "fmt"

// OperandKind tags what an Operand refers to.
type OperandKind uint8

const (
	KindNone       OperandKind = iota
	KindSlot                   // variable slot of the current frame
	KindParentSlot             // variable slot Hops frames up
	KindTemp                   // compiler temporary in the current frame
	KindConst                  // constant pool index
	KindSkip                   // omitted argument, the callee applies its default
	KindAddr                   // instruction address
	KindCount                  // element, argument or parameter count
)

// Operand is a reference to a value location or an immediate. Type carries the
// inferred type name of the referenced value ("" when untyped).
type Operand struct {
	Kind  OperandKind `json:"kind"`
	Index int         `json:"index,omitempty"`
	Hops  int         `json:"hops,omitempty"`
	Type  string      `json:"type,omitempty"`
}

// Slot references a variable of the current frame.
func Slot(index int) Operand {
	return Operand{Kind: KindSlot, Index: index}
}

// ParentSlot references a variable hops frames up. Zero hops is a plain Slot.
func ParentSlot(hops, index int) Operand {
	if hops == 0 {
		return Slot(index)
	}
	return Operand{Kind: KindParentSlot, Index: index, Hops: hops}
}

// Temp references a compiler temporary.
func Temp(index int) Operand {
	return Operand{Kind: KindTemp, Index: index}
}

// Const references a constant pool entry.
func Const(index int, typ string) Operand {
	return Operand{Kind: KindConst, Index: index, Type: typ}
}

// Skip marks an omitted argument.
func Skip() Operand {
	return Operand{Kind: KindSkip}
}

// Addr is an instruction address.
func Addr(addr int) Operand {
	return Operand{Kind: KindAddr, Index: addr}
}

// Count is an immediate count.
func Count(n int) Operand {
	return Operand{Kind: KindCount, Index: n}
}

// WithType returns a copy of o carrying typ.
func (o Operand) WithType(typ string) Operand {
	o.Type = typ
	return o
}

// IsVar reports whether o names a storage location.
func (o Operand) IsVar() bool {
	switch o.Kind {
	case KindSlot, KindParentSlot, KindTemp:
		return true
	}
	return false
}

func (o Operand) String() string {
	var s string
	switch o.Kind {
	case KindNone:
		return "-"
	case KindSlot:
		s = fmt.Sprintf("v%d", o.Index)
	case KindParentSlot:
		s = fmt.Sprintf("v%d^%d", o.Index, o.Hops)
	case KindTemp:
		s = fmt.Sprintf("t%d", o.Index)
	case KindConst:
		s = fmt.Sprintf("k%d", o.Index)
	case KindSkip:
		return "skip"
	case KindAddr:
		return fmt.Sprintf("@%04d", o.Index)
	case KindCount:
		return fmt.Sprintf("#%d", o.Index)
	default:
		return fmt.Sprintf("?%d", o.Kind)
	}
	if o.Type != "" {
		s += ":" + o.Type
	}
	return s
}
