package bytecode

import "fmt"

// SourcePos stamps an instruction with where it came from.
type SourcePos struct {
	Module string `json:"module,omitempty"`
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
}

// Instruction is one bytecode operation with up to four operands.
type Instruction struct {
	Op  Opcode    `json:"op"`
	A   Operand   `json:"a"`
	B   Operand   `json:"b"`
	C   Operand   `json:"c"`
	D   Operand   `json:"d"`
	Pos SourcePos `json:"pos"`
}

// Field selects one operand of an instruction.
type Field uint8

const (
	FieldA Field = iota
	FieldB
	FieldC
	FieldD
)

// PatchSite addresses an operand of an already emitted instruction.
type PatchSite struct {
	Addr  int
	Field Field
}

// Symbol is a named slot in a side table.
type Symbol struct {
	Name string `json:"name"`
	Slot int    `json:"slot"`
	Type string `json:"type,omitempty"`
}

// FuncInfo describes a compiled function in a side table.
type FuncInfo struct {
	Name      string `json:"name"`
	Entry     int    `json:"entry"`
	Exit      int    `json:"exit"`
	Params    int    `json:"params"`
	Locals    int    `json:"locals"`
	Procedure bool   `json:"procedure,omitempty"`
}

// Constant is a constant pool entry.
type Constant struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ByteCode is the compiled form of one module: an append-only instruction list
// plus its side tables.
type ByteCode struct {
	Module      string
	Code        []Instruction
	Vars        []Symbol
	ExportVars  []Symbol
	Funcs       []FuncInfo
	ExportFuncs []FuncInfo
	Consts      []Constant
	Externs     []Symbol
	Locals      int
	Parent      *ByteCode

	constIndex map[Constant]int
}

// New creates an empty ByteCode for module, chained to parent (may be nil).
func New(module string, parent *ByteCode) *ByteCode {
	return &ByteCode{
		Module:     module,
		Parent:     parent,
		constIndex: make(map[Constant]int),
	}
}

// Len is the address the next emitted instruction will get.
func (b *ByteCode) Len() int {
	return len(b.Code)
}

// Emit appends ins and returns its address.
func (b *ByteCode) Emit(ins Instruction) int {
	b.Code = append(b.Code, ins)
	return len(b.Code) - 1
}

// At returns the instruction at addr for in-place operand patching.
func (b *ByteCode) At(addr int) *Instruction {
	return &b.Code[addr]
}

// Last returns the most recently emitted instruction, or nil.
func (b *ByteCode) Last() *Instruction {
	if len(b.Code) == 0 {
		return nil
	}
	return &b.Code[len(b.Code)-1]
}

// Patch overwrites the operand at site.
func (b *ByteCode) Patch(site PatchSite, o Operand) {
	if site.Addr < 0 || site.Addr >= len(b.Code) {
		panic(fmt.Sprintf("patch site %d out of range (len=%d)", site.Addr, len(b.Code)))
	}
	ins := &b.Code[site.Addr]
	switch site.Field {
	case FieldA:
		ins.A = o
	case FieldB:
		ins.B = o
	case FieldC:
		ins.C = o
	case FieldD:
		ins.D = o
	}
}

// AddConst interns a constant, returning the index of an existing entry with
// the same type and text when there is one.
func (b *ByteCode) AddConst(typ, text string) int {
	key := Constant{Type: typ, Text: text}
	if idx, ok := b.constIndex[key]; ok {
		return idx
	}
	if b.constIndex == nil {
		b.constIndex = make(map[Constant]int)
	}
	b.Consts = append(b.Consts, key)
	idx := len(b.Consts) - 1
	b.constIndex[key] = idx
	return idx
}

// FindFunc looks up a function entry by name in this module only.
func (b *ByteCode) FindFunc(name string) (FuncInfo, bool) {
	for _, fn := range b.Funcs {
		if fn.Name == name {
			return fn, true
		}
	}
	return FuncInfo{}, false
}
