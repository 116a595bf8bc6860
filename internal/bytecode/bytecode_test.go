package bytecode

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpcodeDelta(t *testing.T) {
	assert.True(t, OpAdd.Typed())
	assert.False(t, OpLet.Typed())
	assert.Equal(t, OpAdd+2, OpAdd.WithDelta(DeltaString))
	assert.Equal(t, OpLet, OpLet.WithDelta(DeltaNumber))

	base, d := OpGe.WithDelta(DeltaBoolean).Split()
	assert.Equal(t, OpGe, base)
	assert.Equal(t, DeltaBoolean, d)

	assert.Equal(t, "MUL.num", OpMul.WithDelta(DeltaNumber).String())
	assert.Equal(t, "JUMP", OpJump.String())
}

func TestFamiliesDoNotOverlap(t *testing.T) {
	seen := map[Opcode]string{}
	for base := range opNames {
		if !base.Typed() {
			continue
		}
		for d := DeltaNone; d <= DeltaBoolean; d++ {
			op := base.WithDelta(d)
			if prev, ok := seen[op]; ok {
				t.Fatalf("opcode 0x%02X used by %s and %s", uint16(op), prev, base)
			}
			seen[op] = base.String()
		}
	}
	assert.Less(t, uint16(opFamilyEnd), uint16(OpJump))
}

func TestAddConstDeduplicates(t *testing.T) {
	b := New("m", nil)
	i1 := b.AddConst("Number", "1")
	i2 := b.AddConst("String", "1")
	i3 := b.AddConst("Number", "1")
	assert.Equal(t, 0, i1)
	assert.Equal(t, 1, i2)
	assert.Equal(t, i1, i3)
	assert.Len(t, b.Consts, 2)
}

func TestPatch(t *testing.T) {
	b := New("m", nil)
	addr := b.Emit(Instruction{Op: OpJump})
	b.Patch(PatchSite{Addr: addr, Field: FieldA}, Addr(7))
	assert.Equal(t, Addr(7), b.At(addr).A)

	b.Patch(PatchSite{Addr: addr, Field: FieldC}, Count(2))
	assert.Equal(t, Count(2), b.Code[0].C)

	assert.Panics(t, func() { b.Patch(PatchSite{Addr: 3}, Addr(0)) })
}

func TestParentSlotNormalises(t *testing.T) {
	assert.Equal(t, Slot(3), ParentSlot(0, 3))
	assert.Equal(t, Operand{Kind: KindParentSlot, Index: 3, Hops: 2}, ParentSlot(2, 3))
}

func TestDisassemble(t *testing.T) {
	parent := New("Parent", nil)
	b := New("Child", parent)
	k := b.AddConst("Number", "42")
	b.Emit(Instruction{Op: OpLet, A: Slot(0), B: Const(k, "Number"), Pos: SourcePos{Line: 3}})
	b.Emit(Instruction{Op: OpAdd.WithDelta(DeltaNumber), A: Temp(1), B: Slot(0), C: Const(k, "Number")})
	b.Emit(Instruction{Op: OpEnd})
	b.Vars = []Symbol{{Name: "X", Slot: 0, Type: "Number"}}
	b.ExportVars = b.Vars

	var buf bytes.Buffer
	require.NoError(t, NewDisassembler(&buf).Disassemble(b, true))
	out := buf.String()

	assert.Contains(t, out, "module Child (code=3, locals=0, consts=1) parent=Parent")
	assert.Contains(t, out, "0000    3 LET")
	assert.Contains(t, out, `v0 k0:Number ; "42"`)
	assert.Contains(t, out, "ADD.num")
	assert.Contains(t, out, "var X v0 Number export")
	assert.Contains(t, out, "module Parent")
	assert.True(t, strings.Index(out, "module Child") < strings.Index(out, "module Parent"))
}

func TestWriteJSON(t *testing.T) {
	b := New("m", nil)
	b.Emit(Instruction{Op: OpJump, A: Addr(1)})
	b.Emit(Instruction{Op: OpEnd})

	var buf bytes.Buffer
	require.NoError(t, b.WriteJSON(&buf))

	var decoded struct {
		Module string `json:"module"`
		Code   []struct {
			Op   string    `json:"op"`
			Args []Operand `json:"args"`
		} `json:"code"`
		Consts []Constant `json:"consts"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "m", decoded.Module)
	require.Len(t, decoded.Code, 2)
	assert.Equal(t, "JUMP", decoded.Code[0].Op)
	assert.Equal(t, []Operand{Addr(1)}, decoded.Code[0].Args)
	assert.Empty(t, decoded.Code[1].Args)
	assert.NotNil(t, decoded.Consts)
}
