package bytecode

import (
	"io"

	"github.com/goccy/go-json"
)

type byteCodeJSON struct {
	Module      string      `json:"module"`
	Parent      string      `json:"parent,omitempty"`
	Locals      int         `json:"locals"`
	Code        []instrJSON `json:"code"`
	Consts      []Constant  `json:"consts"`
	Vars        []Symbol    `json:"vars"`
	ExportVars  []Symbol    `json:"exportVars"`
	Funcs       []FuncInfo  `json:"funcs"`
	ExportFuncs []FuncInfo  `json:"exportFuncs"`
	Externs     []Symbol    `json:"externs"`
}

type instrJSON struct {
	Addr int       `json:"addr"`
	Op   string    `json:"op"`
	Args []Operand `json:"args,omitempty"`
	Pos  SourcePos `json:"pos"`
}

// WriteJSON encodes b (without its parents' bodies) as indented JSON.
func (b *ByteCode) WriteJSON(w io.Writer) error {
	out := byteCodeJSON{
		Module:      b.Module,
		Locals:      b.Locals,
		Code:        make([]instrJSON, 0, len(b.Code)),
		Consts:      nonNil(b.Consts),
		Vars:        nonNil(b.Vars),
		ExportVars:  nonNil(b.ExportVars),
		Funcs:       nonNil(b.Funcs),
		ExportFuncs: nonNil(b.ExportFuncs),
		Externs:     nonNil(b.Externs),
	}
	if b.Parent != nil {
		out.Parent = b.Parent.Module
	}
	for addr, ins := range b.Code {
		args := []Operand{ins.A, ins.B, ins.C, ins.D}
		for len(args) > 0 && args[len(args)-1].Kind == KindNone {
			args = args[:len(args)-1]
		}
		out.Code = append(out.Code, instrJSON{Addr: addr, Op: ins.Op.String(), Args: args, Pos: ins.Pos})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
