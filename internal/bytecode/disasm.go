package bytecode

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Disassembler formats bytecode as a readable assembly-style dump.
type Disassembler struct {
	w       io.Writer
	visited map[*ByteCode]bool
	printed bool
}

// NewDisassembler constructs a disassembler that writes to w.
func NewDisassembler(w io.Writer) *Disassembler {
	return &Disassembler{
		w:       w,
		visited: make(map[*ByteCode]bool),
	}
}

// Disassemble emits a readable dump of b. When withParents is set the parent
// chain is dumped after it.
func (d *Disassembler) Disassemble(b *ByteCode, withParents bool) error {
	for ; b != nil; b = b.Parent {
		if d.visited[b] {
			return fmt.Errorf("module %q appears twice in the parent chain", b.Module)
		}
		d.visited[b] = true
		d.startSection()
		d.module(b)
		if !withParents {
			return nil
		}
	}
	return nil
}

func (d *Disassembler) startSection() {
	if d.printed {
		fmt.Fprintln(d.w)
	}
	d.printed = true
}

func (d *Disassembler) module(b *ByteCode) {
	name := b.Module
	if name == "" {
		name = "<anon>"
	}
	parent := "-"
	if b.Parent != nil {
		parent = b.Parent.Module
	}
	fmt.Fprintf(d.w, "module %s (code=%d, locals=%d, consts=%d) parent=%s\n",
		name, len(b.Code), b.Locals, len(b.Consts), parent)

	for addr, ins := range b.Code {
		lineStr := "-"
		if ins.Pos.Line > 0 {
			lineStr = strconv.Itoa(ins.Pos.Line)
		}
		fmt.Fprintf(d.w, "%04d %4s %-18s", addr, lineStr, ins.Op)
		if detail := d.operands(b, ins); detail != "" {
			fmt.Fprintf(d.w, " %s", detail)
		}
		fmt.Fprintln(d.w)
	}

	for idx, c := range b.Consts {
		fmt.Fprintf(d.w, "const %d %s %q\n", idx, c.Type, c.Text)
	}
	for _, v := range b.Vars {
		fmt.Fprintf(d.w, "var %s v%d%s%s\n", v.Name, v.Slot, typeSuffix(v.Type), exportMark(b.ExportVars, v.Name))
	}
	for _, fn := range b.Funcs {
		kind := "function"
		if fn.Procedure {
			kind = "procedure"
		}
		export := ""
		for _, e := range b.ExportFuncs {
			if e.Name == fn.Name {
				export = " export"
				break
			}
		}
		fmt.Fprintf(d.w, "%s %s entry=%04d exit=%04d params=%d locals=%d%s\n",
			kind, fn.Name, fn.Entry, fn.Exit, fn.Params, fn.Locals, export)
	}
	for _, e := range b.Externs {
		fmt.Fprintf(d.w, "extern %s v%d\n", e.Name, e.Slot)
	}
}

func (d *Disassembler) operands(b *ByteCode, ins Instruction) string {
	parts := make([]string, 0, 4)
	for _, o := range []Operand{ins.A, ins.B, ins.C, ins.D} {
		if o.Kind == KindNone {
			continue
		}
		parts = append(parts, o.String())
	}
	out := strings.Join(parts, " ")
	if comment := constComment(b, ins); comment != "" {
		out += " ; " + comment
	}
	return out
}

func constComment(b *ByteCode, ins Instruction) string {
	var notes []string
	for _, o := range []Operand{ins.A, ins.B, ins.C, ins.D} {
		if o.Kind == KindConst && o.Index < len(b.Consts) {
			notes = append(notes, fmt.Sprintf("%q", b.Consts[o.Index].Text))
		}
	}
	return strings.Join(notes, " ")
}

func typeSuffix(t string) string {
	if t == "" {
		return ""
	}
	return " " + t
}

func exportMark(list []Symbol, name string) string {
	for _, s := range list {
		if s.Name == name {
			return " export"
		}
	}
	return ""
}
