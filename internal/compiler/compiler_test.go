package compiler

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xirelogy/go-bscript/internal/bytecode"
	"github.com/xirelogy/go-bscript/internal/config"
	"github.com/xirelogy/go-bscript/internal/host"
	"github.com/xirelogy/go-bscript/internal/token"
)

type recordingSink struct {
	codes []ErrorCode
	lines []int
}

func (s *recordingSink) ReportError(code ErrorCode, pos token.Position, _ string) {
	s.codes = append(s.codes, code)
	s.lines = append(s.lines, pos.Line)
}

func testOptions() Options {
	return Options{Logger: zerolog.Nop(), Config: config.Default().Compiler}
}

func newTestModule(name, src string, parent *Module, opts Options) *Module {
	return NewModule(StaticSource{Name: name, File: name + ".bsl", Body: src}, parent, opts)
}

func compileSource(t *testing.T, src string) *bytecode.ByteCode {
	t.Helper()
	m := newTestModule("Test", src, nil, testOptions())
	require.NoError(t, m.Compile())
	require.NotNil(t, m.ByteCode())
	return m.ByteCode()
}

func compileError(t *testing.T, src string, opts Options) *Error {
	t.Helper()
	m := newTestModule("Test", src, nil, opts)
	err := m.Compile()
	require.Error(t, err)
	assert.Nil(t, m.ByteCode())
	var ce *Error
	require.ErrorAs(t, err, &ce)
	return ce
}

func opNames(b *bytecode.ByteCode) []string {
	out := make([]string, 0, len(b.Code))
	for _, ins := range b.Code {
		out = append(out, ins.Op.String())
	}
	return out
}

func TestPrecedenceMultiplicationFirst(t *testing.T) {
	b := compileSource(t, "x = 2 + 3 * 4;")
	require.Equal(t, []string{"MUL.num", "ADD.num", "END"}, opNames(b))

	mul, add := b.Code[0], b.Code[1]
	assert.Equal(t, bytecode.KindTemp, mul.A.Kind)
	assert.Equal(t, "3", b.Consts[mul.B.Index].Text)
	assert.Equal(t, "4", b.Consts[mul.C.Index].Text)
	assert.Equal(t, bytecode.Slot(0), add.A)
	assert.Equal(t, "2", b.Consts[add.B.Index].Text)
	assert.Equal(t, mul.A, add.C)
}

func TestPeepholeDisabledKeepsLet(t *testing.T) {
	opts := testOptions()
	opts.Config.Peephole = false
	m := newTestModule("Test", "x = 2 + 3;", nil, opts)
	require.NoError(t, m.Compile())
	b := m.ByteCode()
	require.Equal(t, []string{"ADD.num", "LET", "END"}, opNames(b))
	assert.Equal(t, b.Code[0].A, b.Code[1].B)
	assert.Equal(t, bytecode.Slot(0), b.Code[1].A)
}

func TestConstantsDeduplicated(t *testing.T) {
	b := compileSource(t, `a = "x"; b = "x"; c = 1; d = 1; e = -1;`)
	assert.Equal(t, []bytecode.Constant{
		{Type: "String", Text: "x"},
		{Type: "Number", Text: "1"},
		{Type: "Number", Text: "-1"},
	}, b.Consts)
}

func TestDuplicateDeclaration(t *testing.T) {
	sink := &recordingSink{}
	opts := testOptions()
	opts.Sink = sink
	ce := compileError(t, "Var total;\nVar TOTAL;", opts)
	assert.Equal(t, DuplicateIdentifier, ce.Code)
	assert.Equal(t, 2, ce.Pos.Line)
	assert.Equal(t, "Test", ce.Module)
	assert.Equal(t, []ErrorCode{DuplicateIdentifier}, sink.codes)
	assert.Equal(t, []int{2}, sink.lines)
}

func TestDeclarationForms(t *testing.T) {
	b := compileSource(t, "Var arr[3], Number n Export = 1;\nString s;")
	require.Equal(t, []string{"SET_ARRAY_SIZE", "LET", "CHECK_TYPE", "CHECK_TYPE", "END"}, opNames(b))
	assert.Equal(t, bytecode.Count(3), b.Code[0].B)
	assert.Equal(t, bytecode.Slot(1).WithType("Number"), b.Code[1].A)
	assert.Equal(t, "Number", b.Consts[b.Code[2].B.Index].Text)
	assert.Equal(t, []bytecode.Symbol{{Name: "n", Slot: 1, Type: "Number"}}, b.ExportVars)
	assert.Len(t, b.Vars, 3)
}

func TestLocalShadowingModuleVariableIsDuplicate(t *testing.T) {
	ce := compileError(t, "Var x;\nProcedure P()\n  Var x;\nEndProcedure", testOptions())
	assert.Equal(t, DuplicateIdentifier, ce.Code)
	assert.Equal(t, 3, ce.Pos.Line)
}

func TestForwardCallIsBackpatched(t *testing.T) {
	b := compileSource(t, "Greet();\nProcedure Greet()\nEndProcedure")
	require.Equal(t, []string{"JUMP", "FUNC", "END_FUNC", "END", "CALL", "JUMP"}, opNames(b))

	assert.Equal(t, bytecode.Addr(4), b.Code[0].A)
	assert.Equal(t, bytecode.Addr(1), b.Code[4].B)
	assert.Equal(t, bytecode.Count(0), b.Code[4].D)
	assert.Equal(t, bytecode.Addr(1), b.Code[5].A)
	assert.Equal(t, bytecode.Addr(3), b.Code[1].C)

	fn, ok := b.FindFunc("Greet")
	require.True(t, ok)
	assert.Equal(t, 1, fn.Entry)
	assert.Equal(t, 2, fn.Exit)
	assert.True(t, fn.Procedure)
}

func TestRecursiveCallIsDeferred(t *testing.T) {
	src := "Function Fact(n)\n  Return ?(n < 2, 1, n * Fact(n - 1));\nEndFunction"
	b := compileSource(t, src)
	fn, ok := b.FindFunc("Fact")
	require.True(t, ok)

	var call *bytecode.Instruction
	for i := range b.Code {
		if b.Code[i].Op == bytecode.OpCall {
			call = &b.Code[i]
		}
	}
	require.NotNil(t, call)
	assert.Equal(t, bytecode.Addr(fn.Entry), call.B)
	assert.Greater(t, fn.Locals, 1)
}

func TestUnknownFunction(t *testing.T) {
	ce := compileError(t, "x = 1;\nMissing(x);", testOptions())
	assert.Equal(t, UnknownFunction, ce.Code)
	assert.Equal(t, 2, ce.Pos.Line)
}

func TestDefaultArgumentFilledAtCallSite(t *testing.T) {
	b := compileSource(t, "Procedure P(a, b = 5)\nEndProcedure\nP(1);")
	require.Equal(t, []string{"FUNC", "PARAM", "PARAM_DEFAULT", "END_FUNC", "CALL", "ARG", "ARG", "END"}, opNames(b))

	five := bytecode.Const(0, "Number")
	assert.Equal(t, bytecode.Constant{Type: "Number", Text: "5"}, b.Consts[0])
	assert.Equal(t, five, b.Code[2].C)
	assert.Equal(t, bytecode.Count(2), b.Code[4].C)
	assert.Equal(t, "1", b.Consts[b.Code[5].A.Index].Text)
	assert.Equal(t, five, b.Code[6].A)
	assert.Equal(t, bytecode.Count(2), b.Code[0].A)
}

func TestSkippedArgument(t *testing.T) {
	b := compileSource(t, "Procedure P(a, b)\nEndProcedure\nP(, 2);")
	var args []bytecode.Operand
	for _, ins := range b.Code {
		if ins.Op == bytecode.OpArg {
			args = append(args, ins.A)
		}
	}
	require.Len(t, args, 2)
	assert.Equal(t, bytecode.Skip(), args[0])
}

func TestArgumentCounts(t *testing.T) {
	ce := compileError(t, "Procedure P(a)\nEndProcedure\nP();", testOptions())
	assert.Equal(t, TooFewArguments, ce.Code)

	ce = compileError(t, "Procedure P(a)\nEndProcedure\nP(1, 2);", testOptions())
	assert.Equal(t, TooManyArguments, ce.Code)

	ce = compileError(t, "x = Later(1, 2);\nFunction Later(a)\n  Return a;\nEndFunction", testOptions())
	assert.Equal(t, TooManyArguments, ce.Code)
	assert.Equal(t, 1, ce.Pos.Line)
}

func TestProcedureUsedAsFunction(t *testing.T) {
	ce := compileError(t, "Procedure P()\nEndProcedure\nx = P();", testOptions())
	assert.Equal(t, ProcedureAsFunction, ce.Code)
}

func TestGotoLabel(t *testing.T) {
	b := compileSource(t, "Goto Done;\nx = 1;\nDone:\ny = 2;")
	require.Equal(t, []string{"JUMP", "LET", "LET", "END"}, opNames(b))
	assert.Equal(t, bytecode.Addr(2), b.Code[0].A)

	ce := compileError(t, "Goto Nowhere;", testOptions())
	assert.Equal(t, UndefinedLabel, ce.Code)
	assert.Equal(t, 1, ce.Pos.Line)

	ce = compileError(t, "A:\nA:", testOptions())
	assert.Equal(t, DuplicateLabel, ce.Code)
}

func TestIfElseIfElse(t *testing.T) {
	b := compileSource(t, "If a Then\n x = 1;\nElseIf b Then\n x = 2;\nElse\n x = 3;\nEndIf;")
	require.Equal(t, []string{
		"JUMP_IF_FALSE", "LET", "JUMP",
		"JUMP_IF_FALSE", "LET", "JUMP",
		"LET", "END",
	}, opNames(b))
	assert.Equal(t, bytecode.Addr(3), b.Code[0].B)
	assert.Equal(t, bytecode.Addr(6), b.Code[3].B)
	assert.Equal(t, bytecode.Addr(7), b.Code[2].A)
	assert.Equal(t, bytecode.Addr(7), b.Code[5].A)
}

func TestWhileBreakAndContinue(t *testing.T) {
	b := compileSource(t, "While ok Do\n If done Then\n  Break;\n EndIf;\n Continue;\nEndDo;")
	require.Equal(t, []string{"JUMP_IF_FALSE", "JUMP_IF_FALSE", "JUMP", "JUMP", "JUMP", "END"}, opNames(b))
	assert.Equal(t, bytecode.Addr(5), b.Code[0].B)
	assert.Equal(t, bytecode.Addr(5), b.Code[2].A)
	assert.Equal(t, bytecode.Addr(0), b.Code[3].A)
	assert.Equal(t, bytecode.Addr(0), b.Code[4].A)
}

func TestForContinueTargetsIncrement(t *testing.T) {
	b := compileSource(t, "For i = 1 To 3 Do\n  Continue;\nEndDo;")
	require.Equal(t, []string{"LET", "LET", "FOR_TEST", "JUMP", "INC", "JUMP", "END"}, opNames(b))

	assert.Equal(t, bytecode.Addr(4), b.Code[3].A)
	assert.Equal(t, bytecode.Addr(2), b.Code[5].A)
	assert.Equal(t, bytecode.Addr(6), b.Code[2].C)
	assert.Equal(t, b.Code[1].A, b.Code[2].B)
	assert.Equal(t, bytecode.KindTemp, b.Code[1].A.Kind)
}

func TestNestedLoopsKeepSeparateState(t *testing.T) {
	b := compileSource(t, "For i = 1 To 3 Do\n  For i = 1 To 2 Do\n  EndDo;\nEndDo;")
	require.Equal(t, []string{"LET", "LET", "FOR_TEST", "LET", "LET", "FOR_TEST", "INC", "JUMP", "INC", "JUMP", "END"}, opNames(b))
	assert.NotEqual(t, b.Code[2].B, b.Code[5].B)
	assert.Equal(t, b.Code[1].A, b.Code[2].B)
	assert.Equal(t, b.Code[4].A, b.Code[5].B)

	b = compileSource(t, "Var items;\nFor Each x In items Do\n  For Each x In items Do\n  EndDo;\nEndDo;")
	require.Equal(t, []string{"ITER_INIT", "ITER_NEXT", "ITER_INIT", "ITER_NEXT", "JUMP", "JUMP", "END"}, opNames(b))
	assert.NotEqual(t, b.Code[1].B, b.Code[3].B)
}

func TestForEach(t *testing.T) {
	b := compileSource(t, "Var items;\nFor Each item In items Do\n  Break;\nEndDo;")
	require.Equal(t, []string{"ITER_INIT", "ITER_NEXT", "JUMP", "JUMP", "END"}, opNames(b))
	assert.Equal(t, bytecode.Addr(4), b.Code[1].C)
	assert.Equal(t, bytecode.Addr(4), b.Code[2].A)
	assert.Equal(t, bytecode.Addr(1), b.Code[3].A)
	assert.Equal(t, b.Code[0].A, b.Code[1].B)
}

func TestTryMarkers(t *testing.T) {
	b := compileSource(t, "Try\n  x = 1;\nExcept\n  Raise;\nEndTry;")
	require.Equal(t, []string{"TRY", "LET", "END_TRY", "RAISE", "END"}, opNames(b))
	assert.Equal(t, bytecode.Addr(3), b.Code[0].A)
	assert.Equal(t, bytecode.Addr(4), b.Code[2].A)
	assert.Equal(t, bytecode.KindNone, b.Code[3].A.Kind)
}

func TestControlFlowErrors(t *testing.T) {
	cases := []struct {
		src  string
		code ErrorCode
	}{
		{"Raise;", RaiseOutsideExcept},
		{"Continue;", ContinueOutsideLoop},
		{"Break;", BreakOutsideLoop},
		{"Return;", ReturnOutsideFunction},
		{"Procedure P()\n Return 1;\nEndProcedure", ReturnValueInProcedure},
		{"Function F()\n Return;\nEndFunction", ReturnWithoutValue},
		{"If x Then\n Procedure P()\n EndProcedure\nEndIf;", FunctionNotAllowed},
		{"Procedure P()\n Var x Export;\nEndProcedure", ExportNotAllowed},
		{"x;", NotAStatement},
		{"Procedure P()\nEndProcedure\nP() = 1;", NotAssignable},
		{"x = 1", NoError},
		{"x = 1 y = 2;", ExpectedDelimiter},
		{"If x Then\n y = 1;", ExpectedKeyword},
		{`s = "open`, MalformedConstant},
		{"x = #;", UnexpectedToken},
	}
	for _, tc := range cases {
		m := newTestModule("Test", tc.src, nil, testOptions())
		err := m.Compile()
		if tc.code == NoError {
			assert.NoError(t, err, tc.src)
			continue
		}
		assert.Equal(t, tc.code, CodeOf(err), tc.src)
	}
}

func TestTypeChecks(t *testing.T) {
	ce := compileError(t, `Number n = "a";`, testOptions())
	assert.Equal(t, BadTypeExpressionNumber, ce.Code)

	ce = compileError(t, "If 1 Then\nEndIf;", testOptions())
	assert.Equal(t, BadTypeExpressionBoolean, ce.Code)

	ce = compileError(t, `x = "a" - 1;`, testOptions())
	assert.Equal(t, BadTypeExpressionNumber, ce.Code)

	ce = compileError(t, "String s;\nFor s = 1 To 3 Do\nEndDo;", testOptions())
	assert.Equal(t, BadTypeExpressionString, ce.Code)
	assert.Equal(t, 2, ce.Pos.Line)

	b := compileSource(t, `s = "a" + 1; d = '20240101' + 1; e = x + 1;`)
	require.Equal(t, []string{"ADD.str", "ADD.date", "ADD", "END"}, opNames(b))
}

func TestImplicitReadWarnsOrFails(t *testing.T) {
	m := newTestModule("Test", "x = y;", nil, testOptions())
	require.NoError(t, m.Compile())
	require.Len(t, m.Warnings(), 1)
	assert.Equal(t, VariableNotFound, m.Warnings()[0].Code)

	opts := testOptions()
	opts.Config.StrictReads = true
	ce := compileError(t, "x = y;", opts)
	assert.Equal(t, VariableNotFound, ce.Code)
}

func TestChainsAndObjects(t *testing.T) {
	src := `a = New Structure();
a.Name = "x";
b = a.Name;
c = ?(b = "x", 1, 2);
a.Items[1] = c;
a.Log(b);`
	b := compileSource(t, src)
	assert.Equal(t, []string{
		"NEW", "LET",
		"SET_MEMBER",
		"GET_MEMBER",
		"EQ", "JUMP_IF_FALSE", "LET", "JUMP", "LET", "LET",
		"GET_MEMBER", "SET_INDEX",
		"CALL_METHOD", "ARG",
		"END",
	}, opNames(b))
	assert.Equal(t, bytecode.Slot(2), b.Code[3].A)
	assert.Equal(t, bytecode.KindNone, b.Code[12].A.Kind)
}

func TestHostContextSymbols(t *testing.T) {
	reg := host.NewRegistry()
	require.NoError(t, reg.RegisterExtern(host.Extern{Name: "Session", Type: "SessionInfo"}))
	require.NoError(t, reg.RegisterContext(host.Context{
		Name:       "Doc",
		Type:       "Document",
		Attributes: []string{"Total"},
		Methods:    []host.Method{{Name: "Write", Params: 1}},
	}))
	opts := testOptions()
	opts.Host = reg

	m := newTestModule("Test", "Total = 5;\nWrite(Total);", nil, opts)
	require.NoError(t, m.Compile())
	b := m.ByteCode()
	require.Equal(t, []string{"SET_MEMBER", "GET_MEMBER", "CALL_CONTEXT", "ARG", "END"}, opNames(b))

	doc := b.Code[0].A
	assert.Equal(t, bytecode.KindSlot, doc.Kind)
	assert.Equal(t, "Total", b.Consts[b.Code[0].B.Index].Text)
	assert.Equal(t, doc, b.Code[2].B)
	assert.Equal(t, "Write", b.Consts[b.Code[2].C.Index].Text)
	assert.Equal(t, []bytecode.Symbol{
		{Name: "Session", Slot: 0, Type: "SessionInfo"},
		{Name: "Doc", Slot: 1, Type: "Document"},
	}, b.Externs)

	m = newTestModule("Test", "Write();", nil, opts)
	assert.Equal(t, TooFewArguments, CodeOf(m.Compile()))
}
