package bscript

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xirelogy/go-bscript/internal/compiler"
	"github.com/xirelogy/go-bscript/internal/config"
	"github.com/xirelogy/go-bscript/internal/token"
)

type countingSink struct{ n int }

func (s *countingSink) ReportError(ErrorCode, token.Position, string) { s.n++ }

func TestEngineLoadSourceWithParent(t *testing.T) {
	e := New()
	_, err := e.LoadSource("Common", "", "Var Rate Export = 3;\nFunction Twice(x) Export\n  Return x * 2;\nEndFunction")
	require.NoError(t, err)

	b, err := e.LoadSource("Orders", "Common", "total = Twice(Rate);")
	require.NoError(t, err)
	require.NotNil(t, b.Parent)
	assert.Equal(t, "Common", b.Parent.Module)
	assert.Equal(t, []string{"Common", "Orders"}, e.Names())

	var buf bytes.Buffer
	require.NoError(t, e.Disassemble(&buf, "Orders", true))
	out := buf.String()
	assert.Contains(t, out, "module Orders")
	assert.Contains(t, out, "parent=Common")
	assert.Contains(t, out, "CALL")
	assert.Contains(t, out, "function Twice")
}

func TestEngineReloadReplacesSource(t *testing.T) {
	e := New()
	first, err := e.LoadSource("M", "", "x = 1;")
	require.NoError(t, err)
	second, err := e.LoadSource("M", "", "x = 2;")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, "2", second.Consts[0].Text)
}

func TestEngineCompileErrors(t *testing.T) {
	sink := &countingSink{}
	cfg := config.Default()
	cfg.Compiler.StrictReads = true
	e := New(WithConfig(cfg), WithSink(sink))

	_, err := e.LoadSource("Bad", "", "x = y;")
	require.Error(t, err)
	assert.Equal(t, compiler.VariableNotFound, CodeOf(err))
	assert.Equal(t, 1, sink.n)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Bad", ce.Module)
	assert.Equal(t, 1, ce.Pos.Line)

	_, ok := e.ByteCode("Bad")
	assert.False(t, ok)
	assert.Error(t, e.Disassemble(&bytes.Buffer{}, "Bad", false))
}

func TestEngineHostSymbols(t *testing.T) {
	e := New()
	require.NoError(t, e.RegisterExtern("Session", "SessionInfo"))
	require.NoError(t, e.RegisterContext(Context{
		Name:       "ThisObject",
		Attributes: []string{"Amount"},
		Methods:    []Method{{Name: "Post", Params: 0}},
	}))
	assert.Error(t, e.RegisterExtern("session", ""))

	b, err := e.LoadSource("Doc", "", "Amount = Amount + 1;\nPost();\nuser = Session.User;")
	require.NoError(t, err)
	require.Len(t, b.Externs, 2)
	assert.Equal(t, "Session", b.Externs[0].Name)
	assert.Empty(t, e.Warnings("Doc"))
}

func TestEngineLoadFileAndJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Report.bsl")
	require.NoError(t, os.WriteFile(path, []byte("Procedure Build() Export\nEndProcedure"), 0o644))

	e := New()
	b, err := e.LoadFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, "Report", b.Module)

	var buf bytes.Buffer
	require.NoError(t, e.WriteJSON(&buf, "report"))
	var doc struct {
		Module string `json:"module"`
		Funcs  []struct {
			Name string `json:"name"`
		} `json:"funcs"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "Report", doc.Module)
	require.Len(t, doc.Funcs, 1)
	assert.Equal(t, "Build", doc.Funcs[0].Name)

	require.NoError(t, os.WriteFile(path, []byte("Procedure Build() Export\nEndProcedure\nProcedure Print() Export\nEndProcedure"), 0o644))
	b, err = e.LoadFile(path, "")
	require.NoError(t, err)
	assert.Len(t, b.Funcs, 2)

	require.NoError(t, e.Remove("Report"))
	assert.Empty(t, e.Names())
}

func TestEngineReloadChangesParent(t *testing.T) {
	e := New()
	_, err := e.LoadSource("A", "", "Var V Export;")
	require.NoError(t, err)
	_, err = e.LoadSource("B", "", "Var W Export;")
	require.NoError(t, err)
	b, err := e.LoadSource("C", "A", "V = 1;")
	require.NoError(t, err)
	require.NotNil(t, b.Parent)
	assert.Equal(t, "A", b.Parent.Module)

	b, err = e.LoadSource("C", "B", "W = 1;")
	require.NoError(t, err)
	require.NotNil(t, b.Parent)
	assert.Equal(t, "B", b.Parent.Module)
	require.NoError(t, e.Remove("A"))
}

func TestEngineCompileAll(t *testing.T) {
	e := New()
	_, err := e.LoadSource("A", "", "Var V Export;")
	require.NoError(t, err)
	_, err = e.LoadSource("B", "A", "V = 1;")
	require.NoError(t, err)
	require.NoError(t, e.CompileAll())
}
