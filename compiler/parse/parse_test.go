package parse

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/wide/compiler/ast"
)

const demo = `
name: demo
inputs: [x, y]
vars: [a, b]
funcs:
  bump:
    - let: a += 1
    - if: a > y
      then: [return]
body:
  - let: b = x
  - while: b < 10
    do:
      - let: b += 3
      - if: b == 7
        then: [continue]
        else:
          - call: bump
      - trace: a
  - if: x != -1
    then: [exit]
`

func TestParse(t *testing.T) {
	s, err := Parse(context.Background(), "demo.yaml", []byte(demo))
	require.NoError(t, err)

	assert.Equal(t, "demo", s.Name)
	assert.Equal(t, []string{"x", "y"}, s.Inputs)
	assert.Equal(t, []string{"a", "b"}, s.Vars)

	require.Len(t, s.Funcs, 1)

	f := s.Funcs[0]
	assert.Equal(t, "bump", f.Name)
	require.Len(t, f.Body, 2)

	assert.Equal(t, ast.Let{Base: ast.Base{Line: 7, Col: 7}, Var: "a", Op: "+=", Value: ast.Operand{Imm: 1}}, f.Body[0])

	cond, ok := f.Body[1].(ast.If)
	require.True(t, ok, "%T", f.Body[1])
	assert.Equal(t, "a > y", cond.Cond.String())
	require.Len(t, cond.Then, 1)
	assert.IsType(t, ast.Return{}, cond.Then[0])
	assert.Nil(t, cond.Else)

	require.Len(t, s.Body, 3)

	loop, ok := s.Body[1].(ast.While)
	require.True(t, ok, "%T", s.Body[1])
	assert.Equal(t, "b < 10", loop.Cond.String())
	require.Len(t, loop.Body, 3)

	inner := loop.Body[1].(ast.If)
	assert.IsType(t, ast.Continue{}, inner.Then[0])
	assert.Equal(t, "bump", inner.Else[0].(ast.Call).Func)
	assert.Equal(t, "a", loop.Body[2].(ast.Trace).Var)

	last := s.Body[2].(ast.If)
	assert.Equal(t, int64(-1), last.Cond.R.Imm)
	assert.True(t, last.Cond.R.IsImm())
	assert.IsType(t, ast.Exit{}, last.Then[0])
}

func TestParseDefaultName(t *testing.T) {
	s, err := Parse(context.Background(), "file.yaml", []byte("vars: [a]\nbody:\n  - let: a = 0x10\n"))
	require.NoError(t, err)

	assert.Equal(t, "file.yaml", s.Name)
	assert.Equal(t, int64(16), s.Body[0].(ast.Let).Value.Imm)
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		text string
		line int
		msg  string
	}{
		{"body:\n  - jump\n", 2, "unknown statement"},
		{"body:\n  - let: a\n", 2, "var op operand"},
		{"body:\n  - let: a *= 2\n", 2, "unsupported assignment"},
		{"body:\n  - if: a <> 2\n", 2, "unsupported comparison"},
		{"body:\n  - if: a < 2\n    than: []\n", 2, "unexpected key"},
		{"body:\n  - let: a = 2b\n", 2, "bad operand"},
		{"vars: [1a]\n", 1, "bad name"},
		{"vars: a\n", 1, "list of names"},
		{"\n\nfuncs: [f]\n", 3, "must be a mapping"},
		{"options: {}\n", 1, "unknown section"},
		{"- a\n", 1, "must be a mapping"},
	} {
		_, err := Parse(context.Background(), "bad.yaml", []byte(tc.text))
		require.Error(t, err, "%q", tc.text)

		assert.ErrorContains(t, err, tc.msg, "%q", tc.text)

		var pe PosError
		if assert.True(t, errors.As(err, &pe), "%q: %v", tc.text, err) {
			assert.Equal(t, tc.line, pe.Line, "%q: %v", tc.text, err)
		}
	}

	_, err := Parse(context.Background(), "empty.yaml", nil)
	assert.Error(t, err)

	_, err = Parse(context.Background(), "broken.yaml", []byte("body: [\n"))
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "s.yaml")

	err := os.WriteFile(name, []byte(demo), 0o644)
	require.NoError(t, err)

	s, err := ParseFile(context.Background(), name)
	require.NoError(t, err)
	assert.Equal(t, "demo", s.Name)

	_, err = ParseFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
