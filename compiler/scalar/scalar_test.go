package scalar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/wide/compiler/ast"
	"github.com/slowlang/wide/compiler/parse"
)

func shader(t *testing.T, text string) *ast.Shader {
	t.Helper()

	s, err := parse.Parse(context.Background(), "test.yaml", []byte(text))
	require.NoError(t, err)

	return s
}

func TestRun(t *testing.T) {
	s := shader(t, `
inputs: [n]
vars: [i, f]
funcs:
  fact:
    - let: f = 1
    - while: i < n
      do:
        - let: i += 1
        - if: i == 4
          then: [return]
        - trace: i
body:
  - call: fact
  - if: i == 4
    then: [exit]
  - let: f = 9
`)

	l, err := Run(context.Background(), s, map[string]int32{"n": 3}, 0)
	require.NoError(t, err)

	assert.True(t, l.Live)
	assert.Equal(t, map[string]int32{"i": 3, "f": 9}, l.Vars)
	assert.Equal(t, []Trace{{"i", 1}, {"i", 2}, {"i", 3}}, l.Trace)

	l, err = Run(context.Background(), s, map[string]int32{"n": 10}, 0)
	require.NoError(t, err)

	assert.False(t, l.Live)
	assert.Equal(t, map[string]int32{"i": 4, "f": 1}, l.Vars)
	assert.Len(t, l.Trace, 3)
}

func TestRunReturn(t *testing.T) {
	s := shader(t, `
vars: [a]
body:
  - let: a -= 2
  - return
  - let: a = 5
`)

	l, err := Run(context.Background(), s, nil, 0)
	require.NoError(t, err)

	assert.False(t, l.Live)
	assert.Equal(t, int32(-2), l.Vars["a"])
}

func TestRunWrap(t *testing.T) {
	s := shader(t, `
vars: [a]
body:
  - let: a = 2147483647
  - let: a += 1
`)

	l, err := Run(context.Background(), s, nil, 0)
	require.NoError(t, err)

	assert.Equal(t, int32(-2147483648), l.Vars["a"])
}

func TestStepLimit(t *testing.T) {
	s := shader(t, `
vars: [a]
body:
  - while: a == 0
    do:
      - continue
`)

	_, err := Run(context.Background(), s, nil, 1000)
	assert.ErrorIs(t, err, ErrStepLimit)
}
