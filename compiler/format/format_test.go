package format

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/wide/compiler/ast"
	"github.com/slowlang/wide/compiler/parse"
)

func TestFormat(t *testing.T) {
	ctx := context.Background()

	s, err := parse.Parse(ctx, "test.yaml", []byte(`
name:   demo
inputs: [ x ]
vars:
  - a
  - i
funcs:
  bump:
  - if: a >   4
    then: [return]
  - let: a += -3
body:
- while: i < x
  do:
  - let: i += 1
  - if: i == 2
    then:
    - continue
    else: [break]
  - call: bump
  - trace: a
- exit
`))
	require.NoError(t, err)

	exp := `name: demo
inputs: [x]
vars: [a, i]
funcs:
  bump:
    - if: a > 4
      then:
        - return
    - let: a += -3
body:
  - while: i < x
    do:
      - let: i += 1
      - if: i == 2
        then:
          - continue
        else:
          - break
      - call: bump
      - trace: a
  - exit
`

	b, err := Format(ctx, nil, s)
	require.NoError(t, err)
	assert.Equal(t, exp, string(b))

	s2, err := parse.Parse(ctx, "test.yaml", b)
	require.NoError(t, err)

	b2, err := Format(ctx, nil, s2)
	require.NoError(t, err)
	assert.Equal(t, exp, string(b2))
}

func TestFormatEmpty(t *testing.T) {
	b, err := Format(context.Background(), nil, &ast.Shader{})
	require.NoError(t, err)
	assert.Equal(t, "body: []\n", string(b))

	_, err = Format(context.Background(), nil, 3)
	assert.Error(t, err)

	_, err = Format(context.Background(), nil, []ast.Stmt{struct{}{}})
	assert.Error(t, err)
}
