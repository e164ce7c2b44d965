package front

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/wide/compiler/ast"
	"github.com/slowlang/wide/compiler/caps"
	"github.com/slowlang/wide/compiler/eval"
	"github.com/slowlang/wide/compiler/ir"
	"github.com/slowlang/wide/compiler/lanes"
	"github.com/slowlang/wide/compiler/parse"
)

func shader(t *testing.T, text string) *ast.Shader {
	t.Helper()

	s, err := parse.Parse(context.Background(), "test.yaml", []byte(text))
	require.NoError(t, err)

	return s
}

type result struct {
	vars   map[string][]int32
	live   lanes.Set
	events []eval.Event
}

func run(t *testing.T, s *ast.Shader, c caps.Table, active lanes.Set, inputs ...[]int32) result {
	t.Helper()

	f, err := Lower(context.Background(), s, c, nil)
	require.NoError(t, err)

	args := []eval.Value{{active.Bits()}}

	for _, in := range inputs {
		v := make(eval.Value, c.Width)
		for i, x := range in {
			v[i] = uint64(uint32(x))
		}

		args = append(args, v)
	}

	m := eval.New(f)
	require.NoError(t, m.Run(context.Background(), args...))

	out, err := m.Outputs()
	require.NoError(t, err)

	r := result{vars: map[string][]int32{}, events: m.Events}

	for _, n := range s.Vars {
		for _, v := range out[n] {
			r.vars[n] = append(r.vars[n], int32(uint32(v)))
		}
	}

	r.live = lanes.FromBits(c.Width, out["mask"][0])

	return r
}

func table(t *testing.T, isa caps.ISA) caps.Table {
	c, err := caps.ForISA(isa)
	require.NoError(t, err)

	return c
}

func TestIfElse(t *testing.T) {
	s := shader(t, `
inputs: [x]
vars: [a]
body:
  - if: x < 2
    then:
      - let: a = 10
    else:
      - let: a = 20
  - let: a += x
`)

	for _, isa := range []caps.ISA{caps.SSE42, caps.AVX2, caps.AVX512} {
		c := table(t, isa)

		x := make([]int32, c.Width)
		for i := range x {
			x[i] = int32(i)
		}

		r := run(t, s, c, lanes.All(c.Width), x)

		for i, v := range r.vars["a"] {
			want := int32(20 + i)
			if i < 2 {
				want = int32(10 + i)
			}

			assert.Equal(t, want, v, "%v lane %d", isa, i)
		}

		assert.True(t, r.live.Full())
	}
}

func TestInactiveLanesUntouched(t *testing.T) {
	s := shader(t, `
vars: [a]
body:
  - let: a = 5
`)

	c := table(t, caps.AVX)

	r := run(t, s, c, lanes.Of(8, 1, 6))

	assert.Equal(t, []int32{0, 5, 0, 0, 0, 0, 5, 0}, r.vars["a"])
	assert.Equal(t, lanes.Of(8, 1, 6), r.live)
}

func TestLoopBreakContinue(t *testing.T) {
	s := shader(t, `
inputs: [n]
vars: [i, sum]
body:
  - while: i < 100
    do:
      - let: i += 1
      - if: i == 3
        then: [continue]
      - if: i > n
        then: [break]
      - let: sum += i
`)

	c := table(t, caps.SSE42)

	r := run(t, s, c, lanes.All(4), []int32{0, 2, 3, 5})

	// sum of 1..n without 3
	assert.Equal(t, []int32{0, 3, 3, 12}, r.vars["sum"])
	assert.Equal(t, []int32{1, 4, 4, 6}, r.vars["i"])
}

func TestReturnAndExit(t *testing.T) {
	s := shader(t, `
inputs: [x]
vars: [a, b]
funcs:
  f:
    - let: a = 1
    - if: x == 1
      then: [return]
    - if: x == 2
      then: [exit]
    - let: a = 2
body:
  - call: f
  - let: b = 7
  - if: x == 3
    then: [return]
  - let: b = 8
`)

	for _, isa := range []caps.ISA{caps.NEON, caps.AVX512} {
		c := table(t, isa)

		x := make([]int32, c.Width)
		for i := range x {
			x[i] = int32(i % 4)
		}

		r := run(t, s, c, lanes.All(c.Width), x)

		for i := 0; i < c.Width; i++ {
			var a, b int32
			live := true

			switch i % 4 {
			case 0:
				a, b = 2, 8
			case 1:
				a, b = 1, 8
			case 2:
				a, b = 1, 0
				live = false
			case 3:
				a, b = 2, 7
				live = false
			}

			assert.Equal(t, a, r.vars["a"][i], "%v lane %d", isa, i)
			assert.Equal(t, b, r.vars["b"][i], "%v lane %d", isa, i)
			assert.Equal(t, live, r.live.IsSet(i), "%v lane %d", isa, i)
		}
	}
}

func TestTrace(t *testing.T) {
	s := shader(t, `
inputs: [x]
vars: [a]
body:
  - let: a = x
  - if: x > 6
    then:
      - trace: a
`)

	c := table(t, caps.SSE42)

	r := run(t, s, c, lanes.Of(4, 0, 2, 3), []int32{5, 6, 7, 8})

	require.Len(t, r.events, 2)

	for i, lane := range []uint64{2, 3} {
		ev := r.events[i]

		assert.Equal(t, TraceFunc, ev.Func)
		assert.Equal(t, eval.Value{0}, ev.Args[0])
		assert.Equal(t, eval.Value{lane}, ev.Args[1])
		assert.Equal(t, eval.Value{lane + 5}, ev.Args[2])
	}
}

func TestUniformSkip(t *testing.T) {
	s := shader(t, `
inputs: [x]
vars: [a]
body:
  - if: x > 100
    then:
      - let: a = 1
`)

	c := table(t, caps.AVX2)

	f, err := Lower(context.Background(), s, c, nil)
	require.NoError(t, err)

	var branches int

	for _, x := range f.Exprs {
		if _, ok := x.(ir.BCond); ok {
			branches++
		}
	}

	assert.Equal(t, 1, branches)

	assert.Equal(t, "mask", f.In[0].Name)
	assert.Equal(t, c.Types().WideInt(), f.Type(f.In[1].Expr))
	assert.Equal(t, []string{"a", "mask"}, []string{f.Out[0].Name, f.Out[1].Name})
}

func TestMaskedStoresIsa(t *testing.T) {
	s := shader(t, `
inputs: [x]
vars: [a]
body:
  - if: x > 1
    then:
      - let: a = 1
`)

	count := func(c caps.Table) (n int) {
		f, err := Lower(context.Background(), s, c, nil)
		require.NoError(t, err)

		for _, x := range f.Exprs {
			if _, ok := x.(ir.MaskedStore); ok {
				n++
			}
		}

		return n
	}

	assert.Equal(t, 1, count(table(t, caps.AVX512)))
	assert.Equal(t, 0, count(table(t, caps.AVX2)))
}

func TestCheck(t *testing.T) {
	for _, tc := range []struct {
		text string
		msg  string
	}{
		{"vars: [a]\nbody:\n  - let: b = 1\n", "undefined var"},
		{"inputs: [x]\nbody:\n  - let: x = 1\n", "assignment to input"},
		{"vars: [a]\nbody:\n  - let: a = y\n", "undefined name"},
		{"vars: [a]\nbody:\n  - if: a < y\n", "undefined name"},
		{"vars: [a]\nbody:\n  - let: a = 5000000000\n", "out of int32 range"},
		{"body:\n  - break\n", "break outside a loop"},
		{"body:\n  - continue\n", "continue outside a loop"},
		{"body:\n  - call: f\n", "undefined func"},
		{"body:\n  - trace: a\n", "trace of undefined var"},
		{"vars: [a, a]\n", "redeclared"},
		{"inputs: [mask]\n", "redeclared"},
		{"funcs:\n  f: [{call: g}]\n  g: [{call: f}]\n", "recursive call"},
		{"funcs:\n  f: [{call: f}]\n", "recursive call"},
		{"vars: [a]\nfuncs:\n  f: [break]\nbody:\n  - while: a < 1\n    do: [{call: f}]\n", "break outside a loop"},
	} {
		s := shader(t, tc.text)

		err := Check(s)
		assert.ErrorContains(t, err, tc.msg, "%q", tc.text)

		_, err = Lower(context.Background(), s, table(t, caps.SSE42), nil)
		assert.Error(t, err)
	}

	s := shader(t, "funcs:\n  f: [return]\n  g: [{call: f}, {call: f}]\nbody:\n  - call: g\n  - call: f\n")
	assert.NoError(t, Check(s))
}
