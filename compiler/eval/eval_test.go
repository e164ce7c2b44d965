package eval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/wide/compiler/ir"
	"github.com/slowlang/wide/compiler/tp"
)

func TestLoopSum(t *testing.T) {
	types := tp.NewRegistry(4)
	f := &ir.Func{Name: "sum"}
	b := ir.NewBuilder(f, types)

	n := b.Arg("n", types.Int())

	i := b.Alloca(types.Int(), "i")
	s := b.Alloca(types.Int(), "s")

	zero := b.Imm(types.Int(), 0)
	one := b.Imm(types.Int(), 1)

	b.Store(zero, i)
	b.Store(zero, s)

	head := b.NewLabel()
	done := b.NewLabel()

	b.Place(head)

	iv := b.Load(i)
	b.BCond(b.Cmp(ir.Ge, iv, n), done)

	b.Store(b.Add(b.Load(s), iv), s)
	b.Store(b.Add(iv, one), i)

	b.B(head)
	b.Place(done)

	b.Output("s", b.Load(s))
	b.Ret()

	m := New(f)

	err := m.Run(context.Background(), Value{10})
	require.NoError(t, err)

	out, err := m.Outputs()
	require.NoError(t, err)

	assert.Equal(t, Value{45}, out["s"])
	assert.Greater(t, m.Steps, 50)
}

func TestWideOps(t *testing.T) {
	types := tp.NewRegistry(4)
	f := &ir.Func{Name: "wide"}
	b := ir.NewBuilder(f, types)

	x := b.Arg("x", types.WideInt())
	m := b.Arg("m", types.WideBool())

	neg := b.Sub(b.Splat(b.Imm(types.Int(), 0)), x)
	lt := b.Cmp(ir.Lt, neg, b.Splat(b.Imm(types.Int(), 0)))

	b.Output("neg", neg)
	b.Output("lt", lt)
	b.Output("sel", b.Select(m, x, neg))
	b.Output("xor", b.Xor(lt, m))
	b.Output("not", b.Not(m))
	b.Output("bits", b.Bitcast(m, types.IntN(4)))
	b.Output("wide", b.ZExt(b.Bitcast(m, types.IntN(4)), types.IntN(64)))
	b.Output("sext", b.SExt(b.Trunc(b.Extract(neg, b.Imm(types.Int(), 1)), types.IntN(8)), types.Int()))
	b.Output("cttz", b.Cttz(b.Imm(types.IntN(16), 0)))

	p := b.Alloca(types.WideInt(), "p")
	b.Store(x, p)
	b.MaskedStore(neg, p, m)
	b.Output("p", b.Load(p))

	b.Call("trace", x)
	b.Ret()

	e := New(f)

	err := e.Run(context.Background(), Value{1, 2, 3, 4}, Value{1, 0, 1, 0})
	require.NoError(t, err)

	out, err := e.Outputs()
	require.NoError(t, err)

	m32 := func(x int32) uint64 { return uint64(uint32(x)) }

	assert.Equal(t, Value{m32(-1), m32(-2), m32(-3), m32(-4)}, out["neg"])
	assert.Equal(t, Value{1, 1, 1, 1}, out["lt"])
	assert.Equal(t, Value{1, m32(-2), 3, m32(-4)}, out["sel"])
	assert.Equal(t, Value{0, 1, 0, 1}, out["xor"])
	assert.Equal(t, Value{0, 1, 0, 1}, out["not"])
	assert.Equal(t, Value{0b0101}, out["bits"])
	assert.Equal(t, Value{0b0101}, out["wide"])
	assert.Equal(t, Value{m32(-2)}, out["sext"])
	assert.Equal(t, Value{16}, out["cttz"])
	assert.Equal(t, Value{m32(-1), 2, m32(-3), 4}, out["p"])

	require.Len(t, e.Events, 1)
	assert.Equal(t, Event{Func: "trace", Args: []Value{{1, 2, 3, 4}}}, e.Events[0])
}

func TestErrors(t *testing.T) {
	types := tp.NewRegistry(4)

	t.Run("args", func(t *testing.T) {
		f := &ir.Func{}
		b := ir.NewBuilder(f, types)
		b.Arg("x", types.WideInt())

		assert.Error(t, New(f).Run(context.Background()))
		assert.Error(t, New(f).Run(context.Background(), Value{1}))
	})

	t.Run("builtin", func(t *testing.T) {
		f := &ir.Func{}
		b := ir.NewBuilder(f, types)
		b.Call("printf")

		err := New(f).Run(context.Background())
		assert.ErrorContains(t, err, "unknown builtin")
	})

	t.Run("undefined", func(t *testing.T) {
		f := &ir.Func{}
		b := ir.NewBuilder(f, types)

		skip := b.NewLabel()
		b.B(skip)
		x := b.Imm(types.Int(), 1)
		b.Place(skip)
		b.Output("x", b.Add(x, x))

		err := New(f).Run(context.Background())
		assert.ErrorContains(t, err, "undefined value")
	})

	t.Run("step_limit", func(t *testing.T) {
		f := &ir.Func{}
		b := ir.NewBuilder(f, types)

		l := b.NewLabel()
		b.Place(l)
		b.B(l)

		m := New(f)
		m.MaxSteps = 100

		err := m.Run(context.Background())
		assert.ErrorIs(t, err, ErrStepLimit)
	})

	t.Run("lane", func(t *testing.T) {
		f := &ir.Func{}
		b := ir.NewBuilder(f, types)

		i := b.Arg("i", types.Int())
		b.Extract(b.Splat(i), i)

		err := New(f).Run(context.Background(), Value{9})
		assert.ErrorContains(t, err, "out of range")
	})
}
