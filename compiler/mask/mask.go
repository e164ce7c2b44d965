package mask

import (
	"github.com/slowlang/wide/compiler/caps"
	"github.com/slowlang/wide/compiler/ir"
	"github.com/slowlang/wide/compiler/tp"
)

type (
	// Emitter is the instruction emission service masks are built with.
	Emitter interface {
		Types() *tp.Registry
		Type(x ir.Expr) tp.Type

		Imm(t tp.Type, v int64) ir.Expr
		ConstVec(t tp.Type, v []int64) ir.Expr
		Splat(x ir.Expr) ir.Expr
		Select(c, t, f ir.Expr) ir.Expr
		Cmp(cond ir.Cond, l, r ir.Expr) ir.Expr
		And(l, r ir.Expr) ir.Expr
		Or(l, r ir.Expr) ir.Expr
		Not(x ir.Expr) ir.Expr
		Bitcast(x ir.Expr, t tp.Type) ir.Expr
		Trunc(x ir.Expr, t tp.Type) ir.Expr
		ZExt(x ir.Expr, t tp.Type) ir.Expr
		Extract(x, lane ir.Expr) ir.Expr
		Cttz(x ir.Expr) ir.Expr
	}

	// Algebra derives new lane masks. It never touches generation state
	// other than appending instructions.
	Algebra struct {
		e      Emitter
		types  *tp.Registry
		w      int
		native bool
	}
)

func New(e Emitter, c caps.Table) Algebra {
	types := e.Types()
	ir.Assert(types.Width() == c.Width, "emitter width %d, capabilities width %d", types.Width(), c.Width)

	return Algebra{
		e:      e,
		types:  types,
		w:      c.Width,
		native: c.NativeBitMasks,
	}
}

func (a Algebra) Width() int { return a.w }

// IntType is the scalar a mask crosses an ABI boundary as.
func (a Algebra) IntType() tp.Type {
	if a.w > 32 {
		return tp.Int{Bits: 64}
	}

	return tp.Int{Bits: 32}
}

func (a Algebra) Const(v bool) ir.Expr {
	c := make([]int64, a.w)

	if v {
		for i := range c {
			c[i] = 1
		}
	}

	return a.e.ConstVec(a.types.WideBool(), c)
}

func (a Algebra) Splat(x ir.Expr) ir.Expr {
	return a.e.Splat(x)
}

func (a Algebra) Negate(m ir.Expr) ir.Expr {
	a.check(m)

	return a.e.Not(m)
}

func (a Algebra) Blend(c, t, f ir.Expr) ir.Expr {
	a.check(c)

	return a.e.Select(c, t, f)
}

// ToInt packs m into a dense bitmask, lane i at bit i.
func (a Algebra) ToInt(m ir.Expr) ir.Expr {
	a.check(m)

	if a.native {
		return a.resize(a.bits(m), a.IntType())
	}

	it := a.IntType()
	filter := a.laneFilter(it)
	zero := a.e.ConstVec(a.types.Wide(it), make([]int64, a.w))

	sel := a.e.Select(m, filter, zero)

	acc := a.e.Extract(sel, a.lane(0))

	for l := 1; l < a.w; l++ {
		acc = a.e.Or(acc, a.e.Extract(sel, a.lane(l)))
	}

	return acc
}

// FromInt unpacks a dense bitmask produced by ToInt.
func (a Algebra) FromInt(x ir.Expr) ir.Expr {
	it := a.IntType()
	ir.Assert(a.e.Type(x) == it, "bitmask of type %v, want %v", a.e.Type(x), it)

	if a.native {
		bits := a.resize(x, a.types.IntN(a.w))

		return a.e.Bitcast(bits, a.types.WideBool())
	}

	wide := a.e.Splat(x)
	filtered := a.e.And(wide, a.laneFilter(it))
	zero := a.e.ConstVec(a.types.Wide(it), make([]int64, a.w))

	return a.e.Cmp(ir.Ne, filtered, zero)
}

func (a Algebra) AnyActive(m ir.Expr) ir.Expr {
	return a.e.Cmp(ir.Ne, a.bits(m), a.allOff())
}

func (a Algebra) NoneActive(m ir.Expr) ir.Expr {
	return a.e.Cmp(ir.Eq, a.bits(m), a.allOff())
}

func (a Algebra) AllActive(m ir.Expr) ir.Expr {
	return a.e.Cmp(ir.Eq, a.bits(m), a.allOn())
}

// AnyOnOrOff computes both reductions from one reinterpretation of m.
func (a Algebra) AnyOnOrOff(m ir.Expr) (anyOn, anyOff ir.Expr) {
	bits := a.bits(m)

	anyOn = a.e.Cmp(ir.Ne, bits, a.allOff())
	anyOff = a.e.Cmp(ir.Ne, bits, a.allOn())

	return anyOn, anyOff
}

// FirstActiveLane is undefined for an empty mask.
func (a Algebra) FirstActiveLane(m ir.Expr) ir.Expr {
	n := a.e.Cttz(a.bits(m))

	return a.resize(n, a.types.Int())
}

func (a Algebra) TestLane(m ir.Expr, lane int) ir.Expr {
	a.check(m)

	return a.e.Extract(m, a.lane(lane))
}

// ClearLane turns off the lane with the given runtime index.
func (a Algebra) ClearLane(m, lane ir.Expr) ir.Expr {
	a.check(m)

	idx := make([]int64, a.w)
	for i := range idx {
		idx[i] = int64(i)
	}

	index := a.e.ConstVec(a.types.WideInt(), idx)
	eq := a.e.Cmp(ir.Eq, index, a.e.Splat(lane))

	return a.e.Select(eq, a.Const(false), m)
}

// LanesThatMatch returns the lanes of m where wide equals uniform scalar.
func (a Algebra) LanesThatMatch(scalar, wide, m ir.Expr) ir.Expr {
	a.check(m)

	eq := a.e.Cmp(ir.Eq, a.e.Splat(scalar), wide)

	return a.e.And(eq, m)
}

func (a Algebra) bits(m ir.Expr) ir.Expr {
	a.check(m)

	return a.e.Bitcast(m, a.types.IntN(a.w))
}

func (a Algebra) allOff() ir.Expr {
	return a.e.Imm(a.types.IntN(a.w), 0)
}

func (a Algebra) allOn() ir.Expr {
	return a.e.Imm(a.types.IntN(a.w), int64(^uint64(0)>>(64-a.w)))
}

func (a Algebra) laneFilter(it tp.Type) ir.Expr {
	f := make([]int64, a.w)
	for i := range f {
		f[i] = int64(uint64(1) << i)
	}

	return a.e.ConstVec(a.types.Wide(it), f)
}

func (a Algebra) lane(l int) ir.Expr {
	return a.e.Imm(a.types.Int(), int64(l))
}

func (a Algebra) resize(x ir.Expr, t tp.Type) ir.Expr {
	xt := a.e.Type(x)

	switch from, to := tp.Bits(xt), tp.Bits(t); {
	case from < to:
		return a.e.ZExt(x, t)
	case from > to:
		return a.e.Trunc(x, t)
	case xt != t:
		return a.e.Bitcast(x, t)
	}

	return x
}

func (a Algebra) check(m ir.Expr) {
	t := a.e.Type(m)
	ir.Assert(t == a.types.WideBool(), "mask of type %v, want %v", t, a.types.WideBool())
}
