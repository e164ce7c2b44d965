package ir

import (
	"github.com/slowlang/wide/compiler/tp"
)

type (
	// Builder appends type-checked instructions to a Func.
	Builder struct {
		*Func

		types *tp.Registry
	}
)

func NewBuilder(f *Func, types *tp.Registry) *Builder {
	return &Builder{
		Func:  f,
		types: types,
	}
}

func (b *Builder) Types() *tp.Registry { return b.types }
func (b *Builder) Width() int          { return b.types.Width() }

func (b *Builder) Arg(name string, t tp.Type) Expr {
	id := b.add(t, Arg{Index: len(b.In), Name: name})

	b.In = append(b.In, Param{Name: name, Expr: id})

	return id
}

// Output marks x as a named result of the function.
func (b *Builder) Output(name string, x Expr) {
	b.typ(x)

	b.Out = append(b.Out, Param{Name: name, Expr: x})
}

func (b *Builder) Imm(t tp.Type, v int64) Expr {
	switch t.(type) {
	case tp.Bool:
		if v != 0 {
			v = 1
		}
	case tp.Int, tp.Float:
	default:
		Assert(false, "immediate of type %v", t)
	}

	return b.add(t, Imm(v))
}

func (b *Builder) ConstVec(t tp.Type, v []int64) Expr {
	vt, ok := t.(tp.Vector)
	Assert(ok && vt.Width == len(v), "const vector %v of %d values", t, len(v))

	c := make(ConstVec, len(v))

	for i, x := range v {
		if _, ok := vt.X.(tp.Bool); ok && x != 0 {
			x = 1
		}

		c[i] = x
	}

	return b.add(t, c)
}

func (b *Builder) Alloca(t tp.Type, name string) Expr {
	return b.add(tp.Ptr{X: t}, Alloca{Name: name})
}

func (b *Builder) Load(p Expr) Expr {
	pt := b.ptr(p)

	return b.add(pt.X, Load{Ptr: p})
}

func (b *Builder) Store(v, p Expr) {
	pt := b.ptr(p)
	vt := b.typ(v)
	Assert(vt == pt.X, "store %v to %v", vt, pt)

	b.add(nil, Store{Val: v, Ptr: p})
}

func (b *Builder) MaskedStore(v, p, m Expr) {
	pt := b.ptr(p)
	vt := b.typ(v)
	mt := b.typ(m)
	Assert(vt == pt.X, "store %v to %v", vt, pt)
	Assert(mt == boolOf(vt) && tp.Lanes(vt) > 1, "store %v under mask %v", vt, mt)

	b.add(nil, MaskedStore{Val: v, Ptr: p, Mask: m})
}

func (b *Builder) Select(c, t, f Expr) Expr {
	ct := b.typ(c)
	tt := b.typ(t)
	ft := b.typ(f)
	Assert(tt == ft, "select between %v and %v", tt, ft)
	Assert(ct == tp.Type(tp.Bool{}) || ct == boolOf(tt), "select on %v for %v", ct, tt)

	return b.add(tt, Select{Cond: c, T: t, F: f})
}

func (b *Builder) Cmp(cond Cond, l, r Expr) Expr {
	Assert(cond.Valid(), "condition %q", cond)

	lt := b.typ(l)
	rt := b.typ(r)
	Assert(lt == rt, "compare %v with %v", lt, rt)

	return b.add(boolOf(lt), Cmp{Cond: cond, L: l, R: r})
}

func (b *Builder) And(l, r Expr) Expr {
	t := b.bitwise(l, r)

	return b.add(t, And{L: l, R: r})
}

func (b *Builder) Or(l, r Expr) Expr {
	t := b.bitwise(l, r)

	return b.add(t, Or{L: l, R: r})
}

func (b *Builder) Xor(l, r Expr) Expr {
	t := b.bitwise(l, r)

	return b.add(t, Xor{L: l, R: r})
}

func (b *Builder) Not(x Expr) Expr {
	t := b.bitwise(x, x)

	return b.add(t, Not{X: x})
}

func (b *Builder) Add(l, r Expr) Expr {
	t := b.arith(l, r)

	return b.add(t, Add{L: l, R: r})
}

func (b *Builder) Sub(l, r Expr) Expr {
	t := b.arith(l, r)

	return b.add(t, Sub{L: l, R: r})
}

// Bitcast reinterprets x as t. Both must have the same number of bits.
func (b *Builder) Bitcast(x Expr, t tp.Type) Expr {
	xt := b.typ(x)
	Assert(totalBits(xt) > 0 && totalBits(xt) == totalBits(t), "bitcast %v to %v", xt, t)

	return b.add(t, Bitcast{X: x})
}

func (b *Builder) Trunc(x Expr, t tp.Type) Expr {
	xt := b.typ(x)
	Assert(tp.IsInt(xt) && tp.IsInt(t) && tp.Lanes(xt) == tp.Lanes(t) && tp.Bits(t) < tp.Bits(xt), "trunc %v to %v", xt, t)

	return b.add(t, Trunc{X: x})
}

func (b *Builder) ZExt(x Expr, t tp.Type) Expr {
	b.ext(x, t)

	return b.add(t, ZExt{X: x})
}

func (b *Builder) SExt(x Expr, t tp.Type) Expr {
	b.ext(x, t)

	return b.add(t, SExt{X: x})
}

// Splat broadcasts scalar x to every lane.
func (b *Builder) Splat(x Expr) Expr {
	xt := b.typ(x)
	Assert(tp.Lanes(xt) == 1, "splat of %v", xt)

	return b.add(b.types.Wide(xt), Splat{X: x})
}

func (b *Builder) Extract(x, lane Expr) Expr {
	xt := b.typ(x)
	lt := b.typ(lane)

	vt, ok := xt.(tp.Vector)
	Assert(ok, "extract from %v", xt)
	Assert(tp.IsInt(lt) && tp.Lanes(lt) == 1, "lane index of type %v", lt)

	if imm, ok := b.Exprs[lane].(Imm); ok {
		Assert(imm >= 0 && int(imm) < vt.Width, "lane %d of %v", imm, xt)
	}

	return b.add(vt.X, Extract{X: x, Lane: lane})
}

func (b *Builder) Cttz(x Expr) Expr {
	xt := b.typ(x)
	Assert(tp.IsInt(xt) && tp.Lanes(xt) == 1, "cttz of %v", xt)

	return b.add(xt, Cttz{X: x})
}

func (b *Builder) NewLabel() Label {
	l := Label(b.Labels)
	b.Labels++

	return l
}

// Place binds l to the current emission point.
func (b *Builder) Place(l Label) {
	Assert(l >= 0 && int(l) < b.Labels, "label %d not allocated", l)

	b.add(nil, l)
}

func (b *Builder) B(l Label) {
	b.add(nil, B{Label: l})
}

func (b *Builder) BCond(c Expr, l Label) {
	ct := b.typ(c)
	Assert(ct == tp.Type(tp.Bool{}), "branch on %v", ct)

	b.add(nil, BCond{Expr: c, Label: l})
}

func (b *Builder) Call(name string, args ...Expr) {
	for _, a := range args {
		b.typ(a)
	}

	b.add(nil, Call{Func: name, In: args})
}

func (b *Builder) Ret() {
	b.add(nil, Ret{})
}

func (b *Builder) add(t tp.Type, x any) Expr {
	id := Expr(len(b.Exprs))

	b.Exprs = append(b.Exprs, x)
	b.EType = append(b.EType, t)

	return id
}

func (b *Builder) typ(x Expr) tp.Type {
	Assert(x >= 0 && int(x) < len(b.Exprs), "expr %d out of range", x)

	t := b.EType[x]
	Assert(t != nil, "expr %d (%T) has no value", x, b.Exprs[x])

	return t
}

func (b *Builder) ptr(p Expr) tp.Ptr {
	t := b.typ(p)

	pt, ok := t.(tp.Ptr)
	Assert(ok, "address of type %v", t)

	return pt
}

func (b *Builder) bitwise(l, r Expr) tp.Type {
	lt := b.typ(l)
	rt := b.typ(r)
	Assert(lt == rt, "bitwise op on %v and %v", lt, rt)
	Assert(tp.IsBool(lt) || tp.IsInt(lt), "bitwise op on %v", lt)

	return lt
}

func (b *Builder) arith(l, r Expr) tp.Type {
	lt := b.typ(l)
	rt := b.typ(r)
	Assert(lt == rt && tp.IsInt(lt), "arith op on %v and %v", lt, rt)

	return lt
}

func (b *Builder) ext(x Expr, t tp.Type) {
	xt := b.typ(x)
	Assert(tp.IsBool(xt) || tp.IsInt(xt), "extend %v", xt)
	Assert(tp.IsInt(t) && tp.Lanes(xt) == tp.Lanes(t) && tp.Bits(t) > tp.Bits(xt), "extend %v to %v", xt, t)
}

func boolOf(t tp.Type) tp.Type {
	if v, ok := t.(tp.Vector); ok {
		return tp.Vector{X: tp.Bool{}, Width: v.Width}
	}

	return tp.Bool{}
}

func totalBits(t tp.Type) int {
	return tp.Lanes(t) * tp.Bits(t)
}
