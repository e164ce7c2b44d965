package eval

import (
	"context"
	"math"
	"math/bits"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/wide/compiler/ir"
	"github.com/slowlang/wide/compiler/tp"
)

type (
	// Value holds one element per lane, scalars have one.
	// Ints are zero-extended to 64 bits, floats are kept as raw bits.
	Value []uint64

	Event struct {
		Func string
		Args []Value
	}

	// Machine executes a Func. Cells are addressed by the Alloca producing them.
	Machine struct {
		f *ir.Func

		vals   []Value
		cells  map[ir.Expr]Value
		labels []int

		Builtins map[string]bool
		Events   []Event

		Steps    int
		MaxSteps int
	}
)

const DefaultMaxSteps = 1 << 20

var ErrStepLimit = errors.New("step limit exceeded")

func New(f *ir.Func) *Machine {
	return &Machine{
		f:        f,
		Builtins: map[string]bool{"trace": true},
		MaxSteps: DefaultMaxSteps,
	}
}

// Run executes f from the start with the given arguments.
func (m *Machine) Run(ctx context.Context, args ...Value) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "eval", "func", m.f.Name, "args", len(args))
	defer tr.Finish("err", &err)

	if len(args) != len(m.f.In) {
		return errors.New("%d args, want %d", len(args), len(m.f.In))
	}

	m.vals = make([]Value, len(m.f.Exprs))
	m.cells = map[ir.Expr]Value{}
	m.Events = m.Events[:0]
	m.Steps = 0

	m.labels = make([]int, m.f.Labels)
	for i := range m.labels {
		m.labels[i] = -1
	}

	for i, x := range m.f.Exprs {
		if l, ok := x.(ir.Label); ok {
			m.labels[l] = i
		}
	}

	for pc := 0; pc < len(m.f.Exprs); {
		m.Steps++
		if m.MaxSteps != 0 && m.Steps > m.MaxSteps {
			return errors.Wrap(ErrStepLimit, "at %d", pc)
		}

		next, err := m.step(pc, args)
		if err != nil {
			return errors.Wrap(err, "expr %d (%T)", pc, m.f.Exprs[pc])
		}

		if tr.If("eval_trace") && m.vals[pc] != nil {
			tr.Printw("value", "id", pc, "type", m.f.EType[pc], "val", m.vals[pc])
		}

		pc = next
	}

	return nil
}

// Value returns the last value computed by x.
func (m *Machine) Value(x ir.Expr) (Value, bool) {
	if x < 0 || int(x) >= len(m.vals) || m.vals[x] == nil {
		return nil, false
	}

	return m.vals[x], true
}

// Cell returns the contents of the cell allocated by p.
func (m *Machine) Cell(p ir.Expr) (Value, bool) {
	v, ok := m.cells[p]

	return v, ok
}

func (m *Machine) Outputs() (map[string]Value, error) {
	r := make(map[string]Value, len(m.f.Out))

	for _, o := range m.f.Out {
		v, ok := m.Value(o.Expr)
		if !ok {
			return nil, errors.New("output %v is undefined", o.Name)
		}

		r[o.Name] = v
	}

	return r, nil
}

func (m *Machine) step(pc int, args []Value) (next int, err error) {
	id := ir.Expr(pc)
	t := m.f.EType[pc]
	next = pc + 1

	var r Value

	switch x := m.f.Exprs[pc].(type) {
	case ir.Arg:
		a := args[x.Index]
		if len(a) != tp.Lanes(t) {
			return 0, errors.New("arg %v: %d lanes, want %d", x.Name, len(a), tp.Lanes(t))
		}

		r = make(Value, len(a))
		for i, v := range a {
			r[i] = norm(t, v)
		}
	case ir.Imm:
		r = Value{norm(t, uint64(x))}
	case ir.ConstVec:
		r = make(Value, len(x))
		for i, v := range x {
			r[i] = norm(t, uint64(v))
		}
	case ir.Alloca:
		if _, ok := m.cells[id]; !ok {
			m.cells[id] = make(Value, tp.Lanes(t.(tp.Ptr).X))
		}

		r = Value{uint64(id)}
	case ir.Load:
		c, err := m.cell(x.Ptr)
		if err != nil {
			return 0, err
		}

		r = append(Value{}, c...)
	case ir.Store:
		c, err := m.cell(x.Ptr)
		if err != nil {
			return 0, err
		}

		v, err := m.get(x.Val)
		if err != nil {
			return 0, err
		}

		copy(c, v)
	case ir.MaskedStore:
		c, err := m.cell(x.Ptr)
		if err != nil {
			return 0, err
		}

		v, mask, err := m.get2(x.Val, x.Mask)
		if err != nil {
			return 0, err
		}

		for i := range c {
			if mask[i] != 0 {
				c[i] = v[i]
			}
		}
	case ir.Select:
		c, err := m.get(x.Cond)
		if err != nil {
			return 0, err
		}

		a, b, err := m.get2(x.T, x.F)
		if err != nil {
			return 0, err
		}

		r = make(Value, len(a))
		for i := range r {
			ci := c[0]
			if len(c) > 1 {
				ci = c[i]
			}

			if ci != 0 {
				r[i] = a[i]
			} else {
				r[i] = b[i]
			}
		}
	case ir.Cmp:
		a, b, err := m.get2(x.L, x.R)
		if err != nil {
			return 0, err
		}

		et := tp.Elem(m.f.EType[x.L])

		r = make(Value, len(a))
		for i := range r {
			ok, err := compare(et, x.Cond, a[i], b[i])
			if err != nil {
				return 0, err
			}

			if ok {
				r[i] = 1
			}
		}
	case ir.And:
		r, err = m.binary(t, x.L, x.R, func(a, b uint64) uint64 { return a & b })
	case ir.Or:
		r, err = m.binary(t, x.L, x.R, func(a, b uint64) uint64 { return a | b })
	case ir.Xor:
		r, err = m.binary(t, x.L, x.R, func(a, b uint64) uint64 { return a ^ b })
	case ir.Add:
		r, err = m.binary(t, x.L, x.R, func(a, b uint64) uint64 { return a + b })
	case ir.Sub:
		r, err = m.binary(t, x.L, x.R, func(a, b uint64) uint64 { return a - b })
	case ir.Not:
		r, err = m.binary(t, x.X, x.X, func(a, _ uint64) uint64 { return ^a })
	case ir.Bitcast:
		a, err := m.get(x.X)
		if err != nil {
			return 0, err
		}

		r = bitcast(m.f.EType[x.X], t, a)
	case ir.Trunc, ir.ZExt:
		var src ir.Expr
		if tr, ok := x.(ir.Trunc); ok {
			src = tr.X
		} else {
			src = x.(ir.ZExt).X
		}

		a, err := m.get(src)
		if err != nil {
			return 0, err
		}

		r = make(Value, len(a))
		for i, v := range a {
			r[i] = norm(t, v)
		}
	case ir.SExt:
		a, err := m.get(x.X)
		if err != nil {
			return 0, err
		}

		from := tp.Bits(m.f.EType[x.X])

		r = make(Value, len(a))
		for i, v := range a {
			r[i] = norm(t, uint64(signed(from, v)))
		}
	case ir.Splat:
		a, err := m.get(x.X)
		if err != nil {
			return 0, err
		}

		r = make(Value, tp.Lanes(t))
		for i := range r {
			r[i] = a[0]
		}
	case ir.Extract:
		a, l, err := m.get2(x.X, x.Lane)
		if err != nil {
			return 0, err
		}

		lane := signed(tp.Bits(m.f.EType[x.Lane]), l[0])
		if lane < 0 || lane >= int64(len(a)) {
			return 0, errors.New("lane %d out of range %d", lane, len(a))
		}

		r = Value{a[lane]}
	case ir.Cttz:
		a, err := m.get(x.X)
		if err != nil {
			return 0, err
		}

		n := tp.Bits(t)
		if z := bits.TrailingZeros64(a[0]); z < n {
			n = z
		}

		r = Value{uint64(n)}
	case ir.Label:
	case ir.B:
		next, err = m.jump(x.Label)
	case ir.BCond:
		c, err := m.get(x.Expr)
		if err != nil {
			return 0, err
		}

		if c[0] != 0 {
			return m.jump(x.Label)
		}
	case ir.Call:
		if !m.Builtins[x.Func] {
			return 0, errors.New("unknown builtin: %v", x.Func)
		}

		ev := Event{Func: x.Func}

		for _, a := range x.In {
			v, err := m.get(a)
			if err != nil {
				return 0, err
			}

			ev.Args = append(ev.Args, append(Value{}, v...))
		}

		m.Events = append(m.Events, ev)
	case ir.Ret:
		next = len(m.f.Exprs)
	default:
		return 0, errors.New("unsupported instruction: %T", x)
	}

	if err != nil {
		return 0, err
	}

	m.vals[pc] = r

	return next, nil
}

func (m *Machine) get(x ir.Expr) (Value, error) {
	v, ok := m.Value(x)
	if !ok {
		return nil, errors.New("use of undefined value %d", x)
	}

	return v, nil
}

func (m *Machine) get2(x, y ir.Expr) (a, b Value, err error) {
	a, err = m.get(x)
	if err != nil {
		return
	}

	b, err = m.get(y)

	return
}

func (m *Machine) cell(p ir.Expr) (Value, error) {
	a, err := m.get(p)
	if err != nil {
		return nil, err
	}

	c, ok := m.cells[ir.Expr(a[0])]
	if !ok {
		return nil, errors.New("no cell at %d", a[0])
	}

	return c, nil
}

func (m *Machine) binary(t tp.Type, x, y ir.Expr, f func(a, b uint64) uint64) (Value, error) {
	a, b, err := m.get2(x, y)
	if err != nil {
		return nil, err
	}

	r := make(Value, len(a))
	for i := range r {
		r[i] = norm(t, f(a[i], b[i]))
	}

	return r, nil
}

func (m *Machine) jump(l ir.Label) (int, error) {
	if int(l) >= len(m.labels) || m.labels[l] < 0 {
		return 0, errors.New("label %d is not placed", l)
	}

	return m.labels[l], nil
}

func norm(t tp.Type, v uint64) uint64 {
	switch t := tp.Elem(t).(type) {
	case tp.Bool:
		return v & 1
	case tp.Int:
		if t.Bits < 64 {
			return v & (1<<t.Bits - 1)
		}
	case tp.Float:
		if t.Bits == 32 {
			return v & math.MaxUint32
		}
	}

	return v
}

func signed(n int, v uint64) int64 {
	if n >= 64 || n == 0 {
		return int64(v)
	}

	sh := 64 - n

	return int64(v<<sh) >> sh
}

func compare(t tp.Type, c ir.Cond, a, b uint64) (bool, error) {
	var r int

	switch t := t.(type) {
	case tp.Int:
		if t.Signed {
			r = cmp3(signed(int(t.Bits), a), signed(int(t.Bits), b))
		} else {
			r = cmp3(a, b)
		}
	case tp.Float:
		var x, y float64

		if t.Bits == 32 {
			x, y = float64(math.Float32frombits(uint32(a))), float64(math.Float32frombits(uint32(b)))
		} else {
			x, y = math.Float64frombits(a), math.Float64frombits(b)
		}

		if math.IsNaN(x) || math.IsNaN(y) {
			return c == ir.Ne, nil
		}

		r = cmp3(x, y)
	default:
		r = cmp3(a, b)
	}

	switch c {
	case ir.Eq:
		return r == 0, nil
	case ir.Ne:
		return r != 0, nil
	case ir.Lt:
		return r < 0, nil
	case ir.Le:
		return r <= 0, nil
	case ir.Gt:
		return r > 0, nil
	case ir.Ge:
		return r >= 0, nil
	}

	return false, errors.New("unsupported condition: %q", c)
}

func cmp3[T int64 | uint64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}

	return 0
}

// bitcast packs the lanes of a into a bit string and unpacks it as t.
func bitcast(from, to tp.Type, a Value) Value {
	fb := tp.Bits(from)
	tb := tp.Bits(to)

	buf := make([]uint64, (len(a)*fb+63)/64)

	for i, v := range a {
		for j := 0; j < fb; j++ {
			if v&(1<<j) != 0 {
				p := i*fb + j
				buf[p/64] |= 1 << (p % 64)
			}
		}
	}

	r := make(Value, tp.Lanes(to))

	for i := range r {
		for j := 0; j < tb; j++ {
			p := i*tb + j

			if buf[p/64]&(1<<(p%64)) != 0 {
				r[i] |= 1 << j
			}
		}
	}

	return r
}
