package compiler

import (
	"context"
	"os"
	"sort"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/wide/compiler/arena"
	"github.com/slowlang/wide/compiler/ast"
	"github.com/slowlang/wide/compiler/back"
	"github.com/slowlang/wide/compiler/caps"
	"github.com/slowlang/wide/compiler/eval"
	"github.com/slowlang/wide/compiler/front"
	"github.com/slowlang/wide/compiler/ir"
	"github.com/slowlang/wide/compiler/lanes"
	"github.com/slowlang/wide/compiler/parse"
	"github.com/slowlang/wide/compiler/scalar"
)

type (
	Program struct {
		Shader *ast.Shader
		Func   *ir.Func
		Caps   caps.Table
	}

	// Result holds per-lane outcomes of the masked code and of the reference.
	Result struct {
		Active lanes.Set

		Masked    []scalar.Lane
		Reference []scalar.Lane
	}

	Mismatch struct {
		Lane int
		What string

		Masked, Reference any
	}

	MismatchError []Mismatch
)

func CompileFile(ctx context.Context, name string, c caps.Table) (p *Program, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, name, text, c)
}

func Compile(ctx context.Context, name string, text []byte, c caps.Table) (p *Program, err error) {
	s, err := parse.Parse(ctx, name, text)
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}

	h := arena.Acquire(c.Width)
	defer h.Release()

	// f keeps h.Types after release, the registry is immutable.
	f, err := front.Lower(ctx, s, c, h.Types)
	if err != nil {
		return nil, errors.Wrap(err, "lower")
	}

	return &Program{
		Shader: s,
		Func:   f,
		Caps:   c,
	}, nil
}

// Listing prints the generated code.
func (p *Program) Listing(ctx context.Context, b []byte) ([]byte, error) {
	h := arena.Acquire(p.Caps.Width)
	defer h.Release()

	h.Package.Path = p.Shader.Name
	h.Package.Funcs = append(h.Package.Funcs, p.Func)

	b = append(b, "// isa "...)
	b = append(b, p.Caps.ISA...)
	b = append(b, '\n')

	return back.New().CompilePackage(ctx, b, h.Package)
}

// Run executes the masked code for the active lanes and the reference
// for each of them. Missing inputs and lanes are zero.
// A MismatchError is returned if they disagree.
func (p *Program) Run(ctx context.Context, inputs map[string][]int32, active lanes.Set) (r *Result, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "run", "shader", p.Shader.Name, "active", active)
	defer tr.Finish("err", &err)

	w := p.Caps.Width

	if active.Width() != w {
		return nil, errors.New("active lanes of width %d, want %d", active.Width(), w)
	}

	for n, v := range inputs {
		if !p.Shader.IsInput(n) {
			return nil, errors.New("unknown input: %v", n)
		}

		if len(v) > w {
			return nil, errors.New("input %v: %d values for %d lanes", n, len(v), w)
		}
	}

	args := []eval.Value{{active.Bits()}}

	for _, n := range p.Shader.Inputs {
		v := make(eval.Value, w)

		for i, x := range inputs[n] {
			v[i] = uint64(uint32(x))
		}

		args = append(args, v)
	}

	m := eval.New(p.Func)

	err = m.Run(ctx, args...)
	if err != nil {
		return nil, errors.Wrap(err, "eval")
	}

	r = &Result{Active: active}

	r.Masked, err = p.unpack(m)
	if err != nil {
		return nil, errors.Wrap(err, "outputs")
	}

	r.Reference = make([]scalar.Lane, w)

	for lane := 0; lane < w; lane++ {
		if !active.IsSet(lane) {
			r.Reference[lane] = p.idle()
			continue
		}

		in := map[string]int32{}

		for n, v := range inputs {
			if lane < len(v) {
				in[n] = v[lane]
			}
		}

		r.Reference[lane], err = scalar.Run(ctx, p.Shader, in, 0)
		if err != nil {
			return nil, errors.Wrap(err, "reference lane %d", lane)
		}
	}

	if d := r.Diff(); len(d) != 0 {
		return r, d
	}

	return r, nil
}

func (p *Program) unpack(m *eval.Machine) ([]scalar.Lane, error) {
	out, err := m.Outputs()
	if err != nil {
		return nil, err
	}

	w := p.Caps.Width
	live := lanes.FromBits(w, out["mask"][0])

	r := make([]scalar.Lane, w)

	for lane := range r {
		r[lane] = p.idle()
		r[lane].Live = live.IsSet(lane)

		for _, n := range p.Shader.Vars {
			r[lane].Vars[n] = int32(uint32(out[n][lane]))
		}
	}

	for _, ev := range m.Events {
		if ev.Func != front.TraceFunc {
			continue
		}

		if len(ev.Args) != 3 {
			return nil, errors.New("trace event with %d args", len(ev.Args))
		}

		v := int(ev.Args[0][0])
		lane := int(ev.Args[1][0])

		if v >= len(p.Shader.Vars) || lane >= w {
			return nil, errors.New("trace event out of range: var %d lane %d", v, lane)
		}

		r[lane].Trace = append(r[lane].Trace, scalar.Trace{
			Var:   p.Shader.Vars[v],
			Value: int32(uint32(ev.Args[2][0])),
		})
	}

	return r, nil
}

func (p *Program) idle() scalar.Lane {
	l := scalar.Lane{Vars: make(map[string]int32, len(p.Shader.Vars))}

	for _, n := range p.Shader.Vars {
		l.Vars[n] = 0
	}

	return l
}

// Diff compares masked and reference lanes.
func (r *Result) Diff() (d MismatchError) {
	for lane := range r.Masked {
		m, x := r.Masked[lane], r.Reference[lane]

		if m.Live != x.Live {
			d = append(d, Mismatch{Lane: lane, What: "live", Masked: m.Live, Reference: x.Live})
		}

		names := make([]string, 0, len(x.Vars))
		for n := range x.Vars {
			names = append(names, n)
		}

		sort.Strings(names)

		for _, n := range names {
			if m.Vars[n] != x.Vars[n] {
				d = append(d, Mismatch{Lane: lane, What: n, Masked: m.Vars[n], Reference: x.Vars[n]})
			}
		}

		if !sameTrace(m.Trace, x.Trace) {
			d = append(d, Mismatch{Lane: lane, What: "trace", Masked: m.Trace, Reference: x.Trace})
		}
	}

	return d
}

func (e MismatchError) Error() string {
	if len(e) == 0 {
		return "no mismatch"
	}

	m := e[0]

	err := errors.New("lane %d: %v: masked %v, reference %v", m.Lane, m.What, m.Masked, m.Reference)
	if len(e) > 1 {
		err = errors.Wrap(err, "%d mismatches", len(e))
	}

	return err.Error()
}

func sameTrace(a, b []scalar.Trace) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
