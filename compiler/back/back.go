package back

import (
	"context"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/wide/compiler/ir"
	"github.com/slowlang/wide/compiler/tp"
)

type (
	// Compiler prints generated functions as an assembly-like listing.
	Compiler struct {
		// Comments adds the names of allocated cells.
		Comments bool
	}
)

func New() *Compiler { return &Compiler{Comments: true} }

func (c *Compiler) CompilePackage(ctx context.Context, b []byte, p *ir.Package) (_ []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile_package", "path", p.Path, "funcs", len(p.Funcs))
	defer tr.Finish("err", &err)

	b = hfmt.Appendf(b, "// package %s\n", p.Path)

	for _, f := range p.Funcs {
		b = append(b, '\n')

		b, err = c.CompileFunc(ctx, b, f)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}
	}

	return b, nil
}

func (c *Compiler) CompileFunc(ctx context.Context, b []byte, f *ir.Func) (_ []byte, err error) {
	tr := tlog.SpanFromContext(ctx)

	if tr.If("dump_func") {
		tr.Printw("func", "name", f.Name, "in", f.In, "out", f.Out, "exprs", len(f.Exprs), "labels", f.Labels)
	}

	if len(f.Exprs) != len(f.EType) {
		return nil, errors.New("broken func: %d exprs, %d types", len(f.Exprs), len(f.EType))
	}

	b = hfmt.Appendf(b, "func %s(", f.Name)

	for i, p := range f.In {
		if i != 0 {
			b = append(b, ", "...)
		}

		b = hfmt.Appendf(b, "%%%d %s: %v", p.Expr, p.Name, f.Type(p.Expr))
	}

	b = append(b, ") {\n"...)

	for id, x := range f.Exprs {
		if l, ok := x.(ir.Label); ok {
			b = hfmt.Appendf(b, "L%d:\n", l)
			continue
		}

		if _, ok := x.(ir.Arg); ok {
			continue
		}

		b = append(b, '\t')

		if t := f.EType[id]; t != nil {
			b = hfmt.Appendf(b, "%%%d = ", id)
		}

		b, err = c.instr(b, f, ir.Expr(id), x)
		if err != nil {
			return nil, errors.Wrap(err, "expr %d", id)
		}

		b = append(b, '\n')

		if tr.If("dump_code") {
			tr.Printw("code", "id", id, "type", f.EType[id], "x_type", tlog.FormatNext("%T"), x, "x", x)
		}
	}

	for _, p := range f.Out {
		b = hfmt.Appendf(b, "\t// out %s = %%%d\n", p.Name, p.Expr)
	}

	b = append(b, "}\n"...)

	return b, nil
}

func (c *Compiler) instr(b []byte, f *ir.Func, id ir.Expr, x any) ([]byte, error) {
	t := f.EType[id]

	switch x := x.(type) {
	case ir.Imm:
		b = hfmt.Appendf(b, "imm %v %d", t, int64(x))
	case ir.ConstVec:
		b = hfmt.Appendf(b, "const %v <", t)

		for i, v := range x {
			if i != 0 {
				b = append(b, ", "...)
			}

			b = hfmt.Appendf(b, "%d", v)
		}

		b = append(b, '>')
	case ir.Alloca:
		b = hfmt.Appendf(b, "alloca %v", t.(tp.Ptr).X)

		if c.Comments {
			b = hfmt.Appendf(b, "\t// %s", x.Name)
		}
	case ir.Load:
		b = hfmt.Appendf(b, "load %v, %%%d", t, x.Ptr)
	case ir.Store:
		b = hfmt.Appendf(b, "store %v %%%d, %%%d", f.Type(x.Val), x.Val, x.Ptr)
	case ir.MaskedStore:
		b = hfmt.Appendf(b, "masked_store %v %%%d, %%%d, mask %%%d", f.Type(x.Val), x.Val, x.Ptr, x.Mask)
	case ir.Select:
		b = hfmt.Appendf(b, "select %v %%%d, %%%d, %%%d", f.Type(x.Cond), x.Cond, x.T, x.F)
	case ir.Cmp:
		b = hfmt.Appendf(b, "cmp %s %v %%%d, %%%d", cmpName(x.Cond), f.Type(x.L), x.L, x.R)
	case ir.And:
		b = binary(b, "and", t, x.L, x.R)
	case ir.Or:
		b = binary(b, "or", t, x.L, x.R)
	case ir.Xor:
		b = binary(b, "xor", t, x.L, x.R)
	case ir.Add:
		b = binary(b, "add", t, x.L, x.R)
	case ir.Sub:
		b = binary(b, "sub", t, x.L, x.R)
	case ir.Not:
		b = hfmt.Appendf(b, "not %v %%%d", t, x.X)
	case ir.Bitcast:
		b = conv(b, "bitcast", f, x.X, t)
	case ir.Trunc:
		b = conv(b, "trunc", f, x.X, t)
	case ir.ZExt:
		b = conv(b, "zext", f, x.X, t)
	case ir.SExt:
		b = conv(b, "sext", f, x.X, t)
	case ir.Splat:
		b = conv(b, "splat", f, x.X, t)
	case ir.Extract:
		b = hfmt.Appendf(b, "extract %v %%%d, %%%d", f.Type(x.X), x.X, x.Lane)
	case ir.Cttz:
		b = hfmt.Appendf(b, "cttz %v %%%d", t, x.X)
	case ir.B:
		b = hfmt.Appendf(b, "b L%d", x.Label)
	case ir.BCond:
		b = hfmt.Appendf(b, "bcond %%%d, L%d", x.Expr, x.Label)
	case ir.Call:
		b = hfmt.Appendf(b, "call %s(", x.Func)

		for i, a := range x.In {
			if i != 0 {
				b = append(b, ", "...)
			}

			b = hfmt.Appendf(b, "%%%d", a)
		}

		b = append(b, ')')
	case ir.Ret:
		b = append(b, "ret"...)
	default:
		return nil, errors.New("unsupported instruction: %T", x)
	}

	return b, nil
}

func binary(b []byte, op string, t any, l, r ir.Expr) []byte {
	return hfmt.Appendf(b, "%s %v %%%d, %%%d", op, t, l, r)
}

func conv(b []byte, op string, f *ir.Func, x ir.Expr, to any) []byte {
	return hfmt.Appendf(b, "%s %v %%%d to %v", op, f.Type(x), x, to)
}

func cmpName(c ir.Cond) string {
	switch c {
	case ir.Eq:
		return "eq"
	case ir.Ne:
		return "ne"
	case ir.Lt:
		return "slt"
	case ir.Le:
		return "sle"
	case ir.Gt:
		return "sgt"
	case ir.Ge:
		return "sge"
	}

	return string(c)
}
