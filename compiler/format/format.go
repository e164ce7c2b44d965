// Package format prints a shader back as its canonical yaml description.
package format

import (
	"context"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/wide/compiler/ast"
)

func Format(ctx context.Context, b []byte, x any) ([]byte, error) {
	return format(ctx, b, x, 0)
}

func format(ctx context.Context, b []byte, x any, d int) ([]byte, error) {
	switch x := x.(type) {
	case *ast.Shader:
		return formatShader(ctx, b, x, d)
	case []ast.Stmt:
		return formatBlock(ctx, b, x, d)
	default:
		return nil, errors.New("unsupported type: %T", x)
	}
}

func formatShader(ctx context.Context, b []byte, x *ast.Shader, d int) (_ []byte, err error) {
	tr := tlog.SpanFromContext(ctx)

	if x.Name != "" {
		b = app(b, d, "name: %s\n", x.Name)
	}

	if len(x.Inputs) != 0 {
		b = list(app(b, d, "inputs: "), x.Inputs)
	}

	if len(x.Vars) != 0 {
		b = list(app(b, d, "vars: "), x.Vars)
	}

	if len(x.Funcs) != 0 {
		b = app(b, d, "funcs:\n")
	}

	for _, f := range x.Funcs {
		b = app(b, d+1, "%s:\n", f.Name)

		b, err = formatBody(ctx, b, f.Body, d+2)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}
	}

	b = app(b, d, "body:")

	b, err = formatBody(ctx, b, x.Body, d+1)
	if err != nil {
		return nil, errors.Wrap(err, "body")
	}

	if tr.If("dump_format") {
		tr.Printw("formatted", "shader", x.Name, "size", len(b))
	}

	return b, nil
}

// formatBody continues a "key:" line with the block.
func formatBody(ctx context.Context, b []byte, x []ast.Stmt, d int) ([]byte, error) {
	if len(x) == 0 {
		return append(b, " []\n"...), nil
	}

	if b[len(b)-1] != '\n' {
		b = append(b, '\n')
	}

	return formatBlock(ctx, b, x, d)
}

func formatBlock(ctx context.Context, b []byte, x []ast.Stmt, d int) (_ []byte, err error) {
	for _, s := range x {
		switch s := s.(type) {
		case ast.Let:
			b = app(b, d, "- let: %s %s %v\n", s.Var, s.Op, s.Value)
		case ast.If:
			b = app(b, d, "- if: %v\n", s.Cond)

			b = app(b, d+1, "then:")

			b, err = formatBody(ctx, b, s.Then, d+2)
			if err != nil {
				return nil, errors.Wrap(err, "then block")
			}

			if len(s.Else) != 0 {
				b = app(b, d+1, "else:")

				b, err = formatBody(ctx, b, s.Else, d+2)
				if err != nil {
					return nil, errors.Wrap(err, "else block")
				}
			}
		case ast.While:
			b = app(b, d, "- while: %v\n", s.Cond)

			b = app(b, d+1, "do:")

			b, err = formatBody(ctx, b, s.Body, d+2)
			if err != nil {
				return nil, errors.Wrap(err, "loop body")
			}
		case ast.Call:
			b = app(b, d, "- call: %s\n", s.Func)
		case ast.Trace:
			b = app(b, d, "- trace: %s\n", s.Var)
		case ast.Return:
			b = app(b, d, "- return\n")
		case ast.Break:
			b = app(b, d, "- break\n")
		case ast.Continue:
			b = app(b, d, "- continue\n")
		case ast.Exit:
			b = app(b, d, "- exit\n")
		default:
			return nil, errors.New("unsupported stmt: %T", s)
		}
	}

	return b, nil
}

func list(b []byte, l []string) []byte {
	b = append(b, '[')

	for i, n := range l {
		if i != 0 {
			b = append(b, ", "...)
		}

		b = append(b, n...)
	}

	return append(b, "]\n"...)
}

func app(b []byte, d int, f string, args ...any) []byte {
	const spaces = "                                                                "

	for d*2 > len(spaces) {
		b = append(b, spaces...)
		d -= len(spaces) / 2
	}

	b = append(b, spaces[:d*2]...)
	b = hfmt.Appendf(b, f, args...)
	return b
}
