package parse

import (
	"context"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/wide/compiler/ast"
)

type (
	// PosError points to the offending node of the description.
	PosError struct {
		Line, Col int
		Err       error
	}
)

func ParseFile(ctx context.Context, name string) (*ast.Shader, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	return Parse(ctx, name, data)
}

// Parse reads a shader description:
//
//	name: demo
//	inputs: [x]
//	vars: [a]
//	funcs:
//	  f:
//	    - let: a += 1
//	body:
//	  - if: x < 3
//	    then: [exit]
//	    else: [{call: f}]
func Parse(ctx context.Context, name string, text []byte) (s *ast.Shader, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "parse", "name", name, "size", len(text))
	defer tr.Finish("err", &err)

	var doc yaml.Node

	err = yaml.Unmarshal(text, &doc)
	if err != nil {
		return nil, errors.Wrap(err, "yaml")
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("empty document")
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, posErr(root, "shader must be a mapping")
	}

	s = &ast.Shader{Name: name}

	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]

		switch k.Value {
		case "name":
			s.Name = v.Value
		case "inputs":
			s.Inputs, err = names(v)
		case "vars":
			s.Vars, err = names(v)
		case "funcs":
			s.Funcs, err = funcs(v)
		case "body":
			s.Body, err = block(v)
		default:
			err = posErr(k, "unknown section: %q", k.Value)
		}

		if err != nil {
			return nil, errors.Wrap(err, "%v", k.Value)
		}
	}

	if tr.If("dump_ast") {
		tr.Printw("shader", "name", s.Name, "inputs", s.Inputs, "vars", s.Vars, "funcs", len(s.Funcs), "body", len(s.Body))
	}

	return s, nil
}

func names(n *yaml.Node) (r []string, err error) {
	if n.Kind != yaml.SequenceNode {
		return nil, posErr(n, "expected a list of names")
	}

	for _, x := range n.Content {
		if x.Kind != yaml.ScalarNode || !isIdent(x.Value) {
			return nil, posErr(x, "bad name: %q", x.Value)
		}

		r = append(r, x.Value)
	}

	return r, nil
}

func funcs(n *yaml.Node) (r []*ast.Func, err error) {
	if n.Kind != yaml.MappingNode {
		return nil, posErr(n, "funcs must be a mapping")
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]

		if !isIdent(k.Value) {
			return nil, posErr(k, "bad func name: %q", k.Value)
		}

		body, err := block(v)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", k.Value)
		}

		r = append(r, &ast.Func{Base: base(k), Name: k.Value, Body: body})
	}

	return r, nil
}

func block(n *yaml.Node) (r []ast.Stmt, err error) {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, nil
	}

	if n.Kind != yaml.SequenceNode {
		return nil, posErr(n, "expected a list of statements")
	}

	for _, x := range n.Content {
		s, err := stmt(x)
		if err != nil {
			return nil, err
		}

		r = append(r, s)
	}

	return r, nil
}

func stmt(n *yaml.Node) (ast.Stmt, error) {
	b := base(n)

	if n.Kind == yaml.ScalarNode {
		switch n.Value {
		case "return":
			return ast.Return{Base: b}, nil
		case "break":
			return ast.Break{Base: b}, nil
		case "continue":
			return ast.Continue{Base: b}, nil
		case "exit":
			return ast.Exit{Base: b}, nil
		}

		return nil, posErr(n, "unknown statement: %q", n.Value)
	}

	if n.Kind != yaml.MappingNode || len(n.Content) == 0 {
		return nil, posErr(n, "expected a statement")
	}

	fields := map[string]*yaml.Node{}

	for i := 0; i+1 < len(n.Content); i += 2 {
		fields[n.Content[i].Value] = n.Content[i+1]
	}

	kind := n.Content[0].Value
	v := n.Content[1]

	allow := func(keys ...string) error {
		for k := range fields {
			if k == kind {
				continue
			}

			ok := false
			for _, a := range keys {
				ok = ok || a == k
			}

			if !ok {
				return posErr(n, "unexpected key %q in %v", k, kind)
			}
		}

		return nil
	}

	switch kind {
	case "let":
		if err := allow(); err != nil {
			return nil, err
		}

		f := strings.Fields(v.Value)
		if len(f) != 3 || !isIdent(f[0]) {
			return nil, posErr(v, "expected `var op operand`: %q", v.Value)
		}

		switch f[1] {
		case "=", "+=", "-=":
		default:
			return nil, posErr(v, "unsupported assignment: %q", f[1])
		}

		o, err := operand(v, f[2])
		if err != nil {
			return nil, err
		}

		return ast.Let{Base: b, Var: f[0], Op: f[1], Value: o}, nil
	case "if":
		if err := allow("then", "else"); err != nil {
			return nil, err
		}

		c, err := cond(v)
		if err != nil {
			return nil, err
		}

		s := ast.If{Base: b, Cond: c}

		if x, ok := fields["then"]; ok {
			s.Then, err = block(x)
			if err != nil {
				return nil, errors.Wrap(err, "then")
			}
		}

		if x, ok := fields["else"]; ok {
			s.Else, err = block(x)
			if err != nil {
				return nil, errors.Wrap(err, "else")
			}
		}

		return s, nil
	case "while":
		if err := allow("do"); err != nil {
			return nil, err
		}

		c, err := cond(v)
		if err != nil {
			return nil, err
		}

		s := ast.While{Base: b, Cond: c}

		if x, ok := fields["do"]; ok {
			s.Body, err = block(x)
			if err != nil {
				return nil, errors.Wrap(err, "do")
			}
		}

		return s, nil
	case "call":
		if err := allow(); err != nil {
			return nil, err
		}

		if !isIdent(v.Value) {
			return nil, posErr(v, "bad func name: %q", v.Value)
		}

		return ast.Call{Base: b, Func: v.Value}, nil
	case "trace":
		if err := allow(); err != nil {
			return nil, err
		}

		if !isIdent(v.Value) {
			return nil, posErr(v, "bad var name: %q", v.Value)
		}

		return ast.Trace{Base: b, Var: v.Value}, nil
	}

	return nil, posErr(n.Content[0], "unknown statement: %q", kind)
}

func cond(n *yaml.Node) (c ast.Cond, err error) {
	f := strings.Fields(n.Value)
	if n.Kind != yaml.ScalarNode || len(f) != 3 {
		return c, posErr(n, "expected `operand op operand`: %q", n.Value)
	}

	switch f[1] {
	case "==", "!=", "<", "<=", ">", ">=":
	default:
		return c, posErr(n, "unsupported comparison: %q", f[1])
	}

	c.Op = f[1]

	c.L, err = operand(n, f[0])
	if err != nil {
		return c, err
	}

	c.R, err = operand(n, f[2])

	return c, err
}

func operand(n *yaml.Node, s string) (ast.Operand, error) {
	if v, err := strconv.ParseInt(s, 0, 64); err == nil {
		return ast.Operand{Imm: v}, nil
	}

	if !isIdent(s) {
		return ast.Operand{}, posErr(n, "bad operand: %q", s)
	}

	return ast.Operand{Name: s}, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}

	return true
}

func base(n *yaml.Node) ast.Base {
	return ast.Base{Line: n.Line, Col: n.Column}
}

func posErr(n *yaml.Node, format string, args ...any) error {
	return PosError{Line: n.Line, Col: n.Column, Err: errors.New(format, args...)}
}

func (e PosError) Error() string {
	return strconv.Itoa(e.Line) + ":" + strconv.Itoa(e.Col) + ": " + e.Err.Error()
}

func (e PosError) Unwrap() error { return e.Err }
