package front

import (
	"tlog.app/go/errors"

	"github.com/slowlang/wide/compiler/ast"
)

type (
	checker struct {
		s *ast.Shader

		loops int
		stack []string
		done  map[string]bool
	}
)

// Check rejects shaders the lowering can't handle:
// undefined names, break or continue outside a loop,
// unknown and recursive calls.
func Check(s *ast.Shader) error {
	seen := map[string]bool{"mask": true}

	for _, n := range append(append([]string{}, s.Inputs...), s.Vars...) {
		if seen[n] {
			return errors.New("name redeclared: %v", n)
		}

		seen[n] = true
	}

	fseen := map[string]bool{}

	for _, f := range s.Funcs {
		if fseen[f.Name] {
			return errors.New("%v: func redeclared: %v", f.Pos(), f.Name)
		}

		fseen[f.Name] = true
	}

	c := &checker{s: s, done: map[string]bool{}}

	for _, f := range s.Funcs {
		err := c.fn(f)
		if err != nil {
			return err
		}
	}

	return c.block(s.Body)
}

func (c *checker) fn(f *ast.Func) error {
	if c.done[f.Name] {
		return nil
	}

	for _, n := range c.stack {
		if n == f.Name {
			return errors.New("%v: recursive call: %v", f.Pos(), f.Name)
		}
	}

	c.stack = append(c.stack, f.Name)
	loops := c.loops
	c.loops = 0

	defer func() {
		c.stack = c.stack[:len(c.stack)-1]
		c.loops = loops
	}()

	err := c.block(f.Body)
	if err != nil {
		return errors.Wrap(err, "func %v", f.Name)
	}

	c.done[f.Name] = true

	return nil
}

func (c *checker) block(b []ast.Stmt) error {
	for _, s := range b {
		err := c.stmt(s)
		if err != nil {
			return err
		}
	}

	return nil
}

func (c *checker) stmt(s ast.Stmt) error {
	switch s := s.(type) {
	case ast.Let:
		if !c.s.IsVar(s.Var) {
			if c.s.IsInput(s.Var) {
				return errors.New("%v: assignment to input: %v", s.Pos(), s.Var)
			}

			return errors.New("%v: undefined var: %v", s.Pos(), s.Var)
		}

		return c.operand(s.Base, s.Value)
	case ast.If:
		if err := c.cond(s.Base, s.Cond); err != nil {
			return err
		}

		if err := c.block(s.Then); err != nil {
			return err
		}

		return c.block(s.Else)
	case ast.While:
		if err := c.cond(s.Base, s.Cond); err != nil {
			return err
		}

		c.loops++
		defer func() { c.loops-- }()

		return c.block(s.Body)
	case ast.Call:
		f := c.s.Func(s.Func)
		if f == nil {
			return errors.New("%v: undefined func: %v", s.Pos(), s.Func)
		}

		for _, n := range c.stack {
			if n == f.Name {
				return errors.New("%v: recursive call: %v", s.Pos(), s.Func)
			}
		}

		return c.fn(f)
	case ast.Trace:
		if !c.s.IsVar(s.Var) {
			return errors.New("%v: trace of undefined var: %v", s.Pos(), s.Var)
		}
	case ast.Break:
		if c.loops == 0 {
			return errors.New("%v: break outside a loop", s.Pos())
		}
	case ast.Continue:
		if c.loops == 0 {
			return errors.New("%v: continue outside a loop", s.Pos())
		}
	case ast.Return, ast.Exit:
	default:
		return errors.New("unsupported statement: %T", s)
	}

	return nil
}

func (c *checker) cond(b ast.Base, x ast.Cond) error {
	if err := c.operand(b, x.L); err != nil {
		return err
	}

	return c.operand(b, x.R)
}

func (c *checker) operand(b ast.Base, o ast.Operand) error {
	if o.IsImm() {
		if o.Imm != int64(int32(o.Imm)) {
			return errors.New("%v: literal out of int32 range: %d", b.Pos(), o.Imm)
		}

		return nil
	}

	if !c.s.IsInput(o.Name) && !c.s.IsVar(o.Name) {
		return errors.New("%v: undefined name: %v", b.Pos(), o.Name)
	}

	return nil
}
