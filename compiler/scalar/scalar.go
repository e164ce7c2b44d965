// Package scalar runs a shader for a single lane with ordinary control flow.
// It's the reference masked execution is checked against.
package scalar

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/wide/compiler/ast"
)

type (
	Trace struct {
		Var   string
		Value int32
	}

	// Lane is the final state of one shader instance.
	Lane struct {
		Vars  map[string]int32
		Live  bool
		Trace []Trace
	}

	flow int

	machine struct {
		s *ast.Shader

		inputs map[string]int32
		lane   *Lane

		steps, max int
	}
)

const (
	next flow = iota
	brk
	cont
	ret
	exit
)

const DefaultMaxSteps = 1 << 20

var ErrStepLimit = errors.New("step limit exceeded")

// Run executes s with the given inputs, missing ones are zero.
// A return from the shader body ends the instance the same way exit does.
func Run(ctx context.Context, s *ast.Shader, inputs map[string]int32, maxSteps int) (l Lane, err error) {
	tr := tlog.SpanFromContext(ctx)

	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}

	l = Lane{Vars: make(map[string]int32, len(s.Vars)), Live: true}

	for _, n := range s.Vars {
		l.Vars[n] = 0
	}

	m := &machine{
		s:      s,
		inputs: inputs,
		lane:   &l,
		max:    maxSteps,
	}

	f, err := m.block(s.Body)
	if err != nil {
		return l, err
	}

	if f == ret || f == exit {
		l.Live = false
	}

	tr.V("scalar").Printw("lane done", "steps", m.steps, "live", l.Live, "vars", l.Vars)

	return l, nil
}

func (m *machine) block(list []ast.Stmt) (flow, error) {
	for _, s := range list {
		f, err := m.stmt(s)
		if err != nil || f != next {
			return f, err
		}
	}

	return next, nil
}

func (m *machine) stmt(s ast.Stmt) (flow, error) {
	m.steps++
	if m.steps > m.max {
		return 0, ErrStepLimit
	}

	switch s := s.(type) {
	case ast.Let:
		v := m.operand(s.Value)

		switch s.Op {
		case "=":
			m.lane.Vars[s.Var] = v
		case "+=":
			m.lane.Vars[s.Var] += v
		case "-=":
			m.lane.Vars[s.Var] -= v
		default:
			return 0, errors.New("%v: unsupported assignment: %q", s.Pos(), s.Op)
		}
	case ast.If:
		ok, err := m.cond(s.Cond)
		if err != nil {
			return 0, errors.Wrap(err, "%v", s.Pos())
		}

		if ok {
			return m.block(s.Then)
		}

		return m.block(s.Else)
	case ast.While:
		for {
			ok, err := m.cond(s.Cond)
			if err != nil {
				return 0, errors.Wrap(err, "%v", s.Pos())
			}

			if !ok {
				return next, nil
			}

			f, err := m.block(s.Body)
			if err != nil {
				return 0, err
			}

			switch f {
			case brk:
				return next, nil
			case ret, exit:
				return f, nil
			}

			m.steps++
			if m.steps > m.max {
				return 0, ErrStepLimit
			}
		}
	case ast.Call:
		fn := m.s.Func(s.Func)
		if fn == nil {
			return 0, errors.New("%v: undefined func: %v", s.Pos(), s.Func)
		}

		f, err := m.block(fn.Body)
		if err != nil {
			return 0, errors.Wrap(err, "func %v", fn.Name)
		}

		if f == exit {
			return exit, nil
		}
	case ast.Trace:
		m.lane.Trace = append(m.lane.Trace, Trace{Var: s.Var, Value: m.lane.Vars[s.Var]})
	case ast.Return:
		return ret, nil
	case ast.Exit:
		return exit, nil
	case ast.Break:
		return brk, nil
	case ast.Continue:
		return cont, nil
	default:
		return 0, errors.New("unsupported statement: %T", s)
	}

	return next, nil
}

func (m *machine) cond(c ast.Cond) (bool, error) {
	l := m.operand(c.L)
	r := m.operand(c.R)

	switch c.Op {
	case "==":
		return l == r, nil
	case "!=":
		return l != r, nil
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	}

	return false, errors.New("unsupported comparison: %q", c.Op)
}

func (m *machine) operand(o ast.Operand) int32 {
	if o.IsImm() {
		return int32(o.Imm)
	}

	if v, ok := m.lane.Vars[o.Name]; ok {
		return v
	}

	return m.inputs[o.Name]
}
