package ast

import "fmt"

type (
	Stmt interface{}

	Base struct {
		Line int
		Col  int
	}

	Shader struct {
		Name string

		// Inputs are per-lane ints, read only.
		Inputs []string
		// Vars are per-lane ints, zero on entry.
		Vars []string

		Funcs []*Func
		Body  []Stmt
	}

	Func struct {
		Base `tlog:",embed"`

		Name string
		Body []Stmt
	}

	// Operand is an input, a var or an integer literal.
	Operand struct {
		Name string
		Imm  int64
	}

	Cond struct {
		L  Operand
		Op string
		R  Operand
	}

	Let struct {
		Base `tlog:",embed"`

		Var   string
		Op    string // = += -=
		Value Operand
	}

	If struct {
		Base `tlog:",embed"`

		Cond Cond
		Then []Stmt
		Else []Stmt
	}

	While struct {
		Base `tlog:",embed"`

		Cond Cond
		Body []Stmt
	}

	Call struct {
		Base `tlog:",embed"`

		Func string
	}

	// Trace reports the var value of every active lane.
	Trace struct {
		Base `tlog:",embed"`

		Var string
	}

	Return struct {
		Base `tlog:",embed"`
	}

	Break struct {
		Base `tlog:",embed"`
	}

	Continue struct {
		Base `tlog:",embed"`
	}

	// Exit terminates the shader for the lanes executing it.
	Exit struct {
		Base `tlog:",embed"`
	}
)

func (s *Shader) Func(name string) *Func {
	for _, f := range s.Funcs {
		if f.Name == name {
			return f
		}
	}

	return nil
}

func (s *Shader) IsInput(name string) bool { return index(s.Inputs, name) >= 0 }
func (s *Shader) IsVar(name string) bool   { return index(s.Vars, name) >= 0 }
func (s *Shader) VarIndex(name string) int { return index(s.Vars, name) }

func (b Base) Pos() string {
	return fmt.Sprintf("%d:%d", b.Line, b.Col)
}

func (o Operand) IsImm() bool { return o.Name == "" }

func (o Operand) String() string {
	if o.IsImm() {
		return fmt.Sprintf("%d", o.Imm)
	}

	return o.Name
}

func (c Cond) String() string {
	return fmt.Sprintf("%v %s %v", c.L, c.Op, c.R)
}

func index(l []string, s string) int {
	for i, x := range l {
		if x == s {
			return i
		}
	}

	return -1
}
