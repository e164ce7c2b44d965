package ir

import (
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/wide/compiler/tp"
)

type (
	Expr  int
	Label int
	Cond  string

	Param struct {
		Name string
		Expr Expr
	}

	Package struct {
		Path string

		Funcs []*Func
	}

	// Func is an append-only instruction buffer.
	// Instruction order is program order.
	Func struct {
		Name string

		In  []Param
		Out []Param

		Exprs []any
		EType []tp.Type

		Labels int
	}

	Arg struct {
		Index int
		Name  string
	}

	Imm int64

	ConstVec []int64

	Alloca struct {
		Name string
	}

	Load struct {
		Ptr Expr
	}

	Store struct {
		Val, Ptr Expr
	}

	// MaskedStore writes the lanes of Val selected by Mask.
	MaskedStore struct {
		Val, Ptr, Mask Expr
	}

	Select struct {
		Cond, T, F Expr
	}

	Cmp struct {
		Cond Cond
		L, R Expr
	}

	And struct {
		L, R Expr
	}

	Or struct {
		L, R Expr
	}

	Xor struct {
		L, R Expr
	}

	Not struct {
		X Expr
	}

	Add struct {
		L, R Expr
	}

	Sub struct {
		L, R Expr
	}

	Bitcast struct {
		X Expr
	}

	Trunc struct {
		X Expr
	}

	ZExt struct {
		X Expr
	}

	SExt struct {
		X Expr
	}

	Splat struct {
		X Expr
	}

	Extract struct {
		X, Lane Expr
	}

	// Cttz counts trailing zero bits. Undefined for zero input.
	Cttz struct {
		X Expr
	}

	B struct {
		Label Label
	}

	// BCond branches to Label if Expr is true.
	BCond struct {
		Expr  Expr
		Label Label
	}

	Call struct {
		Func string
		In   []Expr
	}

	Ret struct{}
)

const (
	Nil Expr = -1
)

const (
	Eq Cond = "=="
	Ne Cond = "!="
	Lt Cond = "<"
	Le Cond = "<="
	Gt Cond = ">"
	Ge Cond = ">="
)

func (c Cond) Valid() bool {
	switch c {
	case Eq, Ne, Lt, Le, Gt, Ge:
		return true
	}

	return false
}

func (f *Func) Type(x Expr) tp.Type {
	return f.EType[x]
}

func (f *Func) Len() int { return len(f.Exprs) }

func (p Param) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 2)
	b = e.AppendKeyString(b, "name", p.Name)
	b = e.AppendKeyInt64(b, "id", int64(p.Expr))

	return b
}
