package flow

import (
	"github.com/slowlang/wide/compiler/ir"
)

type (
	// scope is a function or shader instance.
	// cell holds its active lanes, returns counts masked returns.
	scope struct {
		cell    ir.Expr
		returns int
	}
)

// PushFunctionMask enters a function whose active lanes are start.
func (e *Engine) PushFunctionMask(start ir.Expr) {
	cell := e.e.Alloca(e.wideBool(), "function_mask")
	e.storeUnmasked(start, cell)

	e.scopes = append(e.scopes, scope{cell: cell})

	e.tr.V("mask_stack").Printw("push function mask", "depth", len(e.scopes))

	e.PushMask(start, false, true)
}

// PopFunctionMask leaves a function. The caller must apply
// its exit effects to the enclosing scope afterwards.
func (e *Engine) PopFunctionMask() {
	e.PopMask()

	ir.Assert(len(e.scopes) != 0, "pop of empty function scope stack")

	e.scopes = e.scopes[:len(e.scopes)-1]

	e.tr.V("mask_stack").Printw("pop function mask", "depth", len(e.scopes))
}

func (e *Engine) PushShaderInstance(start ir.Expr) {
	ir.Assert(len(e.scopes) == 0, "shader instance inside %d scopes", len(e.scopes))

	e.PushFunctionMask(start)
}

func (e *Engine) PopShaderInstance() {
	ir.Assert(len(e.scopes) == 1, "shader instance pop with %d scopes", len(e.scopes))

	e.exits = 0

	e.PopFunctionMask()
}

// ShaderMask loads the lanes still running the shader.
func (e *Engine) ShaderMask() ir.Expr {
	ir.Assert(len(e.scopes) != 0, "no shader instance")

	return e.e.Load(e.scopes[0].cell)
}

// FunctionMask loads the lanes still running the innermost function.
func (e *Engine) FunctionMask() ir.Expr {
	return e.e.Load(e.scope().cell)
}

func (e *Engine) MaskedReturnCount() int {
	return e.scope().returns
}

func (e *Engine) MaskedExitCount() int {
	return e.exits
}

// ApplyReturnTo narrows m by the innermost function mask.
func (e *Engine) ApplyReturnTo(m ir.Expr) ir.Expr {
	s := e.scope()
	ir.Assert(s.returns > 0, "no masked return to apply")

	rs := e.e.Load(s.cell)

	return e.e.Select(rs, m, rs)
}

// OpMaskedReturn clears the active lanes from the function mask.
func (e *Engine) OpMaskedReturn() {
	mi := e.top()
	s := e.scope()

	fn := e.e.Load(s.cell)

	var next ir.Expr
	if mi.Negate {
		next = e.e.Select(mi.Mask, fn, mi.Mask)
	} else {
		next = e.e.Select(mi.Mask, e.a.Const(false), fn)
	}

	e.storeUnmasked(next, s.cell)

	s.returns++

	e.tr.V("mask_stack").Printw("masked return", "returns", s.returns, "depth", len(e.scopes))
}

// OpMaskedExit clears the active lanes from the shader mask
// and from the innermost function mask.
// Enclosing functions pick it up with ApplyExitToMaskStack when popped.
func (e *Engine) OpMaskedExit() {
	mi := e.top()
	s := e.scope()

	narrow := func(cell ir.Expr) {
		cur := e.e.Load(cell)

		var next ir.Expr
		if mi.Negate {
			next = e.e.Select(mi.Mask, cur, mi.Mask)
		} else {
			next = e.e.Select(mi.Mask, e.a.Const(false), cur)
		}

		e.storeUnmasked(next, cell)
	}

	narrow(e.scopes[0].cell)

	if len(e.scopes) > 1 {
		narrow(s.cell)
	}

	e.exits++
	s.returns++

	e.tr.V("mask_stack").Printw("masked exit", "exits", e.exits, "returns", s.returns, "depth", len(e.scopes))
}

func (e *Engine) scope() *scope {
	ir.Assert(len(e.scopes) != 0, "no function scope")

	return &e.scopes[len(e.scopes)-1]
}
