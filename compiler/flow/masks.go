package flow

import (
	"github.com/slowlang/wide/compiler/ir"
)

type (
	// MaskInfo is a conditional mask stack entry.
	// The effective mask is Mask, or its complement if Negate is set.
	MaskInfo struct {
		Mask   ir.Expr
		Negate bool

		// AppliedReturns is the function scope return count
		// already folded into Mask.
		AppliedReturns int
	}
)

// PushMask narrows the current mask by m (or its complement if negate).
// Absolute replaces the current mask instead, it's used to enter
// a scope m is not a refinement of.
func (e *Engine) PushMask(m ir.Expr, negate, absolute bool) {
	ir.Assert(e.e.Type(m) == e.wideBool(), "mask of type %v, want %v", e.e.Type(m), e.wideBool())

	if len(e.masks) == 0 {
		e.masks = append(e.masks, MaskInfo{Mask: m, Negate: negate})
		e.logPush(negate, absolute)

		return
	}

	prev := e.masks[len(e.masks)-1]

	applied := prev.AppliedReturns
	if absolute {
		applied = 0
	}

	next := MaskInfo{AppliedReturns: applied}

	switch {
	case !prev.Negate && !negate:
		if absolute {
			next.Mask = m
		} else {
			next.Mask = e.e.Select(prev.Mask, m, prev.Mask)
		}
	case !prev.Negate && negate:
		ir.Assert(!absolute, "absolute push of a negated mask")

		next.Mask = e.e.Select(m, e.a.Const(false), prev.Mask)
	case prev.Negate && !negate:
		if absolute {
			next.Mask = m
		} else {
			next.Mask = e.e.Select(prev.Mask, e.a.Const(false), m)
		}
	default:
		ir.Assert(!absolute, "absolute push of a negated mask")

		next.Mask = e.e.Select(prev.Mask, prev.Mask, m)
		next.Negate = true
	}

	e.masks = append(e.masks, next)
	e.logPush(negate, absolute)
}

func (e *Engine) PopMask() {
	ir.Assert(len(e.masks) != 0, "pop of empty mask stack")

	e.masks = e.masks[:len(e.masks)-1]

	e.tr.V("mask_stack").Printw("pop mask", "depth", len(e.masks))
}

// CurrentMask is the effective mask of the innermost conditional region.
func (e *Engine) CurrentMask() ir.Expr {
	mi := e.top()

	if mi.Negate {
		return e.a.Negate(mi.Mask)
	}

	return mi.Mask
}

// Top returns the innermost entry as stored.
func (e *Engine) Top() MaskInfo {
	return *e.top()
}

// ApplyReturnToMaskStack removes lanes that returned from the current
// function from the innermost mask. Returns already folded in are skipped.
func (e *Engine) ApplyReturnToMaskStack() {
	mi := e.top()
	s := e.scope()

	if s.returns <= mi.AppliedReturns {
		return
	}

	rs := e.e.Load(s.cell)

	if mi.Negate {
		mi.Mask = e.e.Select(rs, mi.Mask, e.a.Const(true))
	} else {
		mi.Mask = e.e.Select(rs, mi.Mask, rs)
	}

	mi.AppliedReturns = s.returns

	e.tr.V("mask_stack").Printw("apply return", "returns", s.returns, "depth", len(e.masks))
}

// ApplyBreakToMaskStack removes lanes that left the innermost loop.
func (e *Engine) ApplyBreakToMaskStack() {
	mi := e.top()
	l := e.loop()

	cond := e.e.Load(l.CondMask)

	if mi.Negate {
		mi.Mask = e.e.Select(cond, mi.Mask, e.a.Const(true))
	} else {
		mi.Mask = e.e.Select(cond, mi.Mask, cond)
	}

	e.tr.V("mask_stack").Printw("apply break", "breaks", l.Breaks, "depth", len(e.masks))
}

// ApplyContinueToMaskStack removes lanes that continued the innermost loop.
func (e *Engine) ApplyContinueToMaskStack() {
	mi := e.top()
	l := e.loop()

	cont := e.e.Load(l.ContinueMask)

	if mi.Negate {
		mi.Mask = e.e.Select(cont, e.a.Const(true), mi.Mask)
	} else {
		mi.Mask = e.e.Select(cont, e.a.Const(false), mi.Mask)
	}

	e.tr.V("mask_stack").Printw("apply continue", "continues", l.Continues, "depth", len(e.masks))
}

// ApplyExitToMaskStack is called in the caller after a function
// that exited the shader for some lanes is popped.
// It narrows the function mask by the shader mask and then the innermost mask.
func (e *Engine) ApplyExitToMaskStack() {
	mi := e.top()
	s := e.scope()

	shader := e.e.Load(e.scopes[0].cell)
	fn := e.e.Load(s.cell)

	narrowed := e.e.Select(shader, fn, shader)
	e.storeUnmasked(narrowed, s.cell)

	s.returns++

	ir.Assert(s.returns > mi.AppliedReturns, "returns %d already applied %d", s.returns, mi.AppliedReturns)

	if mi.Negate {
		mi.Mask = e.e.Select(narrowed, mi.Mask, e.a.Const(true))
	} else {
		mi.Mask = e.e.Select(narrowed, mi.Mask, narrowed)
	}

	mi.AppliedReturns = s.returns

	e.tr.V("mask_stack").Printw("apply exit", "exits", e.exits, "returns", s.returns, "depth", len(e.masks))
}

func (e *Engine) top() *MaskInfo {
	ir.Assert(len(e.masks) != 0, "empty mask stack")

	return &e.masks[len(e.masks)-1]
}

func (e *Engine) logPush(negate, absolute bool) {
	e.tr.V("mask_stack").Printw("push mask", "negate", negate, "absolute", absolute, "depth", len(e.masks))
}
