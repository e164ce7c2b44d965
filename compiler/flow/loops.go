package flow

import (
	"github.com/slowlang/wide/compiler/ir"
)

type (
	// LoopInfo tracks a loop. CondMask holds lanes still iterating,
	// ContinueMask lanes that continued in the current iteration.
	// Both are ir.Nil for a loop with a uniform condition.
	LoopInfo struct {
		CondMask     ir.Expr
		ContinueMask ir.Expr

		Breaks    int
		Continues int
	}
)

func (e *Engine) PushMaskedLoop(cond, cont ir.Expr) {
	if cond != ir.Nil || cont != ir.Nil {
		e.checkCell(cond)
		e.checkCell(cont)
	}

	e.loops = append(e.loops, LoopInfo{CondMask: cond, ContinueMask: cont})

	e.tr.V("mask_stack").Printw("push loop", "masked", cond != ir.Nil, "depth", len(e.loops))
}

func (e *Engine) PopMaskedLoop() {
	ir.Assert(len(e.loops) != 0, "pop of empty loop stack")

	e.loops = e.loops[:len(e.loops)-1]

	e.tr.V("mask_stack").Printw("pop loop", "depth", len(e.loops))
}

func (e *Engine) IsInnermostLoopMasked() bool {
	return len(e.loops) != 0 && e.loops[len(e.loops)-1].CondMask != ir.Nil
}

func (e *Engine) MaskedBreakCount() int {
	if len(e.loops) == 0 {
		return 0
	}

	return e.loops[len(e.loops)-1].Breaks
}

func (e *Engine) MaskedContinueCount() int {
	if len(e.loops) == 0 {
		return 0
	}

	return e.loops[len(e.loops)-1].Continues
}

// OpMaskedBreak clears the active lanes from the loop condition cell.
func (e *Engine) OpMaskedBreak() {
	mi := e.top()
	l := e.loop()

	cond := e.e.Load(l.CondMask)

	var next ir.Expr
	if mi.Negate {
		next = e.e.Select(mi.Mask, cond, mi.Mask)
	} else {
		next = e.e.Select(mi.Mask, e.a.Const(false), cond)
	}

	e.storeUnmasked(next, l.CondMask)

	l.Breaks++

	e.tr.V("mask_stack").Printw("masked break", "breaks", l.Breaks)
}

// OpMaskedContinue sets the active lanes in the loop continue cell.
func (e *Engine) OpMaskedContinue() {
	mi := e.top()
	l := e.loop()

	cont := e.e.Load(l.ContinueMask)

	var next ir.Expr
	if mi.Negate {
		next = e.e.Select(mi.Mask, cont, e.a.Const(true))
	} else {
		next = e.e.Select(mi.Mask, mi.Mask, cont)
	}

	e.storeUnmasked(next, l.ContinueMask)

	l.Continues++

	e.tr.V("mask_stack").Printw("masked continue", "continues", l.Continues)
}

func (e *Engine) loop() *LoopInfo {
	ir.Assert(len(e.loops) != 0, "no loop in scope")

	l := &e.loops[len(e.loops)-1]
	ir.Assert(l.CondMask != ir.Nil, "innermost loop is not masked")

	return l
}
