// Package flow turns divergent scalar control flow into predicated
// vector code.
//
// The Engine keeps three stacks while a shader is being generated:
// conditional masks (if/else), loops (condition and continue cells)
// and function scopes (function mask cells, the outermost is the shader mask).
// The driver walking the shader calls into it at every control-flow construct,
// pushes and pops must come in matching pairs.
//
// Misuse is a bug in the driver and panics with ir.InvariantError.
//
// An Engine is owned by one compiling goroutine.
package flow

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/slowlang/wide/compiler/caps"
	"github.com/slowlang/wide/compiler/ir"
	"github.com/slowlang/wide/compiler/mask"
	"github.com/slowlang/wide/compiler/tp"
)

type (
	Emitter interface {
		mask.Emitter

		Alloca(t tp.Type, name string) ir.Expr
		Load(p ir.Expr) ir.Expr
		Store(v, p ir.Expr)
		MaskedStore(v, p, m ir.Expr)
	}

	Engine struct {
		e     Emitter
		a     mask.Algebra
		types *tp.Registry
		caps  caps.Table

		masks  []MaskInfo
		loops  []LoopInfo
		scopes []scope

		enabled      []bool
		returnBlocks []ir.Label

		exits int

		tr tlog.Span
	}
)

func New(ctx context.Context, e Emitter, c caps.Table) *Engine {
	return &Engine{
		e:     e,
		a:     mask.New(e, c),
		types: e.Types(),
		caps:  c,
		tr:    tlog.SpanFromContext(ctx),
	}
}

func (e *Engine) Algebra() mask.Algebra { return e.a }
func (e *Engine) Caps() caps.Table      { return e.caps }

func (e *Engine) PushMaskingEnabled(enabled bool) {
	e.enabled = append(e.enabled, enabled)
}

func (e *Engine) PopMaskingEnabled() {
	ir.Assert(len(e.enabled) != 0, "pop of empty masking-enabled stack")

	e.enabled = e.enabled[:len(e.enabled)-1]
}

func (e *Engine) MaskingEnabled() bool {
	return len(e.enabled) != 0 && e.enabled[len(e.enabled)-1]
}

// Store writes v to p, for the active lanes only when masking is enabled.
//
// Without hardware masked stores the write is load+select+store,
// which assumes nothing below SIMD-group granularity touches p concurrently.
func (e *Engine) Store(v, p ir.Expr) {
	if len(e.masks) == 0 || !e.MaskingEnabled() || !e.types.IsWide(e.e.Type(v)) {
		e.e.Store(v, p)
		return
	}

	mi := e.masks[len(e.masks)-1]

	if e.caps.MaskedStores {
		m := mi.Mask
		if mi.Negate {
			m = e.e.Not(m)
		}

		e.e.MaskedStore(v, p, m)
		return
	}

	prev := e.e.Load(p)

	var blended ir.Expr
	if mi.Negate {
		blended = e.e.Select(mi.Mask, prev, v)
	} else {
		blended = e.e.Select(mi.Mask, v, prev)
	}

	e.e.Store(blended, p)
}

// storeUnmasked writes a bookkeeping cell masking itself depends on.
func (e *Engine) storeUnmasked(v, p ir.Expr) {
	e.PushMaskingEnabled(false)
	e.Store(v, p)
	e.PopMaskingEnabled()
}

func (e *Engine) PushMaskedReturnBlock(l ir.Label) {
	e.returnBlocks = append(e.returnBlocks, l)
}

func (e *Engine) PopMaskedReturnBlock() {
	ir.Assert(len(e.returnBlocks) != 0, "pop of empty return block stack")

	e.returnBlocks = e.returnBlocks[:len(e.returnBlocks)-1]
}

func (e *Engine) HasMaskedReturnBlock() bool {
	return len(e.returnBlocks) != 0
}

func (e *Engine) MaskedReturnBlock() ir.Label {
	ir.Assert(len(e.returnBlocks) != 0, "no masked return block")

	return e.returnBlocks[len(e.returnBlocks)-1]
}

func (e *Engine) Depth() (masks, loops, scopes int) {
	return len(e.masks), len(e.loops), len(e.scopes)
}

// End checks the engine is back to its initial state.
func (e *Engine) End() {
	ir.Assert(len(e.masks) == 0, "%d masks left on stack", len(e.masks))
	ir.Assert(len(e.loops) == 0, "%d loops left on stack", len(e.loops))
	ir.Assert(len(e.scopes) == 0, "%d function scopes left on stack", len(e.scopes))
	ir.Assert(len(e.enabled) == 0, "%d masking-enabled entries left on stack", len(e.enabled))
	ir.Assert(len(e.returnBlocks) == 0, "%d return blocks left on stack", len(e.returnBlocks))
	ir.Assert(e.exits == 0, "masked exit count %d", e.exits)
}

func (e *Engine) checkCell(p ir.Expr) {
	ir.Assert(p != ir.Nil, "nil mask cell")

	t := e.e.Type(p)
	ir.Assert(t == tp.Type(tp.Ptr{X: e.wideBool()}), "mask cell of type %v", t)
}

func (e *Engine) wideBool() tp.Type {
	return e.types.WideBool()
}
