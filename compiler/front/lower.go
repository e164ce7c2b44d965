// Package front lowers a checked shader into one predicated vector function.
//
// Every lane of the group runs the same instruction stream.
// Divergence is expressed by the flow engine as masked stores
// and narrowed masks, the only real branches are uniform skips
// taken when no lane is active.
package front

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/wide/compiler/ast"
	"github.com/slowlang/wide/compiler/caps"
	"github.com/slowlang/wide/compiler/flow"
	"github.com/slowlang/wide/compiler/ir"
	"github.com/slowlang/wide/compiler/mask"
	"github.com/slowlang/wide/compiler/tp"
)

type (
	lowerer struct {
		s *ast.Shader
		b *ir.Builder
		e *flow.Engine
		a mask.Algebra

		inputs map[string]ir.Expr
		vars   map[string]ir.Expr

		tr tlog.Span
	}

	counts struct {
		breaks    int
		continues int
	}
)

// Builtin trace call arguments: var index, lane, value.
const TraceFunc = "trace"

// Lower emits f for s. f takes the active lane bitmask as "mask"
// followed by one wide int per shader input. It outputs every var
// and the lanes still running the shader as "mask".
// types must be created for c.Width, nil means a fresh registry.
func Lower(ctx context.Context, s *ast.Shader, c caps.Table, types *tp.Registry) (f *ir.Func, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "lower", "shader", s.Name, "isa", c.ISA, "width", c.Width)
	defer tr.Finish("err", &err)

	err = Check(s)
	if err != nil {
		return nil, errors.Wrap(err, "check")
	}

	if types == nil {
		types = c.Types()
	}

	f = &ir.Func{Name: s.Name}
	b := ir.NewBuilder(f, types)
	e := flow.New(ctx, b, c)

	l := &lowerer{
		s:      s,
		b:      b,
		e:      e,
		a:      e.Algebra(),
		inputs: map[string]ir.Expr{},
		vars:   map[string]ir.Expr{},
		tr:     tr,
	}

	l.shader()

	e.End()

	if tr.If("dump_ir") {
		for i, x := range f.Exprs {
			tr.Printw("expr", "id", i, "type", f.EType[i], "x_type", tlog.FormatNext("%T"), x, "x", x)
		}
	}

	return f, nil
}

func (l *lowerer) shader() {
	b, e := l.b, l.e
	types := b.Types()

	arg := b.Arg("mask", l.a.IntType())

	for _, n := range l.s.Inputs {
		l.inputs[n] = b.Arg(n, types.WideInt())
	}

	start := l.a.FromInt(arg)

	zero := b.Splat(b.Imm(types.Int(), 0))

	for _, n := range l.s.Vars {
		p := b.Alloca(types.WideInt(), n)
		b.Store(zero, p)

		l.vars[n] = p
	}

	done := b.NewLabel()

	e.PushMaskingEnabled(true)
	e.PushShaderInstance(start)
	e.PushMaskedReturnBlock(done)

	l.block(l.s.Body)

	b.Place(done)

	e.PopMaskedReturnBlock()

	live := e.ShaderMask()

	e.PopShaderInstance()
	e.PopMaskingEnabled()

	for _, n := range l.s.Vars {
		b.Output(n, b.Load(l.vars[n]))
	}

	b.Output("mask", l.a.ToInt(live))

	b.Ret()
}

func (l *lowerer) block(list []ast.Stmt) {
	for _, s := range list {
		c := l.counts()

		l.stmt(s)

		l.reconcile(c)
	}
}

func (l *lowerer) stmt(s ast.Stmt) {
	l.tr.V("lower").Printw("stmt", "type", tlog.FormatNext("%T"), s, "stmt", s)

	switch s := s.(type) {
	case ast.Let:
		l.let(s)
	case ast.If:
		l.ifStmt(s)
	case ast.While:
		l.while(s)
	case ast.Call:
		l.call(s)
	case ast.Trace:
		l.trace(s)
	case ast.Return:
		l.e.OpMaskedReturn()
		l.earlyOut()
	case ast.Exit:
		l.e.OpMaskedExit()
		l.earlyOut()
	case ast.Break:
		l.e.OpMaskedBreak()
	case ast.Continue:
		l.e.OpMaskedContinue()
	default:
		ir.Assert(false, "unsupported statement: %T", s)
	}
}

// reconcile folds the control-flow events of the last statement
// into the innermost mask.
func (l *lowerer) reconcile(before counts) {
	e := l.e

	e.ApplyReturnToMaskStack()

	if !e.IsInnermostLoopMasked() {
		return
	}

	if e.MaskedBreakCount() != before.breaks {
		e.ApplyBreakToMaskStack()
	}

	if e.MaskedContinueCount() != before.continues {
		e.ApplyContinueToMaskStack()
	}
}

func (l *lowerer) counts() counts {
	return counts{
		breaks:    l.e.MaskedBreakCount(),
		continues: l.e.MaskedContinueCount(),
	}
}

// earlyOut leaves the function when its last lane has returned.
func (l *lowerer) earlyOut() {
	if !l.e.HasMaskedReturnBlock() {
		return
	}

	none := l.a.NoneActive(l.e.FunctionMask())
	l.b.BCond(none, l.e.MaskedReturnBlock())
}

func (l *lowerer) let(s ast.Let) {
	b := l.b
	p := l.vars[s.Var]
	v := l.operand(s.Value)

	switch s.Op {
	case "+=":
		v = b.Add(b.Load(p), v)
	case "-=":
		v = b.Sub(b.Load(p), v)
	}

	l.e.Store(v, p)
}

func (l *lowerer) ifStmt(s ast.If) {
	b, e := l.b, l.e

	c := l.cond(s.Cond)

	elseL := b.NewLabel()

	e.PushMask(c, false, false)
	b.BCond(l.a.NoneActive(e.CurrentMask()), elseL)

	l.block(s.Then)

	e.PopMask()
	b.Place(elseL)

	if len(s.Else) == 0 {
		return
	}

	end := b.NewLabel()

	e.PushMask(c, true, false)
	b.BCond(l.a.NoneActive(e.CurrentMask()), end)

	l.block(s.Else)

	e.PopMask()
	b.Place(end)
}

func (l *lowerer) while(s ast.While) {
	b, e := l.b, l.e
	types := b.Types()

	returns := e.MaskedReturnCount()

	condCell := b.Alloca(types.WideBool(), "loop_cond")
	contCell := b.Alloca(types.WideBool(), "loop_continue")

	e.PushMaskingEnabled(false)
	e.Store(e.CurrentMask(), condCell)
	e.Store(l.a.Const(false), contCell)
	e.PopMaskingEnabled()

	e.PushMaskedLoop(condCell, contCell)

	head := b.NewLabel()
	done := b.NewLabel()

	b.Place(head)

	c := l.cond(s.Cond)
	lanes := b.Select(b.Load(condCell), c, l.a.Const(false))

	e.PushMaskingEnabled(false)
	e.Store(lanes, condCell)
	e.PopMaskingEnabled()

	b.BCond(l.a.NoneActive(lanes), done)

	e.PushMask(lanes, false, false)

	l.block(s.Body)

	e.PopMask()

	e.PushMaskingEnabled(false)

	e.Store(l.a.Const(false), contCell)

	if e.MaskedReturnCount() != returns {
		next := e.ApplyReturnTo(b.Load(condCell))
		e.Store(next, condCell)
	}

	e.PopMaskingEnabled()

	b.B(head)
	b.Place(done)

	e.PopMaskedLoop()
}

func (l *lowerer) call(s ast.Call) {
	b, e := l.b, l.e
	f := l.s.Func(s.Func)

	exits := e.MaskedExitCount()

	skip := b.NewLabel()
	ret := b.NewLabel()

	start := e.CurrentMask()
	b.BCond(l.a.NoneActive(start), skip)

	e.PushFunctionMask(start)
	e.PushMaskedReturnBlock(ret)

	l.block(f.Body)

	b.Place(ret)

	e.PopMaskedReturnBlock()
	e.PopFunctionMask()

	b.Place(skip)

	if e.MaskedExitCount() != exits {
		e.ApplyExitToMaskStack()
		l.earlyOut()
	}
}

// trace walks the active lanes one by one, reporting var of each.
func (l *lowerer) trace(s ast.Trace) {
	b, e := l.b, l.e
	types := b.Types()

	rem := b.Alloca(types.WideBool(), "trace_lanes")

	e.PushMaskingEnabled(false)
	e.Store(e.CurrentMask(), rem)
	e.PopMaskingEnabled()

	head := b.NewLabel()
	done := b.NewLabel()

	b.Place(head)

	r := b.Load(rem)
	b.BCond(l.a.NoneActive(r), done)

	lane := l.a.FirstActiveLane(r)
	x := b.Extract(b.Load(l.vars[s.Var]), lane)

	b.Call(TraceFunc, b.Imm(types.Int(), int64(l.s.VarIndex(s.Var))), lane, x)

	e.PushMaskingEnabled(false)
	e.Store(l.a.ClearLane(r, lane), rem)
	e.PopMaskingEnabled()

	b.B(head)
	b.Place(done)
}

func (l *lowerer) cond(c ast.Cond) ir.Expr {
	return l.b.Cmp(ir.Cond(c.Op), l.operand(c.L), l.operand(c.R))
}

func (l *lowerer) operand(o ast.Operand) ir.Expr {
	b := l.b

	if o.IsImm() {
		return b.Splat(b.Imm(b.Types().Int(), o.Imm))
	}

	if x, ok := l.inputs[o.Name]; ok {
		return x
	}

	p, ok := l.vars[o.Name]
	ir.Assert(ok, "undefined name %v", o.Name)

	return b.Load(p)
}
