// Package arena pools compilation contexts.
//
// A context is a type registry and a package buffer for one lane width.
// Contexts are owned by exactly one Handle at a time and live until
// the process exits.
//
// Package is reset on Release and must not be used afterwards.
// Types is never mutated, so values built with it may outlive the handle.
package arena

import (
	"sync"

	"github.com/slowlang/wide/compiler/ir"
	"github.com/slowlang/wide/compiler/tp"
)

type (
	Context struct {
		Types   *tp.Registry
		Package *ir.Package

		refs int
	}

	Handle struct {
		*Context

		p *Pool
	}

	Pool struct {
		mu   sync.Mutex
		free map[int][]*Context

		created int
	}
)

var Default Pool

// Acquire takes a context from the default pool.
func Acquire(width int) *Handle { return Default.Acquire(width) }

func (p *Pool) Acquire(width int) *Handle {
	defer p.mu.Unlock()
	p.mu.Lock()

	var c *Context

	if l := p.free[width]; len(l) != 0 {
		c = l[len(l)-1]
		p.free[width] = l[:len(l)-1]
	} else {
		c = &Context{
			Types:   tp.NewRegistry(width),
			Package: &ir.Package{},
		}

		p.created++
	}

	if c.refs != 0 {
		panic("arena: context in use is in the free list")
	}

	c.refs++

	return &Handle{Context: c, p: p}
}

// Release returns the context to the pool. The handle must not be used afterwards.
func (h *Handle) Release() {
	p := h.p

	defer p.mu.Unlock()
	p.mu.Lock()

	c := h.Context
	if c == nil || c.refs != 1 {
		panic("arena: double release")
	}

	c.refs--
	h.Context = nil

	c.Package.Path = ""
	c.Package.Funcs = c.Package.Funcs[:0]

	if p.free == nil {
		p.free = map[int][]*Context{}
	}

	w := c.Types.Width()
	p.free[w] = append(p.free[w], c)
}

// Stats reports contexts ever created and those waiting for reuse.
func (p *Pool) Stats() (created, free int) {
	defer p.mu.Unlock()
	p.mu.Lock()

	for _, l := range p.free {
		free += len(l)
	}

	return p.created, free
}
