package arena

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slowlang/wide/compiler/ir"
)

func TestReuse(t *testing.T) {
	var p Pool

	h := p.Acquire(8)
	assert.Equal(t, 8, h.Types.Width())

	c := h.Context
	h.Package.Path = "x"
	h.Package.Funcs = append(h.Package.Funcs, &ir.Func{Name: "f"})

	h.Release()

	created, free := p.Stats()
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, free)

	h = p.Acquire(8)
	assert.Same(t, c, h.Context)
	assert.Equal(t, "", h.Package.Path)
	assert.Empty(t, h.Package.Funcs)

	h2 := p.Acquire(8)
	assert.NotSame(t, h.Context, h2.Context)

	h4 := p.Acquire(4)
	assert.Equal(t, 4, h4.Types.Width())

	h.Release()
	h2.Release()
	h4.Release()

	created, free = p.Stats()
	assert.Equal(t, 3, created)
	assert.Equal(t, 3, free)
}

func TestTypesOutliveHandle(t *testing.T) {
	var p Pool

	h := p.Acquire(16)
	types := h.Types
	wide := types.WideInt()

	h.Release()

	assert.Equal(t, 16, types.Width())
	assert.Equal(t, wide, types.WideInt())

	h = p.Acquire(16)
	defer h.Release()

	assert.Same(t, types, h.Types)
	assert.Equal(t, wide, h.Types.WideInt())
}

func TestDoubleRelease(t *testing.T) {
	var p Pool

	h := p.Acquire(4)
	h.Release()

	assert.PanicsWithValue(t, "arena: double release", h.Release)
}

func TestConcurrent(t *testing.T) {
	var p Pool
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func(w int) {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				h := p.Acquire(w)
				h.Package.Path = "p"
				h.Release()
			}
		}(1 + i%2)
	}

	wg.Wait()

	created, free := p.Stats()
	assert.Equal(t, created, free)
	assert.LessOrEqual(t, created, 8)
}
