package lanes

import (
	"math/bits"

	"tlog.app/go/tlog/tlwire"
)

type (
	// Set is a concrete activity mask of up to 64 lanes.
	Set struct {
		b     uint64
		width int
	}
)

func Make(width int) Set {
	if width < 1 || width > 64 {
		panic(width)
	}

	return Set{width: width}
}

func All(width int) Set {
	s := Make(width)
	s.b = s.full()

	return s
}

func Of(width int, ls ...int) Set {
	s := Make(width)

	for _, l := range ls {
		s.Set(l)
	}

	return s
}

func FromBits(width int, b uint64) Set {
	s := Make(width)
	s.b = b & s.full()

	return s
}

func FromBools(bs []bool) Set {
	s := Make(len(bs))

	for i, b := range bs {
		if b {
			s.Set(i)
		}
	}

	return s
}

func (s Set) Width() int   { return s.width }
func (s Set) Bits() uint64 { return s.b }

func (s *Set) Set(i int) {
	s.check(i)

	s.b |= 1 << i
}

func (s *Set) Clear(i int) {
	s.check(i)

	s.b &^= 1 << i
}

func (s Set) IsSet(i int) bool {
	s.check(i)

	return s.b&(1<<i) != 0
}

func (s Set) And(x Set) Set {
	s.same(x)

	s.b &= x.b
	return s
}

func (s Set) Or(x Set) Set {
	s.same(x)

	s.b |= x.b
	return s
}

func (s Set) AndNot(x Set) Set {
	s.same(x)

	s.b &^= x.b
	return s
}

func (s Set) Not() Set {
	s.b = ^s.b & s.full()

	return s
}

func (s Set) Size() int {
	return bits.OnesCount64(s.b)
}

func (s Set) Empty() bool { return s.b == 0 }
func (s Set) Full() bool  { return s.b == s.full() }

// First returns the lowest active lane or -1.
func (s Set) First() int {
	if s.b == 0 {
		return -1
	}

	return bits.TrailingZeros64(s.b)
}

// SubsetOf reports whether every lane of s is set in x.
func (s Set) SubsetOf(x Set) bool {
	s.same(x)

	return s.b&^x.b == 0
}

func (s Set) Range(f func(i int) bool) {
	for x := s.b; x != 0; x &= x - 1 {
		if !f(bits.TrailingZeros64(x)) {
			return
		}
	}
}

func (s Set) Lanes() (r []int) {
	s.Range(func(i int) bool {
		r = append(r, i)
		return true
	})

	return r
}

func (s Set) Bools() []bool {
	r := make([]bool, s.width)

	for i := range r {
		r[i] = s.IsSet(i)
	}

	return r
}

func (s Set) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	b = e.AppendTag(b, tlwire.Array, -1)

	s.Range(func(i int) bool {
		b = e.AppendInt(b, i)

		return true
	})

	b = e.AppendBreak(b)

	return b
}

func (s Set) full() uint64 {
	return ^uint64(0) >> (64 - s.width)
}

func (s Set) check(i int) {
	if i < 0 || i >= s.width {
		panic(i)
	}
}

func (s Set) same(x Set) {
	if s.width != x.width {
		panic(x)
	}
}
