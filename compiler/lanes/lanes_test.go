package lanes

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := Of(16, 0, 3, 7)

	assert.Equal(t, 16, s.Width())
	assert.Equal(t, uint64(0b1000_1001), s.Bits())
	assert.Equal(t, 3, s.Size())
	assert.Equal(t, 0, s.First())
	assert.Equal(t, []int{0, 3, 7}, s.Lanes())

	assert.True(t, s.IsSet(3))
	assert.False(t, s.IsSet(4))

	s.Clear(0)
	assert.Equal(t, 3, s.First())

	s.Set(15)
	assert.Equal(t, []int{3, 7, 15}, s.Lanes())

	assert.Equal(t, -1, Make(8).First())
	assert.True(t, Make(8).Empty())
	assert.True(t, All(8).Full())
	assert.Equal(t, uint64(0xff), All(8).Bits())
	assert.Equal(t, ^uint64(0), All(64).Bits())
}

func TestSetOps(t *testing.T) {
	a := Of(8, 0, 1, 2, 3)
	b := Of(8, 2, 3, 4, 5)

	assert.Equal(t, Of(8, 2, 3), a.And(b))
	assert.Equal(t, Of(8, 0, 1, 2, 3, 4, 5), a.Or(b))
	assert.Equal(t, Of(8, 0, 1), a.AndNot(b))
	assert.Equal(t, Of(8, 4, 5, 6, 7), a.Not())

	assert.True(t, a.And(b).SubsetOf(a))
	assert.False(t, a.SubsetOf(b))

	assert.Equal(t, a, FromBools(a.Bools()))
	assert.Equal(t, a, FromBits(8, 0xf0f))
}

func TestSetRandom(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))

	for _, w := range []int{1, 4, 8, 16, 33, 64} {
		for i := 0; i < 100; i++ {
			s := FromBits(w, rnd.Uint64())

			assert.Equal(t, s.Width(), len(s.Bools()))
			assert.Equal(t, s.Size(), len(s.Lanes()))
			assert.True(t, s.Not().Not() == s)
			assert.True(t, s.And(s.Not()).Empty())
			assert.True(t, s.Or(s.Not()).Full())
		}
	}
}

func TestSetPanics(t *testing.T) {
	s := Make(4)

	assert.Panics(t, func() { s.Set(4) })
	assert.Panics(t, func() { s.IsSet(-1) })
	assert.Panics(t, func() { s.And(Make(8)) })
	assert.Panics(t, func() { Make(65) })
}
