package caps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForISA(t *testing.T) {
	for _, tc := range []struct {
		isa    ISA
		width  int
		native bool
	}{
		{Scalar, 1, false},
		{SSE42, 4, false},
		{NEON, 4, false},
		{AVX, 8, false},
		{AVX2, 8, false},
		{AVX512, 16, true},
	} {
		c, err := ForISA(tc.isa)
		require.NoError(t, err, "%v", tc.isa)

		assert.Equal(t, tc.isa, c.ISA)
		assert.Equal(t, tc.width, c.Width, "%v", tc.isa)
		assert.Equal(t, tc.native, c.NativeBitMasks, "%v", tc.isa)
		assert.Equal(t, tc.native, c.MaskedStores, "%v", tc.isa)
		assert.Equal(t, tc.width, c.Types().Width())
	}

	_, err := ForISA("mmx")
	assert.Error(t, err)
}

func TestDetect(t *testing.T) {
	c := Detect()

	assert.NotEqual(t, ISA(""), c.ISA)
	assert.NotEqual(t, Host, c.ISA)
	assert.GreaterOrEqual(t, c.Width, 1)

	h, err := ForISA(Host)
	require.NoError(t, err)
	assert.Equal(t, c, h)
}

func TestResolve(t *testing.T) {
	t.Setenv(EnvISA, "")
	t.Setenv(EnvWidth, "")

	c, err := Resolve("avx2", 0)
	require.NoError(t, err)
	assert.Equal(t, Table{ISA: AVX2, Width: 8}, c)

	c, err = Resolve("AVX512", 32)
	require.NoError(t, err)
	assert.Equal(t, 32, c.Width)
	assert.True(t, c.NativeBitMasks)

	t.Setenv(EnvISA, "neon")
	t.Setenv(EnvWidth, "16")

	c, err = Resolve("", 0)
	require.NoError(t, err)
	assert.Equal(t, Table{ISA: NEON, Width: 16}, c)

	c, err = Resolve("sse4.2", 0)
	require.NoError(t, err)
	assert.Equal(t, Table{ISA: SSE42, Width: 16}, c)

	t.Setenv(EnvWidth, "wide")

	_, err = Resolve("", 0)
	assert.Error(t, err)

	_, err = Resolve("avx", 65)
	assert.Error(t, err)

	_, err = Resolve("avx", -1)
	assert.Error(t, err)
}
