package caps

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/cpu"
	"tlog.app/go/errors"

	"github.com/slowlang/wide/compiler/tp"
)

type (
	ISA string

	// Table is resolved once when a backend is configured.
	// Code generation never re-checks the host.
	Table struct {
		ISA   ISA
		Width int

		// NativeBitMasks: the target has predicate registers,
		// a lane mask is interchangeable with a W-bit integer.
		NativeBitMasks bool

		// MaskedStores: the target can predicate a vector store.
		MaskedStores bool
	}
)

const (
	Scalar ISA = "scalar"
	SSE42  ISA = "sse4.2"
	AVX    ISA = "avx"
	AVX2   ISA = "avx2"
	AVX512 ISA = "avx512"
	NEON   ISA = "neon"

	Host ISA = "host"
)

const (
	EnvISA   = "WIDE_ISA"
	EnvWidth = "WIDE_WIDTH"
)

func ForISA(isa ISA) (Table, error) {
	switch isa {
	case Scalar:
		return Table{ISA: isa, Width: 1}, nil
	case SSE42, NEON:
		return Table{ISA: isa, Width: 4}, nil
	case AVX, AVX2:
		return Table{ISA: isa, Width: 8}, nil
	case AVX512:
		return Table{ISA: isa, Width: 16, NativeBitMasks: true, MaskedStores: true}, nil
	case Host, "":
		return Detect(), nil
	}

	return Table{}, errors.New("unsupported isa: %q", isa)
}

// Detect inspects the host cpu.
func Detect() Table {
	var isa ISA

	switch {
	case cpu.X86.HasAVX512F && cpu.X86.HasAVX512BW:
		isa = AVX512
	case cpu.X86.HasAVX2:
		isa = AVX2
	case cpu.X86.HasAVX:
		isa = AVX
	case cpu.X86.HasSSE42:
		isa = SSE42
	case cpu.ARM64.HasASIMD:
		isa = NEON
	default:
		isa = Scalar
	}

	t, _ := ForISA(isa)

	return t
}

// Resolve picks the table for the requested isa and width.
// Environment overrides an empty request, host is detected last.
// Width 0 keeps the isa default.
func Resolve(isa string, width int) (t Table, err error) {
	if isa == "" {
		isa = os.Getenv(EnvISA)
	}

	t, err = ForISA(ISA(strings.ToLower(isa)))
	if err != nil {
		return t, err
	}

	if width == 0 {
		if env := os.Getenv(EnvWidth); env != "" {
			width, err = strconv.Atoi(env)
			if err != nil {
				return t, errors.Wrap(err, "parse %v", EnvWidth)
			}
		}
	}

	if width != 0 {
		t, err = t.WithWidth(width)
	}

	return t, err
}

func (t Table) WithWidth(w int) (Table, error) {
	if w < 1 || w > tp.MaxWidth {
		return t, errors.New("lane width %d out of range 1..%d", w, tp.MaxWidth)
	}

	t.Width = w

	return t, nil
}

func (t Table) Types() *tp.Registry {
	return tp.NewRegistry(t.Width)
}
