package tp

import "fmt"

type (
	Type interface {
		Size() int
		String() string
	}

	Bool struct{}

	Int struct {
		Bits   int16
		Signed bool
	}

	Float struct {
		Bits int16
	}

	// String is an opaque handle to an interned string.
	String struct{}

	Ptr struct {
		X Type
	}

	// Triple is a point, vector, normal or color.
	Triple struct {
		X Type
	}

	// Matrix is 4x4.
	Matrix struct {
		X Type
	}

	Vector struct {
		X     Type
		Width int
	}
)

func (x Bool) Size() int { return 1 }

func (x Int) Size() int {
	return (int(x.Bits) + 7) / 8
}

func (x Float) Size() int {
	return int(x.Bits) / 8
}

func (x String) Size() int { return 8 }

func (x Ptr) Size() int { return 8 }

func (x Triple) Size() int {
	return 3 * x.X.Size()
}

func (x Matrix) Size() int {
	return 16 * x.X.Size()
}

func (x Vector) Size() int {
	if _, ok := x.X.(Bool); ok {
		return (x.Width + 7) / 8
	}

	return x.X.Size() * x.Width
}

func (x Bool) String() string { return "i1" }

func (x Int) String() string {
	return fmt.Sprintf("i%d", x.Bits)
}

func (x Float) String() string {
	switch x.Bits {
	case 32:
		return "float"
	case 64:
		return "double"
	default:
		return fmt.Sprintf("f%d", x.Bits)
	}
}

func (x String) String() string { return "str" }

func (x Ptr) String() string {
	return x.X.String() + "*"
}

func (x Triple) String() string {
	return fmt.Sprintf("{%v, %[1]v, %[1]v}", x.X)
}

func (x Matrix) String() string {
	return fmt.Sprintf("[16 x %v]", x.X)
}

func (x Vector) String() string {
	return fmt.Sprintf("<%d x %v>", x.Width, x.X)
}

func IsBool(t Type) bool {
	switch t := t.(type) {
	case Bool:
		return true
	case Vector:
		return IsBool(t.X)
	}

	return false
}

func IsInt(t Type) bool {
	switch t := t.(type) {
	case Int:
		return true
	case Vector:
		return IsInt(t.X)
	}

	return false
}

// Elem returns the lane type of a vector and t itself otherwise.
func Elem(t Type) Type {
	if v, ok := t.(Vector); ok {
		return v.X
	}

	return t
}

// Lanes returns the vector width of t, 1 for scalars.
func Lanes(t Type) int {
	if v, ok := t.(Vector); ok {
		return v.Width
	}

	return 1
}

// Bits returns the bit width of a bool or int lane.
func Bits(t Type) int {
	switch t := Elem(t).(type) {
	case Bool:
		return 1
	case Int:
		return int(t.Bits)
	case Float:
		return int(t.Bits)
	}

	return 0
}
