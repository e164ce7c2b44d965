package tp

type (
	// Registry hands out the scalar and W-wide variants
	// of the types generated code works with.
	Registry struct {
		width int

		boolT   Bool
		intT    Int
		floatT  Float
		stringT String
	}
)

const MaxWidth = 64

func NewRegistry(width int) *Registry {
	if width < 1 || width > MaxWidth {
		panic(width)
	}

	return &Registry{
		width:  width,
		intT:   Int{Bits: 32, Signed: true},
		floatT: Float{Bits: 32},
	}
}

func (r *Registry) Width() int { return r.width }

func (r *Registry) Bool() Type       { return r.boolT }
func (r *Registry) Int() Type        { return r.intT }
func (r *Registry) Float() Type      { return r.floatT }
func (r *Registry) Handle() Type     { return r.stringT }
func (r *Registry) Triple() Type     { return Triple{X: r.floatT} }
func (r *Registry) Matrix() Type     { return Matrix{X: r.floatT} }
func (r *Registry) WideBool() Type   { return r.Wide(r.boolT) }
func (r *Registry) WideInt() Type    { return r.Wide(r.intT) }
func (r *Registry) WideFloat() Type  { return r.Wide(r.floatT) }
func (r *Registry) WideHandle() Type { return r.Wide(r.stringT) }
func (r *Registry) WideTriple() Type { return r.Wide(r.Triple()) }
func (r *Registry) WideMatrix() Type { return r.Wide(r.Matrix()) }

// IntN is an unsigned scalar of the given width,
// e.g. IntN(Width()) holds one bit per lane.
func (r *Registry) IntN(bits int) Type {
	return Int{Bits: int16(bits)}
}

// Wide returns the W-lane variant of t.
// Aggregates are widened per component.
func (r *Registry) Wide(t Type) Type {
	switch t := t.(type) {
	case Vector:
		return t
	case Triple:
		return Triple{X: r.Wide(t.X)}
	case Matrix:
		return Matrix{X: r.Wide(t.X)}
	case Ptr:
		panic(t)
	}

	return Vector{X: t, Width: r.width}
}

// Scalar is the inverse of Wide.
func (r *Registry) Scalar(t Type) Type {
	switch t := t.(type) {
	case Vector:
		return t.X
	case Triple:
		return Triple{X: r.Scalar(t.X)}
	case Matrix:
		return Matrix{X: r.Scalar(t.X)}
	}

	return t
}

func (r *Registry) IsWide(t Type) bool {
	switch t := t.(type) {
	case Vector:
		return t.Width == r.width
	case Triple:
		return r.IsWide(t.X)
	case Matrix:
		return r.IsWide(t.X)
	}

	return false
}
