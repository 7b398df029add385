// Package homography computes the planar projective transform that maps one
// quadrilateral onto another.
package homography

import (
	"errors"
	"math"
)

// ErrDegenerateMapping is returned when a quadrilateral has three collinear corners
// or the resulting transform cannot be normalized.
var ErrDegenerateMapping = errors.New("degenerate mapping")

// Point is a 2D point in pixel units.
type Point struct {
	X float64
	Y float64
}

// Quad holds four corners ordered topLeft, topRight, bottomRight, bottomLeft.
type Quad [4]Point

// Rect returns the quad of a w x h box anchored at the origin.
func Rect(w, h float64) Quad {
	return Quad{{0, 0}, {w, 0}, {w, h}, {0, h}}
}

// Scale returns the quad with every coordinate multiplied by k.
func (q Quad) Scale(k float64) Quad {
	for i := range q {
		q[i].X *= k
		q[i].Y *= k
	}
	return q
}

// Matrix3 is a row-major 3x3 matrix.
type Matrix3 [9]float64

// Identity3 returns the 3x3 identity matrix.
func Identity3() Matrix3 {
	return Matrix3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Solve returns the projective matrix H, normalized so H[2][2] is 1, that sends
// every src corner onto the matching dst corner.
func Solve(src, dst Quad) (Matrix3, error) {
	bs, err := basisToPoints(src)
	if err != nil {
		return Matrix3{}, err
	}
	bd, err := basisToPoints(dst)
	if err != nil {
		return Matrix3{}, err
	}

	// adj(bs) is bs^-1 up to a scalar that the normalization below removes.
	h := bd.Mul(bs.Adjugate())
	n := h[8]
	if n == 0 {
		return Matrix3{}, ErrDegenerateMapping
	}
	for i := range h {
		h[i] /= n
	}
	if !h.finite() {
		return Matrix3{}, ErrDegenerateMapping
	}
	return h, nil
}

// basisToPoints returns the matrix mapping the canonical basis (1,0,0), (0,1,0),
// (0,0,1), (1,1,1) onto the four corners of q.
func basisToPoints(q Quad) (Matrix3, error) {
	m := Matrix3{
		q[0].X, q[1].X, q[2].X,
		q[0].Y, q[1].Y, q[2].Y,
		1, 1, 1,
	}
	det := m.Det()
	if det == 0 {
		return Matrix3{}, ErrDegenerateMapping
	}
	adj := m.Adjugate()
	x, y := q[3].X, q[3].Y
	s0 := (adj[0]*x + adj[1]*y + adj[2]) / det
	s1 := (adj[3]*x + adj[4]*y + adj[5]) / det
	s2 := (adj[6]*x + adj[7]*y + adj[8]) / det
	// A zero coefficient means the fourth corner lies on a line through two others.
	if s0 == 0 || s1 == 0 || s2 == 0 {
		return Matrix3{}, ErrDegenerateMapping
	}
	return Matrix3{
		m[0] * s0, m[1] * s1, m[2] * s2,
		m[3] * s0, m[4] * s1, m[5] * s2,
		s0, s1, s2,
	}, nil
}

// Det returns the determinant by cofactor expansion along the first row.
func (m Matrix3) Det() float64 {
	return m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])
}

// Adjugate returns the transpose of the cofactor matrix.
func (m Matrix3) Adjugate() Matrix3 {
	return Matrix3{
		m[4]*m[8] - m[5]*m[7], m[2]*m[7] - m[1]*m[8], m[1]*m[5] - m[2]*m[4],
		m[5]*m[6] - m[3]*m[8], m[0]*m[8] - m[2]*m[6], m[2]*m[3] - m[0]*m[5],
		m[3]*m[7] - m[4]*m[6], m[1]*m[6] - m[0]*m[7], m[0]*m[4] - m[1]*m[3],
	}
}

// Mul returns m * o.
func (m Matrix3) Mul(o Matrix3) Matrix3 {
	var out Matrix3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = m[r*3]*o[c] + m[r*3+1]*o[3+c] + m[r*3+2]*o[6+c]
		}
	}
	return out
}

// Apply projects p through m. ok is false when p maps to infinity.
func (m Matrix3) Apply(p Point) (Point, bool) {
	w := m[6]*p.X + m[7]*p.Y + m[8]
	if w == 0 {
		return Point{}, false
	}
	return Point{
		X: (m[0]*p.X + m[1]*p.Y + m[2]) / w,
		Y: (m[3]*p.X + m[4]*p.Y + m[5]) / w,
	}, true
}

// finite reports whether every entry is a finite number.
func (m Matrix3) finite() bool {
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
