package homography

import (
	"strconv"
	"strings"
)

// Matrix4 is a 4x4 perspective matrix stored column-major, the order CSS
// matrix3d() expects.
type Matrix4 [16]float64

// Identity4 returns the 4x4 identity matrix.
func Identity4() Matrix4 {
	return Matrix4{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
}

// Embed places h into a 4x4 matrix acting on (x, y, 0, 1). The z row and column
// stay identity; the projective terms of h land in the w row and column.
func Embed(h Matrix3) Matrix4 {
	return Matrix4{
		h[0], h[3], 0, h[6],
		h[1], h[4], 0, h[7],
		0, 0, 1, 0,
		h[2], h[5], 0, h[8],
	}
}

// At returns the entry at row r, column c.
func (m Matrix4) At(r, c int) float64 {
	return m[c*4+r]
}

// Apply projects the point (p.X, p.Y, 0, 1) through m and divides by w.
func (m Matrix4) Apply(p Point) (Point, bool) {
	w := m.At(3, 0)*p.X + m.At(3, 1)*p.Y + m.At(3, 3)
	if w == 0 {
		return Point{}, false
	}
	return Point{
		X: (m.At(0, 0)*p.X + m.At(0, 1)*p.Y + m.At(0, 3)) / w,
		Y: (m.At(1, 0)*p.X + m.At(1, 1)*p.Y + m.At(1, 3)) / w,
	}, true
}

// Values returns the 16 entries in column-major order.
func (m Matrix4) Values() []float64 {
	out := make([]float64, len(m))
	copy(out, m[:])
	return out
}

// CSS renders m as a matrix3d() transform value.
func (m Matrix4) CSS() string {
	parts := make([]string, len(m))
	for i, v := range m {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "matrix3d(" + strings.Join(parts, ",") + ")"
}
