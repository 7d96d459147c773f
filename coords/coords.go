// Package coords holds the affine matrices and rectangles used to place
// content on pages whose /Rotate is not zero.
package coords

import (
	"errors"
	"math"
)

// Matrix is a PDF transformation [a b c d e f].
type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// Multiply returns m followed by o.
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2], m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2], m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4], m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

type Point struct{ X, Y float64 }

func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, errors.New("matrix singular")
	}
	return Matrix{
		m[3] / det, -m[1] / det, -m[2] / det, m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det, (m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

func (m Matrix) IsIdentity() bool { return m == Identity() }

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }
func Scale(sx, sy float64) Matrix     { return Matrix{sx, 0, 0, sy, 0, 0} }

// Rect is a normalized rectangle in points.
type Rect struct {
	LLX, LLY, URX, URY float64
}

// NewRect normalizes the corners.
func NewRect(x1, y1, x2, y2 float64) Rect {
	return Rect{math.Min(x1, x2), math.Min(y1, y2), math.Max(x1, x2), math.Max(y1, y2)}
}

func (r Rect) Width() float64  { return r.URX - r.LLX }
func (r Rect) Height() float64 { return r.URY - r.LLY }

// Transform maps the four corners through m and returns their bounding box.
func (r Rect) Transform(m Matrix) Rect {
	pts := [4]Point{
		m.Transform(Point{r.LLX, r.LLY}), m.Transform(Point{r.URX, r.LLY}),
		m.Transform(Point{r.LLX, r.URY}), m.Transform(Point{r.URX, r.URY}),
	}
	out := Rect{pts[0].X, pts[0].Y, pts[0].X, pts[0].Y}
	for _, p := range pts[1:] {
		out.LLX, out.URX = math.Min(out.LLX, p.X), math.Max(out.URX, p.X)
		out.LLY, out.URY = math.Min(out.LLY, p.Y), math.Max(out.URY, p.Y)
	}
	return out
}

// NormalizeRotation folds any multiple of 90 into 0, 90, 180 or 270.
func NormalizeRotation(rotate int) int {
	r := rotate % 360
	if r < 0 {
		r += 360
	}
	return r - r%90
}

// PageRotation returns the matrix that lets content drawn in the rotated
// (visual) page space land correctly on a page of width w and height h
// carrying the given /Rotate. Zero rotation yields the identity.
func PageRotation(rotate int, w, h float64) Matrix {
	switch NormalizeRotation(rotate) {
	case 90:
		return Matrix{0, 1, -1, 0, w, 0}
	case 180:
		return Matrix{-1, 0, 0, -1, w, h}
	case 270:
		return Matrix{0, -1, 1, 0, 0, h}
	}
	return Identity()
}

// ToVisual converts a rectangle in default user space to the rotated page
// space a viewer displays.
func ToVisual(r Rect, rotate int, w, h float64) Rect {
	inv, err := PageRotation(rotate, w, h).Inverse()
	if err != nil {
		return r
	}
	return r.Transform(inv)
}
