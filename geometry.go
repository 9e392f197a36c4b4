package rosen

import "math"

// Point, Size and Rect are in content space: x grows rightwards along the line, y grows
// downwards with time.

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s Size) IsEmpty() bool { return s.Width <= 0 || s.Height <= 0 }

type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func RectFromSize(s Size) Rect { return Rect{Width: s.Width, Height: s.Height} }

func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y + r.Height }
func (r Rect) Size() Size      { return Size{r.Width, r.Height} }

// Scaled multiplies every component by f.
func (r Rect) Scaled(f float64) Rect {
	return Rect{r.X * f, r.Y * f, r.Width * f, r.Height * f}
}

// Inset shrinks r by d on all four sides (grows it when d is negative).
func (r Rect) Inset(d float64) Rect {
	return Rect{r.X + d, r.Y + d, r.Width - 2*d, r.Height - 2*d}
}

func (r Rect) Intersect(o Rect) Rect {
	x0 := math.Max(r.X, o.X)
	y0 := math.Max(r.Y, o.Y)
	x1 := math.Min(r.Right(), o.Right())
	y1 := math.Min(r.Bottom(), o.Bottom())
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{x0, y0, x1 - x0, y1 - y0}
}

func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}
