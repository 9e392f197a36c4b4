package render

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"image/color"
	"io"
	"strings"

	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/paging"
)

// SVG is a surface writing an SVG document.
type SVG struct {
	w      *bufio.Writer
	err    error
	scale  float64
	origin rosen.Point
	clips  int
	inClip bool
}

var _ paging.Surface = (*SVG)(nil)

// NewSVG starts a document of the given size in device units. Close must be called to finish it.
func NewSVG(w io.Writer, size rosen.Size, title string) *SVG {
	s := &SVG{w: bufio.NewWriter(w), scale: 1}
	s.printf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<title>%s</title>
`, size.Width, size.Height, size.Width, size.Height, escape(title))
	return s
}

func escape(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

func (s *SVG) printf(format string, a ...interface{}) {
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.w, format, a...)
}

func hex(c color.Color) (string, float64) {
	r, g, b, a := c.RGBA()
	if a == 0 {
		return "none", 0
	}
	// un-premultiply
	r, g, b = r*0xFFFF/a, g*0xFFFF/a, b*0xFFFF/a
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8), float64(a) / 0xFFFF
}

func (s *SVG) pt(p rosen.Point) rosen.Point {
	return rosen.Point{X: (p.X - s.origin.X) * s.scale, Y: (p.Y - s.origin.Y) * s.scale}
}

func (s *SVG) rect(r rosen.Rect) rosen.Rect {
	p := s.pt(rosen.Point{X: r.X, Y: r.Y})
	return rosen.Rect{X: p.X, Y: p.Y, Width: r.Width * s.scale, Height: r.Height * s.scale}
}

func (s *SVG) SetTransform(scale float64, origin rosen.Point) {
	s.scale = scale
	s.origin = origin
}

func (s *SVG) SetClip(r rosen.Rect) {
	if s.inClip {
		s.printf("</g>\n")
		s.inClip = false
	}
	if r.Size().IsEmpty() {
		return
	}
	s.clips++
	d := s.rect(r)
	s.printf(`<clipPath id="clip%d"><rect x="%.2f" y="%.2f" width="%.2f" height="%.2f"/></clipPath>
<g clip-path="url(#clip%d)">
`, s.clips, d.X, d.Y, d.Width, d.Height, s.clips)
	s.inClip = true
}

func (s *SVG) Line(from, to rosen.Point, width float64, c color.Color) {
	a, b := s.pt(from), s.pt(to)
	col, op := hex(c)
	s.printf(`<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-opacity="%.2f" stroke-width="%.2f"/>
`, a.X, a.Y, b.X, b.Y, col, op, width*s.scale)
}

func (s *SVG) FillRect(r rosen.Rect, c color.Color) {
	d := s.rect(r)
	col, op := hex(c)
	s.printf(`<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s" fill-opacity="%.2f"/>
`, d.X, d.Y, d.Width, d.Height, col, op)
}

func (s *SVG) StrokeRect(r rosen.Rect, width float64, c color.Color) {
	d := s.rect(r)
	col, op := hex(c)
	s.printf(`<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="none" stroke="%s" stroke-opacity="%.2f" stroke-width="%.2f"/>
`, d.X, d.Y, d.Width, d.Height, col, op, width*s.scale)
}

func (s *SVG) Text(p rosen.Point, size float64, text string, c color.Color) {
	a := s.pt(p)
	col, _ := hex(c)
	s.printf(`<text x="%.2f" y="%.2f" font-family="sans-serif" font-size="%.2f" dominant-baseline="hanging" fill="%s">%s</text>
`, a.X, a.Y, size*s.scale, col, escape(text))
}

// Close ends the document and returns the first write error.
func (s *SVG) Close() error {
	s.SetClip(rosen.Rect{})
	s.printf("</svg>\n")
	if s.err != nil {
		return s.err
	}
	return s.w.Flush()
}
