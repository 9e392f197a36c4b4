package paging

import (
	"context"
	"errors"
	"fmt"
	"image/color"

	"go.uber.org/zap"
	"nyiyui.ca/hato/rosen"
)

// ErrCancelled is returned when a progress sink or context stops pagination.
var ErrCancelled = errors.New("cancelled by user")

// Surface is a drawing target. Coordinates are in content space and are mapped onto the device
// by the last SetTransform.
type Surface interface {
	// SetTransform maps content point p to device point (p - origin) * scale.
	SetTransform(scale float64, origin rosen.Point)
	// SetClip limits drawing to r; an empty rect removes the clip.
	SetClip(r rosen.Rect)
	Line(from, to rosen.Point, width float64, c color.Color)
	FillRect(r rosen.Rect, c color.Color)
	StrokeRect(r rosen.Rect, width float64, c color.Color)
	// Text draws s with its top left corner at p.
	Text(p rosen.Point, size float64, s string, c color.Color)
}

// SceneRenderer draws the content inside rect.
type SceneRenderer interface {
	Render(target Surface, rect rosen.Rect) error
}

// PageSink receives the pages of a paged output.
type PageSink interface {
	// BeginPage starts a page and returns the surface to draw it on.
	BeginPage(p Page, isFirst bool) (Surface, error)
	// EndPage finishes the page started last.
	EndPage(p Page) error
}

// ProgressSink is told about every finished page.
type ProgressSink interface {
	// ReportAndContinue returns false to stop pagination.
	ReportAndContinue(current, max int) bool
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(current, max int) bool

func (f ProgressFunc) ReportAndContinue(current, max int) bool { return f(current, max) }

var marginColor = color.RGBA{0x80, 0x80, 0x80, 0xFF}

// Paginate draws every page of plan in row-major order. It stops without drawing the
// remaining pages when progress or ctx ask it to.
func Paginate(ctx context.Context, plan Plan, sink PageSink, r SceneRenderer, progress ProgressSink) error {
	l := plan.Layout
	for i, p := range plan.Pages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("page %d: %w", i, ErrCancelled)
		}
		surf, err := sink.BeginPage(p, i == 0)
		if err != nil {
			return fmt.Errorf("begin page %s: %w", p.Label, err)
		}
		surf.SetTransform(l.PremultipliedScale, rosen.Point{X: p.Clip.X, Y: p.Clip.Y})
		surf.SetClip(p.Clip)
		if err := r.Render(surf, p.Clip); err != nil {
			return fmt.Errorf("render page %s: %w", p.Label, err)
		}
		if l.DrawPageMargins {
			surf.StrokeRect(p.Source, plan.PenWidth, marginColor)
		}
		if l.PageNumbers {
			at := rosen.Point{X: p.Source.X + plan.PenWidth, Y: p.Source.Y + plan.PenWidth}
			surf.Text(at, plan.FontSize, p.Label, color.Black)
		}
		if err := sink.EndPage(p); err != nil {
			return fmt.Errorf("end page %s: %w", p.Label, err)
		}
		zap.S().Debugw("page done", "label", p.Label)
		if progress != nil && !progress.ReportAndContinue(i+1, len(plan.Pages)) {
			return ErrCancelled
		}
	}
	return nil
}
