// Package paging splits a diagram into printable pages.
package paging

import (
	"errors"
	"fmt"
	"math"

	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/config"
)

// DefaultResolution is the resolution page sizes are given in.
const DefaultResolution = 72.0

const (
	// MinEffectiveSize is the smallest content extent a page may show on either axis.
	MinEffectiveSize = 1.0
	// MaxPages bounds the pages of one plan.
	MaxPages = 10000
)

var (
	ErrPageTooSmall = errors.New("page is smaller than its margins")
	ErrTooManyPages = errors.New("too many pages")
)

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// PageLayout is the page setup of a paged output.
type PageLayout struct {
	// DevicePageRect is the page in device pixels at Resolution.
	DevicePageRect rosen.Rect
	Resolution     float64
	// PremultipliedScale is ScaleFactor compensated for Resolution.
	PremultipliedScale float64
	ScaleFactor        float64

	// MarginWidth is the overlap on every side of a page, in content units.
	MarginWidth        float64
	MarginPenWidth     float64
	DrawPageMargins    bool
	PageNumbers        bool
	PageNumberFontSize float64

	HorizPageCount int
	VertPageCount  int
}

func NewPageLayout(cfg config.PrintConfig) PageLayout {
	l := PageLayout{
		DevicePageRect:     rosen.Rect{Width: cfg.PageWidth, Height: cfg.PageHeight},
		ScaleFactor:        cfg.ScaleFactor,
		MarginWidth:        cfg.MarginWidth,
		MarginPenWidth:     cfg.MarginPenWidth,
		DrawPageMargins:    cfg.DrawPageMargins,
		PageNumbers:        cfg.PageNumbers,
		PageNumberFontSize: cfg.PageNumberFontSize,
	}
	res := cfg.Resolution
	if res <= 0 {
		res = DefaultResolution
	}
	l.UpdateResolution(res)
	return l
}

// UpdateResolution changes the device resolution, keeping the physical scale.
func (l *PageLayout) UpdateResolution(res float64) {
	l.Resolution = res
	l.PremultipliedScale = l.ScaleFactor * res / DefaultResolution
}

// ScaledPageRect is the page in content units.
func (l PageLayout) ScaledPageRect() rosen.Rect {
	return l.DevicePageRect.Scaled(1 / l.PremultipliedScale)
}

// EffectivePageSize is the content shown on each page, without the overlap margins.
func (l PageLayout) EffectivePageSize() rosen.Size {
	r := l.ScaledPageRect()
	return rosen.Size{
		Width:  r.Width - 2*l.MarginWidth,
		Height: r.Height - 2*l.MarginWidth,
	}
}

func (l PageLayout) validate() error {
	if !finite(l.ScaleFactor) || !finite(l.PremultipliedScale) || l.ScaleFactor <= 0 || l.PremultipliedScale <= 0 {
		return fmt.Errorf("scale factor %v must be positive", l.ScaleFactor)
	}
	if !finite(l.MarginWidth) || l.MarginWidth < 0 {
		return fmt.Errorf("margin width %v must not be negative", l.MarginWidth)
	}
	if !finite(l.DevicePageRect.Width) || !finite(l.DevicePageRect.Height) {
		return fmt.Errorf("page %vx%v must be finite", l.DevicePageRect.Width, l.DevicePageRect.Height)
	}
	eff := l.EffectivePageSize()
	if !(eff.Width >= MinEffectiveSize) || !(eff.Height >= MinEffectiveSize) {
		return fmt.Errorf("effective page %vx%v: %w", eff.Width, eff.Height, ErrPageTooSmall)
	}
	return nil
}

// CalculatePageCount sets the page counts needed for content and returns the effective page size.
func (l *PageLayout) CalculatePageCount(content rosen.Size) (rosen.Size, error) {
	if err := l.validate(); err != nil {
		return rosen.Size{}, err
	}
	if !finite(content.Width) || !finite(content.Height) {
		return rosen.Size{}, fmt.Errorf("content %vx%v must be finite", content.Width, content.Height)
	}
	eff := l.EffectivePageSize()
	horiz := math.Ceil(content.Width / eff.Width)
	vert := math.Ceil(content.Height / eff.Height)
	// compared as floats so huge counts cannot overflow int
	if horiz*vert > MaxPages {
		return rosen.Size{}, fmt.Errorf("%vx%v pages: %w", horiz, vert, ErrTooManyPages)
	}
	l.HorizPageCount = int(horiz)
	l.VertPageCount = int(vert)
	return eff, nil
}

// Page is one sheet of a paged output.
type Page struct {
	Row int `json:"row"`
	Col int `json:"col"`
	// Source is the content shown on this page without the margins.
	Source rosen.Rect `json:"source"`
	// Clip is Source grown by the margin on every side.
	Clip     rosen.Rect `json:"clip"`
	FirstRow bool       `json:"first-row"`
	FirstCol bool       `json:"first-col"`
	Label    string     `json:"label"`
}

// Plan is the result of planning a content rectangle onto pages.
type Plan struct {
	Layout        PageLayout `json:"layout"`
	Content       rosen.Rect `json:"content"`
	EffectiveSize rosen.Size `json:"effective-size"`
	// Pages are in row-major order.
	Pages []Page `json:"pages"`
	// PenWidth and FontSize are in content units, so they print at a constant physical size.
	PenWidth float64 `json:"pen-width"`
	FontSize float64 `json:"font-size"`
}

// PlanPages tiles content onto pages of the layout.
func PlanPages(content rosen.Rect, l PageLayout) (Plan, error) {
	eff, err := l.CalculatePageCount(content.Size())
	if err != nil {
		return Plan{}, err
	}
	p := Plan{
		Layout:        l,
		Content:       content,
		EffectiveSize: eff,
		Pages:         make([]Page, 0, l.HorizPageCount*l.VertPageCount),
		PenWidth:      l.MarginPenWidth / l.ScaleFactor,
		FontSize:      l.PageNumberFontSize / l.ScaleFactor,
	}
	for row := 0; row < l.VertPageCount; row++ {
		for col := 0; col < l.HorizPageCount; col++ {
			src := rosen.Rect{
				X:      content.X + float64(col)*eff.Width,
				Y:      content.Y + float64(row)*eff.Height,
				Width:  eff.Width,
				Height: eff.Height,
			}
			p.Pages = append(p.Pages, Page{
				Row:      row,
				Col:      col,
				Source:   src,
				Clip:     src.Inset(-l.MarginWidth),
				FirstRow: row == 0,
				FirstCol: col == 0,
				Label:    fmt.Sprintf("Row: %d/%d Col: %d/%d", row+1, l.VertPageCount, col+1, l.HorizPageCount),
			})
		}
	}
	return p, nil
}
