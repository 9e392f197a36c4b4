// Package render draws layout snapshots onto paging surfaces.
package render

import (
	"fmt"
	"image/color"

	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/graph"
	"nyiyui.ca/hato/rosen/paging"
	"nyiyui.ca/hato/rosen/store"
)

var (
	colorWhite      = color.RGBA{255, 255, 255, 255}
	colorHourLine   = color.RGBA{200, 200, 200, 255}
	colorText       = color.RGBA{51, 51, 51, 255}
	colorPlainTrack = color.RGBA{160, 160, 160, 255}
	colorHeader     = color.RGBA{255, 255, 255, 220}
)

var categoryColors = map[rosen.JobCategory]color.RGBA{
	rosen.CategoryFreight:      {0x55, 0x55, 0x55, 0xFF},
	rosen.CategoryLIS:          {0x80, 0x80, 0x00, 0xFF},
	rosen.CategoryPostal:       {0xAA, 0x66, 0x00, 0xFF},
	rosen.CategoryRegional:     {0x00, 0x88, 0x00, 0xFF},
	rosen.CategoryFastRegional: {0x00, 0xAA, 0x66, 0xFF},
	rosen.CategoryLocal:        {0x00, 0x66, 0xCC, 0xFF},
	rosen.CategoryIntercity:    {0x00, 0x00, 0xFF, 0xFF},
	rosen.CategoryExpress:      {0x88, 0x00, 0xCC, 0xFF},
	rosen.CategoryDirect:       {0xCC, 0x00, 0x66, 0xFF},
	rosen.CategoryHighSpeed:    {0xFF, 0x00, 0x00, 0xFF},
}

// CategoryColor is the colour jobs of c are drawn with.
func CategoryColor(c rosen.JobCategory) color.RGBA {
	if col, ok := categoryColors[c]; ok {
		return col
	}
	return colorText
}

// TrackColor converts a persisted track colour; white tracks would vanish on paper, so they
// are drawn grey.
func TrackColor(rgb uint32) color.RGBA {
	if rgb == store.White {
		return colorPlainTrack
	}
	return color.RGBA{uint8(rgb >> 16), uint8(rgb >> 8), uint8(rgb), 0xFF}
}

const (
	labelSize  = 12
	headerSize = 14
)

// Diagram renders one snapshot. The hour labels and the station header stay pinned to the left
// and top of the rendered rect, so every page repeats them.
type Diagram struct {
	Snap *graph.Snapshot
}

var _ paging.SceneRenderer = (*Diagram)(nil)

func NewDiagram(snap *graph.Snapshot) *Diagram {
	return &Diagram{Snap: snap}
}

func (d *Diagram) Render(s paging.Surface, rect rosen.Rect) error {
	if d.Snap == nil {
		return fmt.Errorf("no snapshot to render")
	}
	s.FillRect(rect, colorWhite)
	if d.Snap.IsEmpty() {
		return nil
	}
	d.drawHourLines(s, rect)
	d.drawStations(s, rect)
	d.drawJobStops(s)
	d.drawJobSegments(s)
	d.drawHourLabels(s, rect)
	d.drawStationHeader(s, rect)
	return nil
}

func (d *Diagram) drawHourLines(s paging.Surface, rect rosen.Rect) {
	cfg := d.Snap.Config
	for h := 0; h <= 24; h++ {
		y := graph.TimeToY(cfg, rosen.Clock(h, 0, 0))
		if y < rect.Y || y > rect.Bottom() {
			continue
		}
		s.Line(rosen.Point{X: rect.X, Y: y}, rosen.Point{X: rect.Right(), Y: y}, 1, colorHourLine)
	}
}

func (d *Diagram) drawHourLabels(s paging.Surface, rect rosen.Rect) {
	cfg := d.Snap.Config
	for h := 0; h <= 24; h++ {
		y := graph.TimeToY(cfg, rosen.Clock(h, 0, 0))
		if y < rect.Y || y > rect.Bottom() {
			continue
		}
		s.Text(rosen.Point{X: rect.X + 2, Y: y - labelSize/2}, labelSize, fmt.Sprintf("%02d:00", h), colorText)
	}
}

func (d *Diagram) drawStations(s paging.Surface, rect rosen.Rect) {
	cfg := d.Snap.Config
	top := cfg.VerticalOffset
	bottom := graph.TimeToY(cfg, rosen.TimeOfDay(rosen.MsecPerDay))
	for _, e := range d.Snap.Positions {
		st := d.Snap.Stations[e.StationID]
		for i, p := range st.Platforms {
			x := d.Snap.PlatformX(e, i)
			if x < rect.X || x > rect.Right() {
				continue
			}
			width := 1.0
			if p.Type.Has(rosen.TrackThrough) {
				width = 2
			}
			s.Line(rosen.Point{X: x, Y: top}, rosen.Point{X: x, Y: bottom}, width, TrackColor(p.Color))
		}
	}
}

func (d *Diagram) drawJobStops(s paging.Surface) {
	w := d.Snap.Config.JobLineWidth
	for _, e := range d.Snap.Positions {
		st := d.Snap.Stations[e.StationID]
		for i, p := range st.Platforms {
			x := d.Snap.PlatformX(e, i)
			for _, o := range p.Occupations {
				s.Line(rosen.Point{X: x, Y: o.ArrivalY}, rosen.Point{X: x, Y: o.DepartureY}, w*2, CategoryColor(o.Category))
			}
		}
	}
}

func (d *Diagram) drawJobSegments(s paging.Surface) {
	w := d.Snap.Config.JobLineWidth
	for _, e := range d.Snap.Positions {
		for _, t := range e.Transits {
			s.Line(t.FromDeparture, t.ToArrival, w, CategoryColor(t.Category))
		}
	}
}

func (d *Diagram) drawStationHeader(s paging.Surface, rect rosen.Rect) {
	strip := rosen.Rect{X: rect.X, Y: rect.Y, Width: rect.Width, Height: headerSize + 4}
	s.FillRect(strip, colorHeader)
	for _, e := range d.Snap.Positions {
		if e.X < rect.X || e.X > rect.Right() {
			continue
		}
		st := d.Snap.Stations[e.StationID]
		s.Text(rosen.Point{X: e.X, Y: rect.Y + 2}, headerSize, st.Name, colorText)
	}
}
