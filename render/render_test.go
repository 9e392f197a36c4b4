package render

import (
	"image/color"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/config"
	"nyiyui.ca/hato/rosen/graph"
	"nyiyui.ca/hato/rosen/store"
)

func loadMain(t *testing.T) *graph.Snapshot {
	t.Helper()
	d := store.OpenTestbench()
	t.Cleanup(func() { d.Close() })
	s := graph.NewScene("render", d, config.DefaultLayoutConfig())
	if err := s.LoadGraph(store.TBLineMain, rosen.KindLine, false); err != nil {
		t.Fatalf("LoadGraph: %s", err)
	}
	return s.Snapshot()
}

func TestSVG(t *testing.T) {
	snap := loadMain(t)
	var b strings.Builder
	svg := NewSVG(&b, snap.ContentSize, "Main & co")
	if err := NewDiagram(snap).Render(svg, rosen.RectFromSize(snap.ContentSize)); err != nil {
		t.Fatalf("Render: %s", err)
	}
	if err := svg.Close(); err != nil {
		t.Fatalf("Close: %s", err)
	}
	out := b.String()
	for _, want := range []string{
		`width="580" height="3620"`,
		"<title>Main &amp; co</title>",
		">Beta</text>",
		">08:00</text>",
		// the down job's stop at Beta
		`<line x1="295.00" y1="1285.00" x2="295.00" y2="1322.50" stroke="#008800"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q", want)
		}
	}
	if !strings.HasSuffix(out, "</svg>\n") {
		t.Error("document not closed")
	}
}

func TestSVGTransform(t *testing.T) {
	var b strings.Builder
	svg := NewSVG(&b, rosen.Size{Width: 100, Height: 100}, "")
	svg.SetTransform(2, rosen.Point{X: 10, Y: 20})
	svg.SetClip(rosen.Rect{X: 10, Y: 20, Width: 50, Height: 50})
	svg.FillRect(rosen.Rect{X: 15, Y: 25, Width: 5, Height: 5}, color.Black)
	if err := svg.Close(); err != nil {
		t.Fatalf("Close: %s", err)
	}
	out := b.String()
	for _, want := range []string{
		`<rect x="0.00" y="0.00" width="100.00" height="100.00"/></clipPath>`,
		`<rect x="10.00" y="10.00" width="10.00" height="10.00" fill="#000000"`,
		"</g>\n</svg>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestRaster(t *testing.T) {
	snap := loadMain(t)
	w, h := int(snap.ContentSize.Width), int(snap.ContentSize.Height)
	r := NewRaster(w, h)
	if err := NewDiagram(snap).Render(r, rosen.RectFromSize(snap.ContentSize)); err != nil {
		t.Fatalf("Render: %s", err)
	}
	for _, tc := range []struct {
		name     string
		x, y     int
		expected color.RGBA
	}{
		{"stop", 295, 1300, CategoryColor(rosen.CategoryRegional)},
		{"background", 400, 1300, colorWhite},
		{"green track", 315, 2000, TrackColor(0x00FF00)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Image().RGBAAt(tc.x, tc.y)
			if !cmp.Equal(got, tc.expected) {
				t.Fatalf("diff: %s", cmp.Diff(tc.expected, got))
			}
		})
	}
}

func TestRasterClip(t *testing.T) {
	r := NewRaster(10, 10)
	r.SetClip(rosen.Rect{X: 0, Y: 0, Width: 5, Height: 10})
	r.FillRect(rosen.Rect{Width: 10, Height: 10}, color.Black)
	if got := r.Image().RGBAAt(7, 5); got.A != 0 {
		t.Fatalf("pixel outside clip was drawn: %v", got)
	}
	if got := r.Image().RGBAAt(2, 5); got != (color.RGBA{0, 0, 0, 255}) {
		t.Fatalf("pixel inside clip not drawn: %v", got)
	}
}

func TestTrackColor(t *testing.T) {
	if got := TrackColor(0x123456); got != (color.RGBA{0x12, 0x34, 0x56, 0xFF}) {
		t.Fatalf("got %v", got)
	}
	if TrackColor(store.White) != colorPlainTrack {
		t.Fatal("white tracks should be grey")
	}
}
