package render

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/paging"
)

var (
	fontOnce sync.Once
	goFont   *opentype.Font
	fontErr  error
)

func parsedFont() (*opentype.Font, error) {
	fontOnce.Do(func() {
		goFont, fontErr = opentype.Parse(goregular.TTF)
	})
	return goFont, fontErr
}

// Raster is a surface drawing into an RGBA image.
type Raster struct {
	img    *image.RGBA
	scale  float64
	origin rosen.Point
	clip   image.Rectangle
	faces  map[float64]font.Face
}

var _ paging.Surface = (*Raster)(nil)

// NewRaster makes a transparent image of the given device size.
func NewRaster(width, height int) *Raster {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	return &Raster{
		img:   img,
		scale: 1,
		clip:  img.Bounds(),
		faces: map[float64]font.Face{},
	}
}

func (r *Raster) Image() *image.RGBA { return r.img }

// EncodePNG writes the image as PNG.
func (r *Raster) EncodePNG(w io.Writer) error {
	return png.Encode(w, r.img)
}

func (r *Raster) pt(p rosen.Point) (float64, float64) {
	return (p.X - r.origin.X) * r.scale, (p.Y - r.origin.Y) * r.scale
}

func (r *Raster) deviceRect(rect rosen.Rect) image.Rectangle {
	x0, y0 := r.pt(rosen.Point{X: rect.X, Y: rect.Y})
	x1, y1 := r.pt(rosen.Point{X: rect.Right(), Y: rect.Bottom()})
	return image.Rect(int(math.Floor(x0)), int(math.Floor(y0)), int(math.Ceil(x1)), int(math.Ceil(y1)))
}

func (r *Raster) SetTransform(scale float64, origin rosen.Point) {
	r.scale = scale
	r.origin = origin
}

func (r *Raster) SetClip(rect rosen.Rect) {
	if rect.Size().IsEmpty() {
		r.clip = r.img.Bounds()
		return
	}
	r.clip = r.deviceRect(rect).Intersect(r.img.Bounds())
}

func (r *Raster) set(x, y int, c color.Color) {
	if !(image.Point{x, y}).In(r.clip) {
		return
	}
	if _, _, _, a := c.RGBA(); a == 0xFFFF {
		r.img.Set(x, y, c)
		return
	}
	draw.Draw(r.img, image.Rect(x, y, x+1, y+1), image.NewUniform(c), image.Point{}, draw.Over)
}

func (r *Raster) FillRect(rect rosen.Rect, c color.Color) {
	d := r.deviceRect(rect).Intersect(r.clip)
	if d.Empty() {
		return
	}
	draw.Draw(r.img, d, image.NewUniform(c), image.Point{}, draw.Over)
}

// Line stamps a square brush of the scaled width along the segment.
func (r *Raster) Line(from, to rosen.Point, width float64, c color.Color) {
	x1, y1 := r.pt(from)
	x2, y2 := r.pt(to)
	half := math.Max(width*r.scale, 1) / 2
	dx, dy := x2-x1, y2-y1
	steps := math.Max(math.Max(math.Abs(dx), math.Abs(dy)), 1)
	for i := 0.0; i <= steps; i++ {
		t := i / steps
		cx, cy := x1+dx*t, y1+dy*t
		for ty := math.Floor(cy - half + 0.5); ty < cy+half; ty++ {
			for tx := math.Floor(cx - half + 0.5); tx < cx+half; tx++ {
				r.set(int(tx), int(ty), c)
			}
		}
	}
}

func (r *Raster) StrokeRect(rect rosen.Rect, width float64, c color.Color) {
	tl := rosen.Point{X: rect.X, Y: rect.Y}
	tr := rosen.Point{X: rect.Right(), Y: rect.Y}
	bl := rosen.Point{X: rect.X, Y: rect.Bottom()}
	br := rosen.Point{X: rect.Right(), Y: rect.Bottom()}
	r.Line(tl, tr, width, c)
	r.Line(tr, br, width, c)
	r.Line(br, bl, width, c)
	r.Line(bl, tl, width, c)
}

func (r *Raster) face(size float64) font.Face {
	if f, ok := r.faces[size]; ok {
		return f
	}
	fnt, err := parsedFont()
	if err != nil {
		return nil
	}
	f, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil
	}
	r.faces[size] = f
	return f
}

func (r *Raster) Text(p rosen.Point, size float64, s string, c color.Color) {
	px := size * r.scale
	if px < 1 {
		return
	}
	face := r.face(px)
	if face == nil {
		return
	}
	x, y := r.pt(p)
	dst := r.img.SubImage(r.clip).(*image.RGBA)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y*64) + face.Metrics().Ascent},
	}
	d.DrawString(s)
}
