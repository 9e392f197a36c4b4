// Package export writes diagrams of many objects to files.
package export

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/config"
	"nyiyui.ca/hato/rosen/graph"
	"nyiyui.ca/hato/rosen/paging"
	"nyiyui.ca/hato/rosen/render"
	"nyiyui.ca/hato/rosen/store"
)

type Format int

const (
	// FormatSVG writes the whole content of each object to <dir>/<name>.svg.
	FormatSVG Format = iota
	// FormatPNG writes one image per page to <dir>/<name>_r<row>_c<col>.png.
	FormatPNG
)

func (f Format) String() string {
	switch f {
	case FormatSVG:
		return "svg"
	case FormatPNG:
		return "png"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

func ParseFormat(s string) (Format, error) {
	switch s {
	case "svg":
		return FormatSVG, nil
	case "png":
		return FormatPNG, nil
	}
	return 0, errors.Errorf("unknown format %q", s)
}

type Status int

const (
	Completed Status = iota
	Cancelled
	Failed
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

type Options struct {
	Dir    string
	Format Format
	Layout config.LayoutConfig
	Print  config.PrintConfig
	// Name names the files of an object; nil uses the object name.
	// See ParseName for the fields available.
	Name *template.Template
}

// NameData is passed to Options.Name.
type NameData struct {
	Name  string
	Kind  rosen.GraphKind
	ID    rosen.ID
	Index int
	RunID uuid.UUID
}

// ParseName parses a file name template. Sprig functions are available.
func ParseName(text string) (*template.Template, error) {
	t, err := template.New("name").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "parse name template")
	}
	return t, nil
}

// Skipped is an object that could not be loaded.
type Skipped struct {
	Entry  Entry  `json:"entry"`
	Reason string `json:"reason"`
}

type Result struct {
	RunID   uuid.UUID `json:"run-id"`
	Status  Status    `json:"status"`
	Written []string  `json:"written"`
	Skipped []Skipped `json:"skipped"`
	// Err is set when Status is Failed.
	Err error `json:"-"`
}

// Progress is called before each object; returning false cancels the run.
type Progress func(current, max int, name string) bool

// Worker exports selections. It loads objects into a scene of its own.
type Worker struct {
	repo  store.Repository
	opts  Options
	scene *graph.Scene
}

func NewWorker(repo store.Repository, opts Options) *Worker {
	return &Worker{
		repo:  repo,
		opts:  opts,
		scene: graph.NewScene("export", repo, opts.Layout),
	}
}

// Run exports every entry of sel. Cancellation through ctx or progress is checked between
// objects; an object that was started is always finished or rolled back.
func (w *Worker) Run(ctx context.Context, sel *Selection, progress Progress) Result {
	res := Result{RunID: uuid.New()}
	log := zap.S().With("run", res.RunID)
	fail := func(err error) Result {
		res.Status = Failed
		res.Err = err
		log.Errorw("export failed", "error", err)
		return res
	}

	entries, err := sel.Entries()
	if err != nil {
		return fail(err)
	}
	if err := os.MkdirAll(w.opts.Dir, 0o755); err != nil {
		return fail(&IOError{Op: "create output directory", Err: err})
	}
	log.Infow("export started", "objects", len(entries), "format", w.opts.Format, "dir", w.opts.Dir)
	for i, e := range entries {
		if ctx.Err() != nil || (progress != nil && !progress(i, len(entries), e.Name)) {
			res.Status = Cancelled
			log.Infow("export cancelled", "done", i, "of", len(entries))
			return res
		}
		if err := w.scene.LoadGraph(e.ID, e.Kind, true); err != nil {
			if store.IsUnavailable(err) {
				return fail(err)
			}
			log.Warnw("skipping object", "kind", e.Kind, "id", e.ID, "error", err)
			res.Skipped = append(res.Skipped, Skipped{Entry: e, Reason: err.Error()})
			continue
		}
		snap := w.scene.Snapshot()
		base, err := w.baseName(NameData{Name: snap.ObjectName, Kind: e.Kind, ID: e.ID, Index: i, RunID: res.RunID})
		if err != nil {
			return fail(err)
		}
		written, err := w.exportObject(ctx, snap, e, base)
		if err != nil {
			return fail(err)
		}
		res.Written = append(res.Written, written...)
	}
	if progress != nil {
		progress(len(entries), len(entries), "")
	}
	res.Status = Completed
	log.Infow("export completed", "written", len(res.Written), "skipped", len(res.Skipped))
	return res
}

// fileName makes name usable as a file name.
func fileName(name string, e Entry) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		return fmt.Sprintf("%s_%d", e.Kind, e.ID)
	}
	return name
}

func (w *Worker) baseName(d NameData) (string, error) {
	name := d.Name
	if w.opts.Name != nil {
		var b strings.Builder
		if err := w.opts.Name.Execute(&b, d); err != nil {
			return "", errors.Wrapf(err, "name %s %d", d.Kind, d.ID)
		}
		name = b.String()
	}
	return fileName(name, Entry{ID: d.ID, Kind: d.Kind}), nil
}

func (w *Worker) exportObject(ctx context.Context, snap *graph.Snapshot, e Entry, base string) ([]string, error) {
	out := newOutput(w.opts.Dir)
	var err error
	switch w.opts.Format {
	case FormatSVG:
		err = w.writeSVG(out, snap, base)
	case FormatPNG:
		err = w.writePNG(ctx, out, snap, base)
	default:
		err = errors.Errorf("unknown format %s", w.opts.Format)
	}
	if err != nil {
		out.rollback()
		return nil, errors.Wrapf(err, "export %s %q", e.Kind, snap.ObjectName)
	}
	return out.commit()
}

func (w *Worker) writeSVG(out *output, snap *graph.Snapshot, base string) error {
	f, err := out.create(base + ".svg")
	if err != nil {
		return err
	}
	svg := render.NewSVG(f, snap.ContentSize, snap.ObjectName)
	if err := render.NewDiagram(snap).Render(svg, rosen.RectFromSize(snap.ContentSize)); err != nil {
		f.Close()
		return err
	}
	if err := svg.Close(); err != nil {
		f.Close()
		return &IOError{Op: "write " + f.Name(), Err: err}
	}
	if err := f.Close(); err != nil {
		return &IOError{Op: "close " + f.Name(), Err: err}
	}
	return nil
}

func (w *Worker) writePNG(ctx context.Context, out *output, snap *graph.Snapshot, base string) error {
	plan, err := paging.PlanPages(rosen.RectFromSize(snap.ContentSize), paging.NewPageLayout(w.opts.Print))
	if err != nil {
		return err
	}
	sink := &pngSink{out: out, base: base, layout: plan.Layout}
	progress := paging.ProgressFunc(func(cur, max int) bool {
		zap.S().Debugw("page written", "object", snap.ObjectName, "page", cur, "of", max)
		return true
	})
	// pages of a started object are always finished
	return paging.Paginate(context.WithoutCancel(ctx), plan, sink, render.NewDiagram(snap), progress)
}

type pngSink struct {
	out    *output
	base   string
	layout paging.PageLayout
	raster *render.Raster
}

func (s *pngSink) BeginPage(p paging.Page, isFirst bool) (paging.Surface, error) {
	w := int(math.Ceil(s.layout.DevicePageRect.Width))
	h := int(math.Ceil(s.layout.DevicePageRect.Height))
	s.raster = render.NewRaster(w, h)
	return s.raster, nil
}

func (s *pngSink) EndPage(p paging.Page) error {
	f, err := s.out.create(fmt.Sprintf("%s_r%d_c%d.png", s.base, p.Row, p.Col))
	if err != nil {
		return err
	}
	if err := s.raster.EncodePNG(f); err != nil {
		f.Close()
		return &IOError{Op: "write " + f.Name(), Err: err}
	}
	if err := f.Close(); err != nil {
		return &IOError{Op: "close " + f.Name(), Err: err}
	}
	s.raster = nil
	return nil
}
