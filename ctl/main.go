// Package ctl is the rosen command.
package ctl

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/config"
	"nyiyui.ca/hato/rosen/export"
	"nyiyui.ca/hato/rosen/graph"
	"nyiyui.ca/hato/rosen/kujo"
	"nyiyui.ca/hato/rosen/store"
	"nyiyui.ca/hato/rosen/ui"
)

type options struct {
	mode       string
	configPath string
	dbPath     string
	importPath string
	testbench  bool
	kind       string
	ids        string
	all        bool
	out        string
	format     string
	addr       string
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.mode, "mode", "view", "serve, export or view")
	fs.StringVar(&o.configPath, "config", "", "path to a .json or .yaml config file")
	fs.StringVar(&o.dbPath, "db", "", "database path (overrides the config)")
	fs.StringVar(&o.importPath, "import", "", "import a JSON fixture into the database first")
	fs.BoolVar(&o.testbench, "testbench", false, "use an in-memory database seeded with the testbench")
	fs.StringVar(&o.kind, "kind", "line", "object kind: station, segment or line")
	fs.StringVar(&o.ids, "id", "", "comma-separated object ids")
	fs.BoolVar(&o.all, "all", false, "export every object of -kind except -id")
	fs.StringVar(&o.out, "out", ".", "export output directory")
	fs.StringVar(&o.format, "format", "svg", "export format: svg or png")
	fs.StringVar(&o.addr, "addr", "0.0.0.0:8001", "serve address")
}

func parseIDs(s string) ([]rosen.ID, error) {
	var ids []rosen.ID
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("id %q: %w", f, err)
		}
		ids = append(ids, rosen.ID(n))
	}
	return ids, nil
}

func Main() error {
	defer zap.S().Sync()
	var o options
	o.register(flag.CommandLine)
	level := zap.LevelFlag("log-level", zap.InfoLevel, "set log level")
	flag.Parse()
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(*level)
	if o.mode == "view" {
		// keep the terminal clean
		zcfg.OutputPaths = []string{"rosen.log"}
	}
	dev, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(dev)

	cfg := config.Default()
	if o.configPath != "" {
		cfg, err = config.Load(o.configPath)
		if err != nil {
			return err
		}
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}

	d, err := openDB(o, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	kind, err := rosen.ParseGraphKind(o.kind)
	if err != nil {
		return err
	}
	ids, err := parseIDs(o.ids)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch o.mode {
	case "serve":
		return serve(ctx, d, cfg, o.addr, kind, ids)
	case "export":
		return runExport(ctx, d, cfg, o, kind, ids)
	case "view":
		return view(ctx, d, cfg, kind, ids)
	default:
		return fmt.Errorf("unknown mode %q", o.mode)
	}
}

func openDB(o options, cfg config.Config) (*store.DB, error) {
	if o.testbench {
		zap.S().Info("using testbench database")
		return store.OpenTestbench(), nil
	}
	d, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	if o.importPath != "" {
		f, err := os.Open(o.importPath)
		if err != nil {
			d.Close()
			return nil, err
		}
		defer f.Close()
		if err := d.ImportJSON(f); err != nil {
			d.Close()
			return nil, fmt.Errorf("import %s: %w", o.importPath, err)
		}
		zap.S().Infow("imported fixture", "path", o.importPath)
	}
	return d, nil
}

// newManaged makes a scene kept up to date by a manager running until ctx is done.
func newManaged(ctx context.Context, d *store.DB, cfg config.Config, kind rosen.GraphKind, ids []rosen.ID) (*graph.Scene, *graph.Manager, error) {
	scene := graph.NewScene("main", d, cfg.Layout)
	m := graph.NewManager()
	if err := m.Register(scene); err != nil {
		return nil, nil, err
	}
	m.SetActive(scene)
	go func() {
		if err := m.Run(ctx, d.Events); err != nil && !errors.Is(err, context.Canceled) {
			zap.S().Errorw("manager stopped", "error", err)
		}
	}()
	if len(ids) > 0 {
		if err := scene.LoadGraph(ids[0], kind, false); err != nil {
			zap.S().Warnw("initial load failed", "kind", kind, "id", ids[0], "error", err)
		}
	}
	return scene, m, nil
}

func serve(ctx context.Context, d *store.DB, cfg config.Config, addr string, kind rosen.GraphKind, ids []rosen.ID) error {
	scene, m, err := newManaged(ctx, d, cfg, kind, ids)
	if err != nil {
		return err
	}
	s := kujo.NewServer(scene, m, cfg.Print)
	defer s.Close()
	if len(cfg.AllowedOrigins) > 0 {
		s.AllowOrigins(cfg.AllowedOrigins...)
	}
	srv := &http.Server{Addr: addr, Handler: s}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	zap.S().Infow("starting kujo", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func view(ctx context.Context, d *store.DB, cfg config.Config, kind rosen.GraphKind, ids []rosen.ID) error {
	scene, m, err := newManaged(ctx, d, cfg, kind, ids)
	if err != nil {
		return err
	}
	return ui.Main(scene, m)
}

func runExport(ctx context.Context, d *store.DB, cfg config.Config, o options, kind rosen.GraphKind, ids []rosen.ID) error {
	format, err := export.ParseFormat(o.format)
	if err != nil {
		return err
	}
	sel := export.NewSelection(d)
	if o.all {
		if err := sel.SetMode(export.AllOfTypeExceptSelected, kind); err != nil {
			return err
		}
	}
	for _, id := range ids {
		if err := sel.Add(export.Entry{ID: id, Kind: kind}); err != nil {
			return err
		}
	}
	opts := export.Options{
		Dir:    o.out,
		Format: format,
		Layout: cfg.Layout,
		Print:  cfg.Print,
	}
	if cfg.ExportName != "" {
		if opts.Name, err = export.ParseName(cfg.ExportName); err != nil {
			return err
		}
	}
	w := export.NewWorker(d, opts)
	res := w.Run(ctx, sel, func(cur, max int, name string) bool {
		if cur < max {
			zap.S().Infow("exporting", "object", cur+1, "of", max, "name", name)
		}
		return true
	})
	for _, s := range res.Skipped {
		zap.S().Warnw("skipped", "kind", s.Entry.Kind, "id", s.Entry.ID, "reason", s.Reason)
	}
	switch res.Status {
	case export.Failed:
		return res.Err
	case export.Cancelled:
		return fmt.Errorf("export %s cancelled after %d files", res.RunID, len(res.Written))
	}
	zap.S().Infow("export done", "run", res.RunID, "files", len(res.Written))
	return nil
}
