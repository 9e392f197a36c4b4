package ui

import (
	"strings"
	"testing"

	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/config"
	"nyiyui.ca/hato/rosen/graph"
	"nyiyui.ca/hato/rosen/store"
)

func newTestViewer(t *testing.T) *viewer {
	t.Helper()
	d := store.OpenTestbench()
	t.Cleanup(func() { d.Close() })
	scene := graph.NewScene("ui", d, config.DefaultLayoutConfig())
	if err := scene.LoadGraph(store.TBLineMain, rosen.KindLine, false); err != nil {
		t.Fatalf("LoadGraph: %s", err)
	}
	return newViewer(scene, graph.NewManager())
}

func TestViewerMove(t *testing.T) {
	v := newTestViewer(t)
	if v.cursor != (rosen.Point{X: 125, Y: 10}) {
		t.Fatalf("initial cursor %v", v.cursor)
	}
	v.move(-100, -100)
	if v.cursor != (rosen.Point{X: 0, Y: 10}) {
		t.Fatalf("cursor not clamped: %v", v.cursor)
	}
	v.move(0, 4*30)
	if v.cursor.Y != 10+150*24 {
		t.Fatalf("cursor past the end of the day: %v", v.cursor)
	}
	v.reset()
	v.move(0, 4*8+2)
	if !strings.HasPrefix(v.status(), "cursor x=125 08:30:00") {
		t.Fatalf("status %q", v.status())
	}
}

func TestViewerHit(t *testing.T) {
	v := newTestViewer(t)
	// Beta, 08:30
	v.cursor = rosen.Point{X: 295, Y: 10 + 150*8.5}
	if !strings.Contains(v.status(), "job 1 (regional) stop 12") {
		t.Fatalf("status %q", v.status())
	}
	rows := v.stations()
	if len(rows) != 3 || !strings.HasPrefix(rows[1], "> Beta") {
		t.Fatalf("rows %q", rows)
	}

	c := make(chan graph.JobSelected, 1)
	v.m.Selections.Subscribe("test", c)
	v.selectJob()
	if sel := <-c; sel.JobID != store.TBJobDown {
		t.Fatalf("selected %v", sel)
	}

	v.cursor.Y = 10
	if !strings.HasSuffix(v.status(), "no job") {
		t.Fatalf("status %q", v.status())
	}
}

func TestViewerEmpty(t *testing.T) {
	d := store.OpenTestbench()
	defer d.Close()
	v := newViewer(graph.NewScene("empty", d, config.DefaultLayoutConfig()), graph.NewManager())
	if v.header() != "nothing loaded" || len(v.stations()) != 0 {
		t.Fatalf("unexpected view %q %q", v.header(), v.stations())
	}
}
