// Package ui is a terminal viewer for a scene.
package ui

import (
	"fmt"
	"strings"

	"github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"go.uber.org/zap"
	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/graph"
)

const tolerance = 5

// viewer holds the cursor, in content space.
type viewer struct {
	scene  *graph.Scene
	m      *graph.Manager
	cursor rosen.Point
}

func newViewer(scene *graph.Scene, m *graph.Manager) *viewer {
	v := &viewer{scene: scene, m: m}
	v.reset()
	return v
}

// reset puts the cursor on the first station at midnight.
func (v *viewer) reset() {
	snap := v.scene.Snapshot()
	v.cursor = rosen.Point{Y: snap.Config.VerticalOffset}
	if len(snap.Positions) > 0 {
		v.cursor.X = snap.Positions[0].X
	}
}

// move steps the cursor by dx platforms and dy quarter hours, staying inside the content.
func (v *viewer) move(dx, dy int) {
	snap := v.scene.Snapshot()
	cfg := snap.Config
	v.cursor.X += float64(dx) * cfg.PlatformOffset
	v.cursor.Y += float64(dy) * cfg.HourOffset / 4
	size := snap.ContentSize
	v.cursor.X = clamp(v.cursor.X, 0, size.Width)
	v.cursor.Y = clamp(v.cursor.Y, cfg.VerticalOffset, graph.TimeToY(cfg, rosen.TimeOfDay(rosen.MsecPerDay)))
}

func clamp(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

func (v *viewer) hit() (graph.Hit, bool) {
	return v.scene.FindEventAt(v.cursor, tolerance)
}

// selectJob selects the job under the cursor, or clears the selection.
func (v *viewer) selectJob() {
	hit, _ := v.hit()
	v.m.SelectJob(v.scene, hit.JobID)
}

func (v *viewer) header() string {
	snap := v.scene.Snapshot()
	if snap.IsEmpty() {
		return "nothing loaded"
	}
	return fmt.Sprintf("%s %q (%d)  %.0fx%.0f", snap.Kind, snap.ObjectName, snap.ObjectID,
		snap.ContentSize.Width, snap.ContentSize.Height)
}

func (v *viewer) stations() []string {
	snap := v.scene.Snapshot()
	rows := make([]string, 0, len(snap.Positions))
	for _, e := range snap.Positions {
		st := snap.Stations[e.StationID]
		marker := " "
		if v.cursor.X >= e.X && v.cursor.X < e.X+float64(len(st.Platforms))*snap.Config.PlatformOffset {
			marker = ">"
		}
		rows = append(rows, fmt.Sprintf("%s %-12s x=%-6.0f %d platforms", marker, st.Name, e.X, len(st.Platforms)))
	}
	return rows
}

func (v *viewer) status() string {
	snap := v.scene.Snapshot()
	t := graph.YToTime(snap.Config, v.cursor.Y)
	var b strings.Builder
	fmt.Fprintf(&b, "cursor x=%.0f %s\n", v.cursor.X, t)
	if hit, ok := v.hit(); ok {
		fmt.Fprintf(&b, "job %d (%s) stop %d at station %d platform %d", hit.JobID, hit.Category, hit.StopID, hit.StationID, hit.PlatformID)
	} else {
		b.WriteString("no job")
	}
	return b.String()
}

// Main shows scene until q or Ctrl-C is pressed.
func Main(scene *graph.Scene, m *graph.Manager) error {
	err := termui.Init()
	if err != nil {
		return fmt.Errorf("termui init: %s", err)
	}
	defer termui.Close()

	v := newViewer(scene, m)
	header := widgets.NewParagraph()
	header.Title = "rosen"
	header.SetRect(0, 0, 80, 3)
	list := widgets.NewList()
	list.Title = "stations"
	list.SetRect(0, 3, 80, 17)
	status := widgets.NewParagraph()
	status.Title = "cursor"
	status.SetRect(0, 17, 80, 21)
	draw := func() {
		header.Text = v.header()
		list.Rows = v.stations()
		status.Text = v.status()
		termui.Render(header, list, status)
	}
	draw()

	changes := make(chan graph.Changed, 4)
	scene.Changes.Subscribe("ui", changes)
	defer scene.Changes.Unsubscribe(changes)

	events := termui.PollEvents()
	for {
		select {
		case c := <-changes:
			zap.S().Debugw("scene changed", "kind", c.Kind, "id", c.ObjectID, "failed", c.Failed)
			v.reset()
			draw()
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "<Left>", "h":
				v.move(-1, 0)
			case "<Right>", "l":
				v.move(1, 0)
			case "<Up>", "k":
				v.move(0, -1)
			case "<Down>", "j":
				v.move(0, 1)
			case "<Enter>":
				v.selectJob()
			case "r":
				if err := scene.Reload(); err != nil {
					zap.S().Warnw("reload failed", "error", err)
				}
			}
			draw()
		}
	}
}
