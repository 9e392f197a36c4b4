package graph

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/config"
	"nyiyui.ca/hato/rosen/store"
)

func testConfig() config.LayoutConfig {
	return config.LayoutConfig{
		HorizontalOffset: 50,
		VerticalOffset:   20,
		HourOffset:       60,
		StationOffset:    150,
		PlatformOffset:   20,
		JobLineWidth:     2,
	}
}

var approx = cmpopts.EquateApprox(0, 1e-9)

// countingRepo counts every query that reaches the repository.
type countingRepo struct {
	store.Repository
	n atomic.Int64
	// stationHook is called before every Station query, if set.
	stationHook func(id rosen.ID)
}

func (r *countingRepo) Station(id rosen.ID) (store.StationInfo, error) {
	r.n.Add(1)
	if r.stationHook != nil {
		r.stationHook(id)
	}
	return r.Repository.Station(id)
}

func (r *countingRepo) SegmentEndpoints(id rosen.ID) (store.SegmentEndpoints, error) {
	r.n.Add(1)
	return r.Repository.SegmentEndpoints(id)
}

func (r *countingRepo) LineSegments(id rosen.ID) (store.LineInfo, error) {
	r.n.Add(1)
	return r.Repository.LineSegments(id)
}

func (r *countingRepo) StationStops(id rosen.ID) ([]store.StationStop, error) {
	r.n.Add(1)
	return r.Repository.StationStops(id)
}

func (r *countingRepo) SegmentTransits(id rosen.ID) ([]store.SegmentTransit, error) {
	r.n.Add(1)
	return r.Repository.SegmentTransits(id)
}

func newTestScene(t *testing.T) (*Scene, *store.DB) {
	t.Helper()
	d := store.OpenTestbench()
	t.Cleanup(func() { d.Close() })
	return NewScene(t.Name(), d, testConfig()), d
}

func mustLoad(t *testing.T, s *Scene, id rosen.ID, kind rosen.GraphKind) *Snapshot {
	t.Helper()
	if err := s.LoadGraph(id, kind, false); err != nil {
		t.Fatalf("LoadGraph(%d, %s): %s", id, kind, err)
	}
	return s.Snapshot()
}

func TestLoadLine(t *testing.T) {
	s, _ := newTestScene(t)
	snap := mustLoad(t, s, store.TBLineMain, rosen.KindLine)
	if snap.ObjectName != "Main" {
		t.Fatalf("name: %q", snap.ObjectName)
	}
	expected := []PositionEntry{
		{StationID: store.TBAlpha, SegmentID: store.TBSegAB, X: 125},
		{StationID: store.TBBeta, SegmentID: store.TBSegBC, X: 295},
		{StationID: store.TBGamma, X: 485},
	}
	got := snap.cloneTopology().Positions
	if !cmp.Equal(got, expected) {
		t.Fatalf("diff: %s", cmp.Diff(expected, got))
	}
	for id, name := range map[rosen.ID]string{store.TBAlpha: "A", store.TBBeta: "Beta", store.TBGamma: "G"} {
		if snap.Stations[id].Name != name {
			t.Errorf("station %d: name %q, expected %q", id, snap.Stations[id].Name, name)
		}
	}
	if snap.Stations[store.TBGamma].X != 485 {
		t.Errorf("station x %v", snap.Stations[store.TBGamma].X)
	}
	expectedSize := rosen.Size{Width: 580, Height: 20 + 60*24 + ContentPad}
	if snap.ContentSize != expectedSize {
		t.Fatalf("content size %v, expected %v", snap.ContentSize, expectedSize)
	}
}

func TestLoadReversedLine(t *testing.T) {
	s, _ := newTestScene(t)
	snap := mustLoad(t, s, store.TBLineBack, rosen.KindLine)
	var order []rosen.ID
	for _, e := range snap.Positions {
		order = append(order, e.StationID)
	}
	expected := []rosen.ID{store.TBGamma, store.TBBeta, store.TBAlpha}
	if !cmp.Equal(order, expected) {
		t.Fatalf("diff: %s", cmp.Diff(expected, order))
	}
	if snap.Positions[2].X != 485 {
		t.Fatalf("x of Alpha %v", snap.Positions[2].X)
	}
	// Gamma has one platform, Beta two
	if snap.ContentSize.Width != 485+20+75 {
		t.Fatalf("width %v", snap.ContentSize.Width)
	}
}

func TestLoadSegmentAndStation(t *testing.T) {
	s, _ := newTestScene(t)
	snap := mustLoad(t, s, store.TBSegBC, rosen.KindSegment)
	if snap.ObjectName != "Beta-Gamma" || len(snap.Positions) != 2 {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
	if snap.Positions[0].SegmentID != store.TBSegBC || snap.Positions[1].X != 125+40+150 {
		t.Fatalf("positions %#v", snap.Positions)
	}

	snap = mustLoad(t, s, store.TBDelta, rosen.KindStation)
	if snap.ObjectName != "Delta" || len(snap.Positions) != 1 {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
	if snap.ContentSize.Width != 125+75 {
		t.Fatalf("width %v", snap.ContentSize.Width)
	}
}

func TestLoadErrors(t *testing.T) {
	s, _ := newTestScene(t)
	c := make(chan Changed, 8)
	s.Changes.Subscribe("test", c)
	mustLoad(t, s, store.TBLineMain, rosen.KindLine)
	<-c

	err := s.LoadGraph(store.TBLineBroken, rosen.KindLine, false)
	if !errors.Is(err, ErrNotAdjacent) {
		t.Fatalf("expected ErrNotAdjacent, got %v", err)
	}
	if !s.Snapshot().IsEmpty() || s.ContentSize() != (rosen.Size{}) {
		t.Fatalf("expected empty scene, got %#v", s.Snapshot())
	}
	if ev := <-c; !ev.Failed || ev.Kind != rosen.KindNone {
		t.Fatalf("expected failure notification, got %#v", ev)
	}
	id, kind := s.Requested()
	if id != store.TBLineBroken || kind != rosen.KindLine {
		t.Fatalf("requested %d %s", id, kind)
	}

	if err := s.LoadGraph(99, rosen.KindStation, false); !store.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.LoadGraph(0, rosen.KindSegment, false); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}

	nilScene := NewScene("nil", nil, testConfig())
	if err := nilScene.LoadGraph(1, rosen.KindLine, false); !store.IsUnavailable(err) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if err := nilScene.Clear(); err != nil {
		t.Fatalf("Clear: %s", err)
	}
}

func TestLoadIdempotent(t *testing.T) {
	d := store.OpenTestbench()
	defer d.Close()
	repo := &countingRepo{Repository: d}
	s := NewScene("idempotent", repo, testConfig())
	first := mustLoad(t, s, store.TBLineMain, rosen.KindLine)
	before := repo.n.Load()
	if before == 0 {
		t.Fatal("expected queries on first load")
	}
	if err := s.LoadGraph(store.TBLineMain, rosen.KindLine, false); err != nil {
		t.Fatalf("LoadGraph: %s", err)
	}
	if n := repo.n.Load(); n != before {
		t.Fatalf("expected no queries, got %d", n-before)
	}
	if s.Snapshot() != first {
		t.Fatal("expected the same snapshot")
	}

	if err := s.LoadGraph(store.TBLineMain, rosen.KindLine, true); err != nil {
		t.Fatalf("LoadGraph: %s", err)
	}
	if repo.n.Load() == before {
		t.Fatal("expected forced load to query")
	}
	if !cmp.Equal(s.Snapshot(), first) {
		t.Fatalf("forced reload differs: %s", cmp.Diff(first, s.Snapshot()))
	}
}

func TestProjectOccupations(t *testing.T) {
	s, _ := newTestScene(t)
	snap := mustLoad(t, s, store.TBLineMain, rosen.KindLine)
	beta := snap.Stations[store.TBBeta]
	expected := [][]OccupationInterval{
		{
			{JobID: store.TBJobDown, StopID: 12, Category: rosen.CategoryRegional, ArrivalY: 530, DepartureY: 545},
			// in track wins over the disagreeing out track
			{JobID: store.TBJobMismatch, StopID: 31, Category: rosen.CategoryLocal, ArrivalY: 740, DepartureY: 750},
		},
		{
			{JobID: store.TBJobUp, StopID: 22, Category: rosen.CategoryFreight, ArrivalY: 640, DepartureY: 650},
		},
	}
	var got [][]OccupationInterval
	for _, p := range beta.Platforms {
		got = append(got, p.Occupations)
	}
	if !cmp.Equal(got, expected, approx) {
		t.Fatalf("diff: %s", cmp.Diff(expected, got, approx))
	}
}

func TestProjectTransits(t *testing.T) {
	s, _ := newTestScene(t)
	snap := mustLoad(t, s, store.TBLineMain, rosen.KindLine)
	expected := [][]TransitEvent{
		{
			{
				FromStopID: 11, ToStopID: 12, JobID: store.TBJobDown, Category: rosen.CategoryRegional,
				FromPlatformID: store.TBTrackA1, ToPlatformID: store.TBTrackB1,
				FromDeparture: rosen.Point{X: 125, Y: 500}, ToArrival: rosen.Point{X: 295, Y: 530},
			},
			{
				FromStopID: 23, ToStopID: 22, JobID: store.TBJobUp, Category: rosen.CategoryFreight,
				FromPlatformID: store.TBTrackA1, ToPlatformID: store.TBTrackB2,
				FromDeparture: rosen.Point{X: 125, Y: 680}, ToArrival: rosen.Point{X: 315, Y: 650},
			},
		},
		{
			{
				FromStopID: 12, ToStopID: 13, JobID: store.TBJobDown, Category: rosen.CategoryRegional,
				FromPlatformID: store.TBTrackB1, ToPlatformID: store.TBTrackC1,
				FromDeparture: rosen.Point{X: 295, Y: 545}, ToArrival: rosen.Point{X: 485, Y: 20 + 60*(9+10.0/60)},
			},
			{
				FromStopID: 22, ToStopID: 21, JobID: store.TBJobUp, Category: rosen.CategoryFreight,
				FromPlatformID: store.TBTrackB2, ToPlatformID: store.TBTrackC1,
				FromDeparture: rosen.Point{X: 315, Y: 20 + 60*(10+20.0/60)}, ToArrival: rosen.Point{X: 485, Y: 620},
			},
		},
		nil,
	}
	var got [][]TransitEvent
	for _, e := range snap.Positions {
		got = append(got, e.Transits)
	}
	if !cmp.Equal(got, expected, approx) {
		t.Fatalf("diff: %s", cmp.Diff(expected, got, approx))
	}
}

func TestTransitsReadLeftToRight(t *testing.T) {
	s, _ := newTestScene(t)
	for _, id := range []rosen.ID{store.TBLineMain, store.TBLineBack} {
		snap := mustLoad(t, s, id, rosen.KindLine)
		n := 0
		for _, e := range snap.Positions {
			for _, tr := range e.Transits {
				n++
				if tr.FromDeparture.X >= tr.ToArrival.X {
					t.Errorf("line %d: transit %#v reads right to left", id, tr)
				}
			}
		}
		if n != 4 {
			t.Errorf("line %d: expected 4 transits, got %d", id, n)
		}
	}
}

func TestReloadJobs(t *testing.T) {
	s, d := newTestScene(t)
	if err := s.ReloadJobs(); err != nil {
		t.Fatalf("ReloadJobs on empty scene: %s", err)
	}
	before := mustLoad(t, s, store.TBSegAB, rosen.KindSegment)
	err := d.PutStop(store.Stop{
		ID: 61, JobID: store.TBJobNoTrack, StationID: store.TBAlpha,
		Arrival: rosen.Clock(15, 0, 0), Departure: rosen.Clock(15, 5, 0), InGateConn: 1011,
	})
	if err != nil {
		t.Fatalf("PutStop: %s", err)
	}
	if err := s.ReloadJobs(); err != nil {
		t.Fatalf("ReloadJobs: %s", err)
	}
	after := s.Snapshot()
	occ := after.Stations[store.TBAlpha].Platforms[0].Occupations
	if len(occ) != 3 || occ[2].StopID != 61 {
		t.Fatalf("occupations %#v", occ)
	}
	if len(before.Stations[store.TBAlpha].Platforms[0].Occupations) != 2 {
		t.Fatal("previous snapshot was modified")
	}
	if !cmp.Equal(after.Positions[0].X, before.Positions[0].X) || after.ContentSize != before.ContentSize {
		t.Fatal("topology changed")
	}

	d.Close()
	if err := s.ReloadJobs(); !store.IsUnavailable(err) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if !s.Snapshot().IsEmpty() {
		t.Fatal("expected empty scene after failed reload")
	}
}

func TestSupersededLoad(t *testing.T) {
	d := store.OpenTestbench()
	defer d.Close()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	repo := &countingRepo{Repository: d}
	repo.stationHook = func(id rosen.ID) {
		if id != store.TBAlpha {
			return
		}
		once.Do(func() {
			close(entered)
			<-release
		})
	}
	s := NewScene("superseded", repo, testConfig())

	errs := make(chan error, 1)
	go func() { errs <- s.LoadGraph(store.TBLineMain, rosen.KindLine, false) }()
	<-entered
	if err := s.LoadGraph(store.TBGamma, rosen.KindStation, false); err != nil {
		t.Fatalf("LoadGraph: %s", err)
	}
	close(release)
	select {
	case err := <-errs:
		if !errors.Is(err, ErrSuperseded) {
			t.Fatalf("expected ErrSuperseded, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first load did not return")
	}
	snap := s.Snapshot()
	if snap.Kind != rosen.KindStation || snap.ObjectID != store.TBGamma {
		t.Fatalf("expected the later load to win, got %s %d", snap.Kind, snap.ObjectID)
	}
}

func TestClearDuringLoad(t *testing.T) {
	d := store.OpenTestbench()
	defer d.Close()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	repo := &countingRepo{Repository: d}
	repo.stationHook = func(id rosen.ID) {
		once.Do(func() {
			close(entered)
			<-release
		})
	}
	s := NewScene("clear during load", repo, testConfig())

	errs := make(chan error, 1)
	go func() { errs <- s.LoadGraph(store.TBLineMain, rosen.KindLine, false) }()
	<-entered
	// the scene looks empty while the line loads, but the request must still count
	if err := s.LoadGraph(0, rosen.KindNone, false); err != nil {
		t.Fatalf("LoadGraph: %s", err)
	}
	close(release)
	select {
	case err := <-errs:
		if !errors.Is(err, ErrSuperseded) {
			t.Fatalf("expected ErrSuperseded, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("line load did not return")
	}
	snap := s.Snapshot()
	if snap.Kind != rosen.KindNone || snap.ObjectID != 0 {
		t.Fatalf("expected an empty scene, got %s %d", snap.Kind, snap.ObjectID)
	}
	if id, kind := s.Requested(); id != 0 || kind != rosen.KindNone {
		t.Fatalf("requested %s %d", kind, id)
	}
}

func TestTimeToY(t *testing.T) {
	cfg := testConfig()
	for _, tc := range []struct {
		t rosen.TimeOfDay
		y float64
	}{
		{0, 20},
		{rosen.Clock(8, 30, 0), 530},
		{rosen.Clock(12, 0, 0), 740},
	} {
		if got := TimeToY(cfg, tc.t); got != tc.y {
			t.Errorf("TimeToY(%s) = %v, expected %v", tc.t, got, tc.y)
		}
		if got := YToTime(cfg, tc.y); got != tc.t {
			t.Errorf("YToTime(%v) = %s, expected %s", tc.y, got, tc.t)
		}
	}
	if got := YToTime(cfg, -100); got != 0 {
		t.Errorf("expected clamp to 0, got %s", got)
	}
	if got := YToTime(cfg, 1e6); got != rosen.TimeOfDay(rosen.MsecPerDay-1) {
		t.Errorf("expected clamp to end of day, got %s", got)
	}
}

func TestEffectiveTrack(t *testing.T) {
	type result struct {
		Track        rosen.ID
		Mismatch, OK bool
	}
	for _, tc := range []struct {
		name     string
		in, out  rosen.ID
		expected result
	}{
		{"both", 1, 1, result{1, false, true}},
		{"mismatch", 1, 2, result{1, true, true}},
		{"in only", 1, 0, result{1, false, true}},
		{"out only", 0, 2, result{2, false, true}},
		{"none", 0, 0, result{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			track, mismatch, ok := effectiveTrack(tc.in, tc.out)
			got := result{track, mismatch, ok}
			if got != tc.expected {
				t.Fatalf("diff: %s", cmp.Diff(tc.expected, got))
			}
		})
	}
}
