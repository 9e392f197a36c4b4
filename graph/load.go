package graph

import (
	"errors"
	"fmt"

	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/config"
	"nyiyui.ca/hato/rosen/store"
)

var (
	ErrInvalidID = errors.New("invalid object id")
	// ErrNotAdjacent is returned when a line's consecutive segments do not share a station.
	ErrNotAdjacent = errors.New("line segments are not adjacent")
)

type loader struct {
	repo store.Repository
	cfg  config.LayoutConfig
	snap *Snapshot
}

// startX leaves room for the hour panel plus half a station for the first label.
func (l *loader) startX() float64 {
	return l.cfg.HorizontalOffset + l.cfg.StationOffset/2
}

// advance returns the x of the station after st.
func (l *loader) advance(st *StationNode) float64 {
	return st.X + float64(len(st.Platforms))*l.cfg.PlatformOffset + l.cfg.StationOffset
}

func (l *loader) loadStation(id rosen.ID, x float64) (*StationNode, error) {
	info, err := l.repo.Station(id)
	if err != nil {
		return nil, fmt.Errorf("station %d: %w", id, err)
	}
	st := &StationNode{
		ID:        id,
		Name:      info.DisplayName(),
		Type:      info.Type,
		Platforms: make([]PlatformNode, len(info.Platforms)),
		X:         x,
	}
	for i, p := range info.Platforms {
		st.Platforms[i] = PlatformNode{
			ID:    p.ID,
			Name:  p.Name,
			Color: p.Color,
			Type:  p.Type,
		}
	}
	l.snap.Stations[id] = st
	return st, nil
}

// load builds the topology of a snapshot; it does not project schedule data.
func load(repo store.Repository, cfg config.LayoutConfig, id rosen.ID, kind rosen.GraphKind) (*Snapshot, error) {
	l := &loader{repo: repo, cfg: cfg, snap: emptySnapshot(cfg)}
	if kind == rosen.KindNone {
		return l.snap, nil
	}
	if repo == nil {
		return nil, store.ErrUnavailable
	}
	if id <= 0 {
		return nil, fmt.Errorf("%s %d: %w", kind, id, ErrInvalidID)
	}
	var err error
	switch kind {
	case rosen.KindStation:
		err = l.loadSingleStation(id)
	case rosen.KindSegment:
		err = l.loadSegment(id)
	case rosen.KindLine:
		err = l.loadLine(id)
	default:
		err = fmt.Errorf("unknown graph kind %d", kind)
	}
	if err != nil {
		return nil, err
	}
	l.snap.Kind = kind
	l.snap.ObjectID = id
	l.snap.recalcContentSize()
	return l.snap, nil
}

func (l *loader) loadSingleStation(id rosen.ID) error {
	st, err := l.loadStation(id, l.startX())
	if err != nil {
		return err
	}
	l.snap.Positions = []PositionEntry{{StationID: id, X: st.X}}
	l.snap.ObjectName = st.Name
	return nil
}

func (l *loader) loadSegment(id rosen.ID) error {
	ends, err := l.repo.SegmentEndpoints(id)
	if err != nil {
		return fmt.Errorf("segment %d: %w", id, err)
	}
	a, err := l.loadStation(ends.FromStationID, l.startX())
	if err != nil {
		return fmt.Errorf("segment %d: %w", id, err)
	}
	b, err := l.loadStation(ends.ToStationID, l.advance(a))
	if err != nil {
		return fmt.Errorf("segment %d: %w", id, err)
	}
	l.snap.ObjectName = ends.Name
	l.snap.Positions = []PositionEntry{
		{StationID: a.ID, SegmentID: id, X: a.X},
		{StationID: b.ID, X: b.X},
	}
	return nil
}

func (l *loader) loadLine(id rosen.ID) error {
	line, err := l.repo.LineSegments(id)
	if err != nil {
		return fmt.Errorf("line %d: %w", id, err)
	}
	l.snap.ObjectName = line.Name

	x := l.startX()
	var last rosen.ID
	for _, seg := range line.Segments {
		from, to := seg.FromStationID, seg.ToStationID
		if seg.Reversed {
			from, to = to, from
		}
		if last == 0 {
			st, err := l.loadStation(from, x)
			if err != nil {
				return fmt.Errorf("line %d: %w", id, err)
			}
			l.snap.Positions = append(l.snap.Positions, PositionEntry{StationID: from, X: st.X})
			x = l.advance(st)
		} else if from != last {
			return fmt.Errorf("line %d: line segment %d starts at station %d, previous ended at %d: %w",
				id, seg.LineSegmentID, from, last, ErrNotAdjacent)
		}
		st, err := l.loadStation(to, x)
		if err != nil {
			return fmt.Errorf("line %d: %w", id, err)
		}
		l.snap.Positions[len(l.snap.Positions)-1].SegmentID = seg.SegmentID
		l.snap.Positions = append(l.snap.Positions, PositionEntry{StationID: to, X: st.X})
		x = l.advance(st)
		last = to
	}
	return nil
}
