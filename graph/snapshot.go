package graph

import (
	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/config"
)

// ContentPad is added below the 24-hour axis.
const ContentPad = 10

// OccupationInterval is one job stop on a platform.
// ArrivalY <= DepartureY is not guaranteed for malformed stops.
type OccupationInterval struct {
	JobID      rosen.ID          `json:"job-id"`
	StopID     rosen.ID          `json:"stop-id"`
	Category   rosen.JobCategory `json:"category"`
	ArrivalY   float64           `json:"arrival-y"`
	DepartureY float64           `json:"departure-y"`
}

type PlatformNode struct {
	ID          rosen.ID             `json:"id"`
	Name        string               `json:"name"`
	Color       uint32               `json:"color"`
	Type        rosen.TrackType      `json:"type"`
	Occupations []OccupationInterval `json:"occupations"`
}

type StationNode struct {
	ID   rosen.ID          `json:"id"`
	Name string            `json:"name"`
	Type rosen.StationType `json:"type"`
	// Platforms keep their persisted order.
	Platforms []PlatformNode `json:"platforms"`
	// X is the left edge of the station (and of its first platform).
	X float64 `json:"x"`
}

// TransitEvent is a job moving to the next station of the layout. It always reads left to
// right: FromDeparture is in the entry's station, ToArrival in the next one.
type TransitEvent struct {
	FromStopID     rosen.ID          `json:"from-stop-id"`
	ToStopID       rosen.ID          `json:"to-stop-id"`
	JobID          rosen.ID          `json:"job-id"`
	Category       rosen.JobCategory `json:"category"`
	FromPlatformID rosen.ID          `json:"from-platform-id"`
	ToPlatformID   rosen.ID          `json:"to-platform-id"`
	FromDeparture  rosen.Point       `json:"from-departure"`
	ToArrival      rosen.Point       `json:"to-arrival"`
}

// PositionEntry is one station along the layout, in traversal order.
type PositionEntry struct {
	StationID rosen.ID `json:"station-id"`
	// SegmentID leads to the next entry's station; 0 for the last station.
	SegmentID rosen.ID       `json:"segment-id"`
	X         float64        `json:"x"`
	Transits  []TransitEvent `json:"transits"`
}

// Snapshot is an immutable, fully loaded layout. Consumers must not modify it.
type Snapshot struct {
	Kind        rosen.GraphKind           `json:"kind"`
	ObjectID    rosen.ID                  `json:"object-id"`
	ObjectName  string                    `json:"object-name"`
	Stations    map[rosen.ID]*StationNode `json:"stations"`
	Positions   []PositionEntry           `json:"positions"`
	ContentSize rosen.Size                `json:"content-size"`
	Config      config.LayoutConfig       `json:"config"`
}

func emptySnapshot(cfg config.LayoutConfig) *Snapshot {
	return &Snapshot{
		Kind:     rosen.KindNone,
		Stations: map[rosen.ID]*StationNode{},
		Config:   cfg,
	}
}

func (s *Snapshot) IsEmpty() bool { return s.Kind == rosen.KindNone }

// Contains reports whether the station appears in the layout.
func (s *Snapshot) Contains(stationID rosen.ID) bool {
	_, ok := s.Stations[stationID]
	return ok
}

// UsesSegment reports whether the layout traverses the segment.
func (s *Snapshot) UsesSegment(segmentID rosen.ID) bool {
	for _, e := range s.Positions {
		if e.SegmentID == segmentID {
			return true
		}
	}
	return false
}

// PlatformX returns the x of each platform of the station at entry i.
func (s *Snapshot) PlatformX(entry PositionEntry, platformIndex int) float64 {
	return entry.X + float64(platformIndex)*s.Config.PlatformOffset
}

// recalcContentSize sizes the content to the last station plus half a station offset, and a
// full day vertically.
func (s *Snapshot) recalcContentSize() {
	s.ContentSize = rosen.Size{}
	if s.Kind == rosen.KindNone || len(s.Positions) == 0 {
		return
	}
	last := s.Positions[len(s.Positions)-1]
	platforms := len(s.Stations[last.StationID].Platforms)
	s.ContentSize = rosen.Size{
		Width:  last.X + float64(platforms)*s.Config.PlatformOffset + s.Config.StationOffset/2,
		Height: s.Config.VerticalOffset + s.Config.HourOffset*24 + ContentPad,
	}
}

// cloneTopology copies the layout without any schedule data.
func (s *Snapshot) cloneTopology() *Snapshot {
	c := *s
	c.Stations = make(map[rosen.ID]*StationNode, len(s.Stations))
	for id, st := range s.Stations {
		st2 := *st
		st2.Platforms = make([]PlatformNode, len(st.Platforms))
		for i, p := range st.Platforms {
			p.Occupations = nil
			st2.Platforms[i] = p
		}
		c.Stations[id] = &st2
	}
	c.Positions = make([]PositionEntry, len(s.Positions))
	for i, e := range s.Positions {
		e.Transits = nil
		c.Positions[i] = e
	}
	return &c
}
