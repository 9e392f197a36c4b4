package store

import (
	"nyiyui.ca/hato/rosen"
)

// Records as persisted in the database. Field tags double as the index paths.

type Station struct {
	ID        rosen.ID          `json:"id"`
	Name      string            `json:"name"`
	ShortName string            `json:"short_name,omitempty"`
	Type      rosen.StationType `json:"type"`
}

// Track is a station track (platform).
type Track struct {
	ID        rosen.ID        `json:"id"`
	StationID rosen.ID        `json:"station_id"`
	Pos       int             `json:"pos"`
	Type      rosen.TrackType `json:"type"`
	// Color is 0xRRGGBB; nil means white.
	Color *uint32 `json:"color_rgb,omitempty"`
	Name  string  `json:"name"`
}

type Gate struct {
	ID        rosen.ID `json:"id"`
	StationID rosen.ID `json:"station_id"`
	// Side is 0 for west, 1 for east.
	Side int    `json:"side"`
	Name string `json:"name"`
}

// GateConnection connects a gate to one of the station's tracks.
type GateConnection struct {
	ID      rosen.ID `json:"id"`
	GateID  rosen.ID `json:"gate_id"`
	TrackID rosen.ID `json:"track_id"`
}

type Segment struct {
	ID             rosen.ID `json:"id"`
	Name           string   `json:"name"`
	InGateID       rosen.ID `json:"in_gate_id"`
	OutGateID      rosen.ID `json:"out_gate_id"`
	MaxSpeedKmh    int      `json:"max_speed_kmh"`
	Type           int      `json:"type"`
	DistanceMeters int      `json:"distance_meters"`
}

// RailwayConnection is one gate track pair a segment can be traversed on.
type RailwayConnection struct {
	ID         rosen.ID `json:"id"`
	SegmentID  rosen.ID `json:"seg_id"`
	InTrackID  rosen.ID `json:"in_track"`
	OutTrackID rosen.ID `json:"out_track"`
}

type Line struct {
	ID   rosen.ID `json:"id"`
	Name string   `json:"name"`
}

type LineSegment struct {
	ID        rosen.ID `json:"id"`
	LineID    rosen.ID `json:"line_id"`
	SegmentID rosen.ID `json:"seg_id"`
	// Reversed means the line traverses the segment from its out gate to its in gate.
	Reversed bool `json:"direction"`
	Pos      int  `json:"pos"`
}

type Job struct {
	ID       rosen.ID          `json:"id"`
	Category rosen.JobCategory `json:"category"`
}

type Stop struct {
	ID        rosen.ID        `json:"id"`
	JobID     rosen.ID        `json:"job_id"`
	StationID rosen.ID        `json:"station_id"`
	Arrival   rosen.TimeOfDay `json:"arrival"`
	Departure rosen.TimeOfDay `json:"departure"`
	// InGateConn and OutGateConn are GateConnection ids; 0 on the first/last stop.
	InGateConn  rosen.ID `json:"in_gate_conn,omitempty"`
	OutGateConn rosen.ID `json:"out_gate_conn,omitempty"`
	// NextSegmentConn is the RailwayConnection used to leave this stop.
	NextSegmentConn rosen.ID `json:"next_segment_conn_id,omitempty"`
}

// Fixture is a full dump of the database, used to seed it.
type Fixture struct {
	Stations           []Station           `json:"stations"`
	Tracks             []Track             `json:"tracks"`
	Gates              []Gate              `json:"gates"`
	GateConnections    []GateConnection    `json:"gate_connections"`
	Segments           []Segment           `json:"segments"`
	RailwayConnections []RailwayConnection `json:"railway_connections"`
	Lines              []Line              `json:"lines"`
	LineSegments       []LineSegment       `json:"line_segments"`
	Jobs               []Job               `json:"jobs"`
	Stops              []Stop              `json:"stops"`
}
