package store

import (
	"github.com/pkg/errors"
	"nyiyui.ca/hato/rosen"
)

var (
	// ErrNotFound is returned when a referenced station, segment or line does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned when the database is not open.
	ErrUnavailable = errors.New("repository unavailable")
)

// White is the colour of tracks without one.
const White uint32 = 0xFFFFFF

type PlatformInfo struct {
	ID    rosen.ID
	Type  rosen.TrackType
	Color uint32
	Name  string
}

type StationInfo struct {
	Name      string
	ShortName string
	Type      rosen.StationType
	// Platforms are ordered by their persisted position.
	Platforms []PlatformInfo
}

// DisplayName is the short name, falling back to the full name.
func (s StationInfo) DisplayName() string {
	if s.ShortName != "" {
		return s.ShortName
	}
	return s.Name
}

type SegmentEndpoints struct {
	Name string
	// FromStationID is the station of the in gate, ToStationID of the out gate.
	FromStationID rosen.ID
	ToStationID   rosen.ID
}

type LineSegmentInfo struct {
	LineSegmentID rosen.ID
	SegmentID     rosen.ID
	Reversed      bool
	// FromStationID and ToStationID are the segment's nominal ends, not yet swapped for Reversed.
	FromStationID rosen.ID
	ToStationID   rosen.ID
}

type LineInfo struct {
	Name     string
	Segments []LineSegmentInfo
}

type StationStop struct {
	StopID    rosen.ID
	JobID     rosen.ID
	Category  rosen.JobCategory
	Arrival   rosen.TimeOfDay
	Departure rosen.TimeOfDay
	// InTrackID and OutTrackID are 0 when the stop has no in/out gate connection.
	InTrackID  rosen.ID
	OutTrackID rosen.ID
}

// SegmentTransit is a job travelling between two consecutive stops over one segment.
type SegmentTransit struct {
	FromStopID rosen.ID
	ToStopID   rosen.ID
	// StationID is the station of the first stop.
	StationID      rosen.ID
	JobID          rosen.ID
	Departure      rosen.TimeOfDay
	Arrival        rosen.TimeOfDay
	Category       rosen.JobCategory
	FromPlatformID rosen.ID
	ToPlatformID   rosen.ID
}

// Repository is the read surface the layout engine consumes.
type Repository interface {
	Station(id rosen.ID) (StationInfo, error)
	SegmentEndpoints(id rosen.ID) (SegmentEndpoints, error)
	LineSegments(id rosen.ID) (LineInfo, error)
	// StationStops returns the stops at a station ordered by arrival.
	StationStops(stationID rosen.ID) ([]StationStop, error)
	SegmentTransits(segmentID rosen.ID) ([]SegmentTransit, error)
}

// Lister enumerates every object of a kind, in id order.
type Lister interface {
	IDs(kind rosen.GraphKind) ([]rosen.ID, error)
	ObjectName(kind rosen.GraphKind, id rosen.ID) (string, error)
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }
