package store

import (
	"fmt"

	"nyiyui.ca/hato/rosen"
)

type Scope int

const (
	StationChanged Scope = iota + 1
	SegmentChanged
	LineChanged
	JobsChanged
)

func (s Scope) String() string {
	switch s {
	case StationChanged:
		return "station"
	case SegmentChanged:
		return "segment"
	case LineChanged:
		return "line"
	case JobsChanged:
		return "jobs"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

type Change int

const (
	// Modified means the object's plan changed (tracks, gates, ends, segments, stops).
	Modified Change = iota
	Renamed
	Removed
)

func (c Change) String() string {
	switch c {
	case Modified:
		return "modified"
	case Renamed:
		return "renamed"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("Change(%d)", int(c))
	}
}

// Event is published after a write transaction commits.
type Event struct {
	Scope  Scope
	Change Change
	// IDs are the station, segment, line or job ids affected, depending on Scope.
	IDs []rosen.ID
	// StationIDs lists the stations touched by a JobsChanged event.
	StationIDs []rosen.ID
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s %v (stations %v)", e.Scope, e.Change, e.IDs, e.StationIDs)
}
