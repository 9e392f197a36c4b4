package graph

import (
	"math"

	"nyiyui.ca/hato/rosen"
)

// Hit is the schedule event found under a point.
type Hit struct {
	JobID     rosen.ID          `json:"job-id"`
	StopID    rosen.ID          `json:"stop-id"`
	Category  rosen.JobCategory `json:"category"`
	StationID rosen.ID          `json:"station-id"`
	// PlatformID is the platform the hit was resolved on.
	PlatformID rosen.ID `json:"platform-id"`
}

// candidate is a platform found by the scan, with its horizontal distance from the pointer.
type candidate struct {
	station  rosen.ID
	platform *PlatformNode
	distance float64
}

func (c candidate) ok() bool { return c.platform != nil }

// pickPlatform decides between the platforms bracketing the pointer:
//  1. a candidate farther than tolerance is discarded;
//  2. with none left there is no match;
//  3. with one left it wins;
//  4. with both left the nearer wins, prev on a tie.
func pickPlatform(prev, next candidate, tolerance float64) (candidate, bool) {
	if prev.ok() && prev.distance > tolerance {
		prev = candidate{}
	}
	if next.ok() && next.distance > tolerance {
		next = candidate{}
	}
	switch {
	case !prev.ok() && !next.ok():
		return candidate{}, false
	case !next.ok():
		return prev, true
	case !prev.ok():
		return next, true
	case prev.distance <= next.distance:
		return prev, true
	default:
		return next, true
	}
}

// bracketStations returns the indices of the rightmost entry at or left of x and the leftmost
// entry at or right of x; -1 when absent.
func (s *Snapshot) bracketStations(x float64) (prev, next int) {
	prev, next = -1, -1
	for i, e := range s.Positions {
		if e.X <= x {
			prev = i
		}
		if e.X >= x {
			next = i
			break
		}
	}
	return
}

// scanPlatforms scans the platforms of the entry left to right.
func (s *Snapshot) scanPlatforms(entryI int, x float64, wantPrev bool) (prev, next candidate) {
	if entryI == -1 {
		return
	}
	entry := s.Positions[entryI]
	st, ok := s.Stations[entry.StationID]
	if !ok {
		return
	}
	for i := range st.Platforms {
		px := s.PlatformX(entry, i)
		if wantPrev && px <= x {
			prev = candidate{st.ID, &st.Platforms[i], math.Abs(px - x)}
		}
		if px >= x {
			next = candidate{st.ID, &st.Platforms[i], math.Abs(px - x)}
			break
		}
	}
	return
}

// FindEventAt finds the occupation interval nearest to pos: the platform is the nearest one
// within tolerance horizontally, and the interval must contain pos vertically.
func (s *Snapshot) FindEventAt(pos rosen.Point, tolerance float64) (Hit, bool) {
	if len(s.Positions) == 0 {
		return Hit{}, false
	}
	prevI, nextI := s.bracketStations(pos.X)
	if prevI == -1 && nextI == -1 {
		return Hit{}, false
	}
	prev, next := s.scanPlatforms(prevI, pos.X, true)
	if !next.ok() {
		_, next = s.scanPlatforms(nextI, pos.X, false)
	}
	chosen, ok := pickPlatform(prev, next, tolerance)
	if !ok {
		return Hit{}, false
	}
	for _, o := range chosen.platform.Occupations {
		departure := o.DepartureY
		if departure < o.ArrivalY {
			// inverted: zero height at arrival
			departure = o.ArrivalY
		}
		if o.ArrivalY <= pos.Y && pos.Y <= departure {
			return Hit{
				JobID:      o.JobID,
				StopID:     o.StopID,
				Category:   o.Category,
				StationID:  chosen.station,
				PlatformID: chosen.platform.ID,
			}, true
		}
	}
	return Hit{}, false
}
