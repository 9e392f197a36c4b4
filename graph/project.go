package graph

import (
	"fmt"

	"go.uber.org/zap"
	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/config"
	"nyiyui.ca/hato/rosen/store"
)

// TimeToY maps a time of day onto the vertical axis, which is always one day tall.
func TimeToY(cfg config.LayoutConfig, t rosen.TimeOfDay) float64 {
	return cfg.VerticalOffset + t.HourFraction()*cfg.HourOffset
}

// YToTime is the inverse of TimeToY, clamped to the day.
func YToTime(cfg config.LayoutConfig, y float64) rosen.TimeOfDay {
	ms := (y - cfg.VerticalOffset) / cfg.HourOffset * float64(rosen.MsecPerHour)
	if ms < 0 {
		ms = 0
	}
	if ms >= float64(rosen.MsecPerDay) {
		ms = float64(rosen.MsecPerDay - 1)
	}
	return rosen.TimeOfDay(ms)
}

// effectiveTrack picks the track a stop occupies from its in and out gate tracks.
// The in track wins when both are set and disagree.
func effectiveTrack(in, out rosen.ID) (track rosen.ID, mismatch, ok bool) {
	switch {
	case in != 0 && out != 0:
		return in, in != out, true
	case in != 0:
		return in, false, true
	case out != 0:
		// first stop of a job
		return out, false, true
	default:
		return 0, false, false
	}
}

func platformIndex(st *StationNode, platformID rosen.ID) int {
	for i := range st.Platforms {
		if st.Platforms[i].ID == platformID {
			return i
		}
	}
	return -1
}

// project fills the occupation intervals and transit events of a loaded snapshot.
func project(repo store.Repository, snap *Snapshot) error {
	if snap.Kind == rosen.KindNone {
		return nil
	}
	done := map[rosen.ID]bool{}
	for _, e := range snap.Positions {
		if done[e.StationID] {
			continue
		}
		done[e.StationID] = true
		if err := projectStation(repo, snap.Config, snap.Stations[e.StationID]); err != nil {
			return err
		}
	}
	for i := range snap.Positions {
		entry := &snap.Positions[i]
		if entry.SegmentID == 0 {
			continue
		}
		if i+1 >= len(snap.Positions) {
			break
		}
		next := snap.Positions[i+1]
		from, ok := snap.Stations[entry.StationID]
		if !ok {
			continue
		}
		to, ok := snap.Stations[next.StationID]
		if !ok {
			continue
		}
		if err := projectSegment(repo, snap.Config, entry, from, to, next.X); err != nil {
			return err
		}
	}
	return nil
}

func projectStation(repo store.Repository, cfg config.LayoutConfig, st *StationNode) error {
	for i := range st.Platforms {
		st.Platforms[i].Occupations = nil
	}
	stops, err := repo.StationStops(st.ID)
	if err != nil {
		return fmt.Errorf("station %d stops: %w", st.ID, err)
	}
	for _, stop := range stops {
		track, mismatch, ok := effectiveTrack(stop.InTrackID, stop.OutTrackID)
		if !ok {
			zap.S().Warnw("stop has neither in nor out track, skipping",
				"stop", stop.StopID, "job", stop.JobID, "station", st.ID)
			continue
		}
		if mismatch {
			zap.S().Warnw("stop in/out tracks do not correspond, using in",
				"stop", stop.StopID, "job", stop.JobID, "in", stop.InTrackID, "out", stop.OutTrackID)
		}
		i := platformIndex(st, track)
		if i == -1 {
			zap.S().Warnw("stop track is not in this station, skipping",
				"stop", stop.StopID, "job", stop.JobID, "track", track, "station", st.ID)
			continue
		}
		st.Platforms[i].Occupations = append(st.Platforms[i].Occupations, OccupationInterval{
			JobID:      stop.JobID,
			StopID:     stop.StopID,
			Category:   stop.Category,
			ArrivalY:   TimeToY(cfg, stop.Arrival),
			DepartureY: TimeToY(cfg, stop.Departure),
		})
	}
	return nil
}

// projectSegment fills entry's transit events towards the next station (to, at toX).
func projectSegment(repo store.Repository, cfg config.LayoutConfig, entry *PositionEntry, from, to *StationNode, toX float64) error {
	entry.Transits = nil
	transits, err := repo.SegmentTransits(entry.SegmentID)
	if err != nil {
		return fmt.Errorf("segment %d transits: %w", entry.SegmentID, err)
	}
	for _, t := range transits {
		ev := TransitEvent{
			FromStopID:     t.FromStopID,
			ToStopID:       t.ToStopID,
			JobID:          t.JobID,
			Category:       t.Category,
			FromPlatformID: t.FromPlatformID,
			ToPlatformID:   t.ToPlatformID,
		}
		departure, arrival := t.Departure, t.Arrival
		if t.StationID == to.ID {
			// travelling right to left
			ev.FromStopID, ev.ToStopID = ev.ToStopID, ev.FromStopID
			ev.FromPlatformID, ev.ToPlatformID = ev.ToPlatformID, ev.FromPlatformID
			departure, arrival = arrival, departure
		}
		fi := platformIndex(from, ev.FromPlatformID)
		ti := platformIndex(to, ev.ToPlatformID)
		if fi == -1 || ti == -1 {
			zap.S().Warnw("transit platform not found, skipping",
				"job", t.JobID, "segment", entry.SegmentID,
				"from-platform", ev.FromPlatformID, "to-platform", ev.ToPlatformID)
			continue
		}
		ev.FromDeparture = rosen.Point{
			X: entry.X + float64(fi)*cfg.PlatformOffset,
			Y: TimeToY(cfg, departure),
		}
		ev.ToArrival = rosen.Point{
			X: toX + float64(ti)*cfg.PlatformOffset,
			Y: TimeToY(cfg, arrival),
		}
		entry.Transits = append(entry.Transits, ev)
	}
	return nil
}
