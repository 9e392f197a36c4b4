package store

import (
	"github.com/pkg/errors"
	"github.com/tidwall/buntdb"
	"nyiyui.ca/hato/rosen"
)

func (d *DB) Station(id rosen.ID) (StationInfo, error) {
	var info StationInfo
	err := d.view(func(tx *buntdb.Tx) error {
		var err error
		info, err = stationInfo(tx, id)
		return err
	})
	return info, err
}

func stationInfo(tx *buntdb.Tx, id rosen.ID) (StationInfo, error) {
	st, err := get[Station](tx, prefixStation, id)
	if err != nil {
		return StationInfo{}, err
	}
	info := StationInfo{
		Name:      st.Name,
		ShortName: st.ShortName,
		Type:      st.Type,
	}
	err = ascendEqual(tx, indexTrackStation, "station_id", id,
		func(t Track) rosen.ID { return t.StationID },
		func(t Track) error {
			color := White
			if t.Color != nil {
				color = *t.Color
			}
			info.Platforms = append(info.Platforms, PlatformInfo{
				ID:    t.ID,
				Type:  t.Type,
				Color: color,
				Name:  t.Name,
			})
			return nil
		})
	return info, err
}

func segmentEnds(tx *buntdb.Tx, id rosen.ID) (Segment, rosen.ID, rosen.ID, error) {
	seg, err := get[Segment](tx, prefixSegment, id)
	if err != nil {
		return seg, 0, 0, err
	}
	in, err := get[Gate](tx, prefixGate, seg.InGateID)
	if err != nil {
		return seg, 0, 0, errors.Wrapf(err, "segment %d in gate", id)
	}
	out, err := get[Gate](tx, prefixGate, seg.OutGateID)
	if err != nil {
		return seg, 0, 0, errors.Wrapf(err, "segment %d out gate", id)
	}
	return seg, in.StationID, out.StationID, nil
}

func (d *DB) SegmentEndpoints(id rosen.ID) (SegmentEndpoints, error) {
	var ends SegmentEndpoints
	err := d.view(func(tx *buntdb.Tx) error {
		seg, from, to, err := segmentEnds(tx, id)
		if err != nil {
			return err
		}
		ends = SegmentEndpoints{Name: seg.Name, FromStationID: from, ToStationID: to}
		return nil
	})
	return ends, err
}

func (d *DB) LineSegments(id rosen.ID) (LineInfo, error) {
	var info LineInfo
	err := d.view(func(tx *buntdb.Tx) error {
		line, err := get[Line](tx, prefixLine, id)
		if err != nil {
			return err
		}
		info.Name = line.Name
		return ascendEqual(tx, indexLineSegLine, "line_id", id,
			func(ls LineSegment) rosen.ID { return ls.LineID },
			func(ls LineSegment) error {
				_, from, to, err := segmentEnds(tx, ls.SegmentID)
				if err != nil {
					return errors.Wrapf(err, "line segment %d", ls.ID)
				}
				info.Segments = append(info.Segments, LineSegmentInfo{
					LineSegmentID: ls.ID,
					SegmentID:     ls.SegmentID,
					Reversed:      ls.Reversed,
					FromStationID: from,
					ToStationID:   to,
				})
				return nil
			})
	})
	return info, err
}

// gateTrack resolves a gate connection to its track; 0 stays 0, as does a dangling reference.
func gateTrack(tx *buntdb.Tx, gateConn rosen.ID) (rosen.ID, error) {
	if gateConn == 0 {
		return 0, nil
	}
	gc, err := get[GateConnection](tx, prefixGateConn, gateConn)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return gc.TrackID, nil
}

func (d *DB) StationStops(stationID rosen.ID) ([]StationStop, error) {
	var stops []StationStop
	err := d.view(func(tx *buntdb.Tx) error {
		categories := map[rosen.ID]rosen.JobCategory{}
		return ascendEqual(tx, indexStopStation, "station_id", stationID,
			func(s Stop) rosen.ID { return s.StationID },
			func(s Stop) error {
				cat, ok := categories[s.JobID]
				if !ok {
					job, err := get[Job](tx, prefixJob, s.JobID)
					if errors.Is(err, ErrNotFound) {
						// orphan stop
						return nil
					}
					if err != nil {
						return err
					}
					cat = job.Category
					categories[s.JobID] = cat
				}
				in, err := gateTrack(tx, s.InGateConn)
				if err != nil {
					return err
				}
				out, err := gateTrack(tx, s.OutGateConn)
				if err != nil {
					return err
				}
				stops = append(stops, StationStop{
					StopID:     s.ID,
					JobID:      s.JobID,
					Category:   cat,
					Arrival:    s.Arrival,
					Departure:  s.Departure,
					InTrackID:  in,
					OutTrackID: out,
				})
				return nil
			})
	})
	return stops, err
}

// SegmentTransits pairs every stop with the next stop of its job (by arrival) and keeps the
// pairs leaving over segmentID. Both the out gate of the first stop and the in gate of the
// second must resolve to a track.
func (d *DB) SegmentTransits(segmentID rosen.ID) ([]SegmentTransit, error) {
	var transits []SegmentTransit
	err := d.view(func(tx *buntdb.Tx) error {
		conns := map[rosen.ID]struct{}{}
		err := ascendEqual(tx, indexRailConnSeg, "seg_id", segmentID,
			func(rc RailwayConnection) rosen.ID { return rc.SegmentID },
			func(rc RailwayConnection) error {
				conns[rc.ID] = struct{}{}
				return nil
			})
		if err != nil {
			return err
		}
		if len(conns) == 0 {
			return nil
		}
		var prev *Stop
		return ascendAll(tx, indexStopJob, func(s Stop) error {
			cur := s
			defer func() { prev = &cur }()
			if prev == nil || prev.JobID != cur.JobID {
				return nil
			}
			if _, ok := conns[prev.NextSegmentConn]; !ok {
				return nil
			}
			from, err := gateTrack(tx, prev.OutGateConn)
			if err != nil || from == 0 {
				return err
			}
			to, err := gateTrack(tx, cur.InGateConn)
			if err != nil || to == 0 {
				return err
			}
			job, err := get[Job](tx, prefixJob, cur.JobID)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			transits = append(transits, SegmentTransit{
				FromStopID:     prev.ID,
				ToStopID:       cur.ID,
				StationID:      prev.StationID,
				JobID:          cur.JobID,
				Departure:      prev.Departure,
				Arrival:        cur.Arrival,
				Category:       job.Category,
				FromPlatformID: from,
				ToPlatformID:   to,
			})
			return nil
		})
	})
	return transits, err
}

func kindIndex(kind rosen.GraphKind) (index, prefix string, err error) {
	switch kind {
	case rosen.KindStation:
		return indexStations, prefixStation, nil
	case rosen.KindSegment:
		return indexSegments, prefixSegment, nil
	case rosen.KindLine:
		return indexLines, prefixLine, nil
	}
	return "", "", errors.Errorf("no objects of kind %s", kind)
}

type named struct {
	ID   rosen.ID `json:"id"`
	Name string   `json:"name"`
}

func (d *DB) IDs(kind rosen.GraphKind) ([]rosen.ID, error) {
	index, _, err := kindIndex(kind)
	if err != nil {
		return nil, err
	}
	var ids []rosen.ID
	err = d.view(func(tx *buntdb.Tx) error {
		return ascendAll(tx, index, func(n named) error {
			ids = append(ids, n.ID)
			return nil
		})
	})
	return ids, err
}

func (d *DB) ObjectName(kind rosen.GraphKind, id rosen.ID) (string, error) {
	_, prefix, err := kindIndex(kind)
	if err != nil {
		return "", err
	}
	var name string
	err = d.view(func(tx *buntdb.Tx) error {
		n, err := get[named](tx, prefix, id)
		name = n.Name
		return err
	})
	return name, err
}
