package store

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/tidwall/buntdb"
	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/rosen"
)

// renamedOrModified compares a replaced record with its new value; only-the-name changes are Renamed.
func renamedOrModified[T any](previous string, existed bool, next T, sameExceptName func(a, b T) bool) Change {
	if !existed {
		return Modified
	}
	var prev T
	if err := json.Unmarshal([]byte(previous), &prev); err != nil {
		return Modified
	}
	if sameExceptName(prev, next) {
		return Renamed
	}
	return Modified
}

func (d *DB) PutStation(s Station) error {
	var change Change
	err := d.update(func(tx *buntdb.Tx) error {
		previous, existed, err := set(tx, prefixStation, s.ID, s)
		change = renamedOrModified(previous, existed, s, func(a, b Station) bool { return a.Type == b.Type })
		return err
	})
	if err != nil {
		return err
	}
	d.publish(Event{Scope: StationChanged, Change: change, IDs: []rosen.ID{s.ID}})
	return nil
}

func (d *DB) PutTrack(t Track) error {
	err := d.update(func(tx *buntdb.Tx) error {
		if _, err := get[Station](tx, prefixStation, t.StationID); err != nil {
			return err
		}
		_, _, err := set(tx, prefixTrack, t.ID, t)
		return err
	})
	if err != nil {
		return err
	}
	d.publish(Event{Scope: StationChanged, Change: Modified, IDs: []rosen.ID{t.StationID}})
	return nil
}

func (d *DB) PutGate(g Gate) error {
	err := d.update(func(tx *buntdb.Tx) error {
		if _, err := get[Station](tx, prefixStation, g.StationID); err != nil {
			return err
		}
		_, _, err := set(tx, prefixGate, g.ID, g)
		return err
	})
	if err != nil {
		return err
	}
	d.publish(Event{Scope: StationChanged, Change: Modified, IDs: []rosen.ID{g.StationID}})
	return nil
}

func (d *DB) PutGateConnection(gc GateConnection) error {
	var station rosen.ID
	err := d.update(func(tx *buntdb.Tx) error {
		gate, err := get[Gate](tx, prefixGate, gc.GateID)
		if err != nil {
			return err
		}
		station = gate.StationID
		_, _, err = set(tx, prefixGateConn, gc.ID, gc)
		return err
	})
	if err != nil {
		return err
	}
	d.publish(Event{Scope: StationChanged, Change: Modified, IDs: []rosen.ID{station}})
	return nil
}

func (d *DB) PutSegment(s Segment) error {
	var change Change
	err := d.update(func(tx *buntdb.Tx) error {
		previous, existed, err := set(tx, prefixSegment, s.ID, s)
		change = renamedOrModified(previous, existed, s, func(a, b Segment) bool {
			a.Name = b.Name
			return a == b
		})
		return err
	})
	if err != nil {
		return err
	}
	d.publish(Event{Scope: SegmentChanged, Change: change, IDs: []rosen.ID{s.ID}})
	return nil
}

func (d *DB) PutRailwayConnection(rc RailwayConnection) error {
	err := d.update(func(tx *buntdb.Tx) error {
		if _, err := get[Segment](tx, prefixSegment, rc.SegmentID); err != nil {
			return err
		}
		_, _, err := set(tx, prefixRailConn, rc.ID, rc)
		return err
	})
	if err != nil {
		return err
	}
	d.publish(Event{Scope: SegmentChanged, Change: Modified, IDs: []rosen.ID{rc.SegmentID}})
	return nil
}

func (d *DB) PutLine(l Line) error {
	var change Change
	err := d.update(func(tx *buntdb.Tx) error {
		previous, existed, err := set(tx, prefixLine, l.ID, l)
		change = renamedOrModified(previous, existed, l, func(a, b Line) bool { return true })
		return err
	})
	if err != nil {
		return err
	}
	d.publish(Event{Scope: LineChanged, Change: change, IDs: []rosen.ID{l.ID}})
	return nil
}

func (d *DB) PutLineSegment(ls LineSegment) error {
	err := d.update(func(tx *buntdb.Tx) error {
		if _, err := get[Line](tx, prefixLine, ls.LineID); err != nil {
			return err
		}
		if _, err := get[Segment](tx, prefixSegment, ls.SegmentID); err != nil {
			return err
		}
		_, _, err := set(tx, prefixLineSeg, ls.ID, ls)
		return err
	})
	if err != nil {
		return err
	}
	d.publish(Event{Scope: LineChanged, Change: Modified, IDs: []rosen.ID{ls.LineID}})
	return nil
}

func jobStations(tx *buntdb.Tx, jobID rosen.ID) ([]rosen.ID, error) {
	var stations []rosen.ID
	err := ascendEqual(tx, indexStopJob, "job_id", jobID,
		func(s Stop) rosen.ID { return s.JobID },
		func(s Stop) error {
			if !slices.Contains(stations, s.StationID) {
				stations = append(stations, s.StationID)
			}
			return nil
		})
	return stations, err
}

func (d *DB) PutJob(j Job) error {
	var stations []rosen.ID
	err := d.update(func(tx *buntdb.Tx) error {
		if _, _, err := set(tx, prefixJob, j.ID, j); err != nil {
			return err
		}
		var err error
		stations, err = jobStations(tx, j.ID)
		return err
	})
	if err != nil {
		return err
	}
	d.publish(Event{Scope: JobsChanged, Change: Modified, IDs: []rosen.ID{j.ID}, StationIDs: stations})
	return nil
}

func (d *DB) PutStop(s Stop) error {
	stations := []rosen.ID{s.StationID}
	err := d.update(func(tx *buntdb.Tx) error {
		if _, err := get[Job](tx, prefixJob, s.JobID); err != nil {
			return err
		}
		if _, err := get[Station](tx, prefixStation, s.StationID); err != nil {
			return err
		}
		previous, existed, err := set(tx, prefixStop, s.ID, s)
		if err != nil {
			return err
		}
		if existed {
			var prev Stop
			if err := json.Unmarshal([]byte(previous), &prev); err == nil && prev.StationID != s.StationID {
				stations = append(stations, prev.StationID)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	d.publish(Event{Scope: JobsChanged, Change: Modified, IDs: []rosen.ID{s.JobID}, StationIDs: stations})
	return nil
}

// deleteWhere deletes every record of index whose leading field equals id.
func deleteWhere[T any](tx *buntdb.Tx, prefix, index, field string, id rosen.ID, leading func(T) rosen.ID, recID func(T) rosen.ID) error {
	var keys []string
	err := ascendEqual(tx, index, field, id, leading, func(rec T) error {
		keys = append(keys, key(prefix, recID(rec)))
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range keys {
		if _, err := tx.Delete(k); err != nil {
			return errors.Wrapf(err, "delete %s", k)
		}
	}
	return nil
}

func deleteKey(tx *buntdb.Tx, prefix string, id rosen.ID) error {
	_, err := tx.Delete(key(prefix, id))
	if errors.Is(err, buntdb.ErrNotFound) {
		return errors.Wrapf(ErrNotFound, "%s %d", prefix, id)
	}
	return err
}

// RemoveStation removes a station with its tracks and gates.
func (d *DB) RemoveStation(id rosen.ID) error {
	err := d.update(func(tx *buntdb.Tx) error {
		if err := deleteKey(tx, prefixStation, id); err != nil {
			return err
		}
		err := deleteWhere(tx, prefixTrack, indexTrackStation, "station_id", id,
			func(t Track) rosen.ID { return t.StationID }, func(t Track) rosen.ID { return t.ID })
		if err != nil {
			return err
		}
		return deleteWhere(tx, prefixGate, indexGateStation, "station_id", id,
			func(g Gate) rosen.ID { return g.StationID }, func(g Gate) rosen.ID { return g.ID })
	})
	if err != nil {
		return err
	}
	d.publish(Event{Scope: StationChanged, Change: Removed, IDs: []rosen.ID{id}})
	return nil
}

// RemoveSegment removes a segment with its railway connections.
func (d *DB) RemoveSegment(id rosen.ID) error {
	err := d.update(func(tx *buntdb.Tx) error {
		if err := deleteKey(tx, prefixSegment, id); err != nil {
			return err
		}
		return deleteWhere(tx, prefixRailConn, indexRailConnSeg, "seg_id", id,
			func(rc RailwayConnection) rosen.ID { return rc.SegmentID }, func(rc RailwayConnection) rosen.ID { return rc.ID })
	})
	if err != nil {
		return err
	}
	d.publish(Event{Scope: SegmentChanged, Change: Removed, IDs: []rosen.ID{id}})
	return nil
}

// RemoveLine removes a line with its line segments. The railway segments are kept.
func (d *DB) RemoveLine(id rosen.ID) error {
	err := d.update(func(tx *buntdb.Tx) error {
		if err := deleteKey(tx, prefixLine, id); err != nil {
			return err
		}
		return deleteWhere(tx, prefixLineSeg, indexLineSegLine, "line_id", id,
			func(ls LineSegment) rosen.ID { return ls.LineID }, func(ls LineSegment) rosen.ID { return ls.ID })
	})
	if err != nil {
		return err
	}
	d.publish(Event{Scope: LineChanged, Change: Removed, IDs: []rosen.ID{id}})
	return nil
}

// RemoveJob removes a job with its stops.
func (d *DB) RemoveJob(id rosen.ID) error {
	var stations []rosen.ID
	err := d.update(func(tx *buntdb.Tx) error {
		var err error
		stations, err = jobStations(tx, id)
		if err != nil {
			return err
		}
		if err := deleteKey(tx, prefixJob, id); err != nil {
			return err
		}
		return deleteWhere(tx, prefixStop, indexStopJob, "job_id", id,
			func(s Stop) rosen.ID { return s.JobID }, func(s Stop) rosen.ID { return s.ID })
	})
	if err != nil {
		return err
	}
	d.publish(Event{Scope: JobsChanged, Change: Removed, IDs: []rosen.ID{id}, StationIDs: stations})
	return nil
}

// Import writes every record of f in one transaction. No events are published.
func (d *DB) Import(f Fixture) error {
	return d.update(func(tx *buntdb.Tx) error {
		type rec struct {
			prefix string
			id     rosen.ID
			v      interface{}
		}
		var recs []rec
		for _, v := range f.Stations {
			recs = append(recs, rec{prefixStation, v.ID, v})
		}
		for _, v := range f.Tracks {
			recs = append(recs, rec{prefixTrack, v.ID, v})
		}
		for _, v := range f.Gates {
			recs = append(recs, rec{prefixGate, v.ID, v})
		}
		for _, v := range f.GateConnections {
			recs = append(recs, rec{prefixGateConn, v.ID, v})
		}
		for _, v := range f.Segments {
			recs = append(recs, rec{prefixSegment, v.ID, v})
		}
		for _, v := range f.RailwayConnections {
			recs = append(recs, rec{prefixRailConn, v.ID, v})
		}
		for _, v := range f.Lines {
			recs = append(recs, rec{prefixLine, v.ID, v})
		}
		for _, v := range f.LineSegments {
			recs = append(recs, rec{prefixLineSeg, v.ID, v})
		}
		for _, v := range f.Jobs {
			recs = append(recs, rec{prefixJob, v.ID, v})
		}
		for _, v := range f.Stops {
			recs = append(recs, rec{prefixStop, v.ID, v})
		}
		for _, r := range recs {
			if _, _, err := set(tx, r.prefix, r.id, r.v); err != nil {
				return err
			}
		}
		return nil
	})
}

// ImportJSON decodes a Fixture from r and imports it.
func (d *DB) ImportJSON(r io.Reader) error {
	var f Fixture
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return errors.Wrap(err, "decode fixture")
	}
	return d.Import(f)
}
