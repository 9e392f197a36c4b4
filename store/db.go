package store

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/tidwall/buntdb"
	"go.uber.org/zap"
	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/notify"
)

const (
	prefixStation  = "station"
	prefixTrack    = "track"
	prefixGate     = "gate"
	prefixGateConn = "gateconn"
	prefixSegment  = "segment"
	prefixRailConn = "railconn"
	prefixLine     = "line"
	prefixLineSeg  = "lineseg"
	prefixJob      = "job"
	prefixStop     = "stop"
)

const (
	indexStations     = "stations"
	indexSegments     = "segments"
	indexLines        = "lines"
	indexTrackStation = "track_station"
	indexGateStation  = "gate_station"
	indexLineSegLine  = "lineseg_line"
	indexRailConnSeg  = "railconn_seg"
	indexStopStation  = "stop_station"
	indexStopJob      = "stop_job"
)

func key(prefix string, id rosen.ID) string {
	return fmt.Sprintf("%s:%d", prefix, id)
}

// DB is a buntdb-backed topology and schedule repository.
// Writes publish an Event on Events after they commit.
type DB struct {
	db     *buntdb.DB
	sender *notify.MultiplexerSender[Event]
	Events *notify.Multiplexer[Event]
}

var _ Repository = (*DB)(nil)
var _ Lister = (*DB)(nil)

// Open opens (or creates) the database at path. Use ":memory:" for a throwaway database.
func Open(path string) (*DB, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	d := &DB{db: db}
	d.sender, d.Events = notify.NewMultiplexerSender[Event]("store")
	if err := d.createIndexes(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) createIndexes() error {
	indexes := []struct {
		name    string
		pattern string
		paths   []string
	}{
		{indexStations, prefixStation + ":*", []string{"id"}},
		{indexSegments, prefixSegment + ":*", []string{"id"}},
		{indexLines, prefixLine + ":*", []string{"id"}},
		{indexTrackStation, prefixTrack + ":*", []string{"station_id", "pos"}},
		{indexGateStation, prefixGate + ":*", []string{"station_id"}},
		{indexLineSegLine, prefixLineSeg + ":*", []string{"line_id", "pos"}},
		{indexRailConnSeg, prefixRailConn + ":*", []string{"seg_id"}},
		{indexStopStation, prefixStop + ":*", []string{"station_id", "arrival"}},
		{indexStopJob, prefixStop + ":*", []string{"job_id", "arrival"}},
	}
	for _, idx := range indexes {
		less := make([]func(a, b string) bool, len(idx.paths))
		for i, path := range idx.paths {
			less[i] = buntdb.IndexJSON(path)
		}
		err := d.db.ReplaceIndex(idx.name, idx.pattern, less...)
		if err != nil {
			return errors.Wrapf(err, "create index %s", idx.name)
		}
	}
	return nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func unavailable(err error) error {
	if errors.Is(err, buntdb.ErrDatabaseClosed) {
		return errors.Wrap(ErrUnavailable, err.Error())
	}
	return err
}

func (d *DB) view(fn func(tx *buntdb.Tx) error) error {
	if d == nil || d.db == nil {
		return ErrUnavailable
	}
	return unavailable(d.db.View(fn))
}

func (d *DB) update(fn func(tx *buntdb.Tx) error) error {
	if d == nil || d.db == nil {
		return ErrUnavailable
	}
	return unavailable(d.db.Update(fn))
}

func (d *DB) publish(e Event) {
	zap.S().Debugw("store event", "event", e)
	d.sender.Send(e)
}

// get decodes the record at prefix:id. It returns ErrNotFound when the key is absent.
func get[T any](tx *buntdb.Tx, prefix string, id rosen.ID) (T, error) {
	var rec T
	k := key(prefix, id)
	v, err := tx.Get(k)
	if errors.Is(err, buntdb.ErrNotFound) {
		return rec, errors.Wrapf(ErrNotFound, "%s %d", prefix, id)
	}
	if err != nil {
		return rec, errors.Wrapf(err, "get %s", k)
	}
	if err := json.Unmarshal([]byte(v), &rec); err != nil {
		return rec, errors.Wrapf(err, "decode %s", k)
	}
	return rec, nil
}

// ascendEqual calls fn for every record of index whose leading field equals id, in index order.
func ascendEqual[T any](tx *buntdb.Tx, index, field string, id rosen.ID, leading func(T) rosen.ID, fn func(T) error) error {
	pivot := fmt.Sprintf(`{%q:%d}`, field, id)
	var ferr error
	err := tx.AscendGreaterOrEqual(index, pivot, func(k, v string) bool {
		var rec T
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			ferr = errors.Wrapf(err, "decode %s", k)
			return false
		}
		if leading(rec) != id {
			return false
		}
		if err := fn(rec); err != nil {
			ferr = err
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	return ferr
}

// ascendAll calls fn for every record of index, in index order.
func ascendAll[T any](tx *buntdb.Tx, index string, fn func(T) error) error {
	var ferr error
	err := tx.Ascend(index, func(k, v string) bool {
		var rec T
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			ferr = errors.Wrapf(err, "decode %s", k)
			return false
		}
		if err := fn(rec); err != nil {
			ferr = err
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	return ferr
}

func set(tx *buntdb.Tx, prefix string, id rosen.ID, rec interface{}) (previous string, existed bool, err error) {
	if id <= 0 {
		return "", false, fmt.Errorf("%s: invalid id %d", prefix, id)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", false, errors.Wrapf(err, "encode %s %d", prefix, id)
	}
	previous, existed, err = tx.Set(key(prefix, id), string(data), nil)
	if err != nil {
		return "", false, errors.Wrapf(err, "set %s %d", prefix, id)
	}
	return previous, existed, nil
}
