package graph

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/config"
	"nyiyui.ca/hato/rosen/notify"
	"nyiyui.ca/hato/rosen/store"
)

// ErrSuperseded is returned by a load whose result was discarded because a newer load started.
var ErrSuperseded = errors.New("load superseded by a newer request")

// Changed is published whenever a load completes.
type Changed struct {
	Kind       rosen.GraphKind `json:"kind"`
	ObjectID   rosen.ID        `json:"object-id"`
	ObjectName string          `json:"object-name"`
	// Failed is set when the requested load failed and the scene is empty.
	Failed bool `json:"failed"`
}

// Scene owns one layout snapshot and keeps it loaded from a repository.
// Each Scene is driven by one consumer (an interactive view, or a print job); print jobs use
// their own Scene.
type Scene struct {
	comment string
	repo    store.Repository

	lock    sync.Mutex
	cfg     config.LayoutConfig
	current *Snapshot
	gen     uint64
	// committed is the generation of current; below gen while a load is in flight.
	committed uint64
	// requestedID and requestedKind are what the last LoadGraph asked for, even if it failed.
	requestedID   rosen.ID
	requestedKind rosen.GraphKind

	sendLock sync.Mutex
	sender   *notify.MultiplexerSender[Changed]
	Changes  *notify.Multiplexer[Changed]
}

func NewScene(comment string, repo store.Repository, cfg config.LayoutConfig) *Scene {
	s := &Scene{
		comment: comment,
		repo:    repo,
		cfg:     cfg,
		current: emptySnapshot(cfg),
	}
	s.sender, s.Changes = notify.NewMultiplexerSender[Changed]("scene " + comment)
	return s
}

func (s *Scene) String() string { return s.comment }

// Snapshot returns the current snapshot. It is never nil.
func (s *Scene) Snapshot() *Snapshot {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.current
}

func (s *Scene) ContentSize() rosen.Size { return s.Snapshot().ContentSize }

func (s *Scene) ObjectName() string { return s.Snapshot().ObjectName }

func (s *Scene) FindEventAt(pos rosen.Point, tolerance float64) (Hit, bool) {
	return s.Snapshot().FindEventAt(pos, tolerance)
}

// Requested returns the object of the last LoadGraph call.
func (s *Scene) Requested() (rosen.ID, rosen.GraphKind) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.requestedID, s.requestedKind
}

func (s *Scene) Config() config.LayoutConfig {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.cfg
}

// SetConfig changes the layout constants used by the next load.
func (s *Scene) SetConfig(cfg config.LayoutConfig) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.cfg = cfg
}

// begin starts a new generation; the caller must hold s.lock.
func (s *Scene) begin() uint64 {
	s.gen++
	return s.gen
}

// commit publishes snap if gen is still the latest generation.
func (s *Scene) commit(gen uint64, snap *Snapshot, failed bool) error {
	s.lock.Lock()
	if gen != s.gen {
		s.lock.Unlock()
		return ErrSuperseded
	}
	s.current = snap
	s.committed = gen
	ev := Changed{
		Kind:       snap.Kind,
		ObjectID:   snap.ObjectID,
		ObjectName: snap.ObjectName,
		Failed:     failed,
	}
	// keep notifications in commit order
	s.sendLock.Lock()
	s.lock.Unlock()
	defer s.sendLock.Unlock()
	s.sender.Send(ev)
	return nil
}

// LoadGraph loads the object of the given kind. When force is false, no load is in flight and
// the same object is already loaded, nothing is queried. The previous snapshot is dropped before loading, so a
// failed load leaves the scene empty.
func (s *Scene) LoadGraph(id rosen.ID, kind rosen.GraphKind, force bool) error {
	s.lock.Lock()
	if !force && s.committed == s.gen &&
		s.requestedID == id && s.requestedKind == kind &&
		s.current.ObjectID == id && s.current.Kind == kind {
		s.lock.Unlock()
		return nil
	}
	gen := s.begin()
	cfg := s.cfg
	s.requestedID, s.requestedKind = id, kind
	s.current = emptySnapshot(cfg)
	s.lock.Unlock()

	snap, err := load(s.repo, cfg, id, kind)
	if err == nil {
		err = project(s.repo, snap)
	}
	if err != nil {
		if cerr := s.commit(gen, emptySnapshot(cfg), true); cerr != nil {
			return cerr
		}
		return fmt.Errorf("scene %s: load %s %d: %w", s.comment, kind, id, err)
	}
	return s.commit(gen, snap, false)
}

// Reload reloads the last requested object.
func (s *Scene) Reload() error {
	id, kind := s.Requested()
	return s.LoadGraph(id, kind, true)
}

// ReloadJobs re-projects schedule data onto the current topology.
func (s *Scene) ReloadJobs() error {
	s.lock.Lock()
	cur := s.current
	if cur.IsEmpty() {
		s.lock.Unlock()
		return nil
	}
	gen := s.begin()
	s.lock.Unlock()

	next := cur.cloneTopology()
	if err := project(s.repo, next); err != nil {
		zap.S().Warnw("reloading jobs failed, clearing scene",
			"scene", s.comment, "error", err)
		if cerr := s.commit(gen, emptySnapshot(cur.Config), true); cerr != nil {
			return cerr
		}
		return fmt.Errorf("scene %s: reload jobs: %w", s.comment, err)
	}
	return s.commit(gen, next, false)
}

// Clear unloads the scene.
func (s *Scene) Clear() error {
	return s.LoadGraph(0, rosen.KindNone, true)
}
