package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/config"
	"nyiyui.ca/hato/rosen/notify"
	"nyiyui.ca/hato/rosen/store"
)

// JobSelected is published when a consumer selects a job on a scene (0 clears the selection).
type JobSelected struct {
	Scene string   `json:"scene"`
	JobID rosen.ID `json:"job-id"`
}

// Manager keeps registered scenes in sync with repository changes.
type Manager struct {
	lock   sync.Mutex
	scenes []*Scene
	active *Scene

	selSender  *notify.MultiplexerSender[JobSelected]
	Selections *notify.Multiplexer[JobSelected]
}

func NewManager() *Manager {
	m := &Manager{}
	m.selSender, m.Selections = notify.NewMultiplexerSender[JobSelected]("manager selections")
	return m
}

func (m *Manager) Register(s *Scene) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if slices.Contains(m.scenes, s) {
		return fmt.Errorf("scene %s already registered", s)
	}
	m.scenes = append(m.scenes, s)
	return nil
}

func (m *Manager) Unregister(s *Scene) {
	m.lock.Lock()
	defer m.lock.Unlock()
	i := slices.Index(m.scenes, s)
	if i == -1 {
		return
	}
	m.scenes = slices.Delete(m.scenes, i, i+1)
	if m.active == s {
		m.active = nil
	}
}

func (m *Manager) Scenes() []*Scene {
	m.lock.Lock()
	defer m.lock.Unlock()
	return slices.Clone(m.scenes)
}

func (m *Manager) SetActive(s *Scene) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.active = s
}

func (m *Manager) Active() *Scene {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.active
}

// SelectJob publishes a job selection made on s.
func (m *Manager) SelectJob(s *Scene, jobID rosen.ID) {
	m.selSender.Send(JobSelected{Scene: s.String(), JobID: jobID})
}

func (m *Manager) ClearAll() {
	for _, s := range m.Scenes() {
		m.apply(s, s.Clear)
	}
}

// UpdateLayoutConfig gives every scene new layout constants and reloads them.
func (m *Manager) UpdateLayoutConfig(cfg config.LayoutConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, s := range m.Scenes() {
		s.SetConfig(cfg)
		m.apply(s, s.Reload)
	}
	return nil
}

func (m *Manager) apply(s *Scene, f func() error) {
	err := f()
	if errors.Is(err, ErrSuperseded) {
		zap.S().Debugw("scene reload superseded", "scene", s.String())
		return
	}
	if err != nil {
		zap.S().Warnw("scene reload failed", "scene", s.String(), "error", err)
	}
}

func showing(s *Scene, kind rosen.GraphKind, id rosen.ID) bool {
	reqID, reqKind := s.Requested()
	return reqKind == kind && reqID == id
}

func containsAny(snap *Snapshot, stations []rosen.ID) bool {
	for _, id := range stations {
		if snap.Contains(id) {
			return true
		}
	}
	return false
}

// Handle applies one repository change to the registered scenes.
func (m *Manager) Handle(e store.Event) {
	for _, s := range m.Scenes() {
		snap := s.Snapshot()
		switch e.Scope {
		case store.StationChanged:
			for _, id := range e.IDs {
				if e.Change == store.Removed && showing(s, rosen.KindStation, id) {
					m.apply(s, s.Clear)
					break
				}
				if snap.Contains(id) {
					m.apply(s, s.Reload)
					break
				}
			}
		case store.SegmentChanged:
			for _, id := range e.IDs {
				if showing(s, rosen.KindSegment, id) {
					if e.Change == store.Removed {
						m.apply(s, s.Clear)
					} else {
						m.apply(s, s.Reload)
					}
					break
				}
				if snap.Kind == rosen.KindLine && snap.UsesSegment(id) {
					m.apply(s, s.Reload)
					break
				}
			}
		case store.LineChanged:
			for _, id := range e.IDs {
				if !showing(s, rosen.KindLine, id) {
					continue
				}
				if e.Change == store.Removed {
					m.apply(s, s.Clear)
				} else {
					m.apply(s, s.Reload)
				}
				break
			}
		case store.JobsChanged:
			if containsAny(snap, e.StationIDs) {
				m.apply(s, s.ReloadJobs)
			}
		}
	}
}

// Run handles events until ctx is done.
func (m *Manager) Run(ctx context.Context, events *notify.Multiplexer[store.Event]) error {
	c := make(chan store.Event, 64)
	events.Subscribe("graph manager", c)
	defer events.Unsubscribe(c)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-c:
			m.Handle(e)
		}
	}
}
