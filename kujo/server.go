// Package kujo serves scenes over HTTP and streams their changes with server-sent events.
package kujo

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/r3labs/sse/v2"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/config"
	"nyiyui.ca/hato/rosen/graph"
	"nyiyui.ca/hato/rosen/paging"
)

const (
	StreamGraph     = "graph"
	StreamSelection = "selection"

	defaultTolerance = 5
)

type Server struct {
	scene *graph.Scene
	m     *graph.Manager
	print config.PrintConfig
	s     *sse.Server
	mux   *http.ServeMux
	h     http.Handler
	done  chan struct{}
}

// NewServer serves scene, which should be registered with m. Close stops forwarding.
func NewServer(scene *graph.Scene, m *graph.Manager, pc config.PrintConfig) *Server {
	s := &Server{
		scene: scene,
		m:     m,
		print: pc,
		s:     sse.New(),
		mux:   http.NewServeMux(),
		done:  make(chan struct{}),
	}
	s.h = s.mux
	s.s.CreateStream(StreamGraph)
	s.s.CreateStream(StreamSelection)
	s.mux.Handle("/events", s.s)
	s.mux.HandleFunc("/snapshot", s.handleSnapshot)
	s.mux.HandleFunc("/hit", s.handleHit)
	s.mux.HandleFunc("/pages", s.handlePages)
	s.mux.HandleFunc("/load", s.handleLoad)
	s.mux.HandleFunc("/select", s.handleSelect)
	// subscribe before returning so that no event sent afterwards is missed
	graphCh := make(chan graph.Changed, 8)
	scene.Changes.Subscribe("kujo "+StreamGraph, graphCh)
	selCh := make(chan graph.JobSelected, 8)
	m.Selections.Subscribe("kujo "+StreamSelection, selCh)
	go forward[graph.Changed](s, StreamGraph, scene.Changes, graphCh)
	go forward[graph.JobSelected](s, StreamSelection, m.Selections, selCh)
	return s
}

type subscriber[E any] interface {
	Unsubscribe(c chan E) bool
}

// forward publishes events received on ch, which must be subscribed to mux, until Close.
func forward[E any](s *Server, stream string, mux subscriber[E], ch chan E) {
	defer mux.Unsubscribe(ch)
	for {
		select {
		case <-s.done:
			return
		case e := <-ch:
			data, err := json.Marshal(e)
			if err != nil {
				zap.S().Errorw("marshal event", "stream", stream, "error", err)
				continue
			}
			s.s.TryPublish(stream, &sse.Event{
				ID:   []byte(uuid.NewString()),
				Data: data,
			})
		}
	}
}

func (s *Server) Close() {
	close(s.done)
	s.s.Close()
}

// AllowOrigins lets browsers on origins call the server. Call it before serving.
func (s *Server) AllowOrigins(origins ...string) {
	s.h = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(s.mux)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.h.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Warnw("write response", "error", err)
	}
}

func floatParam(r *http.Request, key string, def float64, required bool) (float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		if required {
			return 0, &paramError{key, "missing"}
		}
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &paramError{key, err.Error()}
	}
	return f, nil
}

type paramError struct {
	key, reason string
}

func (e *paramError) Error() string { return "parameter " + e.key + ": " + e.reason }

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.scene.Snapshot())
}

type hitResponse struct {
	JobID    rosen.ID          `json:"jobId"`
	Category rosen.JobCategory `json:"category"`
	StopID   rosen.ID          `json:"stopId"`
}

func (s *Server) handleHit(w http.ResponseWriter, r *http.Request) {
	var p rosen.Point
	var tol float64
	var err error
	if p.X, err = floatParam(r, "x", 0, true); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if p.Y, err = floatParam(r, "y", 0, true); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if tol, err = floatParam(r, "tol", defaultTolerance, false); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	hit, ok := s.scene.FindEventAt(p, tol)
	if !ok {
		http.Error(w, "no job here", http.StatusNotFound)
		return
	}
	writeJSON(w, hitResponse{JobID: hit.JobID, Category: hit.Category, StopID: hit.StopID})
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	cfg := s.print
	var err error
	if cfg.ScaleFactor, err = floatParam(r, "scale", cfg.ScaleFactor, false); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if cfg.MarginWidth, err = floatParam(r, "margin", cfg.MarginWidth, false); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	plan, err := paging.PlanPages(rosen.RectFromSize(s.scene.ContentSize()), paging.NewPageLayout(cfg))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, plan)
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	kind, err := rosen.ParseGraphKind(r.URL.Query().Get("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil && kind != rosen.KindNone {
		http.Error(w, "parameter id: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.scene.LoadGraph(rosen.ID(id), kind, false); err != nil {
		zap.S().Infow("load failed", "kind", kind, "id", id, "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, graph.Changed{Kind: kind, ObjectID: rosen.ID(id), ObjectName: s.scene.ObjectName()})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := strconv.ParseInt(r.URL.Query().Get("job"), 10, 64)
	if err != nil {
		http.Error(w, "parameter job: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.m.SelectJob(s.scene, rosen.ID(id))
	w.WriteHeader(http.StatusNoContent)
}
