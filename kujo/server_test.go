package kujo

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/config"
	"nyiyui.ca/hato/rosen/graph"
	"nyiyui.ca/hato/rosen/paging"
	"nyiyui.ca/hato/rosen/store"
)

func newTestServer(t *testing.T) (*Server, *graph.Scene) {
	t.Helper()
	d := store.OpenTestbench()
	t.Cleanup(func() { d.Close() })
	scene := graph.NewScene("kujo", d, config.DefaultLayoutConfig())
	m := graph.NewManager()
	if err := m.Register(scene); err != nil {
		t.Fatalf("Register: %s", err)
	}
	s := NewServer(scene, m, config.DefaultPrintConfig())
	t.Cleanup(s.Close)
	return s, scene
}

func get(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestLoadAndSnapshot(t *testing.T) {
	s, _ := newTestServer(t)
	w := get(t, s, http.MethodPost, "/load?kind=line&id=1")
	if w.Code != http.StatusOK {
		t.Fatalf("load: %d %s", w.Code, w.Body)
	}
	w = get(t, s, http.MethodGet, "/snapshot")
	if w.Code != http.StatusOK {
		t.Fatalf("snapshot: %d %s", w.Code, w.Body)
	}
	var snap graph.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %s", err)
	}
	if snap.ObjectName != "Main" || len(snap.Positions) != 3 || snap.Stations[store.TBBeta].Name != "Beta" {
		t.Fatalf("unexpected snapshot %#v", snap)
	}

	for _, tc := range []struct {
		name, method, target string
		code                 int
	}{
		{"broken line", http.MethodPost, "/load?kind=line&id=3", http.StatusUnprocessableEntity},
		{"bad kind", http.MethodPost, "/load?kind=train&id=1", http.StatusBadRequest},
		{"bad id", http.MethodPost, "/load?kind=line&id=x", http.StatusBadRequest},
		{"get", http.MethodGet, "/load?kind=line&id=1", http.StatusMethodNotAllowed},
		{"clear", http.MethodPost, "/load?kind=none", http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if w := get(t, s, tc.method, tc.target); w.Code != tc.code {
				t.Fatalf("expected %d, got %d %s", tc.code, w.Code, w.Body)
			}
		})
	}
}

func TestHit(t *testing.T) {
	s, scene := newTestServer(t)
	if err := scene.LoadGraph(store.TBLineMain, rosen.KindLine, false); err != nil {
		t.Fatalf("LoadGraph: %s", err)
	}
	// default layout: Beta at 295, down job stops there 08:30 to 08:45
	w := get(t, s, http.MethodGet, "/hit?x=296&y=1300")
	if w.Code != http.StatusOK {
		t.Fatalf("hit: %d %s", w.Code, w.Body)
	}
	var got hitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %s", err)
	}
	expected := hitResponse{JobID: store.TBJobDown, Category: rosen.CategoryRegional, StopID: 12}
	if got != expected {
		t.Fatalf("diff: %s", cmp.Diff(expected, got))
	}
	if w := get(t, s, http.MethodGet, "/hit?x=296&y=1300&tol=0.5"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 outside tolerance, got %d", w.Code)
	}
	if w := get(t, s, http.MethodGet, "/hit?x=296"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without y, got %d", w.Code)
	}
}

func TestPages(t *testing.T) {
	s, scene := newTestServer(t)
	if err := scene.LoadGraph(store.TBLineMain, rosen.KindLine, false); err != nil {
		t.Fatalf("LoadGraph: %s", err)
	}
	w := get(t, s, http.MethodGet, "/pages?scale=0.5&margin=20")
	if w.Code != http.StatusOK {
		t.Fatalf("pages: %d %s", w.Code, w.Body)
	}
	var plan paging.Plan
	if err := json.Unmarshal(w.Body.Bytes(), &plan); err != nil {
		t.Fatalf("decode: %s", err)
	}
	if len(plan.Pages) != 3 || plan.Pages[2].Label != "Row: 3/3 Col: 1/1" {
		t.Fatalf("unexpected plan %#v", plan.Pages)
	}
	for _, q := range []string{
		"margin=1000",
		"margin=297.4999999",
		"scale=100&margin=0",
		"scale=NaN",
		"scale=Inf",
		"margin=NaN",
	} {
		if w := get(t, s, http.MethodGet, "/pages?"+q); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestEvents(t *testing.T) {
	s, scene := newTestServer(t)
	ts := httptest.NewServer(s)
	defer ts.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events?stream="+StreamGraph, nil)
	if err != nil {
		t.Fatalf("NewRequest: %s", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %s", err)
	}
	defer resp.Body.Close()

	data := make(chan string, 1)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if line := sc.Text(); strings.HasPrefix(line, "data:") {
				data <- strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				return
			}
		}
	}()

	// the client may register with the stream after the first publish, so keep loading
	deadline := time.After(5 * time.Second)
	for {
		if err := scene.LoadGraph(store.TBSegAB, rosen.KindSegment, true); err != nil {
			t.Fatalf("LoadGraph: %s", err)
		}
		select {
		case d := <-data:
			var ev graph.Changed
			if err := json.Unmarshal([]byte(d), &ev); err != nil {
				t.Fatalf("decode %q: %s", d, err)
			}
			expected := graph.Changed{Kind: rosen.KindSegment, ObjectID: store.TBSegAB, ObjectName: "Alpha-Beta"}
			if ev != expected {
				t.Fatalf("diff: %s", cmp.Diff(expected, ev))
			}
			return
		case <-deadline:
			t.Fatal("no event received")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestSubscribedOnReturn(t *testing.T) {
	d := store.OpenTestbench()
	defer d.Close()
	scene := graph.NewScene("kujo", d, config.DefaultLayoutConfig())
	m := graph.NewManager()
	s := NewServer(scene, m, config.DefaultPrintConfig())
	if n := scene.Changes.Len(); n != 1 {
		t.Fatalf("graph subscribers %d, expected 1", n)
	}
	if n := m.Selections.Len(); n != 1 {
		t.Fatalf("selection subscribers %d, expected 1", n)
	}
	s.Close()
	deadline := time.Now().Add(5 * time.Second)
	for scene.Changes.Len() != 0 || m.Selections.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("forwarders did not unsubscribe after Close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAllowOrigins(t *testing.T) {
	s, _ := newTestServer(t)
	s.AllowOrigins("http://localhost:3000")
	for _, tc := range []struct {
		origin   string
		expected string
	}{
		{"http://localhost:3000", "http://localhost:3000"},
		{"http://example.com", ""},
	} {
		r := httptest.NewRequest(http.MethodGet, "/snapshot", nil)
		r.Header.Set("Origin", tc.origin)
		w := httptest.NewRecorder()
		s.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d", tc.origin, w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != tc.expected {
			t.Errorf("%s: allowed origin %q, expected %q", tc.origin, got, tc.expected)
		}
	}
}
