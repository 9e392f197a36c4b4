package ctl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"nyiyui.ca/hato/rosen"
	"nyiyui.ca/hato/rosen/config"
	"nyiyui.ca/hato/rosen/store"
)

func TestParseIDs(t *testing.T) {
	got, err := parseIDs("1, 2,,3")
	if err != nil {
		t.Fatalf("parseIDs: %s", err)
	}
	expected := []rosen.ID{1, 2, 3}
	if !cmp.Equal(got, expected) {
		t.Fatalf("diff: %s", cmp.Diff(expected, got))
	}
	if _, err := parseIDs("1,x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunExport(t *testing.T) {
	d := store.OpenTestbench()
	defer d.Close()
	dir := t.TempDir()
	o := options{out: dir, format: "svg", all: true}
	if err := runExport(context.Background(), d, config.Default(), o, rosen.KindSegment, []rosen.ID{store.TBSegAB}); err != nil {
		t.Fatalf("runExport: %s", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "Beta-Gamma.svg")); err != nil {
		t.Fatalf("expected Beta-Gamma.svg: %s", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "Alpha-Beta.svg")); !os.IsNotExist(err) {
		t.Fatalf("excluded segment was exported: %v", err)
	}

	o.format = "pdf"
	if err := runExport(context.Background(), d, config.Default(), o, rosen.KindSegment, nil); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
