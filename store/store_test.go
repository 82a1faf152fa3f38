package store

import (
	"path/filepath"
	"testing"

	"github.com/sun-rs/three"
)

func TestPutGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	rec := three.SessionRecord{BackendSessionID: "abc-123", HasHistory: true, BackendID: "claude", RoleID: "writer"}
	if err := s.Put("scope-1", rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get("scope-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected record to exist")
	}
	if got.BackendSessionID != "abc-123" || got.RoleID != "writer" {
		t.Fatalf("Get() = %+v, want matching abc-123/writer", got)
	}
}

func TestGetMissingScope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, ok, err := s.Get("nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected no record for unseeded store")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Remove("never-existed"); err != nil {
		t.Fatalf("Remove on empty store: %v", err)
	}

	if err := s.Put("scope-1", three.SessionRecord{BackendSessionID: "x"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Remove("scope-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove("scope-1"); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	_, ok, err := s.Get("scope-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected record gone after Remove")
	}
}

func TestGetOrCreateOnlyCreatesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	calls := 0
	build := func() three.SessionRecord {
		calls++
		return three.SessionRecord{BackendSessionID: "fresh"}
	}

	first, err := s.GetOrCreate("scope-1", build)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := s.GetOrCreate("scope-1", build)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected builder called once, got %d", calls)
	}
	if first.BackendSessionID != second.BackendSessionID {
		t.Fatalf("expected stable record across calls, got %+v and %+v", first, second)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.Put("scope-1", three.SessionRecord{BackendSessionID: "persisted"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok, err := s2.Get("scope-1")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if !ok || got.BackendSessionID != "persisted" {
		t.Fatalf("expected persisted record after reopen, got %+v, ok=%v", got, ok)
	}
}
