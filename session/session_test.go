package session

import (
	"path/filepath"
	"testing"

	"github.com/sun-rs/three/catalog"
	"github.com/sun-rs/three/store"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "sessions.json"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	return NewCoordinator(st, catalog.Default())
}

func TestScopeKeyDeterministicAndCollisionSafe(t *testing.T) {
	a := ScopeKey("repo", "role", "model", "client", "conv")
	b := ScopeKey("repo", "role", "model", "client", "conv")
	if a != b {
		t.Fatal("expected identical inputs to hash identically")
	}
	c := ScopeKey("rep", "orole", "model", "client", "conv")
	if a == c {
		t.Fatal("expected differently-split concatenation to hash differently")
	}
}

func TestDecideModePrecedence(t *testing.T) {
	coord := newTestCoordinator(t)
	claude, _ := catalog.Default().Lookup(catalog.Claude)
	scopeKey := ScopeKey("/repo", "writer", "claude/opus", "cli", "")

	d, err := coord.Decide(scopeKey, false, "", claude)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Mode != "new" || !d.PersonaEligible {
		t.Fatalf("expected new+persona-eligible for an empty scope, got %+v", d)
	}

	if err := coord.RecordSuccess(scopeKey, "claude", "writer", "sess-1", false); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	d, err = coord.Decide(scopeKey, false, "", claude)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Mode != "resume_store" || d.ResumeSessionID != "sess-1" {
		t.Fatalf("expected resume_store sess-1, got %+v", d)
	}

	d, err = coord.Decide(scopeKey, false, "explicit-sid", claude)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Mode != "resume_explicit" || d.ResumeSessionID != "explicit-sid" {
		t.Fatalf("expected explicit session id to win over store, got %+v", d)
	}

	d, err = coord.Decide(scopeKey, true, "explicit-sid", claude)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Mode != "new" || !d.PersonaEligible {
		t.Fatalf("expected force_new to win over everything, got %+v", d)
	}
}

func TestDecideModeStatelessHistory(t *testing.T) {
	coord := newTestCoordinator(t)
	kimi, _ := catalog.Default().Lookup(catalog.Kimi)
	if !IsStateless(kimi) {
		t.Fatal("expected kimi adapter to be classified stateless")
	}
	claude, _ := catalog.Default().Lookup(catalog.Claude)
	if IsStateless(claude) {
		t.Fatal("expected claude adapter to be classified non-stateless")
	}

	scopeKey := ScopeKey("/repo", "writer", "kimi/default", "cli", "")
	if err := coord.RecordSuccess(scopeKey, "kimi", "writer", "", true); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	d, err := coord.Decide(scopeKey, false, "", kimi)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Mode != "resume_store" {
		t.Fatalf("expected resume_store via has_history alone, got %+v", d)
	}
}

func TestLockSerializesSameScope(t *testing.T) {
	coord := newTestCoordinator(t)
	release := coord.Lock("scope-1")
	done := make(chan struct{})
	go func() {
		release2 := coord.Lock("scope-1")
		release2()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected second Lock to block while first is held")
	default:
	}
	release()
	<-done
}

func TestBeginStatelessResumeConflict(t *testing.T) {
	coord := newTestCoordinator(t)
	release, err := coord.BeginStatelessResume("/repo", catalog.Kimi)
	if err != nil {
		t.Fatalf("unexpected error on first resume: %v", err)
	}
	if _, err := coord.BeginStatelessResume("/repo", catalog.Kimi); err == nil {
		t.Fatal("expected conflict on concurrent resume for the same repo+backend")
	}
	release()
	if _, err := coord.BeginStatelessResume("/repo", catalog.Kimi); err != nil {
		t.Fatalf("expected resume to succeed after release, got %v", err)
	}
}

func TestRecoverFromInvalidResumeEvicts(t *testing.T) {
	coord := newTestCoordinator(t)
	claude, _ := catalog.Default().Lookup(catalog.Claude)
	scopeKey := ScopeKey("/repo", "writer", "claude/opus", "cli", "")
	if err := coord.RecordSuccess(scopeKey, "claude", "writer", "sess-1", false); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	if err := coord.RecoverFromInvalidResume(scopeKey); err != nil {
		t.Fatalf("RecoverFromInvalidResume: %v", err)
	}
	d, err := coord.Decide(scopeKey, false, "", claude)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Mode != "new" {
		t.Fatalf("expected new mode after eviction, got %+v", d)
	}
}
