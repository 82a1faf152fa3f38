// Package session implements the session coordinator: scope-key
// derivation, resume/new mode selection, persona-injection gating,
// per-scope mutual exclusion, and parallel-resume-conflict detection for
// stateless backends. The coordinator's locking is in-process only, so it
// is built on plain sync.Mutex rather than any third-party
// concurrency library; see DESIGN.md.
package session

import (
	"sync"

	"github.com/sun-rs/three"
	"github.com/sun-rs/three/catalog"
	"github.com/sun-rs/three/store"
)

// Decision is the outcome of resolving how a call should continue a scope.
type Decision struct {
	Mode            three.Mode
	ResumeSessionID string // set only for ModeResumeExplicit/ModeResumeStore
	PersonaEligible bool   // true only when Mode == ModeNew
}

// refLock is a per-scope mutex with a waiter count, reaped from the table
// once its last holder releases it.
type refLock struct {
	mu   sync.Mutex
	refs int
}

// Coordinator serializes access to each scope and tracks in-flight resumes
// against stateless backends.
type Coordinator struct {
	store *store.Store
	cat   *catalog.Catalog

	tableMu sync.Mutex
	locks   map[string]*refLock

	statelessMu sync.Mutex
	statelessInFlight map[string]bool // key: repoRoot + "\x00" + backendID
}

// NewCoordinator builds a Coordinator over a session store and the adapter
// catalog (used to tell stateless backends apart from session-id-bearing
// ones).
func NewCoordinator(st *store.Store, cat *catalog.Catalog) *Coordinator {
	return &Coordinator{
		store:             st,
		cat:               cat,
		locks:             map[string]*refLock{},
		statelessInFlight: map[string]bool{},
	}
}

// Lock acquires the mutual-exclusion lock for scopeKey, blocking until
// available, and returns a release function the caller must defer — at
// most one invocation is ever in flight per scope.
func (c *Coordinator) Lock(scopeKey string) func() {
	c.tableMu.Lock()
	l, ok := c.locks[scopeKey]
	if !ok {
		l = &refLock{}
		c.locks[scopeKey] = l
	}
	l.refs++
	c.tableMu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()
		c.tableMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, scopeKey)
		}
		c.tableMu.Unlock()
	}
}

// IsStateless reports whether adapter's output parser never yields a
// session id, which is this engine's operational definition of a backend
// whose continuity lives entirely in the child process's own local state
// rather than in an id the coordinator can hand back on resume (kimi today).
func IsStateless(adapter catalog.Adapter) bool {
	return adapter.OutputParser.SessionIDPath == ""
}

// BeginStatelessResume registers an in-flight resume against a stateless
// backend for repoRoot, returning an error if another resume against the
// same (repoRoot, backend) pair is already in flight, and a release
// function otherwise. Two concurrent
// roles resuming the same stateless backend in the same repository would
// both mutate the backend's own local conversation state with no way for
// either of them to tell which wrote last, so this is refused outright
// rather than silently serialized.
func (c *Coordinator) BeginStatelessResume(repoRoot string, backendID catalog.BackendID) (func(), error) {
	key := repoRoot + "\x00" + string(backendID)

	c.statelessMu.Lock()
	defer c.statelessMu.Unlock()

	if c.statelessInFlight[key] {
		return nil, three.NewError(three.KindParallelResumeConflict,
			"another resume against %q is already in flight for this repository", backendID)
	}
	c.statelessInFlight[key] = true

	return func() {
		c.statelessMu.Lock()
		delete(c.statelessInFlight, key)
		c.statelessMu.Unlock()
	}, nil
}

// Decide implements the mode-selection precedence: force_new wins
// outright; an explicit caller-supplied session id resumes that id; a
// stored record for the scope resumes the stored id (or, for a stateless
// backend with a stored has_history flag and no id, resumes via history
// alone); otherwise the call starts a new session.
func (c *Coordinator) Decide(scopeKey string, forceNew bool, explicitSessionID string, adapter catalog.Adapter) (Decision, error) {
	if forceNew {
		return Decision{Mode: three.ModeNew, PersonaEligible: true}, nil
	}
	if explicitSessionID != "" {
		return Decision{Mode: three.ModeResumeExplicit, ResumeSessionID: explicitSessionID}, nil
	}

	rec, ok, err := c.store.Get(scopeKey)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		return Decision{Mode: three.ModeNew, PersonaEligible: true}, nil
	}

	if rec.BackendSessionID != "" {
		return Decision{Mode: three.ModeResumeStore, ResumeSessionID: rec.BackendSessionID}, nil
	}
	if IsStateless(adapter) && rec.HasHistory {
		return Decision{Mode: three.ModeResumeStore}, nil
	}
	return Decision{Mode: three.ModeNew, PersonaEligible: true}, nil
}

// RecordSuccess persists the post-call continuity state for scopeKey after
// a successful invocation: a returned session id is stored verbatim;
// a stateless backend with no id is marked has_history so a future Decide
// call resumes it by history alone.
func (c *Coordinator) RecordSuccess(scopeKey, backendID, roleID, newSessionID string, statelessBackend bool) error {
	rec := three.SessionRecord{
		BackendSessionID: newSessionID,
		HasHistory:       newSessionID != "" || statelessBackend,
		BackendID:        backendID,
		RoleID:           roleID,
	}
	return c.store.Put(scopeKey, rec)
}

// RecoverFromInvalidResume evicts the stored record for scopeKey so the
// caller can retry once in ModeNew, per the session_invalid_on_resume
// recovery path.
func (c *Coordinator) RecoverFromInvalidResume(scopeKey string) error {
	return c.store.Remove(scopeKey)
}
