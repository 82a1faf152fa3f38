package three

import "time"

// ModelRef is a parsed "backend/model@variant" reference. The
// sentinel form "backend/default" means "omit the model flag, let the
// CLI pick its own default"; variants are forbidden on that sentinel.
type ModelRef struct {
	Backend string
	Model   string
	Variant string
}

// IsDefault reports whether r is the "backend/default" sentinel.
func (r ModelRef) IsDefault() bool {
	return r.Model == "default"
}

// String reconstructs the "backend/model@variant" text form.
func (r ModelRef) String() string {
	s := r.Backend + "/" + r.Model
	if r.Variant != "" {
		s += "@" + r.Variant
	}
	return s
}

// Capabilities declares what a role is allowed to do. Only Filesystem is
// enforced against the adapter catalog; the rest are carried through to
// the renderer's context for templates that branch on them.
type Capabilities struct {
	Filesystem string `json:"filesystem,omitempty"` // "read-only" | "read-write"
	Shell      bool   `json:"shell,omitempty"`
	Network    bool   `json:"network,omitempty"`
	Tools      bool   `json:"tools,omitempty"`
}

// Persona is an opaque persona description/prompt pair, supplied by the
// role resolver. Its content is never interpreted by the engine.
type Persona struct {
	Description string `json:"description,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
}

// RoleProfile is the resolved, ready-to-invoke shape of a config role.
type RoleProfile struct {
	RoleID          string
	BackendID       string
	ModelID         string // "model" or "model@variant", without the backend
	Variant         string
	EffectiveOptions map[string]string
	Capabilities    Capabilities
	Persona         *Persona
	TimeoutSecs     int
	Enabled         bool
	BackendFallback *FallbackSpec
}

// FallbackSpec names the model to retry with, and the substrings that
// trigger the retry, when the primary invocation fails.
type FallbackSpec struct {
	Model    ModelRef
	Patterns []string
}

// SessionRecord is the durable, per-scope session continuity record.
type SessionRecord struct {
	ScopeKey         string    `json:"-"`
	BackendSessionID string    `json:"session_id,omitempty"`
	HasHistory       bool      `json:"has_history"`
	LastUpdate       time.Time `json:"last_update"`
	BackendID        string    `json:"backend"`
	RoleID           string    `json:"role"`
}

// Mode is the session-continuation decision made by the coordinator.
type Mode string

const (
	ModeNew           Mode = "new"
	ModeResumeExplicit Mode = "resume_explicit"
	ModeResumeStore    Mode = "resume_store"
)

// Transport is how the prompt reaches the child process.
type Transport string

const (
	TransportArg   Transport = "arg"
	TransportStdin Transport = "stdin"
)

// Invocation is the ephemeral, fully-resolved description of one backend
// call, built by the engine before spawning a child process.
type Invocation struct {
	ScopeKey        string
	Prompt          string
	Mode            Mode
	PersonaInjected bool
	Transport       Transport
	Argv            []string
	Binary          string
	WorkDir         string
	DeadlineSecs    int
	Role            RoleProfile
}

// Result is the uniform, normalized outcome of one backend invocation.
type Result struct {
	Success       bool     `json:"success"`
	SessionID     string   `json:"session_id,omitempty"`
	Message       string   `json:"message"`
	Warnings      []string `json:"warnings,omitempty"`
	StderrExcerpt string   `json:"stderr_excerpt,omitempty"`
	Error         *Error   `json:"error,omitempty"`
}

// Failure builds a failed Result carrying err.
func Failure(err *Error, warnings ...string) Result {
	return Result{Success: false, Error: err, Warnings: warnings}
}
