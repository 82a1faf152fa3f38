// Package catalog holds the immutable, process-embedded table of
// per-backend argument templates, output parsers, capability lists, and
// prompt-transport policy. It replaces a per-backend adapter file
// hierarchy with one declarative, table-driven entry per backend, covering
// claude, codex, gemini, opencode, and kimi.
package catalog

import "github.com/sun-rs/three/template"

// BackendID names a supported external agent CLI.
type BackendID string

const (
	Codex    BackendID = "codex"
	Claude   BackendID = "claude"
	Gemini   BackendID = "gemini"
	OpenCode BackendID = "opencode"
	Kimi     BackendID = "kimi"
)

const (
	defaultPromptMaxChars = 32768
)

// PromptTransport controls how the renderer delivers the prompt to the
// child process.
type PromptTransport string

const (
	TransportArg   PromptTransport = "arg"
	TransportStdin PromptTransport = "stdin"
	TransportAuto  PromptTransport = "auto"
)

// FilesystemCapability is one of the two values adapters allow or forbid.
type FilesystemCapability string

const (
	FSReadOnly  FilesystemCapability = "read-only"
	FSReadWrite FilesystemCapability = "read-write"
)

// Adapter is the process-embedded declaration of how to call one backend.
type Adapter struct {
	BackendID              BackendID
	Binary                 string
	ArgsTemplate           []template.Token // branches internally on IsResume via template.IfResume/IfNewSession
	OutputParser           ParserSpec
	FilesystemCapabilities []FilesystemCapability // empty => no enforcement
	PromptTransport        PromptTransport
	PromptMaxChars         int
}

// AllowsFilesystem reports whether capability is permitted by the adapter. When
// FilesystemCapabilities is empty, enforcement is disabled and any value
// (including empty) is allowed.
func (a Adapter) AllowsFilesystem(capability string) bool {
	if len(a.FilesystemCapabilities) == 0 {
		return true
	}
	for _, c := range a.FilesystemCapabilities {
		if string(c) == capability {
			return true
		}
	}
	return false
}

// EffectivePromptMaxChars returns the configured limit, defaulting to 32768.
func (a Adapter) EffectivePromptMaxChars() int {
	if a.PromptMaxChars > 0 {
		return a.PromptMaxChars
	}
	return defaultPromptMaxChars
}

// Pick selects which of several json_stream extractions to keep.
type Pick string

const (
	PickFirst Pick = "first"
	PickLast  Pick = "last"
)

// ParserKind is the closed tagged union of output-parser variants — a
// plain enum field, not a dispatch hierarchy.
type ParserKind string

const (
	ParserJSONObject ParserKind = "json_object"
	ParserJSONStream ParserKind = "json_stream"
	ParserRegex      ParserKind = "regex"
	ParserText       ParserKind = "text"
)

// ParserSpec configures one of the four output-parser variants. Only the
// fields relevant to Kind are meaningful; the rest are zero.
type ParserSpec struct {
	Kind ParserKind

	// json_object / json_stream
	MessagePath   string
	SessionIDPath string
	Pick          Pick   // json_stream only
	Fallback      string // "codex" or ""; json_stream only

	// regex
	SessionIDPattern    string
	MessageCaptureGroup int
}

// Catalog is the immutable, process-embedded set of adapters, keyed by
// backend id. Built once at startup via Default() and never mutated.
type Catalog struct {
	adapters map[BackendID]Adapter
}

// Lookup returns the adapter for id, or (zero, false) if unknown.
func (c *Catalog) Lookup(id BackendID) (Adapter, bool) {
	a, ok := c.adapters[id]
	return a, ok
}

// IDs returns the known backend ids in a stable declaration order.
func (c *Catalog) IDs() []BackendID {
	return []BackendID{Codex, Claude, Gemini, OpenCode, Kimi}
}

// Default builds the full catalog of supported backends.
func Default() *Catalog {
	c := &Catalog{adapters: make(map[BackendID]Adapter, 5)}
	for _, a := range []Adapter{codexAdapter(), claudeAdapter(), geminiAdapter(), opencodeAdapter(), kimiAdapter()} {
		c.adapters[a.BackendID] = a
	}
	return c
}
