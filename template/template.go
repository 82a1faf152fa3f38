// Package template implements the minimal, sandboxed token-rendering
// language used by the adapter catalog to turn a fixed render context into
// an argv. It exposes no file I/O, process, or reflection access —
// rendering is pure given its Context. Tokens are plain Go values declared
// by catalog entries (not a parsed text-template language), which keeps the
// catalog process-embedded while generalizing per-backend flag-building
// into one data-driven renderer shared by every backend.
package template

// Context is the fixed rendering context every token sees.
type Context struct {
	Prompt             string
	Model              string   // empty when default
	SessionID          string   // empty when new
	WorkDir            string
	Options             map[string]string
	Capabilities        map[string]string
	IncludeDirectories  []string // gemini-only derived value
	PromptTransport     string   // "arg" | "stdin"
	IsResume            bool
}

// Token renders to zero or more argv elements given ctx. A composite token
// (e.g. a flag paired with its value) renders both elements together or
// neither — this is how "empty-after-render tokens are dropped" composes
// with multi-word flags without ever splitting a flag from its value.
type Token interface {
	Render(ctx Context) []string
}

// Render renders an ordered token list into an argv, dropping any token
// that renders to nothing. This is the renderer's single entry point.
func Render(tokens []Token, ctx Context) []string {
	var argv []string
	for _, t := range tokens {
		if t == nil {
			continue
		}
		out := t.Render(ctx)
		argv = append(argv, out...)
	}
	return argv
}

// ContainsPrompt reports whether argv contains the literal prompt text as
// one element — used to enforce transport exclusivity: a prompt reaches the
// child process over argv or stdin, never both.
func ContainsPrompt(argv []string, prompt string) bool {
	if prompt == "" {
		return false
	}
	for _, a := range argv {
		if a == prompt {
			return true
		}
	}
	return false
}
