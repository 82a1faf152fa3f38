package template

import (
	"fmt"
	"sort"
)

// Lit is a literal argv element that always renders.
type Lit string

func (l Lit) Render(Context) []string { return []string{string(l)} }

// tokenFunc adapts a plain function to the Token interface — used for the
// small number of catalog tokens whose rendering logic doesn't fit one of
// the named helpers below (e.g. positional prompt placement).
type tokenFunc func(ctx Context) []string

func (f tokenFunc) Render(ctx Context) []string { return f(ctx) }

// Func wraps an arbitrary rendering function as a Token.
func Func(f func(ctx Context) []string) Token { return tokenFunc(f) }

// Prompt renders the prompt as a single positional argv element, but only
// when the effective transport is "arg". Under "stdin" transport it is
// always dropped, which is how the renderer enforces transport exclusivity
// by construction.
func Prompt() Token {
	return Func(func(ctx Context) []string {
		if ctx.PromptTransport != "arg" || ctx.Prompt == "" {
			return nil
		}
		return []string{ctx.Prompt}
	})
}

// PromptFlag renders flag+prompt together under "arg" transport, dropped
// entirely under "stdin" transport — keeps a flagged prompt atomic the same
// way Prompt() keeps a positional prompt atomic.
func PromptFlag(flag string) Token {
	return Func(func(ctx Context) []string {
		if ctx.PromptTransport != "arg" || ctx.Prompt == "" {
			return nil
		}
		return []string{flag, ctx.Prompt}
	})
}

// Model renders flag+model together, dropped entirely when Model is empty
// (the "backend/default" sentinel renders to an empty Context.Model).
func Model(flag string) Token {
	return Func(func(ctx Context) []string {
		if ctx.Model == "" {
			return nil
		}
		return []string{flag, ctx.Model}
	})
}

// ModelEquals renders a "-c key=value" style single-element flag carrying
// the model, used by codex's resume path ("-c model=M").
func ModelEquals(key string) Token {
	return Func(func(ctx Context) []string {
		if ctx.Model == "" {
			return nil
		}
		return []string{fmt.Sprintf("-c %s=%s", key, ctx.Model)}
	})
}

// SessionID renders flag+session id together, dropped when empty.
func SessionID(flag string) Token {
	return Func(func(ctx Context) []string {
		if ctx.SessionID == "" {
			return nil
		}
		return []string{flag, ctx.SessionID}
	})
}

// WorkDir renders flag+workdir, optionally suppressed while resuming (the
// codex adapter only sets -C on a new session).
func WorkDir(flag string, skipOnResume bool) Token {
	return Func(func(ctx Context) []string {
		if skipOnResume && ctx.IsResume {
			return nil
		}
		if ctx.WorkDir == "" {
			return nil
		}
		return []string{flag, ctx.WorkDir}
	})
}

// Continue renders flag+session id when resuming with an explicit id, or
// the bare continuation flag when resuming a stateless history without one
// (kimi's "[--continue | --session SID]").
func Continue(continueFlag, sessionFlag string) Token {
	return Func(func(ctx Context) []string {
		if !ctx.IsResume {
			return nil
		}
		if ctx.SessionID != "" {
			return []string{sessionFlag, ctx.SessionID}
		}
		return []string{continueFlag}
	})
}

// If renders inner only when predicate(ctx) is true.
func If(predicate func(ctx Context) bool, inner ...Token) Token {
	return Func(func(ctx Context) []string {
		if !predicate(ctx) {
			return nil
		}
		return Render(inner, ctx)
	})
}

// IfResume renders inner only while resuming an existing session.
func IfResume(inner ...Token) Token {
	return If(func(ctx Context) bool { return ctx.IsResume }, inner...)
}

// IfNewSession renders inner only for a brand-new session.
func IfNewSession(inner ...Token) Token {
	return If(func(ctx Context) bool { return !ctx.IsResume }, inner...)
}

// CapabilityEquals renders inner only when ctx.Capabilities[key] == value.
func CapabilityEquals(key, value string, inner ...Token) Token {
	return If(func(ctx Context) bool { return ctx.Capabilities[key] == value }, inner...)
}

// CapabilityFlag renders a single literal flag when ctx.Capabilities[key]
// equals one of values, mapped through valueToFlag.
func CapabilityFlag(key string, valueToFlag map[string]string) Token {
	return Func(func(ctx Context) []string {
		flag, ok := valueToFlag[ctx.Capabilities[key]]
		if !ok || flag == "" {
			return nil
		}
		return []string{flag}
	})
}

// OptionFlags renders "-c key=value" style flags for every entry in
// ctx.Options, in sorted key order for determinism (used by codex).
func OptionFlags(format string) Token {
	return Func(func(ctx Context) []string {
		if len(ctx.Options) == 0 {
			return nil
		}
		keys := make([]string, 0, len(ctx.Options))
		for k := range ctx.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, fmt.Sprintf(format, k, ctx.Options[k]))
		}
		return out
	})
}

// IncludeDirectories renders "flag csv" when IncludeDirectories is
// non-empty (gemini-only).
func IncludeDirectories(flag string) Token {
	return Func(func(ctx Context) []string {
		if len(ctx.IncludeDirectories) == 0 {
			return nil
		}
		csv := ctx.IncludeDirectories[0]
		for _, d := range ctx.IncludeDirectories[1:] {
			csv += "," + d
		}
		return []string{flag, csv}
	})
}
