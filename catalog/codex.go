package catalog

import "github.com/sun-rs/three/template"

// CodexAgentMessageEventType pins the Codex JSON-stream event shape that the
// fallback extraction strategy treats as a text-bearing "agent message": an
// item.completed event whose item.type is "agent_message" (decided in
// DESIGN.md). Declared on the catalog rather than hardcoded in the parser
// so a future Codex version with a renamed event only needs a catalog edit.
const CodexAgentMessageEventType = "agent_message"

// codexAdapter declares the codex backend, generalizing a per-backend
// argument builder into a declarative token list.
func codexAdapter() Adapter {
	return Adapter{
		BackendID:    Codex,
		Binary:       "codex",
		ArgsTemplate: codexArgsTemplate(),
		OutputParser: ParserSpec{
			Kind:          ParserJSONStream,
			SessionIDPath: "thread_id",
			MessagePath:   "item.text",
			Pick:          PickLast,
			Fallback:      "codex",
		},
		FilesystemCapabilities: []FilesystemCapability{FSReadOnly, FSReadWrite},
		PromptTransport:        TransportAuto,
		PromptMaxChars:         defaultPromptMaxChars,
	}
}

// sandboxValueToken renders the --sandbox value itself (the flag is emitted
// by CapabilityFlag above; this renders the bare value as a second element
// so the pair reads "--sandbox read-only").
func sandboxValueToken() template.Token {
	return template.Func(func(ctx template.Context) []string {
		v := ctx.Capabilities["filesystem"]
		if v == "" {
			return nil
		}
		return []string{v}
	})
}

// codexResumeIDToken renders the positional thread id argument when resuming.
func codexResumeIDToken() template.Token {
	return template.Func(func(ctx template.Context) []string {
		if !ctx.IsResume || ctx.SessionID == "" {
			return nil
		}
		return []string{ctx.SessionID}
	})
}

// codexArgsTemplate builds the full ordered token sequence for codex exec:
// "exec", positional "resume <session_id>" (resuming only), conditional
// --sandbox (new session only), model flag, -c options,
// --skip-git-repo-check, -C <workdir> (new session only), --json, then
// prompt.
func codexArgsTemplate() []template.Token {
	return []template.Token{
		template.Lit("exec"),
		template.IfResume(template.Lit("resume"), codexResumeIDToken()),
		template.IfNewSession(
			template.CapabilityFlag("filesystem", map[string]string{
				"read-only":          "--sandbox",
				"read-write":         "--sandbox",
				"danger-full-access": "--sandbox",
			}),
			sandboxValueToken(),
		),
		template.IfNewSession(template.Model("--model")),
		template.IfResume(template.ModelEquals("model")),
		template.OptionFlags("-c %s=%s"),
		template.Lit("--skip-git-repo-check"),
		template.IfNewSession(template.WorkDir("-C", true)),
		template.Lit("--json"),
		template.Prompt(),
	}
}
