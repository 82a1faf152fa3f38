package catalog

import "github.com/sun-rs/three/template"

// KimiReadOnlyGuardrail is the best-effort soft-constraint line appended to
// the prompt when a kimi role runs with capabilities.filesystem=read-only.
// Kimi has no native read-only sandbox flag, so the engine can only ask
// nicely; callers needing a hard guarantee should not route to kimi with
// read-only capability.
const KimiReadOnlyGuardrail = "\n\nConstraint: treat the workspace as read-only. Do not create, modify, or delete any files."

// ApplyKimiGuardrail appends KimiReadOnlyGuardrail to prompt when filesystem
// is "read-only", otherwise returns prompt unchanged. Called by the
// invocation builder before the render context is constructed, so the
// guardrail becomes an ordinary part of the rendered prompt token.
func ApplyKimiGuardrail(prompt, filesystem string) string {
	if filesystem != "read-only" {
		return prompt
	}
	return prompt + KimiReadOnlyGuardrail
}

// kimiAdapter declares the kimi backend: stateless, text output.
func kimiAdapter() Adapter {
	return Adapter{
		BackendID:    Kimi,
		Binary:       "kimi",
		ArgsTemplate: kimiArgsTemplate(),
		OutputParser: ParserSpec{
			Kind: ParserText,
		},
		FilesystemCapabilities: []FilesystemCapability{FSReadWrite},
		PromptTransport:        TransportAuto,
		PromptMaxChars:         defaultPromptMaxChars,
	}
}

// kimiArgsTemplate: --print --thinking --output-format text
// --final-message-only --work-dir <workdir> [--model M]
// [--continue | --session SID] --prompt <prompt_or_guardrail>.
func kimiArgsTemplate() []template.Token {
	return []template.Token{
		template.Lit("--print"),
		template.Lit("--thinking"),
		template.Lit("--output-format"),
		template.Lit("text"),
		template.Lit("--final-message-only"),
		template.WorkDir("--work-dir", false),
		template.Model("--model"),
		template.Continue("--continue", "--session"),
		template.PromptFlag("--prompt"),
	}
}
