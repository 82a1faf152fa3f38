package catalog

import "github.com/sun-rs/three/template"

// claudeAdapter declares the claude backend: a one-shot "--print"
// invocation with no persistent streaming input; see DESIGN.md.
func claudeAdapter() Adapter {
	return Adapter{
		BackendID:    Claude,
		Binary:       "claude",
		ArgsTemplate: claudeArgsTemplate(),
		OutputParser: ParserSpec{
			Kind:          ParserJSONObject,
			MessagePath:   "result",
			SessionIDPath: "session_id",
		},
		FilesystemCapabilities: []FilesystemCapability{FSReadOnly, FSReadWrite},
		PromptTransport:        TransportAuto,
		PromptMaxChars:         defaultPromptMaxChars,
	}
}

// claudeArgsTemplate: --print <prompt> --output-format json [--model M]
// [--permission-mode plan | --dangerously-skip-permissions] [--resume SID].
func claudeArgsTemplate() []template.Token {
	return []template.Token{
		template.Lit("--print"),
		template.Prompt(),
		template.Lit("--output-format"),
		template.Lit("json"),
		template.IfNewSession(template.Model("--model")),
		template.IfResume(template.Model("--model")),
		template.CapabilityFlag("filesystem", map[string]string{
			"read-only": "--permission-mode",
		}),
		claudePlanValueToken(),
		template.CapabilityFlag("filesystem", map[string]string{
			"read-write": "--dangerously-skip-permissions",
		}),
		template.IfResume(template.SessionID("--resume")),
	}
}

// claudePlanValueToken renders the bare "plan" value after --permission-mode,
// paired with the CapabilityFlag emitting the flag itself in claudeArgsTemplate.
func claudePlanValueToken() template.Token {
	return template.Func(func(ctx template.Context) []string {
		if ctx.Capabilities["filesystem"] != "read-only" {
			return nil
		}
		return []string{"plan"}
	})
}
