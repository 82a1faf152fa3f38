package catalog

import "github.com/sun-rs/three/template"

// geminiAdapter declares the gemini backend. include_directories is
// derived by the engine from the prompt and passed in via the render
// context; the adapter only renders it when present.
func geminiAdapter() Adapter {
	return Adapter{
		BackendID:    Gemini,
		Binary:       "gemini",
		ArgsTemplate: geminiArgsTemplate(),
		OutputParser: ParserSpec{
			Kind:          ParserJSONObject,
			MessagePath:   "response",
			SessionIDPath: "session_id",
		},
		FilesystemCapabilities: []FilesystemCapability{FSReadOnly, FSReadWrite},
		PromptTransport:        TransportAuto,
		PromptMaxChars:         defaultPromptMaxChars,
	}
}

// geminiArgsTemplate: --output-format json [--approval-mode plan | -y]
// [-m M] [--sandbox if read-only] [--include-directories <csv>]
// [--resume SID] --prompt <prompt>.
func geminiArgsTemplate() []template.Token {
	return []template.Token{
		template.Lit("--output-format"),
		template.Lit("json"),
		template.CapabilityFlag("filesystem", map[string]string{
			"read-only": "--approval-mode",
		}),
		geminiPlanValueToken(),
		template.CapabilityFlag("filesystem", map[string]string{
			"read-write": "-y",
		}),
		template.Model("-m"),
		template.CapabilityFlag("filesystem", map[string]string{
			"read-only": "--sandbox",
		}),
		template.IncludeDirectories("--include-directories"),
		template.IfResume(template.SessionID("--resume")),
		template.PromptFlag("--prompt"),
	}
}

func geminiPlanValueToken() template.Token {
	return template.Func(func(ctx template.Context) []string {
		if ctx.Capabilities["filesystem"] != "read-only" {
			return nil
		}
		return []string{"plan"}
	})
}
