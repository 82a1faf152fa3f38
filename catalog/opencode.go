package catalog

import "github.com/sun-rs/three/template"

// opencodeAdapter declares the opencode backend.
func opencodeAdapter() Adapter {
	return Adapter{
		BackendID:    OpenCode,
		Binary:       "opencode",
		ArgsTemplate: opencodeArgsTemplate(),
		OutputParser: ParserSpec{
			Kind:          ParserJSONStream,
			SessionIDPath: "part.sessionID",
			MessagePath:   "part.text",
			Pick:          PickLast,
		},
		FilesystemCapabilities: []FilesystemCapability{FSReadWrite},
		PromptTransport:        TransportAuto,
		PromptMaxChars:         defaultPromptMaxChars,
	}
}

// opencodeArgsTemplate: run [-m provider/model] [-s SID] --format json <prompt>.
func opencodeArgsTemplate() []template.Token {
	return []template.Token{
		template.Lit("run"),
		template.Model("-m"),
		template.IfResume(template.SessionID("-s")),
		template.Lit("--format"),
		template.Lit("json"),
		template.Prompt(),
	}
}
