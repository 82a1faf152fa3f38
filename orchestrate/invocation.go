// Package orchestrate wires the config resolver, session coordinator,
// process supervisor, output parsers, and fallback/contract checks into the
// three orchestration primitives: single call, batch fan-out, and
// roundtable. It is the public facade over the engine and session layers,
// exposing each primitive's own request/response shape.
package orchestrate

import (
	"strings"

	"github.com/sun-rs/three"
	"github.com/sun-rs/three/catalog"
	"github.com/sun-rs/three/template"
)

// buildInvocation renders the argv and resolves the effective prompt
// transport for one call. prompt is the final, already
// persona-and-guardrail-adjusted text.
func buildInvocation(adapter catalog.Adapter, profile three.RoleProfile, prompt, workDir, sessionID string, isResume bool) ([]string, three.Transport, error) {
	transport := effectiveTransport(adapter, prompt)

	ctx := template.Context{
		Prompt:          prompt,
		Model:           modelFlagValue(profile),
		SessionID:       sessionID,
		WorkDir:         workDir,
		Options:         profile.EffectiveOptions,
		Capabilities:    map[string]string{"filesystem": profile.Capabilities.Filesystem},
		PromptTransport: string(transport),
		IsResume:        isResume,
	}
	if adapter.BackendID == catalog.Gemini && profile.Capabilities.Filesystem != "" {
		ctx.IncludeDirectories = template.DeriveIncludeDirectories(prompt, workDir)
	}

	argv := template.Render(adapter.ArgsTemplate, ctx)

	if transport == three.TransportStdin && template.ContainsPrompt(argv, prompt) {
		return nil, "", three.NewError(three.KindBackendError,
			"internal: %s argv leaked the prompt under stdin transport", adapter.BackendID)
	}
	return argv, transport, nil
}

// effectiveTransport resolves "auto" against the prompt length and the
// adapter's configured limit.
func effectiveTransport(adapter catalog.Adapter, prompt string) three.Transport {
	switch adapter.PromptTransport {
	case catalog.TransportArg:
		return three.TransportArg
	case catalog.TransportStdin:
		return three.TransportStdin
	default:
		if len(prompt) > adapter.EffectivePromptMaxChars() {
			return three.TransportStdin
		}
		return three.TransportArg
	}
}

// modelFlagValue renders the model segment the catalog tokens expect: empty
// for the "default" sentinel, otherwise the model with any "@variant"
// suffix removed (adapters have no variant token — a variant only ever
// changes effective_options).
func modelFlagValue(profile three.RoleProfile) string {
	if profile.ModelID == "default" {
		return ""
	}
	return strings.SplitN(profile.ModelID, "@", 2)[0]
}
