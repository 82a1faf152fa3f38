// Package config implements the layered config loader and role resolver:
// it loads user/project-scope JSON files, selects by client hint, and
// resolves `role → {backend, model, variant, capabilities, options,
// persona, timeout, fallback}`, following a user/project/legacy precedence
// order and a stricter top-level schema; see DESIGN.md.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/sun-rs/three"
)

// Scalar is any JSON scalar value (string, number, bool) — options and
// variants forbid nested objects/arrays.
type Scalar = any

// ModelConfig is one backend[id].models[model_id] entry.
type ModelConfig struct {
	Options  map[string]Scalar `json:"options,omitempty"`
	Variants map[string]map[string]Scalar `json:"variants,omitempty"`
}

// FallbackConfig is backend[id].fallback.
type FallbackConfig struct {
	Model    string   `json:"model"`
	Patterns []string `json:"patterns"`
}

// BackendConfig is one top-level backend[id] entry.
type BackendConfig struct {
	Models      map[string]ModelConfig `json:"models,omitempty"`
	Fallback    *FallbackConfig        `json:"fallback,omitempty"`
	TimeoutSecs int                    `json:"timeout_secs,omitempty"`
}

// PersonaConfig is roles[id].persona — an opaque description/prompt pair
// the engine never interprets. Config calls this field "personas" in some
// deployments' historical naming, but each role carries exactly one active
// persona; there is no per-call persona selector on the `call` operation,
// so one object per role is all resolve_profile needs.
type PersonaConfig struct {
	Description string `json:"description,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
}

// RoleConfig is one top-level roles[id] entry.
type RoleConfig struct {
	Model        string              `json:"model"`
	Persona      *PersonaConfig      `json:"personas,omitempty"`
	Capabilities *three.Capabilities `json:"capabilities,omitempty"`
	Enabled      *bool               `json:"enabled,omitempty"`
	TimeoutSecs  int                 `json:"timeout_secs,omitempty"`
}

// Document is the fully-parsed, validated config — exactly {backend,
// roles} at the top level.
type Document struct {
	Backend map[string]BackendConfig `json:"backend"`
	Roles   map[string]RoleConfig    `json:"roles"`
}

// defaultTimeoutSecs is the lowest-precedence timeout.
const defaultTimeoutSecs = 600

// allowedTopLevelKeys enumerates the only legal top-level schema keys.
var allowedTopLevelKeys = map[string]struct{}{"backend": {}, "roles": {}}

// parseDocument decodes raw JSON bytes into a Document, hard-failing on any
// top-level key other than "backend"/"roles", while tolerating unknown
// nested fields. The two-pass approach (raw map keys, then lenient
// struct decode of each known section) applies a "fatal at the top, lenient
// below" schema without a third-party config library — see DESIGN.md for
// why no such library models that asymmetry.
func parseDocument(data []byte) (Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, three.NewError(three.KindConfigInvalid, "malformed JSON: %v", err)
	}

	for key := range raw {
		if _, ok := allowedTopLevelKeys[key]; !ok {
			return Document{}, three.NewError(three.KindConfigInvalid, "unknown top-level key %q", key)
		}
	}

	doc := Document{
		Backend: map[string]BackendConfig{},
		Roles:   map[string]RoleConfig{},
	}
	if b, ok := raw["backend"]; ok {
		if err := json.Unmarshal(b, &doc.Backend); err != nil {
			return Document{}, three.NewError(three.KindConfigInvalid, "backend: %v", err)
		}
	}
	if r, ok := raw["roles"]; ok {
		if err := json.Unmarshal(r, &doc.Roles); err != nil {
			return Document{}, three.NewError(three.KindConfigInvalid, "roles: %v", err)
		}
	}
	return doc, nil
}

// scalarToString renders a JSON scalar as the string form options/variants
// use on the effective-options map. Numbers that are mathematically integers
// render without a decimal point.
func scalarToString(v Scalar) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t)), nil
		}
		return fmt.Sprintf("%g", t), nil
	case nil:
		return "", fmt.Errorf("null is not a valid scalar option value")
	default:
		return "", fmt.Errorf("option values must be scalar (string/number/bool), got %T", v)
	}
}
