package config

import (
	"strings"

	"github.com/sun-rs/three"
	"github.com/sun-rs/three/catalog"
)

// ParseModelRef splits "backend/model@variant" into its parts. The
// model segment may itself contain slashes (some backends version models
// that way), so only the first slash is significant; the variant, if any,
// is everything after the last "@".
func ParseModelRef(s string) (three.ModelRef, error) {
	slash := strings.IndexByte(s, '/')
	if slash < 0 {
		return three.ModelRef{}, three.NewError(three.KindConfigInvalid, "model ref %q missing \"backend/\" prefix", s)
	}
	backend, rest := s[:slash], s[slash+1:]
	if backend == "" || rest == "" {
		return three.ModelRef{}, three.NewError(three.KindConfigInvalid, "model ref %q is malformed", s)
	}
	model, variant := rest, ""
	if at := strings.LastIndexByte(rest, '@'); at >= 0 {
		model, variant = rest[:at], rest[at+1:]
	}
	if model == "" {
		return three.ModelRef{}, three.NewError(three.KindConfigInvalid, "model ref %q is malformed", s)
	}
	if model == "default" && variant != "" {
		return three.ModelRef{}, three.NewError(three.KindConfigInvalid, "model ref %q: variants are forbidden on the \"default\" sentinel", s)
	}
	return three.ModelRef{Backend: backend, Model: model, Variant: variant}, nil
}

// Resolver resolves config roles into ready-to-invoke profiles against a
// fixed Document and Catalog.
type Resolver struct {
	doc Document
	cat *catalog.Catalog
}

// NewResolver builds a Resolver over a parsed config document and the
// process-embedded adapter catalog.
func NewResolver(doc Document, cat *catalog.Catalog) *Resolver {
	return &Resolver{doc: doc, cat: cat}
}

// RoleIDs returns every configured role id, in no particular order. Used by
// the read-only info operation to enumerate roles without touching
// sessions or spawning anything.
func (r *Resolver) RoleIDs() []string {
	ids := make([]string, 0, len(r.doc.Roles))
	for id := range r.doc.Roles {
		ids = append(ids, id)
	}
	return ids
}

// RoleEnabled reports whether roleID is configured and not explicitly
// disabled (role.enabled defaults to true).
func (r *Resolver) RoleEnabled(roleID string) bool {
	role, ok := r.doc.Roles[roleID]
	if !ok {
		return false
	}
	return role.Enabled == nil || *role.Enabled
}

// ResolveProfile implements resolve_profile(role_id, options_override?):
// role lookup and enabled check, model-ref parsing, capability
// validation against the adapter catalog, options merge (model defaults,
// then the named variant, then the per-call override), persona selection,
// timeout precedence (per-call override > role > backend > default), and
// fallback-spec construction.
func (r *Resolver) ResolveProfile(roleID string, timeoutOverrideSecs int, optionsOverride map[string]Scalar) (three.RoleProfile, error) {
	role, ok := r.doc.Roles[roleID]
	if !ok {
		return three.RoleProfile{}, three.NewError(three.KindUnknownRole, "role %q is not configured", roleID)
	}
	if role.Enabled != nil && !*role.Enabled {
		return three.RoleProfile{}, three.NewError(three.KindRoleDisabled, "role %q is disabled", roleID)
	}

	ref, err := ParseModelRef(role.Model)
	if err != nil {
		return three.RoleProfile{}, err
	}

	adapter, ok := r.cat.Lookup(catalog.BackendID(ref.Backend))
	if !ok {
		return three.RoleProfile{}, three.NewError(three.KindConfigInvalid, "role %q: unknown backend %q", roleID, ref.Backend)
	}

	capabilities := three.Capabilities{Filesystem: "read-only"}
	if role.Capabilities != nil {
		capabilities = *role.Capabilities
	}
	if capabilities.Filesystem != "" && !adapter.AllowsFilesystem(capabilities.Filesystem) {
		return three.RoleProfile{}, three.NewError(three.KindUnsupportedCapability,
			"role %q: backend %q does not support filesystem=%q", roleID, ref.Backend, capabilities.Filesystem)
	}

	effectiveOptions, err := r.effectiveOptions(ref, optionsOverride)
	if err != nil {
		return three.RoleProfile{}, three.NewError(three.KindConfigInvalid, "role %q: %v", roleID, err)
	}

	var persona *three.Persona
	if role.Persona != nil && role.Persona.Prompt != "" {
		persona = &three.Persona{Description: role.Persona.Description, Prompt: role.Persona.Prompt}
	}

	timeout := defaultTimeoutSecs
	if backendCfg, ok := r.doc.Backend[ref.Backend]; ok && backendCfg.TimeoutSecs > 0 {
		timeout = backendCfg.TimeoutSecs
	}
	if role.TimeoutSecs > 0 {
		timeout = role.TimeoutSecs
	}
	if timeoutOverrideSecs > 0 {
		timeout = timeoutOverrideSecs
	}

	var fallback *three.FallbackSpec
	if backendCfg, ok := r.doc.Backend[ref.Backend]; ok && backendCfg.Fallback != nil {
		fbRef, err := ParseModelRef(backendCfg.Fallback.Model)
		if err != nil {
			return three.RoleProfile{}, three.NewError(three.KindConfigInvalid, "role %q: fallback: %v", roleID, err)
		}
		fallback = &three.FallbackSpec{Model: fbRef, Patterns: backendCfg.Fallback.Patterns}
	}

	modelID := ref.Model
	if ref.Variant != "" {
		modelID = ref.Model + "@" + ref.Variant
	}

	return three.RoleProfile{
		RoleID:           roleID,
		BackendID:        ref.Backend,
		ModelID:          modelID,
		Variant:          ref.Variant,
		EffectiveOptions: effectiveOptions,
		Capabilities:     capabilities,
		Persona:          persona,
		TimeoutSecs:      timeout,
		Enabled:          true,
		BackendFallback:  fallback,
	}, nil
}

// effectiveOptions layers model-level defaults, the named variant's
// overrides, and the per-call override, in that ascending precedence, then
// stringifies every scalar for the renderer's Context.Options map.
func (r *Resolver) effectiveOptions(ref three.ModelRef, override map[string]Scalar) (map[string]string, error) {
	merged := map[string]Scalar{}

	if backendCfg, ok := r.doc.Backend[ref.Backend]; ok {
		if modelCfg, ok := backendCfg.Models[ref.Model]; ok {
			for k, v := range modelCfg.Options {
				merged[k] = v
			}
			if ref.Variant != "" {
				if variantOpts, ok := modelCfg.Variants[ref.Variant]; ok {
					for k, v := range variantOpts {
						merged[k] = v
					}
				}
			}
		}
	}
	for k, v := range override {
		merged[k] = v
	}

	out := make(map[string]string, len(merged))
	for k, v := range merged {
		s, err := scalarToString(v)
		if err != nil {
			return nil, err
		}
		out[k] = s
	}
	return out, nil
}
