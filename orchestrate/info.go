package orchestrate

import (
	"sort"
	"unicode/utf8"

	"github.com/sun-rs/three/catalog"
)

// promptPreviewRunes is how much of a role's persona prompt the info
// operation echoes back.
const promptPreviewRunes = 200

// InfoRequest is the engine-facing shape of the `info` tool surface
// operation. It never spawns a child and never touches session state.
type InfoRequest struct {
	WorkDir        string
	Client         string
	ConversationID string
}

// RoleInfo describes one configured role's resolved shape, without ever
// invoking its backend.
type RoleInfo struct {
	ID             string
	Enabled        bool
	Backend        string
	Model          string
	PromptPresent  bool
	PromptPreview  string
	Capabilities   map[string]any
	TimeoutSecs    int
	Warnings       []string
}

// InfoResponse is the `info` tool surface's return shape.
type InfoResponse struct {
	Roles []RoleInfo
}

// Info reports the resolved shape of every configured role, read-only: it
// never spawns a child.
func (e *Engine) Info(req InfoRequest) InfoResponse {
	ids := e.resolver.RoleIDs()
	sort.Strings(ids)

	roles := make([]RoleInfo, 0, len(ids))
	for _, id := range ids {
		roles = append(roles, e.roleInfo(id))
	}
	return InfoResponse{Roles: roles}
}

func (e *Engine) roleInfo(roleID string) RoleInfo {
	info := RoleInfo{ID: roleID, Enabled: e.resolver.RoleEnabled(roleID)}

	profile, err := e.resolver.ResolveProfile(roleID, 0, nil)
	if err != nil {
		info.Warnings = append(info.Warnings, asEngineError(err).Error())
		return info
	}

	info.Backend = profile.BackendID
	info.Model = profile.ModelID
	info.TimeoutSecs = profile.TimeoutSecs
	info.Capabilities = map[string]any{
		"filesystem": profile.Capabilities.Filesystem,
		"shell":      profile.Capabilities.Shell,
		"network":    profile.Capabilities.Network,
		"tools":      profile.Capabilities.Tools,
	}

	if profile.Persona != nil && profile.Persona.Prompt != "" {
		info.PromptPresent = true
		info.PromptPreview = truncateRunes(profile.Persona.Prompt, promptPreviewRunes)
	}

	if adapter, ok := e.catalog.Lookup(catalog.BackendID(profile.BackendID)); ok {
		if !adapter.AllowsFilesystem(profile.Capabilities.Filesystem) {
			info.Warnings = append(info.Warnings, "configured filesystem capability is not supported by this backend")
		}
	}

	return info
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
