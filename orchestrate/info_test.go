package orchestrate_test

import (
	"testing"

	"github.com/sun-rs/three/config"
	"github.com/sun-rs/three/orchestrate"
)

func TestInfoListsRolesWithoutSpawning(t *testing.T) {
	doc := config.Document{
		Roles: map[string]config.RoleConfig{
			"assistant": {
				Model:   "kimi/default",
				Enabled: trueVal(),
				Persona: &config.PersonaConfig{Prompt: "You are a terse assistant."},
			},
			"disabled": {Model: "kimi/default", Enabled: func() *bool { v := false; return &v }()},
		},
	}
	engine, workDir := newTestEngine(t, doc, "should never be printed")
	_ = workDir

	resp := engine.Info(orchestrate.InfoRequest{WorkDir: workDir, Client: "test-client"})
	if len(resp.Roles) != 2 {
		t.Fatalf("expected 2 roles, got %d: %+v", len(resp.Roles), resp.Roles)
	}

	byID := map[string]orchestrate.RoleInfo{}
	for _, r := range resp.Roles {
		byID[r.ID] = r
	}

	assistant := byID["assistant"]
	if !assistant.Enabled || assistant.Backend != "kimi" {
		t.Fatalf("unexpected assistant info: %+v", assistant)
	}
	if !assistant.PromptPresent || assistant.PromptPreview != "You are a terse assistant." {
		t.Fatalf("expected prompt preview, got %+v", assistant)
	}

	disabled := byID["disabled"]
	if disabled.Enabled {
		t.Fatalf("expected disabled role to report enabled=false, got %+v", disabled)
	}
}
