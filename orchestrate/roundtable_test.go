package orchestrate_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sun-rs/three/config"
	"github.com/sun-rs/three/orchestrate"
)

func TestRoundtableTwoRoundsResumesSessions(t *testing.T) {
	doc := config.Document{
		Roles: map[string]config.RoleConfig{
			"alpha": {Model: "kimi/default", Enabled: trueVal()},
			"beta":  {Model: "kimi/default", Enabled: trueVal()},
		},
	}
	engine, workDir := newTestEngine(t, doc, "my position hasn't changed much, here is fresh reasoning about the topic at hand today")

	resp := engine.Roundtable(context.Background(), orchestrate.RoundtableRequest{
		WorkDir:           workDir,
		Client:            "test-client",
		ConversationID:    "conv-1",
		Topic:             "should we ship it",
		Rounds:            2,
		StageTimeoutSecs:  5,
		StageMinSuccesses: 2,
		ContextLevel:      "compact",
		Participants: []orchestrate.Participant{
			{Name: "alpha", Role: "alpha"},
			{Name: "beta", Role: "beta"},
		},
	})

	if len(resp.Rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(resp.Rounds))
	}
	for _, round := range resp.Rounds {
		if round.FailedCount != 0 {
			t.Fatalf("round %d: expected no failures, got %+v", round.Round, round.Contributions)
		}
		if len(round.Contributions) != 2 {
			t.Fatalf("round %d: expected 2 contributions, got %d", round.Round, len(round.Contributions))
		}
	}
	if resp.Rounds[1].DiscussionDynamics == nil {
		t.Fatal("expected discussion dynamics reported from round 2")
	}
}

func TestRoundtableAnonymousLabels(t *testing.T) {
	doc := config.Document{
		Roles: map[string]config.RoleConfig{
			"alpha": {Model: "kimi/default", Enabled: trueVal()},
			"beta":  {Model: "kimi/default", Enabled: trueVal()},
		},
	}
	engine, workDir := newTestEngine(t, doc, "a short reply")

	resp := engine.Roundtable(context.Background(), orchestrate.RoundtableRequest{
		WorkDir:           workDir,
		Client:            "test-client",
		ConversationID:    "conv-1",
		Topic:             "topic",
		Rounds:            1,
		StageTimeoutSecs:  5,
		StageMinSuccesses: 2,
		Anonymous:         true,
		Participants: []orchestrate.Participant{
			{Name: "alpha", Role: "alpha"},
			{Name: "beta", Role: "beta"},
		},
	})

	if len(resp.Rounds) != 1 {
		t.Fatalf("expected 1 round, got %d", len(resp.Rounds))
	}
	labels := map[string]bool{}
	for _, c := range resp.Rounds[0].Contributions {
		labels[c.Participant] = true
	}
	if !labels["Response A"] || !labels["Response B"] {
		t.Fatalf("expected anonymized labels Response A/B, got %+v", resp.Rounds[0].Contributions)
	}
}

func TestRoundtableRound2ResumeFailsWithoutRound1Session(t *testing.T) {
	// "ghost" is never configured as a role, so round 1 always fails and
	// never records a session; round 2 must refuse to resume rather than
	// silently starting a fresh session behind the caller's back.
	doc := config.Document{Roles: map[string]config.RoleConfig{}}
	engine, workDir := newTestEngine(t, doc, "unused")

	resp := engine.Roundtable(context.Background(), orchestrate.RoundtableRequest{
		WorkDir:           workDir,
		Client:            "test-client",
		ConversationID:    "conv-1",
		Topic:             "topic",
		Rounds:            2,
		StageTimeoutSecs:  5,
		StageMinSuccesses: 1,
		Participants: []orchestrate.Participant{
			{Name: "ghost", Role: "ghost"},
		},
	})

	if len(resp.Rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(resp.Rounds))
	}
	if resp.Success {
		t.Fatal("expected overall failure")
	}
}

func TestRoundtablePersistsArtifacts(t *testing.T) {
	doc := config.Document{
		Roles: map[string]config.RoleConfig{
			"alpha": {Model: "kimi/default", Enabled: trueVal()},
		},
	}
	engine, workDir := newTestEngine(t, doc, "a brief reply")
	artifactsDir := t.TempDir()

	resp := engine.Roundtable(context.Background(), orchestrate.RoundtableRequest{
		WorkDir:           workDir,
		Client:            "test-client",
		ConversationID:    "conv-1",
		Topic:             "topic",
		Rounds:            1,
		StageTimeoutSecs:  5,
		StageMinSuccesses: 1,
		PersistArtifacts:  true,
		ArtifactsDir:      artifactsDir,
		RunID:             "fixed-run-id",
		Participants: []orchestrate.Participant{
			{Name: "alpha", Role: "alpha"},
		},
	})

	if resp.ArtifactsDir == "" {
		t.Fatal("expected artifacts dir to be reported")
	}
	for _, name := range []string{"run.start.json", "round-01.json", "run.complete.json"} {
		if _, err := os.Stat(filepath.Join(resp.ArtifactsDir, name)); err != nil {
			t.Fatalf("expected artifact %s to exist: %v", name, err)
		}
	}
}
