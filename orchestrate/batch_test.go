package orchestrate_test

import (
	"context"
	"sync"
	"testing"

	"github.com/sun-rs/three/config"
	"github.com/sun-rs/three/orchestrate"
)

func TestBatchOrderAndPartialFailure(t *testing.T) {
	doc := config.Document{
		Roles: map[string]config.RoleConfig{
			"worker": {Model: "kimi/default", Enabled: trueVal()},
		},
	}
	engine, workDir := newTestEngine(t, doc, "done")

	var mu sync.Mutex
	var events []string

	resp := engine.Batch(context.Background(), orchestrate.BatchRequest{
		WorkDir:        workDir,
		Client:         "test-client",
		ConversationID: "conv-1",
		Tasks: []orchestrate.BatchTask{
			{Name: "t0", Role: "worker", Prompt: "a"},
			{Name: "t1", Role: "missing-role", Prompt: "b"},
			{Name: "t2", Role: "worker", Prompt: "c"},
		},
		OnEvent: func(event string) {
			mu.Lock()
			events = append(events, event)
			mu.Unlock()
		},
	})

	if resp.Success {
		t.Fatal("expected overall failure, one task targets an unknown role")
	}
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(resp.Results))
	}
	if resp.Results[0].Name != "t0" || resp.Results[1].Name != "t1" || resp.Results[2].Name != "t2" {
		t.Fatalf("expected input order preserved, got %+v", resp.Results)
	}
	if !resp.Results[0].Result.Success {
		t.Fatalf("expected t0 to succeed, got %+v", resp.Results[0].Result)
	}
	if resp.Results[1].Result.Success {
		t.Fatal("expected t1 to fail, unknown role")
	}
	if !resp.Results[2].Result.Success {
		t.Fatalf("expected t2 to succeed despite t1's failure, got %+v", resp.Results[2].Result)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 6 {
		t.Fatalf("expected 2 events per task (started+completed), got %v", events)
	}
}
