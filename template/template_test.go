package template

import (
	"reflect"
	"testing"
)

func TestRenderDropsEmptyTokens(t *testing.T) {
	tokens := []Token{
		Lit("--print"),
		Model("--model"),
		Lit("--json"),
	}
	got := Render(tokens, Context{})
	want := []string{"--print", "--json"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Render() = %v, want %v", got, want)
	}
}

func TestPromptTransportExclusivity(t *testing.T) {
	tokens := []Token{Lit("--print"), Prompt(), Lit("--json")}

	argTok := Render(tokens, Context{Prompt: "do the thing", PromptTransport: "arg"})
	if !ContainsPrompt(argTok, "do the thing") {
		t.Fatalf("expected prompt present under arg transport, got %v", argTok)
	}

	stdinTok := Render(tokens, Context{Prompt: "do the thing", PromptTransport: "stdin"})
	if ContainsPrompt(stdinTok, "do the thing") {
		t.Fatalf("expected prompt absent under stdin transport, got %v", stdinTok)
	}
}

func TestPromptFlagAtomicity(t *testing.T) {
	tok := PromptFlag("--prompt")

	stdin := tok.Render(Context{Prompt: "hi", PromptTransport: "stdin"})
	if len(stdin) != 0 {
		t.Fatalf("expected no elements under stdin transport, got %v", stdin)
	}

	arg := tok.Render(Context{Prompt: "hi", PromptTransport: "arg"})
	want := []string{"--prompt", "hi"}
	if !reflect.DeepEqual(arg, want) {
		t.Fatalf("PromptFlag render = %v, want %v", arg, want)
	}
}

func TestContinueFlagVariants(t *testing.T) {
	tok := Continue("--continue", "--session")

	if got := tok.Render(Context{IsResume: false}); got != nil {
		t.Fatalf("expected nil for non-resume, got %v", got)
	}
	if got := tok.Render(Context{IsResume: true}); !reflect.DeepEqual(got, []string{"--continue"}) {
		t.Fatalf("expected bare --continue, got %v", got)
	}
	if got := tok.Render(Context{IsResume: true, SessionID: "abc"}); !reflect.DeepEqual(got, []string{"--session", "abc"}) {
		t.Fatalf("expected --session abc, got %v", got)
	}
}

func TestIfResumeIfNewSession(t *testing.T) {
	resumeOnly := IfResume(Lit("resume-only"))
	newOnly := IfNewSession(Lit("new-only"))

	if got := resumeOnly.Render(Context{IsResume: true}); !reflect.DeepEqual(got, []string{"resume-only"}) {
		t.Fatalf("IfResume(resume) = %v", got)
	}
	if got := resumeOnly.Render(Context{IsResume: false}); got != nil {
		t.Fatalf("IfResume(new) = %v, want nil", got)
	}
	if got := newOnly.Render(Context{IsResume: false}); !reflect.DeepEqual(got, []string{"new-only"}) {
		t.Fatalf("IfNewSession(new) = %v", got)
	}
	if got := newOnly.Render(Context{IsResume: true}); got != nil {
		t.Fatalf("IfNewSession(resume) = %v, want nil", got)
	}
}

func TestOptionFlagsSortedDeterministic(t *testing.T) {
	tok := OptionFlags("-c %s=%s")
	got := tok.Render(Context{Options: map[string]string{"zeta": "1", "alpha": "2"}})
	want := []string{"-c alpha=2", "-c zeta=1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("OptionFlags() = %v, want %v", got, want)
	}
}

func TestIncludeDirectoriesJoinsCSV(t *testing.T) {
	tok := IncludeDirectories("--include-directories")
	got := tok.Render(Context{IncludeDirectories: []string{"/a/b", "/c/d"}})
	want := []string{"--include-directories", "/a/b,/c/d"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("IncludeDirectories() = %v, want %v", got, want)
	}
	if got := tok.Render(Context{}); got != nil {
		t.Fatalf("expected nil for empty dirs, got %v", got)
	}
}
