package template

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDeriveIncludeDirectories(t *testing.T) {
	tmp := t.TempDir()
	outside := filepath.Join(tmp, "outside-repo-dir")
	if err := os.Mkdir(outside, 0o755); err != nil {
		t.Fatal(err)
	}
	workDir := filepath.Join(tmp, "work")
	if err := os.Mkdir(workDir, 0o755); err != nil {
		t.Fatal(err)
	}
	inside := filepath.Join(workDir, "nested")
	if err := os.Mkdir(inside, 0o755); err != nil {
		t.Fatal(err)
	}

	prompt := "look at " + outside + " and also " + inside + " and " + workDir + " please, and " + outside
	got := DeriveIncludeDirectories(prompt, workDir)
	want := []string{outside}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DeriveIncludeDirectories() = %v, want %v", got, want)
	}
}

func TestDeriveIncludeDirectoriesNoMatches(t *testing.T) {
	if got := DeriveIncludeDirectories("nothing path-like here", "/work"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
