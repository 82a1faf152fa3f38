package process

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesStdoutAndExitCode(t *testing.T) {
	out, err := Run(context.Background(), "sh", []string{"-c", "echo hello; exit 0"}, t.TempDir(), "", 5*time.Second, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, want 0", out.ExitCode)
	}
	if strings.TrimSpace(out.Stdout) != "hello" {
		t.Fatalf("Stdout = %q, want %q", out.Stdout, "hello")
	}
}

func TestRunCapturesNonZeroExit(t *testing.T) {
	out, err := Run(context.Background(), "sh", []string{"-c", "echo boom 1>&2; exit 3"}, t.TempDir(), "", 5*time.Second, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.ExitCode != 3 {
		t.Fatalf("ExitCode = %d, want 3", out.ExitCode)
	}
	if strings.TrimSpace(out.Stderr) != "boom" {
		t.Fatalf("Stderr = %q, want %q", out.Stderr, "boom")
	}
}

func TestRunDeliversStdin(t *testing.T) {
	out, err := Run(context.Background(), "sh", []string{"-c", "cat"}, t.TempDir(), "ping", 5*time.Second, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Stdout != "ping" {
		t.Fatalf("Stdout = %q, want %q", out.Stdout, "ping")
	}
}

func TestRunTimeoutEscalates(t *testing.T) {
	out, err := Run(context.Background(), "sh", []string{"-c", "trap '' TERM; sleep 5"}, t.TempDir(), "", 200*time.Millisecond, Options{GracePeriod: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.TimedOut {
		t.Fatalf("expected TimedOut=true")
	}
	if out.ExitCode == 0 {
		t.Fatalf("expected non-zero/killed exit code, got %d", out.ExitCode)
	}
}

func TestRunUnknownBinary(t *testing.T) {
	_, err := Run(context.Background(), "three-definitely-not-a-real-binary", nil, t.TempDir(), "", time.Second, Options{})
	if err == nil {
		t.Fatal("expected error for unresolvable binary")
	}
}

func TestBoundedBufferTruncatesToTail(t *testing.T) {
	b := newBoundedBuffer(10)
	_, _ = b.Write([]byte("0123456789"))
	_, _ = b.Write([]byte("ABCDE"))
	got := b.String()
	if !strings.HasSuffix(got, "6789ABCDE") {
		t.Fatalf("expected tail retained, got %q", got)
	}
	if !strings.Contains(got, "truncated") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
}
