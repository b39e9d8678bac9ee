package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kursadbilgin/mail-dispatch/internal/domain"
	"github.com/kursadbilgin/mail-dispatch/internal/repository"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func setupWorkspace(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "recipients.csv"), "email,name\nada@example.com,Ada\nbob@example.com,Bob\ncy@example.com,Cy\n")
	writeFile(t, filepath.Join(dir, "sent.log"), "2024-01-01T00:00:00Z | ada@example.com | <id-1@example.com>\n")
	writeFile(t, filepath.Join(dir, "error.log"), "2024-01-01T00:00:00Z | bob@example.com | attempt 1 | timeout\n")

	t.Setenv("RECIPIENTS_FILE", filepath.Join(dir, "recipients.csv"))
	t.Setenv("SENT_LOG_FILE", filepath.Join(dir, "sent.log"))
	t.Setenv("ERROR_LOG_FILE", filepath.Join(dir, "error.log"))
	t.Setenv("SMTP_USER", "")
	t.Setenv("SMTP_PASSWORD", "")
	t.Setenv("LOG_LEVEL", "error")

	return dir
}

func TestStatusCommand(t *testing.T) {
	dir := setupWorkspace(t)

	var out bytes.Buffer
	root := NewRootCommand(Options{EnvFile: filepath.Join(dir, "missing.env"), Out: &out})
	root.SetArgs([]string{"status"})

	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("status error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"Recipients:", "3", "Already dispatched:", "Pending:", "2", "Failure entries:", "1"} {
		if !strings.Contains(got, want) {
			t.Fatalf("status output missing %q:\n%s", want, got)
		}
	}
}

func TestRunCommandRequiresCredentials(t *testing.T) {
	dir := setupWorkspace(t)

	root := NewRootCommand(Options{EnvFile: filepath.Join(dir, "missing.env"), Out: &bytes.Buffer{}})
	root.SetArgs([]string{"run"})

	err := root.ExecuteContext(context.Background())
	if !errors.Is(err, domain.ErrMissingCredentials) {
		t.Fatalf("run error = %v, want ErrMissingCredentials", err)
	}
}

func TestHistoryCommandRequiresDatabase(t *testing.T) {
	dir := setupWorkspace(t)
	t.Setenv("DATABASE_DSN", "")

	root := NewRootCommand(Options{EnvFile: filepath.Join(dir, "missing.env"), Out: &bytes.Buffer{}})
	root.SetArgs([]string{"history", "ada@example.com"})

	err := root.ExecuteContext(context.Background())
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("history error = %v, want ErrValidation", err)
	}
}

func TestPrintHistory(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	records := []repository.AuditRecord{
		{RunID: "run-1", Entry: domain.NewFailureEntry(at, "ada@example.com", 1, "timeout")},
		{RunID: "run-1", Entry: domain.NewSuccessEntry(at.Add(time.Second), "ada@example.com", "<id@example.com>")},
	}

	var out bytes.Buffer
	if err := printHistory(&out, records); err != nil {
		t.Fatalf("printHistory() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header plus 2:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[1], "FAILURE") || !strings.Contains(lines[1], "timeout") {
		t.Fatalf("failure line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "SUCCESS") || !strings.Contains(lines[2], "<id@example.com>") {
		t.Fatalf("success line = %q", lines[2])
	}

	out.Reset()
	if err := printHistory(&out, nil); err != nil {
		t.Fatalf("printHistory(nil) error = %v", err)
	}
	if strings.TrimSpace(out.String()) != "No audit entries" {
		t.Fatalf("empty output = %q", out.String())
	}
}
