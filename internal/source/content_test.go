package source

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func newTestContentStore(t *testing.T) (*ContentStore, string) {
	t.Helper()

	root := t.TempDir()
	templates := filepath.Join(root, "templates")
	attachments := filepath.Join(root, "attachments")
	for _, dir := range []string{templates, attachments, filepath.Join(templates, "nested.html")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("MkdirAll(%s) error = %v", dir, err)
		}
	}

	writeFile(t, templates, "b.html", "<p>Hi {{ name }}</p>")
	writeFile(t, templates, "A.HTML", "<p>Upper</p>")
	writeFile(t, templates, "notes.txt", "ignored")
	writeFile(t, attachments, "resume.pdf", "%PDF")
	writeFile(t, attachments, "cover.txt", "cover")
	writeFile(t, root, "subjects.txt", "# comment\n\nHello {{ name }}\r\n  Opening at {{ company }}  \n")

	store := NewContentStore(
		filepath.Join(root, "subjects.txt"),
		templates,
		"html",
		attachments,
	)
	return store, root
}

func TestContentStoreSubjects(t *testing.T) {
	t.Parallel()

	store, _ := newTestContentStore(t)

	got, err := store.Subjects(context.Background())
	if err != nil {
		t.Fatalf("Subjects() error = %v", err)
	}
	want := []string{"Hello {{ name }}", "Opening at {{ company }}"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Subjects() = %q, want %q", got, want)
	}
}

func TestContentStoreSubjectsMissingFile(t *testing.T) {
	t.Parallel()

	store := NewContentStore(filepath.Join(t.TempDir(), "absent.txt"), "", ".html", "")
	got, err := store.Subjects(context.Background())
	if err != nil {
		t.Fatalf("Subjects() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Subjects() = %v, want empty", got)
	}
}

func TestContentStoreTemplatesFiltersByExtension(t *testing.T) {
	t.Parallel()

	store, _ := newTestContentStore(t)

	got, err := store.Templates(context.Background())
	if err != nil {
		t.Fatalf("Templates() error = %v", err)
	}
	want := []string{"A.HTML", "b.html"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Templates() = %v, want %v", got, want)
	}
}

func TestContentStoreAttachmentsListsAllFiles(t *testing.T) {
	t.Parallel()

	store, _ := newTestContentStore(t)

	got, err := store.Attachments(context.Background())
	if err != nil {
		t.Fatalf("Attachments() error = %v", err)
	}
	want := []string{"cover.txt", "resume.pdf"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Attachments() = %v, want %v", got, want)
	}
}

func TestContentStoreMissingDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewContentStore("", filepath.Join(root, "none"), ".html", filepath.Join(root, "none"))

	templates, err := store.Templates(context.Background())
	if err != nil || len(templates) != 0 {
		t.Fatalf("Templates() = %v, %v, want empty, nil", templates, err)
	}
	attachments, err := store.Attachments(context.Background())
	if err != nil || len(attachments) != 0 {
		t.Fatalf("Attachments() = %v, %v, want empty, nil", attachments, err)
	}
}

func TestContentStoreReadTemplate(t *testing.T) {
	t.Parallel()

	store, _ := newTestContentStore(t)

	body, err := store.ReadTemplate(context.Background(), "b.html")
	if err != nil {
		t.Fatalf("ReadTemplate() error = %v", err)
	}
	if body != "<p>Hi {{ name }}</p>" {
		t.Fatalf("ReadTemplate() = %q", body)
	}

	if _, err := store.ReadTemplate(context.Background(), "missing.html"); err == nil {
		t.Fatal("expected error for missing template")
	}
	if _, err := store.ReadTemplate(context.Background(), "../subjects.txt"); err == nil {
		t.Fatal("expected error for path traversal")
	}
}

func TestContentStoreAttachmentPath(t *testing.T) {
	t.Parallel()

	store, root := newTestContentStore(t)

	path, err := store.AttachmentPath("resume.pdf")
	if err != nil {
		t.Fatalf("AttachmentPath() error = %v", err)
	}
	if path != filepath.Join(root, "attachments", "resume.pdf") {
		t.Fatalf("AttachmentPath() = %q", path)
	}

	if _, err := store.AttachmentPath("gone.pdf"); err == nil {
		t.Fatal("expected error for missing attachment")
	}
}
