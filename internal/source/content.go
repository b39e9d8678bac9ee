package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ContentSource lists the subject, template and attachment candidates of a
// run and resolves the chosen ones.
type ContentSource interface {
	Subjects(ctx context.Context) ([]string, error)
	Templates(ctx context.Context) ([]string, error)
	Attachments(ctx context.Context) ([]string, error)
	ReadTemplate(ctx context.Context, name string) (string, error)
	AttachmentPath(name string) (string, error)
}

// ContentStore is the directory-backed ContentSource.
type ContentStore struct {
	subjectsFile   string
	templatesDir   string
	templateExt    string
	attachmentsDir string
}

func NewContentStore(subjectsFile, templatesDir, templateExt, attachmentsDir string) *ContentStore {
	ext := strings.ToLower(strings.TrimSpace(templateExt))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	return &ContentStore{
		subjectsFile:   subjectsFile,
		templatesDir:   templatesDir,
		templateExt:    ext,
		attachmentsDir: attachmentsDir,
	}
}

// Subjects returns the candidate subject lines. Blank lines and lines starting
// with # are ignored; a missing file has no candidates.
func (s *ContentStore) Subjects(ctx context.Context) ([]string, error) {
	data, err := os.ReadFile(s.subjectsFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read subjects: %w", err)
	}

	var subjects []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		subjects = append(subjects, line)
	}
	return subjects, nil
}

func (s *ContentStore) Templates(ctx context.Context) ([]string, error) {
	return listFiles(s.templatesDir, s.templateExt)
}

func (s *ContentStore) Attachments(ctx context.Context) ([]string, error) {
	return listFiles(s.attachmentsDir, "")
}

func (s *ContentStore) ReadTemplate(ctx context.Context, name string) (string, error) {
	path, err := resolveEntry(s.templatesDir, name)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template %q: %w", name, err)
	}
	return string(data), nil
}

func (s *ContentStore) AttachmentPath(name string) (string, error) {
	path, err := resolveEntry(s.attachmentsDir, name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("failed to stat attachment %q: %w", name, err)
	}
	return path, nil
}

// listFiles returns the sorted names of the regular files in dir, optionally
// filtered by extension. A missing directory has no files.
func listFiles(dir string, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %q: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if ext != "" && strings.ToLower(filepath.Ext(entry.Name())) != ext {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// resolveEntry joins a listed file name to its directory, refusing names that
// would step outside of it.
func resolveEntry(dir string, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(dir, name), nil
}
