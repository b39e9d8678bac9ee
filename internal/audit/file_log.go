package audit

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kursadbilgin/mail-dispatch/internal/domain"
)

const (
	logFileMode = 0o644
	maxLineSize = 1024 * 1024
)

var _ EntryLog = (*FileLog)(nil)

// FileLog is a pair of line-oriented append-only files. Every append is synced
// to stable storage before it returns.
type FileLog struct {
	successPath string
	failurePath string
	now         func() time.Time
}

func NewFileLog(successPath string, failurePath string) (*FileLog, error) {
	successPath = strings.TrimSpace(successPath)
	failurePath = strings.TrimSpace(failurePath)
	if successPath == "" {
		return nil, fmt.Errorf("success log path is required")
	}
	if failurePath == "" {
		return nil, fmt.Errorf("failure log path is required")
	}
	if filepath.Clean(successPath) == filepath.Clean(failurePath) {
		return nil, fmt.Errorf("success and failure logs must be different files")
	}

	return &FileLog{
		successPath: successPath,
		failurePath: failurePath,
		now:         time.Now,
	}, nil
}

func (l *FileLog) RecordSuccess(ctx context.Context, recipient string, deliveryID string) error {
	return l.Append(ctx, domain.NewSuccessEntry(l.now(), recipient, deliveryID))
}

func (l *FileLog) RecordFailure(ctx context.Context, recipient string, attempt int, errDescription string) error {
	return l.Append(ctx, domain.NewFailureEntry(l.now(), recipient, attempt, errDescription))
}

// Append writes entry to the log its outcome selects.
func (l *FileLog) Append(ctx context.Context, entry domain.AuditEntry) error {
	path := l.successPath
	if entry.Outcome == domain.AuditOutcomeFailure {
		path = l.failurePath
	}
	return l.append(ctx, path, entry)
}

// LoadAlreadyDispatched returns the distinct recipients of the success log.
// A missing log is empty; lines without a recipient field are skipped.
func (l *FileLog) LoadAlreadyDispatched(ctx context.Context) (map[string]struct{}, error) {
	dispatched := make(map[string]struct{})
	err := readLines(ctx, l.successPath, func(line string) {
		if recipient, ok := domain.ParseAuditRecipient(line); ok {
			dispatched[recipient] = struct{}{}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load success log: %w", err)
	}
	return dispatched, nil
}

func (l *FileLog) Stats(ctx context.Context) (Stats, error) {
	dispatched, err := l.LoadAlreadyDispatched(ctx)
	if err != nil {
		return Stats{}, err
	}

	failures := 0
	err = readLines(ctx, l.failurePath, func(line string) {
		if _, ok := domain.ParseAuditRecipient(line); ok {
			failures++
		}
	})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to load failure log: %w", err)
	}

	return Stats{
		Dispatched:     len(dispatched),
		FailureEntries: failures,
	}, nil
}

func (l *FileLog) append(ctx context.Context, path string, entry domain.AuditEntry) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid audit entry: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFileMode)
	if err != nil {
		return fmt.Errorf("failed to open audit log %q: %w", path, err)
	}

	if _, err := f.WriteString(entry.Line() + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to append audit log %q: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync audit log %q: %w", path, err)
	}

	return f.Close()
}

// readLines feeds every non-blank, non-comment line of path to fn. A missing
// file yields no lines. Lines longer than maxLineSize are skipped.
func readLines(ctx context.Context, path string, fn func(line string)) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, maxLineSize)
	for {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}

		raw, isPrefix, err := reader.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if isPrefix {
			if err := discardLine(reader); err != nil {
				return err
			}
			continue
		}

		line := strings.TrimSpace(string(raw))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fn(line)
	}
}

func discardLine(reader *bufio.Reader) error {
	for {
		_, isPrefix, err := reader.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil || !isPrefix {
			return err
		}
	}
}
