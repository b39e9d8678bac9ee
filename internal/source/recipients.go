package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/kursadbilgin/mail-dispatch/internal/domain"
	"go.uber.org/zap"
)

const utf8BOM = "\ufeff"

// RecipientSource loads every recipient of a run, in source order.
type RecipientSource interface {
	Load(ctx context.Context) ([]domain.Recipient, error)
}

// CSVRecipients reads a comma-separated file whose first row names the columns.
type CSVRecipients struct {
	path          string
	addressColumn string
	logger        *zap.Logger
}

func NewCSVRecipients(path string, addressColumn string, logger *zap.Logger) *CSVRecipients {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CSVRecipients{
		path:          strings.TrimSpace(path),
		addressColumn: strings.TrimSpace(addressColumn),
		logger:        logger,
	}
}

func (s *CSVRecipients) Load(ctx context.Context) ([]domain.Recipient, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRecipientSourceMissing, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open recipient source: %w", err)
	}
	defer f.Close()

	return s.parse(ctx, f)
}

func (s *CSVRecipients) parse(ctx context.Context, r io.Reader) ([]domain.Recipient, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read recipient header: %w", err)
	}

	columns := make([]string, len(header))
	addressIndex := -1
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		columns[i] = strings.TrimSpace(name)
		if columns[i] == s.addressColumn && addressIndex < 0 {
			addressIndex = i
		}
	}
	if addressIndex < 0 {
		return nil, fmt.Errorf("%w: recipient source has no %q column", domain.ErrValidation, s.addressColumn)
	}

	var recipients []domain.Recipient
	for {
		if ctx != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read recipient row: %w", err)
		}

		fields := make(map[string]string, len(columns))
		for i, name := range columns {
			if i < len(record) {
				fields[name] = record[i]
			}
		}

		recipient := domain.NewRecipient(record[addressIndex], fields)
		if err := recipient.Validate(); err != nil {
			line, _ := reader.FieldPos(0)
			s.logger.Warn("skipping recipient row",
				zap.String("source", s.path),
				zap.Int("line", line),
				zap.Error(err),
			)
			continue
		}

		recipients = append(recipients, recipient)
	}

	return recipients, nil
}
