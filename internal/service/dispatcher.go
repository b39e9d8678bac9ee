package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/mail-dispatch/internal/audit"
	"github.com/kursadbilgin/mail-dispatch/internal/domain"
	"github.com/kursadbilgin/mail-dispatch/internal/interpolate"
	"github.com/kursadbilgin/mail-dispatch/internal/observability"
	"github.com/kursadbilgin/mail-dispatch/internal/provider"
	"github.com/kursadbilgin/mail-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/mail-dispatch/internal/selection"
	"github.com/kursadbilgin/mail-dispatch/internal/source"
	"go.uber.org/zap"
)

const (
	DefaultMaxRetries     = 2
	DefaultRetryBackoff   = 1500 * time.Millisecond
	DefaultPacingInterval = 1500 * time.Millisecond
)

// SelectionResolver asks which content a recipient gets.
type SelectionResolver interface {
	Resolve(ctx context.Context, recipient domain.Recipient, candidates selection.Candidates) (domain.Selection, error)
}

// RunSummary describes what a single run did.
type RunSummary struct {
	Total             int
	AlreadyDispatched int
	Duplicates        int
	Queued            int
	Sent              int
	Unresolved        int
	Attempts          int
}

type DispatcherOptions struct {
	Transport      string
	Mailbox        string
	MaxRetries     int
	RetryBackoff   time.Duration
	PacingInterval time.Duration
}

// Dispatcher walks the recipient queue one recipient at a time.
type Dispatcher struct {
	recipients  source.RecipientSource
	content     source.ContentSource
	auditLog    audit.Log
	resolver    SelectionResolver
	provider    provider.Provider
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics

	transport      string
	mailbox        string
	maxRetries     int
	retryBackoff   time.Duration
	pacingInterval time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(
	recipients source.RecipientSource,
	content source.ContentSource,
	auditLog audit.Log,
	resolver SelectionResolver,
	provider provider.Provider,
	opts DispatcherOptions,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if recipients == nil {
		return nil, fmt.Errorf("recipient source is required")
	}
	if content == nil {
		return nil, fmt.Errorf("content source is required")
	}
	if auditLog == nil {
		return nil, fmt.Errorf("audit log is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("selection resolver is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if opts.MaxRetries < 0 {
		return nil, fmt.Errorf("%w: max retries must not be negative", domain.ErrValidation)
	}
	if opts.RetryBackoff < 0 || opts.PacingInterval < 0 {
		return nil, fmt.Errorf("%w: delays must not be negative", domain.ErrValidation)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		recipients:     recipients,
		content:        content,
		auditLog:       auditLog,
		resolver:       resolver,
		provider:       provider,
		logger:         logger,
		transport:      strings.TrimSpace(opts.Transport),
		mailbox:        strings.TrimSpace(opts.Mailbox),
		maxRetries:     opts.MaxRetries,
		retryBackoff:   opts.RetryBackoff,
		pacingInterval: opts.PacingInterval,
		now:            time.Now,
		sleep:          sleepContext,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// SetRateLimiter adds a provider throttle on top of the fixed pacing.
func (d *Dispatcher) SetRateLimiter(limiter ratelimit.RateLimiter) {
	if d == nil {
		return
	}
	d.rateLimiter = limiter
}

// Run dispatches to every recipient not yet in the success log. Delivery
// failures are recorded and never stop the run; anything else does.
func (d *Dispatcher) Run(ctx context.Context) (*RunSummary, error) {
	logger := observability.WithContextLogger(d.logger, ctx)

	recipients, err := d.recipients.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipients: %w", err)
	}

	dispatched, err := d.auditLog.LoadAlreadyDispatched(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load dispatched recipients: %w", err)
	}

	summary := &RunSummary{Total: len(recipients)}
	queue := buildQueue(recipients, dispatched, summary)
	summary.Queued = len(queue)

	if len(queue) == 0 {
		logger.Info("no new recipients",
			zap.Int("total", summary.Total),
			zap.Int("alreadyDispatched", summary.AlreadyDispatched),
		)
		return summary, nil
	}

	candidates, err := d.loadCandidates(ctx)
	if err != nil {
		return summary, err
	}

	logger.Info("dispatch run started",
		zap.Int("total", summary.Total),
		zap.Int("alreadyDispatched", summary.AlreadyDispatched),
		zap.Int("queued", summary.Queued),
		zap.Int("subjects", len(candidates.Subjects)),
		zap.Int("templates", len(candidates.Templates)),
		zap.Int("attachments", len(candidates.Attachments)),
	)
	d.metrics.SetQueued(len(queue))

	var state domain.SelectionState
	for i, recipient := range queue {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		current, ok := state.Current()
		if !ok {
			current, err = d.resolver.Resolve(ctx, recipient, candidates)
			if err != nil {
				return summary, fmt.Errorf("failed to resolve selection for %s: %w", recipient.Address, err)
			}
			state = state.Hold(current)
		}

		message, err := d.render(ctx, recipient, current)
		if err != nil {
			return summary, err
		}

		sent, err := d.deliver(ctx, logger, message, summary)
		if err != nil {
			return summary, err
		}
		if sent {
			summary.Sent++
		} else {
			summary.Unresolved++
			d.metrics.IncRecipientUnresolved(d.transport)
		}

		state = state.Advance()
		d.metrics.DecRemaining()

		if i < len(queue)-1 && d.pacingInterval > 0 {
			if err := d.sleep(ctx, d.pacingInterval); err != nil {
				return summary, err
			}
		}
	}

	logger.Info("dispatch run completed",
		zap.Int("total", summary.Total),
		zap.Int("alreadyDispatched", summary.AlreadyDispatched),
		zap.Int("queued", summary.Queued),
		zap.Int("sent", summary.Sent),
		zap.Int("unresolved", summary.Unresolved),
		zap.Int("attempts", summary.Attempts),
	)

	return summary, nil
}

// buildQueue keeps source order and queues an address at most once.
func buildQueue(recipients []domain.Recipient, dispatched map[string]struct{}, summary *RunSummary) []domain.Recipient {
	queue := make([]domain.Recipient, 0, len(recipients))
	seen := make(map[string]struct{}, len(recipients))

	for _, recipient := range recipients {
		if _, ok := dispatched[recipient.Address]; ok {
			summary.AlreadyDispatched++
			continue
		}
		if _, ok := seen[recipient.Address]; ok {
			summary.Duplicates++
			continue
		}
		seen[recipient.Address] = struct{}{}
		queue = append(queue, recipient)
	}

	return queue
}

func (d *Dispatcher) loadCandidates(ctx context.Context) (selection.Candidates, error) {
	subjects, err := d.content.Subjects(ctx)
	if err != nil {
		return selection.Candidates{}, fmt.Errorf("failed to load subjects: %w", err)
	}
	templates, err := d.content.Templates(ctx)
	if err != nil {
		return selection.Candidates{}, fmt.Errorf("failed to load templates: %w", err)
	}
	attachments, err := d.content.Attachments(ctx)
	if err != nil {
		return selection.Candidates{}, fmt.Errorf("failed to load attachments: %w", err)
	}

	candidates := selection.Candidates{
		Subjects:    subjects,
		Templates:   templates,
		Attachments: attachments,
	}
	if err := candidates.Validate(); err != nil {
		return selection.Candidates{}, err
	}
	return candidates, nil
}

func (d *Dispatcher) render(ctx context.Context, recipient domain.Recipient, chosen domain.Selection) (domain.Message, error) {
	body, err := d.content.ReadTemplate(ctx, chosen.Template)
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to read template %q: %w", chosen.Template, err)
	}

	attachmentPath, err := d.content.AttachmentPath(chosen.Attachment)
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to resolve attachment %q: %w", chosen.Attachment, err)
	}

	return domain.Message{
		To:             recipient.Address,
		Subject:        interpolate.Render(chosen.Subject, recipient),
		HTMLBody:       interpolate.Render(body, recipient),
		AttachmentPath: attachmentPath,
	}, nil
}

// deliver makes up to maxRetries+1 attempts. It reports whether the message
// went out; a non-nil error aborts the run.
func (d *Dispatcher) deliver(ctx context.Context, logger *zap.Logger, message domain.Message, summary *RunSummary) (bool, error) {
	maxAttempts := d.maxRetries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if d.rateLimiter != nil {
			if err := d.rateLimiter.Wait(ctx, d.mailbox); err != nil {
				return false, fmt.Errorf("rate limiter wait failed: %w", err)
			}
		}

		summary.Attempts++
		sendStart := d.now()
		resp, sendErr := d.provider.Send(ctx, message)
		d.metrics.ObserveSendDuration(d.transport, d.now().Sub(sendStart))

		if sendErr == nil {
			deliveryID := ""
			if resp != nil {
				deliveryID = strings.TrimSpace(resp.MessageID)
			}
			if err := d.auditLog.RecordSuccess(context.WithoutCancel(ctx), message.To, deliveryID); err != nil {
				return false, fmt.Errorf("failed to record success for %s: %w", message.To, err)
			}
			d.metrics.IncMessageSent(d.transport)
			logger.Info("message sent",
				zap.String("recipient", message.To),
				zap.String("deliveryId", deliveryID),
				zap.Int("attempt", attempt),
			)
			return true, nil
		}

		// An attempt that reached the provider is recorded even after cancellation.
		if err := d.auditLog.RecordFailure(context.WithoutCancel(ctx), message.To, attempt, sendErr.Error()); err != nil {
			return false, fmt.Errorf("failed to record failure for %s: %w", message.To, err)
		}
		d.metrics.IncAttemptFailed(d.transport, provider.Reason(sendErr))

		if err := ctx.Err(); err != nil {
			return false, err
		}

		if attempt == maxAttempts {
			logger.Warn("delivery attempts exhausted",
				zap.String("recipient", message.To),
				zap.Int("attempts", attempt),
				zap.Error(sendErr),
			)
			return false, nil
		}

		logger.Warn("delivery attempt failed, retrying",
			zap.String("recipient", message.To),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", maxAttempts),
			zap.Bool("transient", provider.IsTransient(sendErr)),
			zap.Error(sendErr),
		)
		d.metrics.IncRetry(d.transport)
		if d.retryBackoff > 0 {
			if err := d.sleep(ctx, d.retryBackoff); err != nil {
				return false, err
			}
		}
	}

	return false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
