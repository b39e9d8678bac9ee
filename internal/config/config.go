package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/kursadbilgin/mail-dispatch/internal/domain"
)

const (
	TransportSMTP    = "smtp"
	TransportWebhook = "webhook"
)

type Config struct {
	SMTPHost      string `env:"SMTP_HOST,default=smtp.gmail.com"`
	SMTPPort      int    `env:"SMTP_PORT,default=587"`
	SMTPUser      string `env:"SMTP_USER"`
	SMTPPassword  string `env:"SMTP_PASSWORD"`
	SenderName    string `env:"SENDER_NAME"`
	SenderAddress string `env:"SENDER_ADDRESS"`
	Transport     string `env:"TRANSPORT,default=smtp"`
	WebhookURL    string `env:"WEBHOOK_URL"`

	RecipientsFile string `env:"RECIPIENTS_FILE,default=recipients.csv"`
	AddressColumn  string `env:"ADDRESS_COLUMN,default=email"`
	SubjectsFile   string `env:"SUBJECTS_FILE,default=subjects.txt"`
	TemplatesDir   string `env:"TEMPLATES_DIR,default=templates"`
	TemplateExt    string `env:"TEMPLATE_EXT,default=.html"`
	AttachmentsDir string `env:"ATTACHMENTS_DIR,default=attachments"`
	SentLogFile    string `env:"SENT_LOG_FILE,default=sent.log"`
	ErrorLogFile   string `env:"ERROR_LOG_FILE,default=error.log"`

	PacingInterval  time.Duration `env:"PACING_INTERVAL,default=1500ms"`
	RetryBackoff    time.Duration `env:"RETRY_BACKOFF,default=1500ms"`
	MaxRetries      int           `env:"MAX_RETRIES,default=2"`
	RateLimitPerSec int           `env:"RATE_LIMIT_PER_SEC,default=0"`

	RedisURL    string `env:"REDIS_URL"`
	DatabaseDSN string `env:"DATABASE_DSN"`
	MetricsAddr string `env:"METRICS_ADDR"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=console"`
}

// Load reads the configuration from the environment, after merging an
// optional dotenv file. Variables already set win over the file.
func Load(dotenvPath string) (*Config, error) {
	if dotenvPath = strings.TrimSpace(dotenvPath); dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %q: %w", dotenvPath, err)
		}
	}

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	if strings.TrimSpace(cfg.SenderAddress) == "" {
		cfg.SenderAddress = strings.TrimSpace(cfg.SMTPUser)
	}

	if err := cfg.validateValues(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ValidateTransport checks what a dispatch run needs before touching any
// recipient: the sender identity and its secret.
func (c *Config) ValidateTransport() error {
	var missing []string
	if strings.TrimSpace(c.SMTPUser) == "" {
		missing = append(missing, "SMTP_USER")
	}
	if strings.TrimSpace(c.SMTPPassword) == "" {
		missing = append(missing, "SMTP_PASSWORD")
	}
	if c.Transport == TransportWebhook && strings.TrimSpace(c.WebhookURL) == "" {
		missing = append(missing, "WEBHOOK_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) validateValues() error {
	switch c.Transport {
	case TransportSMTP, TransportWebhook:
	default:
		return fmt.Errorf("%w: unsupported transport %q", domain.ErrValidation, c.Transport)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: MAX_RETRIES must not be negative", domain.ErrValidation)
	}
	if c.PacingInterval < 0 || c.RetryBackoff < 0 {
		return fmt.Errorf("%w: PACING_INTERVAL and RETRY_BACKOFF must not be negative", domain.ErrValidation)
	}
	if c.RateLimitPerSec < 0 {
		return fmt.Errorf("%w: RATE_LIMIT_PER_SEC must not be negative", domain.ErrValidation)
	}
	if strings.TrimSpace(c.AddressColumn) == "" {
		return fmt.Errorf("%w: ADDRESS_COLUMN is required", domain.ErrValidation)
	}
	return nil
}
