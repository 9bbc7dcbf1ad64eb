package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App        AppConfig
	Service    ServiceConfig
	DB         DBConfig
	Redis      RedisConfig
	Webhook    WebhookConfig
	Mpesa      MpesaConfig
	SMS        SMSConfig
	Reconciler ReconcilerConfig
	Reminders  RemindersConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations envconfig tags cannot express. The webhook
// token is optional only outside prod; a prod deploy without one would accept
// forged gateway callbacks from any source, so boot refuses instead.
func (c *Config) Validate() error {
	if c.App.IsProd() && c.Webhook.Token == "" {
		return fmt.Errorf("RENTPULSE_WEBHOOK_TOKEN is required when RENTPULSE_APP_ENV is %q", c.App.Env)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"RENTPULSE_APP_ENV" required:"true"`
	Port         string `envconfig:"RENTPULSE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RENTPULSE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RENTPULSE_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"RENTPULSE_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"RENTPULSE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"RENTPULSE_DB_DSN" required:"true"`

	MaxOpenConns    int           `envconfig:"RENTPULSE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RENTPULSE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RENTPULSE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RENTPULSE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RENTPULSE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RENTPULSE_REDIS_ADDR"`
	Password     string        `envconfig:"RENTPULSE_REDIS_PASSWORD"`
	DB           int           `envconfig:"RENTPULSE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RENTPULSE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RENTPULSE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RENTPULSE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RENTPULSE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RENTPULSE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// WebhookConfig guards the inbound gateway callback surface.
type WebhookConfig struct {
	Token          string        `envconfig:"RENTPULSE_WEBHOOK_TOKEN"`
	AllowedIPs     []string      `envconfig:"RENTPULSE_WEBHOOK_ALLOWED_IPS"`
	IdempotencyTTL time.Duration `envconfig:"RENTPULSE_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

// HasAllowlist reports whether source IP filtering is configured at all.
// An empty allowlist means every source is accepted.
func (w WebhookConfig) HasAllowlist() bool {
	return len(w.AllowedIPs) > 0
}

type MpesaConfig struct {
	BaseURL            string        `envconfig:"RENTPULSE_MPESA_BASE_URL" default:"https://sandbox.safaricom.co.ke"`
	ConsumerKey        string        `envconfig:"RENTPULSE_MPESA_CONSUMER_KEY"`
	ConsumerSecret     string        `envconfig:"RENTPULSE_MPESA_CONSUMER_SECRET"`
	ShortCode          string        `envconfig:"RENTPULSE_MPESA_SHORT_CODE"`
	Passkey            string        `envconfig:"RENTPULSE_MPESA_PASSKEY"`
	InitiatorName      string        `envconfig:"RENTPULSE_MPESA_INITIATOR_NAME"`
	SecurityCredential string        `envconfig:"RENTPULSE_MPESA_SECURITY_CREDENTIAL"`
	CallbackBaseURL    string        `envconfig:"RENTPULSE_MPESA_CALLBACK_BASE_URL"`
	Timeout            time.Duration `envconfig:"RENTPULSE_MPESA_TIMEOUT" default:"30s"`
}

type SMSConfig struct {
	BaseURL  string        `envconfig:"RENTPULSE_SMS_BASE_URL"`
	Username string        `envconfig:"RENTPULSE_SMS_USERNAME"`
	APIKey   string        `envconfig:"RENTPULSE_SMS_API_KEY"`
	SenderID string        `envconfig:"RENTPULSE_SMS_SENDER_ID"`
	Timeout  time.Duration `envconfig:"RENTPULSE_SMS_TIMEOUT" default:"15s"`
}

// ReconcilerConfig tunes the stuck-transaction poller.
type ReconcilerConfig struct {
	PollInterval time.Duration `envconfig:"RENTPULSE_RECONCILER_POLL_INTERVAL" default:"5m"`
	MinAge       time.Duration `envconfig:"RENTPULSE_RECONCILER_MIN_AGE" default:"3m"`
	BatchSize    int           `envconfig:"RENTPULSE_RECONCILER_BATCH_SIZE" default:"20"`
	ItemDelay    time.Duration `envconfig:"RENTPULSE_RECONCILER_ITEM_DELAY" default:"500ms"`
}

type RemindersConfig struct {
	SchedulerInterval  time.Duration `envconfig:"RENTPULSE_REMINDER_SCHEDULER_INTERVAL" default:"1h"`
	DispatcherInterval time.Duration `envconfig:"RENTPULSE_REMINDER_DISPATCHER_INTERVAL" default:"2m"`
}
