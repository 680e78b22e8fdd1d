package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Config holds the application configuration
type Config struct {
	TelegramToken string   `env:"TELEGRAM_BOT_TOKEN,required"`
	AdminIDs      []int64  `env:"ADMIN_IDS"`
	Channels      Channels `env:"CHANNELS" validate:"dive"`

	// Bot mode configuration
	WebhookMode bool   `env:"WEBHOOK_MODE,default=false"` // If true, use webhook mode; if false, use polling mode
	WebhookURL  string `env:"WEBHOOK_URL" validate:"required_if=WebhookMode true"`

	Port        string `env:"PORT,default=8080"`
	Environment string `env:"APP_ENVIRONMENT,default=production" validate:"oneof=development production"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	// Update dispatcher
	Workers     int `env:"WORKERS,default=16" validate:"min=1"`
	WorkerQueue int `env:"WORKER_QUEUE,default=64" validate:"min=1"`

	UseMockDB   bool              `env:"USE_MOCK_DB,default=false"`
	Database    DatabaseConfig    `env:",prefix=DB_"`
	Session     SessionConfig     `env:",prefix=SESSION_"`
	ClickHouse  ClickHouseConfig  `env:",prefix=CLICKHOUSE_"`
	Broadcast   BroadcastConfig   `env:",prefix=BROADCAST_"`
	JoinApprove JoinApproveConfig `env:",prefix=JOIN_APPROVE_"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL      string `env:"URL"` // takes precedence over the individual fields
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=postgres"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME,default=moviebot"`
	SSLMode  string `env:"SSL_MODE,default=disable"`
	MaxConns int32  `env:"MAX_CONNS,default=10" validate:"min=1"`
}

// SessionConfig selects the conversation state backend
type SessionConfig struct {
	Backend       string        `env:"BACKEND,default=memory" validate:"oneof=memory redis"`
	TTL           time.Duration `env:"TTL,default=1h" validate:"min=0"`
	RedisAddr     string        `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB,default=0"`
}

// ClickHouseConfig holds the redemption analytics connection
type ClickHouseConfig struct {
	Enabled  bool   `env:"ENABLED,default=false"`
	Host     string `env:"HOST" validate:"required_if=Enabled true"`
	Port     int    `env:"PORT,default=9000"` // Default ClickHouse native port
	Database string `env:"DATABASE,default=default"`
	User     string `env:"USER,default=default"`
	Password string `env:"PASSWORD"`
	UseTLS   bool   `env:"USE_TLS,default=false"`
}

// BroadcastConfig paces broadcast sends
type BroadcastConfig struct {
	Rate  float64 `env:"RATE,default=25" validate:"gt=0"` // messages per second
	Burst int     `env:"BURST,default=1" validate:"min=1"`
}

// JoinApproveConfig is the retry policy of join request approvals
type JoinApproveConfig struct {
	Retries uint64        `env:"RETRIES,default=3"`
	Backoff time.Duration `env:"BACKOFF,default=500ms" validate:"gt=0"`
}

// Channel is a monitored channel
type Channel struct {
	ID    int64  `json:"id" validate:"required"`
	Title string `json:"title" validate:"required"`
	Link  string `json:"link" validate:"omitempty,url"`
}

// markupLink matches a title of the form [Text](https://link)
var markupLink = regexp.MustCompile(`^\[(.+)\]\((\S+)\)$`)

// DisplayTitle returns the title without an embedded markup link
func (c Channel) DisplayTitle() string {
	if m := markupLink.FindStringSubmatch(c.Title); m != nil {
		return m[1]
	}
	return c.Title
}

// URL returns the channel link, falling back to a link embedded in the title
func (c Channel) URL() string {
	if c.Link != "" {
		return c.Link
	}
	if m := markupLink.FindStringSubmatch(c.Title); m != nil {
		return m[2]
	}
	return ""
}

// Channels is decoded from a JSON array
type Channels []Channel

// EnvDecode implements envconfig.Decoder
func (c *Channels) EnvDecode(val string) error {
	if val == "" {
		return nil
	}
	var channels []Channel
	if err := json.Unmarshal([]byte(val), &channels); err != nil {
		return fmt.Errorf("invalid CHANNELS JSON: %w", err)
	}
	*c = channels
	return nil
}

// IDs returns the channel ids
func (c Channels) IDs() []int64 {
	ids := make([]int64, len(c))
	for i, ch := range c {
		ids[i] = ch.ID
	}
	return ids
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadDatabase loads only the DB_ settings, for tools that never talk to Telegram
func LoadDatabase(ctx context.Context, cfg *DatabaseConfig) error {
	return loadDatabase(ctx, cfg, envconfig.OsLookuper())
}

func loadDatabase(ctx context.Context, cfg *DatabaseConfig, lookuper envconfig.Lookuper) error {
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: envconfig.PrefixLookuper("DB_", lookuper),
	}); err != nil {
		return fmt.Errorf("failed to process environment config: %w", err)
	}
	return validator.New().Struct(cfg)
}

// DSN returns the PostgreSQL connection URL
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
