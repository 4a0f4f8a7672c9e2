package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"table-call/internal/email"
)

const DEFAULT_QR_IMAGE_SIZE = 512

type PushConfig struct {
	// none, websocket, socketio or nats
	Type        string              `mapstructure:"type" validate:"oneof=none websocket socketio nats"`
	Path        string              `mapstructure:"path"`
	NATSURL     string              `mapstructure:"nats_url" validate:"required_if=Type nats"`
	NATSSubject string              `mapstructure:"nats_subject"`
	Events      map[string][]string `mapstructure:"events"`
}

type Config struct {
	// Secret key for signing admin tokens. Must be set in production.
	Secret string `mapstructure:"secret"`
	// TableSecret is embedded in every table token. Changing it invalidates
	// every printed QR code.
	TableSecret string `mapstructure:"table_secret" validate:"required,excludes=0x7C"`
	LogLevel    string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	Listen string `mapstructure:"listen" validate:"required"`
	// Public URL the QR codes point to.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// Root of the café backend REST API. The push endpoint is derived from it.
	BackendURL     string        `mapstructure:"backend_url" validate:"required,url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`

	// Comma separated list of networks allowed on /admin. Empty means allow all.
	AllowedNetworks string `mapstructure:"allowed_networks"`

	CallCooldown     time.Duration `mapstructure:"call_cooldown" validate:"gt=0"`
	FeedbackCooldown time.Duration `mapstructure:"feedback_cooldown" validate:"gt=0"`
	NoticeTTL        time.Duration `mapstructure:"notice_ttl" validate:"gt=0"`
	AdminTokenTTL    time.Duration `mapstructure:"admin_token_ttl" validate:"gt=0"`

	QRImageSize int `mapstructure:"qr_image_size" validate:"min=64,max=4096"`

	Push    PushConfig       `mapstructure:"push"`
	Storage Storage          `mapstructure:"storage"`
	Email   email.SMTPConfig `mapstructure:"email"`
}

var Cfg *Config

var validate = validator.New()

// runningInDocker reports whether /.dockerenv exists. Tests replace it.
var runningInDocker = func() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}

func getConfigPath() string {
	if runningInDocker() {
		return "/app/instance"
	}
	return "./instance"
}

// LoadConfig reads configuration from the optional config file and
// environment variables. Nested keys map to env names with '_', so
// storage.local.path is STORAGE_LOCAL_PATH.
func LoadConfig(configFile ...string) (*Config, error) {
	var cfg Config

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(getConfigPath())
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	explicit := false
	for _, path := range configFile {
		if path != "" {
			v.SetConfigFile(path)
			explicit = true
		}
	}

	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %v", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	// Convert relative sqlite path to absolute instance folder
	if p := cfg.Storage.Local.Path; p != "" && p != ":memory:" && !filepath.IsAbs(p) {
		cfg.Storage.Local.Path = filepath.Join(getConfigPath(), p)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	// Warn if secret is missing - this is a critical security setting for production
	if cfg.Secret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			return nil, errors.New("SECRET configuration variable is required in production")
		}
		slog.Warn("Secret is not set. Do not use in production.")
	}

	Cfg = &cfg
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.Storage.Type == StoragePostgres && cfg.Storage.Postgres.DSN == "" {
		return errors.New("config validation failed: storage.postgres.dsn is required for postgres storage")
	}
	return nil
}
