// Package config загружает настройки из .env, config.yaml и переменных FEEDBACK_*.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port    string `mapstructure:"port" validate:"required,numeric"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"server"`

	Storage struct {
		Type string `mapstructure:"type" validate:"oneof=in-memory postgres"`
		DSN  string `mapstructure:"dsn" validate:"required_if=Type postgres"`
		Seed bool   `mapstructure:"seed"`
	} `mapstructure:"storage"`

	Blob struct {
		Type            string `mapstructure:"type" validate:"oneof=local gcs"`
		Dir             string `mapstructure:"dir" validate:"required_if=Type local"`
		PublicURL       string `mapstructure:"public_url"`
		Bucket          string `mapstructure:"bucket" validate:"required_if=Type gcs"`
		CredentialsFile string `mapstructure:"credentials_file"`
	} `mapstructure:"blob"`

	Board struct {
		BaseDomain    string        `mapstructure:"base_domain" validate:"required,hostname"`
		Scheme        string        `mapstructure:"scheme" validate:"oneof=http https"`
		DefaultTenant string        `mapstructure:"default_tenant"`
		CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	} `mapstructure:"board"`

	Mail struct {
		Provider     string `mapstructure:"provider" validate:"oneof=resend smtp log"`
		ResendAPIKey string `mapstructure:"resend_api_key" validate:"required_if=Provider resend"`
		SMTPURL      string `mapstructure:"smtp_url" validate:"required_if=Provider smtp"`
		From         string `mapstructure:"from" validate:"required"`
		DemoFrom     string `mapstructure:"demo_from" validate:"required"`
		SurveyURL    string `mapstructure:"survey_url" validate:"required,url"`
	} `mapstructure:"mail"`

	Jobs struct {
		Queue    string `mapstructure:"queue" validate:"oneof=memory redis"`
		RedisURL string `mapstructure:"redis_url" validate:"required_if=Queue redis"`
		Weekday  string `mapstructure:"weekday" validate:"oneof=sunday monday tuesday wednesday thursday friday saturday"`
		Hour     int    `mapstructure:"hour" validate:"min=0,max=23"`
		Minute   int    `mapstructure:"minute" validate:"min=0,max=59"`
		Timezone string `mapstructure:"timezone" validate:"required"`
		Workers  int    `mapstructure:"workers" validate:"min=1"`
	} `mapstructure:"jobs"`

	Auth struct {
		SessionSecret string `mapstructure:"session_secret" validate:"min=16"`
		SecureCookie  bool   `mapstructure:"secure_cookie"`
	} `mapstructure:"auth"`

	Log struct {
		Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
		Format string `mapstructure:"format" validate:"oneof=text json"`
	} `mapstructure:"log"`

	Sentry struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"sentry"`

	Uploads struct {
		DraftTTL time.Duration `mapstructure:"draft_ttl"`
		MaxSize  int64         `mapstructure:"max_size" validate:"min=1"`
	} `mapstructure:"uploads"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Weekday - день еженедельной рассылки.
func (c *Config) Weekday() time.Weekday { return weekdays[strings.ToLower(c.Jobs.Weekday)] }

// Location - часовой пояс рассылки.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Jobs.Timezone)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("storage.type", "in-memory")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.seed", true)
	v.SetDefault("blob.type", "local")
	v.SetDefault("blob.dir", "./data/files")
	v.SetDefault("blob.public_url", "/files")
	v.SetDefault("blob.bucket", "")
	v.SetDefault("blob.credentials_file", "")
	v.SetDefault("board.base_domain", "ssimple.co")
	v.SetDefault("board.scheme", "https")
	v.SetDefault("board.default_tenant", "acme")
	v.SetDefault("board.cache_ttl", 5*time.Minute)
	v.SetDefault("mail.provider", "log")
	v.SetDefault("mail.resend_api_key", "")
	v.SetDefault("mail.smtp_url", "")
	v.SetDefault("mail.from", "ssimple notification <noreply@ssimple.co>")
	v.SetDefault("mail.demo_from", "ssimple Survey Demo <demo@ssimple.co>")
	v.SetDefault("mail.survey_url", "https://feedback.ssimple.co/survey-demo")
	v.SetDefault("jobs.queue", "memory")
	v.SetDefault("jobs.redis_url", "")
	v.SetDefault("jobs.weekday", "thursday")
	v.SetDefault("jobs.hour", 15)
	v.SetDefault("jobs.minute", 0)
	v.SetDefault("jobs.timezone", "America/Los_Angeles")
	v.SetDefault("jobs.workers", 4)
	v.SetDefault("auth.session_secret", "dev-session-secret-change-me")
	v.SetDefault("auth.secure_cookie", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("uploads.draft_ttl", time.Hour)
	v.SetDefault("uploads.max_size", 10<<20)
}

// Load читает конфигурацию. Пустой path - поиск config.yaml в текущем каталоге.
func Load(path string) (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FEEDBACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Старые имена переменных
	_ = v.BindEnv("server.port", "FEEDBACK_SERVER_PORT", "PORT")
	_ = v.BindEnv("storage.dsn", "FEEDBACK_STORAGE_DSN", "DATABASE_URL")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет значения после загрузки.
func (c *Config) Validate() error {
	c.Jobs.Weekday = strings.ToLower(c.Jobs.Weekday)
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: jobs.timezone: %w", err)
	}
	return nil
}
