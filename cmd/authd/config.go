package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	auth "github.com/goliatone/go-authgate"
)

// AppConfig is the server configuration
type AppConfig struct {
	Addr        string          `koanf:"addr"`
	DSN         string          `koanf:"dsn"`
	AutoMigrate bool            `koanf:"auto_migrate"`
	Hashid      bool            `koanf:"hashid"`
	Debug       bool            `koanf:"debug"`
	LogFormat   string          `koanf:"log_format"`
	LogLevel    string          `koanf:"log_level"`
	Auth        auth.Options    `koanf:"auth"`
	SMTP        auth.SMTPConfig `koanf:"smtp"`
}

// DefaultAppConfig returns a config that only lacks a signing key
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Addr:        ":8080",
		DSN:         "file:authgate.db?cache=shared",
		AutoMigrate: true,
		LogFormat:   "text",
		LogLevel:    "info",
		Auth:        auth.DefaultOptions(),
		SMTP:        auth.SMTPConfig{Port: 587},
	}
}

// Validate checks the config is usable
func (c AppConfig) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.LogFormat, validation.In("text", "json")),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	); err != nil {
		return err
	}

	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

// flagKeys maps command line flags to config keys
var flagKeys = map[string]string{
	"addr":             "addr",
	"dsn":              "dsn",
	"auto-migrate":     "auto_migrate",
	"hashid":           "hashid",
	"debug":            "debug",
	"log-format":       "log_format",
	"log-level":        "log_level",
	"signing-key":      "auth.signing_key",
	"issuer":           "auth.issuer",
	"token-expiration": "auth.token_expiration",
	"secure-cookie":    "auth.secure_cookie",
	"reset-token-ttl":  "auth.reset_token_ttl",
	"smtp-host":        "smtp.host",
	"smtp-port":        "smtp.port",
	"smtp-from":        "smtp.from",
}

// bindFlags registers the config flags on fs with defaults from def
func bindFlags(fs *pflag.FlagSet, def AppConfig) {
	fs.String("addr", def.Addr, "HTTP listen address")
	fs.String("dsn", def.DSN, "database DSN, postgres:// or a sqlite file")
	fs.Bool("auto-migrate", def.AutoMigrate, "apply migrations on start")
	fs.Bool("hashid", def.Hashid, "derive user IDs from email")
	fs.Bool("debug", def.Debug, "dump request payloads")
	fs.String("log-format", def.LogFormat, "log format: text or json")
	fs.String("log-level", def.LogLevel, "log level: debug, info, warn or error")
	fs.String("signing-key", def.Auth.SigningKey, "HMAC key used to sign sessions")
	fs.String("issuer", def.Auth.Issuer, "session issuer")
	fs.Duration("token-expiration", def.Auth.TokenExpiration, "session lifetime")
	fs.Bool("secure-cookie", def.Auth.SecureCookie, "always mark the session cookie secure")
	fs.Duration("reset-token-ttl", def.Auth.ResetTokenTTL, "password reset token lifetime")
	fs.String("smtp-host", def.SMTP.Host, "SMTP host, empty logs reset emails")
	fs.Int("smtp-port", def.SMTP.Port, "SMTP port")
	fs.String("smtp-from", def.SMTP.From, "sender address of reset emails")
}

// LoadConfig layers defaults, the optional YAML file at path and the
// flags set on fs.
func LoadConfig(path string, fs *pflag.FlagSet) (AppConfig, error) {
	cfg := DefaultAppConfig()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return cfg, fmt.Errorf("load flags: %w", err)
		}
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Auth.SignupRoles) == 0 {
		cfg.Auth.SignupRoles = auth.DefaultOptions().SignupRoles
	}

	return cfg, nil
}

func newLogger(cfg AppConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

const shutdownTimeout = 10 * time.Second
