// Package config содержит логику чтения конфигурации сервиса бэк-офиса.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса бэк-офиса.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	AuthSecret  string `env:"AUTH_SECRET"`
	AppName     string `env:"APP_NAME"`
	AppBaseURL  string `env:"APP_BASE_URL"`

	DocPrefix string `env:"DOC_PREFIX"`
	DocPad    int    `env:"DOC_PAD"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPSender   string `env:"SMTP_SENDER"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения из окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envCfg := *cfg

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret key for session cookies")
	flag.StringVar(&cfg.AppName, "n", "Takeout MS", "application name used in emails")
	flag.StringVar(&cfg.AppBaseURL, "b", "", "base URL for password reset links")
	flag.StringVar(&cfg.DocPrefix, "p", "INV", "document number prefix")
	flag.IntVar(&cfg.DocPad, "w", 4, "document number zero padding width")
	flag.StringVar(&cfg.SMTPHost, "smtp-host", "", "SMTP relay host")
	flag.IntVar(&cfg.SMTPPort, "smtp-port", 587, "SMTP relay port")
	flag.StringVar(&cfg.SMTPUsername, "smtp-user", "", "SMTP username")
	flag.StringVar(&cfg.SMTPPassword, "smtp-pass", "", "SMTP password")
	flag.StringVar(&cfg.SMTPSender, "smtp-sender", "", "SMTP sender address")

	flag.Parse()

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.DatabaseURI != "" {
		cfg.DatabaseURI = envCfg.DatabaseURI
	}
	if envCfg.AuthSecret != "" {
		cfg.AuthSecret = envCfg.AuthSecret
	}
	if envCfg.AppName != "" {
		cfg.AppName = envCfg.AppName
	}
	if envCfg.AppBaseURL != "" {
		cfg.AppBaseURL = envCfg.AppBaseURL
	}
	if envCfg.DocPrefix != "" {
		cfg.DocPrefix = envCfg.DocPrefix
	}
	if envCfg.DocPad != 0 {
		cfg.DocPad = envCfg.DocPad
	}
	if envCfg.SMTPHost != "" {
		cfg.SMTPHost = envCfg.SMTPHost
	}
	if envCfg.SMTPPort != 0 {
		cfg.SMTPPort = envCfg.SMTPPort
	}
	if envCfg.SMTPUsername != "" {
		cfg.SMTPUsername = envCfg.SMTPUsername
	}
	if envCfg.SMTPPassword != "" {
		cfg.SMTPPassword = envCfg.SMTPPassword
	}
	if envCfg.SMTPSender != "" {
		cfg.SMTPSender = envCfg.SMTPSender
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.SMTPSender == "" {
		cfg.SMTPSender = cfg.SMTPUsername
	}

	return cfg, nil
}
