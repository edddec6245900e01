package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Address            string        `env:"RUN_ADDRESS" envDefault:"localhost:8080"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"INFO"`
	DatabaseConnection string        `env:"DATABASE_URI"`
	SQLitePath         string        `env:"SQLITE_PATH" envDefault:"linkcard.db"`
	RedisAddr          string        `env:"REDIS_ADDR"`
	AMQPURL            string        `env:"AMQP_URL"`
	AdminPIN           string        `env:"ADMIN_PIN"`
	ModeratorPIN       string        `env:"MODERATOR_PIN"`
	SessionSecret      string        `env:"SESSION_SECRET"`
	SessionTTL         time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	CookieSecure       bool          `env:"COOKIE_SECURE" envDefault:"true"`
	OTPTTL             time.Duration `env:"OTP_TTL" envDefault:"10m"`
	OTPMaxAttempts     int           `env:"OTP_MAX_ATTEMPTS" envDefault:"0"`
	OTPCodeLength      int           `env:"OTP_CODE_LENGTH" envDefault:"6"`
	OTPBypassEnabled   bool          `env:"OTP_BYPASS_ENABLED" envDefault:"true"`
	OTPExposeCode      bool          `env:"OTP_EXPOSE_CODE" envDefault:"false"`
	StrictTransitions  bool          `env:"STRICT_TRANSITIONS" envDefault:"false"`
	RequireVerified    bool          `env:"REQUIRE_VERIFIED_MOBILE" envDefault:"false"`
}

func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	address := flag.String("a", cfg.Address, "{Host:port} for server")
	loglevel := flag.String("l", cfg.LogLevel, "Log level for server")
	databaseConnection := flag.String("d", cfg.DatabaseConnection, "Postgres connection string")
	sqlitePath := flag.String("s", cfg.SQLitePath, "SQLite file used when no Postgres DSN is set")
	redisAddr := flag.String("r", cfg.RedisAddr, "Redis address for OTP and session state")
	amqpURL := flag.String("q", cfg.AMQPURL, "RabbitMQ URL for notifications")
	sessionTTL := flag.Duration("t", cfg.SessionTTL, "TTL for admin session (e.g. 24h; 30m)")
	otpTTL := flag.Duration("o", cfg.OTPTTL, "Validity of an issued OTP")
	strict := flag.Bool("strict", cfg.StrictTransitions, "Only allow forward order status transitions")

	flag.Parse()

	cfg.Address = *address
	cfg.LogLevel = *loglevel
	cfg.DatabaseConnection = *databaseConnection
	cfg.SQLitePath = *sqlitePath
	cfg.RedisAddr = *redisAddr
	cfg.AMQPURL = *amqpURL
	cfg.SessionTTL = *sessionTTL
	cfg.OTPTTL = *otpTTL
	cfg.StrictTransitions = *strict

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.AdminPIN == "" {
		return fmt.Errorf("ENV ADMIN_PIN must be set")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("ENV SESSION_SECRET must be set")
	}
	if c.ModeratorPIN != "" && c.ModeratorPIN == c.AdminPIN {
		return fmt.Errorf("MODERATOR_PIN must differ from ADMIN_PIN")
	}
	if c.OTPMaxAttempts < 0 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must not be negative")
	}
	if c.OTPCodeLength < 4 || c.OTPCodeLength > 10 {
		return fmt.Errorf("OTP_CODE_LENGTH must be between 4 and 10")
	}
	return nil
}
