package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/minilos/origination-engine/pkg/utils"
)

// Config holds all configuration for our application
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Verification VerificationConfig `mapstructure:"verification"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Business     BusinessConfig     `mapstructure:"business"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	URL          string `mapstructure:"DATABASE_URL"`
	MaxOpenConns int    `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns int    `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
}

type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type VerificationConfig struct {
	// Provider selects the collaborator implementations at wiring time.
	// Only "mock" ships today; a remote client slots in here later.
	Provider string `mapstructure:"VERIFICATION_PROVIDER"`
}

type SchedulerConfig struct {
	// RecoverySpec is a cron expression (with seconds) for the
	// stuck-pending recovery sweep.
	RecoverySpec string `mapstructure:"SCHEDULER_RECOVERY_SPEC"`
	// PendingRecoveryAfter is how long an application may sit in a pending
	// state before the sweep reverts it.
	PendingRecoveryAfter time.Duration `mapstructure:"PENDING_RECOVERY_AFTER"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	MinIdentityScore        int           `mapstructure:"MIN_IDENTITY_SCORE"`
	MinCreditScore          int           `mapstructure:"MIN_CREDIT_SCORE"`
	MaxActiveLoans          int           `mapstructure:"MAX_ACTIVE_LOANS"`
	MaxApplications         int           `mapstructure:"MAX_APPLICATIONS_PER_APPLICANT"`
	MaxLoanIncomeMultiplier string        `mapstructure:"MAX_LOAN_INCOME_MULTIPLIER"`
	MinAge                  int           `mapstructure:"MIN_AGE"`
	BaseAnnualRate          string        `mapstructure:"BASE_ANNUAL_RATE"`
	TenureMonths            int           `mapstructure:"TENURE_MONTHS"`
	HistoryCacheTTL         time.Duration `mapstructure:"HISTORY_CACHE_TTL"`
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("SERVER_READ_TIMEOUT", "15s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("VERIFICATION_PROVIDER", "mock")
	viper.SetDefault("SCHEDULER_RECOVERY_SPEC", "0 */10 * * * *")
	viper.SetDefault("PENDING_RECOVERY_AFTER", "15m")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("MIN_IDENTITY_SCORE", 80)
	viper.SetDefault("MIN_CREDIT_SCORE", 650)
	viper.SetDefault("MAX_ACTIVE_LOANS", 5)
	viper.SetDefault("MAX_APPLICATIONS_PER_APPLICANT", 5)
	viper.SetDefault("MAX_LOAN_INCOME_MULTIPLIER", "20")
	viper.SetDefault("MIN_AGE", 21)
	viper.SetDefault("BASE_ANNUAL_RATE", "0.12")
	viper.SetDefault("TENURE_MONTHS", 36)
	viper.SetDefault("HISTORY_CACHE_TTL", "10m")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read from .env file (optional)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = viper.ReadInConfig()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Verification.Provider != "mock" {
		return fmt.Errorf("unsupported VERIFICATION_PROVIDER %q", c.Verification.Provider)
	}

	if c.Business.MinIdentityScore <= 0 || c.Business.MinIdentityScore > 100 {
		return fmt.Errorf("MIN_IDENTITY_SCORE must be in 1..100")
	}

	if c.Business.MaxApplications <= 0 {
		return fmt.Errorf("MAX_APPLICATIONS_PER_APPLICANT must be greater than 0")
	}

	if c.Business.TenureMonths <= 0 {
		return fmt.Errorf("TENURE_MONTHS must be greater than 0")
	}

	if _, err := utils.DecimalFromString(c.Business.BaseAnnualRate); err != nil {
		return fmt.Errorf("BASE_ANNUAL_RATE must be a valid decimal: %w", err)
	}

	if _, err := utils.DecimalFromString(c.Business.MaxLoanIncomeMultiplier); err != nil {
		return fmt.Errorf("MAX_LOAN_INCOME_MULTIPLIER must be a valid decimal: %w", err)
	}

	if c.Scheduler.PendingRecoveryAfter <= 0 {
		return fmt.Errorf("PENDING_RECOVERY_AFTER must be a positive duration")
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// GetBaseAnnualRate returns the base annual interest rate as decimal
func (c *Config) GetBaseAnnualRate() decimal.Decimal {
	rate, _ := utils.DecimalFromString(c.Business.BaseAnnualRate)
	return rate
}

// GetMaxLoanIncomeMultiplier returns the loan ceiling multiplier as decimal
func (c *Config) GetMaxLoanIncomeMultiplier() decimal.Decimal {
	m, _ := utils.DecimalFromString(c.Business.MaxLoanIncomeMultiplier)
	return m
}
