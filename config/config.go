package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arhamfareed106/medusa-payment-backend/mailbox"
	"github.com/arhamfareed106/medusa-payment-backend/pricing"
	"github.com/arhamfareed106/medusa-payment-backend/reconcile"
)

type Config struct {
	Port   string
	AppEnv string

	Database  DatabaseConfig
	IMAP      mailbox.Config
	Reconcile ReconcileConfig
	Pricing   PricingConfig
	Events    EventsConfig
}

type DatabaseConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

type ReconcileConfig struct {
	JobName      string
	Schedule     string
	PhaseTimeout time.Duration
	Tolerance    decimal.Decimal
}

type PricingConfig struct {
	CODFee                      decimal.Decimal
	BankTransferDiscountPercent decimal.Decimal
	Currency                    string
}

type EventsConfig struct {
	PaymentTopicARN string
}

// LoadConfig reads the process environment. Call godotenv.Load first if a
// .env file should be honoured.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "development"),
		Database: DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
			Port:     getEnv("DB_PORT", "5432"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		IMAP: mailbox.Config{
			Host:     getEnv("IMAP_HOST", mailbox.DefaultHost),
			User:     os.Getenv("IMAP_USER"),
			Password: os.Getenv("IMAP_PASSWORD"),
			Mailbox:  getEnv("IMAP_MAILBOX", mailbox.DefaultMailbox),
		},
		Reconcile: ReconcileConfig{
			JobName:  getEnv("RECONCILE_JOB_NAME", reconcile.DefaultJobName),
			Schedule: getEnv("RECONCILE_SCHEDULE", reconcile.DefaultSchedule),
		},
		Pricing: PricingConfig{
			Currency: getEnv("AMOUNT_CURRENCY", mailbox.DefaultCurrency),
		},
		Events: EventsConfig{
			PaymentTopicARN: os.Getenv("PAYMENT_EVENTS_TOPIC_ARN"),
		},
	}

	if cfg.Database.Host == "" || cfg.Database.User == "" || cfg.Database.Name == "" {
		return nil, fmt.Errorf("missing required environment variables: DB_HOST, DB_USER, DB_NAME")
	}

	var err error
	if cfg.IMAP.Port, err = getEnvInt("IMAP_PORT", mailbox.DefaultPort); err != nil {
		return nil, err
	}
	if cfg.IMAP.InsecureSkipVerify, err = getEnvBool("IMAP_INSECURE_SKIP_VERIFY", true); err != nil {
		return nil, err
	}
	if cfg.Reconcile.PhaseTimeout, err = getEnvDuration("RECONCILE_PHASE_TIMEOUT", reconcile.DefaultPhaseTimeout); err != nil {
		return nil, err
	}
	if cfg.Reconcile.Tolerance, err = getEnvDecimal("RECONCILE_TOLERANCE", reconcile.DefaultTolerance); err != nil {
		return nil, err
	}
	if cfg.Pricing.CODFee, err = getEnvDecimal("COD_FEE", decimal.NewFromInt(pricing.DefaultCODFee)); err != nil {
		return nil, err
	}
	if cfg.Pricing.BankTransferDiscountPercent, err = getEnvDecimal("BANK_TRANSFER_DISCOUNT_PERCENT", decimal.NewFromInt(pricing.DefaultBankTransferDiscountPercent)); err != nil {
		return nil, err
	}
	if !cfg.Reconcile.Tolerance.IsPositive() {
		return nil, fmt.Errorf("RECONCILE_TOLERANCE must be positive, got %s", cfg.Reconcile.Tolerance)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return d, nil
}

func getEnvDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return d, nil
}
