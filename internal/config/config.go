package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	LogLevel                  string
	JWTSecret                 string
	JWTRefreshSecret          string
	Database                  DatabaseConfig
	Payment                   PaymentConfig
	SMTP                      SMTPConfig
	Sweep                     SweepConfig
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	DefaultConsultationFee    float64
	AppURL                    string
	FrontendURL               string
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// PaymentConfig holds the payment gateway integration settings. SecretKey
// signs outbound forms and verifies callbacks.
type PaymentConfig struct {
	FormURL     string
	ProductCode string
	SecretKey   string
	SuccessURL  string
	FailureURL  string
}

// SMTPConfig holds email transport settings. An empty Host disables email.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether enough is configured to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

// SweepConfig controls the stale-appointment sweep.
type SweepConfig struct {
	Interval    time.Duration
	MissedGrace time.Duration
	ApprovalTTL time.Duration
	Location    *time.Location
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Driver:   strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "clinic"),
	}

	// Build DSN (Data Source Name) for MySQL connection
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	appURL := getEnv("APP_URL", "http://localhost:3001")
	frontendURL := getEnv("FRONTEND_URL", "http://localhost:4200")

	paymentConfig := PaymentConfig{
		FormURL:     getEnv("PAYMENT_FORM_URL", "https://rc-epay.esewa.com.np/api/epay/main/v2/form"),
		ProductCode: getEnv("PAYMENT_PRODUCT_CODE", "EPAYTEST"),
		SecretKey:   getEnv("PAYMENT_SECRET_KEY", ""),
		SuccessURL:  getEnv("PAYMENT_SUCCESS_URL", appURL+"/api/v1/payments/callback"),
		FailureURL:  getEnv("PAYMENT_FAILURE_URL", appURL+"/api/v1/payments/callback"),
	}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	smtpConfig := SMTPConfig{
		Host:     getEnv("SMTP_HOST", ""),
		Port:     smtpPort,
		Username: getEnv("SMTP_USERNAME", ""),
		Password: getEnv("SMTP_PASSWORD", ""),
		From:     getEnv("SMTP_FROM", ""),
	}

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	jwtRefreshExpHours, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168")) // 7 days
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %w", err)
	}

	fee, err := strconv.ParseFloat(getEnv("DEFAULT_CONSULTATION_FEE", "500"), 64)
	if err != nil || fee <= 0 {
		return nil, fmt.Errorf("invalid DEFAULT_CONSULTATION_FEE: %q", getEnv("DEFAULT_CONSULTATION_FEE", ""))
	}

	sweep, err := loadSweep()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                      getEnv("PORT", "3001"),
		Origin:                    getEnv("ORIGIN", frontendURL),
		Environment:               getEnv("APP_ENV", "development"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		JWTSecret:                 getEnv("JWT_SECRET", ""),
		JWTRefreshSecret:          getEnv("JWT_REFRESH_SECRET", ""),
		Database:                  dbConfig,
		Payment:                   paymentConfig,
		SMTP:                      smtpConfig,
		Sweep:                     sweep,
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
		DefaultConsultationFee:    fee,
		AppURL:                    appURL,
		FrontendURL:               frontendURL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadSweep() (SweepConfig, error) {
	intervalMinutes, err := strconv.Atoi(getEnv("SWEEP_INTERVAL_MINUTES", "0"))
	if err != nil {
		return SweepConfig{}, fmt.Errorf("invalid SWEEP_INTERVAL_MINUTES: %w", err)
	}
	graceMinutes, err := strconv.Atoi(getEnv("MISSED_GRACE_MINUTES", "60"))
	if err != nil {
		return SweepConfig{}, fmt.Errorf("invalid MISSED_GRACE_MINUTES: %w", err)
	}
	ttlHours, err := strconv.Atoi(getEnv("APPROVAL_TTL_HOURS", "168"))
	if err != nil {
		return SweepConfig{}, fmt.Errorf("invalid APPROVAL_TTL_HOURS: %w", err)
	}
	loc, err := time.LoadLocation(getEnv("CLINIC_TIMEZONE", "Local"))
	if err != nil {
		return SweepConfig{}, fmt.Errorf("invalid CLINIC_TIMEZONE: %w", err)
	}
	return SweepConfig{
		Interval:    time.Duration(intervalMinutes) * time.Minute,
		MissedGrace: time.Duration(graceMinutes) * time.Minute,
		ApprovalTTL: time.Duration(ttlHours) * time.Hour,
		Location:    loc,
	}, nil
}

// Validate rejects configurations that must not reach production. Secrets
// have no built-in defaults outside development.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Driver != "mysql" && c.Database.Driver != "memory" {
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver))
	}
	if c.Environment == "development" {
		if c.JWTSecret == "" {
			c.JWTSecret = "dev_jwt_secret"
		}
		if c.JWTRefreshSecret == "" {
			c.JWTRefreshSecret = "dev_refresh_secret"
		}
		if c.Payment.SecretKey == "" {
			c.Payment.SecretKey = "dev_payment_secret"
		}
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWTRefreshSecret == "" {
		errs = append(errs, errors.New("JWT_REFRESH_SECRET is required"))
	}
	if c.Payment.SecretKey == "" {
		errs = append(errs, errors.New("PAYMENT_SECRET_KEY is required"))
	}
	return errors.Join(errs...)
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
