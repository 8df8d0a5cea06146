// Package config loads service configuration from the environment and the embedded store profile.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the typed service configuration.
type Config struct {
	Port        string `mapstructure:"PORT"`
	Environment string `mapstructure:"ENVIRONMENT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	UseMemoryStore         bool   `mapstructure:"USE_MEMORY_STORE"`
	DatabaseURL            string `mapstructure:"DATABASE_URL"`
	DBHost                 string `mapstructure:"DB_HOST"`
	DBPort                 string `mapstructure:"DB_PORT"`
	DBUser                 string `mapstructure:"DB_USER"`
	DBPass                 string `mapstructure:"DB_PASS"`
	DBName                 string `mapstructure:"DB_NAME"`
	InstanceConnectionName string `mapstructure:"INSTANCE_CONNECTION_NAME"`
	AutoMigrate            bool   `mapstructure:"AUTO_MIGRATE"`

	SessionTimeoutMin   int           `mapstructure:"SESSION_TIMEOUT_MIN"`
	ExpirySweepInterval time.Duration `mapstructure:"EXPIRY_SWEEP_INTERVAL"`
	ConfirmationPrefix  string        `mapstructure:"CONFIRMATION_PREFIX"`

	OpenAIAPIKey          string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL         string        `mapstructure:"OPENAI_BASE_URL"`
	OpenAIModel           string        `mapstructure:"OPENAI_MODEL"`
	OpenAIClassifierModel string        `mapstructure:"OPENAI_CLASSIFIER_MODEL"`
	OpenAITimeout         time.Duration `mapstructure:"OPENAI_TIMEOUT"`
	OpenAIMaxRetries      int           `mapstructure:"OPENAI_MAX_RETRIES"`
	PromptFile            string        `mapstructure:"PROMPT_FILE"`

	TwilioAccountSID   string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken    string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioWhatsAppFrom string `mapstructure:"TWILIO_WHATSAPP_FROM"`

	MetaAccessToken   string `mapstructure:"META_ACCESS_TOKEN"`
	MetaPhoneNumberID string `mapstructure:"META_PHONE_NUMBER_ID"`
	MetaAppSecret     string `mapstructure:"META_APP_SECRET"`
	MetaVerifyToken   string `mapstructure:"META_VERIFY_TOKEN"`
	MetaGraphVersion  string `mapstructure:"META_GRAPH_VERSION"`

	HubSpotToken      string  `mapstructure:"HUBSPOT_TOKEN"`
	HubSpotRatePerSec float64 `mapstructure:"HUBSPOT_RATE_PER_SEC"`

	WooBaseURL        string `mapstructure:"WOO_BASE_URL"`
	WooConsumerKey    string `mapstructure:"WOO_CONSUMER_KEY"`
	WooConsumerSecret string `mapstructure:"WOO_CONSUMER_SECRET"`

	AlertWhatsApp string `mapstructure:"ALERT_WHATSAPP"`
	BankAccounts  string `mapstructure:"BANK_ACCOUNTS"`
	PayULink      string `mapstructure:"PAYU_LINK"`

	AdminToken               string `mapstructure:"ADMIN_TOKEN"`
	DisableWebhookValidation bool   `mapstructure:"DISABLE_WEBHOOK_VALIDATION"`
}

const defaultBankAccounts = "- Bancolombia: Cuenta Corriente No. 27480228756\n- Davivienda: Cuenta Corriente No. 037169997501"

var defaults = map[string]interface{}{
	"PORT":                       "8080",
	"ENVIRONMENT":                "development",
	"LOG_LEVEL":                  "info",
	"USE_MEMORY_STORE":           false,
	"DATABASE_URL":               "",
	"DB_HOST":                    "localhost",
	"DB_PORT":                    "5432",
	"DB_USER":                    "postgres",
	"DB_PASS":                    "",
	"DB_NAME":                    "cassany",
	"INSTANCE_CONNECTION_NAME":   "",
	"AUTO_MIGRATE":               true,
	"SESSION_TIMEOUT_MIN":        60,
	"EXPIRY_SWEEP_INTERVAL":      "10m",
	"CONFIRMATION_PREFIX":        "CAS",
	"OPENAI_API_KEY":             "",
	"OPENAI_BASE_URL":            "",
	"OPENAI_MODEL":               "gpt-4o",
	"OPENAI_CLASSIFIER_MODEL":    "gpt-4o-mini",
	"OPENAI_TIMEOUT":             "30s",
	"OPENAI_MAX_RETRIES":         2,
	"PROMPT_FILE":                "",
	"TWILIO_ACCOUNT_SID":         "",
	"TWILIO_AUTH_TOKEN":          "",
	"TWILIO_WHATSAPP_FROM":       "",
	"META_ACCESS_TOKEN":          "",
	"META_PHONE_NUMBER_ID":       "",
	"META_APP_SECRET":            "",
	"META_VERIFY_TOKEN":          "",
	"META_GRAPH_VERSION":         "v20.0",
	"HUBSPOT_TOKEN":              "",
	"HUBSPOT_RATE_PER_SEC":       5.0,
	"WOO_BASE_URL":               "",
	"WOO_CONSUMER_KEY":           "",
	"WOO_CONSUMER_SECRET":        "",
	"ALERT_WHATSAPP":             "",
	"BANK_ACCOUNTS":              defaultBankAccounts,
	"PAYU_LINK":                  "",
	"ADMIN_TOKEN":                "",
	"DISABLE_WEBHOOK_VALIDATION": false,
}

// LoadDotEnv loads .env for local development, falling back to environments/.env.development.
// It reports whether a file was found.
func LoadDotEnv() bool {
	if err := godotenv.Load(".env"); err == nil {
		return true
	}
	return godotenv.Load("environments/.env.development") == nil
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would make the service misbehave.
func (c *Config) Validate() error {
	if c.SessionTimeoutMin < 1 {
		return fmt.Errorf("SESSION_TIMEOUT_MIN must be at least 1, got %d", c.SessionTimeoutMin)
	}
	if c.OpenAIMaxRetries < 0 {
		return fmt.Errorf("OPENAI_MAX_RETRIES must not be negative")
	}
	if c.ConfirmationPrefix == "" {
		return fmt.Errorf("CONFIRMATION_PREFIX must not be empty")
	}
	return nil
}

// SessionTimeout is the idle window after which a session is reset.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMin) * time.Minute
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// TwilioConfigured reports whether outbound Twilio messages can be sent.
func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsAppFrom != ""
}

// MetaConfigured reports whether outbound WhatsApp Cloud API messages can be sent.
func (c *Config) MetaConfigured() bool {
	return c.MetaAccessToken != "" && c.MetaPhoneNumberID != ""
}
