// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Timezone must resolve on minimal images.

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Port         string         `yaml:"port"`
	GRPCPort     string         `yaml:"grpc_port"`
	AppName      string         `yaml:"app_name"`
	FrontendURL  string         `yaml:"frontend_url"`
	Timezone     string         `yaml:"timezone"`
	LogLevel     string         `yaml:"log_level"`
	InspectToken string         `yaml:"inspect_token"`
	Store        StoreConfig    `yaml:"store"`
	Lookup       LookupConfig   `yaml:"lookup"`
	Delivery     DeliveryConfig `yaml:"delivery"`
	Alert        AlertConfig    `yaml:"alert"`
	Dedup        DedupConfig    `yaml:"dedup"`
	Timeout      TimeoutConfig  `yaml:"timeout"`
}

// StoreConfig selects the session store.
type StoreConfig struct {
	Driver      string `yaml:"driver"` // "sqlite" or "postgres"
	DBPath      string `yaml:"db_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// LookupConfig points at the job lookup service.
type LookupConfig struct {
	URL      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout"`
	PageSize int           `yaml:"page_size"`
}

// DeliveryConfig holds the channel credentials. With no credentials replies
// are only logged.
type DeliveryConfig struct {
	GraphURL              string        `yaml:"graph_url"`
	WhatsAppToken         string        `yaml:"whatsapp_token"`
	WhatsAppPhoneNumberID string        `yaml:"whatsapp_phone_number_id"`
	MessengerToken        string        `yaml:"messenger_token"`
	Timeout               time.Duration `yaml:"timeout"`
}

// AlertConfig points undelivered-reply alerts at a Telegram chat. Alerts are
// off unless both the bot token and the chat id are set.
type AlertConfig struct {
	TelegramURL string `yaml:"telegram_url"`
	BotToken    string `yaml:"bot_token"`
	ChatID      string `yaml:"chat_id"`
}

// DedupConfig sizes the inbound message deduper.
type DedupConfig struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

// TimeoutConfig holds server timeouts.
type TimeoutConfig struct {
	HealthCheck    time.Duration `yaml:"health_check"`
	HealthInterval time.Duration `yaml:"health_interval"`
	Shutdown       time.Duration `yaml:"shutdown"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Port:     "8080",
		GRPCPort: "9090",
		AppName:  "Jobs Support",
		Timezone: "America/Mexico_City",
		LogLevel: "info",
		Store: StoreConfig{
			Driver: "sqlite",
			DBPath: "./data/sessions.db",
		},
		Lookup: LookupConfig{
			URL:      "http://localhost:8000",
			Timeout:  5 * time.Second,
			PageSize: 10,
		},
		Delivery: DeliveryConfig{
			GraphURL: "https://graph.facebook.com/v21.0",
			Timeout:  10 * time.Second,
		},
		Alert: AlertConfig{
			TelegramURL: "https://api.telegram.org",
		},
		Dedup: DedupConfig{
			Size: 2048,
			TTL:  10 * time.Minute,
		},
		Timeout: TimeoutConfig{
			HealthCheck:    5 * time.Second,
			HealthInterval: 15 * time.Second,
			Shutdown:       10 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE, and environment variables, in increasing precedence.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.GRPCPort = getEnv("GRPC_PORT", c.GRPCPort)
	c.AppName = getEnv("APP_NAME", c.AppName)
	c.FrontendURL = getEnv("FRONTEND_URL", c.FrontendURL)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.InspectToken = getEnv("INSPECT_TOKEN", c.InspectToken)

	c.Store.Driver = getEnv("DB_DRIVER", c.Store.Driver)
	c.Store.DBPath = getEnv("DB_PATH", c.Store.DBPath)
	c.Store.PostgresDSN = getEnv("POSTGRES_DSN", c.Store.PostgresDSN)

	c.Lookup.URL = getEnv("LOOKUP_URL", c.Lookup.URL)
	c.Lookup.Timeout = getEnvDuration("LOOKUP_TIMEOUT", c.Lookup.Timeout)
	c.Lookup.PageSize = getEnvInt("LOOKUP_PAGE_SIZE", c.Lookup.PageSize)

	c.Delivery.GraphURL = getEnv("GRAPH_API_URL", c.Delivery.GraphURL)
	c.Delivery.WhatsAppToken = getEnv("WHATSAPP_TOKEN", c.Delivery.WhatsAppToken)
	c.Delivery.WhatsAppPhoneNumberID = getEnv("WHATSAPP_PHONE_NUMBER_ID", c.Delivery.WhatsAppPhoneNumberID)
	c.Delivery.MessengerToken = getEnv("MESSENGER_PAGE_TOKEN", c.Delivery.MessengerToken)
	c.Delivery.Timeout = getEnvDuration("DELIVERY_TIMEOUT", c.Delivery.Timeout)

	c.Alert.TelegramURL = getEnv("TELEGRAM_API_URL", c.Alert.TelegramURL)
	c.Alert.BotToken = getEnv("TELEGRAM_BOT_TOKEN", c.Alert.BotToken)
	c.Alert.ChatID = getEnv("TELEGRAM_ERROR_CHAT_ID", c.Alert.ChatID)

	c.Dedup.Size = getEnvInt("DEDUP_CACHE_SIZE", c.Dedup.Size)
	c.Dedup.TTL = getEnvDuration("DEDUP_TTL", c.Dedup.TTL)

	c.Timeout.HealthCheck = getEnvDuration("HEALTH_CHECK_TIMEOUT", c.Timeout.HealthCheck)
	c.Timeout.HealthInterval = getEnvDuration("HEALTH_CHECK_INTERVAL", c.Timeout.HealthInterval)
	c.Timeout.Shutdown = getEnvDuration("SHUTDOWN_TIMEOUT", c.Timeout.Shutdown)
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	if c.AppName == "" {
		return errors.New("APP_NAME cannot be empty")
	}
	if c.Lookup.URL == "" {
		return errors.New("LOOKUP_URL cannot be empty")
	}
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.DBPath == "" {
			return errors.New("DB_PATH cannot be empty")
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER %q is not supported", c.Store.Driver)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.Lookup.Timeout <= 0 || c.Delivery.Timeout <= 0 {
		return errors.New("LOOKUP_TIMEOUT and DELIVERY_TIMEOUT must be > 0")
	}
	if c.Dedup.Size <= 0 {
		return errors.New("DEDUP_CACHE_SIZE must be > 0")
	}
	if c.Delivery.WhatsAppToken != "" && c.Delivery.WhatsAppPhoneNumberID == "" {
		return errors.New("WHATSAPP_PHONE_NUMBER_ID is required with WHATSAPP_TOKEN")
	}
	if (c.Alert.BotToken == "") != (c.Alert.ChatID == "") {
		return errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_ERROR_CHAT_ID must be set together")
	}
	return nil
}

// Location returns the configured timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StoreDSN returns the data source for the configured driver.
func (c *Config) StoreDSN() string {
	if c.Store.Driver == "postgres" {
		return c.Store.PostgresDSN
	}
	return c.Store.DBPath
}

// DeliveryEnabled reports whether any channel has credentials.
func (c *Config) DeliveryEnabled() bool {
	return c.Delivery.WhatsAppToken != "" || c.Delivery.MessengerToken != ""
}

// AlertsEnabled reports whether delivery failures are reported to Telegram.
func (c *Config) AlertsEnabled() bool {
	return c.Alert.BotToken != "" && c.Alert.ChatID != ""
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
