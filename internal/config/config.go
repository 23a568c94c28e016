package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"prokat/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Logging    LoggingConfig    `yaml:"logging"`
	Storage    StorageConfig    `yaml:"storage"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Access     AccessConfig     `yaml:"access"`
	Menu       MenuConfig       `yaml:"menu"`
	Redis      RedisConfig      `yaml:"redis"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Backup     BackupConfig     `yaml:"backup"`
	Google     GoogleConfig     `yaml:"google"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type StorageConfig struct {
	JSONPath   string `yaml:"json_path"`
	CSVPath    string `yaml:"csv_path"`
	XLSXPath   string `yaml:"xlsx_path"`
	SQLitePath string `yaml:"sqlite_path"`
}

type CatalogConfig struct {
	SeedPath         string `yaml:"seed_path"`
	NotifyDaysBefore int    `yaml:"notify_days_before"`
}

// AccessConfig bootstraps the credential registries. Without at least one
// admin nobody can reach the admin-only actions.
type AccessConfig struct {
	Users  []models.Credential `yaml:"users"`
	Admins []models.Credential `yaml:"admins"`
}

type MenuConfig struct {
	StateTTL          int `yaml:"state_ttl"`
	RateLimitMessages int `yaml:"rate_limit_messages"`
	RateLimitWindow   int `yaml:"rate_limit_window"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type GoogleConfig struct {
	CredentialsFile      string `yaml:"credentials_file"`
	CatalogSpreadsheetID string `yaml:"catalog_spreadsheet_id"`
	SheetName            string `yaml:"sheet_name"`
}

// SheetsEnabled reports whether the catalog mirror has what it needs.
func (g GoogleConfig) SheetsEnabled() bool {
	return g.CredentialsFile != "" && g.CatalogSpreadsheetID != ""
}

func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) Validate() error {
	if strings.EqualFold(strings.TrimSpace(c.Logging.Output), "file") && c.Logging.FilePath == "" {
		return errors.New("logging.output=file requires logging.file_path")
	}

	if c.Catalog.NotifyDaysBefore < 0 {
		return errors.New("catalog.notify_days_before must not be negative")
	}

	if c.API.RateLimit.RPS < 0 {
		return errors.New("api.rate_limit.rps must not be negative")
	}

	if c.Backup.Enabled && c.Backup.StoragePath == "" {
		return errors.New("backup.storage_path is required when backup is enabled")
	}

	if (c.Google.CredentialsFile == "") != (c.Google.CatalogSpreadsheetID == "") {
		return errors.New("google.credentials_file and google.catalog_spreadsheet_id must be set together")
	}

	return ValidateCredentials(c.Access)
}

// ValidateCredentials rejects entries that can never authenticate.
// Duplicate usernames are allowed.
func ValidateCredentials(access AccessConfig) error {
	for _, list := range [][]models.Credential{access.Users, access.Admins} {
		for i, cred := range list {
			if cred.Username == "" {
				return fmt.Errorf("access entry %d has empty username", i)
			}
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "prokat"
	}

	if c.Storage.JSONPath == "" {
		c.Storage.JSONPath = models.DefaultJSONPath
	}
	if c.Storage.CSVPath == "" {
		c.Storage.CSVPath = models.DefaultCSVPath
	}
	if c.Storage.XLSXPath == "" {
		c.Storage.XLSXPath = models.DefaultXLSXPath
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = models.DefaultSQLitePath
	}

	if c.Catalog.NotifyDaysBefore == 0 {
		c.Catalog.NotifyDaysBefore = models.DefaultNotifyDaysBefore
	}

	if c.Menu.StateTTL == 0 {
		c.Menu.StateTTL = models.DefaultStateTTL
	}
	if c.Menu.RateLimitMessages == 0 {
		c.Menu.RateLimitMessages = models.RateLimitMessages
	}
	if c.Menu.RateLimitWindow == 0 {
		c.Menu.RateLimitWindow = models.RateLimitWindow
	}

	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "24h"
	}

	if c.Google.SheetName == "" {
		c.Google.SheetName = models.DefaultSheetName
	}
}
