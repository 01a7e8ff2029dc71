package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. VR_DATABASE_HOST
const EnvPrefix = "VR"

// Config represents the application configuration
type Config struct {
	Database     DatabaseConfig     `yaml:"database" mapstructure:"database"`
	Dbt          DbtConfig          `yaml:"dbt" mapstructure:"dbt"`
	Soda         SodaConfig         `yaml:"soda" mapstructure:"soda"`
	Scanner      ScannerConfig      `yaml:"scanner" mapstructure:"scanner"`
	Notification NotificationConfig `yaml:"notification" mapstructure:"notification"`
	Metrics      MetricsConfig      `yaml:"metrics" mapstructure:"metrics"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"`
	Path     string `yaml:"path" mapstructure:"path"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Name     string `yaml:"name" mapstructure:"name"`
	Schema   string `yaml:"schema" mapstructure:"schema"`
	SSLMode  string `yaml:"ssl_mode" mapstructure:"ssl_mode"`
}

// DbtConfig represents the transformation tool settings
type DbtConfig struct {
	Enabled        bool     `yaml:"enabled" mapstructure:"enabled"`
	Path           string   `yaml:"path" mapstructure:"path"`
	ProjectDir     string   `yaml:"project_dir" mapstructure:"project_dir"`
	Steps          []string `yaml:"steps" mapstructure:"steps"`
	RunResultsPath string   `yaml:"run_results_path" mapstructure:"run_results_path"`
}

// SodaConfig represents the data-quality scanner settings
type SodaConfig struct {
	Enabled           bool     `yaml:"enabled" mapstructure:"enabled"`
	Path              string   `yaml:"path" mapstructure:"path"`
	ProjectDir        string   `yaml:"project_dir" mapstructure:"project_dir"`
	DataSource        string   `yaml:"data_source" mapstructure:"data_source"`
	ConfigurationFile string   `yaml:"configuration_file" mapstructure:"configuration_file"`
	CheckFiles        []string `yaml:"check_files" mapstructure:"check_files"`
}

// ScannerConfig holds settings shared by both tool runners
type ScannerConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	TempDir        string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// NotificationConfig represents notification transports
type NotificationConfig struct {
	Email EmailConfig `yaml:"email" mapstructure:"email"`
	Slack SlackConfig `yaml:"slack" mapstructure:"slack"`
}

// EmailConfig represents SMTP settings
type EmailConfig struct {
	SMTPServer     string   `yaml:"smtp_server" mapstructure:"smtp_server"`
	SMTPPort       int      `yaml:"smtp_port" mapstructure:"smtp_port"`
	SenderEmail    string   `yaml:"sender_email" mapstructure:"sender_email"`
	SenderPassword string   `yaml:"sender_password" mapstructure:"sender_password"`
	Recipients     []string `yaml:"recipients" mapstructure:"recipients"`
}

// SlackConfig represents the Slack webhook settings
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
	Username   string `yaml:"username" mapstructure:"username"`
	Channel    string `yaml:"channel" mapstructure:"channel"`
	IconEmoji  string `yaml:"icon_emoji" mapstructure:"icon_emoji"`
}

// MetricsConfig represents Pushgateway settings
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" mapstructure:"pushgateway_url"`
	Job            string `yaml:"job" mapstructure:"job"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
	File   string `yaml:"file" mapstructure:"file"`
}

// legacyEnv maps config keys to the variable names older deployments export
var legacyEnv = map[string]string{
	"database.host":                      "DB_HOST",
	"database.port":                      "DB_PORT",
	"database.username":                  "DB_USER",
	"database.password":                  "DB_PASSWORD",
	"database.name":                      "DB_NAME",
	"database.schema":                    "DB_SCHEMA",
	"notification.email.smtp_server":     "SMTP_SERVER",
	"notification.email.smtp_port":       "SMTP_PORT",
	"notification.email.sender_email":    "SENDER_EMAIL",
	"notification.email.sender_password": "SENDER_PASSWORD",
	"notification.email.recipients":      "RECIPIENT_EMAIL",
}

// GetDSN returns the data source name for the database connection
func (dc *DatabaseConfig) GetDSN() string {
	switch dc.Driver {
	case "sqlite3":
		return dc.Path
	case "mysql":
		cfg := mysql.NewConfig()
		cfg.User = dc.Username
		cfg.Passwd = dc.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
		cfg.DBName = dc.Name
		cfg.ParseTime = true
		return cfg.FormatDSN()
	default:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			pqValue(dc.Host), dc.Port, pqValue(dc.Username), pqValue(dc.Password), pqValue(dc.Name), pqValue(dc.SSLMode))
		if dc.Schema != "" {
			dsn += " search_path=" + pqValue(dc.Schema)
		}
		return dsn
	}
}

// pqValue quotes a key/value connection string value when it needs it
func pqValue(s string) string {
	if s != "" && !strings.ContainsAny(s, ` '\`) {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}

// LoadDotEnv loads variables from .env files without overriding the environment.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from defaults, an optional file, .env and the
// environment, in increasing order of precedence.
func LoadConfig(configPath string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	// Load from file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".validation-recorder")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.AddConfigPath("/etc/validation-recorder")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", legacy, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateAndSetDefaults(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	// Database defaults
	v.SetDefault("database.driver", defaults.Database.Driver)
	v.SetDefault("database.path", defaults.Database.Path)
	v.SetDefault("database.host", defaults.Database.Host)
	v.SetDefault("database.port", defaults.Database.Port)
	v.SetDefault("database.username", defaults.Database.Username)
	v.SetDefault("database.password", defaults.Database.Password)
	v.SetDefault("database.name", defaults.Database.Name)
	v.SetDefault("database.schema", defaults.Database.Schema)
	v.SetDefault("database.ssl_mode", defaults.Database.SSLMode)

	// Tool defaults
	v.SetDefault("dbt.enabled", defaults.Dbt.Enabled)
	v.SetDefault("dbt.path", defaults.Dbt.Path)
	v.SetDefault("dbt.project_dir", defaults.Dbt.ProjectDir)
	v.SetDefault("dbt.steps", defaults.Dbt.Steps)
	v.SetDefault("dbt.run_results_path", defaults.Dbt.RunResultsPath)
	v.SetDefault("soda.enabled", defaults.Soda.Enabled)
	v.SetDefault("soda.path", defaults.Soda.Path)
	v.SetDefault("soda.project_dir", defaults.Soda.ProjectDir)
	v.SetDefault("soda.data_source", defaults.Soda.DataSource)
	v.SetDefault("soda.configuration_file", defaults.Soda.ConfigurationFile)
	v.SetDefault("soda.check_files", defaults.Soda.CheckFiles)
	v.SetDefault("scanner.timeout_seconds", defaults.Scanner.TimeoutSeconds)
	v.SetDefault("scanner.temp_dir", defaults.Scanner.TempDir)

	// Notification defaults
	v.SetDefault("notification.email.smtp_server", defaults.Notification.Email.SMTPServer)
	v.SetDefault("notification.email.smtp_port", defaults.Notification.Email.SMTPPort)
	v.SetDefault("notification.email.sender_email", "")
	v.SetDefault("notification.email.sender_password", "")
	v.SetDefault("notification.email.recipients", []string{})
	v.SetDefault("notification.slack.webhook_url", "")
	v.SetDefault("notification.slack.username", defaults.Notification.Slack.Username)
	v.SetDefault("notification.slack.channel", "")
	v.SetDefault("notification.slack.icon_emoji", defaults.Notification.Slack.IconEmoji)

	// Metrics defaults
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", defaults.Metrics.Job)

	// Logging defaults
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.output", defaults.Logging.Output)
	v.SetDefault("logging.file", "")
}

// validateAndSetDefaults validates configuration and sets computed defaults
func validateAndSetDefaults(config *Config) error {
	// Expand environment variables in paths
	config.Database.Path = os.ExpandEnv(config.Database.Path)
	config.Dbt.ProjectDir = os.ExpandEnv(config.Dbt.ProjectDir)
	config.Soda.ProjectDir = os.ExpandEnv(config.Soda.ProjectDir)
	config.Scanner.TempDir = os.ExpandEnv(config.Scanner.TempDir)

	switch config.Database.Driver {
	case "postgres", "mysql":
	case "sqlite3":
		dbDir := filepath.Dir(config.Database.Path)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	default:
		return fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}

	if config.Scanner.TimeoutSeconds < 0 {
		return fmt.Errorf("scanner.timeout_seconds must not be negative, got %d", config.Scanner.TimeoutSeconds)
	}

	// Relative run results live inside the dbt project
	if config.Dbt.RunResultsPath != "" && !filepath.IsAbs(config.Dbt.RunResultsPath) {
		config.Dbt.RunResultsPath = filepath.Join(config.Dbt.ProjectDir, config.Dbt.RunResultsPath)
	}

	config.Notification.Email.Recipients = splitRecipients(config.Notification.Email.Recipients)

	return nil
}

// splitRecipients flattens comma separated entries and drops blanks
func splitRecipients(entries []string) []string {
	var recipients []string
	for _, entry := range entries {
		for _, addr := range strings.Split(entry, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				recipients = append(recipients, addr)
			}
		}
	}
	return recipients
}

// DefaultConfig returns a configuration with every default filled in
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:   "postgres",
			Path:     "./validation.db",
			Host:     "localhost",
			Port:     5432,
			Username: "postgres",
			Name:     "postgres",
			Schema:   "public",
			SSLMode:  "disable",
		},
		Dbt: DbtConfig{
			Enabled:        true,
			Path:           "dbt",
			ProjectDir:     ".",
			Steps:          []string{"debug", "compile", "test", "run"},
			RunResultsPath: "target/run_results.json",
		},
		Soda: SodaConfig{
			Enabled:           true,
			Path:              "soda",
			ProjectDir:        "soda_project",
			DataSource:        "postgres",
			ConfigurationFile: "configuration.yml",
			CheckFiles:        []string{"checks/checks.yml"},
		},
		Scanner: ScannerConfig{
			TimeoutSeconds: 0,
			TempDir:        filepath.Join(os.TempDir(), "validation-recorder"),
		},
		Notification: NotificationConfig{
			Email: EmailConfig{
				SMTPServer: "smtp.gmail.com",
				SMTPPort:   587,
			},
			Slack: SlackConfig{
				Username:  "Validation Recorder",
				IconEmoji: ":bar_chart:",
			},
		},
		Metrics: MetricsConfig{
			Job: "validation_recorder",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// SaveConfig saves the current configuration to a file
func SaveConfig(config *Config, filePath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateDefaultConfig creates a default configuration file
func GenerateDefaultConfig(filePath string) error {
	return SaveConfig(DefaultConfig(), filePath)
}
