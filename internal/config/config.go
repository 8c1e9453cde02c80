package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/geclass/geclass/internal/pkg/helpers"
)

// Config structure represents the application configuration
type Config struct {
	Database struct {
		Host            string `yaml:"host" env:"DB_HOST" validate:"required"`
		Port            string `yaml:"port" env:"DB_PORT" validate:"required"`
		User            string `yaml:"user" env:"DB_USER" validate:"required"`
		Password        string `yaml:"password" env:"DB_PASSWORD"`
		DBName          string `yaml:"dbname" env:"DB_NAME" validate:"required"`
		SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE"`
		MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" validate:"gte=0"`
		MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" validate:"gte=1"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	} `yaml:"database"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" env:"LOG_FORMAT" validate:"oneof=json text"`
	} `yaml:"logging"`

	Survey struct {
		// ControlAnswer is the only accepted answer to the attention check item.
		ControlAnswer int    `yaml:"control_answer" env:"SURVEY_CONTROL_ANSWER" validate:"min=1,max=5"`
		Window        string `yaml:"window" env:"SURVEY_WINDOW"`
		Disagreement  bool   `yaml:"disagreement" env:"SURVEY_DISAGREEMENT"`
		Timezone      string `yaml:"timezone" env:"SURVEY_TIMEZONE" validate:"required"`
		// URL is sent to course owners in reminders.
		URL string `yaml:"url" env:"SURVEY_URL" validate:"omitempty,url"`
	} `yaml:"survey"`

	Report struct {
		OutputDir    string   `yaml:"output_dir" env:"REPORT_OUTPUT_DIR" validate:"required"`
		DueAfter     string   `yaml:"due_after" env:"REPORT_DUE_AFTER"`
		Significance float64  `yaml:"significance" env:"REPORT_SIGNIFICANCE" validate:"gt=0,lt=1"`
		PlotCommand  []string `yaml:"plot_command" env:"REPORT_PLOT_COMMAND"`
		BuildCommand []string `yaml:"build_command" env:"REPORT_BUILD_COMMAND"`
		CleanCommand []string `yaml:"clean_command" env:"REPORT_CLEAN_COMMAND"`
		Timeout      string   `yaml:"timeout" env:"REPORT_TIMEOUT"`
	} `yaml:"report"`

	Email struct {
		Host      string   `yaml:"host" env:"EMAIL_HOST"`
		Port      int      `yaml:"port" env:"EMAIL_PORT"`
		Username  string   `yaml:"username" env:"EMAIL_USERNAME"`
		Password  string   `yaml:"password" env:"EMAIL_PASSWORD"`
		From      string   `yaml:"from" env:"EMAIL_FROM"`
		Operators []string `yaml:"operators" env:"EMAIL_OPERATORS" validate:"dive,email"`
	} `yaml:"email"`

	Storage struct {
		S3 struct {
			Enabled   bool   `yaml:"enabled" env:"S3_ENABLED"`
			Bucket    string `yaml:"bucket" env:"S3_BUCKET" validate:"required_if=Enabled true"`
			Region    string `yaml:"region" env:"S3_REGION"`
			Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
			Prefix    string `yaml:"prefix" env:"S3_PREFIX"`
			AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
			SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
		} `yaml:"s3"`
	} `yaml:"storage"`
}

// LoadConfig loads configuration from a file, a .env file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Load default config with sane defaults
	config := &Config{}
	setDefaults(config)

	// Try to read config file if it exists
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// A missing .env file is not an error; variables may come from the real environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	// Override with environment variables
	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	// Database defaults
	config.Database.Host = "localhost"
	config.Database.Port = "5432"
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.DBName = "geclass"
	config.Database.SSLMode = "disable"
	config.Database.MaxIdleConns = 2
	config.Database.MaxOpenConns = 5
	config.Database.ConnMaxLifetime = "1h"

	// Logging defaults
	config.Logging.Level = "info"
	config.Logging.Format = "json"

	// Survey defaults
	config.Survey.ControlAnswer = 4
	config.Survey.Window = "336h"
	config.Survey.Timezone = "Europe/Zurich"
	config.Survey.URL = "https://survey.uni-potsdam.de/s/c21d6139/de.html"

	// Report defaults
	config.Report.OutputDir = "reports"
	config.Report.DueAfter = "360h"
	config.Report.Significance = 0.05
	config.Report.PlotCommand = []string{"python3", "/opt/geclass/plots.py", "stats.json"}
	config.Report.BuildCommand = []string{"latexmk", "-pdf", "-interaction=nonstopmode", "report.tex"}
	config.Report.CleanCommand = []string{"latexmk", "-c"}
	config.Report.Timeout = "10m"

	// Email defaults
	config.Email.Port = 587
	config.Email.From = "noreply@geclass.local"

	config.Storage.S3.Region = "eu-central-1"
}

// loadFromEnv overrides configuration with environment variables
func loadFromEnv(config *Config) error {
	return applyEnv(reflect.ValueOf(config))
}

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	if err := validator.New().Struct(config); err != nil {
		return err
	}

	for name, value := range map[string]string{
		"survey.window":              config.Survey.Window,
		"report.due_after":           config.Report.DueAfter,
		"report.timeout":             config.Report.Timeout,
		"database.conn_max_lifetime": config.Database.ConnMaxLifetime,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s duration format: %w", name, err)
		}
	}

	if _, err := time.LoadLocation(config.Survey.Timezone); err != nil {
		return fmt.Errorf("invalid survey timezone: %w", err)
	}

	if len(config.Report.BuildCommand) == 0 {
		return fmt.Errorf("report build command is required")
	}

	return nil
}

// GetPostgresConnectionString returns postgres connection string
func (c *Config) GetPostgresConnectionString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		sslMode,
	)
}

// SurveyWindow is the number of days after a survey start during which answers count.
func (c *Config) SurveyWindow() int {
	return int(helpers.ParseDuration(c.Survey.Window, 14*24*time.Hour) / (24 * time.Hour))
}

// Location returns the time zone survey dates are compared in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Survey.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ReportDueAfter returns how long after the post survey start a report becomes due.
func (c *Config) ReportDueAfter() time.Duration {
	return helpers.ParseDuration(c.Report.DueAfter, 15*24*time.Hour)
}

// ReportTimeout bounds a single external report command.
func (c *Config) ReportTimeout() time.Duration {
	return helpers.ParseDuration(c.Report.Timeout, 10*time.Minute)
}

// ConnMaxLifetime returns the pool connection lifetime.
func (c *Config) ConnMaxLifetime() time.Duration {
	return helpers.ParseDuration(c.Database.ConnMaxLifetime, time.Hour)
}

// SplitList splits a comma separated environment value.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
