package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration. Everything is resolved once
// at process start and passed explicitly to the components that need it.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Converter ConverterConfig `mapstructure:"converter"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds ledger database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// PipelineConfig holds document generation configuration
type PipelineConfig struct {
	TemplatePath string `mapstructure:"template_path"`
	OutputDir    string `mapstructure:"output_dir"`
	TargetFormat string `mapstructure:"target_format"`
}

// ConverterConfig holds conversion engine configuration
type ConverterConfig struct {
	Binary string `mapstructure:"binary"`
	// Timeout bounds one engine call; zero leaves a hung engine blocking
	// only its own request.
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 3001)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	// Conversion can take several seconds per request; the response write
	// deadline stays unbounded.
	viper.SetDefault("server.write_timeout", time.Duration(0))

	// Database defaults
	viper.SetDefault("database.path", "data/lpj_history.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Pipeline defaults
	viper.SetDefault("pipeline.template_path", "templates/LPJ_PUM_temp.docx")
	viper.SetDefault("pipeline.output_dir", "generated")
	viper.SetDefault("pipeline.target_format", ".pdf")

	// Converter defaults
	viper.SetDefault("converter.binary", "soffice")
	viper.SetDefault("converter.timeout", time.Duration(0))

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("database.path", "LPJ_DATABASE_PATH")
	viper.BindEnv("pipeline.template_path", "LPJ_TEMPLATE_PATH")
	viper.BindEnv("pipeline.output_dir", "LPJ_OUTPUT_DIR")
	viper.BindEnv("converter.binary", "LPJ_CONVERTER_BINARY")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Pipeline.TemplatePath == "" {
		return fmt.Errorf("pipeline.template_path is required")
	}
	if c.Pipeline.OutputDir == "" {
		return fmt.Errorf("pipeline.output_dir is required")
	}
	if c.Pipeline.TargetFormat == "" {
		return fmt.Errorf("pipeline.target_format is required")
	}
	if c.Converter.Binary == "" {
		return fmt.Errorf("converter.binary is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}
