package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Parser     ParserConfig     `mapstructure:"parser"`
	Anomaly    AnomalyConfig    `mapstructure:"anomaly"`
	Confidence ConfidenceConfig `mapstructure:"confidence"`
	Export     ExportConfig     `mapstructure:"export"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// OpenAIConfig holds the structuring backend configuration
type OpenAIConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ModelSlots  int           `mapstructure:"model_slots"`
}

// ParserConfig tunes the deterministic receipt parser
type ParserConfig struct {
	FallbackMinProducts int     `mapstructure:"fallback_min_products"`
	MinLinesForFallback int     `mapstructure:"min_lines_for_fallback"`
	MaxProductPrice     float64 `mapstructure:"max_product_price"`
}

// AnomalyConfig holds the price anomaly ceilings
type AnomalyConfig struct {
	GeneralCeiling float64 `mapstructure:"general_ceiling"`
	MeatCeiling    float64 `mapstructure:"meat_ceiling"`
	HardCeiling    float64 `mapstructure:"hard_ceiling"`
}

// ConfidenceConfig holds the scoring decision boundaries
type ConfidenceConfig struct {
	ReviewThreshold   float64 `mapstructure:"review_threshold"`
	AutoSaveThreshold float64 `mapstructure:"auto_save_threshold"`
}

// ExportConfig holds spreadsheet export configuration
type ExportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
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
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/receipts.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Structuring backend defaults
	viper.SetDefault("openai.enabled", true)
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.temperature", 0.1)
	viper.SetDefault("openai.timeout", 60*time.Second)
	viper.SetDefault("openai.model_slots", 2)

	// Parser defaults
	viper.SetDefault("parser.fallback_min_products", 3)
	viper.SetDefault("parser.min_lines_for_fallback", 5)
	viper.SetDefault("parser.max_product_price", 500.0)

	// Anomaly defaults
	viper.SetDefault("anomaly.general_ceiling", 40.0)
	viper.SetDefault("anomaly.meat_ceiling", 60.0)
	viper.SetDefault("anomaly.hard_ceiling", 80.0)

	// Confidence defaults
	viper.SetDefault("confidence.review_threshold", 0.70)
	viper.SetDefault("confidence.auto_save_threshold", 0.80)

	// Export defaults
	viper.SetDefault("export.output_dir", "exports")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("database.path", "RECEIPTS_DB_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.OpenAI.Enabled && c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required when openai.enabled is true")
	}
	if c.Parser.MaxProductPrice <= 0 {
		return fmt.Errorf("parser.max_product_price must be positive")
	}
	if c.Confidence.ReviewThreshold < 0 || c.Confidence.ReviewThreshold > 1 {
		return fmt.Errorf("confidence.review_threshold must be between 0.0 and 1.0")
	}
	if c.Confidence.AutoSaveThreshold < c.Confidence.ReviewThreshold {
		return fmt.Errorf("confidence.auto_save_threshold must not be below review_threshold")
	}
	return nil
}
