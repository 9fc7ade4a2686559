// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/spf13/viper"
)

// DefaultPort is used when no port is configured or the configured value is
// not a valid TCP port.
const DefaultPort = 9000

// Config holds application configuration values loaded from file or
// environment variables.
type Config struct {
	Port       int    `mapstructure:"PORT"`
	MaxClients int    `mapstructure:"MAX_CLIENTS"`
	DBDriver   string `mapstructure:"DB_DRIVER"`
	DBPath     string `mapstructure:"DB_PATH"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`
	RedisURL   string `mapstructure:"REDIS_URL"`
	AdminPort  string `mapstructure:"ADMIN_PORT"`
	JWTSecret  string `mapstructure:"JWT_SECRET"`
	Env        string `mapstructure:"APP_ENV"`
}

// LoadConfig loads application configuration from file and environment
// variables. args is the CLI argument list after the program name; a single
// positional argument overrides the listening port.
func LoadConfig(args []string) (*Config, error) {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The config file is optional; environment variables and defaults are
	// enough to run.
	_ = viper.ReadInConfig()

	viper.SetDefault("PORT", DefaultPort)
	viper.SetDefault("MAX_CLIENTS", 100)
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_PATH", "chat_server.db")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "parley")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("ADMIN_PORT", "")
	viper.SetDefault("JWT_SECRET", "change-me-in-production")
	viper.SetDefault("APP_ENV", "development")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if len(args) > 0 {
		config.Port = parsePort(args[0])
	}
	if config.Port < 1 || config.Port > 65535 {
		config.Port = DefaultPort
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// parsePort converts a positional port argument, falling back to the default
// on any invalid value.
func parsePort(arg string) int {
	p, err := strconv.Atoi(arg)
	if err != nil || p < 1 || p > 65535 {
		log.Printf("invalid port %q, using default %d", arg, DefaultPort)
		return DefaultPort
	}
	return p
}

// Validate ensures that required configuration values are present and meet
// security standards.
func (c *Config) Validate() error {
	if c.MaxClients < 1 {
		return errors.New("MAX_CLIENTS must be at least 1")
	}
	if c.DBDriver != "sqlite" && c.DBDriver != "postgres" {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DBDriver == "sqlite" && c.DBPath == "" {
		return errors.New("DB_PATH is required for the sqlite driver")
	}

	isProduction := c.Env == "production" || c.Env == "prod"
	if isProduction {
		if c.AdminPort != "" && c.JWTSecret == "change-me-in-production" {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if c.DBDriver == "postgres" && (c.DBPassword == "password" || c.DBPassword == "") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
	} else if c.AdminPort != "" && len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
