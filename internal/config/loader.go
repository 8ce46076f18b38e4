package config

import (
	"fmt"

	"github.com/rpattn/batchctl/internal/db"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Database       db.Config
	ListenAddr     string
	AllowedOrigins []string
	// Schedules maps package name to cron spec.
	Schedules map[string]string
	// Packages are provisioned at startup even without a schedule.
	Packages []string
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Database:       db.DefaultConfig(),
		ListenAddr:     ":8080",
		AllowedOrigins: []string{"http://localhost:3000"},
		Schedules:      map[string]string{},
		Packages:       []string{},
	}
}

// Load reads config.yaml from configPath, with environment overrides under
// the BATCHCTL prefix (e.g. BATCHCTL_DATABASE_HOST).
func Load(configPath string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("BATCHCTL")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.listen_addr")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.listen_addr") {
		cfg.ListenAddr = v.GetString("server.listen_addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("schedules") {
		cfg.Schedules = v.GetStringMapString("schedules")
	}
	if v.IsSet("packages") {
		cfg.Packages = v.GetStringSlice("packages")
	}

	return cfg, nil
}
