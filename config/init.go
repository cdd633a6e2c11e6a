package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	cron_config "github.com/prodiguer/hermes/internal/cron/config"
	"github.com/prodiguer/hermes/internal/database"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/tracing"
)

type Config struct {
	AppConfig       *AppConfig
	Logger          *logger.Config
	Tracing         *tracing.JaegerConfig
	BrokerConfig    *BrokerConfig
	DatabaseConfig  *DatabaseConfig
	MongoConfig     *MongoConfig
	RedisConfig     *RedisConfig
	IMAPConfig      *IMAPConfig
	SMTPConfig      *SMTPConfig
	ExtractorConfig *ExtractorConfig
	CheckerConfig   *CheckerConfig
	StorageConfig   *StorageConfig
	CronConfig      *cron_config.Config
}

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:       &AppConfig{},
		Logger:          &logger.Config{},
		Tracing:         &tracing.JaegerConfig{},
		BrokerConfig:    &BrokerConfig{},
		DatabaseConfig:  &DatabaseConfig{},
		MongoConfig:     &MongoConfig{},
		RedisConfig:     &RedisConfig{},
		IMAPConfig:      &IMAPConfig{},
		SMTPConfig:      &SMTPConfig{},
		ExtractorConfig: &ExtractorConfig{},
		CheckerConfig:   &CheckerConfig{},
		StorageConfig:   &StorageConfig{},
		CronConfig:      &cron_config.Config{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		return nil, err
	}

	return config, nil
}

// HermesDatabase is the connection configuration of the relational database.
func (c *Config) HermesDatabase() *database.DatabaseConfig {
	return &database.DatabaseConfig{
		Host:            c.DatabaseConfig.Host,
		Port:            c.DatabaseConfig.Port,
		User:            c.DatabaseConfig.User,
		DBName:          c.DatabaseConfig.DBName,
		Password:        c.DatabaseConfig.Password,
		MaxConn:         c.DatabaseConfig.MaxConn,
		MaxIdleConn:     c.DatabaseConfig.MaxIdleConn,
		ConnMaxLifetime: c.DatabaseConfig.ConnMaxLifetime,
		LogLevel:        c.DatabaseConfig.LogLevel,
		SSLMode:         c.DatabaseConfig.SSLMode,
	}
}

func (c *Config) MetricsDatabase() *database.MongoConfig {
	return &database.MongoConfig{
		URI:    c.MongoConfig.URI,
		DBName: c.MongoConfig.DBName,
	}
}
