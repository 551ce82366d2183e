package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config - структура для хранения конфигураций приложения
type Config struct {
	ServerAddress    string        `mapstructure:"SERVER_ADDRESS"`
	StorageDriver    string        `mapstructure:"STORAGE_DRIVER"`
	PostgresConn     string        `mapstructure:"POSTGRES_CONN"`
	PostgresUser     string        `mapstructure:"POSTGRES_USERNAME"`
	PostgresPass     string        `mapstructure:"POSTGRES_PASSWORD"`
	PostgresHost     string        `mapstructure:"POSTGRES_HOST"`
	PostgresPort     string        `mapstructure:"POSTGRES_PORT"`
	PostgresDB       string        `mapstructure:"POSTGRES_DATABASE"`
	SQLitePath       string        `mapstructure:"SQLITE_PATH"`
	RedisURL         string        `mapstructure:"REDIS_URL"`
	EventsStream     string        `mapstructure:"EVENTS_STREAM"`
	JWTSecret        string        `mapstructure:"JWT_SECRET"`
	AllowActorHeader bool          `mapstructure:"ALLOW_ACTOR_HEADER"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RelayInterval    time.Duration `mapstructure:"RELAY_INTERVAL"`
	RelayBatchSize   int           `mapstructure:"RELAY_BATCH_SIZE"`
}

var keys = []string{
	"SERVER_ADDRESS", "STORAGE_DRIVER", "POSTGRES_CONN", "POSTGRES_USERNAME", "POSTGRES_PASSWORD",
	"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DATABASE", "SQLITE_PATH", "REDIS_URL", "EVENTS_STREAM",
	"JWT_SECRET", "ALLOW_ACTOR_HEADER", "REQUEST_TIMEOUT", "RELAY_INTERVAL", "RELAY_BATCH_SIZE",
}

// LoadConfig загружает конфигурацию из файла app.env и переменных окружения.
// Отсутствие файла не считается ошибкой.
func LoadConfig(path string) (cfg Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("SERVER_ADDRESS", "0.0.0.0:8080")
	v.SetDefault("STORAGE_DRIVER", DriverPostgres)
	v.SetDefault("SQLITE_PATH", "engagement.db")
	v.SetDefault("EVENTS_STREAM", "engagement:events")
	v.SetDefault("REQUEST_TIMEOUT", 5*time.Second)
	v.SetDefault("RELAY_INTERVAL", time.Second)
	v.SetDefault("RELAY_BATCH_SIZE", 100)
	// AutomaticEnv не видит ключи без значения по умолчанию при Unmarshal
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
	}
	if err = v.Unmarshal(&cfg); err != nil {
		return
	}
	err = cfg.Validate()
	return
}

// Validate проверяет согласованность настроек хранилища.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case DriverPostgres:
		if c.PostgresConn == "" {
			return fmt.Errorf("POSTGRES_CONN is required for the %s driver", DriverPostgres)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the %s driver", DriverSQLite)
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.RelayBatchSize <= 0 {
		return fmt.Errorf("RELAY_BATCH_SIZE must be positive")
	}
	if c.RelayInterval <= 0 {
		return fmt.Errorf("RELAY_INTERVAL must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	return nil
}
