// Package dbconfig reads SQL connection settings from DB_* environment
// variables and renders them for the supported drivers.
package dbconfig

import (
	"fmt"
	"os"
	"strconv"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

var defaultPorts = map[string]int{
	DriverPostgres: 5432,
	DriverMySQL:    3306,
}

// Config holds SQL connection settings. A zero Port means the driver's
// default port.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewConfigFromEnv reads DB_* environment variables (with defaults).
func NewConfigFromEnv() Config {
	port, err := strconv.Atoi(getEnv("DB_PORT", "0"))
	if err != nil || port < 0 {
		port = 0
	}

	return Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     port,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		Database: getEnv("DB_NAME", "pyroassist"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

// PortFor returns the configured port, or the default port of driver.
func (c Config) PortFor(driver string) int {
	if c.Port > 0 {
		return c.Port
	}
	return defaultPorts[driver]
}

// DSN returns the Postgres connection URL.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.PortFor(DriverPostgres), c.Database, c.SSLMode,
	)
}

// MySQLDSN returns the go-sql-driver/mysql data source name.
func (c Config) MySQLDSN() string {
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.User, c.Password, c.Host, c.PortFor(DriverMySQL), c.Database,
	)
}

// DSNFor returns the data source name for a database/sql driver name.
func (c Config) DSNFor(driver string) (string, error) {
	switch driver {
	case DriverPostgres:
		return c.DSN(), nil
	case DriverMySQL:
		return c.MySQLDSN(), nil
	default:
		return "", fmt.Errorf("unsupported driver %q", driver)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
