// Package database provides relational database configuration options.
// MySQL, PostgreSQL and SQLite are supported; SQLite is intended for
// development and tests.
package database

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
)

// Supported drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options defines configuration options for the relational database.
type Options struct {
	Driver                string        `json:"driver" mapstructure:"driver"`
	Host                  string        `json:"host" mapstructure:"host"`
	Port                  int           `json:"port" mapstructure:"port"`
	Username              string        `json:"username" mapstructure:"username"`
	Password              string        `json:"-" mapstructure:"password"`
	Database              string        `json:"database" mapstructure:"database"`
	Path                  string        `json:"path" mapstructure:"path"` // sqlite only
	MaxIdleConnections    int           `json:"max-idle-connections" mapstructure:"max-idle-connections"`
	MaxOpenConnections    int           `json:"max-open-connections" mapstructure:"max-open-connections"`
	MaxConnectionLifeTime time.Duration `json:"max-connection-life-time" mapstructure:"max-connection-life-time"`
	LogLevel              int           `json:"log-level" mapstructure:"log-level"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Driver:                DriverSQLite,
		Host:                  "127.0.0.1",
		Port:                  3306,
		Username:              "root",
		Password:              "",
		Database:              "revdiff",
		Path:                  "revdiff.db",
		MaxIdleConnections:    10,
		MaxOpenConnections:    100,
		MaxConnectionLifeTime: 10 * time.Second,
		LogLevel:              1, // Silent
	}
}

// Validate checks if the options are valid.
func (o *Options) Validate() error {
	switch o.Driver {
	case DriverMySQL, DriverPostgres:
		if o.Database == "" {
			return fmt.Errorf("db.database cannot be empty for driver %q", o.Driver)
		}
	case DriverSQLite:
		if o.Path == "" {
			return fmt.Errorf("db.path cannot be empty for sqlite")
		}
	default:
		return fmt.Errorf("unsupported db.driver %q", o.Driver)
	}

	// Prefer the environment variable for the password. Warn when it came
	// from the CLI since process arguments are visible to other users.
	if o.Password == "" {
		o.Password = os.Getenv("DB_PASSWORD")
	}
	if o.Password != "" && os.Getenv("DB_PASSWORD") == "" {
		fmt.Fprintf(os.Stderr, "WARNING: Passing the database password via CLI is insecure. Use the DB_PASSWORD environment variable instead.\n")
	}

	return nil
}

// DSN builds the driver-specific data source name.
func (o *Options) DSN() string {
	switch o.Driver {
	case DriverMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			o.Username, o.Password, o.Host, o.Port, o.Database)
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			o.Host, o.Port, o.Username, o.Password, o.Database)
	case DriverSQLite:
		return o.Path
	default:
		return ""
	}
}

// AddFlags adds flags for database options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Driver, "db.driver", o.Driver, "Database driver (mysql, postgres, sqlite)")
	fs.StringVar(&o.Host, "db.host", o.Host, "Database host")
	fs.IntVar(&o.Port, "db.port", o.Port, "Database port")
	fs.StringVar(&o.Username, "db.username", o.Username, "Database username")
	fs.StringVar(&o.Password, "db.password", o.Password, "Database password (DEPRECATED: use DB_PASSWORD env var instead)")
	fs.StringVar(&o.Database, "db.database", o.Database, "Database name")
	fs.StringVar(&o.Path, "db.path", o.Path, "SQLite database file path")
	fs.IntVar(&o.MaxIdleConnections, "db.max-idle-connections", o.MaxIdleConnections, "Database max idle connections")
	fs.IntVar(&o.MaxOpenConnections, "db.max-open-connections", o.MaxOpenConnections, "Database max open connections")
	fs.DurationVar(&o.MaxConnectionLifeTime, "db.max-connection-life-time", o.MaxConnectionLifeTime, "Database max connection life time")
	fs.IntVar(&o.LogLevel, "db.log-level", o.LogLevel, "Database log level")
}
