package store

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/revdiff/internal/model"
	"github.com/kart-io/revdiff/pkg/options/database"
)

// datastore implements the Factory interface on top of gorm.
type datastore struct {
	db *gorm.DB
}

// NewFactory opens the configured database, runs migrations and returns the
// storage factory.
func NewFactory(opts *database.Options) (Factory, error) {
	dialector, err := openDialector(opts)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.LogLevel(opts.LogLevel)),
		// Map driver-specific unique violations to gorm.ErrDuplicatedKey so
		// the benign insert race can be detected portably.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConnections)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConnections)
	sqlDB.SetConnMaxLifetime(opts.MaxConnectionLifeTime)

	ds := &datastore{db: db}
	if err := ds.autoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return ds, nil
}

// NewFactoryWithDB wraps an existing gorm handle. Intended for tests.
func NewFactoryWithDB(db *gorm.DB) (Factory, error) {
	ds := &datastore{db: db}
	if err := ds.autoMigrate(); err != nil {
		return nil, err
	}
	return ds, nil
}

func openDialector(opts *database.Options) (gorm.Dialector, error) {
	switch opts.Driver {
	case database.DriverMySQL:
		return mysql.Open(opts.DSN()), nil
	case database.DriverPostgres:
		return postgres.Open(opts.DSN()), nil
	case database.DriverSQLite:
		return sqlite.Open(opts.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

func (ds *datastore) autoMigrate() error {
	return ds.db.AutoMigrate(
		&model.Comparison{},
		&model.UsageEvent{},
		&model.DocumentVersion{},
	)
}

// Comparisons returns the comparison store.
func (ds *datastore) Comparisons() ComparisonStore {
	return newComparisons(ds.db)
}

// Usage returns the usage event store.
func (ds *datastore) Usage() UsageStore {
	return newUsage(ds.db)
}

// Versions returns the version metadata store.
func (ds *datastore) Versions() VersionStore {
	return newVersions(ds.db)
}

// Close closes the underlying connection pool.
func (ds *datastore) Close() error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ Factory = (*datastore)(nil)
