package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/diwise/alert-engine/internal/pkg/infrastructure/logging"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("record not found")

type ConnectorConfig struct {
	Host     string
	Port     string
	Username string
	DbName   string
	Password string
	SslMode  string
}

func LoadConfigFromEnv(ctx context.Context) ConnectorConfig {
	return ConnectorConfig{
		Host:     os.Getenv("POSTGRES_HOST"),
		Port:     envOrDefault("POSTGRES_PORT", "5432"),
		Username: os.Getenv("POSTGRES_USER"),
		DbName:   envOrDefault("POSTGRES_DBNAME", "alerts"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		SslMode:  envOrDefault("POSTGRES_SSLMODE", "disable"),
	}
}

// ConnectorFunc returns the database handle. Every call on a connector
// returned from this package yields the same handle, so repositories created
// from one connector share a database.
type ConnectorFunc func() (*gorm.DB, error)

func NewSQLiteConnector(ctx context.Context) ConnectorFunc {
	return once(func() (*gorm.DB, error) {
		db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
			Logger:          logger.Default.LogMode(logger.Silent),
			CreateBatchSize: 1000,
			NowFunc:         utcNow,
		})

		if err == nil {
			db.Exec("PRAGMA foreign_keys = ON")
			sqldb, _ := db.DB()
			sqldb.SetMaxOpenConns(1)
		}

		return db, err
	})
}

func NewPostgreSQLConnector(ctx context.Context, cfg ConnectorConfig) ConnectorFunc {
	dbURI := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s password=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.DbName, cfg.SslMode, cfg.Password)

	sublogger := logging.GetFromContext(ctx).With().
		Str("host", cfg.Host).
		Str("database", cfg.DbName).
		Logger()

	return once(func() (*gorm.DB, error) {
		var err error

		for attempt := 1; attempt <= 5; attempt++ {
			sublogger.Info().Int("attempt", attempt).Msg("connecting to database host")

			var db *gorm.DB
			db, err = gorm.Open(postgres.Open(dbURI), &gorm.Config{
				Logger: logger.New(
					&logadapter{logger: sublogger},
					logger.Config{
						SlowThreshold:             time.Second,
						LogLevel:                  logger.Warn,
						IgnoreRecordNotFoundError: true,
						Colorful:                  false,
					},
				),
				NowFunc: utcNow,
			})
			if err == nil {
				return db, nil
			}

			sublogger.Error().Err(err).Msg("failed to connect to database")
			time.Sleep(3 * time.Second)
		}

		return nil, fmt.Errorf("giving up connecting to database: %w", err)
	})
}

func once(connect ConnectorFunc) ConnectorFunc {
	var (
		o   sync.Once
		db  *gorm.DB
		err error
	)

	return func() (*gorm.DB, error) {
		o.Do(func() {
			db, err = connect()
		})
		return db, err
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// Paginate converts a 1-based page and a page size into a gorm scope.
func Paginate(page, pageSize int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page < 1 {
			page = 1
		}
		return db.Offset((page - 1) * pageSize).Limit(pageSize)
	}
}

// NullIfEmpty maps an empty optional scope value to a NULL column.
func NullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func ValueOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// logadapter provides a Printf interface to the gorm logger
// so that we can forward the log data to zerolog
type logadapter struct {
	logger zerolog.Logger
}

func (adapter *logadapter) Printf(format string, args ...interface{}) {
	adapter.logger.Info().Msg(fmt.Sprintf(format, args...))
}

func envOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
