// Package store is the transactional state-store client: gorm over Postgres
// in production, sqlite in tests, same schema either way. Every multi-field
// mutation goes through a single transaction that reads, computes the next
// action, and commits only if the observed state still permits the
// transition — spec.md §5's "locking / transaction discipline."
package store

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/clinicore/scribeflow/internal/config"
	"github.com/clinicore/scribeflow/internal/domain"
	"github.com/clinicore/scribeflow/internal/logger"
)

type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgres(log *logger.Logger) (*Store, error) {
	storeLog := log.With("component", "store")

	host := config.GetEnv("POSTGRES_HOST", "localhost", log)
	port := config.GetEnv("POSTGRES_PORT", "5432", log)
	user := config.GetEnv("POSTGRES_USER", "postgres", log)
	password := config.GetEnv("POSTGRES_PASSWORD", "", log)
	name := config.GetEnv("POSTGRES_NAME", "scribeflow", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)

	gormLog := gormLogger.New(
		log2StdLogger(),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	s := &Store{db: db, log: storeLog}
	if err := s.AutoMigrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func log2StdLogger() *log.Logger {
	return log.New(os.Stdout, "\r\n", log.LstdFlags)
}

func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&domain.Run{},
		&domain.StageRecord{},
		&domain.IngestionRecord{},
	)
}

func (s *Store) DB() *gorm.DB {
	return s.db
}
