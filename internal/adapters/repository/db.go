// Package repository holds the durable ledgers: scores, flags, reward tiers
// with their claims, and player profiles. All of them share one gorm handle.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/metrics"
)

// Open connects to Postgres at dsn and migrates the schema.
func Open(ctx context.Context, dsn string) (*gorm.DB, error) {
	return OpenDialector(ctx, postgres.Open(dsn))
}

// OpenDialector opens any gorm dialector and migrates the schema.
func OpenDialector(ctx context.Context, d gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(d, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every ledger table.
func Migrate(ctx context.Context, db *gorm.DB) error {
	err := db.WithContext(ctx).AutoMigrate(
		&model.Score{},
		&model.Flag{},
		&model.Profile{},
		&model.RewardTier{},
		&model.RewardClaim{},
	)
	if err != nil {
		return fmt.Errorf("%w: migrate: %w", ErrOpen, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the durable store answers.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// observe records latency for op and counts err as a ledger error unless it
// is a plain miss.
func observe(op string, start time.Time, err error) {
	metrics.RecordLedgerLatency(op, metrics.Since(start))
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, ErrNotFound) {
		metrics.RecordLedgerError(op)
		metrics.RecordErrorByComponent("repository", op)
	}
}

func checkLimit(limit int) error {
	if limit < 1 {
		return ErrInvalidLimit
	}
	return nil
}
