package database

import (
	"context"
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/qutab/affiliate-ledger/pkg/models"
)

// Client holds the database connection
type Client struct {
	DB *gorm.DB
}

// NewClient opens a postgres connection and applies migrations
func NewClient(databaseURL string) (*Client, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed opening connection to postgres: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed creating schema resources: %w", err)
	}

	log.Println("✅ Database connected and migrations applied")

	return &Client{DB: db}, nil
}

// Migrate creates or updates all tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Affiliate{},
		&models.LedgerEntry{},
		&models.PayoutRequest{},
		&models.Commission{},
		&models.AuditLog{},
		&models.WebhookSubscription{},
	)
}

// Close closes the database connection
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks if the database is reachable
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
