package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// MongoConfig describes the cart store. Zero durations and pool sizes take
// the defaults below.
type MongoConfig struct {
	URI         string
	Database    string
	AppName     string
	PingTimeout time.Duration
	MaxPoolSize uint64
}

const (
	defaultPingTimeout = 5 * time.Second
	defaultMaxPool     = 100
)

func (c MongoConfig) withDefaults() MongoConfig {
	if c.AppName == "" {
		c.AppName = "cart-engine"
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = defaultPingTimeout
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = defaultMaxPool
	}
	return c
}

// clientOptions builds the driver options. Cart writes are acknowledged by
// the majority so a saved mutation survives a primary failover.
func (c MongoConfig) clientOptions() *options.ClientOptions {
	return options.Client().
		ApplyURI(c.URI).
		SetAppName(c.AppName).
		SetServerSelectionTimeout(c.PingTimeout).
		SetMaxPoolSize(c.MaxPoolSize).
		SetRetryWrites(true).
		SetWriteConcern(writeconcern.Majority())
}

// Connect opens the cart database and waits for the primary to answer.
func Connect(ctx context.Context, cfg MongoConfig) (*mongo.Database, error) {
	cfg = cfg.withDefaults()
	if cfg.URI == "" || cfg.Database == "" {
		return nil, fmt.Errorf("mongo uri and database are required")
	}

	client, err := mongo.Connect(ctx, cfg.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB at %s: %w", cfg.Database, err)
	}

	return client.Database(cfg.Database), nil
}
