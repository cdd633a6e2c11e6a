package database

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoConnectTimeout = 10 * time.Second

type MongoConfig struct {
	URI    string
	DBName string
}

// InitMetricsDatabase connects to the metrics document store. It returns
// nil without error when no URI is configured.
func InitMetricsDatabase(ctx context.Context, cfg *MongoConfig) (*mongo.Client, *mongo.Database, error) {
	if cfg == nil || cfg.URI == "" {
		return nil, nil, nil
	}
	if cfg.DBName == "" {
		return nil, nil, errors.New("mongo database name config is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, errors.Wrap(err, "failed to ping MongoDB")
	}

	return client, client.Database(cfg.DBName), nil
}
