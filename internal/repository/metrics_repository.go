package repository

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/opentracing/opentracing-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/tracing"
)

const metricGroupPrefix = "metrics_"

var metricGroupPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]{0,99}$`)

type metricsRepository struct {
	db    *mongo.Database
	cache *MetricGroupCache
}

func NewMetricsRepository(db *mongo.Database, cache *MetricGroupCache) interfaces.MetricsRepository {
	return &metricsRepository{db: db, cache: cache}
}

// Insert adds documents to the collection of the given metric group and
// returns how many were stored.
func (r *metricsRepository) Insert(ctx context.Context, group string, documents []map[string]interface{}) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "metricsRepository.Insert")
	defer span.Finish()
	tracing.TagComponentMongoRepository(span)
	tracing.TagEntity(span, group)

	if !metricGroupPattern.MatchString(group) {
		return 0, fmt.Errorf("%w: metric group %q", ErrInvalidInput, group)
	}
	if len(documents) == 0 {
		return 0, nil
	}

	if !r.cache.Loaded() {
		if err := r.cache.Load(ctx, r.Groups); err != nil {
			tracing.TraceErr(span, err)
			return 0, err
		}
	}

	docs := make([]interface{}, 0, len(documents))
	for _, document := range documents {
		docs = append(docs, bson.M(document))
	}

	result, err := r.db.Collection(metricGroupPrefix+group).InsertMany(ctx, docs)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, fmt.Errorf("failed to insert metrics: %w", err)
	}
	if !r.cache.Has(group) {
		r.cache.Add(group)
	}

	return len(result.InsertedIDs), nil
}

func (r *metricsRepository) Groups(ctx context.Context) ([]string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "metricsRepository.Groups")
	defer span.Finish()
	tracing.TagComponentMongoRepository(span)

	names, err := r.db.ListCollectionNames(ctx, bson.M{"name": bson.M{"$regex": "^" + metricGroupPrefix}})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list metric groups: %w", err)
	}

	groups := make([]string, 0, len(names))
	for _, name := range names {
		groups = append(groups, strings.TrimPrefix(name, metricGroupPrefix))
	}
	return groups, nil
}
