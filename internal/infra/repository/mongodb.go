package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/NepsyCrawler/internal/domain"
	"github.com/NepsyCrawler/pkg/logging"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const duplicateKeyCode = 11000

// recordDocument is one stored row. Values keep the schema's text rendering so both
// store backends hold the same data.
type recordDocument struct {
	Entity   string            `bson:"entity"`
	Category string            `bson:"category"`
	Key      string            `bson:"key"`
	Values   map[string]string `bson:"values"`
	StoredAt time.Time         `bson:"stored_at"`
}

// MongoRepository stores records of every entity and category in one collection. The
// unique (entity, category, key) index makes appends idempotent even when two writers
// race on the same entity.
type MongoRepository struct {
	db         *mongo.Database
	collection *mongo.Collection
	sampler    *logging.ErrorSampler
}

func NewMongoRepository(client *mongo.Client, dbName, collectionName string) (*MongoRepository, error) {
	db := client.Database(dbName)
	repo := &MongoRepository{
		db:         db,
		collection: db.Collection(collectionName),
		sampler:    logging.NewErrorSampler(50),
	}

	if err := repo.createIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return repo, nil
}

func (r *MongoRepository) createIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "entity", Value: 1},
				{Key: "category", Value: 1},
				{Key: "key", Value: 1},
			},
			Options: options.Index().SetName("entity_category_key_idx").SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "stored_at", Value: -1},
			},
			Options: options.Index().SetName("category_stored_at_idx"),
		},
	}

	opts := options.CreateIndexes().SetMaxTime(10 * time.Second)
	_, err := r.collection.Indexes().CreateMany(ctx, models, opts)
	return err
}

func (r *MongoRepository) ExistingKeys(ctx context.Context, entity string, schema domain.Schema) (map[string]struct{}, error) {
	filter := bson.M{"entity": entity, "category": string(schema.Category)}
	opts := options.Find().SetProjection(bson.M{"_id": 0, "key": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			slog.Warn("Failed to close cursor", "error", err)
		}
	}()

	sampleKey := "keys:" + entity + ":" + string(schema.Category)
	keys := make(map[string]struct{})
	for cursor.Next(ctx) {
		var doc struct {
			Key string `bson:"key"`
		}
		if err := cursor.Decode(&doc); err != nil {
			if r.sampler.ShouldLog(sampleKey) {
				slog.Warn("Skipping stored record with undecodable key", "entity", entity, "category", schema.Category, "error", err)
			}
			continue
		}
		keys[doc.Key] = struct{}{}
	}
	if n := r.sampler.Count(sampleKey); n > 0 {
		slog.Warn("Stored records skipped while reading keys", "entity", entity, "category", schema.Category, "skipped", n)
		r.sampler.Flush(sampleKey)
	}
	return keys, cursor.Err()
}

// AppendRows inserts unordered and returns the records the unique index accepted.
func (r *MongoRepository) AppendRows(ctx context.Context, entity string, schema domain.Schema, records []domain.Record) ([]domain.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(records))
	for _, rec := range records {
		docs = append(docs, recordDocument{
			Entity:   entity,
			Category: string(schema.Category),
			Key:      rec.Key(),
			Values:   rec.Values(),
			StoredAt: now,
		})
	}

	opts := options.InsertMany().SetOrdered(false)
	_, err := r.collection.InsertMany(ctx, docs, opts)
	if err == nil {
		return records, nil
	}
	dup, ok := duplicateIndexes(err)
	if !ok {
		return nil, fmt.Errorf("failed to insert records: %w", err)
	}
	slog.Warn("Some records were already stored", "entity", entity, "category", schema.Category, "duplicates", len(dup))

	written := make([]domain.Record, 0, len(records)-len(dup))
	for i, rec := range records {
		if !dup[i] {
			written = append(written, rec)
		}
	}
	return written, nil
}

// Rows returns the stored values of one entity and category, oldest insert first.
func (r *MongoRepository) Rows(ctx context.Context, entity string, category domain.Category) ([]map[string]string, error) {
	filter := bson.M{"entity": entity, "category": string(category)}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	var docs []recordDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}

	rows := make([]map[string]string, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, d.Values)
	}
	return rows, nil
}

// duplicateIndexes returns the positions rejected by the unique index. ok is false
// when err holds anything other than duplicate-key write errors.
func duplicateIndexes(err error) (map[int]bool, bool) {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
		return nil, false
	}
	dup := make(map[int]bool, len(bwe.WriteErrors))
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return nil, false
		}
		dup[we.Index] = true
	}
	return dup, true
}
