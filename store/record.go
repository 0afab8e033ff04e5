package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"portfolio/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RecordStorer is the document-store facade. Every mutating operation
// stamps updated_at; inserts additionally stamp created_at. Operations are
// single-document or whole-collection scoped, there is no cross-collection
// transaction guarantee.
type RecordStorer interface {
	InsertOne(ctx context.Context, collection string, doc bson.M) (primitive.ObjectID, error)
	InsertMany(ctx context.Context, collection string, docs []bson.M) error
	FindOne(ctx context.Context, collection string, filter *Filter, opts *FindOpts) (bson.M, error)
	FindMany(ctx context.Context, collection string, filter *Filter, opts *FindOpts) ([]bson.M, error)
	UpdateOne(ctx context.Context, collection string, filter *Filter, update *Update, opts *UpdateOpts) error
	UpdateMany(ctx context.Context, collection string, filter *Filter, update *Update) error
	FindOneAndUpdate(ctx context.Context, collection string, filter *Filter, update *Update, opts *UpdateOpts) (bson.M, error)
	BulkWrite(ctx context.Context, collection string, models []mongo.WriteModel) error
	DeleteOne(ctx context.Context, collection string, filter *Filter) error
	DeleteMany(ctx context.Context, collection string, filter *Filter) error
	Count(ctx context.Context, collection string, filter *Filter) (int64, error)
	Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]bson.M, error)
	CreateIndex(ctx context.Context, collection string, keys []SortField, opts *IndexOpts) (string, error)
	DropIndex(ctx context.Context, collection string, name string) error
	Close(ctx context.Context) error
}

// UpdateOpts tunes a single update. ArrayFilters carry positional array
// filter documents through to the server.
type UpdateOpts struct {
	Upsert       bool
	ArrayFilters []any
}

// IndexOpts tunes index creation. A non-zero ExpireAfter makes the index a
// TTL index on its (single, date-valued) key.
type IndexOpts struct {
	Unique      bool
	ExpireAfter time.Duration
}

type RecordStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewRecordStore connects to MongoDB and pings it. One store per process;
// the pool inside the client handles all concurrent requests.
func NewRecordStore(ctx context.Context, uri, dbName string) (*RecordStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &RecordStore{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

func (s *RecordStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// stampNew adds created_at and updated_at to a document about to be
// inserted.
func stampNew(doc bson.M, now time.Time) bson.M {
	doc["created_at"] = now
	doc["updated_at"] = now
	return doc
}

func (s *RecordStore) InsertOne(ctx context.Context, collection string, doc bson.M) (primitive.ObjectID, error) {
	res, err := s.db.Collection(collection).InsertOne(ctx, stampNew(doc, time.Now().UTC()))
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	return id, nil
}

func (s *RecordStore) InsertMany(ctx context.Context, collection string, docs []bson.M) error {
	if len(docs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	stamped := make([]any, len(docs))
	for i, doc := range docs {
		stamped[i] = stampNew(doc, now)
	}
	// Unordered so one bad document does not mask the rest, matching the
	// batch contract: the returned error still reports the failed items.
	_, err := s.db.Collection(collection).InsertMany(ctx, stamped, options.InsertMany().SetOrdered(false))
	return err
}

func findOneOptions(opts *FindOpts) *options.FindOneOptions {
	o := options.FindOne()
	if opts == nil {
		return o
	}
	if len(opts.Projection) > 0 {
		o.SetProjection(projection(opts.Projection))
	}
	if len(opts.Sort) > 0 {
		o.SetSort(sortDoc(opts.Sort))
	}
	return o
}

func findOptions(opts *FindOpts) *options.FindOptions {
	o := options.Find()
	if opts == nil {
		return o
	}
	if len(opts.Projection) > 0 {
		o.SetProjection(projection(opts.Projection))
	}
	if len(opts.Sort) > 0 {
		o.SetSort(sortDoc(opts.Sort))
	}
	if opts.Limit > 0 {
		o.SetLimit(opts.Limit)
	}
	return o
}

func projection(fields []string) bson.M {
	p := bson.M{}
	for _, f := range fields {
		p[f] = 1
	}
	return p
}

func sortDoc(fields []SortField) bson.D {
	d := make(bson.D, len(fields))
	for i, f := range fields {
		order := 1
		if f.Desc {
			order = -1
		}
		d[i] = bson.E{Key: f.Field, Value: order}
	}
	return d
}

// FindOne returns the matching document, or nil when nothing matches.
func (s *RecordStore) FindOne(ctx context.Context, collection string, filter *Filter, opts *FindOpts) (bson.M, error) {
	var doc bson.M
	err := s.db.Collection(collection).FindOne(ctx, filter.Build(), findOneOptions(opts)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *RecordStore) FindMany(ctx context.Context, collection string, filter *Filter, opts *FindOpts) ([]bson.M, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, filter.Build(), findOptions(opts))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func updateOptions(opts *UpdateOpts) *options.UpdateOptions {
	o := options.Update()
	if opts == nil {
		return o
	}
	o.SetUpsert(opts.Upsert)
	if len(opts.ArrayFilters) > 0 {
		o.SetArrayFilters(options.ArrayFilters{Filters: opts.ArrayFilters})
	}
	return o
}

func (s *RecordStore) UpdateOne(ctx context.Context, collection string, filter *Filter, update *Update, opts *UpdateOpts) error {
	_, err := s.db.Collection(collection).UpdateOne(ctx, filter.Build(), update.Build(time.Now().UTC()), updateOptions(opts))
	return err
}

func (s *RecordStore) UpdateMany(ctx context.Context, collection string, filter *Filter, update *Update) error {
	_, err := s.db.Collection(collection).UpdateMany(ctx, filter.Build(), update.Build(time.Now().UTC()))
	return err
}

// FindOneAndUpdate applies the update atomically server-side and returns
// the post-update document. With Upsert set, SetOnInsert fields initialize
// the document only when this call creates it. This is the single
// concurrency-correctness primitive for overlapping writes to the same
// conversation.
func (s *RecordStore) FindOneAndUpdate(ctx context.Context, collection string, filter *Filter, update *Update, opts *UpdateOpts) (bson.M, error) {
	o := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if opts != nil {
		o.SetUpsert(opts.Upsert)
		if len(opts.ArrayFilters) > 0 {
			o.SetArrayFilters(options.ArrayFilters{Filters: opts.ArrayFilters})
		}
	}

	var doc bson.M
	err := s.db.Collection(collection).FindOneAndUpdate(ctx, filter.Build(), update.Build(time.Now().UTC()), o).Decode(&doc)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *RecordStore) BulkWrite(ctx context.Context, collection string, models []mongo.WriteModel) error {
	if len(models) == 0 {
		return nil
	}
	_, err := s.db.Collection(collection).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return err
}

func (s *RecordStore) DeleteOne(ctx context.Context, collection string, filter *Filter) error {
	_, err := s.db.Collection(collection).DeleteOne(ctx, filter.Build())
	return err
}

func (s *RecordStore) DeleteMany(ctx context.Context, collection string, filter *Filter) error {
	_, err := s.db.Collection(collection).DeleteMany(ctx, filter.Build())
	return err
}

func (s *RecordStore) Count(ctx context.Context, collection string, filter *Filter) (int64, error) {
	return s.db.Collection(collection).CountDocuments(ctx, filter.Build())
}

func (s *RecordStore) Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]bson.M, error) {
	cursor, err := s.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// indexNameFor computes the server's default name for an index with the
// given key signature, e.g. "user_id_1" or "last_active_-1".
func indexNameFor(keys []SortField) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		order := 1
		if k.Desc {
			order = -1
		}
		parts[i] = k.Field + "_" + strconv.Itoa(order)
	}
	return strings.Join(parts, "_")
}

// CreateIndex creates an index over keys, skipping creation when an index
// with the same key signature already exists.
func (s *RecordStore) CreateIndex(ctx context.Context, collection string, keys []SortField, opts *IndexOpts) (string, error) {
	coll := s.db.Collection(collection)

	name := indexNameFor(keys)
	existing, err := coll.Indexes().ListSpecifications(ctx)
	if err != nil {
		return "", err
	}
	for _, spec := range existing {
		if spec.Name == name {
			logger.Infof("index '%s' already exists on collection '%s', skipping creation", name, collection)
			return name, nil
		}
	}

	indexOpts := options.Index()
	if opts != nil {
		if opts.Unique {
			indexOpts.SetUnique(true)
		}
		if opts.ExpireAfter > 0 {
			indexOpts.SetExpireAfterSeconds(int32(opts.ExpireAfter / time.Second))
		}
	}

	created, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: sortDoc(keys), Options: indexOpts})
	if err != nil {
		return "", err
	}
	logger.Infof("index '%s' created on collection '%s'", created, collection)
	return created, nil
}

func (s *RecordStore) DropIndex(ctx context.Context, collection string, name string) error {
	_, err := s.db.Collection(collection).Indexes().DropOne(ctx, name)
	if err != nil {
		return err
	}
	logger.Infof("index '%s' dropped from collection '%s'", name, collection)
	return nil
}
