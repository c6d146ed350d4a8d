package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo defaults.
const (
	DefaultMongoDatabase   = "apkfetch"
	DefaultMongoCollection = "state"
)

// MongoConfig holds connection settings for [MongoStore].
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoStore keeps one document per app, keyed by app name.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// mongoRecord is the stored document shape.
type mongoRecord struct {
	App             string    `bson:"_id"`
	AppVersion      string    `bson:"app_version"`
	AppSource       string    `bson:"app_source,omitempty"`
	PatchesVersions []string  `bson:"patches_versions"`
	PatchesSources  []string  `bson:"patches_sources"`
	CLIVersion      string    `bson:"cli_version"`
	PatchedAt       time.Time `bson:"patched_at"`
}

// NewMongoStore connects to MongoDB and verifies the connection with a ping.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	db, coll := cfg.Database, cfg.Collection
	if db == "" {
		db = DefaultMongoDatabase
	}
	if coll == "" {
		coll = DefaultMongoCollection
	}
	return &MongoStore{client: client, coll: client.Database(db).Collection(coll)}, nil
}

// Get returns the record of app.
func (s *MongoStore) Get(ctx context.Context, app string) (Record, error) {
	var doc mongoRecord
	err := s.coll.FindOne(ctx, bson.M{"_id": app}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("mongo find %s: %w", app, err)
	}
	return Record{
		AppVersion:      doc.AppVersion,
		AppSource:       doc.AppSource,
		PatchesVersions: doc.PatchesVersions,
		PatchesSources:  doc.PatchesSources,
		CLIVersion:      doc.CLIVersion,
		PatchedAt:       doc.PatchedAt,
	}, nil
}

// Put upserts the record of app.
func (s *MongoStore) Put(ctx context.Context, app string, rec Record) error {
	doc := mongoRecord{
		App:             app,
		AppVersion:      rec.AppVersion,
		AppSource:       rec.AppSource,
		PatchesVersions: rec.PatchesVersions,
		PatchesSources:  rec.PatchesSources,
		CLIVersion:      rec.CLIVersion,
		PatchedAt:       rec.PatchedAt,
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": app}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo upsert %s: %w", app, err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
