package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/hotelbooking/config"
	"github.com/Domenick1991/hotelbooking/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrStaleSnapshot is returned by a mirror that already holds a newer copy of
// the booking than the one offered.
var ErrStaleSnapshot = errors.New("mirror holds a newer snapshot")

// Mirror is a secondary copy of the booking records. Writes are upserts keyed
// by the booking id field and never replace a newer copy.
type Mirror interface {
	Name() string
	Upsert(ctx context.Context, booking domain.Booking) error
}

type MongoMirror struct {
	coll *mongo.Collection
}

// ConnectMongo opens a client and verifies it with a ping.
func ConnectMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ConnectTimeoutSec)*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

func NewMongoMirror(ctx context.Context, client *mongo.Client, cfg config.MongoConfig) (*MongoMirror, error) {
	m := &MongoMirror{coll: client.Database(cfg.Database).Collection(cfg.Collection)}
	if err := m.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MongoMirror) Name() string { return "mongo" }

func (m *MongoMirror) ensureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// modifiedAtField stores Booking.LastModified in unix nanoseconds.
const modifiedAtField = "modifiedAt"

func (m *MongoMirror) Upsert(ctx context.Context, booking domain.Booking) error {
	doc, err := mongoDocument(booking)
	if err != nil {
		return fmt.Errorf("encode booking %s: %w", booking.ID, err)
	}

	filter := newerOrMissingFilter(booking.ID.String(), snapshotVersion(booking))
	_, err = m.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		// No match plus the unique id index means a newer document exists.
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("booking %s: %w", booking.ID, ErrStaleSnapshot)
		}
		return fmt.Errorf("upsert booking %s: %w", booking.ID, err)
	}
	return nil
}

// snapshotVersion orders snapshots of one booking. Records without any
// lifecycle stamp get 0.
func snapshotVersion(booking domain.Booking) int64 {
	t := booking.LastModified()
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func mongoDocument(booking domain.Booking) (bson.M, error) {
	data, err := bson.Marshal(booking)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	doc[modifiedAtField] = snapshotVersion(booking)
	return doc, nil
}

// newerOrMissingFilter matches the stored document only when it is not newer
// than modifiedAt.
func newerOrMissingFilter(id string, modifiedAt int64) bson.M {
	return bson.M{
		"id": id,
		"$or": bson.A{
			bson.M{modifiedAtField: bson.M{"$lte": modifiedAt}},
			bson.M{modifiedAtField: bson.M{"$exists": false}},
		},
	}
}
