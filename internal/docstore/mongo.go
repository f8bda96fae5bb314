package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoDocument is the persisted form; _id is the document name.
type mongoDocument struct {
	Name      string    `bson:"_id"`
	Content   string    `bson:"content"`
	Revision  string    `bson:"revision"`
	Message   string    `bson:"message,omitempty"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MongoStore implements Store on a MongoDB collection. Creation relies on the unique
// _id index (duplicate key means another writer created it first) and updates are
// filtered on the expected revision.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(col *mongo.Collection) *MongoStore {
	return &MongoStore{col: col}
}

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

func (m *MongoStore) Fetch(ctx context.Context, name string) (Document, error) {
	if err := validName(name); err != nil {
		return Document{}, err
	}
	var d mongoDocument
	if err := m.col.FindOne(ctx, bson.M{"_id": name}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Document{Name: name}, nil
		}
		return Document{}, fmt.Errorf("%w: fetch %s: %w", ErrStoreUnavailable, name, err)
	}
	if !json.Valid([]byte(d.Content)) {
		return Document{}, fmt.Errorf("%w: %s does not hold valid JSON", ErrStoreUnavailable, name)
	}
	return Document{Name: name, Content: json.RawMessage(d.Content), Revision: Revision(d.Revision)}, nil
}

func (m *MongoStore) Put(ctx context.Context, name string, content json.RawMessage, expected Revision, message string) (Revision, error) {
	if err := validName(name); err != nil {
		return NoRevision, err
	}
	body, err := Encode(content)
	if err != nil {
		return NoRevision, err
	}
	rev := Revision(uuid.NewString())
	now := time.Now().UTC()

	if expected == NoRevision {
		_, err := m.col.InsertOne(ctx, mongoDocument{Name: name, Content: string(body), Revision: string(rev), Message: message, UpdatedAt: now})
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return NoRevision, fmt.Errorf("%w: %s already exists", ErrRevisionConflict, name)
			}
			return NoRevision, fmt.Errorf("%w: put %s: %w", ErrStoreUnavailable, name, err)
		}
		return rev, nil
	}

	filter := bson.M{"_id": name, "revision": string(expected)}
	set := bson.M{"$set": bson.M{"content": string(body), "revision": string(rev), "message": message, "updatedAt": now}}
	res, err := m.col.UpdateOne(ctx, filter, set)
	if err != nil {
		return NoRevision, fmt.Errorf("%w: put %s: %w", ErrStoreUnavailable, name, err)
	}
	if res.MatchedCount == 0 {
		return NoRevision, fmt.Errorf("%w: %s is no longer at %q", ErrRevisionConflict, name, expected)
	}
	return rev, nil
}

// Ping checks connectivity for the readiness probe.
func (m *MongoStore) Ping(ctx context.Context) error {
	return m.col.Database().Client().Ping(ctx, nil)
}
