package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"airbnb-etl/models"
)

// fail fast when the cluster is unreachable; there is no retry
const serverSelectionTimeout = 5 * time.Second

// Source reads whole collections from one MongoDB database.
type Source struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a client and forces a round trip by listing the database's
// collections, so a bad URI or unreachable cluster fails here.
func Connect(ctx context.Context, uri, database string) (*Source, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(serverSelectionTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}

	db := client.Database(database)
	if _, err := db.ListCollectionNames(ctx, bson.D{}); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb: list collections in %q: %w", database, err)
	}

	return &Source{client: client, db: db}, nil
}

// Fetch reads every document of the collection into a table. Column order
// follows the field order of the documents.
func (s *Source) Fetch(ctx context.Context, collection string) (*models.Table, error) {
	cur, err := s.db.Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongodb: find %q: %w", collection, err)
	}

	var docs []bson.D
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongodb: read %q: %w", collection, err)
	}

	return DocumentsToTable(collection, docs), nil
}

func (s *Source) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// DocumentsToTable converts decoded documents into a table.
func DocumentsToTable(name string, docs []bson.D) *models.Table {
	t := &models.Table{Name: name, Rows: make([]models.Record, 0, len(docs))}
	for _, d := range docs {
		r := make(models.Record, len(d))
		for _, e := range d {
			t.AddColumn(e.Key)
			r[e.Key] = convertValue(e.Value)
		}
		t.Rows = append(t.Rows, r)
	}
	return t
}

// convertValue maps BSON values onto the cell types the pipeline handles.
func convertValue(v any) any {
	switch x := v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return nil
	case primitive.ObjectID:
		return x.Hex()
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case float32:
		return float64(x)
	case primitive.DateTime:
		return x.Time().UTC()
	case primitive.Timestamp:
		return primitive.DateTime(int64(x.T) * 1000).Time().UTC()
	case primitive.Decimal128:
		return x.String()
	case primitive.Binary:
		return fmt.Sprintf("%x", x.Data)
	case primitive.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = convertValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = convertValue(e)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = convertValue(e.Value)
		}
		return out
	case primitive.M:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = convertValue(e)
		}
		return out
	}
	return v
}
