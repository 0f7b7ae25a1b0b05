// Package mongodb provides a catalog.Catalog backed by a MongoDB collection.
//
// Each document describes one item:
//
//	{"itemId": "q-17", "domain": "Process"}
//
// A document without itemId falls back to its _id.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/phrazzld/scry-progress/internal/catalog"
)

// Default collection names per pool.
const (
	FlashcardsCollection = "flashcards"
	QuestionsCollection  = "questions"
)

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// Catalog reads items from one collection.
type Catalog struct {
	col *mongo.Collection
}

var _ catalog.Catalog = (*Catalog)(nil)

// NewCatalog creates a catalog over db.collection.
func NewCatalog(db *mongo.Database, collection string) *Catalog {
	return &Catalog{col: db.Collection(collection)}
}

type domainCount struct {
	Domain string `bson:"_id"`
	Count  int    `bson:"count"`
}

// DomainTotals implements catalog.Catalog with a server-side grouping.
func (c *Catalog) DomainTotals(ctx context.Context) (map[string]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$domain", ""}}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cur, err := c.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate %s: %v", catalog.ErrUnavailable, c.col.Name(), err)
	}
	defer func() { _ = cur.Close(ctx) }()

	totals := make(map[string]int)
	for cur.Next(ctx) {
		var dc domainCount
		if err := cur.Decode(&dc); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", catalog.ErrUnavailable, c.col.Name(), err)
		}
		totals[dc.Domain] += dc.Count
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%w: cursor %s: %v", catalog.ErrUnavailable, c.col.Name(), err)
	}
	return totals, nil
}

type itemDocument struct {
	ObjectID any    `bson:"_id"`
	ItemID   any    `bson:"itemId,omitempty"`
	Domain   string `bson:"domain"`
}

func (d itemDocument) id() string {
	if d.ItemID != nil {
		return fmt.Sprint(d.ItemID)
	}
	switch v := d.ObjectID.(type) {
	case nil:
		return ""
	case interface{ Hex() string }:
		return v.Hex()
	default:
		return fmt.Sprint(v)
	}
}

// ItemDomains implements catalog.Catalog.
func (c *Catalog) ItemDomains(ctx context.Context) (map[string]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1, "itemId": 1, "domain": 1})
	cur, err := c.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find %s: %v", catalog.ErrUnavailable, c.col.Name(), err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var items []catalog.Item
	for cur.Next(ctx) {
		var doc itemDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", catalog.ErrUnavailable, c.col.Name(), err)
		}
		if id := doc.id(); id != "" {
			items = append(items, catalog.Item{ID: id, Domain: doc.Domain})
		}
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%w: cursor %s: %v", catalog.ErrUnavailable, c.col.Name(), err)
	}
	return catalog.Index(items), nil
}
