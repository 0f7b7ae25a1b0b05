package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phrazzld/scry-progress/internal/ciutil"
)

func TestItemDocumentID(t *testing.T) {
	t.Parallel()

	oid := primitive.NewObjectID()
	assert.Equal(t, "q-1", itemDocument{ItemID: "q-1", ObjectID: oid}.id())
	assert.Equal(t, "42", itemDocument{ItemID: int32(42)}.id())
	assert.Equal(t, oid.Hex(), itemDocument{ObjectID: oid}.id())
	assert.Equal(t, "7", itemDocument{ObjectID: int64(7)}.id())
	assert.Equal(t, "", itemDocument{}.id())
}

// TestCatalog_Integration runs against a live server when one is configured.
func TestCatalog_Integration(t *testing.T) {
	uri := ciutil.RequireService(t, "mongo", ciutil.TestMongoURI(nil))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := Connect(ctx, uri)
	require.NoError(t, err)
	defer func() { _ = client.Disconnect(context.Background()) }()

	db := client.Database("scry_test_" + uuid.NewString()[:8])
	defer func() { _ = db.Drop(context.Background()) }()

	_, err = db.Collection(QuestionsCollection).InsertMany(ctx, []any{
		bson.M{"itemId": "q-1", "domain": "People"},
		bson.M{"itemId": "q-2", "domain": "People"},
		bson.M{"itemId": 3, "domain": "Process"},
		bson.M{"_id": "q-4"},
	})
	require.NoError(t, err)

	c := NewCatalog(db, QuestionsCollection)

	totals, err := c.DomainTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"People": 2, "Process": 1, "": 1}, totals)

	index, err := c.ItemDomains(ctx)
	require.NoError(t, err)
	assert.Equal(t, "People", index["q-1"])
	assert.Equal(t, "Process", index["3"])
	assert.Equal(t, "", index["q-4"])
	assert.Len(t, index, 4)
}
