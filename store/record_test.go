package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestStampNew(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	doc := stampNew(bson.M{"name": "x"}, now)

	assert.Equal(t, now, doc["created_at"])
	assert.Equal(t, now, doc["updated_at"])
	assert.Equal(t, "x", doc["name"])
}

func TestIndexNameFor(t *testing.T) {
	assert.Equal(t, "user_id_1", indexNameFor([]SortField{{Field: "user_id"}}))
	assert.Equal(t, "last_active_-1", indexNameFor([]SortField{{Field: "last_active", Desc: true}}))
	assert.Equal(t, "a_1_b_-1", indexNameFor([]SortField{{Field: "a"}, {Field: "b", Desc: true}}))
}

func TestSortDocOrder(t *testing.T) {
	d := sortDoc([]SortField{{Field: "created_at", Desc: true}, {Field: "name"}})

	assert.Equal(t, bson.D{
		{Key: "created_at", Value: -1},
		{Key: "name", Value: 1},
	}, d)
}

func TestProjection(t *testing.T) {
	assert.Equal(t, bson.M{"name": 1, "email": 1}, projection([]string{"name", "email"}))
}
