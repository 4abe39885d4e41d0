package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"visual-spec-compiler/internal/models"
)

const recordSpec = `{"product_name":"Aurora Headphones","scene_description":"on a marble plinth",` +
	`"camera":{"angle":"eye-level","fov":"normal","aspect_ratio":"1:1"},` +
	`"lighting":{"style":"studio soft light","color_temperature":"neutral"},"spec_version":"v1.0"}`

func recordDoc(id int64, uuid string, createdAt time.Time) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "uuid", Value: uuid},
		{Key: "spec", Value: recordSpec},
		{Key: "generated_image_url", Value: "https://mockstorage.dev/images/" + uuid + ".jpg"},
		{Key: "status", Value: "success"},
		{Key: "created_at", Value: createdAt},
	}
}

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	ns := func(mt *mtest.T) string { return mt.DB.Name() + "." + historyCollection }
	created := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)

	mt.Run("Append/AssignsSequenceID", func(mt *mtest.T) {
		store := newMongoStore(mt.DB)
		store.now = fixedClock(created.Add(123456 * time.Microsecond))

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
				{Key: "_id", Value: historyCollection},
				{Key: "seq", Value: int64(42)},
			}}),
			mtest.CreateSuccessResponse(),
		)

		saved, err := store.Append(ctx, testRecord(mt.T, "m-1", models.StatusSuccess))
		require.NoError(mt, err)
		assert.Equal(mt, int64(42), saved.ID)
		assert.Equal(mt, "m-1", saved.UUID)
		assert.Equal(mt, created.Add(123*time.Millisecond), saved.CreatedAt)
	})

	mt.Run("Append/DuplicateUUID", func(mt *mtest.T) {
		store := newMongoStore(mt.DB)

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{{Key: "seq", Value: int64(43)}}}),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}),
		)

		_, err := store.Append(ctx, testRecord(mt.T, "m-1", models.StatusSuccess))
		assert.ErrorIs(mt, err, ErrDuplicate)
	})

	mt.Run("Append/CounterFailure", func(mt *mtest.T) {
		store := newMongoStore(mt.DB)

		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "boom"}))

		_, err := store.Append(ctx, testRecord(mt.T, "m-2", models.StatusFailed))
		assert.Error(mt, err)
	})

	mt.Run("GetByUUID/Found", func(mt *mtest.T) {
		store := newMongoStore(mt.DB)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, recordDoc(7, "m-7", created)))

		got, err := store.GetByUUID(ctx, "m-7")
		require.NoError(mt, err)
		assert.Equal(mt, int64(7), got.ID)
		assert.Equal(mt, models.StatusSuccess, got.Status)
		assert.True(mt, created.Equal(got.CreatedAt))

		spec, err := got.DecodeSpec()
		require.NoError(mt, err)
		assert.Equal(mt, "Aurora Headphones", spec.ProductName())
	})

	mt.Run("GetByUUID/NotFound", func(mt *mtest.T) {
		store := newMongoStore(mt.DB)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))

		_, err := store.GetByUUID(ctx, "missing")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("ListAll/SortsNewestFirst", func(mt *mtest.T) {
		store := newMongoStore(mt.DB)

		first := mtest.CreateCursorResponse(1, ns(mt), mtest.FirstBatch,
			recordDoc(9, "newest", created.Add(time.Hour)),
			recordDoc(3, "older", created),
		)
		last := mtest.CreateCursorResponse(0, ns(mt), mtest.NextBatch)
		mt.AddMockResponses(first, last)
		mt.ClearEvents()

		records, err := store.ListAll(ctx)
		require.NoError(mt, err)
		require.Len(mt, records, 2)
		assert.Equal(mt, "newest", records[0].UUID)
		assert.Equal(mt, "older", records[1].UUID)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "find", evt.CommandName)
		sort, err := evt.Command.Lookup("sort").Document().Elements()
		require.NoError(mt, err)
		require.Len(mt, sort, 2)
		assert.Equal(mt, "created_at", sort[0].Key())
		assert.Equal(mt, int64(-1), sort[0].Value().AsInt64())
		assert.Equal(mt, "_id", sort[1].Key())
		assert.Equal(mt, int64(-1), sort[1].Value().AsInt64())
	})

	mt.Run("ListAll/Empty", func(mt *mtest.T) {
		store := newMongoStore(mt.DB)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))

		records, err := store.ListAll(ctx)
		require.NoError(mt, err)
		assert.NotNil(mt, records)
		assert.Empty(mt, records)
	})

	mt.Run("NewMongoStore/CreatesIndexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		_, err := NewMongoStore(ctx, mt.DB)
		assert.NoError(mt, err)
	})
}
