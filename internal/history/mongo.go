package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"visual-spec-compiler/internal/models"
)

const (
	historyCollection  = "generation_history"
	countersCollection = "counters"
)

// mongoRecord is the stored document. The numeric record id doubles as _id.
type mongoRecord struct {
	ID                int64     `bson:"_id"`
	UUID              string    `bson:"uuid"`
	Spec              string    `bson:"spec"`
	GeneratedImageURL string    `bson:"generated_image_url"`
	Status            string    `bson:"status"`
	CreatedAt         time.Time `bson:"created_at"`
}

func (r mongoRecord) toModel() models.GenerationHistory {
	return models.GenerationHistory{
		ID:                r.ID,
		UUID:              r.UUID,
		Spec:              []byte(r.Spec),
		GeneratedImageURL: r.GeneratedImageURL,
		Status:            models.GenerationStatus(r.Status),
		CreatedAt:         r.CreatedAt.UTC(),
	}
}

// MongoStore keeps history in a MongoDB collection. Ids come from a
// per-collection sequence in the counters collection.
type MongoStore struct {
	client   *mongo.Client
	records  *mongo.Collection
	counters *mongo.Collection
	now      clock
}

func newMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		client:   db.Client(),
		records:  db.Collection(historyCollection),
		counters: db.Collection(countersCollection),
		now:      systemClock,
	}
}

// NewMongoStore ensures the indexes exist and returns a store on db.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	s := newMongoStore(db)
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.records.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "uuid", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("generation_history_uuid_idx"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("generation_history_created_at_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("create generation_history indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": historyCollection},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("allocate generation record id: %w", err)
	}
	return counter.Seq, nil
}

func (s *MongoStore) Append(ctx context.Context, rec models.GenerationHistory) (*models.GenerationHistory, error) {
	if !rec.Status.Valid() {
		return nil, fmt.Errorf("invalid generation status %q", rec.Status)
	}
	if len(rec.Spec) == 0 {
		return nil, errors.New("generation record has no spec")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	id, err := s.nextID(ctx)
	if err != nil {
		return nil, err
	}

	if rec.UUID == "" {
		rec.UUID = uuid.NewString()
	}
	rec.ID = id
	rec.CreatedAt = stamp(s.now)

	_, err = s.records.InsertOne(ctx, mongoRecord{
		ID:                rec.ID,
		UUID:              rec.UUID,
		Spec:              string(rec.Spec),
		GeneratedImageURL: rec.GeneratedImageURL,
		Status:            string(rec.Status),
		CreatedAt:         rec.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("insert generation record: %w", err)
	}
	return &rec, nil
}

func (s *MongoStore) GetByUUID(ctx context.Context, id string) (*models.GenerationHistory, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var doc mongoRecord
	err := s.records.FindOne(ctx, bson.M{"uuid": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get generation record: %w", err)
	}
	rec := doc.toModel()
	return &rec, nil
}

func (s *MongoStore) ListAll(ctx context.Context) ([]models.GenerationHistory, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.records.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list generation records: %w", err)
	}
	defer cursor.Close(ctx)

	records := []models.GenerationHistory{}
	for cursor.Next(ctx) {
		var doc mongoRecord
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode generation record: %w", err)
		}
		records = append(records, doc.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list generation records: %w", err)
	}
	return records, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
