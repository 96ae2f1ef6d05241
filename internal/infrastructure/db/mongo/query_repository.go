package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/querynotes/querynotes-api/internal/core/domain"
)

const queriesCollection = "queries"

// QueryRepository stores queries as documents with tags embedded, so every
// mutation is a single-document write.
type QueryRepository struct {
	col *mongo.Collection
}

func NewQueryRepository(db *mongo.Database) *QueryRepository {
	return &QueryRepository{col: db.Collection(queriesCollection)}
}

type queryDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	Title     string             `bson:"title"`
	Text      string             `bson:"text"`
	Tags      []string           `bson:"tags"`
	IsPublic  bool               `bson:"is_public"`
	ShareID   string             `bson:"share_id,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (d queryDocument) toDomain() *domain.Query {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return &domain.Query{
		ID:         d.ID.Hex(),
		OwnerID:    d.UserID,
		Title:      d.Title,
		Text:       d.Text,
		Tags:       tags,
		IsPublic:   d.IsPublic,
		ShareToken: d.ShareID,
		CreatedAt:  d.CreatedAt.UTC(),
	}
}

// ownedFilter matches id only when it belongs to ownerID. An id that is not a
// valid ObjectID cannot match anything.
func ownedFilter(ownerID, id string) (bson.M, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false
	}
	return bson.M{"_id": oid, "user_id": ownerID}, true
}

func (r *QueryRepository) Create(ctx context.Context, q *domain.Query) (*domain.Query, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := queryDocument{
		ID:        primitive.NewObjectID(),
		UserID:    q.OwnerID,
		Title:     q.Title,
		Text:      q.Text,
		Tags:      q.Tags,
		IsPublic:  q.IsPublic,
		ShareID:   q.ShareToken,
		CreatedAt: q.CreatedAt.UTC(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert query: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *QueryRepository) FindByID(ctx context.Context, ownerID, id string) (*domain.Query, error) {
	filter, ok := ownedFilter(ownerID, id)
	if !ok {
		return nil, domain.ErrQueryNotFound
	}
	return r.findOne(ctx, filter)
}

func (r *QueryRepository) findOne(ctx context.Context, filter bson.M) (*domain.Query, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc queryDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrQueryNotFound
		}
		return nil, fmt.Errorf("find query: %w", err)
	}
	return doc.toDomain(), nil
}

// ListByOwner returns the owner's queries, newest first.
func (r *QueryRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Query, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"user_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	defer cur.Close(ctx)

	var docs []queryDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode queries: %w", err)
	}

	out := make([]*domain.Query, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *QueryRepository) ListTags(ctx context.Context, ownerID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	values, err := r.col.Distinct(ctx, "tags", bson.M{"user_id": ownerID})
	if err != nil {
		return nil, fmt.Errorf("distinct tags: %w", err)
	}

	tags := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			tags = append(tags, s)
		}
	}
	sort.Strings(tags)
	return tags, nil
}

func (r *QueryRepository) Update(ctx context.Context, ownerID, id, title, text string, tags []string) (*domain.Query, error) {
	filter, ok := ownedFilter(ownerID, id)
	if !ok {
		return nil, domain.ErrQueryNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"title": title, "text": text, "tags": tags}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc queryDocument
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrQueryNotFound
		}
		return nil, fmt.Errorf("update query: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *QueryRepository) Delete(ctx context.Context, ownerID, id string) error {
	filter, ok := ownedFilter(ownerID, id)
	if !ok {
		return domain.ErrQueryNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete query: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrQueryNotFound
	}
	return nil
}

// MarkPublic flips a private query to public in one conditional update. When
// nothing matches, the query is either missing or was shared concurrently;
// a re-read tells which.
func (r *QueryRepository) MarkPublic(ctx context.Context, ownerID, id, token string) (string, error) {
	filter, ok := ownedFilter(ownerID, id)
	if !ok {
		return "", domain.ErrQueryNotFound
	}
	filter["is_public"] = false

	updateCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"is_public": true, "share_id": token}}
	res, err := r.col.UpdateOne(updateCtx, filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", domain.ErrShareTokenTaken
		}
		return "", fmt.Errorf("share query: %w", err)
	}
	if res.MatchedCount == 1 {
		return token, nil
	}

	current, err := r.FindByID(ctx, ownerID, id)
	if err != nil {
		return "", err
	}
	if !current.IsPublic {
		return "", domain.ErrQueryNotFound
	}
	return current.ShareToken, nil
}

func (r *QueryRepository) FindByShareToken(ctx context.Context, token string) (*domain.Query, error) {
	return r.findOne(ctx, bson.M{"share_id": token, "is_public": true})
}

// EnsureIndexes creates the owner listing index and the unique share token
// index. The partial filter keeps private queries, which have no share_id,
// out of the unique index.
func (r *QueryRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{
			Keys: bson.D{{Key: "share_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"share_id": bson.M{"$type": "string"}}),
		},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
