package source

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/masonry/pkg/core/masonry"
	"github.com/matzehuels/masonry/pkg/errors"
)

// DefaultMongoCollection is used when the URI has no collection parameter.
const DefaultMongoCollection = "photos"

const mongoConnectTimeout = 10 * time.Second

func isMongoURI(uri string) bool {
	return strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://")
}

// photoDoc is the stored form of a photo. Seq fixes collection order.
type photoDoc struct {
	Seq           int64 `bson:"seq"`
	masonry.Photo `bson:",inline"`
}

// MongoStore is a photo Store backed by a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	name   string
}

// OpenMongo connects to the database named in uri's path. The collection
// is taken from the "collection" query parameter.
//
//	mongodb://localhost:27017/gallery?collection=photos
func OpenMongo(ctx context.Context, uri string) (*MongoStore, error) {
	clientURI, database, collection, err := parseMongoURI(uri)
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(clientURI))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "connect %s", redactMongoURI(uri))
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeInvalidSource, err, "ping %s", redactMongoURI(uri))
	}

	coll := client.Database(database).Collection(collection)
	if _, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "seq", Value: 1}}}); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create seq index")
	}

	return &MongoStore{
		client: client,
		coll:   coll,
		name:   redactMongoURI(clientURI) + "#" + collection,
	}, nil
}

// parseMongoURI splits the masonry-specific collection parameter from a
// connection string the driver understands.
func parseMongoURI(uri string) (clientURI, database, collection string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", "", errors.Wrap(errors.ErrCodeInvalidSource, err, "parse mongo uri")
	}

	database = strings.Trim(u.Path, "/")
	if database == "" {
		return "", "", "", errors.New(errors.ErrCodeInvalidSource, "mongo uri must name a database (mongodb://host/db)")
	}

	q := u.Query()
	collection = q.Get("collection")
	if collection == "" {
		collection = DefaultMongoCollection
	}
	q.Del("collection")
	u.RawQuery = q.Encode()

	return u.String(), database, collection, nil
}

func redactMongoURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.User == nil {
		return uri
	}
	u.User = url.User(u.User.Username())
	return u.String()
}

// Name returns the connection string without password, tagged with the
// collection.
func (s *MongoStore) Name() string { return s.name }

// Fetch returns one page of photos in insertion order.
func (s *MongoStore) Fetch(ctx context.Context, offset, limit int) ([]masonry.Photo, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "find photos")
	}

	var docs []photoDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "decode photos")
	}

	photos := make([]masonry.Photo, len(docs))
	for i, d := range docs {
		photos[i] = d.Photo
	}
	return photos, nil
}

// Put upserts photos by ID. Existing photos keep their sequence number.
func (s *MongoStore) Put(ctx context.Context, photos []masonry.Photo) error {
	if len(photos) == 0 {
		return nil
	}

	ids := make([]string, len(photos))
	for i, p := range photos {
		ids[i] = p.ID
	}
	existing, err := s.seqs(ctx, ids)
	if err != nil {
		return err
	}
	next, err := s.nextSeq(ctx)
	if err != nil {
		return err
	}

	models := make([]mongo.WriteModel, 0, len(photos))
	for _, p := range photos {
		seq, ok := existing[p.ID]
		if !ok {
			seq = next
			next++
			existing[p.ID] = seq
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: p.ID}}).
			SetReplacement(photoDoc{Seq: seq, Photo: p}).
			SetUpsert(true))
	}

	if _, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "upsert photos")
	}
	return nil
}

func (s *MongoStore) seqs(ctx context.Context, ids []string) (map[string]int64, error) {
	cur, err := s.coll.Find(ctx,
		bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}},
		options.Find().SetProjection(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "lookup photos")
	}

	var docs []struct {
		ID  string `bson:"_id"`
		Seq int64  `bson:"seq"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "decode lookup")
	}

	out := make(map[string]int64, len(docs))
	for _, d := range docs {
		out[d.ID] = d.Seq
	}
	return out, nil
}

func (s *MongoStore) nextSeq(ctx context.Context) (int64, error) {
	var last photoDoc
	err := s.coll.FindOne(ctx, bson.D{},
		options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})).Decode(&last)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "read last seq")
	}
	return last.Seq + 1, nil
}

// Count returns the number of stored photos.
func (s *MongoStore) Count(ctx context.Context) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "count photos")
	}
	return int(n), nil
}

// Drop deletes the collection.
func (s *MongoStore) Drop(ctx context.Context) error {
	return s.coll.Drop(ctx)
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}
