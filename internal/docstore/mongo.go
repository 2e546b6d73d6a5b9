package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoDocument is the stored shape of one document. The full path is the _id.
type mongoDocument struct {
	Path       string    `bson:"_id"`
	Collection string    `bson:"collection"`
	DocID      string    `bson:"doc_id"`
	Data       bson.M    `bson:"data"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func (m *mongoDocument) document() *Document {
	data, _ := plain(m.Data).(map[string]any)
	if data == nil {
		data = map[string]any{}
	}
	return &Document{Path: m.Path, ID: m.DocID, Data: data}
}

// MongoStore keeps every document in one MongoDB collection keyed by path.
// Watch uses change streams unless a ChangeFeed is supplied; change streams
// and transactions need a replica set.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	feed   ChangeFeed
}

// NewMongoStore uses the "documents" collection of db and ensures its index.
func NewMongoStore(ctx context.Context, client *mongo.Client, db *mongo.Database, feed ChangeFeed) (*MongoStore, error) {
	coll := db.Collection("documents")
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "collection", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("docstore: create mongo index: %w", err)
	}
	return &MongoStore{client: client, coll: coll, feed: feed}, nil
}

func (s *MongoStore) publish(ctx context.Context, collection string) error {
	if s.feed == nil {
		return nil
	}
	return s.feed.Publish(ctx, collection)
}

func (s *MongoStore) Get(ctx context.Context, path string) (*Document, error) {
	if _, _, err := Split(path); err != nil {
		return nil, err
	}
	return mongoGet(ctx, s.coll, path)
}

func mongoGet(ctx context.Context, coll *mongo.Collection, path string) (*Document, error) {
	var m mongoDocument
	if err := coll.FindOne(ctx, bson.M{"_id": path}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m.document(), nil
}

func mongoFilter(q Query) (bson.M, error) {
	and := bson.A{bson.M{"collection": q.Collection}}
	for _, f := range q.Filters {
		field := "data." + f.Field
		switch f.Op {
		case OpEqual, OpArrayContains:
			and = append(and, bson.M{field: f.Value})
		case OpLess:
			and = append(and, bson.M{field: bson.M{"$lt": f.Value}})
		case OpLessEqual:
			and = append(and, bson.M{field: bson.M{"$lte": f.Value}})
		case OpGreater:
			and = append(and, bson.M{field: bson.M{"$gt": f.Value}})
		case OpGreaterEqual:
			and = append(and, bson.M{field: bson.M{"$gte": f.Value}})
		case OpIn:
			and = append(and, bson.M{field: bson.M{"$in": f.Value}})
		default:
			return nil, fmt.Errorf("docstore: unsupported operator %q", f.Op)
		}
	}
	if q.OrderBy != "" && q.StartAfter != nil {
		op := "$gt"
		if q.Desc {
			op = "$lt"
		}
		and = append(and, bson.M{"data." + q.OrderBy: bson.M{op: q.StartAfter}})
	}
	return bson.M{"$and": and}, nil
}

func (s *MongoStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	if !ValidCollection(q.Collection) {
		return nil, ErrInvalidPath
	}
	filter, err := mongoFilter(q)
	if err != nil {
		return nil, err
	}
	dir := 1
	if q.Desc {
		dir = -1
	}
	sort := bson.D{}
	if q.OrderBy != "" {
		sort = append(sort, bson.E{Key: "data." + q.OrderBy, Value: dir})
	}
	sort = append(sort, bson.E{Key: "_id", Value: dir})
	findOptions := options.Find().SetSort(sort)
	if q.Limit > 0 {
		findOptions.SetLimit(int64(q.Limit))
	}

	cursor, err := s.coll.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []mongoDocument
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	docs := make([]*Document, 0, len(rows))
	for i := range rows {
		docs = append(docs, rows[i].document())
	}
	return docs, nil
}

func (s *MongoStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, Path(collection, id), data, false); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MongoStore) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	coll, id, err := Split(path)
	if err != nil {
		return err
	}
	if merge {
		set := bson.M{"collection": coll, "doc_id": id, "updated_at": time.Now()}
		for k, v := range data {
			set["data."+k] = v
		}
		_, err = s.coll.UpdateOne(ctx, bson.M{"_id": path}, bson.M{"$set": set}, options.Update().SetUpsert(true))
	} else {
		doc := mongoDocument{Path: path, Collection: coll, DocID: id, Data: bson.M(data), UpdatedAt: time.Now()}
		_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": path}, doc, options.Replace().SetUpsert(true))
	}
	if err != nil {
		return err
	}
	return s.publish(ctx, coll)
}

func (s *MongoStore) Update(ctx context.Context, path string, fields map[string]any) error {
	coll, _, err := Split(path)
	if err != nil {
		return err
	}
	set := bson.M{"updated_at": time.Now()}
	for k, v := range fields {
		set["data."+k] = v
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": path}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return s.publish(ctx, coll)
}

func (s *MongoStore) Delete(ctx context.Context, path string) error {
	coll, _, err := Split(path)
	if err != nil {
		return err
	}
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": path}); err != nil {
		return err
	}
	return s.publish(ctx, coll)
}

func (s *MongoStore) Watch(ctx context.Context, q Query) (<-chan Snapshot, error) {
	if !ValidCollection(q.Collection) {
		return nil, ErrInvalidPath
	}
	if s.feed != nil {
		return watchWithFeed(ctx, s.feed, q, s.Query)
	}

	pattern := "^" + regexp.QuoteMeta(q.Collection) + "/[^/]+$"
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: bson.D{{Key: "$regex", Value: pattern}}}}}},
	}
	stream, err := s.coll.Watch(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("docstore: open change stream: %w", err)
	}

	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		defer stream.Close(context.Background())
		emit := func() {
			docs, err := s.Query(ctx, q)
			if ctx.Err() != nil {
				return
			}
			sendLatest(out, Snapshot{Docs: docs, Err: err})
		}
		emit()
		for stream.Next(ctx) {
			emit()
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			sendLatest(out, Snapshot{Err: err})
		}
	}()
	return out, nil
}

func (s *MongoStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	var touched map[string]struct{}
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		touched = make(map[string]struct{})
		return nil, fn(sc, &mongoTx{ctx: sc, coll: s.coll, touched: touched})
	})
	if err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.HasErrorLabel("TransientTransactionError") {
			return fmt.Errorf("%w: %v", ErrAborted, err)
		}
		return err
	}
	for coll := range touched {
		_ = s.publish(ctx, coll)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

type mongoTx struct {
	ctx     mongo.SessionContext
	coll    *mongo.Collection
	touched map[string]struct{}
}

func (t *mongoTx) Get(path string) (*Document, error) {
	if _, _, err := Split(path); err != nil {
		return nil, err
	}
	return mongoGet(t.ctx, t.coll, path)
}

func (t *mongoTx) Set(path string, data map[string]any) error {
	coll, id, err := Split(path)
	if err != nil {
		return err
	}
	t.touched[coll] = struct{}{}
	doc := mongoDocument{Path: path, Collection: coll, DocID: id, Data: bson.M(data), UpdatedAt: time.Now()}
	_, err = t.coll.ReplaceOne(t.ctx, bson.M{"_id": path}, doc, options.Replace().SetUpsert(true))
	return err
}

func (t *mongoTx) Delete(path string) error {
	coll, _, err := Split(path)
	if err != nil {
		return err
	}
	t.touched[coll] = struct{}{}
	_, err = t.coll.DeleteOne(t.ctx, bson.M{"_id": path})
	return err
}

// plain converts decoded BSON values into the plain Go values the rest of the
// package works with.
func plain(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plain(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case primitive.DateTime:
		return int64(t)
	default:
		return v
	}
}
