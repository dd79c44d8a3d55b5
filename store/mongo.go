package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/phillip/parenting-hub-go/apperr"
	"github.com/phillip/parenting-hub-go/models"
)

// Mongo stores documents in MongoDB. Ids are ObjectID hex strings so they
// stay opaque to callers. Watch needs a replica set (change streams).
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// ConnectMongo dials uri and pings the server.
func ConnectMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	if uri == "" {
		return nil, apperr.Configuration("MONGO_URI is required for the mongo store driver")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return NewMongo(client, dbName), nil
}

func NewMongo(client *mongo.Client, dbName string) *Mongo {
	return &Mongo{client: client, db: client.Database(dbName)}
}

type mongoSnapshot struct {
	id  string
	raw bson.Raw
}

func (s mongoSnapshot) ID() string         { return s.id }
func (s mongoSnapshot) DataTo(v any) error { return bson.Unmarshal(s.raw, v) }

func newMongoSnapshot(raw bson.Raw) (Snapshot, error) {
	idVal, err := raw.LookupErr(models.FieldMongoID)
	if err != nil {
		return nil, fmt.Errorf("document without _id: %w", err)
	}
	id, ok := idVal.StringValueOK()
	if !ok {
		oid, isOID := idVal.ObjectIDOK()
		if !isOID {
			return nil, fmt.Errorf("unsupported _id type %s", idVal.Type)
		}
		id = oid.Hex()
	}
	return mongoSnapshot{id: id, raw: raw}, nil
}

func (m *Mongo) Find(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	cursor, err := m.db.Collection(collection).Find(ctx, mongoFilter(q), mongoFindOptions(q))
	if err != nil {
		return nil, mongoError("find", err)
	}
	defer cursor.Close(ctx)

	var out []Snapshot
	for cursor.Next(ctx) {
		snap, err := newMongoSnapshot(append(bson.Raw(nil), cursor.Current...))
		if err != nil {
			return nil, apperr.Transport("mongo.find", apperr.CodeInvalidFormat, err)
		}
		out = append(out, snap)
	}
	if err := cursor.Err(); err != nil {
		return nil, mongoError("find", err)
	}
	return out, nil
}

func (m *Mongo) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	raw, err := m.db.Collection(collection).FindOne(ctx, bson.M{models.FieldMongoID: id}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, mongoError("get", err)
	}
	return newMongoSnapshot(raw)
}

// Insert upserts under a fresh id so $currentDate can stamp both timestamps
// with the server clock.
func (m *Mongo) Insert(ctx context.Context, collection string, doc any) (string, error) {
	fields, err := toBSONMap(doc)
	if err != nil {
		return "", apperr.Transport("mongo.insert", apperr.CodeInvalidFormat, err)
	}
	delete(fields, models.FieldMongoID)
	delete(fields, models.FieldCreatedAt)
	delete(fields, models.FieldUpdatedAt)

	id := primitive.NewObjectID().Hex()
	update := bson.M{
		"$set":         fields,
		"$currentDate": bson.M{models.FieldCreatedAt: true, models.FieldUpdatedAt: true},
	}
	if len(fields) == 0 {
		delete(update, "$set")
	}
	_, err = m.db.Collection(collection).UpdateOne(ctx,
		bson.M{models.FieldMongoID: id},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return "", mongoError("insert", err)
	}
	return id, nil
}

func (m *Mongo) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	set := bson.M{}
	for k, v := range fields {
		if k == models.FieldUpdatedAt {
			continue
		}
		set[k] = v
	}
	update := bson.M{"$currentDate": bson.M{models.FieldUpdatedAt: true}}
	if len(set) > 0 {
		update["$set"] = set
	}
	res, err := m.db.Collection(collection).UpdateOne(ctx, bson.M{models.FieldMongoID: id}, update)
	if err != nil {
		return mongoError("update", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) Delete(ctx context.Context, collection, id string) error {
	res, err := m.db.Collection(collection).DeleteOne(ctx, bson.M{models.FieldMongoID: id})
	if err != nil {
		return mongoError("delete", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Watch delivers the query result, then re-runs it after every change event
// on the collection.
func (m *Mongo) Watch(ctx context.Context, collection string, q Query, fn func([]Snapshot)) error {
	stream, err := m.db.Collection(collection).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return mongoError("watch", err)
	}
	defer stream.Close(context.WithoutCancel(ctx))

	snaps, err := m.Find(ctx, collection, q)
	if err != nil {
		return err
	}
	fn(snaps)

	for stream.Next(ctx) {
		snaps, err := m.Find(ctx, collection, q)
		if err != nil {
			return err
		}
		fn(snaps)
	}
	if err := stream.Err(); err != nil {
		return mongoError("watch", err)
	}
	return ctx.Err()
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func mongoFilter(q Query) bson.D {
	filter := bson.D{}
	for _, f := range q.Filters {
		field := f.Field
		if field == models.FieldID {
			field = models.FieldMongoID
		}
		filter = append(filter, bson.E{Key: field, Value: f.Value})
	}
	return filter
}

func mongoFindOptions(q Query) *options.FindOptions {
	opts := options.Find()
	if q.OrderBy != nil {
		dir := 1
		if q.OrderBy.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy.Field, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return opts
}

func toBSONMap(doc any) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func mongoError(op string, err error) error {
	code := apperr.CodeUnknown
	var cmdErr mongo.CommandError
	switch {
	case errors.Is(err, context.Canceled):
		code = apperr.CodeCanceled
	case mongo.IsTimeout(err), mongo.IsNetworkError(err), errors.Is(err, context.DeadlineExceeded):
		code = apperr.CodeUnavailable
	case errors.As(err, &cmdErr) && (cmdErr.Code == 13 || cmdErr.Code == 18):
		code = apperr.CodeUnauthorized
	}
	return apperr.Transport("mongo."+op, code, err)
}
