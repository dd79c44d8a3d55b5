package store

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/phillip/parenting-hub-go/apperr"
	"github.com/phillip/parenting-hub-go/models"
)

// Firestore stores documents in Cloud Firestore. Timestamps come from the
// serverTimestamp tags on models.Record.
type Firestore struct {
	client *firestore.Client
}

// NewFirestoreFromApp opens the Firestore client of a Firebase app.
func NewFirestoreFromApp(ctx context.Context, app *firebase.App) (*Firestore, error) {
	c, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &Firestore{client: c}, nil
}

// NewFirestore opens a client for projectID. FIRESTORE_EMULATOR_HOST is
// honoured by the client library.
func NewFirestore(ctx context.Context, projectID string) (*Firestore, error) {
	if projectID == "" {
		return nil, apperr.Configuration("FIREBASE_PROJECT_ID is required for the firestore store driver")
	}
	c, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &Firestore{client: c}, nil
}

type firestoreSnapshot struct {
	doc *firestore.DocumentSnapshot
}

func (s firestoreSnapshot) ID() string         { return s.doc.Ref.ID }
func (s firestoreSnapshot) DataTo(v any) error { return s.doc.DataTo(v) }

func (f *Firestore) query(collection string, q Query) firestore.Query {
	col := f.client.Collection(collection)
	fq := col.Query
	for _, flt := range q.Filters {
		if flt.Field == models.FieldID {
			if id, ok := flt.Value.(string); ok {
				fq = fq.Where(firestore.DocumentID, "==", col.Doc(id))
				continue
			}
		}
		fq = fq.Where(flt.Field, "==", flt.Value)
	}
	if q.OrderBy != nil {
		dir := firestore.Asc
		if q.OrderBy.Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy.Field, dir)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq
}

func (f *Firestore) Find(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	docs, err := f.query(collection, q).Documents(ctx).GetAll()
	if err != nil {
		return nil, firestoreError("find", err)
	}
	return wrapFirestoreDocs(docs), nil
}

func (f *Firestore) Get(ctx context.Context, collection, id string) (Snapshot, error) {
	doc, err := f.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, firestoreError("get", err)
	}
	return firestoreSnapshot{doc: doc}, nil
}

func (f *Firestore) Insert(ctx context.Context, collection string, doc any) (string, error) {
	ref := f.client.Collection(collection).NewDoc()
	if _, err := ref.Create(ctx, doc); err != nil {
		return "", firestoreError("insert", err)
	}
	return ref.ID, nil
}

func (f *Firestore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	updates := make([]firestore.Update, 0, len(fields)+1)
	for k, v := range fields {
		if k == models.FieldUpdatedAt {
			continue
		}
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	updates = append(updates, firestore.Update{Path: models.FieldUpdatedAt, Value: firestore.ServerTimestamp})

	_, err := f.client.Collection(collection).Doc(id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return firestoreError("update", err)
	}
	return nil
}

func (f *Firestore) Delete(ctx context.Context, collection, id string) error {
	_, err := f.client.Collection(collection).Doc(id).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return firestoreError("delete", err)
	}
	return nil
}

// Watch streams query snapshots until ctx is done or the listener fails.
func (f *Firestore) Watch(ctx context.Context, collection string, q Query, fn func([]Snapshot)) error {
	it := f.query(collection, q).Snapshots(ctx)
	defer it.Stop()
	for {
		qs, err := it.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return firestoreError("watch", err)
		}
		docs, err := qs.Documents.GetAll()
		if err != nil {
			return firestoreError("watch", err)
		}
		fn(wrapFirestoreDocs(docs))
	}
}

func (f *Firestore) Close(context.Context) error {
	return f.client.Close()
}

func wrapFirestoreDocs(docs []*firestore.DocumentSnapshot) []Snapshot {
	out := make([]Snapshot, 0, len(docs))
	for _, d := range docs {
		out = append(out, firestoreSnapshot{doc: d})
	}
	return out
}

// grpcCode maps a gRPC status code onto the transport codes.
func grpcCode(c codes.Code) apperr.Code {
	switch c {
	case codes.PermissionDenied, codes.Unauthenticated:
		return apperr.CodeUnauthorized
	case codes.ResourceExhausted:
		return apperr.CodeQuotaExceeded
	case codes.Unavailable, codes.DeadlineExceeded:
		return apperr.CodeUnavailable
	case codes.Canceled:
		return apperr.CodeCanceled
	case codes.FailedPrecondition, codes.Unimplemented:
		return apperr.CodeNotEnabled
	case codes.InvalidArgument:
		return apperr.CodeInvalidFormat
	}
	return apperr.CodeUnknown
}

func firestoreError(op string, err error) error {
	code := grpcCode(status.Code(err))
	if code == apperr.CodeUnknown {
		code = classify(err)
	}
	if errors.Is(err, context.Canceled) {
		code = apperr.CodeCanceled
	}
	return apperr.Transport("firestore."+op, code, err)
}
