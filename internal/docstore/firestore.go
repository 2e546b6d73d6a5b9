package docstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore is the Cloud Firestore backend. Paths map one to one onto
// Firestore document paths, and Watch uses native query snapshots.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore wraps a client created by the Firebase app.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func mapFirestoreError(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return ErrNotFound
	case codes.Aborted:
		return fmt.Errorf("%w: %v", ErrAborted, err)
	}
	return err
}

func (s *FirestoreStore) Get(ctx context.Context, path string) (*Document, error) {
	if _, _, err := Split(path); err != nil {
		return nil, err
	}
	snap, err := s.client.Doc(path).Get(ctx)
	if err != nil {
		return nil, mapFirestoreError(err)
	}
	return fromSnapshot(snap), nil
}

func fromSnapshot(snap *firestore.DocumentSnapshot) *Document {
	ref := snap.Ref
	return &Document{
		Path: relativePath(ref),
		ID:   ref.ID,
		Data: normalizeMap(snap.Data()),
	}
}

// relativePath rebuilds "coll/doc/..." from a reference, without the database prefix.
func relativePath(ref *firestore.DocumentRef) string {
	var segs []string
	for r := ref; r != nil; {
		segs = append([]string{r.Parent.ID, r.ID}, segs...)
		r = r.Parent.Parent
	}
	return Path(segs...)
}

func (s *FirestoreStore) query(q Query) firestore.Query {
	fq := s.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		fq = fq.Where(f.Field, f.Op, f.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, dir)
		if q.StartAfter != nil {
			fq = fq.StartAfter(q.StartAfter)
		}
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq
}

func (s *FirestoreStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	if !ValidCollection(q.Collection) {
		return nil, ErrInvalidPath
	}
	snaps, err := s.query(q).Documents(ctx).GetAll()
	if err != nil {
		return nil, mapFirestoreError(err)
	}
	docs := make([]*Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, fromSnapshot(snap))
	}
	return docs, nil
}

func (s *FirestoreStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if !ValidCollection(collection) {
		return "", ErrInvalidPath
	}
	ref := s.client.Collection(collection).NewDoc()
	if _, err := ref.Create(ctx, data); err != nil {
		return "", mapFirestoreError(err)
	}
	return ref.ID, nil
}

func (s *FirestoreStore) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	if _, _, err := Split(path); err != nil {
		return err
	}
	var err error
	if merge {
		_, err = s.client.Doc(path).Set(ctx, data, firestore.MergeAll)
	} else {
		_, err = s.client.Doc(path).Set(ctx, data)
	}
	return mapFirestoreError(err)
}

func (s *FirestoreStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if _, _, err := Split(path); err != nil {
		return err
	}
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: v})
	}
	_, err := s.client.Doc(path).Update(ctx, updates)
	return mapFirestoreError(err)
}

func (s *FirestoreStore) Delete(ctx context.Context, path string) error {
	if _, _, err := Split(path); err != nil {
		return err
	}
	_, err := s.client.Doc(path).Delete(ctx)
	return mapFirestoreError(err)
}

func (s *FirestoreStore) Watch(ctx context.Context, q Query) (<-chan Snapshot, error) {
	if !ValidCollection(q.Collection) {
		return nil, ErrInvalidPath
	}
	it := s.query(q).Snapshots(ctx)
	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		defer it.Stop()
		for {
			qs, err := it.Next()
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				if errors.Is(err, iterator.Done) {
					return
				}
				sendLatest(out, Snapshot{Err: mapFirestoreError(err)})
				return
			}
			snaps, err := qs.Documents.GetAll()
			if err != nil {
				sendLatest(out, Snapshot{Err: mapFirestoreError(err)})
				continue
			}
			docs := make([]*Document, 0, len(snaps))
			for _, snap := range snaps {
				docs = append(docs, fromSnapshot(snap))
			}
			sendLatest(out, Snapshot{Docs: docs})
		}
	}()
	return out, nil
}

func (s *FirestoreStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		return fn(ctx, &firestoreTx{client: s.client, tx: t})
	})
	return mapFirestoreError(err)
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// firestoreTx adapts a Firestore transaction. Firestore requires every read
// to happen before the first write.
type firestoreTx struct {
	client *firestore.Client
	tx     *firestore.Transaction
}

func (t *firestoreTx) Get(path string) (*Document, error) {
	if _, _, err := Split(path); err != nil {
		return nil, err
	}
	snap, err := t.tx.Get(t.client.Doc(path))
	if err != nil {
		return nil, mapFirestoreError(err)
	}
	return fromSnapshot(snap), nil
}

func (t *firestoreTx) Set(path string, data map[string]any) error {
	if _, _, err := Split(path); err != nil {
		return err
	}
	return t.tx.Set(t.client.Doc(path), data)
}

func (t *firestoreTx) Delete(path string) error {
	if _, _, err := Split(path); err != nil {
		return err
	}
	return t.tx.Delete(t.client.Doc(path))
}
