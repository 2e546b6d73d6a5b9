// Package docstore is the document database boundary: a hierarchy of
// collections and documents addressed by slash-separated paths, with point
// reads, queries, live subscriptions and transactions.
package docstore

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrAborted is returned when a transaction lost a conflict and was not applied.
	ErrAborted = errors.New("docstore: transaction aborted")
	// ErrInvalidPath is returned for paths that do not address a document or collection.
	ErrInvalidPath = errors.New("docstore: invalid path")
)

// Filter operators.
const (
	OpEqual         = "=="
	OpLess          = "<"
	OpLessEqual     = "<="
	OpGreater       = ">"
	OpGreaterEqual  = ">="
	OpArrayContains = "array-contains"
	OpIn            = "in"
)

// Document is a field map stored at Path. ID is the last path segment.
type Document struct {
	Path string
	ID   string
	Data map[string]any
}

// DataTo decodes the document fields into v.
func (d *Document) DataTo(v any) error {
	return Decode(d.Data, v)
}

// Filter is a single field predicate. Values must be strings, bools or numbers.
type Filter struct {
	Field string
	Op    string
	Value any
}

// Query selects documents of one collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Desc       bool
	Limit      int
	// StartAfter is a cursor on the OrderBy field; results begin strictly after it.
	StartAfter any
}

// Where returns a copy of q with an additional filter.
func (q Query) Where(field, op string, value any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Op: op, Value: value})
	return q
}

// Snapshot is the full result set of a watched query at one point in time.
type Snapshot struct {
	Docs []*Document
	Err  error
}

// Tx is the view of the store inside RunTransaction.
// Reads observe the committed state; writes are applied atomically on success.
type Tx interface {
	Get(path string) (*Document, error)
	Set(path string, data map[string]any) error
	Delete(path string) error
}

// Store is implemented by every document backend.
type Store interface {
	Get(ctx context.Context, path string) (*Document, error)
	Query(ctx context.Context, q Query) ([]*Document, error)
	// Add creates a document with a generated id in collection and returns that id.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	// Set writes the document at path. With merge, existing fields not in data are kept.
	Set(ctx context.Context, path string, data map[string]any, merge bool) error
	// Update merges fields into an existing document and returns ErrNotFound if it is absent.
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	// Watch delivers the current result of q and then a fresh result after every
	// change to the collection. The channel is closed when ctx is done.
	Watch(ctx context.Context, q Query) (<-chan Snapshot, error)
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

// Path joins segments into a document or collection path.
func Path(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split returns the parent collection path and the document id of a document path.
func Split(path string) (collection, id string, err error) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) < 2 || len(segs)%2 != 0 {
		return "", "", ErrInvalidPath
	}
	for _, s := range segs {
		if s == "" {
			return "", "", ErrInvalidPath
		}
	}
	return strings.Join(segs[:len(segs)-1], "/"), segs[len(segs)-1], nil
}

// ValidCollection reports whether path has an odd number of non-empty segments.
func ValidCollection(path string) bool {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs)%2 != 1 {
		return false
	}
	for _, s := range segs {
		if s == "" {
			return false
		}
	}
	return true
}

// Write is one operation of a Commit batch.
type Write struct {
	Path   string
	Data   map[string]any
	Delete bool
}

// SetWrite replaces the document at path with data.
func SetWrite(path string, data map[string]any) Write {
	return Write{Path: path, Data: data}
}

// DeleteWrite removes the document at path.
func DeleteWrite(path string) Write {
	return Write{Path: path, Delete: true}
}

// Commit applies writes atomically using the store's transaction primitive.
func Commit(ctx context.Context, s Store, writes ...Write) error {
	return s.RunTransaction(ctx, func(_ context.Context, tx Tx) error {
		for _, w := range writes {
			var err error
			if w.Delete {
				err = tx.Delete(w.Path)
			} else {
				err = tx.Set(w.Path, w.Data)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteCollection deletes every document of a collection, one by one.
// It is not atomic and returns the first error after attempting all deletes.
func DeleteCollection(ctx context.Context, s Store, collection string) error {
	docs, err := s.Query(ctx, Query{Collection: collection})
	if err != nil {
		return err
	}
	var firstErr error
	for _, d := range docs {
		if err := s.Delete(ctx, d.Path); err != nil && !errors.Is(err, ErrNotFound) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Count returns the number of documents matched by q.
func Count(ctx context.Context, s Store, q Query) (int, error) {
	docs, err := s.Query(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}
