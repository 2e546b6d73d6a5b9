package docstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps documents in process memory. It backs tests and the
// "memory" backend; transactions are serialized by a single lock.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]any
	txMu sync.Mutex
	feed *LocalFeed
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]map[string]any),
		feed: NewLocalFeed(),
	}
}

func (s *MemoryStore) Get(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, id, err := Split(path)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[path]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{Path: path, ID: id, Data: cloneMap(data)}, nil
}

func (s *MemoryStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidCollection(q.Collection) {
		return nil, ErrInvalidPath
	}
	s.mu.RLock()
	var docs []*Document
	for path, data := range s.docs {
		coll, id, err := Split(path)
		if err != nil || coll != q.Collection {
			continue
		}
		docs = append(docs, &Document{Path: path, ID: id, Data: cloneMap(data)})
	}
	s.mu.RUnlock()
	return evaluate(q, docs), nil
}

func (s *MemoryStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, Path(collection, id), data, false); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	coll, _, err := Split(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if existing, ok := s.docs[path]; ok && merge {
		for k, v := range data {
			existing[k] = cloneValue(v)
		}
	} else {
		s.docs[path] = cloneMap(data)
	}
	s.mu.Unlock()
	return s.feed.Publish(ctx, coll)
}

func (s *MemoryStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	coll, _, err := Split(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	existing, ok := s.docs[path]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	for k, v := range fields {
		existing[k] = cloneValue(v)
	}
	s.mu.Unlock()
	return s.feed.Publish(ctx, coll)
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	coll, _, err := Split(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.docs, path)
	s.mu.Unlock()
	return s.feed.Publish(ctx, coll)
}

func (s *MemoryStore) Watch(ctx context.Context, q Query) (<-chan Snapshot, error) {
	if !ValidCollection(q.Collection) {
		return nil, ErrInvalidPath
	}
	return watchWithFeed(ctx, s.feed, q, s.Query)
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memoryTx{ctx: ctx, store: s, writes: make(map[string]*Write)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	touched := make(map[string]struct{})
	s.mu.Lock()
	for _, path := range tx.order {
		w := tx.writes[path]
		if w.Delete {
			delete(s.docs, path)
		} else {
			s.docs[path] = cloneMap(w.Data)
		}
		coll, _, _ := Split(path)
		touched[coll] = struct{}{}
	}
	s.mu.Unlock()

	for coll := range touched {
		_ = s.feed.Publish(ctx, coll)
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

type memoryTx struct {
	ctx    context.Context
	store  *MemoryStore
	writes map[string]*Write
	order  []string
}

func (t *memoryTx) Get(path string) (*Document, error) {
	if w, ok := t.writes[path]; ok {
		if w.Delete {
			return nil, ErrNotFound
		}
		_, id, _ := Split(path)
		return &Document{Path: path, ID: id, Data: cloneMap(w.Data)}, nil
	}
	return t.store.Get(t.ctx, path)
}

func (t *memoryTx) Set(path string, data map[string]any) error {
	if _, _, err := Split(path); err != nil {
		return err
	}
	t.record(path, &Write{Path: path, Data: cloneMap(data)})
	return nil
}

func (t *memoryTx) Delete(path string) error {
	if _, _, err := Split(path); err != nil {
		return err
	}
	t.record(path, &Write{Path: path, Delete: true})
	return nil
}

func (t *memoryTx) record(path string, w *Write) {
	if _, ok := t.writes[path]; !ok {
		t.order = append(t.order, path)
	}
	t.writes[path] = w
}
