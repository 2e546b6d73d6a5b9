package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// documentRow is one document of the SQL backend. Fields live in a JSON column.
type documentRow struct {
	Path       string `gorm:"primaryKey;size:512"`
	Collection string `gorm:"size:512;index"`
	DocID      string `gorm:"size:128"`
	Data       datatypes.JSON
	UpdatedAt  time.Time
}

func (documentRow) TableName() string { return "documents" }

func (r *documentRow) document() (*Document, error) {
	data := map[string]any{}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &data); err != nil {
			return nil, fmt.Errorf("docstore: corrupt document %s: %w", r.Path, err)
		}
	}
	return &Document{Path: r.Path, ID: r.DocID, Data: normalizeFloats(data)}, nil
}

// SQLStore stores documents in a single relational table through GORM.
// Queries are evaluated in process over the rows of one collection.
type SQLStore struct {
	db   *gorm.DB
	feed ChangeFeed
}

// NewSQLStore migrates the documents table and returns the store. A nil feed
// means watchers only see writes made through this process.
func NewSQLStore(db *gorm.DB, feed ChangeFeed) (*SQLStore, error) {
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("docstore: migrate documents table: %w", err)
	}
	if feed == nil {
		feed = NewLocalFeed()
	}
	return &SQLStore{db: db, feed: feed}, nil
}

func (s *SQLStore) Get(ctx context.Context, path string) (*Document, error) {
	if _, _, err := Split(path); err != nil {
		return nil, err
	}
	return getRow(s.db.WithContext(ctx), path)
}

func getRow(db *gorm.DB, path string) (*Document, error) {
	var row documentRow
	if err := db.Where("path = ?", path).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.document()
}

func (s *SQLStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	if !ValidCollection(q.Collection) {
		return nil, ErrInvalidPath
	}
	var rows []documentRow
	if err := s.db.WithContext(ctx).Where("collection = ?", q.Collection).Find(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]*Document, 0, len(rows))
	for i := range rows {
		d, err := rows[i].document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return evaluate(q, docs), nil
}

func (s *SQLStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, Path(collection, id), data, false); err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLStore) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	coll, _, err := Split(path)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields := data
		if merge {
			existing, err := getRow(tx.Clauses(clause.Locking{Strength: "UPDATE"}), path)
			switch {
			case err == nil:
				fields = existing.Data
				for k, v := range data {
					fields[k] = v
				}
			case !errors.Is(err, ErrNotFound):
				return err
			}
		}
		return putRow(tx, path, fields)
	})
	if err != nil {
		return err
	}
	return s.feed.Publish(ctx, coll)
}

func (s *SQLStore) Update(ctx context.Context, path string, fields map[string]any) error {
	coll, _, err := Split(path)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := getRow(tx.Clauses(clause.Locking{Strength: "UPDATE"}), path)
		if err != nil {
			return err
		}
		for k, v := range fields {
			existing.Data[k] = v
		}
		return putRow(tx, path, existing.Data)
	})
	if err != nil {
		return err
	}
	return s.feed.Publish(ctx, coll)
}

func newRow(path string, data map[string]any) (*documentRow, error) {
	coll, id, err := Split(path)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode %s: %w", path, err)
	}
	return &documentRow{Path: path, Collection: coll, DocID: id, Data: datatypes.JSON(raw), UpdatedAt: time.Now()}, nil
}

func putRow(db *gorm.DB, path string, data map[string]any) error {
	row, err := newRow(path, data)
	if err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(row).Error
}

// insertRow fails with a duplicate key if the row exists.
func insertRow(db *gorm.DB, path string, data map[string]any) error {
	row, err := newRow(path, data)
	if err != nil {
		return err
	}
	return db.Create(row).Error
}

func (s *SQLStore) Delete(ctx context.Context, path string) error {
	coll, _, err := Split(path)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Where("path = ?", path).Delete(&documentRow{}).Error; err != nil {
		return err
	}
	return s.feed.Publish(ctx, coll)
}

func (s *SQLStore) Watch(ctx context.Context, q Query) (<-chan Snapshot, error) {
	if !ValidCollection(q.Collection) {
		return nil, ErrInvalidPath
	}
	return watchWithFeed(ctx, s.feed, q, s.Query)
}

// maxTxAttempts bounds how often RunTransaction reruns fn after a write conflict.
const maxTxAttempts = 5

// RunTransaction runs fn in a database transaction. Existing rows read through
// tx are locked; a row that was absent is created with a plain INSERT, so a
// concurrent creator makes this attempt fail and fn runs again on fresh reads.
func (s *SQLStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var (
		touched map[string]struct{}
		err     error
	)
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		touched = make(map[string]struct{})
		err = s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
			return fn(ctx, &sqlTx{db: db, touched: touched, absent: make(map[string]bool)})
		})
		if err == nil || !isWriteConflict(err) || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		if isWriteConflict(err) {
			return fmt.Errorf("%w: %v", ErrAborted, err)
		}
		return err
	}
	for coll := range touched {
		_ = s.feed.Publish(ctx, coll)
	}
	return nil
}

// isWriteConflict reports whether err means another transaction won a race:
// a duplicate key, a serialization failure or a deadlock.
func isWriteConflict(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var coded interface{ SQLState() string }
	if errors.As(err, &coded) {
		switch coded.SQLState() {
		case "23505", "40001", "40P01":
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type sqlTx struct {
	db      *gorm.DB
	touched map[string]struct{}
	// absent holds paths this transaction read as missing.
	absent map[string]bool
}

func (t *sqlTx) Get(path string) (*Document, error) {
	if _, _, err := Split(path); err != nil {
		return nil, err
	}
	doc, err := getRow(t.db.Clauses(clause.Locking{Strength: "UPDATE"}), path)
	if errors.Is(err, ErrNotFound) {
		t.absent[path] = true
	}
	return doc, err
}

func (t *sqlTx) Set(path string, data map[string]any) error {
	coll, _, err := Split(path)
	if err != nil {
		return err
	}
	t.touched[coll] = struct{}{}
	if t.absent[path] {
		delete(t.absent, path)
		return insertRow(t.db, path, data)
	}
	return putRow(t.db, path, data)
}

func (t *sqlTx) Delete(path string) error {
	coll, _, err := Split(path)
	if err != nil {
		return err
	}
	t.touched[coll] = struct{}{}
	return t.db.Where("path = ?", path).Delete(&documentRow{}).Error
}

// normalizeFloats turns integral float64 values decoded from JSON back into int64.
func normalizeFloats(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalizeFloat(v)
	}
	return m
}

func normalizeFloat(v any) any {
	switch t := v.(type) {
	case float64:
		if t == float64(int64(t)) {
			return int64(t)
		}
		return t
	case map[string]any:
		return normalizeFloats(t)
	case []any:
		for i := range t {
			t[i] = normalizeFloat(t[i])
		}
		return t
	default:
		return v
	}
}
