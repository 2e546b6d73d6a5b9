package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to ":memory:" is a separate database.
	sqlDB.SetMaxOpenConns(1)

	s, err := NewSQLStore(db, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// backends runs fn against every store. Firestore and MongoDB run only when
// their servers are configured, see integration_test.go.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("sql", func(t *testing.T) { fn(t, newSQLiteStore(t)) })
	t.Run("firestore", func(t *testing.T) { fn(t, newFirestoreStore(t)) })
	t.Run("mongo", func(t *testing.T) { fn(t, newMongoStore(t)) })
}

func TestStore_SetGetDelete(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.Get(ctx, "users/u1")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.Set(ctx, "users/u1", map[string]any{"name": "Ann", "age": int64(30)}, false))
		doc, err := s.Get(ctx, "users/u1")
		require.NoError(t, err)
		assert.Equal(t, "u1", doc.ID)
		assert.Equal(t, "users/u1", doc.Path)
		assert.Equal(t, "Ann", doc.Data["name"])
		assert.Equal(t, int64(30), doc.Data["age"])

		require.NoError(t, s.Delete(ctx, "users/u1"))
		_, err = s.Get(ctx, "users/u1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_SetMergeKeepsFields(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "users/u1", map[string]any{"name": "Ann", "photo": "p.png"}, false))
		require.NoError(t, s.Set(ctx, "users/u1", map[string]any{"name": "Bea"}, true))

		doc, err := s.Get(ctx, "users/u1")
		require.NoError(t, err)
		assert.Equal(t, "Bea", doc.Data["name"])
		assert.Equal(t, "p.png", doc.Data["photo"])

		require.NoError(t, s.Set(ctx, "users/u1", map[string]any{"name": "Cid"}, false))
		doc, err = s.Get(ctx, "users/u1")
		require.NoError(t, err)
		_, hasPhoto := doc.Data["photo"]
		assert.False(t, hasPhoto)
	})
}

func TestStore_UpdateMissingDocument(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		err := s.Update(context.Background(), "users/ghost", map[string]any{"name": "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_AddGeneratesID(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		id, err := s.Add(ctx, "users/u1/posts", map[string]any{"title": "hi"})
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		doc, err := s.Get(ctx, Path("users", "u1", "posts", id))
		require.NoError(t, err)
		assert.Equal(t, "hi", doc.Data["title"])
	})
}

func TestStore_QueryScopesToCollection(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "users/a/posts/p1", map[string]any{"n": int64(1)}, false))
		require.NoError(t, s.Set(ctx, "users/b/posts/p2", map[string]any{"n": int64(2)}, false))
		require.NoError(t, s.Set(ctx, "users/a/posts/p1/likes/x", map[string]any{"n": int64(3)}, false))

		docs, err := s.Query(ctx, Query{Collection: "users/a/posts"})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "p1", docs[0].ID)
	})
}

func TestStore_QueryOrderCursorLimit(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i, id := range []string{"a", "b", "c", "d"} {
			require.NoError(t, s.Set(ctx, Path("posts", id), map[string]any{
				"created_at": int64(100 + i),
				"category":   []string{"Food", "Tech"}[i%2],
			}, false))
		}

		docs, err := s.Query(ctx, Query{Collection: "posts", OrderBy: "created_at", Desc: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"d", "c", "b", "a"}, ids(docs))

		docs, err = s.Query(ctx, Query{Collection: "posts", OrderBy: "created_at", Desc: true, StartAfter: int64(102), Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids(docs))

		docs, err = s.Query(ctx, Query{Collection: "posts"}.Where("category", OpEqual, "Tech"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"b", "d"}, ids(docs))

		docs, err = s.Query(ctx, Query{Collection: "posts"}.Where("created_at", OpGreaterEqual, int64(102)))
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"c", "d"}, ids(docs))
	})
}

func TestStore_TransactionAppliesAllOrNothing(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "counters/c", map[string]any{"n": int64(1)}, false))

		boom := errors.New("boom")
		err := s.RunTransaction(ctx, func(_ context.Context, tx Tx) error {
			if err := tx.Set("counters/c", map[string]any{"n": int64(2)}); err != nil {
				return err
			}
			if err := tx.Set("counters/d", map[string]any{"n": int64(9)}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		doc, err := s.Get(ctx, "counters/c")
		require.NoError(t, err)
		assert.Equal(t, int64(1), doc.Data["n"])
		_, err = s.Get(ctx, "counters/d")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, Commit(ctx, s,
			SetWrite("counters/d", map[string]any{"n": int64(4)}),
			DeleteWrite("counters/c"),
		))
		_, err = s.Get(ctx, "counters/c")
		assert.ErrorIs(t, err, ErrNotFound)
		doc, err = s.Get(ctx, "counters/d")
		require.NoError(t, err)
		assert.Equal(t, int64(4), doc.Data["n"])
	})
}

func TestSQLStore_TransactionRetriesLostCreate(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	path := "posts/p1/likes/u1"

	attempts := 0
	var liked bool
	err := s.RunTransaction(ctx, func(_ context.Context, tx Tx) error {
		attempts++
		_, err := tx.Get(path)
		switch {
		case err == nil:
			liked = false
			return tx.Delete(path)
		case !errors.Is(err, ErrNotFound):
			return err
		}
		if attempts == 1 {
			// Another toggle creates the like after our read.
			require.NoError(t, putRow(tx.(*sqlTx).db, path, map[string]any{"by": "other"}))
		}
		liked = true
		return tx.Set(path, map[string]any{"by": "me"})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.True(t, liked)

	doc, err := s.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "me", doc.Data["by"])
}

func TestSQLStore_TransactionGivesUpAfterRepeatedConflicts(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	path := "counters/c"

	attempts := 0
	err := s.RunTransaction(ctx, func(_ context.Context, tx Tx) error {
		attempts++
		if _, err := tx.Get(path); !errors.Is(err, ErrNotFound) {
			return err
		}
		require.NoError(t, putRow(tx.(*sqlTx).db, path, map[string]any{"n": int64(1)}))
		return tx.Set(path, map[string]any{"n": int64(2)})
	})
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, maxTxAttempts, attempts)

	_, err = s.Get(ctx, path)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIsWriteConflict(t *testing.T) {
	assert.True(t, isWriteConflict(gorm.ErrDuplicatedKey))
	assert.True(t, isWriteConflict(sqlStateError("40001")))
	assert.True(t, isWriteConflict(sqlStateError("23505")))
	assert.False(t, isWriteConflict(sqlStateError("42P01")))
	assert.False(t, isWriteConflict(errors.New("connection reset")))
}

type sqlStateError string

func (e sqlStateError) Error() string    { return "sqlstate " + string(e) }
func (e sqlStateError) SQLState() string { return string(e) }

func TestStore_WatchSeesWrites(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		snaps, err := s.Watch(ctx, Query{Collection: "posts/p/likes"})
		require.NoError(t, err)

		first := nextSnapshot(t, snaps)
		require.NoError(t, first.Err)
		assert.Empty(t, first.Docs)

		require.NoError(t, s.Set(ctx, "posts/p/likes/u1", map[string]any{"user_id": "u1"}, false))
		assert.Eventually(t, func() bool {
			select {
			case snap := <-snaps:
				return snap.Err == nil && len(snap.Docs) == 1
			default:
				return false
			}
		}, 2*time.Second, 10*time.Millisecond)

		cancel()
		assert.Eventually(t, func() bool {
			select {
			case _, ok := <-snaps:
				return !ok
			default:
				return false
			}
		}, 2*time.Second, 10*time.Millisecond)
	})
}

func TestDeleteCollection(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "posts/p/likes/a", map[string]any{}, false))
		require.NoError(t, s.Set(ctx, "posts/p/likes/b", map[string]any{}, false))
		require.NoError(t, DeleteCollection(ctx, s, "posts/p/likes"))

		n, err := Count(ctx, s, Query{Collection: "posts/p/likes"})
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestSplit(t *testing.T) {
	coll, id, err := Split("users/u1/posts/p1")
	require.NoError(t, err)
	assert.Equal(t, "users/u1/posts", coll)
	assert.Equal(t, "p1", id)

	for _, bad := range []string{"users", "users/u1/posts", "", "users//x"} {
		_, _, err := Split(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
	assert.True(t, ValidCollection("users/u1/posts"))
	assert.False(t, ValidCollection("users/u1"))
}

func nextSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func ids(docs []*Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}
