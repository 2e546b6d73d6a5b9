package docstore

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// newFirestoreStore connects to the emulator named by FIRESTORE_EMULATOR_HOST.
// Every test gets its own project, so data never leaks between tests.
func newFirestoreStore(t *testing.T) *FirestoreStore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set; skipping Firestore integration test")
	}
	ctx := context.Background()
	project := "docstore-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	client, err := firestore.NewClient(ctx, project)
	require.NoError(t, err)
	s := NewFirestoreStore(client)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// newMongoStore connects to MONGO_URI, which must point at a replica set, and
// uses a throwaway database.
func newMongoStore(t *testing.T) *MongoStore {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set; skipping MongoDB integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database("docstore_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	s, err := NewMongoStore(ctx, client, db, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = s.Close()
	})
	return s
}

func TestIntegration_TransactionToggle(t *testing.T) {
	stores := map[string]func(*testing.T) Store{
		"firestore": func(t *testing.T) Store { return newFirestoreStore(t) },
		"mongo":     func(t *testing.T) Store { return newMongoStore(t) },
	}
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			path := "posts/p1/likes/u1"

			toggle := func() bool {
				var liked bool
				require.NoError(t, s.RunTransaction(ctx, func(_ context.Context, tx Tx) error {
					_, err := tx.Get(path)
					switch {
					case err == nil:
						liked = false
						return tx.Delete(path)
					case errors.Is(err, ErrNotFound):
						liked = true
						return tx.Set(path, map[string]any{"user_id": "u1"})
					default:
						return err
					}
				}))
				return liked
			}

			assert.True(t, toggle())
			_, err := s.Get(ctx, path)
			require.NoError(t, err)

			assert.False(t, toggle())
			_, err = s.Get(ctx, path)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}
