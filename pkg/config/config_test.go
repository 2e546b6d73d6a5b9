package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := fromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "memory", cfg.DocstoreBackend)
	assert.Equal(t, "memory", cfg.ObjectstoreBackend)
	assert.Equal(t, "direct", cfg.NotifyTransport)
	assert.Equal(t, "transactional", cfg.LikeMode)
	assert.Equal(t, 72*time.Hour, cfg.SessionTTL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 8, cfg.FeedFanout)
	assert.False(t, cfg.IsProduction())
}

func TestFromViper_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("DOCSTORE_BACKEND", "Postgres")
	v.Set("POSTGRES_URL", "postgres://localhost/feed")
	v.Set("KAFKA_BROKERS", "k1:9092, k2:9092,")
	v.Set("NOTIFY_TRANSPORT", "kafka")
	v.Set("SESSION_TTL", "not-a-duration")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DocstoreBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 72*time.Hour, cfg.SessionTTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		set     map[string]any
		wantErr string
	}{
		{name: "unknown docstore", set: map[string]any{"DOCSTORE_BACKEND": "cassandra"}, wantErr: "unknown DOCSTORE_BACKEND"},
		{name: "mongo without uri", set: map[string]any{"DOCSTORE_BACKEND": "mongo"}, wantErr: "MONGO_URI"},
		{name: "firestore without credentials", set: map[string]any{"DOCSTORE_BACKEND": "firestore"}, wantErr: "FIREBASE_CREDENTIALS_PATH"},
		{name: "cloudinary without url", set: map[string]any{"OBJECTSTORE_BACKEND": "cloudinary"}, wantErr: "CLOUDINARY_URL"},
		{name: "unknown like mode", set: map[string]any{"LIKE_MODE": "optimistic"}, wantErr: "LIKE_MODE"},
		{name: "production default secret", set: map[string]any{"APP_ENV": "production"}, wantErr: "JWT_SECRET"},
		{name: "production short secret", set: map[string]any{"APP_ENV": "production", "JWT_SECRET": "short"}, wantErr: "JWT_SECRET"},
		{name: "production strong secret", set: map[string]any{"APP_ENV": "production", "JWT_SECRET": strings.Repeat("s", 32)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := fromViper(v)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
