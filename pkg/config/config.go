package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "supersecretjwtkey"

type Config struct {
	Port           string
	Env            string
	LogLevel       string
	JWTSecret      string
	SessionTTL     time.Duration
	AllowedOrigins []string

	DocstoreBackend    string
	ObjectstoreBackend string

	FirebaseCredentialsPath string
	FirebaseProjectID       string
	FirebaseStorageBucket   string
	MongoURI                string
	MongoDatabase           string
	PostgresURL             string
	RedisURL                string
	CloudinaryURL           string

	NotifyTransport string
	KafkaBrokers    []string
	KafkaTopic      string
	KafkaGroupID    string
	WorkerCount     int

	LikeMode     string
	FeedFanout   int
	MaxUploadMB  int64
	ShutdownWait time.Duration

	TracingEnabled  bool
	TracingExporter string
	OTLPEndpoint    string
	MetricsEnabled  bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("SESSION_TTL", "72h")
	v.SetDefault("ALLOWED_ORIGINS", "*")

	v.SetDefault("DOCSTORE_BACKEND", "memory")
	v.SetDefault("OBJECTSTORE_BACKEND", "memory")
	v.SetDefault("MONGO_DATABASE", "socialmedia")

	v.SetDefault("NOTIFY_TRANSPORT", "direct")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "notifications")
	v.SetDefault("KAFKA_GROUP_ID", "notification-worker")
	v.SetDefault("WORKER_COUNT", 0)

	v.SetDefault("LIKE_MODE", "transactional")
	v.SetDefault("FEED_FANOUT", 8)
	v.SetDefault("MAX_UPLOAD_MB", 10)
	v.SetDefault("SHUTDOWN_WAIT", "10s")

	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_EXPORTER", "stdout")
	v.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("METRICS_ENABLED", true)
}

// Load reads .env if present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	v := viper.New()
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	cfg := &Config{
		Port:           v.GetString("PORT"),
		Env:            v.GetString("APP_ENV"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		SessionTTL:     parseDuration(v.GetString("SESSION_TTL"), 72*time.Hour),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),

		DocstoreBackend:    strings.ToLower(v.GetString("DOCSTORE_BACKEND")),
		ObjectstoreBackend: strings.ToLower(v.GetString("OBJECTSTORE_BACKEND")),

		FirebaseCredentialsPath: v.GetString("FIREBASE_CREDENTIALS_PATH"),
		FirebaseProjectID:       v.GetString("FIREBASE_PROJECT_ID"),
		FirebaseStorageBucket:   v.GetString("FIREBASE_STORAGE_BUCKET"),
		MongoURI:                v.GetString("MONGO_URI"),
		MongoDatabase:           v.GetString("MONGO_DATABASE"),
		PostgresURL:             v.GetString("POSTGRES_URL"),
		RedisURL:                v.GetString("REDIS_URL"),
		CloudinaryURL:           v.GetString("CLOUDINARY_URL"),

		NotifyTransport: strings.ToLower(v.GetString("NOTIFY_TRANSPORT")),
		KafkaBrokers:    splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:      v.GetString("KAFKA_TOPIC"),
		KafkaGroupID:    v.GetString("KAFKA_GROUP_ID"),
		WorkerCount:     v.GetInt("WORKER_COUNT"),

		LikeMode:     strings.ToLower(v.GetString("LIKE_MODE")),
		FeedFanout:   v.GetInt("FEED_FANOUT"),
		MaxUploadMB:  v.GetInt64("MAX_UPLOAD_MB"),
		ShutdownWait: parseDuration(v.GetString("SHUTDOWN_WAIT"), 10*time.Second),

		TracingEnabled:  v.GetBool("TRACING_ENABLED"),
		TracingExporter: v.GetString("TRACING_EXPORTER"),
		OTLPEndpoint:    v.GetString("OTLP_ENDPOINT"),
		MetricsEnabled:  v.GetBool("METRICS_ENABLED"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown backends and missing connection settings.
func (c *Config) Validate() error {
	var errs []error

	switch c.DocstoreBackend {
	case "memory":
	case "firestore":
		if c.FirebaseCredentialsPath == "" {
			errs = append(errs, errors.New("FIREBASE_CREDENTIALS_PATH is required for the firestore backend"))
		}
	case "mongo":
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo backend"))
		}
	case "postgres":
		if c.PostgresURL == "" {
			errs = append(errs, errors.New("POSTGRES_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DOCSTORE_BACKEND %q", c.DocstoreBackend))
	}

	switch c.ObjectstoreBackend {
	case "memory":
	case "firebase":
		if c.FirebaseCredentialsPath == "" || c.FirebaseStorageBucket == "" {
			errs = append(errs, errors.New("FIREBASE_CREDENTIALS_PATH and FIREBASE_STORAGE_BUCKET are required for the firebase object store"))
		}
	case "cloudinary":
		if c.CloudinaryURL == "" {
			errs = append(errs, errors.New("CLOUDINARY_URL is required for the cloudinary object store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown OBJECTSTORE_BACKEND %q", c.ObjectstoreBackend))
	}

	switch c.NotifyTransport {
	case "direct":
	case "kafka":
		if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
			errs = append(errs, errors.New("KAFKA_BROKERS and KAFKA_TOPIC are required for kafka notifications"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFY_TRANSPORT %q", c.NotifyTransport))
	}

	switch c.LikeMode {
	case "transactional", "check-then-act":
	default:
		errs = append(errs, fmt.Errorf("unknown LIKE_MODE %q", c.LikeMode))
	}

	if c.IsProduction() && (c.JWTSecret == defaultJWTSecret || len(c.JWTSecret) < 32) {
		errs = append(errs, errors.New("JWT_SECRET must be set to at least 32 characters in production"))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
