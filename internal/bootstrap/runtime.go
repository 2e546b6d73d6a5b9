package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/broker"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/docstore"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/objectstore"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/observability"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/repositories"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/service"
	"github.com/Ahnjunghyeon/test-login-sub000/pkg/config"
	"github.com/Ahnjunghyeon/test-login-sub000/pkg/firebase"
	"github.com/redis/go-redis/v9"
)

// Runtime holds the connected backends and the services built on them.
type Runtime struct {
	Docs    docstore.Store
	Objects objectstore.Store
	Redis   *redis.Client

	Identity      *identity.Service
	Profiles      *service.ProfileService
	Follows       *service.FollowService
	Composer      *service.Composer
	Tracker       *service.Tracker
	Editor        *service.Editor
	Notifications *service.NotificationService
	Messages      *service.MessageService

	closers []func() error
}

// Stores are the raw backends; tests build a Runtime from memory stores.
type Stores struct {
	Docs     docstore.Store
	Objects  objectstore.Store
	Firebase identity.FirebaseAuth
	Revoker  identity.Revoker
	// Dispatcher delivers notifications; nil selects the in-process dispatcher.
	Dispatcher service.Dispatcher
}

// InitRuntime connects the configured backends and wires the services. A nil
// logger uses the process-wide one.
func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = observability.Logger()
	}
	rt := &Runtime{}
	fail := func(err error) (*Runtime, error) {
		_ = rt.Close()
		return nil, err
	}

	if cfg.RedisURL != "" {
		rdb, err := config.InitRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fail(fmt.Errorf("redis connection failed: %w", err))
		}
		rt.Redis = rdb
		rt.closers = append(rt.closers, rdb.Close)
	}

	var fbApp *firebase.App
	if cfg.DocstoreBackend == "firestore" || cfg.ObjectstoreBackend == "firebase" || cfg.FirebaseCredentialsPath != "" {
		app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseProjectID, cfg.FirebaseStorageBucket)
		if err != nil {
			return fail(fmt.Errorf("firebase initialization failed: %w", err))
		}
		fbApp = app
	}

	docs, err := openDocstore(ctx, cfg, fbApp, rt.Redis)
	if err != nil {
		return fail(err)
	}
	rt.Docs = docs
	rt.closers = append(rt.closers, docs.Close)

	objects, err := openObjectstore(ctx, cfg, fbApp)
	if err != nil {
		return fail(err)
	}
	rt.Objects = objects

	stores := Stores{Docs: docs, Objects: objects}
	if fbApp != nil {
		stores.Firebase = fbApp.AuthClient
	}
	if rt.Redis != nil {
		stores.Revoker = identity.NewRedisRevoker(rt.Redis)
	}

	notifications := repositories.NewDocNotificationRepository(docs)
	switch cfg.NotifyTransport {
	case "kafka":
		writer := broker.NewKafkaWriter(broker.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}, func(err error) {
			logger.Warn("kafka notification delivery failed", "error", err)
		})
		rt.closers = append(rt.closers, writer.Close)
		stores.Dispatcher = service.NewKafkaDispatcher(writer, logger)
	default:
		async := service.NewAsyncDispatcher(notifications, 256, logger)
		async.Start()
		rt.closers = append(rt.closers, func() error { async.Close(); return nil })
		stores.Dispatcher = async
	}

	rt.wire(cfg, stores, logger)
	return rt, nil
}

// NewRuntime wires the services over already opened stores.
func NewRuntime(cfg *config.Config, stores Stores, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = observability.Logger()
	}
	rt := &Runtime{Docs: stores.Docs, Objects: stores.Objects}
	if stores.Dispatcher == nil {
		async := service.NewAsyncDispatcher(repositories.NewDocNotificationRepository(stores.Docs), 256, logger)
		async.Start()
		rt.closers = append(rt.closers, func() error { async.Close(); return nil })
		stores.Dispatcher = async
	}
	rt.wire(cfg, stores, logger)
	return rt
}

func (rt *Runtime) wire(cfg *config.Config, s Stores, logger *slog.Logger) {
	users := repositories.NewDocUserRepository(s.Docs)
	posts := repositories.NewDocPostRepository(s.Docs)
	likes := repositories.NewDocLikeRepository(s.Docs)
	comments := repositories.NewDocCommentRepository(s.Docs)
	follows := repositories.NewDocFollowRepository(s.Docs)
	notifications := repositories.NewDocNotificationRepository(s.Docs)
	messages := repositories.NewDocMessageRepository(s.Docs)

	rt.Profiles = service.NewProfileService(users, follows, s.Objects, logger)
	rt.Identity = identity.NewService(s.Docs, s.Firebase,
		identity.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL),
		s.Revoker, identity.NewEvents(), rt.Profiles, logger)
	rt.Profiles.SetSyncer(rt.Identity)

	rt.Notifications = service.NewNotificationService(notifications, logger)
	rt.Follows = service.NewFollowService(follows, users, s.Dispatcher, logger)
	rt.Tracker = service.NewTracker(posts, likes, comments, rt.Profiles, s.Dispatcher,
		service.LikeMode(cfg.LikeMode), logger)
	rt.Composer = service.NewComposer(posts, follows, users, rt.Tracker, cfg.FeedFanout, logger)
	rt.Editor = service.NewEditor(posts, likes, comments, s.Objects, logger)
	rt.Messages = service.NewMessageService(messages, users, logger)
}

// Close releases the backends in reverse order of opening.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func openDocstore(ctx context.Context, cfg *config.Config, fbApp *firebase.App, rdb *redis.Client) (docstore.Store, error) {
	var feed docstore.ChangeFeed
	if rdb != nil {
		feed = docstore.NewRedisFeed(rdb, "")
	}

	switch cfg.DocstoreBackend {
	case "firestore":
		client, err := fbApp.Firestore(ctx)
		if err != nil {
			return nil, err
		}
		return docstore.NewFirestoreStore(client), nil
	case "mongo":
		client, err := config.InitMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("mongo connection failed: %w", err)
		}
		store, err := docstore.NewMongoStore(ctx, client, client.Database(cfg.MongoDatabase), feed)
		if err != nil {
			config.CloseMongo(client)
			return nil, err
		}
		return store, nil
	case "postgres":
		db, err := config.InitPostgres(cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("postgres connection failed: %w", err)
		}
		if feed == nil {
			feed = docstore.NewLocalFeed()
		}
		store, err := docstore.NewSQLStore(db, feed)
		if err != nil {
			config.ClosePostgres(db)
			return nil, err
		}
		return store, nil
	default:
		return docstore.NewMemoryStore(), nil
	}
}

func openObjectstore(ctx context.Context, cfg *config.Config, fbApp *firebase.App) (objectstore.Store, error) {
	switch cfg.ObjectstoreBackend {
	case "firebase":
		bucket, err := fbApp.Bucket(ctx)
		if err != nil {
			return nil, err
		}
		return objectstore.NewFirebaseStore(bucket, cfg.FirebaseStorageBucket), nil
	case "cloudinary":
		store, err := objectstore.NewCloudinaryStore(cfg.CloudinaryURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return objectstore.NewMemoryStore(), nil
	}
}
