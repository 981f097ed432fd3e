package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	googleauth "tcontas-backend/internal/auth"
	"tcontas-backend/internal/documents"
	"tcontas-backend/internal/extract"
	"tcontas-backend/internal/processes"
	"tcontas-backend/internal/services/health"
	"tcontas-backend/internal/shared/config"
	"tcontas-backend/internal/shared/server"
	"tcontas-backend/internal/shared/storage/db"
	"tcontas-backend/internal/shared/storage/object"
	localstore "tcontas-backend/internal/shared/storage/object/local"
	miniostore "tcontas-backend/internal/shared/storage/object/minio"
	s3store "tcontas-backend/internal/shared/storage/object/s3"
	"tcontas-backend/internal/shared/telemetry"
	"tcontas-backend/internal/users"
)

// App holds the wired dependencies of the API and the sweeper.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Redis  *redis.Client
	Store  object.ObjectStore
	// Files is set when the local store is in use; it verifies signed file URLs.
	Files *localstore.Store

	DocumentsRepo    documents.Repo
	ProcessesRepo    processes.Repo
	UsersRepo        users.Repo
	DocumentsService *documents.Service
	ProcessesService *processes.Service
	UsersService     *users.Service
	Health           *health.Service

	DocumentsHandler *documents.Handler
	ProcessesHandler *processes.Handler
	UsersHandler     *users.Handler
	GoogleAuth       *googleauth.GoogleService
}

// Option adjusts how Build wires the app.
type Option func(*buildOptions)

type buildOptions struct {
	db db.Options
}

// WithDBOptions replaces the server pool options, e.g. for the sweeper.
func WithDBOptions(opts db.Options) Option {
	return func(b *buildOptions) { b.db = opts }
}

// Build wires config -> database, store, extractor -> repositories -> services -> router.
func Build(cfg config.Config, opts ...Option) (*App, error) {
	return BuildContext(context.Background(), cfg, opts...)
}

func BuildContext(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	bo := buildOptions{db: db.OptionsFromEnv(db.DefaultServerOptions())}
	for _, opt := range opts {
		opt(&bo)
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	telemetry.SetLevel(cfg.LogLevel)

	sqlDB, err := buildDB(ctx, cfg, bo.db)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, DB: sqlDB}
	if err := buildStore(ctx, app); err != nil {
		return nil, err
	}
	if err := buildRedis(app); err != nil {
		return nil, err
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		Health:          app.Health,
		DocumentHandler: app.DocumentsHandler,
		ProcessHandler:  app.ProcessesHandler,
		UserHandler:     app.UsersHandler,
		GoogleAuth:      app.GoogleAuth,
		Files:           app.Files,
		Redis:           app.Redis,
	})
	return app, nil
}

// Close releases the database pool and the Redis client.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config, opts db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, app *App) error {
	cfg := app.Config
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		if err != nil {
			return fmt.Errorf("s3 store: %w", err)
		}
		app.Store = store
	case "minio":
		store, err := miniostore.New(ctx, miniostore.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			Bucket:    cfg.MinIO.Bucket,
		})
		if err != nil {
			return fmt.Errorf("minio store: %w", err)
		}
		app.Store = store
	default:
		secret := cfg.SigningSecret
		if strings.TrimSpace(secret) == "" {
			if !isDevLike(cfg.Env) {
				return fmt.Errorf("STORAGE_SIGNING_SECRET is required")
			}
			secret = uuid.NewString()
			telemetry.Warn("bootstrap.ephemeral_signing_secret", map[string]any{"store": "local"})
		}
		store := localstore.New(cfg.LocalStoreDir, cfg.PublicBaseURL, secret)
		app.Store = store
		app.Files = store
	}
	return nil
}

func buildRedis(app *App) error {
	raw := strings.TrimSpace(app.Config.RedisURL)
	if raw == "" {
		return nil
	}
	opts, err := redis.ParseURL(raw)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}
	app.Redis = redis.NewClient(opts)
	return nil
}

func buildServices(app *App) {
	if app.DB != nil {
		app.DocumentsRepo = &documents.PGRepo{DB: app.DB}
		app.ProcessesRepo = &processes.PGRepo{DB: app.DB}
		app.UsersRepo = &users.PGRepo{DB: app.DB}
	} else {
		app.DocumentsRepo = documents.NewMemoryRepo()
		app.ProcessesRepo = processes.NewMemoryRepo()
		app.UsersRepo = users.NewMemoryRepo()
	}

	app.ProcessesService = processes.NewService(app.ProcessesRepo)
	app.UsersService = users.NewService(app.UsersRepo)
	app.DocumentsService = &documents.Service{
		Store:          app.Store,
		Repo:           app.DocumentsRepo,
		Extractor:      extract.New(newRecognizer(), app.Config.OCRLanguage),
		Processes:      app.ProcessesService,
		MaxUploadBytes: app.Config.MaxUploadBytes,
		SearchMinChars: app.Config.SearchMinChars,
		ViewTTL:        app.Config.ViewURLTTL,
		DownloadTTL:    app.Config.DownloadURLTTL,
	}
	app.Health = health.NewService(app.DB)

	app.DocumentsHandler = documents.NewHandler(app.DocumentsService)
	app.ProcessesHandler = processes.NewHandler(app.ProcessesService)
	app.UsersHandler = users.NewHandler(app.UsersService)
	app.GoogleAuth = googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
		app.UsersService,
	)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
