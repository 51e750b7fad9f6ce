// Package bootstrap wires configuration, storage, queue, AI and HTTP
// dependencies into a runnable application.
package bootstrap

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"visatrack/internal/ai"
	"visatrack/internal/ai/gemini"
	"visatrack/internal/documents"
	"visatrack/internal/policies"
	"visatrack/internal/processing"
	"visatrack/internal/queue"
	"visatrack/internal/services/health"
	"visatrack/internal/shared/config"
	"visatrack/internal/shared/server"
	"visatrack/internal/shared/storage/db"
	"visatrack/internal/shared/storage/object"
	localstore "visatrack/internal/shared/storage/object/local"
	s3store "visatrack/internal/shared/storage/object/s3"
	"visatrack/internal/uploads"
	"visatrack/internal/users"
)

const aiRetryAttempts = 3

// App holds the shared dependencies of every binary.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client
	AI     ai.Client

	DocumentsRepo documents.Repo
	UsersRepo     users.Repo
	PoliciesRepo  policies.Repo

	DocumentsService *documents.Service
	UsersService     *users.Service
	PoliciesService  *policies.Service
	Processor        DocumentProcessor

	DocumentsHandler *documents.Handler
	UsersHandler     *users.Handler
	PoliciesHandler  *policies.Handler
	UploadsHandler   *uploads.Handler
	Health           *health.Service
}

// DocumentProcessor allows callers to override document processing for tests.
type DocumentProcessor interface {
	Process(ctx context.Context, documentID string) error
}

// Build prepares shared dependencies and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	aiClient := buildAI(cfg)

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
		AI:     aiClient,
	}

	if err := buildServices(ctx, app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           app.Config,
		Health:           app.Health,
		UsersHandler:     app.UsersHandler,
		DocumentsHandler: app.DocumentsHandler,
		PoliciesHandler:  app.PoliciesHandler,
		UploadsHandler:   app.UploadsHandler,
		UserCheck:        app.UsersService.CheckActive,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	// Lambda deployments run migrations out of band; a cold start is no
	// place to alter schemas.
	if !db.IsLambdaRuntime() {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			if isDevLike(cfg.Env) {
				log.Printf("bootstrap: migrations failed; using in-memory repositories: %v", err)
				return nil, nil
			}
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.QueueURL, cfg.AWSRegion)
}

func buildAI(cfg config.Config) ai.Client {
	switch strings.ToLower(strings.TrimSpace(cfg.AIProvider)) {
	case "gemini":
		client, err := gemini.NewClient(cfg.GeminiAPIKey, cfg.AIModel)
		if err != nil {
			log.Printf("bootstrap: gemini unavailable, using placeholder extraction: %v", err)
			return ai.Placeholder{}
		}
		return ai.WithRetry(client, aiRetryAttempts)
	default:
		return ai.Placeholder{}
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(ctx context.Context, app *App) error {
	var (
		docRepo    documents.Repo
		userRepo   users.Repo
		policyRepo policies.Repo
	)
	if app.DB != nil {
		docRepo = &documents.PGRepo{DB: app.DB}
		userRepo = users.NewPGRepo(app.DB)
		policyRepo = policies.NewPGRepo(app.DB)
	} else {
		docRepo = documents.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
		policyRepo = policies.NewMemoryRepo()
	}

	processor := processing.New(docRepo, app.Store, app.AI)

	signer, localSigner, err := buildSigner(ctx, app.Config)
	if err != nil {
		return err
	}

	docSvc := &documents.Service{
		Repo:   docRepo,
		Store:  app.Store,
		Signer: signer,
		Queue:  app.Queue,
		Runner: processor,
	}

	userSvc := users.NewService(userRepo)

	scraper := policies.NewNewsScraper(app.Config.PolicySources)
	policySvc := policies.NewService(policyRepo, scraper, app.AI)

	app.DocumentsRepo = docRepo
	app.UsersRepo = userRepo
	app.PoliciesRepo = policyRepo
	app.DocumentsService = docSvc
	app.UsersService = userSvc
	app.PoliciesService = policySvc
	app.Processor = processor
	app.DocumentsHandler = documents.NewHandler(docSvc)
	app.UsersHandler = users.NewHandler(userSvc)
	app.PoliciesHandler = policies.NewHandler(policySvc)
	app.Health = health.NewService(app.DB, app.Config.Env)
	if localSigner != nil {
		app.UploadsHandler = uploads.NewHandler(localSigner, app.Store, docSvc)
	}

	return nil
}

// buildSigner picks the upload credential source for the configured
// store. The local signer is returned separately so the storage
// endpoint can share it.
func buildSigner(ctx context.Context, cfg config.Config) (documents.PostSigner, *uploads.LocalSigner, error) {
	if cfg.ObjectStoreType == "s3" {
		signer, err := uploads.NewS3PostSigner(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return nil, nil, err
		}
		return signer, nil, nil
	}

	secret := strings.TrimSpace(cfg.StorageSecret)
	if secret == "" {
		secret = randomSecret()
		log.Printf("bootstrap: STORAGE_SECRET empty; upload credentials will not survive a restart")
	}
	signer := &uploads.LocalSigner{Secret: secret, BaseURL: cfg.PublicBaseURL}
	return signer, signer, nil
}

func randomSecret() string {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("bootstrap: read random secret: %v", err))
	}
	return hex.EncodeToString(b[:])
}
