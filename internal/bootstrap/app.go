package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"resumeflow-backend/internal/ai"
	"resumeflow-backend/internal/cache"
	"resumeflow-backend/internal/jobs"
	"resumeflow-backend/internal/queue"
	"resumeflow-backend/internal/render"
	"resumeflow-backend/internal/resumes"
	"resumeflow-backend/internal/shared/auth"
	"resumeflow-backend/internal/shared/config"
	"resumeflow-backend/internal/shared/server"
	"resumeflow-backend/internal/shared/storage/db"
	"resumeflow-backend/internal/shared/storage/object"
	localstore "resumeflow-backend/internal/shared/storage/object/local"
	s3store "resumeflow-backend/internal/shared/storage/object/s3"
	"resumeflow-backend/internal/workers"
)

const (
	ParseQueueName = "parse-resume"
	PDFQueueName   = "generate-pdf"
)

// App holds shared dependencies for the API and worker processes.
type App struct {
	Config config.Config
	Log    *zap.Logger
	Router *gin.Engine

	DB    *sql.DB
	Cache cache.Cache
	Store object.Store

	ParseQueue queue.Queue
	PDFQueue   queue.Queue

	Resumes   *resumes.Service
	Extractor workers.ResumeParser
	Renderer  workers.HTMLRenderer

	gemini *ai.GeminiClient
}

// Build prepares shared dependencies and assembles the router. With an
// empty DATABASE_URL or REDIS_ADDR outside production, it degrades to
// in-memory repositories and queues so the stack runs without backing
// services.
func Build(cfg config.Config, log *zap.Logger) (*App, error) {
	ctx := context.Background()

	app := &App{Config: cfg, Log: log}

	if err := buildDB(ctx, app); err != nil {
		return nil, err
	}
	if err := buildCacheAndQueues(app); err != nil {
		return nil, err
	}
	if err := buildStore(ctx, app); err != nil {
		return nil, err
	}

	var repo resumes.Repo
	if app.DB != nil {
		repo = &resumes.PGRepo{DB: app.DB}
	} else {
		repo = resumes.NewMemoryRepo()
	}
	app.Resumes = resumes.NewService(repo, app.Cache, log)

	if err := buildAI(ctx, app); err != nil {
		return nil, err
	}
	app.Renderer = render.NewPDFRenderer()

	resumeHandler := resumes.NewHandler(app.Resumes, improveAdapter(app), log)
	jobsHandler := jobs.NewHandler(app.ParseQueue, app.PDFQueue, app.Resumes, cfg.UploadDir, log)

	secret := cfg.JWTSecret
	if secret == "" && isDevLike(cfg.Env) {
		app.Log.Warn("JWT_SECRET empty; using insecure dev secret")
		secret = "dev-secret"
	}
	verifier, err := auth.NewVerifier(secret)
	if err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:   cfg,
		Log:      log,
		Verifier: verifier,
		Handlers: []server.RouteRegistrar{resumeHandler, jobsHandler},
	})

	return app, nil
}

// Close releases connections held by the app.
func (a *App) Close() error {
	var firstErr error
	if a.gemini != nil {
		if err := a.gemini.Close(); err != nil {
			firstErr = err
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func buildDB(ctx context.Context, app *App) error {
	cfg := app.Config
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			app.Log.Info("DATABASE_URL empty; using in-memory repositories")
			return nil
		}
		return fmt.Errorf("DATABASE_URL is required")
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.DefaultServerOptions())
	if err != nil {
		if isDevLike(cfg.Env) {
			app.Log.Warn("database connect failed; using in-memory repositories", zap.Error(err))
			return nil
		}
		return err
	}
	app.DB = sqlDB
	return nil
}

func buildCacheAndQueues(app *App) error {
	cfg := app.Config
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		if !isDevLike(cfg.Env) {
			return fmt.Errorf("REDIS_ADDR is required")
		}
		app.Log.Info("REDIS_ADDR empty; using in-memory cache and queues")
		app.Cache = cache.NewMemoryCache()
		app.ParseQueue = queue.NewMemoryQueue(ParseQueueName, queue.DefaultOptions())
		app.PDFQueue = queue.NewMemoryQueue(PDFQueueName, queue.DefaultOptions())
		return nil
	}

	client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	app.Cache = cache.NewRedisCache(client, app.Log)
	app.ParseQueue = queue.NewRedisQueue(client, ParseQueueName, queue.DefaultOptions())
	app.PDFQueue = queue.NewRedisQueue(client, PDFQueueName, queue.DefaultOptions())
	return nil
}

func buildStore(ctx context.Context, app *App) error {
	cfg := app.Config
	switch cfg.ObjectStoreType {
	case "s3":
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return fmt.Errorf("build s3 store: %w", err)
		}
		app.Store = store
	default:
		app.Store = localstore.New(cfg.LocalStoreDir, cfg.PublicBaseURL)
	}
	return nil
}

func buildAI(ctx context.Context, app *App) error {
	cfg := app.Config
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		if !isDevLike(cfg.Env) {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
		app.Log.Warn("GEMINI_API_KEY empty; resume parsing and improvement are disabled")
		return nil
	}
	client, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return fmt.Errorf("build gemini client: %w", err)
	}
	app.gemini = client
	app.Extractor = ai.NewExtractor(client)
	return nil
}

// improveAdapter bridges the ai improver into the resumes handler without
// the resumes package importing ai.
func improveAdapter(app *App) resumes.ImproveFunc {
	return func(ctx context.Context, summary *string, projects []resumes.Project, skills resumes.Skills, jobDescription string) (resumes.ImprovedSections, error) {
		if app.gemini == nil {
			return resumes.ImprovedSections{}, fmt.Errorf("ai is not configured")
		}
		improver := ai.NewImprover(app.gemini)
		result, err := improver.ImproveResume(ctx, ai.PartialResume{
			Summary:  summary,
			Projects: projects,
			Skills:   skills,
		}, jobDescription)
		if err != nil {
			return resumes.ImprovedSections{}, err
		}
		return resumes.ImprovedSections{
			Summary:  result.Improved.Summary,
			Projects: result.Improved.Projects,
			Skills:   result.Improved.Skills,
			Job:      result.Job,
		}, nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}
