package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/textlift/textlift/internal/api/handlers"
	"github.com/textlift/textlift/internal/api/middleware"
	"github.com/textlift/textlift/internal/auth"
	"github.com/textlift/textlift/internal/config"
	"github.com/textlift/textlift/internal/extract"
	"github.com/textlift/textlift/internal/jobs"
	"github.com/textlift/textlift/internal/ocr"
	"github.com/textlift/textlift/internal/preprocess"
	"github.com/textlift/textlift/internal/progress"
	"github.com/textlift/textlift/internal/queue"
	"github.com/textlift/textlift/internal/raster"
	"github.com/textlift/textlift/internal/storage"
	"github.com/textlift/textlift/web"
)

type Router struct {
	mux    *chi.Mux
	db     *pgxpool.Pool
	redis  *redis.Client
	cfg    *config.Config
	jwt    *auth.JWTMiddleware
	engine ocr.Engine
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, engine ocr.Engine, cfg *config.Config) *Router {
	return &Router{
		mux:    chi.NewRouter(),
		db:     db,
		redis:  rdb,
		cfg:    cfg,
		jwt:    auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
		engine: engine,
	}
}

func (rt *Router) Setup() (http.Handler, error) {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(25, 50)
	r.Use(rl.Limit)

	health := handlers.NewHealthHandler(rt.db, rt.redis, rt.engine)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	store, err := storage.New(rt.cfg.Storage)
	if err != nil {
		return nil, err
	}

	jobSvc := jobs.NewService(rt.db, store, rt.cfg.Storage.Bucket)
	queueClient := queue.NewClient(rt.cfg.Redis)
	tracker := progress.NewTracker(rt.redis)

	pipeline := preprocess.New(rt.cfg.Preprocess)
	rasterizer := raster.NewFitzRasterizer(rt.cfg.Raster.DPI)
	extractor := extract.New(rt.engine, rasterizer, pipeline, rt.cfg.OCR.Languages, rt.cfg.Raster.DPI)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		jobH := handlers.NewJobHandler(jobSvc, queueClient, tracker,
			rt.cfg.Upload.MaxSizeBytes, rt.cfg.Preprocess.Default)
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", jobH.Create)
			r.Get("/", jobH.List)
			r.Get("/{id}", jobH.Get)
			r.Get("/{id}/pages", jobH.Pages)
			r.Get("/{id}/text", jobH.Text)
			r.Delete("/{id}", jobH.Delete)
		})

		extractH := handlers.NewExtractHandler(extractor,
			rt.cfg.Upload.SyncMaxBytes, rt.cfg.Preprocess.Default)
		r.Post("/extract", extractH.Extract)
	})

	// Browser UI.
	r.Handle("/*", web.Handler())

	return r, nil
}
