package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/textlift/textlift/internal/config"
	"github.com/textlift/textlift/internal/database"
	"github.com/textlift/textlift/internal/extract"
	"github.com/textlift/textlift/internal/jobs"
	"github.com/textlift/textlift/internal/ocr"
	"github.com/textlift/textlift/internal/preprocess"
	"github.com/textlift/textlift/internal/progress"
	"github.com/textlift/textlift/internal/queue"
	"github.com/textlift/textlift/internal/queue/workers"
	"github.com/textlift/textlift/internal/raster"
	"github.com/textlift/textlift/internal/storage"
)

// Tesseract work is CPU-bound; one page at a time per process keeps memory
// predictable on small hosts, with a little headroom for fast jobs.
const concurrency = 4

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	store, err := storage.New(cfg.Storage)
	if err != nil {
		slog.Error("failed to set up storage", "error", err)
		os.Exit(1)
	}

	engine, err := ocr.NewEngine(cfg.OCR)
	if err != nil {
		slog.Error("invalid OCR engine", "error", err)
		os.Exit(1)
	}
	if !engine.Available() {
		slog.Error("OCR engine not available; install Tesseract or point OCR_TESSERACT_BIN at the binary",
			"engine", engine.Name())
		os.Exit(1)
	}

	jobSvc := jobs.NewService(db, store, cfg.Storage.Bucket)
	tracker := progress.NewTracker(rdb)
	pipeline := preprocess.New(cfg.Preprocess)
	rasterizer := raster.NewFitzRasterizer(cfg.Raster.DPI)
	extractor := extract.New(engine, rasterizer, pipeline, cfg.OCR.Languages, cfg.Raster.DPI)

	ocrWorker := workers.NewOCRWorker(jobSvc, extractor, tracker)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency:  concurrency,
			ErrorHandler: asynq.ErrorHandlerFunc(ocrWorker.HandleError),
		},
	)

	mux := asynq.NewServeMux()
	mux.Handle(queue.TypeOCRProcess, asynq.HandlerFunc(ocrWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", concurrency, "engine", engine.Name())
	if err := srv.Run(mux); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
