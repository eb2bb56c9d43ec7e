package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"resumeflow-backend/internal/bootstrap"
	"resumeflow-backend/internal/shared/config"
	"resumeflow-backend/internal/shared/telemetry"
	"resumeflow-backend/internal/workers"
)

func main() {
	cfg := config.MustLoad()

	logger, err := telemetry.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	app, err := bootstrap.Build(cfg, logger)
	if err != nil {
		logger.Fatal("bootstrap", zap.Error(err))
	}
	defer app.Close()

	if app.Extractor == nil {
		logger.Fatal("GEMINI_API_KEY is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	parsePool := workers.NewPool(app.ParseQueue, &workers.ParseWorker{
		Queue:     app.ParseQueue,
		Extractor: app.Extractor,
		Resumes:   app.Resumes,
		Log:       logger,
	}, cfg.ParseConcurrency, logger)

	pdfPool := workers.NewPool(app.PDFQueue, &workers.PDFWorker{
		Queue:         app.PDFQueue,
		Resumes:       app.Resumes,
		Renderer:      app.Renderer,
		Store:         app.Store,
		RenderTimeout: cfg.RenderTimeout,
		Log:           logger,
	}, cfg.PDFConcurrency, logger)

	var wg sync.WaitGroup
	for _, pool := range []*workers.Pool{parsePool, pdfPool} {
		wg.Add(1)
		go func(p *workers.Pool) {
			defer wg.Done()
			p.Run(ctx)
		}(pool)
	}

	<-ctx.Done()
	logger.Info("shutdown requested, draining pools", zap.Duration("timeout", cfg.ShutdownTimeout))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("worker stopped")
	case <-time.After(cfg.ShutdownTimeout):
		logger.Warn("shutdown timeout reached; exiting with in-flight jobs")
	}
}
