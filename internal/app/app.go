package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Brownie44l1/smartseva-api/internal/config"
	"github.com/Brownie44l1/smartseva-api/internal/handlers"
	"github.com/Brownie44l1/smartseva-api/internal/hub"
	"github.com/Brownie44l1/smartseva-api/internal/model"
	"github.com/Brownie44l1/smartseva-api/internal/preprocess"
	"github.com/Brownie44l1/smartseva-api/internal/repository/sqlite"
	"github.com/Brownie44l1/smartseva-api/internal/triage"
)

const shutdownTimeout = 10 * time.Second

// App owns the process-wide model handle and the pipeline built on it.
type App struct {
	config   *config.Config
	logger   *slog.Logger
	metadata model.Metadata
	params   preprocess.Params
	loader   *model.Loader
	pipeline *triage.Pipeline
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	metadata, err := model.LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return nil, err
	}

	params, err := metadata.Params()
	if err != nil {
		return nil, fmt.Errorf("invalid preprocessing metadata: %w", err)
	}

	labels, err := triage.BindLabels(metadata.MainClasses, metadata.SeverityClasses)
	if err != nil {
		return nil, fmt.Errorf("failed to bind model classes: %w", err)
	}

	mode, err := triage.ParseMode(cfg.ConsistencyMode)
	if err != nil {
		return nil, err
	}

	normalizer, err := newNormalizer(cfg.Normalizer, params)
	if err != nil {
		return nil, err
	}

	source := newSource(cfg)
	loader := model.NewLoader(source.String(), model.OpenONNX(cfg.ONNXLibraryPath, source, metadata), logger)
	adapter := model.NewAdapter(loader, metadata)

	pipeline := triage.NewPipeline(
		normalizer,
		adapter,
		triage.NewResolver(labels, mode),
		cfg.InferenceTimeout(),
		logger,
	)

	logger.Info("pipeline ready",
		"model", source.String(),
		"normalizer", cfg.Normalizer,
		"consistency_mode", string(mode),
		"main_classes", metadata.MainClasses,
		"severity_classes", metadata.SeverityClasses,
	)

	return &App{
		config:   cfg,
		logger:   logger,
		metadata: metadata,
		params:   params,
		loader:   loader,
		pipeline: pipeline,
	}, nil
}

func (a *App) Pipeline() *triage.Pipeline {
	return a.pipeline
}

func (a *App) Close() {
	a.loader.Close()
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	db, err := sqlite.New(a.config.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	feed := hub.New(a.logger)
	go feed.Run(ctx)

	// Warm the model in the background; requests share this load.
	go func() {
		if _, err := a.loader.Get(ctx); err != nil {
			a.logger.Warn("model warm-up failed, will retry on first request", "err", err)
		}
	}()

	handler := handlers.NewHandler(
		a.pipeline,
		sqlite.NewComplaintRepository(db),
		feed,
		a.loader,
		handlers.Options{
			Params:         a.params,
			UploadDir:      a.config.UploadDir,
			MaxUploadBytes: a.config.MaxUploadBytes(),
		},
		a.logger,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           handlers.NewRouter(handler, feed.ServeWS),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "port", a.config.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server shutdown: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}

func newSource(cfg *config.Config) model.Source {
	if cfg.ModelBucket == "" {
		return model.LocalSource{Path: cfg.ModelPath}
	}
	client := model.NewS3Client(model.S3Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	return model.NewS3Source(client, cfg.ModelBucket, cfg.ModelKey, cfg.ModelCacheDir)
}

// normalizers holds the image backends compiled into this binary. The
// opencv backend registers itself only in builds tagged "opencv".
var normalizers = map[string]func(preprocess.Params) triage.Normalizer{
	"std": func(p preprocess.Params) triage.Normalizer { return preprocess.NewNormalizer(p) },
}

func newNormalizer(name string, params preprocess.Params) (triage.Normalizer, error) {
	build, ok := normalizers[name]
	if !ok {
		return nil, fmt.Errorf("normalizer %q is not compiled in (build with -tags %s)", name, name)
	}
	return build(params), nil
}
