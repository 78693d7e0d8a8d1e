package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"weaponcam/internal/auth"
	"weaponcam/internal/config"
	"weaponcam/internal/logger"
	"weaponcam/internal/repository"
	"weaponcam/internal/repository/mysql"
	"weaponcam/internal/repository/sqlite"
	"weaponcam/internal/routes"
	"weaponcam/internal/services"
	"weaponcam/internal/services/ai"
	"weaponcam/internal/services/ai/decode"
	"weaponcam/internal/services/detection"
	"weaponcam/internal/services/eventlog"
	"weaponcam/internal/services/pipeline"
	"weaponcam/internal/services/storage"
	"weaponcam/internal/services/video"
	"weaponcam/internal/services/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config  *config.Config
	logger  *logger.Logger
	repo    repository.LogRepository
	events  *eventlog.Async
	hub     *websocket.HubService
	manager *services.Manager
	models  []*ai.Model
}

// NewApp loads the models, opens the detection log and wires every service.
func NewApp(cfg *config.Config, logger *logger.Logger) (*App, error) {
	repo, err := openRepository(cfg)
	if err != nil {
		return nil, err
	}

	weapon, err := ai.LoadModel("weapon", cfg.WeaponModel, decode.WeaponLabels, logger)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to load weapon model: %w", err)
	}
	loaded := []*ai.Model{weapon}

	var general detection.Predictor
	if m, err := ai.LoadModel("general", cfg.GeneralModel, decode.COCOLabels, logger); err != nil {
		logger.Warning("Could not initialize general detection network: %v", err)
	} else {
		general = m
		loaded = append(loaded, m)
	}

	events := eventlog.NewAsync(repo, cfg.EventQueueSize, logger)
	hub := websocket.NewHubService(video.EncodeJPEG, 16, logger)
	events.Subscribe(hub.PublishLog)

	manager := services.NewManager(services.Dependencies{
		OpenSource: sourceOpener(cfg, logger),
		General:    general,
		Weapon:     weapon,
		Annotator:  video.Annotator{},
		Display:    hub,
		Clips:      storage.NewClipWriter(video.WriterFactory{Codec: cfg.ClipCodec}, logger),
		Events:     events,
	}, cfg, logger)

	return &App{
		config:  cfg,
		logger:  logger,
		repo:    repo,
		events:  events,
		hub:     hub,
		manager: manager,
		models:  loaded,
	}, nil
}

func openRepository(cfg *config.Config) (repository.LogRepository, error) {
	switch cfg.DBDriver {
	case "sqlite", "":
		return sqlite.Open(cfg.DBPath)
	case "mysql":
		conn, err := mysql.Open(cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		return mysql.NewLogRepository(conn), nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
}

func sourceOpener(cfg *config.Config, logger *logger.Logger) services.SourceOpener {
	return func(spec config.SourceSpec) (pipeline.FrameSource, error) {
		if spec.Kind == config.SourceUDP {
			return video.ListenUDP(spec.ID, cfg.UDPPort, cfg.UDPFPS, logger)
		}
		return video.OpenCapture(spec, cfg.DefaultFPS, logger)
	}
}

// Run serves until ctx is cancelled or every source has ended, then shuts
// down in order: HTTP, pipelines (finalizing open clips), the log queue.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.close()

	go a.hub.Run(ctx)

	if err := a.manager.StartAll(ctx); err != nil {
		return err
	}

	if a.config.SessionSecret == "" {
		a.logger.Warning("🔑 SESSION_SECRET not set, sessions will not survive a restart")
	}
	if !auth.IsBcryptHash(a.config.Password) {
		a.logger.Warning("🔑 PASSWORD is stored in plain text, consider a bcrypt hash")
	}

	router := routes.SetupRoutes(routes.Dependencies{
		Sources: a.manager,
		Logs:    a.repo,
		Hub:     a.hub,
		Auth:    auth.NewSessions(a.config.SessionSecret, a.config.SessionTTL),
	}, a.config, a.logger)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: router,
	}

	fmt.Printf("🚀 Weapon Detection Recorder\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("🎥 Sources: %d\n", len(a.config.Sources))
	fmt.Printf("📁 Clips: %s\n", a.config.ClipDirectory)
	fmt.Printf("🗄️  Detection log: %s\n", a.config.DBDriver)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	pipelinesDone := make(chan struct{})
	go func() {
		a.manager.Wait()
		close(pipelinesDone)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("🛑 Shutdown requested")
	case err := <-serverErr:
		runErr = err
	case <-pipelinesDone:
		a.logger.Info("🏁 All sources ended")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warning("HTTP shutdown: %v", err)
	}

	a.manager.Stop()
	return runErr
}

func (a *App) close() {
	if err := a.events.Close(); err != nil {
		a.logger.Warning("Closing detection log queue: %v", err)
	}
	written, dropped := a.events.Stats()
	a.logger.Info("🗄️  Detection log: %d record(s) written, %d dropped", written, dropped)

	if err := a.repo.Close(); err != nil {
		a.logger.Warning("Closing detection log store: %v", err)
	}
	for _, m := range a.models {
		if err := m.Close(); err != nil {
			a.logger.Warning("Closing %s model: %v", m.Name(), err)
		}
	}
}
