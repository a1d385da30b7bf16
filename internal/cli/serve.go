package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/antoniostano/papertutor/internal/archive"
	"github.com/antoniostano/papertutor/internal/httpapi"
	"github.com/antoniostano/papertutor/internal/observability"
	"github.com/antoniostano/papertutor/internal/orchestrator"
	"github.com/antoniostano/papertutor/internal/session"
	"github.com/antoniostano/papertutor/internal/tutor"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web UI and the tutor API",
	Long: `Serve the browser UI, the REST API and the websocket chat endpoint.

Configuration is read from the environment (LLM_PROVIDER, OPENAI_API_KEY,
DATABASE_URL, APP_BIND_ADDR, ...). When DATABASE_URL is empty, exchanges are
archived in memory only.

Examples:
  papertutor serve
  LLM_PROVIDER=mock papertutor serve --addr :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides APP_BIND_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.BindAddr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := archive.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("archive store init: %w", err)
	}
	recorder := archive.NewRecorder(store, cfg.ArchiveRedactPII)
	defer recorder.Close()
	archiveMode := "in-memory"
	if cfg.DatabaseURL != "" {
		archiveMode = "postgres"
	}

	adapter, err := newAdapter(cfg)
	if err != nil {
		return fmt.Errorf("model adapter init: %w", err)
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	orch := orchestrator.New(orchestrator.Deps{
		Sessions:  sessions,
		Extractor: newExtractor(int64(cfg.UploadMaxBytes), logger),
		Model:     adapter,
		Provider:  cfg.LLMProvider,
		TutorOptions: tutor.Options{
			MaxPaperChars:  cfg.PaperMaxChars,
			WarnPaperChars: cfg.PaperWarnChars,
		},
		Recorder: recorder,
		Metrics:  metrics,
		Logger:   logger,
	})

	api := httpapi.New(cfg, orch, metrics, logger, archiveMode)
	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	sessions.StartJanitor(runCtx, 30*time.Second)

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"addr", cfg.BindAddr,
			"provider", cfg.LLMProvider,
			"model", cfg.LLMModel,
			"archive", archiveMode,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
		close(listenErr)
	}()

	select {
	case err, ok := <-listenErr:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}

	logger.Info("shutdown complete")
	return nil
}
