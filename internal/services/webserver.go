package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"teamforge-downloader/internal/common"
	"teamforge-downloader/internal/handlers"
	"teamforge-downloader/internal/interfaces"
	"teamforge-downloader/internal/middleware"
)

// webServer provides the HTTP surface for the front end: batch control,
// ticket listing, archive access and the WebSocket event stream.
type webServer struct {
	config      *common.Config
	server      *http.Server
	logger      arbor.ILogger
	apiHandlers *handlers.APIHandlers
	wsHub       *handlers.WebSocketHub
	running     bool
	startTime   time.Time
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg *common.Config, coordinator interfaces.Coordinator, archive interfaces.Archive,
	wsHub *handlers.WebSocketHub, logger arbor.ILogger) (interfaces.WebService, error) {
	mux := http.NewServeMux()

	apiHandlers := handlers.NewAPIHandlers(cfg, coordinator, archive, logger)

	ws := &webServer{
		config:      cfg,
		logger:      logger,
		apiHandlers: apiHandlers,
		wsHub:       wsHub,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Downloader.Port),
			Handler: mux,
		},
	}

	// Create middleware chain
	logMiddleware := middleware.Logging(logger)
	corsMiddleware := middleware.CORS

	// Register API endpoints with middleware
	mux.HandleFunc("/health", logMiddleware(corsMiddleware(apiHandlers.HealthHandler)))
	mux.HandleFunc("/version", logMiddleware(corsMiddleware(apiHandlers.VersionHandler)))
	mux.HandleFunc("/status", logMiddleware(corsMiddleware(apiHandlers.StatusHandler)))
	mux.HandleFunc("/api/tickets", logMiddleware(corsMiddleware(apiHandlers.TicketsHandler)))
	mux.HandleFunc("/api/fetch", logMiddleware(corsMiddleware(apiHandlers.FetchHandler)))
	mux.HandleFunc("/api/attachments", logMiddleware(corsMiddleware(apiHandlers.AttachmentsHandler)))
	mux.HandleFunc("/api/basedir", logMiddleware(corsMiddleware(apiHandlers.BaseDirHandler)))
	mux.HandleFunc("/api/archive", logMiddleware(corsMiddleware(apiHandlers.ArchiveHandler)))

	// Register WebSocket endpoint
	mux.HandleFunc("/ws", corsMiddleware(wsHub.WebSocketHandler))

	return ws, nil
}

// Start starts the web server
func (ws *webServer) Start(ctx context.Context) error {
	ws.running = true
	ws.startTime = time.Now()

	go func() {
		ws.logger.Info().Int("port", ws.config.Downloader.Port).Msg("Starting web server")
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.logger.Error().Err(err).Msg("Web server error")
		}
	}()
	return nil
}

// Stop stops the web server
func (ws *webServer) Stop() error {
	ws.running = false

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws.logger.Info().Msg("Stopping web server")
	return ws.server.Shutdown(ctx)
}

// IsRunning reports whether the server has been started and not stopped
func (ws *webServer) IsRunning() bool {
	return ws.running
}
