package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"teamforge-downloader/internal/common"
	"teamforge-downloader/internal/interfaces"
	"teamforge-downloader/internal/models"
)

// APIHandlers contains all API endpoint handlers
type APIHandlers struct {
	config      *common.Config
	coordinator interfaces.Coordinator
	archive     interfaces.Archive
	logger      arbor.ILogger
	startTime   time.Time
}

// TicketView is the JSON form of a ticket served to the front end.
type TicketView struct {
	Id          string `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Kpm         int64  `json:"kpm,omitempty"`
	Tracker     string `json:"tracker"`
	Server      string `json:"server"`
	Attachments int    `json:"attachments"`
	State       string `json:"state"`
	Path        string `json:"path,omitempty"`
}

func viewOf(t *models.Ticket) TicketView {
	view := TicketView{
		Id:          t.Id,
		URL:         t.URL,
		Title:       t.Title,
		Kpm:         t.Kpm,
		Tracker:     t.Tracker,
		Attachments: t.AttachmentCount(),
		State:       t.State.String(),
		Path:        t.Path,
	}
	if t.Source != nil {
		view.Server = t.Source.Id
	}
	return view
}

func ticketViews(tickets []*models.Ticket) []TicketView {
	views := make([]TicketView, 0, len(tickets))
	for _, t := range tickets {
		views = append(views, viewOf(t))
	}
	return views
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Build     string    `json:"build"`
	Uptime    float64   `json:"uptime_seconds"`
	Services  struct {
		Database bool `json:"database"`
	} `json:"services"`
}

// StatusResponse represents the downloader status response
type StatusResponse struct {
	Busy        bool    `json:"busy"`
	Uptime      float64 `json:"uptime_seconds"`
	Tickets     int     `json:"tickets"`
	BaseDir     string  `json:"base_dir"`
	ServerCount int     `json:"server_count"`
}

// BatchResponse represents the accepted/rejected outcome of a batch request
type BatchResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Count   int    `json:"count,omitempty"`
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(config *common.Config, coordinator interfaces.Coordinator, archive interfaces.Archive, logger arbor.ILogger) *APIHandlers {
	return &APIHandlers{
		config:      config,
		coordinator: coordinator,
		archive:     archive,
		logger:      logger,
		startTime:   time.Now(),
	}
}

// HealthHandler returns system health status
func (h *APIHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   common.GetVersion(),
		Build:     common.GetBuild(),
		Uptime:    time.Since(h.startTime).Seconds(),
	}

	health.Services.Database = h.testDatabaseConnection()
	if !health.Services.Database {
		health.Status = "degraded"
	}

	if err := json.NewEncoder(w).Encode(health); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode health response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// VersionHandler returns version information
func (h *APIHandlers) VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	response := map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode version response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// StatusHandler returns the downloader status
func (h *APIHandlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	status := StatusResponse{
		Busy:        h.coordinator.Busy(),
		Uptime:      time.Since(h.startTime).Seconds(),
		Tickets:     len(h.coordinator.Tickets()),
		BaseDir:     h.coordinator.BaseDir(),
		ServerCount: len(h.config.Servers),
	}

	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode status response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// TicketsHandler returns the tickets fetched in this session
func (h *APIHandlers) TicketsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ticketViews(h.coordinator.Tickets())); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode tickets response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// FetchHandler starts a ticket fetch batch
func (h *APIHandlers) FetchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		URLs []string `json:"urls"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeBatchResponse(w, http.StatusBadRequest, BatchResponse{Message: "invalid request body"})
		return
	}

	urls := make([]string, 0, len(request.URLs))
	for _, u := range request.URLs {
		if trimmed := strings.TrimSpace(u); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	if len(urls) == 0 {
		h.writeBatchResponse(w, http.StatusBadRequest, BatchResponse{Message: "no ticket urls given"})
		return
	}

	if err := h.coordinator.FetchTickets(urls); err != nil {
		h.writeBatchResponse(w, http.StatusConflict, BatchResponse{Message: err.Error()})
		return
	}

	h.writeBatchResponse(w, http.StatusAccepted, BatchResponse{Success: true, Count: len(urls)})
}

// AttachmentsHandler starts an attachment download batch
func (h *APIHandlers) AttachmentsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.coordinator.DownloadAttachments(); err != nil {
		h.writeBatchResponse(w, http.StatusConflict, BatchResponse{Message: err.Error()})
		return
	}

	h.writeBatchResponse(w, http.StatusAccepted, BatchResponse{Success: true})
}

// BaseDirHandler changes the download base directory
func (h *APIHandlers) BaseDirHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || strings.TrimSpace(request.Path) == "" {
		h.writeBatchResponse(w, http.StatusBadRequest, BatchResponse{Message: "missing path"})
		return
	}

	h.coordinator.SetBaseDir(strings.TrimSpace(request.Path))
	h.writeBatchResponse(w, http.StatusOK, BatchResponse{Success: true})
}

// ArchiveHandler serves and clears the persisted ticket archive
func (h *APIHandlers) ArchiveHandler(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		http.Error(w, "archive disabled", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
		records, err := h.archive.LoadAllTickets()
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to load archive")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			h.logger.Error().Err(err).Msg("Failed to encode archive response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}

	case http.MethodDelete:
		if err := h.archive.ClearAllTickets(); err != nil {
			h.logger.Error().Err(err).Msg("Failed to clear archive")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		h.writeBatchResponse(w, http.StatusOK, BatchResponse{Success: true, Message: "archive cleared"})

	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (h *APIHandlers) writeBatchResponse(w http.ResponseWriter, statusCode int, response BatchResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *APIHandlers) testDatabaseConnection() bool {
	if h.archive == nil {
		return false
	}
	_, err := h.archive.LoadAllTickets()
	return err == nil
}
