package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/kainotomo/invoice-bridge/internal/config"
	"github.com/kainotomo/invoice-bridge/internal/db"
	"github.com/kainotomo/invoice-bridge/internal/erpnext"
	"github.com/kainotomo/invoice-bridge/internal/extraction"
	"github.com/kainotomo/invoice-bridge/internal/models"
	"github.com/kainotomo/invoice-bridge/internal/storage"
	"github.com/kainotomo/invoice-bridge/internal/transform"
)

const (
	MaxUploadSize = 10 * 1024 * 1024 // 10MB
	Version       = "1.0.0"
)

// Handler handles HTTP requests for invoice processing
type Handler struct {
	config   *config.Config
	provider *extraction.Client
	local    *extraction.LocalExtractor
	store    erpnext.Store
}

// NewHandler creates a new API handler. The local extractor may be nil when
// no templates directory is configured.
func NewHandler(cfg *config.Config, provider *extraction.Client, local *extraction.LocalExtractor, store erpnext.Store) *Handler {
	return &Handler{
		config:   cfg,
		provider: provider,
		local:    local,
		store:    store,
	}
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Main endpoints
	router.HandleFunc("/api/process-invoice", h.ProcessInvoice).Methods("POST")
	router.HandleFunc("/api/runs", h.ListRuns).Methods("GET")
	router.HandleFunc("/api/run/{id}", h.GetRun).Methods("GET")
	router.HandleFunc("/api/run/{id}/retry", h.RetryRun).Methods("POST")

	// Provider credit balance
	router.HandleFunc("/api/credits", h.GetCredits).Methods("GET")

	// Health check
	router.HandleFunc("/health", h.Health).Methods("GET")

	return router
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string        `json:"status"`
	Version   string        `json:"version"`
	Timestamp string        `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Memory    MemoryStats   `json:"memory"`
	Database  ServiceStatus `json:"database"`
	Storage   ServiceStatus `json:"storage"`
	Provider  ServiceStatus `json:"provider"`
	ERPNext   ServiceStatus `json:"erpnext"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health endpoint - enhanced for monitoring
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Memory statistics
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Database: h.checkDatabase(),
		Storage:  h.checkStorage(),
		Provider: h.checkProvider(),
		ERPNext:  h.checkERPNext(),
	}

	// The host store is the one dependency nothing works without
	if !response.ERPNext.Available {
		response.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

// checkDatabase verifies PostgreSQL connection
func (h *Handler) checkDatabase() ServiceStatus {
	if db.Pool == nil {
		return ServiceStatus{
			Available: false,
			Error:     "database pool not initialized",
		}
	}

	return ServiceStatus{
		Available: true,
		Version:   "PostgreSQL via PgBouncer",
	}
}

// checkStorage verifies MinIO connection
func (h *Handler) checkStorage() ServiceStatus {
	if storage.Client == nil {
		return ServiceStatus{
			Available: false,
			Error:     "storage client not initialized",
		}
	}

	return ServiceStatus{
		Available: true,
		Version:   "MinIO S3",
	}
}

// checkProvider reports whether an extraction source is configured
func (h *Handler) checkProvider() ServiceStatus {
	if h.config.Transform.Mode == "manual" {
		if h.local == nil {
			return ServiceStatus{Available: false, Error: "no templates directory configured"}
		}
		return ServiceStatus{Available: true, Version: "local templates"}
	}
	if h.provider == nil {
		return ServiceStatus{Available: false, Error: "provider not configured"}
	}
	return ServiceStatus{Available: true, Version: "remote extraction"}
}

// checkERPNext reports whether the host store is configured
func (h *Handler) checkERPNext() ServiceStatus {
	if h.store == nil {
		return ServiceStatus{Available: false, Error: "erpnext not configured"}
	}
	return ServiceStatus{Available: true}
}

// ProcessResponse is the outcome of one processing request.
type ProcessResponse struct {
	Success      bool     `json:"success"`
	RunID        string   `json:"run_id,omitempty"`
	Status       string   `json:"status,omitempty"`
	CreatedDocs  []string `json:"created_docs,omitempty"`
	InvoiceName  string   `json:"invoice_name,omitempty"`
	Skipped      int      `json:"skipped,omitempty"`
	QualityScore int      `json:"quality_score,omitempty"`
	Cost         float64  `json:"cost,omitempty"`
	Error        string   `json:"error,omitempty"`
	Duration     float64  `json:"duration"`
}

// ProcessInvoice accepts an uploaded invoice file, extracts it and creates
// the accounting documents in the host store.
func (h *Handler) ProcessInvoice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	started := time.Now()

	// Parse multipart form
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.sendError(w, http.StatusBadRequest, "File too large or invalid form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "No file provided (use 'file' field)")
		return
	}
	defer file.Close()

	fileData, err := io.ReadAll(file)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	filename := fmt.Sprintf("%s_%s%s",
		time.Now().Format("20060102_150405"),
		uuid.New().String()[:8],
		storage.GetFileExtension(contentType),
	)

	// Upload to MinIO (if configured)
	var fileURL string
	if storage.Client != nil {
		fileURL, err = storage.UploadInvoiceFile(ctx, filename, bytes.NewReader(fileData), int64(len(fileData)), contentType)
		if err != nil {
			// Storage is an archive, not a dependency of the run
			log.Warn().Err(err).Msg("failed to upload file to MinIO")
			fileURL = ""
		}
	}

	run := &db.Run{FileName: header.Filename, FileURL: fileURL, Status: transform.StatusPending}
	if db.Pool != nil {
		if err := db.InsertRun(ctx, run); err != nil {
			log.Warn().Err(err).Msg("failed to record run")
		}
	} else {
		run.ID = uuid.New()
	}

	result, err := h.extract(ctx, header.Filename, fileData)
	if err != nil {
		h.failRun(ctx, run.ID, err)
		h.respond(w, ProcessResponse{
			Success:  false,
			RunID:    run.ID.String(),
			Status:   transform.StatusError,
			Error:    err.Error(),
			Duration: time.Since(started).Seconds(),
		})
		return
	}

	if db.Pool != nil {
		if err := db.SetRunResponse(ctx, run.ID, string(result.Raw), result.Cost); err != nil {
			log.Warn().Err(err).Msg("failed to store provider response")
		}
	}

	resp := h.transformAndCreate(ctx, run.ID, fileURL, result)
	resp.Cost = result.Cost
	resp.Duration = time.Since(started).Seconds()
	h.respond(w, resp)
}

// extract obtains the structured document in the configured mode.
func (h *Handler) extract(ctx context.Context, filename string, data []byte) (*extraction.Result, error) {
	if h.config.Transform.Mode == "manual" {
		return h.extractLocal(filename, data)
	}
	if h.provider == nil {
		return nil, fmt.Errorf("extraction provider not configured")
	}
	return h.provider.ExtractInvoice(ctx, filename, bytes.NewReader(data))
}

// extractLocal runs the rule templates against a temp copy of the upload.
func (h *Handler) extractLocal(filename string, data []byte) (*extraction.Result, error) {
	if h.local == nil {
		return nil, fmt.Errorf("no templates directory configured")
	}

	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to stage upload: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to stage upload: %w", err)
	}
	tmp.Close()

	doc, err := h.local.Extract(tmp.Name())
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("no extraction template matched %s", filename)
	}

	// Store the document in the provider's envelope shape so retries work
	// the same way for both modes.
	docJSON, _ := json.Marshal(doc)
	raw, _ := json.Marshal(map[string]interface{}{
		"message": map[string]interface{}{
			"success":       true,
			"cost":          0,
			"extracted_doc": string(docJSON),
		},
	})
	return &extraction.Result{Doc: doc, Raw: raw}, nil
}

// transformAndCreate runs the pipeline and updates the run log.
func (h *Handler) transformAndCreate(ctx context.Context, runID uuid.UUID, fileURL string, result *extraction.Result) ProcessResponse {
	pipeline := transform.NewPipeline(h.store, h.config.Transform)

	tr, err := pipeline.Transform(result.Doc)
	if err != nil {
		h.failRun(ctx, runID, err)
		return ProcessResponse{
			Success: false,
			RunID:   runID.String(),
			Status:  transform.StatusError,
			Error:   err.Error(),
		}
	}

	created, err := pipeline.CreateDocuments(ctx, tr.Documents)
	if err != nil {
		h.failRun(ctx, runID, err)
		return ProcessResponse{
			Success: false,
			RunID:   runID.String(),
			Status:  transform.StatusError,
			Error:   err.Error(),
		}
	}

	// Attach the archived source file to the created invoice for audit
	if fileURL != "" && created.InvoiceName != "" && storage.Client != nil {
		if presignedURL, err := storage.GetPresignedURL(ctx, fileURL); err == nil {
			if err := h.store.AttachFile(ctx, presignedURL, models.DoctypePurchaseInvoice, created.InvoiceName); err != nil {
				log.Warn().Err(err).Str("invoice", created.InvoiceName).Msg("failed to attach source file")
			}
		}
	}

	if db.Pool != nil {
		docs := strings.Join(created.CreatedTitles, ", ")
		if err := db.CompleteRun(ctx, runID, docs, created.InvoiceName, tr.Quality); err != nil {
			log.Warn().Err(err).Msg("failed to complete run")
		}
	}

	log.Info().
		Str("run", runID.String()).
		Str("invoice", tr.BillNo).
		Int("quality", tr.Quality).
		Int("skipped", created.Skipped).
		Msg("invoice processed")

	return ProcessResponse{
		Success:      true,
		RunID:        runID.String(),
		Status:       transform.StatusSuccess,
		CreatedDocs:  created.CreatedTitles,
		InvoiceName:  created.InvoiceName,
		Skipped:      created.Skipped,
		QualityScore: tr.Quality,
	}
}

func (h *Handler) failRun(ctx context.Context, runID uuid.UUID, cause error) {
	if db.Pool == nil {
		return
	}
	if err := db.FailRun(ctx, runID, cause.Error()); err != nil {
		log.Warn().Err(err).Msg("failed to record run error")
	}
}

// RetryRun re-runs the transformation from the stored provider response,
// without calling the provider again.
func (h *Handler) RetryRun(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	started := time.Now()

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := db.GetRun(ctx, id)
	if err != nil {
		h.sendError(w, http.StatusNotFound, fmt.Sprintf("run not found: %v", err))
		return
	}
	if run.Response == "" {
		h.sendError(w, http.StatusConflict, "run has no stored extraction response")
		return
	}

	result, err := extraction.ParseProviderResponse([]byte(run.Response))
	if err != nil {
		h.failRun(ctx, run.ID, err)
		h.sendError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp := h.transformAndCreate(ctx, run.ID, run.FileURL, result)
	resp.Cost = run.Cost
	resp.Duration = time.Since(started).Seconds()
	h.respond(w, resp)
}

// ListRuns returns the most recent processing runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list runs: %v", err))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"runs":    runs,
		"count":   len(runs),
	})
}

// GetRun returns a single run, with a presigned URL for the stored file
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := db.GetRun(ctx, id)
	if err != nil {
		h.sendError(w, http.StatusNotFound, fmt.Sprintf("run not found: %v", err))
		return
	}

	if run.FileURL != "" && storage.Client != nil {
		if presignedURL, err := storage.GetPresignedURL(ctx, run.FileURL); err == nil {
			run.FileURL = presignedURL
		}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"run":     run,
	})
}

// GetCredits proxies the provider credit balance
func (h *Handler) GetCredits(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.provider == nil {
		h.sendError(w, http.StatusServiceUnavailable, "provider not configured")
		return
	}

	credits, err := h.provider.Credits(r.Context())
	if err != nil {
		h.sendError(w, http.StatusBadGateway, err.Error())
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"credits": credits,
	})
}

func (h *Handler) respond(w http.ResponseWriter, resp ProcessResponse) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
