package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/den-kezlia/torrent/internal/datasource"
	"github.com/den-kezlia/torrent/internal/importer"
)

const maxBodyBytes = 64 * 1024

// StreetImporter runs one import. *importer.Importer satisfies it.
type StreetImporter interface {
	ImportStreets(ctx context.Context, boundary string, opts importer.Options) (importer.Result, error)
}

// ImportHandlerConfig configures the import trigger.
type ImportHandlerConfig struct {
	Options         importer.Options
	DefaultBoundary string
	// MaxConcurrentImports bounds simultaneous runs; extra requests get 409
	MaxConcurrentImports int
}

// ImportHandler triggers street imports over HTTP.
type ImportHandler struct {
	importer StreetImporter
	logger   *slog.Logger
	sem      chan struct{}
	cfg      ImportHandlerConfig

	activeImports atomic.Int32
	totalImports  atomic.Int64
	totalFailed   atomic.Int64

	mu   sync.Mutex
	last *LastImport
}

// LastImport describes the most recent finished import.
type LastImport struct {
	FinishedAt time.Time        `json:"finished_at"`
	Result     *importer.Result `json:"result,omitempty"`
	Boundary   string           `json:"boundary"`
	Error      string           `json:"error,omitempty"`
	DurationMS int64            `json:"duration_ms"`
}

// ImportStatus is the JSON body of the status endpoint.
type ImportStatus struct {
	Last          *LastImport `json:"last,omitempty"`
	ActiveImports int         `json:"active_imports"`
	TotalImports  int64       `json:"total_imports"`
	TotalFailed   int64       `json:"total_failed"`
}

// NewImportHandler creates an import trigger. Options are validated up front
// so a misconfigured server fails at startup rather than on every request.
func NewImportHandler(imp StreetImporter, cfg ImportHandlerConfig, logger *slog.Logger) (*ImportHandler, error) {
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}
	if cfg.DefaultBoundary == "" {
		cfg.DefaultBoundary = importer.DefaultBoundary
	}
	if cfg.MaxConcurrentImports <= 0 {
		cfg.MaxConcurrentImports = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ImportHandler{
		importer: imp,
		logger:   logger,
		sem:      make(chan struct{}, cfg.MaxConcurrentImports),
		cfg:      cfg,
	}, nil
}

// ServeHTTP handles POST {"boundary": "..."}.
func (h *ImportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	boundary, ok := h.parseBoundary(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid body"))
		return
	}

	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		writeJSON(w, http.StatusConflict, errorBody("Import already running"))
		return
	}

	h.activeImports.Add(1)
	defer h.activeImports.Add(-1)

	log := h.logger.With("boundary", boundary)
	log.Info("import requested", "remote_addr", r.RemoteAddr)

	start := time.Now()
	res, err := h.importer.ImportStreets(r.Context(), boundary, h.cfg.Options)
	h.record(boundary, res, err, time.Since(start))

	if err != nil {
		status := statusForError(err)
		log.Error("import failed", "error", err, "status", status)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			msg = "Internal server error"
		}
		writeJSON(w, status, errorBody(msg))
		return
	}

	writeJSON(w, http.StatusOK, importResponse{OK: true, Result: res})
}

// parseBoundary is lenient: an empty or unparsable body imports the default
// boundary, while a JSON value of the wrong shape or a blank boundary is
// rejected.
func (h *ImportHandler) parseBoundary(r *http.Request) (string, bool) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return "", false
	}

	var body any
	if len(bytes.TrimSpace(data)) == 0 || json.Unmarshal(data, &body) != nil || body == nil {
		return h.cfg.DefaultBoundary, true
	}

	obj, ok := body.(map[string]any)
	if !ok {
		return "", false
	}
	raw, present := obj["boundary"]
	if !present {
		return h.cfg.DefaultBoundary, true
	}
	boundary, ok := raw.(string)
	if !ok || strings.TrimSpace(boundary) == "" {
		return "", false
	}
	return boundary, true
}

func (h *ImportHandler) record(boundary string, res importer.Result, err error, elapsed time.Duration) {
	h.totalImports.Add(1)
	last := &LastImport{
		Boundary:   boundary,
		FinishedAt: time.Now().UTC(),
		DurationMS: elapsed.Milliseconds(),
		Result:     &res,
	}
	if err != nil {
		h.totalFailed.Add(1)
		last.Error = err.Error()
	}

	h.mu.Lock()
	h.last = last
	h.mu.Unlock()
}

// Status returns the current import status.
func (h *ImportHandler) Status() ImportStatus {
	h.mu.Lock()
	last := h.last
	h.mu.Unlock()

	return ImportStatus{
		Last:          last,
		ActiveImports: int(h.activeImports.Load()),
		TotalImports:  h.totalImports.Load(),
		TotalFailed:   h.totalFailed.Load(),
	}
}

// StatusHandler returns an HTTP handler for the status endpoint (JSON).
func (h *ImportHandler) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, h.Status())
	})
}

type importResponse struct {
	importer.Result
	OK bool `json:"ok"`
}

// statusForError maps importer errors to HTTP statuses.
func statusForError(err error) int {
	var (
		notFound  *datasource.NotFoundError
		upstream  *datasource.UpstreamServiceError
		transport *datasource.TransportError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &upstream), errors.As(err, &transport):
		return http.StatusBadGateway
	case errors.Is(err, importer.ErrInvalidOptions):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
