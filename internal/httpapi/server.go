// Package httpapi exposes the catalog over a small read-only HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/catalog"
	internalerrors "github.com/dhgavali-gis/get-postalcode-datacenter/internal/errors"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/httpapi/middleware"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/logging"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/models"
)

const (
	defaultWaitTimeout = 15 * time.Second
	shutdownTimeout    = 10 * time.Second
)

type Catalog interface {
	Fetch()
	Reload()
	Snapshot() catalog.Snapshot
	WaitFor(ctx context.Context, ready func(catalog.Snapshot) bool) (catalog.Snapshot, error)
	Fallback(ctx context.Context) ([]models.DatasetRecord, catalog.FallbackSource)
}

type Assets interface {
	Exists(ctx context.Context, filename string) bool
	CheckAll(ctx context.Context, filenames []string) models.FileExistenceStatus
	FetchBytes(ctx context.Context, filename string) ([]byte, error)
}

type Options struct {
	Catalog Catalog
	Assets  Assets
	Logger  *slog.Logger
	// WaitTimeout bounds how long a request waits for an in-flight load.
	WaitTimeout time.Duration
}

type Server struct {
	catalog     Catalog
	assets      Assets
	logger      *slog.Logger
	waitTimeout time.Duration
}

func New(opts Options) (*Server, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if opts.Assets == nil {
		return nil, fmt.Errorf("assets resolver is required")
	}
	s := &Server{
		catalog:     opts.Catalog,
		assets:      opts.Assets,
		logger:      opts.Logger,
		waitTimeout: opts.WaitTimeout,
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.waitTimeout <= 0 {
		s.waitTimeout = defaultWaitTimeout
	}
	return s, nil
}

func (s *Server) Routes() http.Handler {
	health := NewHealthHandler(func() bool {
		return s.catalog.Snapshot().State == catalog.StateSuccess
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.RecoverMiddleware(s.logger))
	r.Use(middleware.AccessLog(s.logger))

	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/datasets", s.listDatasets)
	r.Get("/datasets/{id}", s.getDataset)
	r.Get("/datasets/{id}/sample", s.getSample)
	r.Get("/files/status", s.fileStatus)
	r.Get("/regions", s.regions)
	r.Post("/reload", s.reload)
	return r
}

// Run serves the API on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type unavailableResponse struct {
	Error          errorBody              `json:"error"`
	State          catalog.State          `json:"state"`
	RetryCount     int                    `json:"retryCount"`
	NextRetryAt    *time.Time             `json:"nextRetryAt,omitempty"`
	Fallback       []models.DatasetRecord `json:"fallback"`
	FallbackSource catalog.FallbackSource `json:"fallbackSource"`
}

type datasetsResponse struct {
	Datasets []models.DatasetRecord    `json:"datasets"`
	Metadata models.CollectionMetadata `json:"metadata"`
	LoadedAt time.Time                 `json:"loadedAt"`
	Rejected int                       `json:"rejected"`
}

// records triggers a fetch and waits until the controller leaves the loading
// state. It writes the response itself when no data is available.
func (s *Server) records(w http.ResponseWriter, r *http.Request) (catalog.Snapshot, bool) {
	s.catalog.Fetch()

	ctx, cancel := context.WithTimeout(r.Context(), s.waitTimeout)
	defer cancel()
	snap, err := s.catalog.WaitFor(ctx, func(cur catalog.Snapshot) bool {
		return cur.State != catalog.StateLoading
	})
	if err == nil && snap.State == catalog.StateSuccess {
		return snap, true
	}

	resp := unavailableResponse{State: snap.State, RetryCount: snap.RetryCount}
	switch {
	case snap.Err != nil:
		resp.Error = errorBody{Code: string(internalerrors.GetCode(snap.Err)), Message: snap.Err.Error()}
	case err != nil:
		resp.Error = errorBody{Code: string(internalerrors.ErrTimeout), Message: "catalog is still loading"}
	default:
		resp.Error = errorBody{Code: string(internalerrors.ErrUnknown), Message: "no data"}
	}
	if !snap.NextRetryAt.IsZero() {
		at := snap.NextRetryAt
		resp.NextRetryAt = &at
	}
	resp.Fallback, resp.FallbackSource = s.catalog.Fallback(r.Context())
	writeJSON(w, http.StatusServiceUnavailable, resp)
	return snap, false
}

func (s *Server) listDatasets(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.records(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := models.Filter{Region: strings.TrimSpace(q.Get("region"))}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status := models.DatasetStatus(raw)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, internalerrors.ErrInvalidInput, fmt.Sprintf("unknown status %q", raw))
			return
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(q.Get("ids")); raw != "" {
		filter.IDs = strings.Split(raw, ",")
	}

	writeJSON(w, http.StatusOK, datasetsResponse{
		Datasets: models.FilterRecords(snap.Data, filter),
		Metadata: snap.Metadata,
		LoadedAt: snap.LoadedAt,
		Rejected: len(snap.Rejected),
	})
}

func (s *Server) getDataset(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.records(w, r)
	if !ok {
		return
	}
	rec, found := models.FindByID(snap.Data, chi.URLParam(r, "id"))
	if !found {
		writeError(w, http.StatusNotFound, internalerrors.ErrNotFound, "dataset not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) getSample(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.records(w, r)
	if !ok {
		return
	}
	rec, found := models.FindByID(snap.Data, chi.URLParam(r, "id"))
	if !found {
		writeError(w, http.StatusNotFound, internalerrors.ErrNotFound, "dataset not found")
		return
	}

	if !s.assets.Exists(r.Context(), rec.SampleFileName) {
		writeError(w, http.StatusNotFound, internalerrors.ErrNotFound, "sample file is not available")
		return
	}

	data, err := s.assets.FetchBytes(r.Context(), rec.SampleFileName)
	if err != nil {
		s.logger.WarnContext(r.Context(), "sample fetch failed", "id", rec.ID, "error", err.Error())
		writeError(w, statusForError(err), internalerrors.GetCode(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, rec.SampleFileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) fileStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.records(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.assets.CheckAll(r.Context(), models.SampleFileNames(snap.Data)))
}

func (s *Server) regions(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.records(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, models.Regions(snap.Data))
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	s.catalog.Reload()
	writeJSON(w, http.StatusAccepted, map[string]string{"state": string(s.catalog.Snapshot().State)})
}

func statusForError(err error) int {
	switch internalerrors.GetCode(err) {
	case internalerrors.ErrInvalidInput:
		return http.StatusBadRequest
	case internalerrors.ErrNotFound:
		return http.StatusNotFound
	case internalerrors.ErrForbidden, internalerrors.ErrPermission:
		return http.StatusForbidden
	case internalerrors.ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, status int, code internalerrors.Code, msg string) {
	writeJSON(w, status, map[string]errorBody{"error": {Code: string(code), Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
