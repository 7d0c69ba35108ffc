package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"facter/internal/domain"
	"facter/internal/repository"
	"facter/internal/service"

	"github.com/charmbracelet/log"
)

// LatestSnapshot names the newest snapshot in snapshot routes
const LatestSnapshot = "latest"

// FactHandler handles fact and snapshot API requests
type FactHandler struct {
	store  *service.Store
	repo   repository.SnapshotRepository
	logger *log.Logger
}

// NewFactHandler creates a new fact handler. repo may be nil, in which case
// snapshot routes answer 503.
func NewFactHandler(store *service.Store, repo repository.SnapshotRepository, logger *log.Logger) *FactHandler {
	if logger == nil {
		logger = log.Default().WithPrefix("http")
	}
	return &FactHandler{store: store, repo: repo, logger: logger}
}

// Register adds the handler's routes to mux
func (h *FactHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/facts", h.GetFacts)
	mux.HandleFunc("GET /api/facts/{query}", h.GetFact)
	mux.HandleFunc("POST /api/reset", h.Reset)
	mux.HandleFunc("GET /api/status", h.GetStatus)

	mux.HandleFunc("GET /api/snapshots", h.ListSnapshots)
	mux.HandleFunc("POST /api/snapshots", h.CreateSnapshot)
	mux.HandleFunc("GET /api/snapshots/{id}", h.GetSnapshot)
	mux.HandleFunc("DELETE /api/snapshots/{id}", h.DeleteSnapshot)
	mux.HandleFunc("GET /api/snapshots/{id}/diff", h.DiffSnapshot)
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// FactResponse is the body of a single fact reply
type FactResponse struct {
	Query string       `json:"query"`
	Value domain.Value `json:"value"`
}

// SourceResponse describes one external fact file of the last population
type SourceResponse struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Facts  int    `json:"facts"`
	Error  string `json:"error,omitempty"`
}

// StatusResponse describes the store
type StatusResponse struct {
	State              string           `json:"state"`
	Generation         int              `json:"generation"`
	SearchPath         []string         `json:"search_path"`
	ExternalSearchPath []string         `json:"external_search_path"`
	Sources            []SourceResponse `json:"sources"`
}

// GetFacts returns the full fact table
func (h *FactHandler) GetFacts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.store.ToMap(r.Context()), http.StatusOK)
}

// GetFact resolves a fact name or dotted query
func (h *FactHandler) GetFact(w http.ResponseWriter, r *http.Request) {
	query := r.PathValue("query")
	v, ok := h.store.Query(r.Context(), query)
	if !ok {
		h.writeError(w, "Not found", "no fact matches "+query, http.StatusNotFound)
		return
	}
	h.writeJSON(w, FactResponse{Query: query, Value: v}, http.StatusOK)
}

// Reset discards the fact table
func (h *FactHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.store.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// GetStatus reports store state and the last loader report
func (h *FactHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	sources := make([]SourceResponse, 0)
	for _, src := range h.store.Sources() {
		resp := SourceResponse{Path: src.Path, Format: src.Format, Facts: src.Facts}
		if src.Err != nil {
			resp.Error = src.Err.Error()
		}
		sources = append(sources, resp)
	}

	h.writeJSON(w, StatusResponse{
		State:              h.store.State().String(),
		Generation:         h.store.Generation(),
		SearchPath:         h.store.SearchPath(),
		ExternalSearchPath: h.store.SearchExternalPath(),
		Sources:            sources,
	}, http.StatusOK)
}

// ListSnapshots returns stored snapshot summaries
func (h *FactHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}

	infos, err := h.repo.List(r.Context(), 0)
	if err != nil {
		h.logger.Error("failed to list snapshots", "error", err)
		h.writeError(w, "Failed to list snapshots", err.Error(), http.StatusInternalServerError)
		return
	}
	if infos == nil {
		infos = []domain.SnapshotInfo{}
	}
	h.writeJSON(w, infos, http.StatusOK)
}

// CreateSnapshot stores the current facts
func (h *FactHandler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}

	snap := h.store.Snapshot(r.Context())
	if err := h.repo.Save(r.Context(), snap); err != nil {
		h.logger.Error("failed to save snapshot", "error", err)
		h.writeError(w, "Failed to save snapshot", err.Error(), http.StatusInternalServerError)
		return
	}

	h.logger.Info("snapshot saved", "id", snap.ID, "facts", snap.Facts.Len())
	h.writeJSON(w, domain.SnapshotInfo{
		ID:        snap.ID,
		TakenAt:   snap.TakenAt,
		Hostname:  snap.Hostname,
		FactCount: snap.Facts.Len(),
	}, http.StatusCreated)
}

// GetSnapshot returns one snapshot with its facts
func (h *FactHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}

	snap, ok := h.loadSnapshot(r.Context(), w, r.PathValue("id"))
	if !ok {
		return
	}
	h.writeJSON(w, snap, http.StatusOK)
}

// DeleteSnapshot removes a snapshot
func (h *FactHandler) DeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}

	id := r.PathValue("id")
	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.writeError(w, "Not found", err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error("failed to delete snapshot", "id", id, "error", err)
		h.writeError(w, "Failed to delete snapshot", err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DiffSnapshot compares a snapshot with the current facts, or with the
// snapshot named by the "to" query parameter
func (h *FactHandler) DiffSnapshot(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}

	before, ok := h.loadSnapshot(r.Context(), w, r.PathValue("id"))
	if !ok {
		return
	}

	var after *domain.FactSet
	if to := r.URL.Query().Get("to"); to != "" {
		snap, ok := h.loadSnapshot(r.Context(), w, to)
		if !ok {
			return
		}
		after = snap.Facts
	} else {
		after = h.store.ToMap(r.Context())
	}

	changes := domain.Diff(before.Facts, after)
	if changes == nil {
		changes = []domain.Change{}
	}
	h.writeJSON(w, changes, http.StatusOK)
}

func (h *FactHandler) requireRepo(w http.ResponseWriter) bool {
	if h.repo == nil {
		h.writeError(w, "Snapshots disabled", "no snapshot database configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// loadSnapshot fetches a snapshot by ID and writes the error reply if it
// cannot be loaded
func (h *FactHandler) loadSnapshot(ctx context.Context, w http.ResponseWriter, id string) (*domain.Snapshot, bool) {
	var (
		snap *domain.Snapshot
		err  error
	)
	if id == LatestSnapshot {
		snap, err = h.repo.Latest(ctx)
	} else {
		snap, err = h.repo.Get(ctx, id)
	}

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.writeError(w, "Not found", "snapshot "+id+" not found", http.StatusNotFound)
			return nil, false
		}
		h.logger.Error("failed to load snapshot", "id", id, "error", err)
		h.writeError(w, "Failed to load snapshot", err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return snap, true
}

func (h *FactHandler) writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode JSON", "error", err)
	}
}

func (h *FactHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		h.logger.Warn("failed to encode error response", "error", err)
	}
}
