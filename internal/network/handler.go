package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/proximity"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/retrieval"
	apperrors "github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/logger"
)

const maxBodyBytes = 64 << 10

// NeighbourTerm is one entry of the /get-neighbour-terms response.
type NeighbourTerm struct {
	Term      string  `json:"term"`
	Frequency float64 `json:"frequency"`
	Distance  float64 `json:"distance"`
}

// NeighbourTermsResponse is the /get-neighbour-terms response body.
type NeighbourTermsResponse struct {
	NeighbourTerms []NeighbourTerm `json:"neighbour_terms"`
}

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default().With("component", "network-handler"),
	}
}

// Register mounts the network routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /get-neighbour-terms", h.NeighbourTerms)
	mux.HandleFunc("POST /api/v1/network", h.Network)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) NeighbourTerms(w http.ResponseWriter, r *http.Request) {
	n, ok := h.compute(w, r)
	if !ok {
		return
	}
	resp := NeighbourTermsResponse{NeighbourTerms: make([]NeighbourTerm, len(n.Neighbours))}
	for i, nb := range n.Neighbours {
		resp.NeighbourTerms[i] = NeighbourTerm{
			Term:      nb.Term,
			Frequency: float64(nb.Frequency),
			Distance:  nb.Distance,
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Network(w http.ResponseWriter, r *http.Request) {
	n, ok := h.compute(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, n)
}

func (h *Handler) compute(w http.ResponseWriter, r *http.Request) (*Network, bool) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	n, err := h.service.Compute(ctx, req)
	if err != nil {
		status, message := errorResponse(err)
		if status >= http.StatusInternalServerError {
			log.Error("network computation failed", "query", req.Query, "error", err, "status_code", status)
		} else {
			log.Info("network request rejected", "query", req.Query, "error", err, "status_code", status)
		}
		h.writeError(w, status, message)
		return nil, false
	}
	log.Info("network computed",
		"query", req.Query,
		"reference", n.Reference,
		"documents", n.Documents,
		"neighbours", len(n.Neighbours),
	)
	return n, true
}

// errorResponse maps a service error to a status code and a client message.
func errorResponse(err error) (int, string) {
	var appErr *apperrors.AppError
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		if errors.As(err, &appErr) {
			return http.StatusBadRequest, appErr.Message
		}
		return http.StatusBadRequest, "invalid request"
	case retrieval.IsNoResults(err):
		return http.StatusNotFound, "no documents found for query"
	case errors.Is(err, proximity.ErrNoDocuments):
		return http.StatusNotFound, "retrieved documents contain no text"
	case errors.Is(err, apperrors.ErrRetrieval):
		return http.StatusBadGateway, "document retrieval failed"
	}
	return http.StatusInternalServerError, "network computation failed"
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	cache := h.service.Cache()
	if cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	cache := h.service.Cache()
	if cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
