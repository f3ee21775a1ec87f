package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SiroccoBreeze/pony-knows-sub001/internal/platform/httpx"
	"github.com/SiroccoBreeze/pony-knows-sub001/internal/shared"
)

// Handler exposes the caller's effective permissions and the drift probe.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.myPermissions)
	r.Post("/sync", h.syncCheck)
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.CurrentUserID(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	set, err := h.service.EffectivePermissions(r.Context(), userID)
	if err != nil {
		h.logger.Error("list my permissions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": set.Tokens()})
}

type syncRequest struct {
	Cached []string `json:"cached"`
}

func (h *Handler) syncCheck(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.CurrentUserID(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	var req syncRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payload")
		return
	}
	report, err := h.service.CheckSync(r.Context(), userID, req.Cached)
	if err != nil {
		h.logger.Error("permission sync check", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
