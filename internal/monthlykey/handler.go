package monthlykey

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/SiroccoBreeze/pony-knows-sub001/internal/platform/httpx"
	"github.com/SiroccoBreeze/pony-knows-sub001/internal/shared"
)

// verifyRateLimit throttles credential submissions per client IP on top of
// the per-principal attempt limiter.
const (
	verifyRateLimit  = 10
	verifyRateWindow = time.Minute
)

// Handler wires the credential endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers the principal-facing credential routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/status", h.status)
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(verifyRateLimit, verifyRateWindow, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/verify", h.verify)
	})
}

// MountAdminRoutes registers the operator routes. The caller is expected to
// guard them with the super permission.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Post("/unlock", h.unlock)
	r.Get("/overview", h.overview)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.CurrentUserID(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	st, err := h.service.Status(r.Context(), userID)
	if err != nil {
		h.logger.Error("monthly key status", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

type verifyRequest struct {
	Key string `json:"key" validate:"required,max=64"`
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.CurrentUserID(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	var req verifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "key is required")
		return
	}

	result, err := h.service.Verify(r.Context(), userID, req.Key)
	if err != nil {
		h.respondVerifyFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// respondVerifyFailure keeps the two rejection shapes distinct: an invalid
// key reports remaining attempts with 401, an active lock reports the lock
// deadline with 423. Neither ever echoes the expected key.
func (h *Handler) respondVerifyFailure(w http.ResponseWriter, err error) {
	var lockedErr *LockedError
	if errors.As(err, &lockedErr) {
		httpx.ProblemWith(w, httpx.StatusLocked, "Locked", "verification temporarily locked", map[string]any{
			"locked":      true,
			"lockedUntil": lockedErr.LockedUntil,
		})
		return
	}
	var invalidErr *InvalidKeyError
	if errors.As(err, &invalidErr) {
		if invalidErr.Locked {
			httpx.ProblemWith(w, httpx.StatusLocked, "Locked", "attempts exhausted", map[string]any{
				"locked":      true,
				"lockedUntil": invalidErr.LockedUntil,
			})
			return
		}
		httpx.ProblemWith(w, http.StatusUnauthorized, "Invalid Key", "monthly key does not match", map[string]any{
			"attemptsRemaining": invalidErr.AttemptsRemaining,
		})
		return
	}
	h.logger.Error("monthly key verify", slog.Any("error", err))
	httpx.RespondError(w, err)
}

type unlockRequest struct {
	PrincipalID string `json:"principalId" validate:"required,numeric"`
}

func (h *Handler) unlock(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.CurrentUserID(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	var req unlockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "principalId is required")
		return
	}
	targetID, err := strconv.ParseInt(req.PrincipalID, 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "principalId must be numeric")
		return
	}

	if err := h.service.AdminUnlock(r.Context(), actorID, targetID); err != nil {
		h.logger.Error("monthly key unlock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Overview(r.Context())
	if err != nil {
		h.logger.Error("monthly key overview", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"principals": rows})
}
