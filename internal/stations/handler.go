package stations

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/police-records/registry/internal/platform/httpx"
)

// Handler exposes station endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, v *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validator: v}
}

type stationRequest struct {
	Name               string `json:"name" validate:"required,max=60"`
	VilleID            int64  `json:"ville_id" validate:"required,gt=0"`
	HeadCommissionerID int64  `json:"head_commissioner_id" validate:"required,gt=0"`
}

type headRequest struct {
	CommissionerID int64 `json:"commissioner_id" validate:"required,gt=0"`
}

// MountRoutes registers station routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/stations", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Put("/{id}/head", h.assignHead)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	villeID, err := httpx.OptionalIDQuery(r, "ville_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	stations, err := h.service.List(r.Context(), villeID)
	if err != nil {
		h.fail(w, "list stations failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stations)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	st, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get station failed", err, slog.Int64("station_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req stationRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	st, err := h.service.Create(r.Context(), Station{Name: req.Name, VilleID: req.VilleID, HeadCommissionerID: req.HeadCommissionerID})
	if err != nil {
		h.fail(w, "create station failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, st)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req stationRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	st, err := h.service.Update(r.Context(), id, Station{Name: req.Name, VilleID: req.VilleID, HeadCommissionerID: req.HeadCommissionerID})
	if err != nil {
		h.fail(w, "update station failed", err, slog.Int64("station_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete station failed", err, slog.Int64("station_id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assignHead(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req headRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	st, err := h.service.AssignHead(r.Context(), id, req.CommissionerID)
	if err != nil {
		h.fail(w, "assign station head failed", err, slog.Int64("station_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error, attrs ...any) {
	h.logger.Error(msg, append([]any{slog.Any("error", err)}, attrs...)...)
	httpx.RespondError(w, err)
}
