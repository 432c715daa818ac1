package jurisdiction

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/police-records/registry/internal/platform/httpx"
)

// Handler exposes the jurisdiction CRUD endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, v *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validator: v}
}

type nodeRequest struct {
	Name        string  `json:"name" validate:"required,max=60"`
	Description *string `json:"description" validate:"omitempty,max=200"`
	ParentID    *int64  `json:"parent_id" validate:"omitempty,gt=0"`
}

var levelPaths = map[Level]string{
	LevelDistrict: "/districts",
	LevelRegion:   "/regions",
	LevelVille:    "/villes",
	LevelSecteur:  "/secteurs",
	LevelQuartier: "/quartiers",
}

// MountRoutes registers one CRUD resource per tier plus the district tree.
func (h *Handler) MountRoutes(r chi.Router) {
	for _, level := range Levels {
		level := level
		r.Route(levelPaths[level], func(r chi.Router) {
			r.Get("/", h.list(level))
			r.Post("/", h.create(level))
			r.Get("/{id}", h.get(level))
			r.Put("/{id}", h.update(level))
			r.Delete("/{id}", h.delete(level))
			if level == LevelDistrict {
				r.Get("/{id}/tree", h.tree)
			}
		})
	}
}

func (h *Handler) list(level Level) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parentID, err := httpx.OptionalIDQuery(r, "parent_id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		nodes, err := h.service.List(r.Context(), level, parentID)
		if err != nil {
			h.fail(w, "list jurisdictions failed", err, slog.String("level", level.String()))
			return
		}
		httpx.JSON(w, http.StatusOK, nodes)
	}
}

func (h *Handler) get(level Level) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		node, err := h.service.Get(r.Context(), level, id)
		if err != nil {
			h.fail(w, "get jurisdiction failed", err, slog.String("level", level.String()), slog.Int64("id", id))
			return
		}
		httpx.JSON(w, http.StatusOK, node)
	}
}

func (h *Handler) create(level Level) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nodeRequest
		if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
		node, err := h.service.Create(r.Context(), Node{Level: level, Name: req.Name, Description: req.Description, ParentID: req.ParentID})
		if err != nil {
			h.fail(w, "create jurisdiction failed", err, slog.String("level", level.String()))
			return
		}
		httpx.JSON(w, http.StatusCreated, node)
	}
}

func (h *Handler) update(level Level) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		var req nodeRequest
		if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
		node, err := h.service.Update(r.Context(), id, Node{Level: level, Name: req.Name, Description: req.Description, ParentID: req.ParentID})
		if err != nil {
			h.fail(w, "update jurisdiction failed", err, slog.String("level", level.String()), slog.Int64("id", id))
			return
		}
		httpx.JSON(w, http.StatusOK, node)
	}
}

func (h *Handler) delete(level Level) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if err := h.service.Delete(r.Context(), level, id); err != nil {
			h.fail(w, "delete jurisdiction failed", err, slog.String("level", level.String()), slog.Int64("id", id))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) tree(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tree, err := h.service.Tree(r.Context(), id)
	if err != nil {
		h.fail(w, "load district tree failed", err, slog.Int64("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, tree)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error, attrs ...any) {
	h.logger.Error(msg, append([]any{slog.Any("error", err)}, attrs...)...)
	httpx.RespondError(w, err)
}
