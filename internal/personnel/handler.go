package personnel

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/police-records/registry/internal/platform/httpx"
	"github.com/police-records/registry/internal/shared"
)

// Handler exposes account and profile endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, v *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validator: v}
}

type profileRequest struct {
	Sex         *string `json:"sex" validate:"omitempty,oneof=MALE FEMALE M F male female m f"`
	BirthDate   *string `json:"birth_date"`
	BirthCityID *int64  `json:"birth_city_id" validate:"omitempty,gt=0"`
	NationalID  *string `json:"national_id" validate:"omitempty,max=11"`
	Phone       *string `json:"phone" validate:"omitempty,phone"`
	Address     *string `json:"address" validate:"omitempty,max=500"`
	PhotoKey    *string `json:"photo_key" validate:"omitempty,max=512"`
	BadgeNumber *string `json:"badge_number" validate:"omitempty,max=11"`
	StationID   *int64  `json:"station_id" validate:"omitempty,gt=0"`
}

func (p *profileRequest) changes() (*ProfileChanges, error) {
	if p == nil {
		return nil, nil
	}
	birth, err := httpx.OptionalDate("birth_date", p.BirthDate)
	if err != nil {
		return nil, err
	}
	c := &ProfileChanges{
		BirthDate:   birth,
		BirthCityID: p.BirthCityID,
		NationalID:  p.NationalID,
		Phone:       p.Phone,
		Address:     p.Address,
		PhotoKey:    p.PhotoKey,
		BadgeNumber: p.BadgeNumber,
		StationID:   p.StationID,
	}
	if p.Sex != nil {
		sex, err := ParseSex(*p.Sex)
		if err != nil {
			return nil, err
		}
		c.Sex = &sex
	}
	return c, nil
}

type createAccountRequest struct {
	Username  string          `json:"username" validate:"required,max=150"`
	Email     string          `json:"email" validate:"omitempty,email,max=254"`
	FirstName string          `json:"first_name" validate:"max=150"`
	LastName  string          `json:"last_name" validate:"max=150"`
	Password  string          `json:"password" validate:"required,min=8,max=72"`
	Role      RoleInput       `json:"role" validate:"required"`
	IsActive  *bool           `json:"is_active"`
	Profile   *profileRequest `json:"profile"`
}

type updateAccountRequest struct {
	Username  *string         `json:"username" validate:"omitempty,max=150"`
	Email     *string         `json:"email" validate:"omitempty,email,max=254"`
	FirstName *string         `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string         `json:"last_name" validate:"omitempty,max=150"`
	Password  *string         `json:"password" validate:"omitempty,min=8,max=72"`
	IsActive  *bool           `json:"is_active"`
	Role      *RoleInput      `json:"role"`
	Profile   *profileRequest `json:"profile"`
}

type stationRequest struct {
	StationID *int64 `json:"station_id" validate:"omitempty,gt=0"`
}

// MountRoutes registers account, profile and officer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.listAccounts)
		r.Post("/", h.createAccount)
		r.Get("/{id}", h.getAccount)
		r.Put("/{id}", h.updateAccount)
		r.Delete("/{id}", h.deleteAccount)
	})
	r.Route("/profiles", func(r chi.Router) {
		r.Get("/", h.directory)
		r.Get("/{role}", h.listProfiles)
		r.Get("/{role}/{id}", h.getProfile)
		r.Put("/{role}/{id}", h.updateProfile)
	})
	r.Put("/officers/{id}/station", h.assignStation)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	var role *Role
	if raw := r.URL.Query().Get("role"); raw != "" {
		parsed, err := ParseRole(raw)
		if err != nil {
			httpx.RespondError(w, shared.Invalid("role", "unknown role"))
			return
		}
		role = &parsed
	}
	accounts, err := h.service.ListAccounts(r.Context(), role)
	if err != nil {
		h.fail(w, "list accounts failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	changes, err := req.Profile.changes()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.CreateAccount(r.Context(), CreateAccountInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		Role:      req.Role,
		IsActive:  req.IsActive,
		Profile:   changes,
	})
	if err != nil {
		h.fail(w, "create account failed", err, slog.String("username", req.Username))
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		h.fail(w, "get account failed", err, slog.Int64("account_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateAccountRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	changes, err := req.Profile.changes()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.UpdateAccount(r.Context(), id, UpdateAccountInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		IsActive:  req.IsActive,
		Role:      req.Role,
		Profile:   changes,
	})
	if err != nil {
		h.fail(w, "update account failed", err, slog.Int64("account_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteAccount(r.Context(), id); err != nil {
		h.fail(w, "delete account failed", err, slog.Int64("account_id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) directory(w http.ResponseWriter, r *http.Request) {
	dir, err := h.service.Directory(r.Context())
	if err != nil {
		h.fail(w, "load directory failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, dir)
}

func roleParam(r *http.Request) (Role, error) {
	role, err := ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		return "", shared.Invalid("role", "unknown role")
	}
	return role, nil
}

func (h *Handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	role, err := roleParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	profiles, err := h.service.ListProfiles(r.Context(), role)
	if err != nil {
		h.fail(w, "list profiles failed", err, slog.String("role", role.String()))
		return
	}
	httpx.JSON(w, http.StatusOK, profiles)
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	role, err := roleParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.GetProfile(r.Context(), role, id)
	if err != nil {
		h.fail(w, "get profile failed", err, slog.String("role", role.String()), slog.Int64("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	role, err := roleParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req profileRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	changes, err := req.changes()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.UpdateProfile(r.Context(), role, id, *changes)
	if err != nil {
		h.fail(w, "update profile failed", err, slog.String("role", role.String()), slog.Int64("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) assignStation(w http.ResponseWriter, r *http.Request) {
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
	p, err := h.service.AssignStation(r.Context(), id, req.StationID)
	if err != nil {
		h.fail(w, "assign station failed", err, slog.Int64("officer_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error, attrs ...any) {
	h.logger.Error(msg, append([]any{slog.Any("error", err)}, attrs...)...)
	httpx.RespondError(w, err)
}
