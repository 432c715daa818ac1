package cases

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/police-records/registry/internal/platform/httpx"
	"github.com/police-records/registry/internal/shared"
)

// Handler exposes team, crime and offender endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, v *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validator: v}
}

type teamRequest struct {
	Name         string  `json:"name" validate:"required,max=60"`
	SupervisorID int64   `json:"supervisor_id" validate:"required,gt=0"`
	MemberIDs    []int64 `json:"member_ids" validate:"omitempty,dive,gt=0"`
}

type crimeRequest struct {
	Nature      string `json:"nature"`
	Description string `json:"description"`
	QuartierID  int64  `json:"quartier_id" validate:"required,gt=0"`
	TeamID      int64  `json:"team_id" validate:"required,gt=0"`
	Resolved    bool   `json:"resolved"`
}

type offenderRequest struct {
	LastName    string `json:"last_name" validate:"required,max=60"`
	FirstName   string `json:"first_name" validate:"required,max=90"`
	Sex         string `json:"sex" validate:"required"`
	BirthDate   string `json:"birth_date" validate:"required"`
	BirthCityID *int64 `json:"birth_city_id" validate:"omitempty,gt=0"`
	NationalID  string `json:"national_id" validate:"max=11"`
	Phone       string `json:"phone" validate:"omitempty,phone"`
	PhotoKey    string `json:"photo_key" validate:"max=512"`
	CrimeID     int64  `json:"crime_id" validate:"required,gt=0"`
}

func (r offenderRequest) input() (OffenderInput, error) {
	birth, err := httpx.OptionalDate("birth_date", &r.BirthDate)
	if err != nil {
		return OffenderInput{}, err
	}
	in := OffenderInput{
		LastName:    r.LastName,
		FirstName:   r.FirstName,
		Sex:         r.Sex,
		BirthCityID: r.BirthCityID,
		NationalID:  r.NationalID,
		Phone:       r.Phone,
		PhotoKey:    r.PhotoKey,
		CrimeID:     r.CrimeID,
	}
	if birth != nil {
		in.BirthDate = *birth
	}
	return in, nil
}

// MountRoutes registers team, crime and offender routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/teams", func(r chi.Router) {
		r.Get("/", h.listTeams)
		r.Post("/", h.createTeam)
		r.Get("/{id}", h.getTeam)
		r.Put("/{id}", h.updateTeam)
		r.Delete("/{id}", h.deleteTeam)
		r.Post("/{id}/members/{officerID}", h.addMember)
		r.Delete("/{id}/members/{officerID}", h.removeMember)
	})
	r.Route("/crimes", func(r chi.Router) {
		r.Get("/", h.listCrimes)
		r.Post("/", h.createCrime)
		r.Get("/{id}", h.getCrime)
		r.Put("/{id}", h.updateCrime)
		r.Delete("/{id}", h.deleteCrime)
		r.Get("/{id}/offenders", h.crimeOffenders)
	})
	r.Route("/offenders", func(r chi.Router) {
		r.Get("/", h.listOffenders)
		r.Post("/", h.createOffender)
		r.Get("/{id}", h.getOffender)
		r.Put("/{id}", h.updateOffender)
		r.Delete("/{id}", h.deleteOffender)
	})
}

func (h *Handler) listTeams(w http.ResponseWriter, r *http.Request) {
	supervisorID, err := httpx.OptionalIDQuery(r, "supervisor_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	teams, err := h.service.ListTeams(r.Context(), supervisorID)
	if err != nil {
		h.fail(w, "list teams failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, teams)
}

func (h *Handler) createTeam(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	team, err := h.service.CreateTeam(r.Context(), TeamInput{Name: req.Name, SupervisorID: req.SupervisorID, MemberIDs: req.MemberIDs})
	if err != nil {
		h.fail(w, "create team failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, team)
}

func (h *Handler) getTeam(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	team, err := h.service.GetTeam(r.Context(), id)
	if err != nil {
		h.fail(w, "get team failed", err, slog.Int64("team_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, team)
}

func (h *Handler) updateTeam(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req teamRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	team, err := h.service.UpdateTeam(r.Context(), id, TeamInput{Name: req.Name, SupervisorID: req.SupervisorID})
	if err != nil {
		h.fail(w, "update team failed", err, slog.Int64("team_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, team)
}

func (h *Handler) deleteTeam(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteTeam(r.Context(), id); err != nil {
		h.fail(w, "delete team failed", err, slog.Int64("team_id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func memberParams(r *http.Request) (int64, int64, error) {
	teamID, err := httpx.IDParam(r, "id")
	if err != nil {
		return 0, 0, err
	}
	officerID, err := httpx.IDParam(r, "officerID")
	if err != nil {
		return 0, 0, err
	}
	return teamID, officerID, nil
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	teamID, officerID, err := memberParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	team, err := h.service.AddMember(r.Context(), teamID, officerID)
	if err != nil {
		h.fail(w, "add team member failed", err, slog.Int64("team_id", teamID), slog.Int64("officer_id", officerID))
		return
	}
	httpx.JSON(w, http.StatusOK, team)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	teamID, officerID, err := memberParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	team, err := h.service.RemoveMember(r.Context(), teamID, officerID)
	if err != nil {
		h.fail(w, "remove team member failed", err, slog.Int64("team_id", teamID), slog.Int64("officer_id", officerID))
		return
	}
	httpx.JSON(w, http.StatusOK, team)
}

func (h *Handler) listCrimes(w http.ResponseWriter, r *http.Request) {
	var filter CrimeFilter
	var err error
	if filter.QuartierID, err = httpx.OptionalIDQuery(r, "quartier_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.TeamID, err = httpx.OptionalIDQuery(r, "team_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if raw := r.URL.Query().Get("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.RespondError(w, shared.Invalid("resolved", "must be true or false"))
			return
		}
		filter.Resolved = &resolved
	}
	crimes, err := h.service.ListCrimes(r.Context(), filter)
	if err != nil {
		h.fail(w, "list crimes failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, crimes)
}

func (h *Handler) createCrime(w http.ResponseWriter, r *http.Request) {
	var req crimeRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	crime, err := h.service.CreateCrime(r.Context(), CrimeInput(req))
	if err != nil {
		h.fail(w, "create crime failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, crime)
}

func (h *Handler) getCrime(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	crime, err := h.service.GetCrime(r.Context(), id)
	if err != nil {
		h.fail(w, "get crime failed", err, slog.Int64("crime_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, crime)
}

func (h *Handler) updateCrime(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req crimeRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	crime, err := h.service.UpdateCrime(r.Context(), id, CrimeInput(req))
	if err != nil {
		h.fail(w, "update crime failed", err, slog.Int64("crime_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, crime)
}

func (h *Handler) deleteCrime(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteCrime(r.Context(), id); err != nil {
		h.fail(w, "delete crime failed", err, slog.Int64("crime_id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) crimeOffenders(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	offenders, err := h.service.CrimeOffenders(r.Context(), id)
	if err != nil {
		h.fail(w, "list crime offenders failed", err, slog.Int64("crime_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, offenders)
}

func (h *Handler) listOffenders(w http.ResponseWriter, r *http.Request) {
	crimeID, err := httpx.OptionalIDQuery(r, "crime_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	offenders, err := h.service.ListOffenders(r.Context(), crimeID)
	if err != nil {
		h.fail(w, "list offenders failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, offenders)
}

func (h *Handler) createOffender(w http.ResponseWriter, r *http.Request) {
	var req offenderRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in, err := req.input()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	o, err := h.service.CreateOffender(r.Context(), in)
	if err != nil {
		h.fail(w, "create offender failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, o)
}

func (h *Handler) getOffender(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	o, err := h.service.GetOffender(r.Context(), id)
	if err != nil {
		h.fail(w, "get offender failed", err, slog.Int64("offender_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) updateOffender(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req offenderRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in, err := req.input()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	o, err := h.service.UpdateOffender(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update offender failed", err, slog.Int64("offender_id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) deleteOffender(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteOffender(r.Context(), id); err != nil {
		h.fail(w, "delete offender failed", err, slog.Int64("offender_id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error, attrs ...any) {
	h.logger.Error(msg, append([]any{slog.Any("error", err)}, attrs...)...)
	httpx.RespondError(w, err)
}
