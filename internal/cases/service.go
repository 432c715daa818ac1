package cases

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/police-records/registry/internal/platform/blob"
	"github.com/police-records/registry/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Exists(ctx context.Context, ref Ref, id int64) (bool, error)

	GetTeam(ctx context.Context, id int64) (Team, error)
	ListTeams(ctx context.Context, supervisorID *int64) ([]Team, error)
	UpdateTeam(ctx context.Context, team Team) (Team, error)
	DeleteTeam(ctx context.Context, id int64) error
	InsertMember(ctx context.Context, teamID, officerID int64) error

	GetCrime(ctx context.Context, id int64) (Crime, error)
	CrimeForTeam(ctx context.Context, teamID int64) (Crime, bool, error)
	ListCrimes(ctx context.Context, filter CrimeFilter) ([]Crime, error)
	InsertCrime(ctx context.Context, crime Crime) (Crime, error)
	DeleteCrime(ctx context.Context, id int64) error

	GetOffender(ctx context.Context, id int64) (Offender, error)
	ListOffenders(ctx context.Context, crimeID *int64) ([]Offender, error)
	InsertOffender(ctx context.Context, o Offender) (Offender, error)
	UpdateOffender(ctx context.Context, o Offender) (Offender, error)
	DeleteOffender(ctx context.Context, id int64) error
}

// Service manages investigation teams, crimes and offenders.
type Service struct {
	repo   RepositoryPort
	blobs  blob.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the service. blobs may be nil.
func NewService(repo RepositoryPort, blobs blob.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, blobs: blobs, logger: logger, now: time.Now}
}

// WithClock replaces the time source used for resolution timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) require(ctx context.Context, ref Ref, id int64, field string) error {
	ok, err := s.repo.Exists(ctx, ref, id)
	if err != nil {
		return err
	}
	if !ok {
		return shared.MissingReference(field)
	}
	return nil
}

// TeamInput describes a team write.
type TeamInput struct {
	Name         string
	SupervisorID int64
	MemberIDs    []int64
}

// CreateTeam inserts a team with at least one member.
func (s *Service) CreateTeam(ctx context.Context, input TeamInput) (Team, error) {
	team := Team{Name: input.Name, SupervisorID: input.SupervisorID}
	if err := validateTeam(&team); err != nil {
		return Team{}, err
	}
	members := dedupe(input.MemberIDs)
	if len(members) == 0 {
		return Team{}, shared.Invalid("member_ids", "a team needs at least one officer")
	}
	if err := s.require(ctx, RefCommissioner, team.SupervisorID, "supervisor_id"); err != nil {
		return Team{}, err
	}
	for _, id := range members {
		if err := s.require(ctx, RefOfficer, id, "member_ids"); err != nil {
			return Team{}, err
		}
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertTeam(ctx, team)
		if err != nil {
			return fmt.Errorf("cases: create team: %w", err)
		}
		for _, id := range members {
			if err := tx.InsertMember(ctx, created.ID, id); err != nil {
				return fmt.Errorf("cases: add member %d: %w", id, err)
			}
		}
		created.MemberIDs = members
		team = created
		return nil
	})
	if err != nil {
		return Team{}, err
	}
	s.logger.Info("investigation team formed", slog.Int64("team_id", team.ID), slog.Int("members", len(members)))
	return team, nil
}

// GetTeam returns a team with its members.
func (s *Service) GetTeam(ctx context.Context, id int64) (Team, error) {
	return s.repo.GetTeam(ctx, id)
}

// ListTeams returns teams, optionally for one supervisor.
func (s *Service) ListTeams(ctx context.Context, supervisorID *int64) ([]Team, error) {
	return s.repo.ListTeams(ctx, supervisorID)
}

// UpdateTeam renames a team or changes its supervisor. Members are managed
// with AddMember and RemoveMember.
func (s *Service) UpdateTeam(ctx context.Context, id int64, input TeamInput) (Team, error) {
	team := Team{ID: id, Name: input.Name, SupervisorID: input.SupervisorID}
	if err := validateTeam(&team); err != nil {
		return Team{}, err
	}
	if err := s.require(ctx, RefCommissioner, team.SupervisorID, "supervisor_id"); err != nil {
		return Team{}, err
	}
	updated, err := s.repo.UpdateTeam(ctx, team)
	if err != nil {
		return Team{}, fmt.Errorf("cases: update team %d: %w", id, err)
	}
	return updated, nil
}

// DeleteTeam removes a team together with the crime it investigates.
func (s *Service) DeleteTeam(ctx context.Context, id int64) error {
	if err := s.repo.DeleteTeam(ctx, id); err != nil {
		return fmt.Errorf("cases: delete team %d: %w", id, err)
	}
	return nil
}

// AddMember adds an officer to a team.
func (s *Service) AddMember(ctx context.Context, teamID, officerID int64) (Team, error) {
	if err := s.require(ctx, RefTeam, teamID, "team_id"); err != nil {
		return Team{}, err
	}
	if err := s.require(ctx, RefOfficer, officerID, "officer_id"); err != nil {
		return Team{}, err
	}
	if err := s.repo.InsertMember(ctx, teamID, officerID); err != nil {
		return Team{}, fmt.Errorf("cases: add member %d to team %d: %w", officerID, teamID, err)
	}
	return s.repo.GetTeam(ctx, teamID)
}

// RemoveMember takes an officer off a team. The last member cannot leave.
func (s *Service) RemoveMember(ctx context.Context, teamID, officerID int64) (Team, error) {
	var team Team
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockTeam(ctx, teamID)
		if err != nil {
			return err
		}
		if !slices.Contains(current.MemberIDs, officerID) {
			return fmt.Errorf("cases: officer %d in team %d: %w", officerID, teamID, shared.ErrNotFound)
		}
		if len(current.MemberIDs) == 1 {
			return shared.Invalid("officer_id", "a team keeps at least one officer")
		}
		if err := tx.DeleteMember(ctx, teamID, officerID); err != nil {
			return err
		}
		current.MemberIDs = slices.DeleteFunc(current.MemberIDs, func(id int64) bool { return id == officerID })
		team = current
		return nil
	})
	if err != nil {
		return Team{}, err
	}
	return team, nil
}

// CrimeInput describes a crime write.
type CrimeInput struct {
	Nature      string
	Description string
	QuartierID  int64
	TeamID      int64
	Resolved    bool
}

// CreateCrime records a crime. A resolved crime gets its resolution time now.
func (s *Service) CreateCrime(ctx context.Context, input CrimeInput) (Crime, error) {
	crime, err := s.prepareCrime(ctx, 0, input)
	if err != nil {
		return Crime{}, err
	}
	crime.ResolvedAt = resolvedAt(false, nil, crime.Resolved, s.now())
	created, err := s.repo.InsertCrime(ctx, crime)
	if err != nil {
		return Crime{}, fmt.Errorf("cases: create crime: %w", err)
	}
	s.logger.Info("crime recorded", slog.Int64("crime_id", created.ID), slog.String("nature", string(created.Nature)))
	return created, nil
}

// UpdateCrime rewrites a crime. The resolution time is set when the crime
// becomes resolved, kept while it stays resolved and cleared otherwise.
func (s *Service) UpdateCrime(ctx context.Context, id int64, input CrimeInput) (Crime, error) {
	next, err := s.prepareCrime(ctx, id, input)
	if err != nil {
		return Crime{}, err
	}
	var updated Crime
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		prev, err := tx.LockCrime(ctx, id)
		if err != nil {
			return err
		}
		next.ID = id
		next.ResolvedAt = resolvedAt(prev.Resolved, prev.ResolvedAt, next.Resolved, s.now())
		updated, err = tx.UpdateCrime(ctx, next)
		if err != nil {
			return fmt.Errorf("cases: update crime %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return Crime{}, err
	}
	return updated, nil
}

// GetCrime returns one crime.
func (s *Service) GetCrime(ctx context.Context, id int64) (Crime, error) {
	return s.repo.GetCrime(ctx, id)
}

// ListCrimes returns crimes matching the filter.
func (s *Service) ListCrimes(ctx context.Context, filter CrimeFilter) ([]Crime, error) {
	return s.repo.ListCrimes(ctx, filter)
}

// DeleteCrime removes a crime and its offenders.
func (s *Service) DeleteCrime(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCrime(ctx, id); err != nil {
		return fmt.Errorf("cases: delete crime %d: %w", id, err)
	}
	return nil
}

func (s *Service) prepareCrime(ctx context.Context, id int64, input CrimeInput) (Crime, error) {
	nature, err := ParseNature(input.Nature)
	if err != nil {
		return Crime{}, err
	}
	crime := Crime{
		Nature:      nature,
		Description: shared.NormalizeText(input.Description),
		QuartierID:  input.QuartierID,
		TeamID:      input.TeamID,
		Resolved:    input.Resolved,
	}
	if crime.QuartierID <= 0 {
		return Crime{}, shared.Invalid("quartier_id", "is required")
	}
	if crime.TeamID <= 0 {
		return Crime{}, shared.Invalid("team_id", "is required")
	}
	if err := s.require(ctx, RefQuartier, crime.QuartierID, "quartier_id"); err != nil {
		return Crime{}, err
	}
	if err := s.require(ctx, RefTeam, crime.TeamID, "team_id"); err != nil {
		return Crime{}, err
	}
	assigned, found, err := s.repo.CrimeForTeam(ctx, crime.TeamID)
	if err != nil {
		return Crime{}, err
	}
	if found && assigned.ID != id {
		return Crime{}, &shared.UniquenessViolation{Constraint: TeamConstraint}
	}
	return crime, nil
}

// OffenderInput describes an offender write.
type OffenderInput struct {
	LastName    string
	FirstName   string
	Sex         string
	BirthDate   time.Time
	BirthCityID *int64
	NationalID  string
	Phone       string
	PhotoKey    string
	CrimeID     int64
}

// CreateOffender records an offender against a crime.
func (s *Service) CreateOffender(ctx context.Context, input OffenderInput) (Offender, error) {
	o, err := s.prepareOffender(ctx, input)
	if err != nil {
		return Offender{}, err
	}
	created, err := s.repo.InsertOffender(ctx, o)
	if err != nil {
		return Offender{}, fmt.Errorf("cases: create offender: %w", err)
	}
	return created, nil
}

// UpdateOffender rewrites an offender.
func (s *Service) UpdateOffender(ctx context.Context, id int64, input OffenderInput) (Offender, error) {
	o, err := s.prepareOffender(ctx, input)
	if err != nil {
		return Offender{}, err
	}
	o.ID = id
	updated, err := s.repo.UpdateOffender(ctx, o)
	if err != nil {
		return Offender{}, fmt.Errorf("cases: update offender %d: %w", id, err)
	}
	return updated, nil
}

// GetOffender returns one offender.
func (s *Service) GetOffender(ctx context.Context, id int64) (Offender, error) {
	return s.repo.GetOffender(ctx, id)
}

// ListOffenders returns every offender, or those of one crime.
func (s *Service) ListOffenders(ctx context.Context, crimeID *int64) ([]Offender, error) {
	return s.repo.ListOffenders(ctx, crimeID)
}

// CrimeOffenders returns the offenders of an existing crime.
func (s *Service) CrimeOffenders(ctx context.Context, crimeID int64) ([]Offender, error) {
	if _, err := s.repo.GetCrime(ctx, crimeID); err != nil {
		return nil, err
	}
	return s.repo.ListOffenders(ctx, &crimeID)
}

// DeleteOffender removes an offender.
func (s *Service) DeleteOffender(ctx context.Context, id int64) error {
	if err := s.repo.DeleteOffender(ctx, id); err != nil {
		return fmt.Errorf("cases: delete offender %d: %w", id, err)
	}
	return nil
}

func (s *Service) prepareOffender(ctx context.Context, input OffenderInput) (Offender, error) {
	o, err := buildOffender(input, s.now())
	if err != nil {
		return Offender{}, err
	}
	if err := s.require(ctx, RefCrime, o.CrimeID, "crime_id"); err != nil {
		return Offender{}, err
	}
	if o.BirthCityID != nil {
		if err := s.require(ctx, RefVille, *o.BirthCityID, "birth_city_id"); err != nil {
			return Offender{}, err
		}
	}
	if o.PhotoKey != "" {
		if err := blob.Verify(ctx, s.blobs, "photo_key", o.PhotoKey); err != nil {
			return Offender{}, err
		}
	}
	return o, nil
}

func dedupe(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
