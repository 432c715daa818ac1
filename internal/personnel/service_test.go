package personnel_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/police-records/registry/internal/integration"
	"github.com/police-records/registry/internal/personnel"
	"github.com/police-records/registry/internal/personnel/personneltest"
	"github.com/police-records/registry/internal/platform/blob"
	"github.com/police-records/registry/internal/shared"
)

func newService(repo *personneltest.MemoryRepository, blobs blob.Store) *personnel.Service {
	return personnel.NewService(repo, integration.NewProfileSync(nil, nil), blobs, nil).
		WithPasswordCost(bcrypt.MinCost).
		WithClock(func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) })
}

func strPtr(s string) *string { return &s }
func idPtr(id int64) *int64 { return &id }

func TestCreateAccountProvisionsExactlyOneProfile(t *testing.T) {
	cases := []struct {
		role personnel.RoleInput
		want personnel.Role
	}{
		{"1", personnel.RoleMinistry},
		{"2", personnel.RoleCommissioner},
		{"3", personnel.RoleOfficer},
		{"officer", personnel.RoleOfficer},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			repo := personneltest.NewMemoryRepository()
			svc := newService(repo, nil)

			rec, err := svc.CreateAccount(context.Background(), personnel.CreateAccountInput{
				Username: "agent", Password: "s3cret-pass", Role: tc.role,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, rec.Role)
			require.NotNil(t, rec.Profile)
			assert.Equal(t, rec.ID, rec.Profile.AccountID)

			for _, role := range personnel.Roles {
				profiles := repo.Profiles(role)
				if role == tc.want {
					require.Len(t, profiles, 1)
					assert.Equal(t, rec.ID, profiles[0].AccountID)
				} else {
					assert.Empty(t, profiles, "unexpected %s profile", role)
				}
			}
		})
	}
}

func TestCreateOfficerAccountWithPhone(t *testing.T) {
	repo := personneltest.NewMemoryRepository()
	svc := newService(repo, nil)

	rec, err := svc.CreateAccount(context.Background(), personnel.CreateAccountInput{
		Username: "ngono",
		Password: "s3cret-pass",
		Role:     "3",
		Profile:  &personnel.ProfileChanges{Phone: strPtr("0712345678")},
	})
	require.NoError(t, err)

	officers := repo.Profiles(personnel.RoleOfficer)
	require.Len(t, officers, 1)
	require.NotNil(t, officers[0].Phone)
	assert.Equal(t, "0712345678", *officers[0].Phone)
	assert.Nil(t, officers[0].StationID)
	assert.Equal(t, officers[0].ID, rec.Profile.ID)
	assert.Empty(t, repo.Profiles(personnel.RoleMinistry))
	assert.Empty(t, repo.Profiles(personnel.RoleCommissioner))
}

func TestCreateAccountDuplicateNationalIDRollsBack(t *testing.T) {
	repo := personneltest.NewMemoryRepository()
	svc := newService(repo, nil)
	ctx := context.Background()

	_, err := svc.CreateAccount(ctx, personnel.CreateAccountInput{
		Username: "first", Password: "s3cret-pass", Role: "2",
		Profile: &personnel.ProfileChanges{NationalID: strPtr("CM0001")},
	})
	require.NoError(t, err)

	_, err = svc.CreateAccount(ctx, personnel.CreateAccountInput{
		Username: "second", Password: "s3cret-pass", Role: "2",
		Profile: &personnel.ProfileChanges{NationalID: strPtr("CM0001")},
	})
	require.ErrorIs(t, err, shared.ErrUniqueness)

	assert.Equal(t, 1, repo.Accounts())
	assert.Len(t, repo.Profiles(personnel.RoleCommissioner), 1)
	for _, a := range repo.Audits() {
		assert.NotEqual(t, "second", a.Meta["username"])
	}
}

func TestCreateAccountRejectsUnknownRoleBeforeWriting(t *testing.T) {
	repo := personneltest.NewMemoryRepository()
	svc := newService(repo, nil)

	_, err := svc.CreateAccount(context.Background(), personnel.CreateAccountInput{
		Username: "ghost", Password: "s3cret-pass", Role: "4",
	})
	require.ErrorIs(t, err, shared.ErrInconsistentRole)
	assert.Zero(t, repo.Accounts())
	assert.Empty(t, repo.Audits())
}

func TestCreateAccountHashesPassword(t *testing.T) {
	repo := personneltest.NewMemoryRepository()
	svc := newService(repo, nil)
	ctx := context.Background()

	rec, err := svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "hash", Password: "s3cret-pass", Role: "1"})
	require.NoError(t, err)

	stored, err := repo.GetAccount(ctx, rec.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret-pass")))

	_, err = svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "short", Password: "abc", Role: "1"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateAccountRecordsAudit(t *testing.T) {
	repo := personneltest.NewMemoryRepository()
	svc := newService(repo, nil)

	_, err := svc.CreateAccount(context.Background(), personnel.CreateAccountInput{Username: "audit", Password: "s3cret-pass", Role: "2"})
	require.NoError(t, err)

	var actions []string
	for _, a := range repo.Audits() {
		actions = append(actions, a.Action)
	}
	assert.Equal(t, []string{"PROFILE_PROVISIONED", "ACCOUNT_CREATED"}, actions)
}

func TestUpdateAccountRejectsRoleChange(t *testing.T) {
	repo := personneltest.NewMemoryRepository()
	svc := newService(repo, nil)
	ctx := context.Background()

	rec, err := svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "fixed", Password: "s3cret-pass", Role: "3"})
	require.NoError(t, err)

	newRole := personnel.RoleInput("2")
	_, err = svc.UpdateAccount(ctx, rec.ID, personnel.UpdateAccountInput{Role: &newRole})
	require.ErrorIs(t, err, shared.ErrInconsistentRole)

	same := personnel.RoleInput("OFFICER")
	_, err = svc.UpdateAccount(ctx, rec.ID, personnel.UpdateAccountInput{Role: &same, FirstName: strPtr("Paul")})
	require.NoError(t, err)
	assert.Len(t, repo.Profiles(personnel.RoleOfficer), 1)
	assert.Empty(t, repo.Profiles(personnel.RoleCommissioner))
}

func TestUpdateAccountResavesProfileWithoutProvisioning(t *testing.T) {
	repo := personneltest.NewMemoryRepository()
	svc := newService(repo, nil)
	ctx := context.Background()

	rec, err := svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "resave", Password: "s3cret-pass", Role: "3"})
	require.NoError(t, err)
	before := rec.Profile.UpdatedAt

	updated, err := svc.UpdateAccount(ctx, rec.ID, personnel.UpdateAccountInput{
		Email:   strPtr("resave@police.example"),
		Profile: &personnel.ProfileChanges{Address: strPtr("Rue 1.234, Yaoundé")},
	})
	require.NoError(t, err)
	assert.Equal(t, "resave@police.example", updated.Email)
	require.NotNil(t, updated.Profile)
	assert.Equal(t, rec.Profile.ID, updated.Profile.ID)
	assert.Equal(t, "Rue 1.234, Yaoundé", *updated.Profile.Address)
	assert.True(t, updated.Profile.UpdatedAt.After(before))
	assert.Len(t, repo.Profiles(personnel.RoleOfficer), 1)
}

func TestUpdateAccountProvisionsMissingProfile(t *testing.T) {
	repo := personneltest.NewMemoryRepository()
	svc := newService(repo, nil)
	ctx := context.Background()

	rec, err := svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "legacy", Password: "s3cret-pass", Role: "1"})
	require.NoError(t, err)
	repo.DropProfile(personnel.RoleMinistry, rec.ID)

	updated, err := svc.UpdateAccount(ctx, rec.ID, personnel.UpdateAccountInput{LastName: strPtr("Mballa")})
	require.NoError(t, err)
	require.NotNil(t, updated.Profile)
	assert.Len(t, repo.Profiles(personnel.RoleMinistry), 1)
}

func TestUpdateAccountMissing(t *testing.T) {
	svc := newService(personneltest.NewMemoryRepository(), nil)
	_, err := svc.UpdateAccount(context.Background(), 77, personnel.UpdateAccountInput{})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteAccountRemovesProfile(t *testing.T) {
	repo := personneltest.NewMemoryRepository()
	svc := newService(repo, nil)
	ctx := context.Background()

	rec, err := svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "gone", Password: "s3cret-pass", Role: "2"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteAccount(ctx, rec.ID))

	assert.Zero(t, repo.Accounts())
	assert.Empty(t, repo.Profiles(personnel.RoleCommissioner))
	assert.ErrorIs(t, svc.DeleteAccount(ctx, rec.ID), shared.ErrNotFound)
}

func TestUpdateProfileRules(t *testing.T) {
	repo := personneltest.NewMemoryRepository()
	repo.AddVille(10)
	repo.AddStation(5)
	photos := blob.NewMemoryStore("profiles/officer-1.jpg")
	svc := newService(repo, photos)
	ctx := context.Background()

	ministry, err := svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "min", Password: "s3cret-pass", Role: "1"})
	require.NoError(t, err)
	chief, err := svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "chief", Password: "s3cret-pass", Role: "2"})
	require.NoError(t, err)
	officer, err := svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "off", Password: "s3cret-pass", Role: "3"})
	require.NoError(t, err)

	_, err = svc.UpdateProfile(ctx, personnel.RoleMinistry, ministry.Profile.ID, personnel.ProfileChanges{BadgeNumber: strPtr("B-1")})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.UpdateProfile(ctx, personnel.RoleCommissioner, chief.Profile.ID, personnel.ProfileChanges{StationID: idPtr(5)})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.UpdateProfile(ctx, personnel.RoleOfficer, officer.Profile.ID, personnel.ProfileChanges{Phone: strPtr("07-12-34")})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.UpdateProfile(ctx, personnel.RoleOfficer, officer.Profile.ID, personnel.ProfileChanges{BirthCityID: idPtr(99)})
	assert.ErrorIs(t, err, shared.ErrReferentialIntegrity)

	future := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.UpdateProfile(ctx, personnel.RoleOfficer, officer.Profile.ID, personnel.ProfileChanges{BirthDate: &future})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.UpdateProfile(ctx, personnel.RoleOfficer, officer.Profile.ID, personnel.ProfileChanges{PhotoKey: strPtr("profiles/unknown.jpg")})
	assert.ErrorIs(t, err, shared.ErrValidation)

	sex := personnel.Sex("f")
	p, err := svc.UpdateProfile(ctx, personnel.RoleOfficer, officer.Profile.ID, personnel.ProfileChanges{
		Sex:         &sex,
		BirthCityID: idPtr(10),
		BadgeNumber: strPtr(" OF-0042 "),
		StationID:   idPtr(5),
		PhotoKey:    strPtr("profiles/officer-1.jpg"),
	})
	require.NoError(t, err)
	assert.Equal(t, personnel.SexFemale, *p.Sex)
	assert.Equal(t, "OF-0042", *p.BadgeNumber)
	assert.Equal(t, int64(5), *p.StationID)
}

func TestUpdateProfileDuplicateBadge(t *testing.T) {
	repo := personneltest.NewMemoryRepository()
	svc := newService(repo, nil)
	ctx := context.Background()

	a, err := svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "a", Password: "s3cret-pass", Role: "2",
		Profile: &personnel.ProfileChanges{BadgeNumber: strPtr("C-7")}})
	require.NoError(t, err)
	b, err := svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "b", Password: "s3cret-pass", Role: "2"})
	require.NoError(t, err)

	_, err = svc.UpdateProfile(ctx, personnel.RoleCommissioner, b.Profile.ID, personnel.ProfileChanges{BadgeNumber: strPtr("C-7")})
	require.ErrorIs(t, err, shared.ErrUniqueness)

	_, err = svc.UpdateProfile(ctx, personnel.RoleCommissioner, a.Profile.ID, personnel.ProfileChanges{BadgeNumber: strPtr("C-7")})
	require.NoError(t, err)
}

func TestBirthCityIsUniquePerProfileTable(t *testing.T) {
	repo := personneltest.NewMemoryRepository()
	repo.AddVille(7)
	svc := newService(repo, nil)
	ctx := context.Background()

	_, err := svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "first", Password: "s3cret-pass", Role: "3",
		Profile: &personnel.ProfileChanges{BirthCityID: idPtr(7)}})
	require.NoError(t, err)

	_, err = svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "second", Password: "s3cret-pass", Role: "3",
		Profile: &personnel.ProfileChanges{BirthCityID: idPtr(7)}})
	require.ErrorIs(t, err, shared.ErrUniqueness)
	var violation *shared.UniquenessViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "officer_profiles_birth_city_id_key", violation.Constraint)
	assert.Equal(t, 1, repo.Accounts())
	assert.Len(t, repo.Profiles(personnel.RoleOfficer), 1)

	// The constraint is per table: a commissioner may share the officer's birth city.
	_, err = svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "chief", Password: "s3cret-pass", Role: "2",
		Profile: &personnel.ProfileChanges{BirthCityID: idPtr(7)}})
	require.NoError(t, err)
}

func TestUpdateProfileWithoutChangesSkipsWrite(t *testing.T) {
	repo := personneltest.NewMemoryRepository()
	svc := newService(repo, nil)
	ctx := context.Background()

	rec, err := svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "off", Password: "s3cret-pass", Role: "3"})
	require.NoError(t, err)
	before := repo.Profiles(personnel.RoleOfficer)[0]

	p, err := svc.UpdateProfile(ctx, personnel.RoleOfficer, rec.Profile.ID, personnel.ProfileChanges{})
	require.NoError(t, err)
	assert.Equal(t, before, p)
	assert.Equal(t, before.UpdatedAt, repo.Profiles(personnel.RoleOfficer)[0].UpdatedAt)

	_, err = svc.UpdateProfile(ctx, personnel.RoleOfficer, 999, personnel.ProfileChanges{})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAssignStation(t *testing.T) {
	repo := personneltest.NewMemoryRepository()
	repo.AddStation(3)
	svc := newService(repo, nil)
	ctx := context.Background()

	rec, err := svc.CreateAccount(ctx, personnel.CreateAccountInput{Username: "patrol", Password: "s3cret-pass", Role: "3"})
	require.NoError(t, err)

	_, err = svc.AssignStation(ctx, rec.Profile.ID, idPtr(4))
	require.ErrorIs(t, err, shared.ErrReferentialIntegrity)

	p, err := svc.AssignStation(ctx, rec.Profile.ID, idPtr(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), *p.StationID)

	p, err = svc.AssignStation(ctx, rec.Profile.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, p.StationID)
}

func TestDirectoryGroupsProfiles(t *testing.T) {
	repo := personneltest.NewMemoryRepository()
	svc := newService(repo, nil)
	ctx := context.Background()
	for i, code := range []personnel.RoleInput{"1", "2", "3", "3"} {
		_, err := svc.CreateAccount(ctx, personnel.CreateAccountInput{
			Username: "user" + string(rune('a'+i)), Password: "s3cret-pass", Role: code,
		})
		require.NoError(t, err)
	}

	dir, err := svc.Directory(ctx)
	require.NoError(t, err)
	assert.Len(t, dir.Ministry, 1)
	assert.Len(t, dir.Commissioners, 1)
	assert.Len(t, dir.Officers, 2)
}

func TestListAccountsByRole(t *testing.T) {
	repo := personneltest.NewMemoryRepository()
	svc := newService(repo, nil)
	ctx := context.Background()
	for i, code := range []personnel.RoleInput{"2", "3", "3"} {
		_, err := svc.CreateAccount(ctx, personnel.CreateAccountInput{
			Username: "list" + string(rune('a'+i)), Password: "s3cret-pass", Role: code,
		})
		require.NoError(t, err)
	}

	role := personnel.RoleOfficer
	officers, err := svc.ListAccounts(ctx, &role)
	require.NoError(t, err)
	assert.Len(t, officers, 2)

	all, err := svc.ListAccounts(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRoleInputJSON(t *testing.T) {
	var body struct {
		Role personnel.RoleInput `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"role": 3}`), &body))
	role, err := personnel.ParseRole(string(body.Role))
	require.NoError(t, err)
	assert.Equal(t, personnel.RoleOfficer, role)

	require.NoError(t, json.Unmarshal([]byte(`{"role": "commissioner"}`), &body))
	role, err = personnel.ParseRole(string(body.Role))
	require.NoError(t, err)
	assert.Equal(t, personnel.RoleCommissioner, role)

	require.NoError(t, json.Unmarshal([]byte(`{"role": 7}`), &body))
	_, err = personnel.ParseRole(string(body.Role))
	assert.ErrorIs(t, err, shared.ErrInconsistentRole)
}
