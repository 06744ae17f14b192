package directory

import (
	"testing"

	"vns/internal/models"
	"vns/internal/netcalc"
	"vns/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSimulator_Unique(t *testing.T) {
	repo := NewRepo(testutil.OpenDB(t))

	s, err := repo.CreateSimulator("sim-west", "10.1.0.1")
	require.NoError(t, err)
	assert.NotZero(t, s.ID)

	_, err = repo.CreateSimulator("sim-west", "10.1.0.2")
	assert.ErrorIs(t, err, ErrNameTaken)

	_, err = repo.CreateSimulator("sim-east", "10.1.0.1")
	assert.ErrorIs(t, err, ErrAddressTaken)
}

func TestCreateSimulator_BadAddress(t *testing.T) {
	repo := NewRepo(testutil.OpenDB(t))

	_, err := repo.CreateSimulator("sim", "not-an-ip")
	var fe *netcalc.FormatError
	require.ErrorAs(t, err, &fe)

	sims, err := repo.ListSimulators()
	require.NoError(t, err)
	assert.Empty(t, sims, "nothing persisted on invalid input")
}

func TestOrganizationTree_CycleRefused(t *testing.T) {
	repo := NewRepo(testutil.OpenDB(t))

	root, err := repo.CreateOrganization("uni", 1, nil)
	require.NoError(t, err)
	dept, err := repo.CreateOrganization("uni-cs", 1, &root.ID)
	require.NoError(t, err)
	lab, err := repo.CreateOrganization("uni-cs-netlab", 2, &dept.ID)
	require.NoError(t, err)

	// re-parenting root under its grandchild would close a loop
	err = repo.SetOrganizationParent(root.ID, &lab.ID)
	assert.ErrorIs(t, err, ErrOrgCycle)

	// self-parenting is the degenerate cycle
	err = repo.SetOrganizationParent(dept.ID, &dept.ID)
	assert.ErrorIs(t, err, ErrOrgCycle)

	// detaching is always fine
	require.NoError(t, repo.SetOrganizationParent(dept.ID, nil))
}

func TestCreateOrganization_DuplicateName(t *testing.T) {
	repo := NewRepo(testutil.OpenDB(t))

	_, err := repo.CreateOrganization("uni", 1, nil)
	require.NoError(t, err)
	_, err = repo.CreateOrganization("uni", 2, nil)
	assert.ErrorIs(t, err, ErrNameTaken)
}

func TestAdmins(t *testing.T) {
	repo := NewRepo(testutil.OpenDB(t))

	org, err := repo.CreateOrganization("uni", 1, nil)
	require.NoError(t, err)

	require.NoError(t, repo.AddAdmin(org.ID, 7))
	require.NoError(t, repo.AddAdmin(org.ID, 3))
	require.NoError(t, repo.AddAdmin(org.ID, 7)) // idempotent

	admins, err := repo.Admins(org.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 7}, admins)

	require.NoError(t, repo.RemoveAdmin(org.ID, 3))
	admins, err = repo.Admins(org.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{7}, admins)
}

func TestUpsertProfile(t *testing.T) {
	repo := NewRepo(testutil.OpenDB(t))

	org, err := repo.CreateOrganization("uni", 1, nil)
	require.NoError(t, err)

	p, err := repo.UpsertProfile(42, org.ID, models.PositionStudent)
	require.NoError(t, err)
	assert.Equal(t, models.PositionStudent, p.Position)

	// same user updates in place, no second row
	p2, err := repo.UpsertProfile(42, org.ID, models.PositionTA)
	require.NoError(t, err)
	assert.Equal(t, p.ID, p2.ID)
	assert.Equal(t, models.PositionTA, p2.Position)

	got, err := repo.GetProfile(42)
	require.NoError(t, err)
	assert.Equal(t, models.PositionTA, got.Position)
}

func TestUpsertProfile_BadPosition(t *testing.T) {
	repo := NewRepo(testutil.OpenDB(t))

	// 2 is a hole in the historical numbering, not a valid position
	_, err := repo.UpsertProfile(42, 1, models.Position(2))
	var re *netcalc.RangeError
	require.ErrorAs(t, err, &re)

	_, err = repo.UpsertProfile(42, 1, models.Position(99))
	require.ErrorAs(t, err, &re)
}
