package ipam

import (
	"testing"

	"vns/internal/models"
	"vns/internal/netcalc"
	"vns/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db   *gorm.DB
	repo *Repo
	sim  models.Simulator
	topo models.Topology
	port models.Port
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	f := &fixture{db: db, repo: NewRepo(db)}

	f.sim = models.Simulator{Name: "sim-west", Address: "10.255.0.1"}
	require.NoError(t, db.Create(&f.sim).Error)

	tpl := models.TopologyTemplate{Name: "2-node", OwnerID: 1, OrganizationID: 1, Visibility: models.VisibilityPublic}
	require.NoError(t, db.Create(&tpl).Error)
	node := models.Node{TemplateID: tpl.ID, Name: "client", Type: models.NodeVirtual}
	require.NoError(t, db.Create(&node).Error)
	f.port = models.Port{NodeID: node.ID, Name: "eth0"}
	require.NoError(t, db.Create(&f.port).Error)
	f.topo = models.Topology{OwnerID: 1, TemplateID: tpl.ID}
	require.NoError(t, db.Create(&f.topo).Error)
	return f
}

func TestCreateRootBlock_Canonicalizes(t *testing.T) {
	f := setup(t)

	b, err := f.repo.CreateRootBlock(f.sim.ID, 1, "10.0.1.7", 24)
	require.NoError(t, err)
	assert.Equal(t, "10.0.1.0", b.Subnet, "stored as the network address")
	assert.Equal(t, "10.0.1.0/24", b.CIDR())
}

func TestCreateRootBlock_Invalid(t *testing.T) {
	f := setup(t)

	_, err := f.repo.CreateRootBlock(f.sim.ID, 1, "not-an-ip", 24)
	var fe *netcalc.FormatError
	require.ErrorAs(t, err, &fe)

	_, err = f.repo.CreateRootBlock(f.sim.ID, 1, "10.0.0.0", 33)
	var re *netcalc.RangeError
	require.ErrorAs(t, err, &re)

	var n int64
	require.NoError(t, f.db.Model(&models.IPBlock{}).Count(&n).Error)
	assert.Zero(t, n, "nothing persisted on invalid input")
}

func TestAllocateChildBlock_Containment(t *testing.T) {
	f := setup(t)

	parent, err := f.repo.CreateRootBlock(f.sim.ID, 1, "10.0.0.0", 16)
	require.NoError(t, err)

	child, err := f.repo.AllocateChildBlock(parent.ID, 2, "10.0.4.0", 24)
	require.NoError(t, err)
	assert.Equal(t, parent.SimulatorID, child.SimulatorID, "simulator inherited")
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)

	// outside the parent's range
	_, err = f.repo.AllocateChildBlock(parent.ID, 2, "10.1.0.0", 24)
	assert.ErrorIs(t, err, ErrOutsideParent)

	// wider than the parent
	_, err = f.repo.AllocateChildBlock(parent.ID, 2, "10.0.0.0", 8)
	assert.ErrorIs(t, err, ErrOutsideParent)

	kids, err := f.repo.ListChildren(parent.ID)
	require.NoError(t, err)
	assert.Len(t, kids, 1)
}

func TestDeleteBlock_RefusesWithChildren(t *testing.T) {
	f := setup(t)

	parent, err := f.repo.CreateRootBlock(f.sim.ID, 1, "10.0.0.0", 16)
	require.NoError(t, err)
	child, err := f.repo.AllocateChildBlock(parent.ID, 1, "10.0.1.0", 24)
	require.NoError(t, err)

	assert.ErrorIs(t, f.repo.DeleteBlock(parent.ID), ErrHasChildren)
	require.NoError(t, f.repo.DeleteBlock(child.ID))
	require.NoError(t, f.repo.DeleteBlock(parent.ID))
}

func TestAssign_RejectsBeforePersistence(t *testing.T) {
	f := setup(t)

	_, err := f.repo.Assign(f.topo.ID, f.port.ID, "10.0.0.2", 33)
	var re *netcalc.RangeError
	require.ErrorAs(t, err, &re)

	_, err = f.repo.Assign(f.topo.ID, f.port.ID, "10.0.0.2", 0)
	require.ErrorAs(t, err, &re)

	_, err = f.repo.Assign(f.topo.ID, f.port.ID, "999.1.1.1", 24)
	var fe *netcalc.FormatError
	require.ErrorAs(t, err, &fe)

	var n int64
	require.NoError(t, f.db.Model(&models.IPAssignment{}).Count(&n).Error)
	assert.Zero(t, n, "no partial rows for rejected assignments")
}

func TestAssign_And_Binding(t *testing.T) {
	f := setup(t)

	a, err := f.repo.Assign(f.topo.ID, f.port.ID, "10.0.0.2", 24)
	require.NoError(t, err)

	b, err := BindingFor(a)
	require.NoError(t, err)
	assert.Equal(t, [4]byte{10, 0, 0, 2}, b.IP)
	assert.Equal(t, [4]byte{0xFF, 0xFF, 0xFF, 0x00}, b.Mask)
	assert.Equal(t, byte(0x00), b.MAC[0])

	wire := b.Encode()
	require.Len(t, wire, 14)
	assert.Equal(t, b.IP[:], wire[0:4])
	assert.Equal(t, b.Mask[:], wire[4:8])
	assert.Equal(t, b.MAC[:], wire[8:14])

	// deterministic across calls
	b2, err := BindingFor(a)
	require.NoError(t, err)
	assert.Equal(t, b, b2)
}

func TestAllocateInBlock(t *testing.T) {
	f := setup(t)

	blk, err := f.repo.CreateRootBlock(f.sim.ID, 1, "10.0.0.0", 29)
	require.NoError(t, err)

	// /29: .0 network, .1 gateway, .7 broadcast; usable .2..6
	var got []string
	for i := 0; i < 5; i++ {
		a, err := f.repo.AllocateInBlock(blk.ID, f.topo.ID, f.port.ID)
		require.NoError(t, err)
		assert.Equal(t, 29, a.Mask)
		got = append(got, a.Address)
	}
	assert.Equal(t, []string{"10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5", "10.0.0.6"}, got)

	_, err = f.repo.AllocateInBlock(blk.ID, f.topo.ID, f.port.ID)
	assert.ErrorIs(t, err, ErrNoFreeAddress)

	// releasing one frees it for the next allocation
	recs, err := f.repo.AssignmentsForTopology(f.topo.ID)
	require.NoError(t, err)
	require.NoError(t, f.repo.Release(recs[2].ID)) // 10.0.0.4
	a, err := f.repo.AllocateInBlock(blk.ID, f.topo.ID, f.port.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.4", a.Address)
}
