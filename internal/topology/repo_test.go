package topology

import (
	"testing"

	"vns/internal/models"
	"vns/internal/netcalc"
	"vns/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// buildTemplate makes a two-node template: client:eth0 <-> srv:eth0.
func buildTemplate(t *testing.T, repo *Repo, name string, vis models.Visibility) (*models.TopologyTemplate, *models.Port, *models.Port) {
	t.Helper()
	tpl, err := repo.CreateTemplate(name, 1, 1, vis)
	require.NoError(t, err)
	client, err := repo.AddNode(tpl.ID, "client", models.NodeVirtual)
	require.NoError(t, err)
	srv, err := repo.AddNode(tpl.ID, "srv", models.NodeWebServer)
	require.NoError(t, err)
	p1, err := repo.AddPort(client.ID, "eth0")
	require.NoError(t, err)
	p2, err := repo.AddPort(srv.ID, "eth0")
	require.NoError(t, err)
	_, err = repo.AddLink(p1.ID, p2.ID, 0.0)
	require.NoError(t, err)
	return tpl, p1, p2
}

func TestCreateTemplate_DuplicateName(t *testing.T) {
	repo := NewRepo(testutil.OpenDB(t))

	_, err := repo.CreateTemplate("2-node", 1, 1, models.VisibilityPublic)
	require.NoError(t, err)
	_, err = repo.CreateTemplate("2-node", 2, 1, models.VisibilityPublic)
	assert.ErrorIs(t, err, ErrNameTaken)
}

func TestCreateTemplate_BadVisibility(t *testing.T) {
	repo := NewRepo(testutil.OpenDB(t))

	_, err := repo.CreateTemplate("x", 1, 1, models.Visibility(5))
	var re *netcalc.RangeError
	require.ErrorAs(t, err, &re)
}

func TestAddNode_BadType(t *testing.T) {
	repo := NewRepo(testutil.OpenDB(t))

	tpl, err := repo.CreateTemplate("x", 1, 1, models.VisibilityPublic)
	require.NoError(t, err)
	_, err = repo.AddNode(tpl.ID, "n", models.NodeType(9))
	var re *netcalc.RangeError
	require.ErrorAs(t, err, &re)
}

func TestAddLink_Validation(t *testing.T) {
	repo := NewRepo(testutil.OpenDB(t))
	_, p1, p2 := buildTemplate(t, repo, "2-node", models.VisibilityPublic)

	_, err := repo.AddLink(p1.ID, p1.ID, 0.0)
	assert.ErrorIs(t, err, ErrSameEndpoint)

	_, err = repo.AddLink(p1.ID, p2.ID, 1.5)
	var re *netcalc.RangeError
	require.ErrorAs(t, err, &re)

	l, err := repo.AddLink(p1.ID, p2.ID, 0.25)
	require.NoError(t, err)
	assert.Equal(t, 0.25, l.Lossiness)
}

func TestAddLink_CrossTemplate(t *testing.T) {
	repo := NewRepo(testutil.OpenDB(t))
	_, p1, _ := buildTemplate(t, repo, "a", models.VisibilityPublic)
	_, q1, _ := buildTemplate(t, repo, "b", models.VisibilityPublic)

	_, err := repo.AddLink(p1.ID, q1.ID, 0.0)
	assert.ErrorIs(t, err, ErrCrossTemplate)
}

func TestTemplateGraph(t *testing.T) {
	repo := NewRepo(testutil.OpenDB(t))
	tpl, _, _ := buildTemplate(t, repo, "2-node", models.VisibilityPublic)

	g, err := repo.TemplateGraph(tpl.ID)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Ports, 2)
	assert.Len(t, g.Links, 1)
}

func TestDeleteTemplate_Cascades(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewRepo(db)
	tpl, _, _ := buildTemplate(t, repo, "2-node", models.VisibilityPublic)

	require.NoError(t, repo.DeleteTemplate(tpl.ID))

	var n int64
	require.NoError(t, db.Model(&models.Node{}).Where("template_id = ?", tpl.ID).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Model(&models.Link{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Model(&models.Port{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestInstantiate_Visibility(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewRepo(db)

	// owner 1 is in org 1; user 2 in org 1; user 3 in org 2
	require.NoError(t, db.Create(&models.UserProfile{UserID: 1, OrganizationID: 1, Position: models.PositionInstructor}).Error)
	require.NoError(t, db.Create(&models.UserProfile{UserID: 2, OrganizationID: 1, Position: models.PositionStudent}).Error)
	require.NoError(t, db.Create(&models.UserProfile{UserID: 3, OrganizationID: 2, Position: models.PositionStudent}).Error)

	private, _, _ := buildTemplate(t, repo, "private", models.VisibilityPrivate)
	protected, _, _ := buildTemplate(t, repo, "protected", models.VisibilityProtected)
	public, _, _ := buildTemplate(t, repo, "public", models.VisibilityPublic)

	_, err := repo.Instantiate(private.ID, 1)
	assert.NoError(t, err, "owner may use a private template")
	_, err = repo.Instantiate(private.ID, 2)
	assert.ErrorIs(t, err, ErrNotPermitted)

	_, err = repo.Instantiate(protected.ID, 2)
	assert.NoError(t, err, "same org may use a protected template")
	_, err = repo.Instantiate(protected.ID, 3)
	assert.ErrorIs(t, err, ErrNotPermitted)

	_, err = repo.Instantiate(public.ID, 3)
	assert.NoError(t, err)
}

func TestMayInteract(t *testing.T) {
	repo := NewRepo(testutil.OpenDB(t))
	tpl, _, _ := buildTemplate(t, repo, "2-node", models.VisibilityPublic)
	topo, err := repo.Instantiate(tpl.ID, 1)
	require.NoError(t, err)

	// no whitelist rows: anyone may interact
	ok, err := repo.MayInteract(topo.ID, "192.168.0.9")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.AllowAddress(topo.ID, "10.9.0.1")
	require.NoError(t, err)

	ok, err = repo.MayInteract(topo.ID, "10.9.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MayInteract(topo.ID, "192.168.0.9")
	require.NoError(t, err)
	assert.False(t, ok, "whitelist present, unlisted address refused")
}

func TestAllowAddress_BadAddress(t *testing.T) {
	repo := NewRepo(testutil.OpenDB(t))
	tpl, _, _ := buildTemplate(t, repo, "2-node", models.VisibilityPublic)
	topo, err := repo.Instantiate(tpl.ID, 1)
	require.NoError(t, err)

	_, err = repo.AllowAddress(topo.ID, "999.1.1.1")
	var fe *netcalc.FormatError
	require.ErrorAs(t, err, &fe)
}

func TestDeleteTopology_Cascades(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewRepo(db)
	tpl, p1, _ := buildTemplate(t, repo, "2-node", models.VisibilityPublic)
	topo, err := repo.Instantiate(tpl.ID, 1)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.IPAssignment{TopologyID: topo.ID, PortID: p1.ID, Address: "10.0.0.2", Mask: 24}).Error)
	_, err = repo.AllowAddress(topo.ID, "10.9.0.1")
	require.NoError(t, err)

	require.NoError(t, repo.DeleteTopology(topo.ID))

	_, err = repo.GetTopology(topo.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	var n int64
	require.NoError(t, db.Model(&models.IPAssignment{}).Where("topology_id = ?", topo.ID).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Model(&models.TopologyUser{}).Where("topology_id = ?", topo.ID).Count(&n).Error)
	assert.Zero(t, n)
}
