package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	agencydomain "github.com/tkamdem/livrazone/agency/domain"
	groupdomain "github.com/tkamdem/livrazone/group/domain"
)

func groupEvent(externalGroupID string) RawEvent {
	return RawEvent{
		Body:              "hello",
		ExternalMessageID: "M1",
		ExternalGroupID:   externalGroupID,
		GroupDisplayName:  "Livraisons Douala",
		IsGroup:           true,
	}
}

func TestRouterRejectsNonGroupAndSelf(t *testing.T) {
	r := NewRouter(&fakeAgencyRepo{}, newFakeGroupRepo(), 0, "")

	route, err := r.Resolve(context.Background(), RawEvent{IsGroup: false})
	require.NoError(t, err)
	assert.False(t, route.Accepted)

	ev := groupEvent("g1@g.us")
	ev.FromSelf = true
	route, err = r.Resolve(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, route.Accepted)
}

func TestRouterGroupAllowList(t *testing.T) {
	groups := newFakeGroupRepo()
	agencies := &fakeAgencyRepo{agencies: []*agencydomain.Agency{
		{ID: 1, Role: agencydomain.RoleAgency, Active: true},
	}}
	r := NewRouter(agencies, groups, 0, "only@g.us")

	route, err := r.Resolve(context.Background(), groupEvent("other@g.us"))
	require.NoError(t, err)
	assert.False(t, route.Accepted)

	route, err = r.Resolve(context.Background(), groupEvent("only@g.us"))
	require.NoError(t, err)
	assert.True(t, route.Accepted)
}

func TestRouterAutoProvisionsUnknownGroup(t *testing.T) {
	groups := newFakeGroupRepo()
	agencies := &fakeAgencyRepo{agencies: []*agencydomain.Agency{
		{ID: 9, Role: agencydomain.RoleSuperAdmin, Active: true},
		{ID: 4, Role: agencydomain.RoleAgency, Active: true},
		{ID: 7, Role: agencydomain.RoleAgency, Active: true},
	}}
	r := NewRouter(agencies, groups, 0, "")

	route, err := r.Resolve(context.Background(), groupEvent("new@g.us"))
	require.NoError(t, err)
	require.True(t, route.Accepted)
	// Oldest active non-admin tenant wins.
	assert.Equal(t, int64(4), route.AgencyID)

	g, err := groups.GetByExternalID(context.Background(), "new@g.us")
	require.NoError(t, err)
	assert.True(t, g.Active)
	assert.Equal(t, "Livraisons Douala", g.Name)
	assert.Equal(t, g.ID, route.GroupID)
}

func TestRouterDefaultAgencyWins(t *testing.T) {
	groups := newFakeGroupRepo()
	agencies := &fakeAgencyRepo{agencies: []*agencydomain.Agency{
		{ID: 4, Role: agencydomain.RoleAgency, Active: true},
		{ID: 7, Role: agencydomain.RoleAgency, Active: true},
	}}
	r := NewRouter(agencies, groups, 7, "")

	route, err := r.Resolve(context.Background(), groupEvent("new@g.us"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), route.AgencyID)
}

func TestRouterInactiveDefaultFallsBack(t *testing.T) {
	groups := newFakeGroupRepo()
	agencies := &fakeAgencyRepo{agencies: []*agencydomain.Agency{
		{ID: 1, Role: agencydomain.RoleAgency, Active: false},
		{ID: 2, Role: agencydomain.RoleAgency, Active: true},
	}}
	r := NewRouter(agencies, groups, 1, "")

	// A deactivated default agency must not own new groups.
	route, err := r.Resolve(context.Background(), groupEvent("new@g.us"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), route.AgencyID)
}

func TestRouterSuperAdminDefaultFallsBack(t *testing.T) {
	groups := newFakeGroupRepo()
	agencies := &fakeAgencyRepo{agencies: []*agencydomain.Agency{
		{ID: 1, Role: agencydomain.RoleSuperAdmin, Active: true},
		{ID: 2, Role: agencydomain.RoleAgency, Active: true},
	}}
	r := NewRouter(agencies, groups, 1, "")

	route, err := r.Resolve(context.Background(), groupEvent("new@g.us"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), route.AgencyID)
}

func TestRouterMissingDefaultFallsBack(t *testing.T) {
	groups := newFakeGroupRepo()
	agencies := &fakeAgencyRepo{agencies: []*agencydomain.Agency{
		{ID: 4, Role: agencydomain.RoleAgency, Active: true},
	}}
	r := NewRouter(agencies, groups, 99, "")

	route, err := r.Resolve(context.Background(), groupEvent("new@g.us"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), route.AgencyID)
}

func TestRouterNoTenantAvailable(t *testing.T) {
	r := NewRouter(&fakeAgencyRepo{}, newFakeGroupRepo(), 0, "")
	_, err := r.Resolve(context.Background(), groupEvent("new@g.us"))
	assert.ErrorIs(t, err, agencydomain.ErrNoTenantAvailable)
}

func TestRouterInactiveGroupRejected(t *testing.T) {
	groups := newFakeGroupRepo()
	require.NoError(t, groups.Create(context.Background(), &groupdomain.Group{
		AgencyID: 1, ExternalID: "g1@g.us", Name: "old", Active: false,
	}))
	r := NewRouter(&fakeAgencyRepo{}, groups, 0, "")

	route, err := r.Resolve(context.Background(), groupEvent("g1@g.us"))
	require.NoError(t, err)
	assert.False(t, route.Accepted)
	assert.Equal(t, "group inactive", route.Reason)
}

func TestRouterProvisionRaceRereads(t *testing.T) {
	groups := newFakeGroupRepo()
	require.NoError(t, groups.Create(context.Background(), &groupdomain.Group{
		AgencyID: 3, ExternalID: "g1@g.us", Name: "winner", Active: true,
	}))

	// Simulate losing the race: the repo already holds the row, and the
	// router's create will return the duplicate error.
	agencies := &fakeAgencyRepo{agencies: []*agencydomain.Agency{
		{ID: 1, Role: agencydomain.RoleAgency, Active: true},
	}}
	r := NewRouter(agencies, groups, 0, "")
	route, err := r.Resolve(context.Background(), groupEvent("g1@g.us"))
	require.NoError(t, err)
	assert.True(t, route.Accepted)
	assert.Equal(t, int64(3), route.AgencyID)
}
