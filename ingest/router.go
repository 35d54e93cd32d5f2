package ingest

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	agencydomain "github.com/tkamdem/livrazone/agency/domain"
	groupdomain "github.com/tkamdem/livrazone/group/domain"
)

// Router decides which agency and group an inbound event belongs to,
// auto-provisioning unknown group channels on first contact.
type Router struct {
	agencies agencydomain.Repository
	groups   groupdomain.Repository

	// defaultAgencyID, when set, owns every newly provisioned group.
	defaultAgencyID int64
	// restrictGroupID, when set, limits ingestion to one channel.
	restrictGroupID string
}

func NewRouter(agencies agencydomain.Repository, groups groupdomain.Repository, defaultAgencyID int64, restrictGroupID string) *Router {
	return &Router{
		agencies:        agencies,
		groups:          groups,
		defaultAgencyID: defaultAgencyID,
		restrictGroupID: restrictGroupID,
	}
}

// Route is the routing verdict for one event.
type Route struct {
	AgencyID int64
	GroupID  int64
	Accepted bool
	Reason   string
}

func rejected(reason string) *Route {
	return &Route{Accepted: false, Reason: reason}
}

// Resolve maps the event to its tenant. Non-group and self-sent events
// are rejected outright; unknown groups are provisioned active and
// bound to an agency.
func (r *Router) Resolve(ctx context.Context, ev RawEvent) (*Route, error) {
	if !ev.IsGroup || ev.ExternalGroupID == "" {
		return rejected("not a group message"), nil
	}
	if ev.FromSelf {
		return rejected("own message"), nil
	}
	if r.restrictGroupID != "" && ev.ExternalGroupID != r.restrictGroupID {
		return rejected("group not allowed"), nil
	}

	g, err := r.groups.GetByExternalID(ctx, ev.ExternalGroupID)
	if errors.Is(err, groupdomain.ErrGroupNotFound) {
		g, err = r.provision(ctx, ev)
	}
	if err != nil {
		return nil, err
	}
	if !g.Active {
		return rejected("group inactive"), nil
	}
	return &Route{AgencyID: g.AgencyID, GroupID: g.ID, Accepted: true}, nil
}

func (r *Router) provision(ctx context.Context, ev RawEvent) (*groupdomain.Group, error) {
	agencyID, err := r.pickAgency(ctx)
	if err != nil {
		return nil, err
	}

	name := ev.GroupDisplayName
	if name == "" {
		name = ev.ExternalGroupID
	}
	g := &groupdomain.Group{
		AgencyID:   agencyID,
		ExternalID: ev.ExternalGroupID,
		Name:       name,
		Active:     true,
	}
	err = r.groups.Create(ctx, g)
	if errors.Is(err, groupdomain.ErrDuplicateExternalID) {
		// Lost a provisioning race; the winner's row is authoritative.
		return r.groups.GetByExternalID(ctx, ev.ExternalGroupID)
	}
	if err != nil {
		return nil, err
	}
	logrus.Infof("[ROUTER] Provisioned group %q (%s) for agency %d", g.Name, g.ExternalID, agencyID)
	return g, nil
}

// pickAgency chooses the owner for a new group: the configured default
// agency first, otherwise the oldest active tenant.
func (r *Router) pickAgency(ctx context.Context) (int64, error) {
	if r.defaultAgencyID > 0 {
		a, err := r.agencies.GetByID(ctx, r.defaultAgencyID)
		if err == nil && a.Active && !a.IsSuperAdmin() {
			return r.defaultAgencyID, nil
		}
		logrus.Warnf("[ROUTER] Configured default agency %d unusable, falling back to tenant list", r.defaultAgencyID)
	}
	tenants, err := r.agencies.ListActiveTenants(ctx)
	if err != nil {
		return 0, err
	}
	if len(tenants) == 0 {
		return 0, agencydomain.ErrNoTenantAvailable
	}
	return tenants[0].ID, nil
}
