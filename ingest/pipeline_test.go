package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	agencydomain "github.com/tkamdem/livrazone/agency/domain"
	"github.com/tkamdem/livrazone/core/tenant"
	deliverydomain "github.com/tkamdem/livrazone/delivery/domain"
	"github.com/tkamdem/livrazone/ingest/parser"
)

func newTestPipeline(t *testing.T) (*Pipeline, *fakeDeliveryRepo, *fakeTariffRepo, *fakeSender) {
	t.Helper()
	deliveries := newFakeDeliveryRepo()
	tariffs := newFakeTariffRepo()
	agencies := &fakeAgencyRepo{agencies: []*agencydomain.Agency{
		{ID: 1, Role: agencydomain.RoleAgency, Active: true},
	}}
	sender := &fakeSender{}
	router := NewRouter(agencies, newFakeGroupRepo(), 0, "")
	resolver := NewResolver(deliveries, tariffs, DefaultFees())
	p := NewPipeline(parser.New(), router, resolver, deliveries, nil, sender, true)
	return p, deliveries, tariffs, sender
}

func TestPipelineCreatesFromAnnouncement(t *testing.T) {
	p, deliveries, tariffs, sender := newTestPipeline(t)
	tariffs.set(1, "Bonapriso", 1000)
	ctx := context.Background()

	ev := RawEvent{
		Body:              "612345678\n2 robes\n15k\nBonapriso",
		ExternalMessageID: "ANN-1",
		ExternalGroupID:   "g1@g.us",
		IsGroup:           true,
	}
	require.NoError(t, p.Process(ctx, ev))

	d, err := deliveries.FindByMessageID(ctx, "ANN-1", tenant.ForAgency(1))
	require.NoError(t, err)
	assert.Equal(t, "612345678", d.Phone)
	assert.Equal(t, "2 robes", d.Items)
	assert.Equal(t, int64(15000), d.AmountDue)
	assert.Equal(t, "Bonapriso", d.Quartier)
	assert.Equal(t, deliverydomain.StatusPending, d.Status)
	assert.Zero(t, d.AmountPaid)
	assert.Zero(t, d.DeliveryFee)
	require.NotNil(t, d.GroupID)
	assert.Equal(t, 1, sender.count())

	// Redelivery of the same announcement creates nothing new.
	require.NoError(t, p.Process(ctx, ev))
	assert.Equal(t, 1, deliveries.historyCount(d.ID))
}

func TestPipelineQuotedReplyTransitions(t *testing.T) {
	p, deliveries, tariffs, _ := newTestPipeline(t)
	tariffs.set(1, "Bonapriso", 1000)
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, RawEvent{
		Body:              "612345678\n2 robes\n15k\nBonapriso",
		ExternalMessageID: "ANN-1",
		ExternalGroupID:   "g1@g.us",
		IsGroup:           true,
	}))
	require.NoError(t, p.Process(ctx, RawEvent{
		Body:                    "Livré",
		ExternalMessageID:       "UPD-1",
		ExternalGroupID:         "g1@g.us",
		IsGroup:                 true,
		QuotedExternalMessageID: "ANN-1",
	}))

	d, err := deliveries.FindByMessageID(ctx, "ANN-1", tenant.ForAgency(1))
	require.NoError(t, err)
	assert.Equal(t, deliverydomain.StatusDelivered, d.Status)
	assert.Equal(t, int64(1000), d.DeliveryFee)
	assert.Equal(t, int64(14000), d.AmountPaid)
	assert.Equal(t, 2, deliveries.historyCount(d.ID))
}

func TestPipelineIgnoresChatterAndOwnMessages(t *testing.T) {
	p, deliveries, _, sender := newTestPipeline(t)
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, RawEvent{
		Body: "bonjour tout le monde", ExternalMessageID: "M1",
		ExternalGroupID: "g1@g.us", IsGroup: true,
	}))
	require.NoError(t, p.Process(ctx, RawEvent{
		Body: "612345678\n2 robes\n15k\nBonapriso", ExternalMessageID: "M2",
		ExternalGroupID: "g1@g.us", IsGroup: true, FromSelf: true,
	}))

	assert.Empty(t, deliveries.rows)
	assert.Zero(t, sender.count())
}

func TestPipelineMissingTargetSendsWarning(t *testing.T) {
	p, _, _, sender := newTestPipeline(t)

	require.NoError(t, p.Process(context.Background(), RawEvent{
		Body: "livré 699999999", ExternalMessageID: "M1",
		ExternalGroupID: "g1@g.us", IsGroup: true,
	}))
	assert.Equal(t, 1, sender.count())
}

func TestPipelineOnChangeHook(t *testing.T) {
	p, _, _, _ := newTestPipeline(t)
	var events []string
	p.OnChange = func(event string, d *deliverydomain.Delivery) {
		events = append(events, event)
	}

	require.NoError(t, p.Process(context.Background(), RawEvent{
		Body: "612345678\n2 robes\n15k\nBonapriso", ExternalMessageID: "M1",
		ExternalGroupID: "g1@g.us", IsGroup: true,
	}))
	assert.Equal(t, []string{"created"}, events)
}
