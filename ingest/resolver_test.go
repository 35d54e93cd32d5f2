package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkamdem/livrazone/core/tenant"
	deliverydomain "github.com/tkamdem/livrazone/delivery/domain"
	"github.com/tkamdem/livrazone/ingest/parser"
)

func seedDelivery(t *testing.T, repo *fakeDeliveryRepo, d *deliverydomain.Delivery) *deliverydomain.Delivery {
	t.Helper()
	require.NoError(t, repo.Insert(context.Background(), d, "test"))
	return d
}

func TestResolverQuotedReplyWinsOverPhone(t *testing.T) {
	repo := newFakeDeliveryRepo()
	tariffs := newFakeTariffRepo()
	agency := int64(1)
	tariffs.set(agency, "Bonapriso", 1000)

	d := seedDelivery(t, repo, &deliverydomain.Delivery{
		Phone: "612345678", Items: "2 robes", AmountDue: 15000,
		Quartier: "Bonapriso", Status: deliverydomain.StatusPending,
		AgencyID: &agency, WhatsappMessageID: "MSG-1",
	})

	r := NewResolver(repo, tariffs, DefaultFees())
	out, err := r.ApplyUpdate(context.Background(),
		&parser.Update{Action: parser.ActionMarkDelivered},
		RawEvent{ExternalMessageID: "MSG-2", QuotedExternalMessageID: "MSG-1"},
		tenant.ForAgency(agency))
	require.NoError(t, err)
	require.True(t, out.Applied)

	got, err := repo.GetByID(context.Background(), d.ID, tenant.ForAgency(agency))
	require.NoError(t, err)
	assert.Equal(t, deliverydomain.StatusDelivered, got.Status)
	assert.Equal(t, int64(1000), got.DeliveryFee)
	assert.Equal(t, int64(14000), got.AmountPaid)
	assert.Equal(t, 2, repo.historyCount(d.ID))
}

func TestResolverPhoneFallback(t *testing.T) {
	repo := newFakeDeliveryRepo()
	agency := int64(1)
	d := seedDelivery(t, repo, &deliverydomain.Delivery{
		Phone: "655555555", AmountDue: 50000, Status: deliverydomain.StatusPending, AgencyID: &agency,
	})

	r := NewResolver(repo, newFakeTariffRepo(), DefaultFees())
	out, err := r.ApplyUpdate(context.Background(),
		&parser.Update{Action: parser.ActionMarkPickup, Phone: "655555555"},
		RawEvent{ExternalMessageID: "MSG-9"},
		tenant.ForAgency(agency))
	require.NoError(t, err)
	require.True(t, out.Applied)

	got, _ := repo.GetByID(context.Background(), d.ID, tenant.ForAgency(agency))
	assert.Equal(t, deliverydomain.StatusPickup, got.Status)
	assert.Equal(t, int64(1000), got.DeliveryFee)
	assert.Equal(t, int64(49000), got.AmountPaid)
}

func TestResolverTargetErrors(t *testing.T) {
	repo := newFakeDeliveryRepo()
	r := NewResolver(repo, newFakeTariffRepo(), DefaultFees())
	scope := tenant.ForAgency(1)

	_, err := r.ApplyUpdate(context.Background(),
		&parser.Update{Action: parser.ActionMarkFailed},
		RawEvent{ExternalMessageID: "M"}, scope)
	assert.ErrorIs(t, err, deliverydomain.ErrTargetUnresolved)

	_, err = r.ApplyUpdate(context.Background(),
		&parser.Update{Action: parser.ActionMarkFailed, Phone: "699999999"},
		RawEvent{ExternalMessageID: "M"}, scope)
	assert.ErrorIs(t, err, deliverydomain.ErrTargetMissing)

	_, err = r.ApplyUpdate(context.Background(),
		&parser.Update{Action: parser.ActionMarkFailed},
		RawEvent{ExternalMessageID: "M", QuotedExternalMessageID: "UNKNOWN"}, scope)
	assert.ErrorIs(t, err, deliverydomain.ErrTargetMissing)
}

func TestResolverScopeMismatchIsMissing(t *testing.T) {
	repo := newFakeDeliveryRepo()
	agency := int64(1)
	seedDelivery(t, repo, &deliverydomain.Delivery{
		Phone: "612345678", AmountDue: 5000, Status: deliverydomain.StatusPending,
		AgencyID: &agency, WhatsappMessageID: "MSG-1",
	})

	r := NewResolver(repo, newFakeTariffRepo(), DefaultFees())
	_, err := r.ApplyUpdate(context.Background(),
		&parser.Update{Action: parser.ActionMarkDelivered, Phone: "612345678"},
		RawEvent{ExternalMessageID: "M", QuotedExternalMessageID: "MSG-1"},
		tenant.ForAgency(2))
	assert.ErrorIs(t, err, deliverydomain.ErrTargetMissing)
}

func TestResolverCollectAccumulatesAndDedups(t *testing.T) {
	repo := newFakeDeliveryRepo()
	agency := int64(1)
	d := seedDelivery(t, repo, &deliverydomain.Delivery{
		Phone: "655555555", AmountDue: 12000, Status: deliverydomain.StatusPending,
		AgencyID: &agency, WhatsappMessageID: "ANN-1",
	})

	r := NewResolver(repo, newFakeTariffRepo(), DefaultFees())
	scope := tenant.ForAgency(agency)
	ctx := context.Background()
	five, seven := int64(5000), int64(7000)

	out, err := r.ApplyUpdate(ctx,
		&parser.Update{Action: parser.ActionCollect, Phone: "655555555", Amount: &five},
		RawEvent{ExternalMessageID: "COL-1"}, scope)
	require.NoError(t, err)
	require.True(t, out.Applied)
	assert.Equal(t, int64(5000), out.Delivery.AmountPaid)
	assert.Equal(t, deliverydomain.StatusPending, out.Delivery.Status)

	out, err = r.ApplyUpdate(ctx,
		&parser.Update{Action: parser.ActionCollect, Phone: "655555555", Amount: &seven},
		RawEvent{ExternalMessageID: "COL-2"}, scope)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), out.Delivery.AmountPaid)
	assert.Equal(t, deliverydomain.StatusDelivered, out.Delivery.Status)

	// Same message id again: transport redelivery, must not double-pay.
	out, err = r.ApplyUpdate(ctx,
		&parser.Update{Action: parser.ActionCollect, Phone: "655555555", Amount: &seven},
		RawEvent{ExternalMessageID: "COL-2", QuotedExternalMessageID: "ANN-1"}, scope)
	require.NoError(t, err)
	assert.False(t, out.Applied)

	got, _ := repo.GetByID(ctx, d.ID, scope)
	assert.Equal(t, int64(12000), got.AmountPaid)
	// created + two collections.
	assert.Equal(t, 3, repo.historyCount(d.ID))
}

func TestResolverModifyRecomputesWhenDelivered(t *testing.T) {
	repo := newFakeDeliveryRepo()
	agency := int64(1)
	seedDelivery(t, repo, &deliverydomain.Delivery{
		Phone: "612345678", Items: "2 robes", AmountDue: 15000, AmountPaid: 14000,
		DeliveryFee: 1000, Status: deliverydomain.StatusDelivered,
		AgencyID: &agency, WhatsappMessageID: "MSG-1",
	})

	r := NewResolver(repo, newFakeTariffRepo(), DefaultFees())
	due := int64(20000)
	items := "3 robes"
	out, err := r.ApplyUpdate(context.Background(),
		&parser.Update{Action: parser.ActionModify, AmountDue: &due, Items: &items},
		RawEvent{ExternalMessageID: "M2", QuotedExternalMessageID: "MSG-1"},
		tenant.ForAgency(agency))
	require.NoError(t, err)
	assert.Equal(t, "3 robes", out.Delivery.Items)
	assert.Equal(t, int64(20000), out.Delivery.AmountDue)
	assert.Equal(t, int64(19000), out.Delivery.AmountPaid)
}

func TestResolverChangePhone(t *testing.T) {
	repo := newFakeDeliveryRepo()
	agency := int64(1)
	d := seedDelivery(t, repo, &deliverydomain.Delivery{
		Phone: "612345678", AmountDue: 5000, Status: deliverydomain.StatusPending, AgencyID: &agency,
	})

	r := NewResolver(repo, newFakeTariffRepo(), DefaultFees())
	out, err := r.ApplyUpdate(context.Background(),
		&parser.Update{Action: parser.ActionChangePhone, OldPhone: "612345678", NewPhone: "699999999"},
		RawEvent{ExternalMessageID: "M"},
		tenant.ForAgency(agency))
	require.NoError(t, err)
	assert.Equal(t, "699999999", out.Delivery.Phone)

	got, _ := repo.GetByID(context.Background(), d.ID, tenant.ForAgency(agency))
	assert.Equal(t, "699999999", got.Phone)
}
