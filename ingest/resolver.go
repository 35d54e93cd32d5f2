package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tkamdem/livrazone/core/tenant"
	deliverydomain "github.com/tkamdem/livrazone/delivery/domain"
	"github.com/tkamdem/livrazone/ingest/parser"
	"github.com/tkamdem/livrazone/pkg/money"
	tariffdomain "github.com/tkamdem/livrazone/tariff/domain"
)

const actorBot = "bot"

// Resolver locates the delivery an update refers to and applies the
// mutation. Reply threading wins over phone lookup: when the sender
// quoted the original announcement, that message id is authoritative.
type Resolver struct {
	deliveries deliverydomain.Repository
	tariffs    tariffdomain.Repository
	fees       Fees
}

func NewResolver(deliveries deliverydomain.Repository, tariffs tariffdomain.Repository, fees Fees) *Resolver {
	return &Resolver{deliveries: deliveries, tariffs: tariffs, fees: fees}
}

// Outcome reports what an applied update did, for confirmation texts.
type Outcome struct {
	Delivery *deliverydomain.Delivery
	Applied  bool
	Reason   string
}

// ApplyUpdate resolves the target delivery and executes the mutation in
// one repository transaction. ErrTargetUnresolved means the body gave
// no usable key; ErrTargetMissing means the key matched nothing.
func (r *Resolver) ApplyUpdate(ctx context.Context, upd *parser.Update, ev RawEvent, scope tenant.Scope) (*Outcome, error) {
	if upd.Action == parser.ActionChangePhone {
		return r.changePhone(ctx, upd, ev, scope)
	}

	d, err := r.resolveTarget(ctx, upd, ev, scope)
	if err != nil {
		return nil, err
	}

	switch upd.Action {
	case parser.ActionCollect:
		return r.collect(ctx, d, upd, ev)
	case parser.ActionModify:
		return r.modify(ctx, d, upd, ev)
	case parser.ActionMarkDelivered:
		return r.transition(ctx, d, deliverydomain.StatusDelivered, upd.Amount, ev)
	case parser.ActionMarkFailed:
		return r.transition(ctx, d, deliverydomain.StatusFailed, nil, ev)
	case parser.ActionMarkPickup:
		return r.transition(ctx, d, deliverydomain.StatusPickup, nil, ev)
	case parser.ActionMarkPending:
		return r.transition(ctx, d, deliverydomain.StatusPending, nil, ev)
	}
	return nil, deliverydomain.ErrTargetUnresolved
}

func (r *Resolver) resolveTarget(ctx context.Context, upd *parser.Update, ev RawEvent, scope tenant.Scope) (*deliverydomain.Delivery, error) {
	if ev.QuotedExternalMessageID != "" {
		d, err := r.deliveries.FindByMessageID(ctx, ev.QuotedExternalMessageID, scope)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, deliverydomain.ErrDeliveryNotFound) {
			return nil, err
		}
		// Quoted something that is not a tracked announcement; fall
		// back to the phone if the body carries one.
	}
	if upd.Phone == "" {
		if ev.QuotedExternalMessageID != "" {
			return nil, deliverydomain.ErrTargetMissing
		}
		return nil, deliverydomain.ErrTargetUnresolved
	}
	d, err := r.deliveries.FindByPhone(ctx, upd.Phone, true, scope)
	if errors.Is(err, deliverydomain.ErrDeliveryNotFound) {
		return nil, deliverydomain.ErrTargetMissing
	}
	return d, err
}

// TransitionStatus applies the status algebra to an already-loaded row
// and persists it with a history entry. The REST surface shares this
// with the chat pipeline.
func (r *Resolver) TransitionStatus(ctx context.Context, d *deliverydomain.Delivery, next deliverydomain.Status, manualFee, explicitPaid *int64, actor, externalMessageID string) error {
	if !deliverydomain.ValidStatuses[next] {
		return fmt.Errorf("invalid status %q", next)
	}
	prev := d.Status
	ApplyTransition(d, next, manualFee, explicitPaid, r.tariffFor(ctx, d), r.fees)

	details := mustJSON(map[string]any{
		"from":                prev,
		"to":                  next,
		"delivery_fee":        d.DeliveryFee,
		"amount_paid":         d.AmountPaid,
		"external_message_id": externalMessageID,
	})
	return r.deliveries.Update(ctx, d, deliverydomain.ActionStatusChanged, details, actor)
}

func (r *Resolver) transition(ctx context.Context, d *deliverydomain.Delivery, next deliverydomain.Status, paid *int64, ev RawEvent) (*Outcome, error) {
	if err := r.TransitionStatus(ctx, d, next, nil, paid, actorBot, ev.ExternalMessageID); err != nil {
		return nil, err
	}
	return &Outcome{Delivery: d, Applied: true}, nil
}

// collect adds the amount to amount_paid, deduplicated by the inbound
// message id so transport redeliveries never double-pay.
func (r *Resolver) collect(ctx context.Context, d *deliverydomain.Delivery, upd *parser.Update, ev RawEvent) (*Outcome, error) {
	seen, err := r.deliveries.HasCollection(ctx, d.ID, ev.ExternalMessageID)
	if err != nil {
		return nil, err
	}
	if seen {
		logrus.Infof("[RESOLVER] Duplicate collection %s on delivery %d, skipping", ev.ExternalMessageID, d.ID)
		return &Outcome{Delivery: d, Applied: false, Reason: "duplicate collection"}, nil
	}

	amount := *upd.Amount
	newPaid := d.AmountPaid + amount
	if newPaid >= d.AmountDue && d.AmountDue > 0 {
		ApplyTransition(d, deliverydomain.StatusDelivered, nil, &newPaid, r.tariffFor(ctx, d), r.fees)
	} else {
		d.AmountPaid = newPaid
	}

	details := mustJSON(map[string]any{
		"amount":              amount,
		"amount_paid":         d.AmountPaid,
		"status":              d.Status,
		"external_message_id": ev.ExternalMessageID,
	})
	if err := r.deliveries.Update(ctx, d, deliverydomain.ActionPaymentReceived, details, actorBot); err != nil {
		return nil, err
	}
	return &Outcome{Delivery: d, Applied: true}, nil
}

func (r *Resolver) modify(ctx context.Context, d *deliverydomain.Delivery, upd *parser.Update, ev RawEvent) (*Outcome, error) {
	changed := map[string]any{"external_message_id": ev.ExternalMessageID}
	if upd.Items != nil {
		d.Items = *upd.Items
		changed["items"] = *upd.Items
	}
	if upd.AmountDue != nil {
		d.AmountDue = *upd.AmountDue
		changed["amount_due"] = *upd.AmountDue
		if d.Status == deliverydomain.StatusDelivered {
			d.AmountPaid = money.Max0(d.AmountDue - d.DeliveryFee)
			changed["amount_paid"] = d.AmountPaid
		}
	}
	if err := r.deliveries.Update(ctx, d, deliverydomain.ActionUpdated, mustJSON(changed), actorBot); err != nil {
		return nil, err
	}
	return &Outcome{Delivery: d, Applied: true}, nil
}

func (r *Resolver) changePhone(ctx context.Context, upd *parser.Update, ev RawEvent, scope tenant.Scope) (*Outcome, error) {
	d, err := r.deliveries.FindByPhone(ctx, upd.OldPhone, true, scope)
	if errors.Is(err, deliverydomain.ErrDeliveryNotFound) {
		return nil, deliverydomain.ErrTargetMissing
	}
	if err != nil {
		return nil, err
	}
	old := d.Phone
	d.Phone = upd.NewPhone
	details := mustJSON(map[string]any{
		"old_phone":           old,
		"new_phone":           upd.NewPhone,
		"external_message_id": ev.ExternalMessageID,
	})
	if err := r.deliveries.Update(ctx, d, deliverydomain.ActionPhoneChanged, details, actorBot); err != nil {
		return nil, err
	}
	return &Outcome{Delivery: d, Applied: true}, nil
}

// tariffFor looks up the agency tariff for the delivery's quartier. A
// missing tariff is not an error, the fee rule just falls through.
func (r *Resolver) tariffFor(ctx context.Context, d *deliverydomain.Delivery) *int64 {
	if r.tariffs == nil || d.AgencyID == nil || d.Quartier == "" {
		return nil
	}
	t, err := r.tariffs.Lookup(ctx, *d.AgencyID, d.Quartier)
	if err != nil {
		if !errors.Is(err, tariffdomain.ErrTariffNotFound) {
			logrus.WithError(err).Warnf("[RESOLVER] Tariff lookup failed for agency %d quartier %q", *d.AgencyID, d.Quartier)
		}
		return nil
	}
	return &t.Amount
}

func mustJSON(v map[string]any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
