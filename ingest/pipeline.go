package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/tkamdem/livrazone/core/tenant"
	deliverydomain "github.com/tkamdem/livrazone/delivery/domain"
	"github.com/tkamdem/livrazone/ingest/parser"
	"github.com/tkamdem/livrazone/pkg/groupqueue"
)

// Pipeline wires the full ingestion path: route the event to its
// tenant, classify the body, and apply the resulting command. Events
// are serialized per group so updates never race their announcement.
type Pipeline struct {
	parser     *parser.Parser
	router     *Router
	resolver   *Resolver
	deliveries deliverydomain.Repository
	pool       *groupqueue.Pool
	sender     Sender
	confirm    bool

	// OnChange, when set, receives every persisted delivery mutation.
	// The live feed hub hangs off this.
	OnChange func(event string, d *deliverydomain.Delivery)
}

func NewPipeline(p *parser.Parser, router *Router, resolver *Resolver, deliveries deliverydomain.Repository, pool *groupqueue.Pool, sender Sender, confirm bool) *Pipeline {
	return &Pipeline{
		parser:     p,
		router:     router,
		resolver:   resolver,
		deliveries: deliveries,
		pool:       pool,
		sender:     sender,
		confirm:    confirm,
	}
}

// Handle enqueues the event on its group's shard and returns
// immediately. Transport callbacks must never block on database work.
func (p *Pipeline) Handle(ev RawEvent) {
	if p.pool == nil {
		_ = p.Process(context.Background(), ev)
		return
	}
	p.pool.Dispatch(groupqueue.Job{
		GroupKey: ev.ExternalGroupID,
		Handler: func(ctx context.Context) error {
			return p.Process(ctx, ev)
		},
	})
}

// Process runs one event synchronously. Exposed for the queue handler
// and for tests.
func (p *Pipeline) Process(ctx context.Context, ev RawEvent) error {
	route, err := p.router.Resolve(ctx, ev)
	if err != nil {
		logrus.WithError(err).Errorf("[PIPELINE] Routing failed for message %s", ev.ExternalMessageID)
		return err
	}
	if !route.Accepted {
		logrus.Debugf("[PIPELINE] Dropped message %s: %s", ev.ExternalMessageID, route.Reason)
		return nil
	}

	res := p.parser.Parse(ev.Body)
	switch res.Kind {
	case parser.KindCreate:
		return p.create(ctx, res.Create, ev, route)
	case parser.KindUpdate:
		return p.update(ctx, res.Update, ev, route)
	}
	return nil
}

func (p *Pipeline) create(ctx context.Context, cr *parser.Create, ev RawEvent, route *Route) error {
	scope := tenant.ForAgency(route.AgencyID)

	// Transport redelivery of an announcement we already stored.
	if existing, err := p.deliveries.FindByMessageID(ctx, ev.ExternalMessageID, scope); err == nil {
		logrus.Infof("[PIPELINE] Message %s already created delivery %d, skipping", ev.ExternalMessageID, existing.ID)
		return nil
	} else if !errors.Is(err, deliverydomain.ErrDeliveryNotFound) {
		return err
	}

	d := &deliverydomain.Delivery{
		Phone:             cr.Phone,
		Items:             cr.Items,
		AmountDue:         cr.AmountDue,
		Quartier:          cr.Quartier,
		Carrier:           cr.Carrier,
		Status:            deliverydomain.StatusPending,
		AgencyID:          &route.AgencyID,
		GroupID:           &route.GroupID,
		WhatsappMessageID: ev.ExternalMessageID,
	}
	if err := p.deliveries.Insert(ctx, d, actorBot); err != nil {
		logrus.WithError(err).Errorf("[PIPELINE] Create failed for message %s", ev.ExternalMessageID)
		return err
	}
	logrus.Infof("[PIPELINE] Created delivery %d (%s, %s) from message %s", d.ID, d.Phone, d.Quartier, ev.ExternalMessageID)

	p.notify("created", d)
	p.confirmText(ctx, ev, fmt.Sprintf("✅ Livraison #%d enregistrée: %s, %s FCFA, %s",
		d.ID, d.Phone, humanize.Comma(d.AmountDue), d.Quartier))
	return nil
}

func (p *Pipeline) update(ctx context.Context, upd *parser.Update, ev RawEvent, route *Route) error {
	scope := tenant.ForAgency(route.AgencyID)

	out, err := p.resolver.ApplyUpdate(ctx, upd, ev, scope)
	switch {
	case errors.Is(err, deliverydomain.ErrTargetUnresolved):
		logrus.Debugf("[PIPELINE] Update %s carries no target key, ignoring", ev.ExternalMessageID)
		return nil
	case errors.Is(err, deliverydomain.ErrTargetMissing):
		logrus.Warnf("[PIPELINE] No open delivery for update %s (%s)", ev.ExternalMessageID, upd.Action)
		p.confirmText(ctx, ev, "⚠️ Aucune livraison en cours trouvée pour cette mise à jour")
		return nil
	case err != nil:
		logrus.WithError(err).Errorf("[PIPELINE] Update failed for message %s", ev.ExternalMessageID)
		return err
	}

	if !out.Applied {
		return nil
	}
	p.notify("updated", out.Delivery)
	p.confirmText(ctx, ev, fmt.Sprintf("✅ Livraison #%d: %s, payé %s FCFA",
		out.Delivery.ID, out.Delivery.Status, humanize.Comma(out.Delivery.AmountPaid)))
	return nil
}

func (p *Pipeline) notify(event string, d *deliverydomain.Delivery) {
	if p.OnChange != nil {
		p.OnChange(event, d)
	}
}

func (p *Pipeline) confirmText(ctx context.Context, ev RawEvent, text string) {
	if !p.confirm || p.sender == nil {
		return
	}
	if err := p.sender.SendText(ctx, ev.ExternalGroupID, text); err != nil {
		logrus.WithError(err).Warnf("[PIPELINE] Confirmation send failed for group %s", ev.ExternalGroupID)
	}
}
