package ingest

import (
	"context"
	"strconv"
	"strings"
	"sync"

	agencydomain "github.com/tkamdem/livrazone/agency/domain"
	"github.com/tkamdem/livrazone/core/tenant"
	deliverydomain "github.com/tkamdem/livrazone/delivery/domain"
	groupdomain "github.com/tkamdem/livrazone/group/domain"
	tariffdomain "github.com/tkamdem/livrazone/tariff/domain"
)

// In-memory fakes for the repositories the pipeline touches.

type fakeDeliveryRepo struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]*deliverydomain.Delivery
	history []*deliverydomain.HistoryEntry
}

func newFakeDeliveryRepo() *fakeDeliveryRepo {
	return &fakeDeliveryRepo{rows: make(map[int64]*deliverydomain.Delivery)}
}

func (f *fakeDeliveryRepo) InitSchema(ctx context.Context) error { return nil }

func (f *fakeDeliveryRepo) Insert(ctx context.Context, d *deliverydomain.Delivery, actor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	d.ID = f.nextID
	if d.Status == "" {
		d.Status = deliverydomain.StatusPending
	}
	cp := *d
	f.rows[d.ID] = &cp
	f.history = append(f.history, &deliverydomain.HistoryEntry{
		DeliveryID: d.ID,
		Action:     deliverydomain.ActionCreated,
		Actor:      actor,
	})
	return nil
}

func (f *fakeDeliveryRepo) Update(ctx context.Context, d *deliverydomain.Delivery, action, details, actor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *d
	f.rows[d.ID] = &cp
	f.history = append(f.history, &deliverydomain.HistoryEntry{
		DeliveryID: d.ID,
		Action:     action,
		Details:    details,
		Actor:      actor,
	})
	return nil
}

func (f *fakeDeliveryRepo) GetByID(ctx context.Context, id int64, scope tenant.Scope) (*deliverydomain.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok || !scope.Allows(d.AgencyID) {
		return nil, deliverydomain.ErrDeliveryNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDeliveryRepo) FindByPhone(ctx context.Context, phone string, openOnly bool, scope tenant.Scope) (*deliverydomain.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *deliverydomain.Delivery
	for _, d := range f.rows {
		if d.Phone != phone || !scope.Allows(d.AgencyID) {
			continue
		}
		if openOnly && !d.Status.IsOpen() {
			continue
		}
		if best == nil || d.ID > best.ID {
			best = d
		}
	}
	if best == nil {
		return nil, deliverydomain.ErrDeliveryNotFound
	}
	cp := *best
	return &cp, nil
}

func (f *fakeDeliveryRepo) FindByMessageID(ctx context.Context, externalID string, scope tenant.Scope) (*deliverydomain.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.rows {
		if d.WhatsappMessageID == externalID && scope.Allows(d.AgencyID) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, deliverydomain.ErrDeliveryNotFound
}

func (f *fakeDeliveryRepo) List(ctx context.Context, filter deliverydomain.Filter, page deliverydomain.Page, sort deliverydomain.Sort, scope tenant.Scope) ([]*deliverydomain.Delivery, deliverydomain.Pagination, error) {
	return nil, deliverydomain.Pagination{}, nil
}

func (f *fakeDeliveryRepo) Search(ctx context.Context, q string, scope tenant.Scope) ([]*deliverydomain.Delivery, error) {
	return nil, nil
}

func (f *fakeDeliveryRepo) DailyStats(ctx context.Context, date string, groupID *int64, scope tenant.Scope) (*deliverydomain.DailyStats, error) {
	return &deliverydomain.DailyStats{}, nil
}

func (f *fakeDeliveryRepo) Delete(ctx context.Context, id int64, scope tenant.Scope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeDeliveryRepo) BulkInsert(ctx context.Context, rows []*deliverydomain.Delivery, actor string) (*deliverydomain.BulkResult, error) {
	return &deliverydomain.BulkResult{}, nil
}

func (f *fakeDeliveryRepo) SaveHistory(ctx context.Context, deliveryID int64, action, details, actor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, &deliverydomain.HistoryEntry{
		DeliveryID: deliveryID,
		Action:     action,
		Details:    details,
		Actor:      actor,
	})
	return nil
}

func (f *fakeDeliveryRepo) History(ctx context.Context, deliveryID int64, scope tenant.Scope) ([]*deliverydomain.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*deliverydomain.HistoryEntry
	for _, h := range f.history {
		if h.DeliveryID == deliveryID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeDeliveryRepo) HasCollection(ctx context.Context, deliveryID int64, externalMessageID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	needle := `"external_message_id":"` + externalMessageID + `"`
	for _, h := range f.history {
		if h.DeliveryID == deliveryID && h.Action == deliverydomain.ActionPaymentReceived && strings.Contains(h.Details, needle) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDeliveryRepo) historyCount(deliveryID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.history {
		if h.DeliveryID == deliveryID {
			n++
		}
	}
	return n
}

type fakeTariffRepo struct {
	tariffs map[string]int64 // "agencyID|quartier" lowercased
}

func newFakeTariffRepo() *fakeTariffRepo {
	return &fakeTariffRepo{tariffs: make(map[string]int64)}
}

func (f *fakeTariffRepo) set(agencyID int64, quartier string, amount int64) {
	f.tariffs[tariffKey(agencyID, quartier)] = amount
}

func tariffKey(agencyID int64, quartier string) string {
	return strconv.FormatInt(agencyID, 10) + "|" + strings.ToLower(strings.TrimSpace(quartier))
}

func (f *fakeTariffRepo) InitSchema(ctx context.Context) error { return nil }
func (f *fakeTariffRepo) Create(ctx context.Context, t *tariffdomain.Tariff) error {
	return nil
}
func (f *fakeTariffRepo) Update(ctx context.Context, t *tariffdomain.Tariff, scope tenant.Scope) error {
	return nil
}
func (f *fakeTariffRepo) Delete(ctx context.Context, id int64, scope tenant.Scope) error { return nil }
func (f *fakeTariffRepo) List(ctx context.Context, scope tenant.Scope) ([]*tariffdomain.Tariff, error) {
	return nil, nil
}

func (f *fakeTariffRepo) Lookup(ctx context.Context, agencyID int64, quartier string) (*tariffdomain.Tariff, error) {
	amount, ok := f.tariffs[tariffKey(agencyID, quartier)]
	if !ok {
		return nil, tariffdomain.ErrTariffNotFound
	}
	return &tariffdomain.Tariff{AgencyID: agencyID, Quartier: quartier, Amount: amount}, nil
}

type fakeAgencyRepo struct {
	agencies []*agencydomain.Agency
}

func (f *fakeAgencyRepo) InitSchema(ctx context.Context) error                  { return nil }
func (f *fakeAgencyRepo) Create(ctx context.Context, a *agencydomain.Agency) error { return nil }

func (f *fakeAgencyRepo) GetByID(ctx context.Context, id int64) (*agencydomain.Agency, error) {
	for _, a := range f.agencies {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, agencydomain.ErrAgencyNotFound
}

func (f *fakeAgencyRepo) GetByEmail(ctx context.Context, email string) (*agencydomain.Agency, error) {
	return nil, agencydomain.ErrAgencyNotFound
}

func (f *fakeAgencyRepo) GetByCode(ctx context.Context, code string) (*agencydomain.Agency, error) {
	return nil, agencydomain.ErrAgencyNotFound
}

func (f *fakeAgencyRepo) Update(ctx context.Context, a *agencydomain.Agency) error { return nil }

func (f *fakeAgencyRepo) List(ctx context.Context, includeInactive bool) ([]*agencydomain.Agency, error) {
	return f.agencies, nil
}

func (f *fakeAgencyRepo) ListActiveTenants(ctx context.Context) ([]*agencydomain.Agency, error) {
	var out []*agencydomain.Agency
	for _, a := range f.agencies {
		if a.Active && a.Role != agencydomain.RoleSuperAdmin {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAgencyRepo) SoftDelete(ctx context.Context, id int64) error { return nil }

type fakeGroupRepo struct {
	mu     sync.Mutex
	nextID int64
	groups map[string]*groupdomain.Group
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{groups: make(map[string]*groupdomain.Group)}
}

func (f *fakeGroupRepo) InitSchema(ctx context.Context) error { return nil }

func (f *fakeGroupRepo) Create(ctx context.Context, g *groupdomain.Group) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.groups[g.ExternalID]; ok {
		return groupdomain.ErrDuplicateExternalID
	}
	f.nextID++
	g.ID = f.nextID
	cp := *g
	f.groups[g.ExternalID] = &cp
	return nil
}

func (f *fakeGroupRepo) GetByID(ctx context.Context, id int64, scope tenant.Scope) (*groupdomain.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.groups {
		if g.ID == id {
			cp := *g
			return &cp, nil
		}
	}
	return nil, groupdomain.ErrGroupNotFound
}

func (f *fakeGroupRepo) GetByExternalID(ctx context.Context, externalID string) (*groupdomain.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[externalID]
	if !ok {
		return nil, groupdomain.ErrGroupNotFound
	}
	cp := *g
	return &cp, nil
}

func (f *fakeGroupRepo) List(ctx context.Context, scope tenant.Scope) ([]*groupdomain.Group, error) {
	return nil, nil
}

func (f *fakeGroupRepo) ListActiveByAgency(ctx context.Context, agencyID int64) ([]*groupdomain.Group, error) {
	return nil, nil
}

func (f *fakeGroupRepo) Update(ctx context.Context, g *groupdomain.Group, scope tenant.Scope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *g
	f.groups[g.ExternalID] = &cp
	return nil
}

func (f *fakeGroupRepo) SoftDelete(ctx context.Context, id int64, scope tenant.Scope) error { return nil }
func (f *fakeGroupRepo) HardDelete(ctx context.Context, id int64, scope tenant.Scope) error { return nil }

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	group string
}

func (f *fakeSender) SendText(ctx context.Context, externalGroupID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.group = externalGroupID
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}
