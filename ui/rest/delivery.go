package rest

import (
	"encoding/json"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	authapp "github.com/tkamdem/livrazone/auth/application"
	deliverydomain "github.com/tkamdem/livrazone/delivery/domain"
	"github.com/tkamdem/livrazone/ingest"
	"github.com/tkamdem/livrazone/pkg/apperr"
	"github.com/tkamdem/livrazone/pkg/money"
	"github.com/tkamdem/livrazone/ui/rest/middleware"
)

const actorAPI = "api"

type DeliveryHandler struct {
	deliveries deliverydomain.Repository
	resolver   *ingest.Resolver
}

func InitRestDelivery(router fiber.Router, auth *authapp.AuthService, deliveries deliverydomain.Repository, resolver *ingest.Resolver) {
	h := &DeliveryHandler{deliveries: deliveries, resolver: resolver}

	authed := middleware.RequireAuth(auth)
	grp := router.Group("/deliveries", authed)
	grp.Get("/", h.List)
	grp.Post("/", h.Create)
	grp.Post("/bulk", h.BulkCreate)
	grp.Get("/:id", h.Get)
	grp.Put("/:id", h.Update)
	grp.Delete("/:id", h.Delete)
	grp.Get("/:id/history", h.History)

	router.Get("/stats/daily", authed, h.DailyStats)
	router.Get("/search", authed, h.Search)
}

func (h *DeliveryHandler) List(c *fiber.Ctx) error {
	filter := deliverydomain.Filter{
		Status:    deliverydomain.Status(c.Query("status")),
		Phone:     c.Query("phone"),
		Date:      c.Query("date"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
	}
	if raw := c.Query("group_id"); raw != "" {
		gid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return badRequest(c, "invalid group_id")
		}
		filter.GroupID = &gid
	}
	page := deliverydomain.Page{Page: c.QueryInt("page"), Limit: c.QueryInt("limit")}
	sort := deliverydomain.Sort{
		Column: c.Query("sort_by"),
		Desc:   c.Query("sort_dir", "desc") != "asc",
	}

	rows, pagination, err := h.deliveries.List(c.Context(), filter, page, sort, middleware.ScopeOf(c))
	if err != nil {
		return fail(c, err)
	}
	return okPage(c, rows, pagination)
}

func (h *DeliveryHandler) Get(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return badRequest(c, "invalid delivery id")
	}
	d, err := h.deliveries.GetByID(c.Context(), id, middleware.ScopeOf(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, d)
}

type createDeliveryRequest struct {
	Phone        string   `json:"phone"`
	Items        string   `json:"items"`
	AmountDue    float64  `json:"amount_due"`
	CustomerName string   `json:"customer_name"`
	Quartier     string   `json:"quartier"`
	Notes        string   `json:"notes"`
	Carrier      string   `json:"carrier"`
	GroupID      *int64   `json:"group_id"`
	DeliveryFee  *float64 `json:"delivery_fee"`
}

func (r createDeliveryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Phone, validation.Required, validation.Length(9, 15)),
		validation.Field(&r.Items, validation.Required),
		validation.Field(&r.AmountDue, validation.Min(0.0)),
	)
}

func (r createDeliveryRequest) toDomain(agencyID int64) (*deliverydomain.Delivery, error) {
	due, err := money.Normalize(r.AmountDue)
	if err != nil {
		return nil, err
	}
	fee, err := money.NormalizePtr(r.DeliveryFee)
	if err != nil {
		return nil, err
	}
	d := &deliverydomain.Delivery{
		Phone:        r.Phone,
		Items:        r.Items,
		AmountDue:    due,
		CustomerName: r.CustomerName,
		Quartier:     r.Quartier,
		Notes:        r.Notes,
		Carrier:      r.Carrier,
		Status:       deliverydomain.StatusPending,
		AgencyID:     &agencyID,
		GroupID:      r.GroupID,
	}
	if fee != nil {
		d.DeliveryFee = *fee
	}
	return d, nil
}

// Create makes a delivery directly, bypassing chat ingestion.
func (h *DeliveryHandler) Create(c *fiber.Ctx) error {
	var req createDeliveryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	d, err := req.toDomain(middleware.AgencyIDOf(c))
	if err != nil {
		return fail(c, err)
	}
	if err := h.deliveries.Insert(c.Context(), d, actorAPI); err != nil {
		return fail(c, err)
	}
	return created(c, d)
}

type bulkCreateRequest struct {
	Rows []createDeliveryRequest `json:"rows"`
}

func (h *DeliveryHandler) BulkCreate(c *fiber.Ctx) error {
	var req bulkCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.Rows) < 1 || len(req.Rows) > 100 {
		return badRequest(c, "bulk insert accepts between 1 and 100 rows")
	}

	agencyID := middleware.AgencyIDOf(c)
	rows := make([]*deliverydomain.Delivery, 0, len(req.Rows))
	for _, r := range req.Rows {
		d, err := r.toDomain(agencyID)
		if err != nil {
			return fail(c, err)
		}
		rows = append(rows, d)
	}

	result, err := h.deliveries.BulkInsert(c.Context(), rows, actorAPI)
	if err != nil {
		return fail(c, err)
	}
	return created(c, result)
}

// updateDeliveryFields is the full set of writable PUT fields; anything
// else in the body is a validation error.
var updateDeliveryFields = map[string]bool{
	"status":        true,
	"phone":         true,
	"items":         true,
	"customer_name": true,
	"quartier":      true,
	"notes":         true,
	"carrier":       true,
	"amount_due":    true,
	"amount_paid":   true,
	"delivery_fee":  true,
}

type updateDeliveryRequest struct {
	Status       *string  `json:"status"`
	Phone        *string  `json:"phone"`
	Items        *string  `json:"items"`
	CustomerName *string  `json:"customer_name"`
	Quartier     *string  `json:"quartier"`
	Notes        *string  `json:"notes"`
	Carrier      *string  `json:"carrier"`
	AmountDue    *float64 `json:"amount_due"`
	AmountPaid   *float64 `json:"amount_paid"`
	DeliveryFee  *float64 `json:"delivery_fee"`
}

// Update applies content changes and, when a status is supplied, the
// status-transition algebra in one persisted mutation.
func (h *DeliveryHandler) Update(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return badRequest(c, "invalid delivery id")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(raw) == 0 {
		return badRequest(c, "empty update")
	}
	for key := range raw {
		if !updateDeliveryFields[key] {
			return badRequest(c, "unknown field: "+key)
		}
	}
	var req updateDeliveryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	scope := middleware.ScopeOf(c)
	d, err := h.deliveries.GetByID(c.Context(), id, scope)
	if err != nil {
		return fail(c, err)
	}

	due, err := money.NormalizePtr(req.AmountDue)
	if err != nil {
		return fail(c, err)
	}
	paid, err := money.NormalizePtr(req.AmountPaid)
	if err != nil {
		return fail(c, err)
	}
	fee, err := money.NormalizePtr(req.DeliveryFee)
	if err != nil {
		return fail(c, err)
	}

	changed := map[string]any{}
	setStr := func(field string, dst *string, src *string) {
		if src != nil {
			*dst = *src
			changed[field] = *src
		}
	}
	setStr("phone", &d.Phone, req.Phone)
	setStr("items", &d.Items, req.Items)
	setStr("customer_name", &d.CustomerName, req.CustomerName)
	setStr("quartier", &d.Quartier, req.Quartier)
	setStr("notes", &d.Notes, req.Notes)
	setStr("carrier", &d.Carrier, req.Carrier)
	if due != nil {
		d.AmountDue = *due
		changed["amount_due"] = *due
	}

	if req.Status != nil {
		next := deliverydomain.Status(*req.Status)
		if !deliverydomain.ValidStatuses[next] {
			return fail(c, apperr.Newf(apperr.InvalidArgument, "invalid status %q", *req.Status))
		}
		if err := h.resolver.TransitionStatus(c.Context(), d, next, fee, paid, actorAPI, ""); err != nil {
			return fail(c, err)
		}
		return ok(c, d)
	}

	// No status change: apply money fields directly.
	if fee != nil {
		d.DeliveryFee = *fee
		changed["delivery_fee"] = *fee
	}
	if paid != nil {
		d.AmountPaid = *paid
		changed["amount_paid"] = *paid
	} else if due != nil && d.Status == deliverydomain.StatusDelivered {
		d.AmountPaid = money.Max0(d.AmountDue - d.DeliveryFee)
		changed["amount_paid"] = d.AmountPaid
	}

	details, _ := json.Marshal(changed)
	if err := h.deliveries.Update(c.Context(), d, deliverydomain.ActionUpdated, string(details), actorAPI); err != nil {
		return fail(c, err)
	}
	return ok(c, d)
}

func (h *DeliveryHandler) Delete(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return badRequest(c, "invalid delivery id")
	}
	if err := h.deliveries.Delete(c.Context(), id, middleware.ScopeOf(c)); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"message": "delivery removed"})
}

func (h *DeliveryHandler) History(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return badRequest(c, "invalid delivery id")
	}
	rows, err := h.deliveries.History(c.Context(), id, middleware.ScopeOf(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rows)
}

func (h *DeliveryHandler) DailyStats(c *fiber.Ctx) error {
	var groupID *int64
	if raw := c.Query("group_id"); raw != "" {
		gid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return badRequest(c, "invalid group_id")
		}
		groupID = &gid
	}
	stats, err := h.deliveries.DailyStats(c.Context(), c.Query("date"), groupID, middleware.ScopeOf(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, stats)
}

func (h *DeliveryHandler) Search(c *fiber.Ctx) error {
	q := c.Query("q")
	if q == "" {
		return badRequest(c, "missing query parameter q")
	}
	rows, err := h.deliveries.Search(c.Context(), q, middleware.ScopeOf(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rows)
}
