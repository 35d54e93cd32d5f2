package rest

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	authapp "github.com/tkamdem/livrazone/auth/application"
	"github.com/tkamdem/livrazone/pkg/money"
	tariffdomain "github.com/tkamdem/livrazone/tariff/domain"
	"github.com/tkamdem/livrazone/ui/rest/middleware"
)

type TariffHandler struct {
	tariffs tariffdomain.Repository
}

func InitRestTariff(router fiber.Router, auth *authapp.AuthService, tariffs tariffdomain.Repository) {
	h := &TariffHandler{tariffs: tariffs}

	grp := router.Group("/tariffs", middleware.RequireAuth(auth))
	grp.Get("/", h.List)
	grp.Post("/", h.Create)
	grp.Put("/:id", h.Update)
	grp.Delete("/:id", h.Delete)
}

func (h *TariffHandler) List(c *fiber.Ctx) error {
	tariffs, err := h.tariffs.List(c.Context(), middleware.ScopeOf(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, tariffs)
}

type tariffRequest struct {
	Quartier string  `json:"quartier"`
	Amount   float64 `json:"amount"`
}

func (r tariffRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Quartier, validation.Required, validation.Length(2, 120)),
		validation.Field(&r.Amount, validation.Min(0.0)),
	)
}

func (h *TariffHandler) Create(c *fiber.Ctx) error {
	var req tariffRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	amount, err := money.Normalize(req.Amount)
	if err != nil {
		return fail(c, err)
	}

	tariff := &tariffdomain.Tariff{
		AgencyID: middleware.AgencyIDOf(c),
		Quartier: req.Quartier,
		Amount:   amount,
	}
	if err := h.tariffs.Create(c.Context(), tariff); err != nil {
		return fail(c, err)
	}
	return created(c, tariff)
}

func (h *TariffHandler) Update(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return badRequest(c, "invalid tariff id")
	}
	var req tariffRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	amount, err := money.Normalize(req.Amount)
	if err != nil {
		return fail(c, err)
	}

	tariff := &tariffdomain.Tariff{
		ID:       id,
		AgencyID: middleware.AgencyIDOf(c),
		Quartier: req.Quartier,
		Amount:   amount,
	}
	if err := h.tariffs.Update(c.Context(), tariff, middleware.ScopeOf(c)); err != nil {
		return fail(c, err)
	}
	return ok(c, tariff)
}

func (h *TariffHandler) Delete(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return badRequest(c, "invalid tariff id")
	}
	if err := h.tariffs.Delete(c.Context(), id, middleware.ScopeOf(c)); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"message": "tariff removed"})
}
