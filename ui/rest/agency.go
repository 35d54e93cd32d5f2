package rest

import (
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gofiber/fiber/v2"
	agencyapp "github.com/tkamdem/livrazone/agency/application"
	agencydomain "github.com/tkamdem/livrazone/agency/domain"
	authapp "github.com/tkamdem/livrazone/auth/application"
	"github.com/tkamdem/livrazone/ui/rest/middleware"
)

type AgencyHandler struct {
	agencies *agencyapp.AgencyService
}

// InitRestAgency mounts the super-admin tenant management routes.
func InitRestAgency(router fiber.Router, auth *authapp.AuthService, agencies *agencyapp.AgencyService) {
	h := &AgencyHandler{agencies: agencies}

	grp := router.Group("/agencies", middleware.RequireAuth(auth), middleware.RequireSuperAdmin())
	grp.Get("/", h.List)
	grp.Post("/", h.Create)
	grp.Put("/:id", h.Update)
	grp.Delete("/:id", h.Delete)
}

func idParam(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

func (h *AgencyHandler) List(c *fiber.Ctx) error {
	agencies, err := h.agencies.List(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, agencies)
}

type createAgencyRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

func (r createAgencyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(2, 120)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&r.Role, validation.In("", string(agencydomain.RoleAgency), string(agencydomain.RoleSuperAdmin))),
	)
}

func (h *AgencyHandler) Create(c *fiber.Ctx) error {
	var req createAgencyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	agency, err := h.agencies.Create(c.Context(), agencyapp.CreateAgencyInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Code:     req.Code,
		Address:  req.Address,
		Phone:    req.Phone,
		Role:     agencydomain.Role(req.Role),
	})
	if err != nil {
		return fail(c, err)
	}
	return created(c, agency)
}

type updateAgencyRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Code     *string `json:"code"`
	Address  *string `json:"address"`
	Phone    *string `json:"phone"`
	Active   *bool   `json:"is_active"`
}

func (h *AgencyHandler) Update(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return badRequest(c, "invalid agency id")
	}
	var req updateAgencyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Email != nil {
		if err := validation.Validate(*req.Email, is.Email); err != nil {
			return badRequest(c, "invalid email")
		}
	}

	agency, err := h.agencies.Update(c.Context(), id, agencyapp.UpdateAgencyInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Code:     req.Code,
		Address:  req.Address,
		Phone:    req.Phone,
		Active:   req.Active,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, agency)
}

func (h *AgencyHandler) Delete(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return badRequest(c, "invalid agency id")
	}
	if err := h.agencies.SoftDelete(c.Context(), id); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"message": "agency deactivated"})
}
