package rest

import (
	"github.com/gofiber/fiber/v2"
	authapp "github.com/tkamdem/livrazone/auth/application"
	groupdomain "github.com/tkamdem/livrazone/group/domain"
	"github.com/tkamdem/livrazone/ui/rest/middleware"
)

type GroupHandler struct {
	groups groupdomain.Repository
}

func InitRestGroup(router fiber.Router, auth *authapp.AuthService, groups groupdomain.Repository) {
	h := &GroupHandler{groups: groups}

	grp := router.Group("/groups", middleware.RequireAuth(auth))
	grp.Get("/", h.List)
	grp.Put("/:id", h.Update)
	grp.Delete("/:id", h.Delete)
}

func (h *GroupHandler) List(c *fiber.Ctx) error {
	groups, err := h.groups.List(c.Context(), middleware.ScopeOf(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, groups)
}

type updateGroupRequest struct {
	Name   *string `json:"name"`
	Active *bool   `json:"is_active"`
}

func (h *GroupHandler) Update(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return badRequest(c, "invalid group id")
	}
	var req updateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	scope := middleware.ScopeOf(c)
	group, err := h.groups.GetByID(c.Context(), id, scope)
	if err != nil {
		return fail(c, err)
	}
	if req.Name != nil {
		group.Name = *req.Name
	}
	if req.Active != nil {
		group.Active = *req.Active
	}
	if err := h.groups.Update(c.Context(), group, scope); err != nil {
		return fail(c, err)
	}
	return ok(c, group)
}

// Delete soft-deletes by default; ?hard=true removes the row and
// detaches its deliveries.
func (h *GroupHandler) Delete(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return badRequest(c, "invalid group id")
	}
	scope := middleware.ScopeOf(c)

	if c.QueryBool("hard") {
		if err := h.groups.HardDelete(c.Context(), id, scope); err != nil {
			return fail(c, err)
		}
		return ok(c, fiber.Map{"message": "group removed"})
	}
	if err := h.groups.SoftDelete(c.Context(), id, scope); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"message": "group deactivated"})
}
