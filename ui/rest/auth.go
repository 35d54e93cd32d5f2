package rest

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gofiber/fiber/v2"
	agencyapp "github.com/tkamdem/livrazone/agency/application"
	authapp "github.com/tkamdem/livrazone/auth/application"
	"github.com/tkamdem/livrazone/ui/rest/middleware"
)

type AuthHandler struct {
	auth     *authapp.AuthService
	agencies *agencyapp.AgencyService
}

func InitRestAuth(router fiber.Router, auth *authapp.AuthService, agencies *agencyapp.AgencyService) {
	h := &AuthHandler{auth: auth, agencies: agencies}

	router.Post("/auth/login", h.Login)
	router.Post("/auth/join", h.JoinByCode)

	protected := router.Group("/auth", middleware.RequireAuth(auth))
	protected.Post("/logout", h.Logout)
	protected.Get("/me", h.Me)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	token, agency, err := h.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":        agency.ID,
			"role":      agency.Role,
			"agency_id": agency.ID,
			"name":      agency.Name,
			"email":     agency.Email,
		},
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.auth.Logout(c.Context(), middleware.TokenOf(c)); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"message": "logged out"})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	agency, err := h.auth.Me(c.Context(), middleware.AgencyIDOf(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{
		"id":        agency.ID,
		"role":      agency.Role,
		"agency_id": agency.ID,
		"name":      agency.Name,
		"email":     agency.Email,
		"is_active": agency.Active,
	})
}

type joinRequest struct {
	Code string `json:"code"`
}

// JoinByCode exchanges an agency code for public metadata; no session
// is created.
func (h *AuthHandler) JoinByCode(c *fiber.Ctx) error {
	var req joinRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validation.Validate(req.Code, validation.Required, validation.Length(4, 64)); err != nil {
		return badRequest(c, "code must be at least 4 characters")
	}

	profile, err := h.agencies.JoinByCode(c.Context(), req.Code)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, profile)
}
