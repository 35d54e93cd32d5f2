package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	agencydomain "github.com/tkamdem/livrazone/agency/domain"
	authapp "github.com/tkamdem/livrazone/auth/application"
	"github.com/tkamdem/livrazone/core/tenant"
	"github.com/tkamdem/livrazone/pkg/apperr"
)

const (
	LocalScope    = "tenant_scope"
	LocalAgencyID = "agency_id"
	LocalRole     = "agency_role"
	LocalToken    = "bearer_token"
)

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error":   "UNAUTHENTICATED",
		"message": message,
	})
}

// RequireAuth validates the bearer token and injects the tenant scope.
// Super admins get an unrestricted scope; agencies are pinned to their
// own id.
func RequireAuth(auth *authapp.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return unauthorized(c, "missing authorization header")
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return unauthorized(c, "invalid authorization format")
		}

		claims, err := auth.Authenticate(c.Context(), parts[1])
		if err != nil {
			return unauthorized(c, apperr.MessageOf(err))
		}

		scope := tenant.ForAgency(claims.AgencyID)
		if claims.Role == agencydomain.RoleSuperAdmin {
			scope = tenant.SuperAdmin()
		}
		c.Locals(LocalScope, scope)
		c.Locals(LocalAgencyID, claims.AgencyID)
		c.Locals(LocalRole, claims.Role)
		c.Locals(LocalToken, parts[1])
		return c.Next()
	}
}

// RequireSuperAdmin guards the platform-operator routes.
func RequireSuperAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(LocalRole).(agencydomain.Role)
		if !ok || role != agencydomain.RoleSuperAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "FORBIDDEN",
				"message": "super admin access required",
			})
		}
		return c.Next()
	}
}

// ScopeOf reads the tenant scope injected by RequireAuth.
func ScopeOf(c *fiber.Ctx) tenant.Scope {
	if scope, ok := c.Locals(LocalScope).(tenant.Scope); ok {
		return scope
	}
	return tenant.Scope{}
}

// AgencyIDOf reads the authenticated agency id.
func AgencyIDOf(c *fiber.Ctx) int64 {
	if id, ok := c.Locals(LocalAgencyID).(int64); ok {
		return id
	}
	return 0
}

// TokenOf reads the raw bearer token, for logout.
func TokenOf(c *fiber.Ctx) string {
	if tok, ok := c.Locals(LocalToken).(string); ok {
		return tok
	}
	return ""
}
