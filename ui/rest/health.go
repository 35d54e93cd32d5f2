package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tkamdem/livrazone/core/storage"
	"github.com/tkamdem/livrazone/pkg/apperr"
)

type HealthHandler struct {
	db *storage.Adapter
}

// InitRestHealth mounts the public liveness probe. It pings the
// database so load balancers see storage trouble early.
func InitRestHealth(router fiber.Router, db *storage.Adapter) {
	h := &HealthHandler{db: db}
	router.Get("/health", h.Check)
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	if err := h.db.Ping(c.Context()); err != nil {
		return fail(c, apperr.Wrap(apperr.Unavailable, err, "database unreachable"))
	}
	return ok(c, fiber.Map{"status": "up"})
}
