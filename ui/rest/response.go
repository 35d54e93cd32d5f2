package rest

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	agencydomain "github.com/tkamdem/livrazone/agency/domain"
	deliverydomain "github.com/tkamdem/livrazone/delivery/domain"
	groupdomain "github.com/tkamdem/livrazone/group/domain"
	"github.com/tkamdem/livrazone/pkg/apperr"
	tariffdomain "github.com/tkamdem/livrazone/tariff/domain"
)

// Envelope is the uniform response shape of the API.
type Envelope struct {
	Success       bool   `json:"success"`
	Data          any    `json:"data,omitempty"`
	Pagination    any    `json:"pagination,omitempty"`
	Error         string `json:"error,omitempty"`
	Message       string `json:"message,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(Envelope{Success: true, Data: data})
}

func okPage(c *fiber.Ctx, data any, pagination deliverydomain.Pagination) error {
	return c.JSON(Envelope{Success: true, Data: data, Pagination: pagination})
}

func created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(Envelope{Success: true, Data: data})
}

func fail(c *fiber.Ctx, err error) error {
	kind, message := classify(err)
	status := kind.StatusCode()
	env := Envelope{Success: false, Error: string(kind), Message: message}
	if status >= 500 {
		env.CorrelationID = uuid.NewString()
		logrus.WithError(err).Errorf("[REST] %s %s failed (correlation %s)", c.Method(), c.Path(), env.CorrelationID)
	}
	return c.Status(status).JSON(env)
}

func badRequest(c *fiber.Ctx, message string) error {
	return fail(c, apperr.New(apperr.InvalidArgument, message))
}

// classify maps domain sentinel errors onto API error kinds; anything
// unknown is internal and keeps its detail out of the response.
func classify(err error) (apperr.Kind, string) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Kind, ae.Message
	}
	switch {
	case errors.Is(err, deliverydomain.ErrDeliveryNotFound),
		errors.Is(err, deliverydomain.ErrTargetMissing),
		errors.Is(err, groupdomain.ErrGroupNotFound),
		errors.Is(err, agencydomain.ErrAgencyNotFound),
		errors.Is(err, tariffdomain.ErrTariffNotFound):
		return apperr.NotFound, err.Error()
	case errors.Is(err, groupdomain.ErrDuplicateExternalID),
		errors.Is(err, agencydomain.ErrDuplicateEmail),
		errors.Is(err, agencydomain.ErrDuplicateCode),
		errors.Is(err, tariffdomain.ErrDuplicateTariff):
		return apperr.Conflict, err.Error()
	case errors.Is(err, deliverydomain.ErrTargetUnresolved):
		return apperr.InvalidArgument, err.Error()
	}
	return apperr.Internal, "internal server error"
}
