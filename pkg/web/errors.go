package web

import (
	"errors"

	"github.com/moogar0880/problems"
	"github.com/resolvd/resolvd/pkg/persistence"
	"github.com/resolvd/resolvd/pkg/services"

	"github.com/gofiber/fiber/v3"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func unprocessable(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(422).
		WithInstance(c.Path()).
		WithType("invalid_graph").
		WithDetail(detail)

	return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsFlowNotFound(err):
		return notFound(c, "flow not found")

	case persistence.IsVersionNotFound(err):
		return notFound(c, "flow version not found")

	case persistence.IsNodeNotFound(err):
		return notFound(c, "node not found")

	case persistence.IsEdgeNotFound(err):
		return notFound(c, "edge not found")

	case persistence.IsSessionNotFound(err):
		return notFound(c, "session not found")

	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	default:
		// Log unexpected errors but don't expose details
		return internalError(c, err)
	}
}

// handlePublishError maps a failed publish to 422 when the graph itself is
// invalid, since the request was well-formed but the version cannot go live.
func handlePublishError(c fiber.Ctx, err error) error {
	if errors.Is(err, services.ErrNoStartNode) || services.IsValidationError(err) {
		return unprocessable(c, err.Error())
	}

	return handleServiceError(c, err)
}
