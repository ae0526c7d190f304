package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/resolvd/resolvd/pkg/services"
)

// actorHeader identifies the acting agent for audit attribution. There is no
// authentication layer; the value is taken at face value.
const actorHeader = "X-Actor-Id"

type APIHandlers struct {
	flowService      *services.Flow
	versionService   *services.Version
	graphService     *services.Graph
	sessionService   *services.Session
	analyticsService *services.Analytics
	validator        *validator.Validate
}

func NewAPIHandlers(
	flowService *services.Flow,
	versionService *services.Version,
	graphService *services.Graph,
	sessionService *services.Session,
	analyticsService *services.Analytics,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		flowService:      flowService,
		versionService:   versionService,
		graphService:     graphService,
		sessionService:   sessionService,
		analyticsService: analyticsService,
		validator:        validator,
	}
}

func actorID(c fiber.Ctx) string {
	return c.Get(actorHeader)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.flowService.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	req, err := h.parseListFlowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	if req.Page < 1 {
		req.Page = 1
	}

	if req.Limit < 1 {
		req.Limit = 50
	} else if req.Limit > 200 {
		req.Limit = 200
	}

	result, err := h.flowService.ListFlows(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"data": result.Flows,
		"meta": newListMeta(result.Total, req.Page, req.Limit),
	})
}

// parseListFlowsRequest parses and validates query parameters for listing flows.
func (h *APIHandlers) parseListFlowsRequest(c fiber.Ctx) (*services.ListFlowsRequest, error) {
	req := &services.ListFlowsRequest{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Status:   c.Query("status"),
		Sort:     c.Query("sort"),
	}

	if pageStr := c.Query("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			return nil, err
		}

		req.Page = page
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if statsStr := c.Query("stats"); statsStr != "" {
		stats, err := strconv.ParseBool(statsStr)
		if err != nil {
			return nil, err
		}

		req.IncludeStats = stats
	}

	return req, nil
}

func (h *APIHandlers) GetArchivedFlows(c fiber.Ctx) error {
	flows, err := h.flowService.ListArchived(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"data": flows})
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	detail, err := h.flowService.Detail(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(detail)
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var req CreateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow, err := h.flowService.Create(c.Context(), services.CreateFlowRequest{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Tags:        req.Tags,
	}, actorID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(flow)
}

func (h *APIHandlers) UpdateFlow(c fiber.Ctx) error {
	var req UpdateFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flow, err := h.flowService.Update(c.Context(), c.Params("id"), services.UpdateFlowRequest{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Tags:        req.Tags,
	}, actorID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) ArchiveFlow(c fiber.Ctx) error {
	err := h.flowService.Archive(c.Context(), c.Params("id"), actorID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) RestoreFlow(c fiber.Ctx) error {
	flow, err := h.flowService.Restore(c.Context(), c.Params("id"), actorID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(flow)
}

func (h *APIHandlers) PurgeFlow(c fiber.Ctx) error {
	err := h.flowService.Purge(c.Context(), c.Params("id"), actorID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DuplicateFlow(c fiber.Ctx) error {
	var req DuplicateFlowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}

		if err := h.validator.Struct(req); err != nil {
			return badRequest(c, err.Error())
		}
	}

	flow, version, err := h.flowService.Duplicate(c.Context(), c.Params("id"), req.Name, actorID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"flow":    flow,
		"version": version,
	})
}

func (h *APIHandlers) GetCategories(c fiber.Ctx) error {
	categories, err := h.flowService.Categories(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"data": categories})
}

func (h *APIHandlers) CreateVersion(c fiber.Ctx) error {
	var req CreateVersionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	version, err := h.versionService.Create(c.Context(), c.Params("id"), req.ChangeNotes, actorID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(version)
}

func (h *APIHandlers) GetVersion(c fiber.Ctx) error {
	detail, err := h.versionService.Fetch(c.Context(), c.Params("id"), c.Params("versionId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(detail)
}

func (h *APIHandlers) PublishVersion(c fiber.Ctx) error {
	var req PublishVersionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	version, err := h.versionService.Publish(c.Context(), c.Params("id"), c.Params("versionId"), req.ChangeNotes, actorID(c))
	if err != nil {
		return handlePublishError(c, err)
	}

	return c.JSON(version)
}
