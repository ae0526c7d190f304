package web

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/resolvd/resolvd/pkg/services"
)

func (h *APIHandlers) GetAnalyticsOverview(c fiber.Ctx) error {
	overview, err := h.analyticsService.GetOverview(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(overview)
}

func (h *APIHandlers) GetFlowAnalytics(c fiber.Ctx) error {
	report, err := h.analyticsService.GetFlowReport(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(report)
}

func (h *APIHandlers) GetAuditLogs(c fiber.Ctx) error {
	req := services.ListAuditLogsRequest{
		ResourceType: c.Query("resource_type"),
		ResourceID:   c.Query("resource_id"),
	}

	if pageStr := c.Query("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			return badRequest(c, "Invalid page parameter")
		}

		req.Page = page
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit parameter")
		}

		req.Limit = limit
	}

	if req.Page < 1 {
		req.Page = 1
	}

	if req.Limit < 1 {
		req.Limit = 100
	} else if req.Limit > 200 {
		req.Limit = 200
	}

	result, err := h.analyticsService.ListAuditLogs(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"data": result.Entries,
		"meta": newListMeta(result.Total, req.Page, req.Limit),
	})
}
