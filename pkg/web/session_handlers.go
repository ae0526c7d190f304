package web

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/resolvd/resolvd/pkg/services"
)

func (h *APIHandlers) StartSession(c fiber.Ctx) error {
	var req StartSessionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	state, err := h.sessionService.Start(c.Context(), services.StartSessionRequest{
		FlowID:    req.FlowID,
		VersionID: req.VersionID,
		TicketID:  req.TicketID,
		AgentID:   req.AgentID,
		AgentName: req.AgentName,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(state)
}

func (h *APIHandlers) GetSessions(c fiber.Ctx) error {
	req := services.ListSessionsRequest{
		FlowID:   c.Query("flow_id"),
		Status:   c.Query("status"),
		TicketID: c.Query("ticket_id"),
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
		req.Limit = 50
	} else if req.Limit > 200 {
		req.Limit = 200
	}

	result, err := h.sessionService.List(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"data": result.Sessions,
		"meta": newListMeta(result.Total, req.Page, req.Limit),
	})
}

func (h *APIHandlers) GetSession(c fiber.Ctx) error {
	state, err := h.sessionService.Fetch(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) StepSession(c fiber.Ctx) error {
	var req StepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	state, err := h.sessionService.Step(c.Context(), c.Params("id"), req.EdgeID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) BackSession(c fiber.Ctx) error {
	state, err := h.sessionService.Back(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) RestartSession(c fiber.Ctx) error {
	state, err := h.sessionService.Restart(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) SessionFeedback(c fiber.Ctx) error {
	var req FeedbackRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	state, err := h.sessionService.SubmitFeedback(c.Context(), c.Params("id"), req.Rating, req.Note)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) ExportSession(c fiber.Ctx) error {
	transcript, err := h.sessionService.Export(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(transcript)
}
