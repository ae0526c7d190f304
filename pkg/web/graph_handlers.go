package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/resolvd/resolvd/pkg/persistence"
	"github.com/resolvd/resolvd/pkg/services"
)

func (h *APIHandlers) CreateNode(c fiber.Ctx) error {
	var req CreateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.graphService.AddNode(c.Context(), c.Params("id"), c.Params("versionId"), services.NodeInput{
		Type:     req.Type,
		Title:    req.Title,
		Body:     req.Body,
		Position: req.Position,
		Metadata: req.Metadata,
		IsStart:  req.IsStart,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(node)
}

func (h *APIHandlers) UpdateNode(c fiber.Ctx) error {
	var req UpdateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node, err := h.graphService.UpdateNode(c.Context(), c.Params("id"), c.Params("versionId"), c.Params("nodeId"), services.NodeUpdate{
		Type:     req.Type,
		Title:    req.Title,
		Body:     req.Body,
		Position: req.Position,
		Metadata: req.Metadata,
		IsStart:  req.IsStart,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(node)
}

func (h *APIHandlers) DeleteNode(c fiber.Ctx) error {
	err := h.graphService.DeleteNode(c.Context(), c.Params("id"), c.Params("versionId"), c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) BulkUpdatePositions(c fiber.Ctx) error {
	var req BulkPositionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	positions := make([]persistence.NodePosition, 0, len(req.Positions))
	for _, p := range req.Positions {
		positions = append(positions, persistence.NodePosition{ID: p.ID, X: p.X, Y: p.Y})
	}

	updated, err := h.graphService.UpdatePositions(c.Context(), c.Params("id"), c.Params("versionId"), positions)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"updated": updated})
}

func (h *APIHandlers) CreateEdge(c fiber.Ctx) error {
	var req CreateEdgeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	edge, err := h.graphService.AddEdge(c.Context(), c.Params("id"), c.Params("versionId"), services.EdgeInput{
		SourceNodeID:   req.Source,
		TargetNodeID:   req.Target,
		ConditionLabel: req.ConditionLabel,
		SortOrder:      req.SortOrder,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(edge)
}

func (h *APIHandlers) UpdateEdge(c fiber.Ctx) error {
	var req UpdateEdgeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	edge, err := h.graphService.UpdateEdge(c.Context(), c.Params("id"), c.Params("versionId"), c.Params("edgeId"), services.EdgeUpdate{
		ConditionLabel: req.ConditionLabel,
		SortOrder:      req.SortOrder,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(edge)
}

func (h *APIHandlers) DeleteEdge(c fiber.Ctx) error {
	err := h.graphService.DeleteEdge(c.Context(), c.Params("id"), c.Params("versionId"), c.Params("edgeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ImportGraph(c fiber.Ctx) error {
	body := c.Body()

	if err := validateImportPayload(body); err != nil {
		return badRequest(c, err.Error())
	}

	var req ImportRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	nodes, edges := req.toServiceInput()

	result, err := h.graphService.Import(c.Context(), c.Params("id"), c.Params("versionId"), nodes, edges, actorID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}
