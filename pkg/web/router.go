package web

import "github.com/gofiber/fiber/v3"

// RegisterRoutes binds every API endpoint onto the app. The route table is
// defined here so the server binary and the handler tests share it.
func RegisterRoutes(app *fiber.App, handlers *APIHandlers) {
	app.Get("/health", handlers.HealthCheck)

	flows := app.Group("/flows")
	flows.Get("/", handlers.GetFlows)
	flows.Post("/", handlers.CreateFlow)
	flows.Get("/archived", handlers.GetArchivedFlows)
	flows.Get("/:id", handlers.GetFlow)
	flows.Put("/:id", handlers.UpdateFlow)
	flows.Delete("/:id", handlers.ArchiveFlow)
	flows.Post("/:id/restore", handlers.RestoreFlow)
	flows.Delete("/:id/permanent", handlers.PurgeFlow)
	flows.Post("/:id/duplicate", handlers.DuplicateFlow)

	app.Get("/categories", handlers.GetCategories)

	versions := flows.Group("/:id/versions")
	versions.Post("/", handlers.CreateVersion)
	versions.Get("/:versionId", handlers.GetVersion)
	versions.Post("/:versionId/publish", handlers.PublishVersion)

	versions.Post("/:versionId/nodes", handlers.CreateNode)
	versions.Put("/:versionId/nodes/bulk-position", handlers.BulkUpdatePositions)
	versions.Put("/:versionId/nodes/:nodeId", handlers.UpdateNode)
	versions.Delete("/:versionId/nodes/:nodeId", handlers.DeleteNode)

	versions.Post("/:versionId/edges", handlers.CreateEdge)
	versions.Put("/:versionId/edges/:edgeId", handlers.UpdateEdge)
	versions.Delete("/:versionId/edges/:edgeId", handlers.DeleteEdge)

	versions.Post("/:versionId/import", handlers.ImportGraph)

	sessions := app.Group("/sessions")
	sessions.Post("/", handlers.StartSession)
	sessions.Get("/", handlers.GetSessions)
	sessions.Get("/:id", handlers.GetSession)
	sessions.Post("/:id/step", handlers.StepSession)
	sessions.Post("/:id/back", handlers.BackSession)
	sessions.Post("/:id/restart", handlers.RestartSession)
	sessions.Post("/:id/feedback", handlers.SessionFeedback)
	sessions.Get("/:id/export", handlers.ExportSession)

	analytics := app.Group("/analytics")
	analytics.Get("/overview", handlers.GetAnalyticsOverview)
	analytics.Get("/flows/:id", handlers.GetFlowAnalytics)

	app.Get("/audit-logs", handlers.GetAuditLogs)
}
