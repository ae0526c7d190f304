package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/resolvd/resolvd/pkg/models"
	"github.com/resolvd/resolvd/pkg/persistence"
)

// Analytics computes read-side aggregates over sessions. Nothing here
// mutates state; every figure is derived on demand from the stored rows.
type Analytics struct {
	persistence persistence.Persistence
}

// NewAnalytics creates a new analytics service.
func NewAnalytics(persistence persistence.Persistence) *Analytics {
	return &Analytics{persistence: persistence}
}

// Overview is the service-wide dashboard rollup.
type Overview struct {
	TotalFlows         int                     `json:"total_flows"`
	LiveFlows          int                     `json:"live_flows"`
	TotalSessions      int                     `json:"total_sessions"`
	CompletedSessions  int                     `json:"completed_sessions"`
	CompletionRate     float64                 `json:"completion_rate"`
	EscalationRate     float64                 `json:"escalation_rate"`
	AvgDurationSeconds *float64                `json:"avg_duration_seconds"`
	AvgRating          *float64                `json:"avg_rating"`
	SessionsPerDay     []persistence.DayCount  `json:"sessions_per_day"`
}

// GetOverview aggregates flow and session counts across the whole service,
// with a trailing 30-day per-day session series.
func (a *Analytics) GetOverview(ctx context.Context) (*Overview, error) {
	flows, err := a.persistence.FlowRepository().Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count flows: %w", err)
	}

	sessions, err := a.persistence.SessionRepository().Overview(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sessions: %w", err)
	}

	since := time.Now().UTC().AddDate(0, 0, -30)

	perDay, err := a.persistence.SessionRepository().PerDay(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to build time series: %w", err)
	}

	overview := &Overview{
		TotalFlows:        flows.Total,
		LiveFlows:         flows.Live,
		TotalSessions:     sessions.Total,
		CompletedSessions: sessions.Completed,
		CompletionRate:    rate(sessions.Completed, sessions.Total),
		EscalationRate:    rate(sessions.Escalated, sessions.Completed),
		SessionsPerDay:    perDay,
	}

	if sessions.AvgDurationSeconds != nil {
		overview.AvgDurationSeconds = roundPtr(*sessions.AvgDurationSeconds, 0)
	}

	if sessions.AvgRating != nil {
		overview.AvgRating = roundPtr(*sessions.AvgRating, 2)
	}

	return overview, nil
}

// ResultNodeCount is one entry of a flow report's top results table.
type ResultNodeCount struct {
	NodeID     string  `json:"node_id"`
	Title      string  `json:"title"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// FlowReport is the per-flow analytics breakdown. Sessions against every
// version of the flow count, not just the active one.
type FlowReport struct {
	FlowID             string                 `json:"flow_id"`
	FlowName           string                 `json:"flow_name"`
	TotalSessions      int                    `json:"total_sessions"`
	CompletedSessions  int                    `json:"completed_sessions"`
	EscalatedSessions  int                    `json:"escalated_sessions"`
	CompletionRate     float64                `json:"completion_rate"`
	EscalationRate     float64                `json:"escalation_rate"`
	AvgDurationSeconds *float64               `json:"avg_duration_seconds"`
	AvgSteps           *float64               `json:"avg_steps"`
	AvgRating          *float64               `json:"avg_rating"`
	TopResultNodes     []ResultNodeCount      `json:"top_result_nodes"`
	RatingsBreakdown   map[int]int            `json:"ratings_breakdown"`
	SessionsPerDay     []persistence.DayCount `json:"sessions_per_day"`
}

// GetFlowReport computes the full analytics breakdown for one flow.
func (a *Analytics) GetFlowReport(ctx context.Context, flowID string) (*FlowReport, error) {
	flow, err := a.persistence.FlowRepository().GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if flow == nil {
		return nil, ErrFlowNotFound
	}

	versions, err := a.persistence.VersionRepository().ListByFlow(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	versionIDs := make([]string, 0, len(versions))
	for _, v := range versions {
		versionIDs = append(versionIDs, v.ID)
	}

	sessions, err := a.persistence.SessionRepository().ListByVersionIDs(ctx, versionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	report := &FlowReport{
		FlowID:           flow.ID,
		FlowName:         flow.Name,
		TotalSessions:    len(sessions),
		TopResultNodes:   []ResultNodeCount{},
		RatingsBreakdown: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}

	var (
		durationSum float64
		durations   int
		stepsSum    float64
		ratingSum   float64
		ratings     int
	)

	finalCounts := map[string]int{}
	perDay := map[string]int{}
	since := time.Now().UTC().AddDate(0, 0, -30)

	for _, session := range sessions {
		if !session.StartedAt.Before(since) {
			perDay[session.StartedAt.UTC().Format("2006-01-02")]++
		}

		if session.FeedbackRating != nil {
			ratingSum += float64(*session.FeedbackRating)
			ratings++
			report.RatingsBreakdown[*session.FeedbackRating]++
		}

		if !session.IsCompleted() {
			continue
		}

		report.CompletedSessions++
		stepsSum += float64(len(session.PathTaken))

		if session.ResolutionType != nil && *session.ResolutionType == models.ResolutionEscalated {
			report.EscalatedSessions++
		}

		if session.DurationSeconds != nil {
			durationSum += float64(*session.DurationSeconds)
			durations++
		}

		if session.FinalNodeID != nil {
			finalCounts[*session.FinalNodeID]++
		}
	}

	report.CompletionRate = rate(report.CompletedSessions, report.TotalSessions)
	report.EscalationRate = rate(report.EscalatedSessions, report.CompletedSessions)

	if durations > 0 {
		report.AvgDurationSeconds = roundPtr(durationSum/float64(durations), 0)
	}

	if report.CompletedSessions > 0 {
		report.AvgSteps = roundPtr(stepsSum/float64(report.CompletedSessions), 1)
	}

	if ratings > 0 {
		report.AvgRating = roundPtr(ratingSum/float64(ratings), 2)
	}

	report.TopResultNodes, err = a.topResultNodes(ctx, versionIDs, finalCounts, report.CompletedSessions)
	if err != nil {
		return nil, err
	}

	report.SessionsPerDay = dayCounts(perDay)

	return report, nil
}

// ListAuditLogsRequest contains options for listing audit entries.
type ListAuditLogsRequest struct {
	ResourceType string
	ResourceID   string
	Page         int
	Limit        int
}

// ListAuditLogsResponse is a page of audit entries.
type ListAuditLogsResponse struct {
	Entries []*models.AuditLog `json:"data"`
	Total   int                `json:"total"`
}

// ListAuditLogs returns audit entries newest first.
func (a *Analytics) ListAuditLogs(ctx context.Context, req ListAuditLogsRequest) (*ListAuditLogsResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}

	if req.Limit < 1 {
		req.Limit = 100
	}

	if req.Limit > 200 {
		req.Limit = 200
	}

	result, err := a.persistence.AuditRepository().List(ctx, persistence.ListAuditOptions{
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Page:         req.Page,
		Limit:        req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	return &ListAuditLogsResponse{Entries: result.Entries, Total: result.Total}, nil
}

// topResultNodes resolves the ten most frequent final nodes to titles and
// percentages of completed sessions.
func (a *Analytics) topResultNodes(ctx context.Context, versionIDs []string, counts map[string]int, completed int) ([]ResultNodeCount, error) {
	if len(counts) == 0 {
		return []ResultNodeCount{}, nil
	}

	titles := map[string]string{}

	for _, versionID := range versionIDs {
		nodes, err := a.persistence.GraphRepository().GetNodes(ctx, versionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load nodes: %w", err)
		}

		for _, node := range nodes {
			titles[node.ID] = node.Title
		}
	}

	top := make([]ResultNodeCount, 0, len(counts))
	for nodeID, count := range counts {
		top = append(top, ResultNodeCount{
			NodeID:     nodeID,
			Title:      titles[nodeID],
			Count:      count,
			Percentage: rate(count, completed),
		})
	}

	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}

		return top[i].NodeID < top[j].NodeID
	})

	if len(top) > 10 {
		top = top[:10]
	}

	return top, nil
}

// rate returns part/whole as a percentage rounded to one decimal place,
// or 0 when whole is 0.
func rate(part, whole int) float64 {
	if whole == 0 {
		return 0
	}

	return math.Round(float64(part)/float64(whole)*1000) / 10
}

func roundPtr(v float64, decimals int) *float64 {
	scale := math.Pow(10, float64(decimals))
	rounded := math.Round(v*scale) / scale

	return &rounded
}

func dayCounts(perDay map[string]int) []persistence.DayCount {
	series := make([]persistence.DayCount, 0, len(perDay))
	for date, count := range perDay {
		series = append(series, persistence.DayCount{Date: date, Count: count})
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].Date < series[j].Date
	})

	return series
}
