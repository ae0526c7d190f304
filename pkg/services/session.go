package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/resolvd/resolvd/pkg/models"
	"github.com/resolvd/resolvd/pkg/persistence"
)

var (
	// ErrSessionNotFound is returned when a session is not found.
	ErrSessionNotFound = persistence.ErrSessionNotFound
)

// Session runs the traversal state machine: start, step, back, restart, and
// feedback. Every mutation returns the full session state read model so the
// caller never needs a follow-up fetch.
type Session struct {
	persistence persistence.Persistence
}

// NewSession creates a new session engine.
func NewSession(persistence persistence.Persistence) *Session {
	return &Session{persistence: persistence}
}

// StartSessionRequest contains options for starting a session.
type StartSessionRequest struct {
	FlowID    string
	VersionID string // Optional explicit version; defaults to active, then newest
	TicketID  string
	AgentID   string
	AgentName string
}

// Start creates a session against the resolved version, positioned at the
// start node. Version resolution order: explicit id, the flow's active
// published version, the newest version of any status.
func (s *Session) Start(ctx context.Context, req StartSessionRequest) (*models.SessionState, error) {
	flow, err := s.persistence.FlowRepository().GetByID(ctx, req.FlowID)
	if err != nil {
		return nil, err
	}

	if flow == nil {
		return nil, ErrFlowNotFound
	}

	version, err := s.resolveVersion(ctx, flow, req.VersionID)
	if err != nil {
		return nil, err
	}

	start, err := s.persistence.GraphRepository().GetStartNode(ctx, version.ID)
	if err != nil {
		return nil, err
	}

	if start == nil {
		return nil, ErrNoStartNode
	}

	session := &models.Session{
		ID:            uuid.New().String(),
		FlowVersionID: version.ID,
		TicketID:      req.TicketID,
		AgentID:       req.AgentID,
		AgentName:     req.AgentName,
		Status:        models.SessionStatusInProgress,
		CurrentNodeID: start.ID,
		PathTaken:     []string{start.ID},
		StartedAt:     time.Now().UTC(),
	}

	err = s.persistence.SessionRepository().Create(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return s.buildState(ctx, session)
}

// Step advances the session along the given edge. Only edges leaving the
// current node are accepted; an edge elsewhere in the graph is rejected, not
// ignored. Arriving at a result node completes the session.
func (s *Session) Step(ctx context.Context, sessionID, edgeID string) (*models.SessionState, error) {
	session, err := s.fetch(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.IsCompleted() {
		return nil, ErrSessionCompleted
	}

	edge, err := s.persistence.GraphRepository().GetEdge(ctx, session.FlowVersionID, edgeID)
	if err != nil {
		return nil, err
	}

	if edge == nil || edge.SourceNodeID != session.CurrentNodeID {
		return nil, ErrInvalidEdge
	}

	target, err := s.persistence.GraphRepository().GetNode(ctx, session.FlowVersionID, edge.TargetNodeID)
	if err != nil {
		return nil, err
	}

	if target == nil {
		return nil, ErrNodeNotFound
	}

	step := &models.SessionStep{
		ID:          uuid.New().String(),
		SessionID:   session.ID,
		NodeID:      session.CurrentNodeID,
		EdgeID:      edge.ID,
		AnswerLabel: edge.ConditionLabel,
		StepNumber:  len(session.PathTaken) - 1,
		CreatedAt:   time.Now().UTC(),
	}

	session.PathTaken = append(session.PathTaken, target.ID)
	session.CurrentNodeID = target.ID

	if target.IsResult() {
		now := time.Now().UTC()

		duration := int(now.Sub(session.StartedAt).Seconds())
		if duration < 0 {
			duration = 0
		}

		resolution := models.ResolutionResolved
		if target.IsEscalation() {
			resolution = models.ResolutionEscalated
		}

		session.Status = models.SessionStatusCompleted
		session.FinalNodeID = &target.ID
		session.CompletedAt = &now
		session.DurationSeconds = &duration
		session.ResolutionType = &resolution
	}

	err = s.persistence.SessionRepository().Advance(ctx, session, step)
	if err != nil {
		return nil, fmt.Errorf("failed to advance session: %w", err)
	}

	return s.buildState(ctx, session)
}

// Back undoes the most recent step. The session is reset to in_progress and
// its completion fields cleared regardless of prior status, so backing out
// of a completed session re-opens it. Feedback is left intact.
func (s *Session) Back(ctx context.Context, sessionID string) (*models.SessionState, error) {
	session, err := s.fetch(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if len(session.PathTaken) <= 1 {
		return nil, ErrAlreadyAtStart
	}

	session.PathTaken = session.PathTaken[:len(session.PathTaken)-1]
	session.CurrentNodeID = session.PathTaken[len(session.PathTaken)-1]
	s.clearCompletion(session)

	err = s.persistence.SessionRepository().Rewind(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to rewind session: %w", err)
	}

	return s.buildState(ctx, session)
}

// Restart throws away the whole traversal: every step is deleted, the path
// resets to the start node, and completion and feedback fields are wiped.
func (s *Session) Restart(ctx context.Context, sessionID string) (*models.SessionState, error) {
	session, err := s.fetch(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	start, err := s.persistence.GraphRepository().GetStartNode(ctx, session.FlowVersionID)
	if err != nil {
		return nil, err
	}

	if start == nil {
		return nil, ErrNoStartNode
	}

	session.PathTaken = []string{start.ID}
	session.CurrentNodeID = start.ID
	s.clearCompletion(session)
	session.FeedbackRating = nil
	session.FeedbackNote = nil

	err = s.persistence.SessionRepository().Reset(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to reset session: %w", err)
	}

	return s.buildState(ctx, session)
}

// SubmitFeedback records a rating and/or note on a completed session. A
// given note overwrites any previous one unconditionally.
func (s *Session) SubmitFeedback(ctx context.Context, sessionID string, rating *int, note *string) (*models.SessionState, error) {
	session, err := s.fetch(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !session.IsCompleted() {
		return nil, ErrNotCompleted
	}

	if rating != nil {
		if *rating < 1 || *rating > 5 {
			return nil, ErrInvalidRating
		}

		session.FeedbackRating = rating
	}

	if note != nil {
		session.FeedbackNote = note
	}

	err = s.persistence.SessionRepository().Save(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return s.buildState(ctx, session)
}

// Fetch returns the current state of a session.
func (s *Session) Fetch(ctx context.Context, sessionID string) (*models.SessionState, error) {
	session, err := s.fetch(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return s.buildState(ctx, session)
}

// ListSessionsRequest contains options for listing sessions.
type ListSessionsRequest struct {
	FlowID   string
	Status   string
	TicketID string
	Page     int
	Limit    int
}

// ListSessionsResponse is a page of sessions.
type ListSessionsResponse struct {
	Sessions []*models.Session `json:"data"`
	Total    int               `json:"total"`
}

// List returns sessions, optionally scoped to one flow (across all its
// versions, not just the active one) and filtered by status or ticket.
func (s *Session) List(ctx context.Context, req ListSessionsRequest) (*ListSessionsResponse, error) {
	if req.Status != "" &&
		req.Status != string(models.SessionStatusInProgress) &&
		req.Status != string(models.SessionStatusCompleted) {
		return nil, NewValidationError("ListSessions", "INVALID_STATUS",
			fmt.Sprintf("invalid status %q", req.Status), ErrInvalidRequest)
	}

	if req.Page < 1 {
		req.Page = 1
	}

	if req.Limit < 1 {
		req.Limit = 50
	}

	if req.Limit > 200 {
		req.Limit = 200
	}

	opts := persistence.ListSessionsOptions{
		Status:   models.SessionStatus(req.Status),
		TicketID: req.TicketID,
		Page:     req.Page,
		Limit:    req.Limit,
	}

	if req.FlowID != "" {
		flow, err := s.persistence.FlowRepository().GetByID(ctx, req.FlowID)
		if err != nil {
			return nil, err
		}

		if flow == nil {
			return nil, ErrFlowNotFound
		}

		versions, err := s.persistence.VersionRepository().ListByFlow(ctx, req.FlowID)
		if err != nil {
			return nil, fmt.Errorf("failed to list versions: %w", err)
		}

		if len(versions) == 0 {
			return &ListSessionsResponse{Sessions: []*models.Session{}, Total: 0}, nil
		}

		opts.VersionIDs = make([]string, 0, len(versions))
		for _, v := range versions {
			opts.VersionIDs = append(opts.VersionIDs, v.ID)
		}
	}

	result, err := s.persistence.SessionRepository().List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return &ListSessionsResponse{Sessions: result.Sessions, Total: result.Total}, nil
}

// Export reconstructs the full transcript of a session from its step log.
func (s *Session) Export(ctx context.Context, sessionID string) (*models.SessionTranscript, error) {
	session, err := s.fetch(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	nodes, err := s.nodeIndex(ctx, session.FlowVersionID)
	if err != nil {
		return nil, err
	}

	steps, err := s.persistence.SessionRepository().Steps(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps: %w", err)
	}

	transcript := &models.SessionTranscript{
		SessionID:       session.ID,
		TicketID:        session.TicketID,
		AgentID:         session.AgentID,
		AgentName:       session.AgentName,
		Status:          session.Status,
		ResolutionType:  session.ResolutionType,
		DurationSeconds: session.DurationSeconds,
		StartedAt:       session.StartedAt,
		CompletedAt:     session.CompletedAt,
		Transcript:      make([]models.TranscriptEntry, 0, len(steps)),
		FeedbackRating:  session.FeedbackRating,
		FeedbackNote:    session.FeedbackNote,
	}

	for _, step := range steps {
		question := ""
		if node, ok := nodes[step.NodeID]; ok {
			question = node.Title
		}

		transcript.Transcript = append(transcript.Transcript, models.TranscriptEntry{
			Step:      step.StepNumber,
			Question:  question,
			Answer:    step.AnswerLabel,
			Timestamp: step.CreatedAt,
		})
	}

	if session.FinalNodeID != nil {
		transcript.Resolution = nodes[*session.FinalNodeID]
	}

	return transcript, nil
}

func (s *Session) fetch(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.persistence.SessionRepository().GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session == nil {
		return nil, ErrSessionNotFound
	}

	return session, nil
}

func (s *Session) resolveVersion(ctx context.Context, flow *models.Flow, explicitID string) (*models.FlowVersion, error) {
	if explicitID != "" {
		version, err := s.persistence.VersionRepository().GetByFlowAndID(ctx, flow.ID, explicitID)
		if err != nil {
			return nil, err
		}

		if version == nil {
			return nil, ErrVersionNotFound
		}

		return version, nil
	}

	if flow.ActiveVersionID != nil {
		version, err := s.persistence.VersionRepository().GetByID(ctx, *flow.ActiveVersionID)
		if err != nil {
			return nil, err
		}

		if version != nil {
			return version, nil
		}
	}

	versions, err := s.persistence.VersionRepository().ListByFlow(ctx, flow.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	if len(versions) == 0 {
		return nil, ErrNoVersionAvailable
	}

	return versions[0], nil
}

func (s *Session) clearCompletion(session *models.Session) {
	session.Status = models.SessionStatusInProgress
	session.FinalNodeID = nil
	session.ResolutionType = nil
	session.CompletedAt = nil
	session.DurationSeconds = nil
}

func (s *Session) nodeIndex(ctx context.Context, versionID string) (map[string]*models.Node, error) {
	nodes, err := s.persistence.GraphRepository().GetNodes(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}

	index := make(map[string]*models.Node, len(nodes))
	for _, node := range nodes {
		index[node.ID] = node
	}

	return index, nil
}

// buildState assembles the read model: current node, breadcrumb trail
// reconstructed by joining the path against the step log, and the outgoing
// options of the current node. Result nodes offer no options.
func (s *Session) buildState(ctx context.Context, session *models.Session) (*models.SessionState, error) {
	nodes, err := s.nodeIndex(ctx, session.FlowVersionID)
	if err != nil {
		return nil, err
	}

	current, ok := nodes[session.CurrentNodeID]
	if !ok {
		return nil, ErrNodeNotFound
	}

	steps, err := s.persistence.SessionRepository().Steps(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps: %w", err)
	}

	stepsByNumber := make(map[int]*models.SessionStep, len(steps))
	for _, step := range steps {
		stepsByNumber[step.StepNumber] = step
	}

	state := &models.SessionState{
		SessionID:       session.ID,
		TicketID:        session.TicketID,
		AgentID:         session.AgentID,
		AgentName:       session.AgentName,
		Status:          session.Status,
		ResolutionType:  session.ResolutionType,
		StepNumber:      len(session.PathTaken) - 1,
		CurrentNode:     current,
		Breadcrumb:      []string{},
		BreadcrumbFull:  []models.BreadcrumbEntry{},
		Options:         []models.StepOption{},
		DurationSeconds: session.DurationSeconds,
		FeedbackRating:  session.FeedbackRating,
	}

	for i, nodeID := range session.PathTaken[:len(session.PathTaken)-1] {
		question := ""
		if node, ok := nodes[nodeID]; ok {
			question = node.Title
		}

		answer := ""
		if step, ok := stepsByNumber[i]; ok {
			answer = step.AnswerLabel
		}

		label := question
		if answer != "" {
			label = fmt.Sprintf("%s → %s", question, answer)
		}

		state.Breadcrumb = append(state.Breadcrumb, label)
		state.BreadcrumbFull = append(state.BreadcrumbFull, models.BreadcrumbEntry{
			NodeID:   nodeID,
			Question: question,
			Answer:   answer,
			Label:    label,
		})
	}

	if current.IsResult() {
		return state, nil
	}

	edges, err := s.persistence.GraphRepository().GetEdges(ctx, session.FlowVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}

	for _, edge := range edges {
		if edge.SourceNodeID != session.CurrentNodeID {
			continue
		}

		// The label is passed through as stored, even when empty.
		state.Options = append(state.Options, models.StepOption{
			EdgeID: edge.ID,
			Label:  edge.ConditionLabel,
		})
	}

	return state, nil
}
