package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/resolvd/resolvd/pkg/models"
	"github.com/resolvd/resolvd/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Start(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewSession(persistence)

	flow, version := seedFlow(t, persistence, "Runnable")
	start, _, _ := seedGraph(t, persistence, version.ID)
	publishVersion(t, persistence, flow.ID, version.ID)

	state, err := service.Start(t.Context(), StartSessionRequest{
		FlowID:   flow.ID,
		TicketID: "TICK-1",
	})
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusInProgress, state.Status)
	assert.Equal(t, start.ID, state.CurrentNode.ID)
	assert.Equal(t, 0, state.StepNumber)
	assert.Empty(t, state.Breadcrumb)
	require.Len(t, state.Options, 2)
	assert.Equal(t, "Yes", state.Options[0].Label)
	assert.Equal(t, "No", state.Options[1].Label)
}

func TestSession_Start_EmptyOptionLabelPassedThrough(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewSession(persistence)

	flow, version := seedFlow(t, persistence, "Unlabeled")
	start, yes, _ := seedGraph(t, persistence, version.ID)

	unlabeled := &models.Edge{
		ID:            uuid.New().String(),
		FlowVersionID: version.ID,
		SourceNodeID:  start.ID,
		TargetNodeID:  yes.TargetNodeID,
		SortOrder:     2,
	}
	require.NoError(t, persistence.GraphRepository().SaveEdge(t.Context(), unlabeled))

	state, err := service.Start(t.Context(), StartSessionRequest{FlowID: flow.ID})
	require.NoError(t, err)

	require.Len(t, state.Options, 3)
	assert.Equal(t, unlabeled.ID, state.Options[2].EdgeID)
	assert.Empty(t, state.Options[2].Label, "stored label is offered as-is, not replaced by the target title")
}

func TestSession_Start_PrefersActiveVersion(t *testing.T) {
	persistence := memory.NewPersistence()
	sessionService := NewSession(persistence)
	versionService := NewVersion(persistence, newTestAudit())

	flow, v1 := seedFlow(t, persistence, "Evolving")
	seedGraph(t, persistence, v1.ID)
	publishVersion(t, persistence, flow.ID, v1.ID)

	// A newer draft exists, but sessions should run the published version
	v2, err := versionService.Create(t.Context(), flow.ID, "", "tester")
	require.NoError(t, err)

	state, err := sessionService.Start(t.Context(), StartSessionRequest{FlowID: flow.ID})
	require.NoError(t, err)

	session, err := persistence.SessionRepository().GetByID(t.Context(), state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, session.FlowVersionID)
	assert.NotEqual(t, v2.ID, session.FlowVersionID)
}

func TestSession_Start_ExplicitVersion(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewSession(persistence)

	flow, version := seedFlow(t, persistence, "Pinned")
	seedGraph(t, persistence, version.ID)

	state, err := service.Start(t.Context(), StartSessionRequest{
		FlowID:    flow.ID,
		VersionID: version.ID,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, state.SessionID)

	// An explicit version must belong to the flow
	other, _ := seedFlow(t, persistence, "Other")

	_, err = service.Start(t.Context(), StartSessionRequest{
		FlowID:    other.ID,
		VersionID: version.ID,
	})
	require.ErrorIs(t, err, ErrVersionNotFound)
}

func TestSession_Start_FallsBackToNewestDraft(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewSession(persistence)

	flow, version := seedFlow(t, persistence, "Unpublished")
	seedGraph(t, persistence, version.ID)

	// Nothing published yet; the newest draft is used
	state, err := service.Start(t.Context(), StartSessionRequest{FlowID: flow.ID})
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusInProgress, state.Status)
}

func TestSession_Start_NoStartNode(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewSession(persistence)

	flow, _ := seedFlow(t, persistence, "Headless")

	_, err := service.Start(t.Context(), StartSessionRequest{FlowID: flow.ID})
	require.ErrorIs(t, err, ErrNoStartNode)
}

func TestSession_Step_CompletesOnResult(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewSession(persistence)

	flow, version := seedFlow(t, persistence, "Steppable")
	_, yes, _ := seedGraph(t, persistence, version.ID)

	state, err := service.Start(t.Context(), StartSessionRequest{FlowID: flow.ID})
	require.NoError(t, err)

	state, err = service.Step(t.Context(), state.SessionID, yes.ID)
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusCompleted, state.Status)
	require.NotNil(t, state.ResolutionType)
	assert.Equal(t, models.ResolutionResolved, *state.ResolutionType)
	assert.Empty(t, state.Options, "result nodes offer no options")
	require.NotNil(t, state.DurationSeconds)
	assert.GreaterOrEqual(t, *state.DurationSeconds, 0)

	require.Len(t, state.Breadcrumb, 1)
	assert.Equal(t, "Is the device powered on? → Yes", state.Breadcrumb[0])
}

func TestSession_Step_Escalation(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewSession(persistence)

	flow, version := seedFlow(t, persistence, "Escalating")
	_, _, no := seedGraph(t, persistence, version.ID)

	state, err := service.Start(t.Context(), StartSessionRequest{FlowID: flow.ID})
	require.NoError(t, err)

	state, err = service.Step(t.Context(), state.SessionID, no.ID)
	require.NoError(t, err)

	require.NotNil(t, state.ResolutionType)
	assert.Equal(t, models.ResolutionEscalated, *state.ResolutionType)
}

func TestSession_Step_CompletedSession(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewSession(persistence)

	flow, version := seedFlow(t, persistence, "Finished")
	_, yes, no := seedGraph(t, persistence, version.ID)

	state, err := service.Start(t.Context(), StartSessionRequest{FlowID: flow.ID})
	require.NoError(t, err)

	_, err = service.Step(t.Context(), state.SessionID, yes.ID)
	require.NoError(t, err)

	_, err = service.Step(t.Context(), state.SessionID, no.ID)
	require.ErrorIs(t, err, ErrSessionCompleted)
}

func TestSession_Step_EdgeNotFromCurrentNode(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewSession(persistence)
	graphService := NewGraph(persistence, newTestAudit())

	flow, version := seedFlow(t, persistence, "Strict")
	start, yes, _ := seedGraph(t, persistence, version.ID)

	// Extend the graph: a second question reachable from the start, with its
	// own outgoing edge
	second, err := graphService.AddNode(t.Context(), flow.ID, version.ID, NodeInput{
		Type: "question", Title: "Second question",
	})
	require.NoError(t, err)

	farEdge, err := graphService.AddEdge(t.Context(), flow.ID, version.ID, EdgeInput{
		SourceNodeID:   second.ID,
		TargetNodeID:   yes.TargetNodeID,
		ConditionLabel: "Done",
	})
	require.NoError(t, err)

	state, err := service.Start(t.Context(), StartSessionRequest{FlowID: flow.ID})
	require.NoError(t, err)
	require.Equal(t, start.ID, state.CurrentNode.ID)

	// farEdge exists in the graph but does not leave the current node
	_, err = service.Step(t.Context(), state.SessionID, farEdge.ID)
	require.ErrorIs(t, err, ErrInvalidEdge)
}

func TestSession_Back(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewSession(persistence)

	flow, version := seedFlow(t, persistence, "Reversible")
	start, yes, _ := seedGraph(t, persistence, version.ID)

	state, err := service.Start(t.Context(), StartSessionRequest{FlowID: flow.ID})
	require.NoError(t, err)

	state, err = service.Step(t.Context(), state.SessionID, yes.ID)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusCompleted, state.Status)

	// Backing out of a completed session re-opens it
	state, err = service.Back(t.Context(), state.SessionID)
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusInProgress, state.Status)
	assert.Equal(t, start.ID, state.CurrentNode.ID)
	assert.Nil(t, state.ResolutionType)
	assert.Nil(t, state.DurationSeconds)
	assert.Empty(t, state.Breadcrumb)
	assert.Len(t, state.Options, 2)
}

func TestSession_Back_AtStart(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewSession(persistence)

	flow, version := seedFlow(t, persistence, "Anchored")
	seedGraph(t, persistence, version.ID)

	state, err := service.Start(t.Context(), StartSessionRequest{FlowID: flow.ID})
	require.NoError(t, err)

	_, err = service.Back(t.Context(), state.SessionID)
	require.ErrorIs(t, err, ErrAlreadyAtStart)
}

func TestSession_Back_KeepsFeedback(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewSession(persistence)

	flow, version := seedFlow(t, persistence, "Rated")
	_, yes, _ := seedGraph(t, persistence, version.ID)

	state, err := service.Start(t.Context(), StartSessionRequest{FlowID: flow.ID})
	require.NoError(t, err)

	state, err = service.Step(t.Context(), state.SessionID, yes.ID)
	require.NoError(t, err)

	rating := 4
	_, err = service.SubmitFeedback(t.Context(), state.SessionID, &rating, nil)
	require.NoError(t, err)

	state, err = service.Back(t.Context(), state.SessionID)
	require.NoError(t, err)

	require.NotNil(t, state.FeedbackRating)
	assert.Equal(t, 4, *state.FeedbackRating)
}

func TestSession_Restart(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewSession(persistence)

	flow, version := seedFlow(t, persistence, "Restartable")
	start, yes, _ := seedGraph(t, persistence, version.ID)

	state, err := service.Start(t.Context(), StartSessionRequest{FlowID: flow.ID})
	require.NoError(t, err)

	state, err = service.Step(t.Context(), state.SessionID, yes.ID)
	require.NoError(t, err)

	rating := 5
	_, err = service.SubmitFeedback(t.Context(), state.SessionID, &rating, nil)
	require.NoError(t, err)

	// Restart wipes steps, completion, and feedback
	state, err = service.Restart(t.Context(), state.SessionID)
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusInProgress, state.Status)
	assert.Equal(t, start.ID, state.CurrentNode.ID)
	assert.Equal(t, 0, state.StepNumber)
	assert.Nil(t, state.FeedbackRating)

	steps, err := persistence.SessionRepository().Steps(t.Context(), state.SessionID)
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestSession_SubmitFeedback(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewSession(persistence)

	flow, version := seedFlow(t, persistence, "Feedback")
	_, yes, _ := seedGraph(t, persistence, version.ID)

	state, err := service.Start(t.Context(), StartSessionRequest{FlowID: flow.ID})
	require.NoError(t, err)

	// Feedback on an open session is rejected
	rating := 3
	_, err = service.SubmitFeedback(t.Context(), state.SessionID, &rating, nil)
	require.ErrorIs(t, err, ErrNotCompleted)

	state, err = service.Step(t.Context(), state.SessionID, yes.ID)
	require.NoError(t, err)

	note := "clear instructions"
	state, err = service.SubmitFeedback(t.Context(), state.SessionID, &rating, &note)
	require.NoError(t, err)

	require.NotNil(t, state.FeedbackRating)
	assert.Equal(t, 3, *state.FeedbackRating)
}

func TestSession_SubmitFeedback_InvalidRating(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewSession(persistence)

	flow, version := seedFlow(t, persistence, "Picky")
	_, yes, _ := seedGraph(t, persistence, version.ID)

	state, err := service.Start(t.Context(), StartSessionRequest{FlowID: flow.ID})
	require.NoError(t, err)

	state, err = service.Step(t.Context(), state.SessionID, yes.ID)
	require.NoError(t, err)

	for _, rating := range []int{0, 6, -1} {
		r := rating
		_, err = service.SubmitFeedback(t.Context(), state.SessionID, &r, nil)
		require.ErrorIs(t, err, ErrInvalidRating)
	}
}

func TestSession_List(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewSession(persistence)

	flow, version := seedFlow(t, persistence, "Listed")
	_, yes, _ := seedGraph(t, persistence, version.ID)

	open, err := service.Start(t.Context(), StartSessionRequest{FlowID: flow.ID, TicketID: "TICK-100"})
	require.NoError(t, err)

	done, err := service.Start(t.Context(), StartSessionRequest{FlowID: flow.ID, TicketID: "TICK-200"})
	require.NoError(t, err)

	_, err = service.Step(t.Context(), done.SessionID, yes.ID)
	require.NoError(t, err)

	all, err := service.List(t.Context(), ListSessionsRequest{FlowID: flow.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Total)

	completed, err := service.List(t.Context(), ListSessionsRequest{FlowID: flow.ID, Status: "completed"})
	require.NoError(t, err)
	require.Equal(t, 1, completed.Total)
	assert.Equal(t, done.SessionID, completed.Sessions[0].ID)

	byTicket, err := service.List(t.Context(), ListSessionsRequest{TicketID: "TICK-100"})
	require.NoError(t, err)
	require.Equal(t, 1, byTicket.Total)
	assert.Equal(t, open.SessionID, byTicket.Sessions[0].ID)
}

func TestSession_Export(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewSession(persistence)

	flow, version := seedFlow(t, persistence, "Exported")
	_, yes, _ := seedGraph(t, persistence, version.ID)

	state, err := service.Start(t.Context(), StartSessionRequest{FlowID: flow.ID, TicketID: "TICK-9"})
	require.NoError(t, err)

	_, err = service.Step(t.Context(), state.SessionID, yes.ID)
	require.NoError(t, err)

	transcript, err := service.Export(t.Context(), state.SessionID)
	require.NoError(t, err)

	assert.Equal(t, "TICK-9", transcript.TicketID)
	assert.Equal(t, models.SessionStatusCompleted, transcript.Status)
	require.Len(t, transcript.Transcript, 1)
	assert.Equal(t, "Is the device powered on?", transcript.Transcript[0].Question)
	assert.Equal(t, "Yes", transcript.Transcript[0].Answer)
	require.NotNil(t, transcript.Resolution)
	assert.Equal(t, "Issue resolved", transcript.Resolution.Title)
}

func TestSession_Fetch_NotFound(t *testing.T) {
	persistence := memory.NewPersistence()
	service := NewSession(persistence)

	_, err := service.Fetch(t.Context(), "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
}
