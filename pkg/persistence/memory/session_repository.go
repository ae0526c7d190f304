package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/resolvd/resolvd/pkg/models"
	"github.com/resolvd/resolvd/pkg/persistence"
)

// SessionRepository implements persistence.SessionRepository in memory.
type SessionRepository struct {
	store *store
}

func (r *SessionRepository) GetByID(_ context.Context, id string) (*models.Session, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	session, ok := r.store.sessions[id]
	if !ok {
		return nil, nil
	}

	return cloneSession(session), nil
}

func (r *SessionRepository) List(_ context.Context, opts persistence.ListSessionsOptions) (*persistence.SessionListResult, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var versionIDs map[string]bool
	if opts.VersionIDs != nil {
		versionIDs = make(map[string]bool, len(opts.VersionIDs))
		for _, id := range opts.VersionIDs {
			versionIDs[id] = true
		}
	}

	matched := make([]*models.Session, 0)

	for _, session := range r.store.sessions {
		if versionIDs != nil && !versionIDs[session.FlowVersionID] {
			continue
		}

		if opts.Status != "" && session.Status != opts.Status {
			continue
		}

		if opts.TicketID != "" && !strings.Contains(session.TicketID, opts.TicketID) {
			continue
		}

		matched = append(matched, cloneSession(session))
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	total := len(matched)

	return &persistence.SessionListResult{
		Sessions: paginate(matched, opts.Page, opts.Limit),
		Total:    total,
	}, nil
}

func (r *SessionRepository) ListByVersionIDs(_ context.Context, versionIDs []string) ([]*models.Session, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	wanted := make(map[string]bool, len(versionIDs))
	for _, id := range versionIDs {
		wanted[id] = true
	}

	sessions := make([]*models.Session, 0)

	for _, session := range r.store.sessions {
		if wanted[session.FlowVersionID] {
			sessions = append(sessions, cloneSession(session))
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})

	return sessions, nil
}

func (r *SessionRepository) Create(_ context.Context, session *models.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.sessions[session.ID] = cloneSession(session)

	return nil
}

func (r *SessionRepository) Save(_ context.Context, session *models.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.sessions[session.ID]; !ok {
		return persistence.ErrSessionNotFound
	}

	r.store.sessions[session.ID] = cloneSession(session)

	return nil
}

func (r *SessionRepository) Advance(_ context.Context, session *models.Session, step *models.SessionStep) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.sessions[session.ID]; !ok {
		return persistence.ErrSessionNotFound
	}

	r.store.sessions[session.ID] = cloneSession(session)
	r.store.steps[session.ID] = append(r.store.steps[session.ID], cloneStep(step))

	return nil
}

func (r *SessionRepository) Rewind(_ context.Context, session *models.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.sessions[session.ID]; !ok {
		return persistence.ErrSessionNotFound
	}

	steps := r.store.steps[session.ID]
	if len(steps) > 0 {
		highest := 0
		for i, step := range steps {
			if step.StepNumber > steps[highest].StepNumber {
				highest = i
			}
		}

		r.store.steps[session.ID] = append(steps[:highest], steps[highest+1:]...)
	}

	r.store.sessions[session.ID] = cloneSession(session)

	return nil
}

func (r *SessionRepository) Reset(_ context.Context, session *models.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.sessions[session.ID]; !ok {
		return persistence.ErrSessionNotFound
	}

	delete(r.store.steps, session.ID)
	r.store.sessions[session.ID] = cloneSession(session)

	return nil
}

func (r *SessionRepository) Steps(_ context.Context, sessionID string) ([]*models.SessionStep, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	steps := make([]*models.SessionStep, 0, len(r.store.steps[sessionID]))
	for _, step := range r.store.steps[sessionID] {
		steps = append(steps, cloneStep(step))
	}

	sort.Slice(steps, func(i, j int) bool {
		return steps[i].StepNumber < steps[j].StepNumber
	})

	return steps, nil
}

func (r *SessionRepository) Overview(_ context.Context) (*persistence.SessionOverview, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	overview := &persistence.SessionOverview{}

	var (
		durationSum float64
		durations   int
		ratingSum   float64
		ratings     int
	)

	for _, session := range r.store.sessions {
		overview.Total++

		if session.FeedbackRating != nil {
			ratingSum += float64(*session.FeedbackRating)
			ratings++
		}

		if !session.IsCompleted() {
			continue
		}

		overview.Completed++

		if session.ResolutionType != nil && *session.ResolutionType == models.ResolutionEscalated {
			overview.Escalated++
		}

		if session.DurationSeconds != nil {
			durationSum += float64(*session.DurationSeconds)
			durations++
		}
	}

	if durations > 0 {
		avg := durationSum / float64(durations)
		overview.AvgDurationSeconds = &avg
	}

	if ratings > 0 {
		avg := ratingSum / float64(ratings)
		overview.AvgRating = &avg
	}

	return overview, nil
}

func (r *SessionRepository) PerDay(_ context.Context, since time.Time) ([]persistence.DayCount, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	counts := make(map[string]int)

	for _, session := range r.store.sessions {
		if session.StartedAt.Before(since) {
			continue
		}

		counts[session.StartedAt.UTC().Format("2006-01-02")]++
	}

	series := make([]persistence.DayCount, 0, len(counts))
	for date, count := range counts {
		series = append(series, persistence.DayCount{Date: date, Count: count})
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].Date < series[j].Date
	})

	return series, nil
}
