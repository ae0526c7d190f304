// Package memory provides an in-memory persistence implementation, used by
// tests and for running the API without a database.
package memory

import (
	"context"
	"sync"

	"github.com/resolvd/resolvd/pkg/models"
	"github.com/resolvd/resolvd/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface with plain
// maps behind a single mutex. All reads and writes copy, so callers never
// share memory with the store.
type Persistence struct {
	store *store

	flowRepo    *FlowRepository
	versionRepo *VersionRepository
	graphRepo   *GraphRepository
	sessionRepo *SessionRepository
	auditRepo   *AuditRepository
}

type store struct {
	mu sync.RWMutex

	flows    map[string]*models.Flow
	versions map[string]*models.FlowVersion
	nodes    map[string]*models.Node
	edges    map[string]*models.Edge
	sessions map[string]*models.Session
	steps    map[string][]*models.SessionStep // Keyed by session id
	audits   []*models.AuditLog
}

// NewPersistence creates an empty in-memory persistence layer.
func NewPersistence() *Persistence {
	s := &store{
		flows:    make(map[string]*models.Flow),
		versions: make(map[string]*models.FlowVersion),
		nodes:    make(map[string]*models.Node),
		edges:    make(map[string]*models.Edge),
		sessions: make(map[string]*models.Session),
		steps:    make(map[string][]*models.SessionStep),
	}

	return &Persistence{
		store:       s,
		flowRepo:    &FlowRepository{store: s},
		versionRepo: &VersionRepository{store: s},
		graphRepo:   &GraphRepository{store: s},
		sessionRepo: &SessionRepository{store: s},
		auditRepo:   &AuditRepository{store: s},
	}
}

func (p *Persistence) FlowRepository() persistence.FlowRepository {
	return p.flowRepo
}

func (p *Persistence) VersionRepository() persistence.VersionRepository {
	return p.versionRepo
}

func (p *Persistence) GraphRepository() persistence.GraphRepository {
	return p.graphRepo
}

func (p *Persistence) SessionRepository() persistence.SessionRepository {
	return p.sessionRepo
}

func (p *Persistence) AuditRepository() persistence.AuditRepository {
	return p.auditRepo
}

// HealthCheck always succeeds for the in-memory store.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

// Close discards all stored data.
func (p *Persistence) Close(_ context.Context) error {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()

	p.store.flows = make(map[string]*models.Flow)
	p.store.versions = make(map[string]*models.FlowVersion)
	p.store.nodes = make(map[string]*models.Node)
	p.store.edges = make(map[string]*models.Edge)
	p.store.sessions = make(map[string]*models.Session)
	p.store.steps = make(map[string][]*models.SessionStep)
	p.store.audits = nil

	return nil
}

// appendAudit records an audit entry. Callers hold the store lock.
func (s *store) appendAudit(audit *models.AuditLog) {
	if audit == nil {
		return
	}

	s.audits = append(s.audits, cloneAudit(audit))
}

func cloneFlow(f *models.Flow) *models.Flow {
	c := *f
	c.Tags = append([]string(nil), f.Tags...)

	if f.ActiveVersionID != nil {
		v := *f.ActiveVersionID
		c.ActiveVersionID = &v
	}

	if f.DeletedAt != nil {
		t := *f.DeletedAt
		c.DeletedAt = &t
	}

	return &c
}

func cloneVersion(v *models.FlowVersion) *models.FlowVersion {
	c := *v

	if v.PublishedAt != nil {
		t := *v.PublishedAt
		c.PublishedAt = &t
	}

	return &c
}

func cloneNode(n *models.Node) *models.Node {
	c := *n

	if n.Metadata != nil {
		c.Metadata = make(map[string]any, len(n.Metadata))
		for k, v := range n.Metadata {
			c.Metadata[k] = v
		}
	}

	return &c
}

func cloneEdge(e *models.Edge) *models.Edge {
	c := *e

	return &c
}

func cloneSession(s *models.Session) *models.Session {
	c := *s
	c.PathTaken = append([]string(nil), s.PathTaken...)

	if s.FinalNodeID != nil {
		v := *s.FinalNodeID
		c.FinalNodeID = &v
	}

	if s.ResolutionType != nil {
		v := *s.ResolutionType
		c.ResolutionType = &v
	}

	if s.FeedbackRating != nil {
		v := *s.FeedbackRating
		c.FeedbackRating = &v
	}

	if s.FeedbackNote != nil {
		v := *s.FeedbackNote
		c.FeedbackNote = &v
	}

	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}

	if s.DurationSeconds != nil {
		v := *s.DurationSeconds
		c.DurationSeconds = &v
	}

	return &c
}

func cloneStep(s *models.SessionStep) *models.SessionStep {
	c := *s

	return &c
}

func cloneAudit(a *models.AuditLog) *models.AuditLog {
	c := *a

	if a.Payload != nil {
		c.Payload = make(map[string]any, len(a.Payload))
		for k, v := range a.Payload {
			c.Payload[k] = v
		}
	}

	return &c
}

func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}

	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}

	end := start + limit
	if end > len(items) {
		end = len(items)
	}

	return items[start:end]
}
