package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/resolvd/resolvd/pkg/models"
	"github.com/resolvd/resolvd/pkg/persistence"
)

// FlowRepository implements persistence.FlowRepository in memory.
type FlowRepository struct {
	store *store
}

func (r *FlowRepository) List(_ context.Context, opts persistence.ListFlowsOptions) (*persistence.FlowListResult, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	search := strings.ToLower(opts.Search)
	matched := make([]*models.Flow, 0, len(r.store.flows))

	for _, flow := range r.store.flows {
		if flow.DeletedAt != nil || flow.IsArchived {
			continue
		}

		if search != "" &&
			!strings.Contains(strings.ToLower(flow.Name), search) &&
			!strings.Contains(strings.ToLower(flow.Description), search) {
			continue
		}

		if opts.Category != "" && flow.Category != opts.Category {
			continue
		}

		if opts.Status == "live" && !flow.IsLive() {
			continue
		}

		if opts.Status == "draft" && flow.IsLive() {
			continue
		}

		matched = append(matched, cloneFlow(flow))
	}

	switch opts.Sort {
	case "oldest":
		sort.Slice(matched, func(i, j int) bool {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		})
	case "name":
		sort.Slice(matched, func(i, j int) bool {
			return strings.ToLower(matched[i].Name) < strings.ToLower(matched[j].Name)
		})
	default:
		sort.Slice(matched, func(i, j int) bool {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		})
	}

	total := len(matched)

	return &persistence.FlowListResult{
		Flows: paginate(matched, opts.Page, opts.Limit),
		Total: total,
	}, nil
}

func (r *FlowRepository) ListArchived(_ context.Context) ([]*models.Flow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	archived := make([]*models.Flow, 0)

	for _, flow := range r.store.flows {
		if flow.DeletedAt == nil && flow.IsArchived {
			archived = append(archived, cloneFlow(flow))
		}
	}

	sort.Slice(archived, func(i, j int) bool {
		return archived[i].UpdatedAt.After(archived[j].UpdatedAt)
	})

	return archived, nil
}

func (r *FlowRepository) GetByID(_ context.Context, id string) (*models.Flow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	flow, ok := r.store.flows[id]
	if !ok || flow.DeletedAt != nil {
		return nil, nil
	}

	return cloneFlow(flow), nil
}

func (r *FlowRepository) Save(_ context.Context, flow *models.Flow, audit *models.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.flows[flow.ID] = cloneFlow(flow)
	r.store.appendAudit(audit)

	return nil
}

func (r *FlowRepository) CreateWithVersion(_ context.Context, flow *models.Flow, version *models.FlowVersion, sourceVersionID string, audit *models.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.flows[flow.ID] = cloneFlow(flow)
	r.store.versions[version.ID] = cloneVersion(version)

	if sourceVersionID != "" {
		r.store.copyGraph(sourceVersionID, version.ID)
	}

	r.store.appendAudit(audit)

	return nil
}

func (r *FlowRepository) Purge(_ context.Context, flowID string, audit *models.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	versionIDs := make(map[string]bool)

	for id, version := range r.store.versions {
		if version.FlowID == flowID {
			versionIDs[id] = true
		}
	}

	for id, session := range r.store.sessions {
		if versionIDs[session.FlowVersionID] {
			delete(r.store.steps, id)
			delete(r.store.sessions, id)
		}
	}

	for id, edge := range r.store.edges {
		if versionIDs[edge.FlowVersionID] {
			delete(r.store.edges, id)
		}
	}

	for id, node := range r.store.nodes {
		if versionIDs[node.FlowVersionID] {
			delete(r.store.nodes, id)
		}
	}

	for id := range versionIDs {
		delete(r.store.versions, id)
	}

	delete(r.store.flows, flowID)
	r.store.appendAudit(audit)

	return nil
}

func (r *FlowRepository) Categories(_ context.Context) ([]models.CategoryCount, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	counts := make(map[string]int)

	for _, flow := range r.store.flows {
		if flow.DeletedAt != nil || flow.IsArchived || flow.Category == "" {
			continue
		}

		counts[flow.Category]++
	}

	categories := make([]models.CategoryCount, 0, len(counts))
	for name, count := range counts {
		categories = append(categories, models.CategoryCount{Name: name, Count: count})
	}

	sort.Slice(categories, func(i, j int) bool {
		return categories[i].Name < categories[j].Name
	})

	return categories, nil
}

func (r *FlowRepository) Counts(_ context.Context) (*persistence.FlowCounts, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	counts := &persistence.FlowCounts{}

	for _, flow := range r.store.flows {
		if flow.DeletedAt != nil || flow.IsArchived {
			continue
		}

		counts.Total++

		if flow.IsLive() {
			counts.Live++
		}
	}

	return counts, nil
}

// copyGraph deep-copies one version's nodes and edges into another with
// fresh ids. Callers hold the store lock.
func (s *store) copyGraph(fromVersionID, toVersionID string) {
	idMap := make(map[string]string)

	for _, node := range s.nodes {
		if node.FlowVersionID != fromVersionID {
			continue
		}

		copied := cloneNode(node)
		copied.ID = uuid.New().String()
		copied.FlowVersionID = toVersionID
		idMap[node.ID] = copied.ID
		s.nodes[copied.ID] = copied
	}

	for _, edge := range s.edges {
		if edge.FlowVersionID != fromVersionID {
			continue
		}

		copied := cloneEdge(edge)
		copied.ID = uuid.New().String()
		copied.FlowVersionID = toVersionID
		copied.SourceNodeID = idMap[edge.SourceNodeID]
		copied.TargetNodeID = idMap[edge.TargetNodeID]
		s.edges[copied.ID] = copied
	}
}
