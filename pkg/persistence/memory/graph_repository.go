package memory

import (
	"context"
	"sort"

	"github.com/resolvd/resolvd/pkg/models"
	"github.com/resolvd/resolvd/pkg/persistence"
)

// GraphRepository implements persistence.GraphRepository in memory.
type GraphRepository struct {
	store *store
}

func (r *GraphRepository) GetNodes(_ context.Context, versionID string) ([]*models.Node, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	nodes := make([]*models.Node, 0)

	for _, node := range r.store.nodes {
		if node.FlowVersionID == versionID {
			nodes = append(nodes, cloneNode(node))
		}
	}

	sort.Slice(nodes, func(i, j int) bool {
		if !nodes[i].CreatedAt.Equal(nodes[j].CreatedAt) {
			return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
		}

		return nodes[i].ID < nodes[j].ID
	})

	return nodes, nil
}

func (r *GraphRepository) GetEdges(_ context.Context, versionID string) ([]*models.Edge, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	edges := make([]*models.Edge, 0)

	for _, edge := range r.store.edges {
		if edge.FlowVersionID == versionID {
			edges = append(edges, cloneEdge(edge))
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].SortOrder != edges[j].SortOrder {
			return edges[i].SortOrder < edges[j].SortOrder
		}

		return edges[i].ID < edges[j].ID
	})

	return edges, nil
}

func (r *GraphRepository) GetNode(_ context.Context, versionID, nodeID string) (*models.Node, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	node, ok := r.store.nodes[nodeID]
	if !ok || node.FlowVersionID != versionID {
		return nil, nil
	}

	return cloneNode(node), nil
}

func (r *GraphRepository) GetStartNode(_ context.Context, versionID string) (*models.Node, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, node := range r.store.nodes {
		if node.FlowVersionID == versionID && node.IsStart {
			return cloneNode(node), nil
		}
	}

	return nil, nil
}

func (r *GraphRepository) SaveNode(_ context.Context, node *models.Node) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if node.IsStart {
		for _, other := range r.store.nodes {
			if other.FlowVersionID == node.FlowVersionID && other.ID != node.ID {
				other.IsStart = false
			}
		}
	}

	r.store.nodes[node.ID] = cloneNode(node)

	return nil
}

func (r *GraphRepository) DeleteNode(_ context.Context, versionID, nodeID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	node, ok := r.store.nodes[nodeID]
	if !ok || node.FlowVersionID != versionID {
		return persistence.ErrNodeNotFound
	}

	for id, edge := range r.store.edges {
		if edge.SourceNodeID == nodeID || edge.TargetNodeID == nodeID {
			delete(r.store.edges, id)
		}
	}

	delete(r.store.nodes, nodeID)

	return nil
}

func (r *GraphRepository) UpdatePositions(_ context.Context, versionID string, positions []persistence.NodePosition) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	updated := 0

	for _, pos := range positions {
		node, ok := r.store.nodes[pos.ID]
		if !ok || node.FlowVersionID != versionID {
			continue
		}

		node.Position = models.Position{X: pos.X, Y: pos.Y}
		updated++
	}

	return updated, nil
}

func (r *GraphRepository) GetEdge(_ context.Context, versionID, edgeID string) (*models.Edge, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	edge, ok := r.store.edges[edgeID]
	if !ok || edge.FlowVersionID != versionID {
		return nil, nil
	}

	return cloneEdge(edge), nil
}

func (r *GraphRepository) SaveEdge(_ context.Context, edge *models.Edge) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, other := range r.store.edges {
		if other.ID != edge.ID &&
			other.FlowVersionID == edge.FlowVersionID &&
			other.SourceNodeID == edge.SourceNodeID &&
			other.TargetNodeID == edge.TargetNodeID &&
			other.ConditionLabel == edge.ConditionLabel {
			return persistence.ErrDuplicateEdge
		}
	}

	r.store.edges[edge.ID] = cloneEdge(edge)

	return nil
}

func (r *GraphRepository) UpdateEdge(_ context.Context, edge *models.Edge) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.edges[edge.ID]; !ok {
		return persistence.ErrEdgeNotFound
	}

	r.store.edges[edge.ID] = cloneEdge(edge)

	return nil
}

func (r *GraphRepository) DeleteEdge(_ context.Context, versionID, edgeID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	edge, ok := r.store.edges[edgeID]
	if !ok || edge.FlowVersionID != versionID {
		return persistence.ErrEdgeNotFound
	}

	delete(r.store.edges, edgeID)

	return nil
}

func (r *GraphRepository) ReplaceGraph(_ context.Context, versionID string, nodes []*models.Node, edges []*models.Edge, audit *models.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for id, edge := range r.store.edges {
		if edge.FlowVersionID == versionID {
			delete(r.store.edges, id)
		}
	}

	for id, node := range r.store.nodes {
		if node.FlowVersionID == versionID {
			delete(r.store.nodes, id)
		}
	}

	for _, node := range nodes {
		r.store.nodes[node.ID] = cloneNode(node)
	}

	for _, edge := range edges {
		r.store.edges[edge.ID] = cloneEdge(edge)
	}

	r.store.appendAudit(audit)

	return nil
}
