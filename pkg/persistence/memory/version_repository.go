package memory

import (
	"context"
	"sort"

	"github.com/resolvd/resolvd/pkg/models"
)

// VersionRepository implements persistence.VersionRepository in memory.
type VersionRepository struct {
	store *store
}

func (r *VersionRepository) GetByID(_ context.Context, id string) (*models.FlowVersion, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	version, ok := r.store.versions[id]
	if !ok {
		return nil, nil
	}

	return cloneVersion(version), nil
}

func (r *VersionRepository) GetByFlowAndID(_ context.Context, flowID, versionID string) (*models.FlowVersion, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	version, ok := r.store.versions[versionID]
	if !ok || version.FlowID != flowID {
		return nil, nil
	}

	return cloneVersion(version), nil
}

func (r *VersionRepository) ListByFlow(_ context.Context, flowID string) ([]*models.FlowVersion, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	versions := make([]*models.FlowVersion, 0)

	for _, version := range r.store.versions {
		if version.FlowID == flowID {
			versions = append(versions, cloneVersion(version))
		}
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].VersionNumber > versions[j].VersionNumber
	})

	return versions, nil
}

func (r *VersionRepository) Create(_ context.Context, version *models.FlowVersion, cloneFromVersionID string, audit *models.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.versions[version.ID] = cloneVersion(version)

	if cloneFromVersionID != "" {
		r.store.copyGraph(cloneFromVersionID, version.ID)
	}

	r.store.appendAudit(audit)

	return nil
}

func (r *VersionRepository) Publish(_ context.Context, version *models.FlowVersion, audit *models.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.versions[version.ID] = cloneVersion(version)

	if flow, ok := r.store.flows[version.FlowID]; ok {
		id := version.ID
		flow.ActiveVersionID = &id
	}

	r.store.appendAudit(audit)

	return nil
}
