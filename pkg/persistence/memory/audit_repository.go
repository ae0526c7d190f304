package memory

import (
	"context"
	"sort"

	"github.com/resolvd/resolvd/pkg/models"
	"github.com/resolvd/resolvd/pkg/persistence"
)

// AuditRepository implements persistence.AuditRepository in memory.
type AuditRepository struct {
	store *store
}

func (r *AuditRepository) Append(_ context.Context, entry *models.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.appendAudit(entry)

	return nil
}

func (r *AuditRepository) List(_ context.Context, opts persistence.ListAuditOptions) (*persistence.AuditListResult, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	matched := make([]*models.AuditLog, 0, len(r.store.audits))

	for _, entry := range r.store.audits {
		if opts.ResourceType != "" && entry.ResourceType != opts.ResourceType {
			continue
		}

		if opts.ResourceID != "" && entry.ResourceID != opts.ResourceID {
			continue
		}

		matched = append(matched, cloneAudit(entry))
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)

	return &persistence.AuditListResult{
		Entries: paginate(matched, opts.Page, opts.Limit),
		Total:   total,
	}, nil
}
