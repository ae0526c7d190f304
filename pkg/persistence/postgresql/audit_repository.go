package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/resolvd/resolvd/pkg/models"
	"github.com/resolvd/resolvd/pkg/persistence"
)

// AuditRepository handles audit log database operations.
type AuditRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sql.DB, logger *slog.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// Append writes a standalone audit entry outside any transaction.
func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditLog) error {
	payloadJSON, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO audit_logs (id, action, resource_type, resource_id, actor_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		entry.ActorID,
		payloadJSON,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

func (r *AuditRepository) List(ctx context.Context, opts persistence.ListAuditOptions) (*persistence.AuditListResult, error) {
	where := "WHERE 1=1"
	args := []any{}

	if opts.ResourceType != "" {
		args = append(args, opts.ResourceType)
		where += fmt.Sprintf(" AND resource_type = $%d", len(args))
	}

	if opts.ResourceID != "" {
		args = append(args, opts.ResourceID)
		where += fmt.Sprintf(" AND resource_id = $%d", len(args))
	}

	var total int

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs "+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query := `
		SELECT
			id
		  , action
		  , resource_type
		  , resource_id
		  , actor_id
		  , payload
		  , created_at
		FROM audit_logs
	` + where + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)

	args = append(args, opts.Limit, (opts.Page-1)*opts.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.AuditLog, 0)

	for rows.Next() {
		var (
			entry       models.AuditLog
			payloadJSON []byte
		)

		err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.ResourceType,
			&entry.ResourceID,
			&entry.ActorID,
			&payloadJSON,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		if len(payloadJSON) > 0 {
			err = json.Unmarshal(payloadJSON, &entry.Payload)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}

	return &persistence.AuditListResult{Entries: entries, Total: total}, nil
}

// insertAuditTx writes an audit entry inside the caller's transaction so the
// entry commits together with the action it records. A nil entry is a no-op.
func insertAuditTx(ctx context.Context, tx *sql.Tx, entry *models.AuditLog) error {
	if entry == nil {
		return nil
	}

	payloadJSON, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO audit_logs (id, action, resource_type, resource_id, actor_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = tx.ExecContext(ctx, query,
		entry.ID,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		entry.ActorID,
		payloadJSON,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}
