package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/resolvd/resolvd/pkg/models"
	"github.com/resolvd/resolvd/pkg/persistence"
)

const flowColumns = `
	id
  , name
  , description
  , category
  , tags
  , active_version_id
  , is_archived
  , created_at
  , updated_at
  , deleted_at
`

// FlowRepository handles flow-related database operations.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

func (r *FlowRepository) List(ctx context.Context, opts persistence.ListFlowsOptions) (*persistence.FlowListResult, error) {
	where := "WHERE deleted_at IS NULL AND is_archived = FALSE"
	args := []any{}

	if opts.Search != "" {
		args = append(args, "%"+opts.Search+"%")
		where += fmt.Sprintf(" AND (name ILIKE $%d OR description ILIKE $%d)", len(args), len(args))
	}

	if opts.Category != "" {
		args = append(args, opts.Category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}

	switch opts.Status {
	case "live":
		where += " AND active_version_id IS NOT NULL"
	case "draft":
		where += " AND active_version_id IS NULL"
	}

	var total int

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM flows "+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count flows: %w", err)
	}

	orderBy := "ORDER BY created_at DESC"

	switch opts.Sort {
	case "oldest":
		orderBy = "ORDER BY created_at ASC"
	case "name":
		orderBy = "ORDER BY LOWER(name) ASC"
	}

	query := "SELECT " + flowColumns + " FROM flows " + where +
		fmt.Sprintf(" %s LIMIT $%d OFFSET $%d", orderBy, len(args)+1, len(args)+2)

	args = append(args, opts.Limit, (opts.Page-1)*opts.Limit)

	flows, err := r.queryFlows(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return &persistence.FlowListResult{Flows: flows, Total: total}, nil
}

func (r *FlowRepository) ListArchived(ctx context.Context) ([]*models.Flow, error) {
	query := "SELECT " + flowColumns + ` FROM flows
		WHERE deleted_at IS NULL AND is_archived = TRUE
		ORDER BY updated_at DESC`

	return r.queryFlows(ctx, query)
}

func (r *FlowRepository) GetByID(ctx context.Context, id string) (*models.Flow, error) {
	query := "SELECT " + flowColumns + " FROM flows WHERE id = $1 AND deleted_at IS NULL"

	row := r.db.QueryRowContext(ctx, query, id)

	flow, err := scanFlow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan flow: %w", err)
	}

	return flow, nil
}

func (r *FlowRepository) Save(ctx context.Context, flow *models.Flow, audit *models.AuditLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = upsertFlowTx(ctx, tx, flow)
	if err != nil {
		return err
	}

	err = insertAuditTx(ctx, tx, audit)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *FlowRepository) CreateWithVersion(ctx context.Context, flow *models.Flow, version *models.FlowVersion, sourceVersionID string, audit *models.AuditLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = upsertFlowTx(ctx, tx, flow)
	if err != nil {
		return err
	}

	err = insertVersionTx(ctx, tx, version)
	if err != nil {
		return err
	}

	if sourceVersionID != "" {
		err = copyGraphTx(ctx, tx, sourceVersionID, version.ID)
		if err != nil {
			return err
		}
	}

	err = insertAuditTx(ctx, tx, audit)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Purge hard-deletes the flow and its dependents in referential order:
// steps, sessions, edges, nodes, versions, then the flow row itself.
func (r *FlowRepository) Purge(ctx context.Context, flowID string, audit *models.AuditLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	deletes := []string{
		`DELETE FROM session_steps WHERE session_id IN (
			SELECT s.id FROM sessions s
			JOIN flow_versions v ON v.id = s.flow_version_id
			WHERE v.flow_id = $1)`,
		`DELETE FROM sessions WHERE flow_version_id IN (
			SELECT id FROM flow_versions WHERE flow_id = $1)`,
		`DELETE FROM edges WHERE flow_version_id IN (
			SELECT id FROM flow_versions WHERE flow_id = $1)`,
		`DELETE FROM nodes WHERE flow_version_id IN (
			SELECT id FROM flow_versions WHERE flow_id = $1)`,
		`UPDATE flows SET active_version_id = NULL WHERE id = $1`,
		`DELETE FROM flow_versions WHERE flow_id = $1`,
		`DELETE FROM flows WHERE id = $1`,
	}

	for _, query := range deletes {
		_, err = tx.ExecContext(ctx, query, flowID)
		if err != nil {
			return fmt.Errorf("failed to purge flow: %w", err)
		}
	}

	err = insertAuditTx(ctx, tx, audit)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *FlowRepository) Categories(ctx context.Context) ([]models.CategoryCount, error) {
	query := `
		SELECT category, COUNT(*)
		FROM flows
		WHERE deleted_at IS NULL AND is_archived = FALSE AND category <> ''
		GROUP BY category
		ORDER BY category
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	categories := make([]models.CategoryCount, 0)

	for rows.Next() {
		var category models.CategoryCount

		err := rows.Scan(&category.Name, &category.Count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}

		categories = append(categories, category)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

func (r *FlowRepository) Counts(ctx context.Context) (*persistence.FlowCounts, error) {
	query := `
		SELECT COUNT(*), COUNT(active_version_id)
		FROM flows
		WHERE deleted_at IS NULL AND is_archived = FALSE
	`

	counts := &persistence.FlowCounts{}

	err := r.db.QueryRowContext(ctx, query).Scan(&counts.Total, &counts.Live)
	if err != nil {
		return nil, fmt.Errorf("failed to count flows: %w", err)
	}

	return counts, nil
}

func (r *FlowRepository) queryFlows(ctx context.Context, query string, args ...any) ([]*models.Flow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	flows := make([]*models.Flow, 0)

	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		flows = append(flows, flow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlow(row rowScanner) (*models.Flow, error) {
	var (
		flow            models.Flow
		tagsJSON        []byte
		activeVersionID sql.NullString
		deletedAt       sql.NullTime
	)

	err := row.Scan(
		&flow.ID,
		&flow.Name,
		&flow.Description,
		&flow.Category,
		&tagsJSON,
		&activeVersionID,
		&flow.IsArchived,
		&flow.CreatedAt,
		&flow.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	flow.Tags = []string{}

	if len(tagsJSON) > 0 {
		err = json.Unmarshal(tagsJSON, &flow.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}

	if activeVersionID.Valid {
		flow.ActiveVersionID = &activeVersionID.String
	}

	if deletedAt.Valid {
		flow.DeletedAt = &deletedAt.Time
	}

	return &flow, nil
}

func upsertFlowTx(ctx context.Context, tx *sql.Tx, flow *models.Flow) error {
	tagsJSON, err := json.Marshal(flow.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
		INSERT INTO flows (id, name, description, category, tags, active_version_id, is_archived, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			tags = EXCLUDED.tags,
			active_version_id = EXCLUDED.active_version_id,
			is_archived = EXCLUDED.is_archived,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
	`

	_, err = tx.ExecContext(ctx, query,
		flow.ID,
		flow.Name,
		flow.Description,
		flow.Category,
		tagsJSON,
		flow.ActiveVersionID,
		flow.IsArchived,
		flow.CreatedAt,
		flow.UpdatedAt,
		flow.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save flow: %w", err)
	}

	return nil
}
