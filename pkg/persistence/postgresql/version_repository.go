package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/resolvd/resolvd/pkg/models"
)

const versionColumns = `
	id
  , flow_id
  , version_number
  , status
  , change_notes
  , published_at
  , created_at
`

// VersionRepository handles flow version database operations.
type VersionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewVersionRepository creates a new version repository.
func NewVersionRepository(db *sql.DB, logger *slog.Logger) *VersionRepository {
	return &VersionRepository{db: db, logger: logger}
}

func (r *VersionRepository) GetByID(ctx context.Context, id string) (*models.FlowVersion, error) {
	query := "SELECT " + versionColumns + " FROM flow_versions WHERE id = $1"

	return r.getOne(ctx, query, id)
}

func (r *VersionRepository) GetByFlowAndID(ctx context.Context, flowID, versionID string) (*models.FlowVersion, error) {
	query := "SELECT " + versionColumns + " FROM flow_versions WHERE id = $1 AND flow_id = $2"

	return r.getOne(ctx, query, versionID, flowID)
}

func (r *VersionRepository) ListByFlow(ctx context.Context, flowID string) ([]*models.FlowVersion, error) {
	query := "SELECT " + versionColumns + ` FROM flow_versions
		WHERE flow_id = $1
		ORDER BY version_number DESC`

	rows, err := r.db.QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	versions := make([]*models.FlowVersion, 0)

	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}

		versions = append(versions, version)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}

	return versions, nil
}

func (r *VersionRepository) Create(ctx context.Context, version *models.FlowVersion, cloneFromVersionID string, audit *models.AuditLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = insertVersionTx(ctx, tx, version)
	if err != nil {
		return err
	}

	if cloneFromVersionID != "" {
		err = copyGraphTx(ctx, tx, cloneFromVersionID, version.ID)
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

// Publish persists the published version and repoints the owning flow's
// active version in the same transaction.
func (r *VersionRepository) Publish(ctx context.Context, version *models.FlowVersion, audit *models.AuditLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		UPDATE flow_versions
		SET status = $2, change_notes = $3, published_at = $4
		WHERE id = $1
	`

	_, err = tx.ExecContext(ctx, query, version.ID, version.Status, version.ChangeNotes, version.PublishedAt)
	if err != nil {
		return fmt.Errorf("failed to publish version: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE flows SET active_version_id = $2, updated_at = NOW() WHERE id = $1",
		version.FlowID, version.ID)
	if err != nil {
		return fmt.Errorf("failed to update active version: %w", err)
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

func (r *VersionRepository) getOne(ctx context.Context, query string, args ...any) (*models.FlowVersion, error) {
	row := r.db.QueryRowContext(ctx, query, args...)

	version, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan version: %w", err)
	}

	return version, nil
}

func scanVersion(row rowScanner) (*models.FlowVersion, error) {
	var (
		version     models.FlowVersion
		publishedAt sql.NullTime
	)

	err := row.Scan(
		&version.ID,
		&version.FlowID,
		&version.VersionNumber,
		&version.Status,
		&version.ChangeNotes,
		&publishedAt,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if publishedAt.Valid {
		version.PublishedAt = &publishedAt.Time
	}

	return &version, nil
}

func insertVersionTx(ctx context.Context, tx *sql.Tx, version *models.FlowVersion) error {
	query := `
		INSERT INTO flow_versions (id, flow_id, version_number, status, change_notes, published_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := tx.ExecContext(ctx, query,
		version.ID,
		version.FlowID,
		version.VersionNumber,
		version.Status,
		version.ChangeNotes,
		version.PublishedAt,
		version.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert version: %w", err)
	}

	return nil
}

// copyGraphTx deep-copies one version's nodes and edges into another with
// fresh ids, inside the caller's transaction.
func copyGraphTx(ctx context.Context, tx *sql.Tx, fromVersionID, toVersionID string) error {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM nodes WHERE flow_version_id = $1", fromVersionID)
	if err != nil {
		return fmt.Errorf("failed to query source nodes: %w", err)
	}

	idMap := make(map[string]string)

	for rows.Next() {
		var id string

		err := rows.Scan(&id)
		if err != nil {
			_ = rows.Close()

			return fmt.Errorf("failed to scan node id: %w", err)
		}

		idMap[id] = uuid.New().String()
	}

	err = rows.Err()
	if err != nil {
		_ = rows.Close()

		return fmt.Errorf("error iterating node ids: %w", err)
	}

	_ = rows.Close()

	for oldID, newID := range idMap {
		query := `
			INSERT INTO nodes (id, flow_version_id, node_type, title, body, position_x, position_y, metadata, is_start, created_at)
			SELECT $1, $2, node_type, title, body, position_x, position_y, metadata, is_start, created_at
			FROM nodes WHERE id = $3
		`

		_, err = tx.ExecContext(ctx, query, newID, toVersionID, oldID)
		if err != nil {
			return fmt.Errorf("failed to copy node: %w", err)
		}
	}

	edgeRows, err := tx.QueryContext(ctx,
		"SELECT id, source_node_id, target_node_id FROM edges WHERE flow_version_id = $1", fromVersionID)
	if err != nil {
		return fmt.Errorf("failed to query source edges: %w", err)
	}

	type edgeRef struct {
		id, source, target string
	}

	edges := make([]edgeRef, 0)

	for edgeRows.Next() {
		var ref edgeRef

		err := edgeRows.Scan(&ref.id, &ref.source, &ref.target)
		if err != nil {
			_ = edgeRows.Close()

			return fmt.Errorf("failed to scan edge: %w", err)
		}

		edges = append(edges, ref)
	}

	err = edgeRows.Err()
	if err != nil {
		_ = edgeRows.Close()

		return fmt.Errorf("error iterating edges: %w", err)
	}

	_ = edgeRows.Close()

	for _, ref := range edges {
		query := `
			INSERT INTO edges (id, flow_version_id, source_node_id, target_node_id, condition_label, sort_order)
			SELECT $1, $2, $3, $4, condition_label, sort_order
			FROM edges WHERE id = $5
		`

		_, err = tx.ExecContext(ctx, query,
			uuid.New().String(), toVersionID, idMap[ref.source], idMap[ref.target], ref.id)
		if err != nil {
			return fmt.Errorf("failed to copy edge: %w", err)
		}
	}

	return nil
}
