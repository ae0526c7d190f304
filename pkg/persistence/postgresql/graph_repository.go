package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/resolvd/resolvd/pkg/models"
	"github.com/resolvd/resolvd/pkg/persistence"
)

const nodeColumns = `
	id
  , flow_version_id
  , node_type
  , title
  , body
  , position_x
  , position_y
  , metadata
  , is_start
  , created_at
`

const edgeColumns = `
	id
  , flow_version_id
  , source_node_id
  , target_node_id
  , condition_label
  , sort_order
`

// GraphRepository handles node and edge database operations.
type GraphRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewGraphRepository creates a new graph repository.
func NewGraphRepository(db *sql.DB, logger *slog.Logger) *GraphRepository {
	return &GraphRepository{db: db, logger: logger}
}

func (r *GraphRepository) GetNodes(ctx context.Context, versionID string) ([]*models.Node, error) {
	query := "SELECT " + nodeColumns + ` FROM nodes
		WHERE flow_version_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	nodes := make([]*models.Node, 0)

	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}

		nodes = append(nodes, node)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	return nodes, nil
}

func (r *GraphRepository) GetEdges(ctx context.Context, versionID string) ([]*models.Edge, error) {
	query := "SELECT " + edgeColumns + ` FROM edges
		WHERE flow_version_id = $1
		ORDER BY sort_order, id`

	rows, err := r.db.QueryContext(ctx, query, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	edges := make([]*models.Edge, 0)

	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}

		edges = append(edges, edge)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return edges, nil
}

func (r *GraphRepository) GetNode(ctx context.Context, versionID, nodeID string) (*models.Node, error) {
	query := "SELECT " + nodeColumns + " FROM nodes WHERE id = $1 AND flow_version_id = $2"

	node, err := scanNode(r.db.QueryRowContext(ctx, query, nodeID, versionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan node: %w", err)
	}

	return node, nil
}

func (r *GraphRepository) GetStartNode(ctx context.Context, versionID string) (*models.Node, error) {
	query := "SELECT " + nodeColumns + " FROM nodes WHERE flow_version_id = $1 AND is_start LIMIT 1"

	node, err := scanNode(r.db.QueryRowContext(ctx, query, versionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan start node: %w", err)
	}

	return node, nil
}

func (r *GraphRepository) SaveNode(ctx context.Context, node *models.Node) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if node.IsStart {
		_, err = tx.ExecContext(ctx,
			"UPDATE nodes SET is_start = FALSE WHERE flow_version_id = $1 AND id <> $2",
			node.FlowVersionID, node.ID)
		if err != nil {
			return fmt.Errorf("failed to clear start flags: %w", err)
		}
	}

	err = insertNodeTx(ctx, tx, node)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *GraphRepository) DeleteNode(ctx context.Context, versionID, nodeID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM edges WHERE flow_version_id = $1 AND (source_node_id = $2 OR target_node_id = $2)",
		versionID, nodeID)
	if err != nil {
		return fmt.Errorf("failed to delete node edges: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		"DELETE FROM nodes WHERE id = $1 AND flow_version_id = $2", nodeID, versionID)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		err = persistence.ErrNodeNotFound

		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *GraphRepository) UpdatePositions(ctx context.Context, versionID string, positions []persistence.NodePosition) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	updated := 0

	for _, pos := range positions {
		result, execErr := tx.ExecContext(ctx,
			"UPDATE nodes SET position_x = $3, position_y = $4 WHERE id = $1 AND flow_version_id = $2",
			pos.ID, versionID, pos.X, pos.Y)
		if execErr != nil {
			err = fmt.Errorf("failed to update position: %w", execErr)

			return 0, err
		}

		affected, affErr := result.RowsAffected()
		if affErr != nil {
			err = fmt.Errorf("failed to check update result: %w", affErr)

			return 0, err
		}

		updated += int(affected)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return updated, nil
}

func (r *GraphRepository) GetEdge(ctx context.Context, versionID, edgeID string) (*models.Edge, error) {
	query := "SELECT " + edgeColumns + " FROM edges WHERE id = $1 AND flow_version_id = $2"

	edge, err := scanEdge(r.db.QueryRowContext(ctx, query, edgeID, versionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan edge: %w", err)
	}

	return edge, nil
}

func (r *GraphRepository) SaveEdge(ctx context.Context, edge *models.Edge) error {
	query := `
		INSERT INTO edges (id, flow_version_id, source_node_id, target_node_id, condition_label, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		edge.ID,
		edge.FlowVersionID,
		edge.SourceNodeID,
		edge.TargetNodeID,
		edge.ConditionLabel,
		edge.SortOrder,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return persistence.ErrDuplicateEdge
		}

		return fmt.Errorf("failed to insert edge: %w", err)
	}

	return nil
}

func (r *GraphRepository) UpdateEdge(ctx context.Context, edge *models.Edge) error {
	query := `
		UPDATE edges
		SET condition_label = $3, sort_order = $4
		WHERE id = $1 AND flow_version_id = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		edge.ID, edge.FlowVersionID, edge.ConditionLabel, edge.SortOrder)
	if err != nil {
		return fmt.Errorf("failed to update edge: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrEdgeNotFound
	}

	return nil
}

func (r *GraphRepository) DeleteEdge(ctx context.Context, versionID, edgeID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM edges WHERE id = $1 AND flow_version_id = $2", edgeID, versionID)
	if err != nil {
		return fmt.Errorf("failed to delete edge: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrEdgeNotFound
	}

	return nil
}

func (r *GraphRepository) ReplaceGraph(ctx context.Context, versionID string, nodes []*models.Node, edges []*models.Edge, audit *models.AuditLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, "DELETE FROM edges WHERE flow_version_id = $1", versionID)
	if err != nil {
		return fmt.Errorf("failed to delete edges: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM nodes WHERE flow_version_id = $1", versionID)
	if err != nil {
		return fmt.Errorf("failed to delete nodes: %w", err)
	}

	for _, node := range nodes {
		err = insertNodeTx(ctx, tx, node)
		if err != nil {
			return err
		}
	}

	for _, edge := range edges {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO edges (id, flow_version_id, source_node_id, target_node_id, condition_label, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			edge.ID,
			edge.FlowVersionID,
			edge.SourceNodeID,
			edge.TargetNodeID,
			edge.ConditionLabel,
			edge.SortOrder,
		)
		if err != nil {
			return fmt.Errorf("failed to insert edge: %w", err)
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

func scanNode(row rowScanner) (*models.Node, error) {
	var (
		node     models.Node
		metadata []byte
	)

	err := row.Scan(
		&node.ID,
		&node.FlowVersionID,
		&node.Type,
		&node.Title,
		&node.Body,
		&node.Position.X,
		&node.Position.Y,
		&metadata,
		&node.IsStart,
		&node.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		err = json.Unmarshal(metadata, &node.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal node metadata: %w", err)
		}
	}

	return &node, nil
}

func scanEdge(row rowScanner) (*models.Edge, error) {
	var edge models.Edge

	err := row.Scan(
		&edge.ID,
		&edge.FlowVersionID,
		&edge.SourceNodeID,
		&edge.TargetNodeID,
		&edge.ConditionLabel,
		&edge.SortOrder,
	)
	if err != nil {
		return nil, err
	}

	return &edge, nil
}

func insertNodeTx(ctx context.Context, tx *sql.Tx, node *models.Node) error {
	metadata, err := json.Marshal(node.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal node metadata: %w", err)
	}

	query := `
		INSERT INTO nodes (id, flow_version_id, node_type, title, body, position_x, position_y, metadata, is_start, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			node_type = EXCLUDED.node_type,
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			position_x = EXCLUDED.position_x,
			position_y = EXCLUDED.position_y,
			metadata = EXCLUDED.metadata,
			is_start = EXCLUDED.is_start
	`

	_, err = tx.ExecContext(ctx, query,
		node.ID,
		node.FlowVersionID,
		node.Type,
		node.Title,
		node.Body,
		node.Position.X,
		node.Position.Y,
		metadata,
		node.IsStart,
		node.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert node: %w", err)
	}

	return nil
}
