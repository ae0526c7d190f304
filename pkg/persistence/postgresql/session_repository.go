package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/resolvd/resolvd/pkg/models"
	"github.com/resolvd/resolvd/pkg/persistence"
)

const sessionColumns = `
	id
  , flow_version_id
  , ticket_id
  , agent_id
  , agent_name
  , status
  , current_node_id
  , path_taken
  , final_node_id
  , resolution_type
  , feedback_rating
  , feedback_note
  , started_at
  , completed_at
  , duration_seconds
`

// SessionRepository handles session and session step database operations.
type SessionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sql.DB, logger *slog.Logger) *SessionRepository {
	return &SessionRepository{db: db, logger: logger}
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions WHERE id = $1"

	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	return session, nil
}

func (r *SessionRepository) List(ctx context.Context, opts persistence.ListSessionsOptions) (*persistence.SessionListResult, error) {
	where := "WHERE 1=1"
	args := []any{}

	if opts.VersionIDs != nil {
		args = append(args, pq.Array(opts.VersionIDs))
		where += fmt.Sprintf(" AND flow_version_id = ANY($%d)", len(args))
	}

	if opts.Status != "" {
		args = append(args, opts.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	if opts.TicketID != "" {
		args = append(args, "%"+opts.TicketID+"%")
		where += fmt.Sprintf(" AND ticket_id ILIKE $%d", len(args))
	}

	var total int

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions "+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}

	args = append(args, opts.Limit, (opts.Page-1)*opts.Limit)
	query := "SELECT " + sessionColumns + " FROM sessions " + where +
		fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	sessions, err := r.querySessions(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return &persistence.SessionListResult{Sessions: sessions, Total: total}, nil
}

func (r *SessionRepository) ListByVersionIDs(ctx context.Context, versionIDs []string) ([]*models.Session, error) {
	query := "SELECT " + sessionColumns + ` FROM sessions
		WHERE flow_version_id = ANY($1)
		ORDER BY started_at DESC`

	return r.querySessions(ctx, query, pq.Array(versionIDs))
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	return r.upsert(ctx, r.db, session)
}

func (r *SessionRepository) Save(ctx context.Context, session *models.Session) error {
	return r.upsert(ctx, r.db, session)
}

func (r *SessionRepository) Advance(ctx context.Context, session *models.Session, step *models.SessionStep) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = r.upsert(ctx, tx, session)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO session_steps (id, session_id, node_id, edge_id, answer_label, step_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = tx.ExecContext(ctx, query,
		step.ID,
		step.SessionID,
		step.NodeID,
		step.EdgeID,
		step.AnswerLabel,
		step.StepNumber,
		step.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert step: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *SessionRepository) Rewind(ctx context.Context, session *models.Session) error {
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
		DELETE FROM session_steps
		WHERE session_id = $1
		  AND step_number = (SELECT MAX(step_number) FROM session_steps WHERE session_id = $1)
	`

	_, err = tx.ExecContext(ctx, query, session.ID)
	if err != nil {
		return fmt.Errorf("failed to delete last step: %w", err)
	}

	err = r.upsert(ctx, tx, session)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *SessionRepository) Reset(ctx context.Context, session *models.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, "DELETE FROM session_steps WHERE session_id = $1", session.ID)
	if err != nil {
		return fmt.Errorf("failed to delete steps: %w", err)
	}

	err = r.upsert(ctx, tx, session)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *SessionRepository) Steps(ctx context.Context, sessionID string) ([]*models.SessionStep, error) {
	query := `
		SELECT id, session_id, node_id, edge_id, answer_label, step_number, created_at
		FROM session_steps
		WHERE session_id = $1
		ORDER BY step_number
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	steps := make([]*models.SessionStep, 0)

	for rows.Next() {
		var step models.SessionStep

		err := rows.Scan(
			&step.ID,
			&step.SessionID,
			&step.NodeID,
			&step.EdgeID,
			&step.AnswerLabel,
			&step.StepNumber,
			&step.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}

		steps = append(steps, &step)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}

	return steps, nil
}

func (r *SessionRepository) Overview(ctx context.Context) (*persistence.SessionOverview, error) {
	query := `
		SELECT
			COUNT(*)
		  , COUNT(*) FILTER (WHERE status = 'completed')
		  , COUNT(*) FILTER (WHERE resolution_type = 'escalated')
		  , AVG(duration_seconds) FILTER (WHERE status = 'completed')
		  , AVG(feedback_rating)
		FROM sessions
	`

	var (
		overview    persistence.SessionOverview
		avgDuration sql.NullFloat64
		avgRating   sql.NullFloat64
	)

	err := r.db.QueryRowContext(ctx, query).Scan(
		&overview.Total,
		&overview.Completed,
		&overview.Escalated,
		&avgDuration,
		&avgRating,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query session overview: %w", err)
	}

	if avgDuration.Valid {
		overview.AvgDurationSeconds = &avgDuration.Float64
	}

	if avgRating.Valid {
		overview.AvgRating = &avgRating.Float64
	}

	return &overview, nil
}

func (r *SessionRepository) PerDay(ctx context.Context, since time.Time) ([]persistence.DayCount, error) {
	query := `
		SELECT to_char(started_at, 'YYYY-MM-DD'), COUNT(*)
		FROM sessions
		WHERE started_at >= $1
		GROUP BY 1
		ORDER BY 1
	`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions per day: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	counts := make([]persistence.DayCount, 0)

	for rows.Next() {
		var count persistence.DayCount

		err := rows.Scan(&count.Date, &count.Count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan day count: %w", err)
		}

		counts = append(counts, count)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating day counts: %w", err)
	}

	return counts, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SessionRepository) upsert(ctx context.Context, db execer, session *models.Session) error {
	path, err := json.Marshal(session.PathTaken)
	if err != nil {
		return fmt.Errorf("failed to marshal path: %w", err)
	}

	query := `
		INSERT INTO sessions (` + strings.TrimSpace(sessionColumns) + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_node_id = EXCLUDED.current_node_id,
			path_taken = EXCLUDED.path_taken,
			final_node_id = EXCLUDED.final_node_id,
			resolution_type = EXCLUDED.resolution_type,
			feedback_rating = EXCLUDED.feedback_rating,
			feedback_note = EXCLUDED.feedback_note,
			completed_at = EXCLUDED.completed_at,
			duration_seconds = EXCLUDED.duration_seconds
	`

	result, err := db.ExecContext(ctx, query,
		session.ID,
		session.FlowVersionID,
		session.TicketID,
		session.AgentID,
		session.AgentName,
		session.Status,
		session.CurrentNodeID,
		path,
		session.FinalNodeID,
		session.ResolutionType,
		session.FeedbackRating,
		session.FeedbackNote,
		session.StartedAt,
		session.CompletedAt,
		session.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	_, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check save result: %w", err)
	}

	return nil
}

func (r *SessionRepository) querySessions(ctx context.Context, query string, args ...any) ([]*models.Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	sessions := make([]*models.Session, 0)

	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		sessions = append(sessions, session)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		session     models.Session
		path        []byte
		finalNode   sql.NullString
		resolution  sql.NullString
		rating      sql.NullInt64
		note        sql.NullString
		completedAt sql.NullTime
		duration    sql.NullInt64
	)

	err := row.Scan(
		&session.ID,
		&session.FlowVersionID,
		&session.TicketID,
		&session.AgentID,
		&session.AgentName,
		&session.Status,
		&session.CurrentNodeID,
		&path,
		&finalNode,
		&resolution,
		&rating,
		&note,
		&session.StartedAt,
		&completedAt,
		&duration,
	)
	if err != nil {
		return nil, err
	}

	if len(path) > 0 {
		err = json.Unmarshal(path, &session.PathTaken)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal path: %w", err)
		}
	}

	if finalNode.Valid {
		session.FinalNodeID = &finalNode.String
	}

	if resolution.Valid {
		resolutionType := models.ResolutionType(resolution.String)
		session.ResolutionType = &resolutionType
	}

	if rating.Valid {
		value := int(rating.Int64)
		session.FeedbackRating = &value
	}

	if note.Valid {
		session.FeedbackNote = &note.String
	}

	if completedAt.Valid {
		session.CompletedAt = &completedAt.Time
	}

	if duration.Valid {
		value := int(duration.Int64)
		session.DurationSeconds = &value
	}

	return &session, nil
}
