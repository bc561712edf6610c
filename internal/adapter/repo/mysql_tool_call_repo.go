package repo

import (
	"context"
	"database/sql"

	"github.com/aq2208/gcart-api/internal/usecase"
)

const defaultListLimit = 50

type MySQLToolCallRepo struct{ db *sql.DB }

func NewMySQLToolCallRepo(db *sql.DB) *MySQLToolCallRepo { return &MySQLToolCallRepo{db: db} }

func (r *MySQLToolCallRepo) Record(ctx context.Context, rec *usecase.ToolCallRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO tool_calls (id,session_id,tool,args_json,status,duration_ms,created_at)
VALUES (?,?,?,?,?,?,?)
`, rec.ID, rec.SessionID, rec.Tool, rec.ArgsJSON, rec.Status, rec.DurationMs, rec.CreatedAt)
	return err
}

// ListBySession returns the newest calls first.
func (r *MySQLToolCallRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]usecase.ToolCallRecord, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id,session_id,tool,args_json,status,duration_ms,created_at
FROM tool_calls WHERE session_id=?
ORDER BY created_at DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []usecase.ToolCallRecord
	for rows.Next() {
		var rec usecase.ToolCallRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Tool, &rec.ArgsJSON, &rec.Status, &rec.DurationMs, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ usecase.ToolCallRepo = (*MySQLToolCallRepo)(nil)
