package repo

import (
	"context"
	"database/sql"

	"github.com/aq2208/gcart-api/internal/usecase"
)

type MySQLCartEventRepo struct{ db *sql.DB }

func NewMySQLCartEventRepo(db *sql.DB) *MySQLCartEventRepo { return &MySQLCartEventRepo{db: db} }

// Insert is idempotent on event_id so redelivered kafka messages are harmless.
func (r *MySQLCartEventRepo) Insert(ctx context.Context, ev usecase.CartEventMsg) error {
	_, err := r.db.ExecContext(ctx, `
INSERT IGNORE INTO cart_events (event_id,session_id,tool,lines_count,units,subtotal,total,discount_code,occurred_at)
VALUES (?,?,?,?,?,?,?,?,?)
`, ev.EventID, ev.SessionID, ev.Tool, ev.Lines, ev.Units, ev.Subtotal, ev.Total, nullable(ev.DiscountCode), ev.OccurredAt)
	return err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ usecase.CartEventRepo = (*MySQLCartEventRepo)(nil)
