package usecase

import (
	"context"
	"time"

	domain "github.com/aq2208/gcart-api/internal/entity"
)

type SessionStore interface {
	Load(ctx context.Context, id string) (*domain.Session, bool, error)
	Save(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, id string) (bool, error)
}

// Persistence shape of one tool invocation (kept out of domain).
type ToolCallRecord struct {
	ID, SessionID, Tool, ArgsJSON, Status string
	DurationMs                            int64
	CreatedAt                             time.Time
}

type ToolCallRepo interface {
	Record(ctx context.Context, rec *ToolCallRecord) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]ToolCallRecord, error)
}

type EventPublisher interface {
	PublishCartEvent(ctx context.Context, ev CartEventMsg) error
}

type CartEventRepo interface {
	Insert(ctx context.Context, ev CartEventMsg) error
}

type CartSummaryCache interface {
	SetSummary(ctx context.Context, ev CartEventMsg) error
	GetSummary(ctx context.Context, sessionID string) (*CartEventMsg, bool, error)
}

// CallObserver receives one observation per finished tool call.
type CallObserver interface {
	ObserveToolCall(tool string, status Status, d time.Duration)
}

// IdempotencyStore grants a key once per scope until it expires or is released.
type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
}

type InboundQueue interface {
	PublishInbound(ctx context.Context, msg InboundMsg) error
}

type AgentBackend interface {
	Ask(ctx context.Context, text, userID, sessionID string) (string, error)
}

type Messenger interface {
	SendText(ctx context.Context, to, text string) error
	MarkRead(ctx context.Context, messageID string) error
	SendTyping(ctx context.Context, to string, on bool) error
}
