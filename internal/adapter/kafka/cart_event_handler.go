package kafka

import (
	"context"

	"github.com/aq2208/gcart-api/internal/logging"
	"github.com/aq2208/gcart-api/internal/usecase"
)

// CartEventHandler projects cart events into the audit table and the summary cache.
type CartEventHandler struct {
	Repo    usecase.CartEventRepo
	Cache   usecase.CartSummaryCache          // optional
	Observe func(direction string, err error) // optional
}

func NewCartEventHandler(repo usecase.CartEventRepo, cache usecase.CartSummaryCache) *CartEventHandler {
	return &CartEventHandler{Repo: repo, Cache: cache}
}

func (h *CartEventHandler) Handle(ctx context.Context, ev usecase.CartEventMsg) error {
	err := h.Repo.Insert(ctx, ev)
	if h.Observe != nil {
		h.Observe("in", err)
	}
	if err != nil {
		return err
	}

	// Cache best-effort
	if h.Cache != nil {
		if err := h.Cache.SetSummary(ctx, ev); err != nil {
			logging.FromCtx(ctx).Warn("summary cache write failed", "session_id", ev.SessionID, "err", err)
		}
	}
	return nil
}
