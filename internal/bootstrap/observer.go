package bootstrap

import (
	"time"

	"github.com/aq2208/gcart-api/internal/usecase"
	"go.uber.org/zap"
)

// zapObserver logs one line per tool call; the MCP binary has no metrics endpoint.
type zapObserver struct {
	log *zap.Logger
}

func (o zapObserver) ObserveToolCall(tool string, status usecase.Status, d time.Duration) {
	o.log.Info("tool call",
		zap.String("tool", tool),
		zap.String("status", string(status)),
		zap.Duration("duration", d))
}
