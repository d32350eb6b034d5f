package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/uptownfs/dealflow/internal/engine"
)

const expiryBatchSize = 100

// NewBlockExpiryWorker builds the daily job that expires lapsed approved
// blocks and restores their units' availability.
func NewBlockExpiryWorker(blocks *engine.BlockService, interval time.Duration, logger zerolog.Logger) *Worker {
	return NewWorker("block_expiry", interval, func(ctx context.Context, now time.Time) (int, error) {
		return blocks.ExpireDue(now, expiryBatchSize)
	}, logger)
}

// NewHoldReminderWorker builds the hourly job that reminds the financial
// managers of units still held by active blocks.
func NewHoldReminderWorker(blocks *engine.BlockService, interval time.Duration, logger zerolog.Logger) *Worker {
	return NewWorker("hold_reminder", interval, func(ctx context.Context, now time.Time) (int, error) {
		return blocks.RemindDue(now, expiryBatchSize)
	}, logger)
}
