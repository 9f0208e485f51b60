package driving

import (
	"context"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

// Scheduler runs background ingestion on a schedule.
type Scheduler interface {
	// Start begins running scheduled tasks.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the scheduler and waits for running tasks.
	Stop() error

	// Tasks returns the state of every registered task.
	Tasks() []domain.ScheduledTask
}
