// Package tracking propagates task progress to subscribers: log output,
// database persistence for the status API, and a cooldown wrapper that
// throttles noisy bulk operations.
package tracking

import (
	"context"

	"github.com/shopvec/shopvec/domain/task"
)

// Reporter defines the interface for progress reporting modules.
// Implementations receive notifications when task status changes.
type Reporter interface {
	// OnChange is called when a task status changes.
	OnChange(ctx context.Context, status task.Status) error
}
