package port

import (
	"context"

	"dupcheck/internal/domain"
)

// RunNotifier delivers the summary of a finished check run.
type RunNotifier interface {
	SendRunSummary(ctx context.Context, run *domain.CheckRun) error
}
