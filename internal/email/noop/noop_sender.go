package noop

import (
	"context"

	"go.uber.org/zap"

	"dupcheck/internal/domain"
	"dupcheck/internal/email"
	"dupcheck/internal/port"
)

type noopSender struct {
	logger *zap.Logger
}

// NewNoopSender creates a RunNotifier that only logs the summary.
func NewNoopSender(logger *zap.Logger) port.RunNotifier {
	return &noopSender{logger: logger}
}

func (s *noopSender) SendRunSummary(_ context.Context, run *domain.CheckRun) error {
	s.logger.Debug("run summary not sent, email provider is noop",
		zap.String("subject", email.Subject(run)),
		zap.String("run_id", run.ID.String()),
	)
	return nil
}
