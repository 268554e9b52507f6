package cron

import (
	"context"

	use_cases "teamchat/internal/application/use-cases"

	"go.uber.org/zap"
)

// OutboxStatsJob refreshes the per-status outbox gauges so dashboards can
// watch the pending backlog and terminal-failure growth.
type OutboxStatsJob struct {
	usecase use_cases.UseCaser
	logger  *zap.SugaredLogger
}

func NewOutboxStatsJob(usecase use_cases.UseCaser, logger *zap.SugaredLogger) *OutboxStatsJob {
	return &OutboxStatsJob{
		usecase: usecase,
		logger:  logger,
	}
}

func (j *OutboxStatsJob) Run(ctx context.Context) {
	j.logger.Debug("outbox stats sweep started")

	defer func() {
		if r := recover(); r != nil {
			j.logger.Errorf("panic in outbox stats sweep: %v", r)
		}
	}()

	j.usecase.SweepOutboxStats(ctx)
	j.logger.Debug("outbox stats sweep completed")
}
