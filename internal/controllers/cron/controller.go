package cron

import (
	"context"
	"fmt"

	use_cases "teamchat/internal/application/use-cases"
	"teamchat/pkg/config"

	"go.uber.org/zap"
)

type Controller struct {
	scheduler *Scheduler
	logger    *zap.SugaredLogger
}

func NewController(ctx context.Context, logger *zap.SugaredLogger) *Controller {
	return &Controller{
		scheduler: NewScheduler(ctx),
		logger:    logger,
	}
}

// RegisterOutboxStatsJob schedules the gauge sweep. Schedule (cron format)
// wins over Interval ("@every ..."); with neither set the sweep runs every
// minute.
func (c *Controller) RegisterOutboxStatsJob(usecase use_cases.UseCaser, conf config.Cron) error {
	job := NewOutboxStatsJob(usecase, c.logger)

	var spec string
	switch {
	case conf.Schedule != "":
		spec = conf.Schedule
	case conf.Interval != "":
		spec = conf.Interval
	default:
		spec = "@every 1m"
		c.logger.Warnf("cron schedule not set, using default: %s", spec)
	}

	entryID, err := c.scheduler.Add(spec, job)
	if err != nil {
		return fmt.Errorf("register outbox stats job: %w", err)
	}

	c.logger.Infof("outbox stats job registered, entry: %d, spec: %s", entryID, spec)
	return nil
}

func (c *Controller) Start() {
	c.logger.Info("starting cron scheduler")
	c.scheduler.Start()
}

func (c *Controller) Stop() {
	c.logger.Info("stopping cron scheduler")
	c.scheduler.Stop()
	c.logger.Info("cron scheduler stopped")
}
