package service

import (
	"context"
	"time"

	"teamchat/internal/application/entity"
	"teamchat/internal/application/repo"
	"teamchat/pkg/config"

	"go.uber.org/zap"
)

// Relay is the poll loop that feeds reserved outbox rows to delivery
// workers. Reservation pushes each row's next_attempt_at forward by the
// lease, so a crashed worker's rows become visible again on their own.
type Relay struct {
	tx         repo.Transactions
	dispatcher *Dispatcher
	logger     *zap.SugaredLogger
	cfg        *config.Relay
}

func NewRelay(tx repo.Transactions, dispatcher *Dispatcher, logger *zap.SugaredLogger, cfg *config.Relay) *Relay {
	return &Relay{
		tx:         tx,
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

func (r *Relay) Run(ctx context.Context) {
	r.logger.Infow("relay started", "workers", r.cfg.Workers, "batch", r.cfg.BatchSize, "lease", r.cfg.Lease.String())

	jobs := make(chan entity.OutboxEvent, r.cfg.BatchSize*2)

	for i := 0; i < r.cfg.Workers; i++ {
		go r.worker(ctx, i, jobs)
	}

	ticker := time.NewTicker(r.cfg.PollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Infow("relay stopping")
			return
		case <-ticker.C:
			events, err := r.tx.ReserveOutboxBatch(ctx, *r.cfg)
			if err != nil {
				r.logger.Errorw("reserve outbox batch failed", "err", err)
				continue
			}

			r.logger.Debugf("len jobs: %d, len events: %d", len(jobs), len(events))
			for _, e := range events {
				select {
				case jobs <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (r *Relay) worker(ctx context.Context, id int, jobs <-chan entity.OutboxEvent) {
	r.logger.Infow("worker started", "id", id)
	for {
		select {
		case <-ctx.Done():
			r.logger.Infow("worker stopping", "id", id)
			return
		case e := <-jobs:
			r.dispatcher.ProcessOne(ctx, id, e)
		}
	}
}
