package repo

import (
	"context"

	"teamchat/internal/application/entity"
	"teamchat/pkg/config"

	"go.uber.org/zap"
)

type Transactions interface {
	// DispatchEvent persists the outbox row and its audit entry atomically:
	// either both survive a crash or neither does.
	DispatchEvent(ctx context.Context, evt *entity.OutboxEvent, audit *entity.AuditLog) error
	ReserveOutboxBatch(ctx context.Context, c config.Relay) ([]entity.OutboxEvent, error)
}

type TransactionsImpl struct {
	repo   *RepoImpl
	logger *zap.SugaredLogger
}

func NewTransactions(repo *RepoImpl, logger *zap.SugaredLogger) *TransactionsImpl {
	return &TransactionsImpl{repo: repo, logger: logger}
}

func (t *TransactionsImpl) DispatchEvent(ctx context.Context, evt *entity.OutboxEvent, audit *entity.AuditLog) error {
	if len(evt.Payload) == 0 {
		t.logger.Warnf("[app: %s] empty payload for outbox", evt.AppID)
	}

	return t.repo.db.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := t.repo.InsertOutbox(ctx, evt); err != nil {
			t.logger.Errorf("[app: %s] insert outbox failed: %v", evt.AppID, err)
			return err
		}

		if err := t.repo.InsertAudit(ctx, audit); err != nil {
			t.logger.Errorf("[app: %s] insert audit failed: %v", evt.AppID, err)
			return err
		}

		return nil
	})
}

func (t *TransactionsImpl) ReserveOutboxBatch(ctx context.Context, c config.Relay) ([]entity.OutboxEvent, error) {
	var events []entity.OutboxEvent
	err := t.repo.db.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		events, err = t.repo.ReserveOutboxBatch(txCtx, c.Lease, c.BatchSize, c.MaxAttempts)
		return err
	})
	if err != nil {
		t.logger.Errorw("reserve outbox batch failed", "err", err)
		return nil, err
	}
	return events, nil
}
