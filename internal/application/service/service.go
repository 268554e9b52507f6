package service

import (
	"context"
	"fmt"

	"teamchat/internal/application/repo"
	"teamchat/internal/transport/producer"
	"teamchat/pkg/cache"

	"go.uber.org/zap"
)

// Service bundles the delivery-core services behind one wiring point for
// controllers.
type Service struct {
	Dispatcher *Dispatcher
	Relay      *Relay
	Notifier   *Notifier
	Presence   *Presence
	Audit      *Audit

	repo     repo.Repo
	producer producer.Producer
	cache    cache.Cache
	logger   *zap.SugaredLogger
}

func NewService(
	dispatcher *Dispatcher,
	relay *Relay,
	notifier *Notifier,
	presence *Presence,
	audit *Audit,
	repo repo.Repo,
	producer producer.Producer,
	cache cache.Cache,
	logger *zap.SugaredLogger,
) *Service {
	return &Service{
		Dispatcher: dispatcher,
		Relay:      relay,
		Notifier:   notifier,
		Presence:   presence,
		Audit:      audit,
		repo:       repo,
		producer:   producer,
		cache:      cache,
		logger:     logger,
	}
}

// HealthCheck probes the three backends. The combined error is non-nil only
// when every probe failed; partial degradation comes back in the flags.
func (s *Service) HealthCheck(ctx context.Context) (dbHealthy, kafkaHealthy, redisHealthy bool, err error) {
	dbErr := s.repo.HealthCheck(ctx)
	dbHealthy = dbErr == nil

	kafkaErr := s.producer.HealthCheck(ctx)
	kafkaHealthy = kafkaErr == nil

	redisErr := s.cache.HealthCheck(ctx)
	redisHealthy = redisErr == nil

	if !dbHealthy && !kafkaHealthy && !redisHealthy {
		return dbHealthy, kafkaHealthy, redisHealthy, fmt.Errorf("database: %v, kafka: %v, redis: %v", dbErr, kafkaErr, redisErr)
	}

	return dbHealthy, kafkaHealthy, redisHealthy, nil
}
