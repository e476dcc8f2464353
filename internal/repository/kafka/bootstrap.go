package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BootstrapConsumer makes sure the topic exists before joining the group.
// Topic creation failures are logged and the consumer is still returned.
func BootstrapConsumer(ctx context.Context, cfg *ConsumerConfig, partitions int, logger *zap.Logger) *Consumer {
	if err := EnsureTopic(ctx, cfg.Brokers, TopicSpec{
		Name:              cfg.Topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
		MaxWait:           5 * time.Second,
	}, logger); err != nil {
		logger.Warn("ensure topic failed", zap.String("topic", cfg.Topic), zap.Error(err))
	}
	return NewConsumer(cfg)
}
