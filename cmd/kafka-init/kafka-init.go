package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Gorev/internal/obs"
	"github.com/NordCoder/Gorev/internal/repository/kafka"
)

func main() {
	brokers := strings.Split(env("KAFKA_BROKERS", "kafka:9092"), ",")
	topics := strings.Split(env("KAFKA_TOPICS", kafka.TopicNotificationsCreated), ",")
	partitions := envInt("KAFKA_PARTITIONS", 3)
	rf := envInt("KAFKA_RF", 1)

	l, err := obs.NewLogger(obs.LogConfig{Level: env("LOG_LEVEL", "info"), App: "gorev/kafka-init"})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if err := kafka.EnsureTopic(ctx, brokers, kafka.TopicSpec{
			Name:              t,
			NumPartitions:     partitions,
			ReplicationFactor: rf,
			MaxWait:           30 * time.Second,
		}, l); err != nil {
			l.Fatal("ensure topic", zap.String("topic", t), zap.Error(err))
		}
	}
	l.Info("kafka-init ok", zap.Strings("topics", topics))
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, _ := strconv.Atoi(v); n > 0 {
			return n
		}
	}
	return def
}
