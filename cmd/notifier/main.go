package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/campuseats/meal-gateway/internal/config"
	"github.com/campuseats/meal-gateway/internal/events"
	"github.com/campuseats/meal-gateway/internal/notifier"
	"github.com/campuseats/meal-gateway/pkg/logger"
	"github.com/campuseats/meal-gateway/pkg/prom"
	"github.com/campuseats/meal-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	client, err := notifier.NewClient(&notifier.ClientConfig{
		BaseURL:    config.Get().ProviderBaseURL,
		Timeout:    time.Second * 5,
		MaxRetries: 3,
		RetryDelay: time.Millisecond * 200,
		MaxConns:   1000,
	})
	if err != nil {
		logger.Error("failed to create provider client", "error", err)
		return
	}

	idempotencyService := notifier.NewIdempotencyService(redisAdap, notifier.DefaultIdempotencyConfig())

	consumerName := config.Get().ReceiptConsumerName
	if consumerName == "" {
		consumerName, _ = os.Hostname()
	}

	dispatcher := notifier.NewDispatcher(redisAdap, client, idempotencyService, notifier.DispatcherConfig{
		Stream: events.StreamConfig{
			Name:          config.Get().ReceiptStreamName,
			ConsumerGroup: config.Get().ReceiptConsumerGroup,
			ConsumerName:  consumerName,
			MaxLen:        config.Get().ReceiptStreamMaxLen,
		},
		Consumers: config.Get().NotifierConsumers,
		Workers:   config.Get().NotifierWorkers,
	})

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	if err := dispatcher.Start(); err != nil {
		logger.Error("failed to start dispatcher", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case <-c:
		dispatcher.Stop()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
