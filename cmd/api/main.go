package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/campuseats/meal-gateway/internal/config"
	"github.com/campuseats/meal-gateway/internal/events"
	"github.com/campuseats/meal-gateway/internal/handlers"
	"github.com/campuseats/meal-gateway/internal/repository"
	"github.com/campuseats/meal-gateway/internal/services"
	xhttp "github.com/campuseats/meal-gateway/pkg/http"
	"github.com/campuseats/meal-gateway/pkg/logger"
	"github.com/campuseats/meal-gateway/pkg/pg"
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

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}
	db.SetTxTimeout(config.Get().StoreTxTimeout)

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

	receiptStream, err := events.NewStream(redisAdap, events.StreamConfig{
		Name:          config.Get().ReceiptStreamName,
		ConsumerGroup: config.Get().ReceiptConsumerGroup,
		MaxLen:        config.Get().ReceiptStreamMaxLen,
	})
	if err != nil {
		logger.Error("failed creating receipt stream", "error", err)
		return
	}

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
	if config.Get().AppDebugMetricsAddr != "" {
		go func() {
			prom.ListenAndServer(config.Get().AppDebugMetricsAddr, config.Get().AppDebugMetricsURI)
		}()
	}

	bookingRepo := repository.NewBookingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	mealRepo := repository.NewMealRepository(db)
	metricRepo := repository.NewMetricRepository(db)

	// services
	bookingService := services.NewBookingService(bookingRepo, paymentRepo, studentRepo, transactionRepo, mealRepo, metricRepo, receiptStream)
	studentService := services.NewStudentService(studentRepo, paymentRepo, transactionRepo, metricRepo)
	metricsService := services.NewMetricsService(metricRepo, studentRepo)
	healthService := services.NewHealthService()

	// v1 handlers
	bookingHandler := handlers.NewBookingHandler(bookingService)
	studentHandler := handlers.NewStudentHandler(studentService)
	metricsHandler := handlers.NewMetricsHandler(metricsService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterBookingRoutes(g, bookingHandler)
	handlers.RegisterStudentRoutes(g, studentHandler)
	handlers.RegisterMetricsRoutes(g, metricsHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
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
