package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"shipyard/internal/common"
	"shipyard/internal/server/dao"
	"shipyard/internal/server/engine"
	"shipyard/internal/server/events"
	"shipyard/internal/server/handler"
	"shipyard/internal/server/metrics"
	"shipyard/internal/server/model"
	"shipyard/internal/server/scheduler"
	"shipyard/internal/server/stats"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	common.InitConf()
	config := common.GetConfig()
	common.InitLog(config)
	logger := common.GetLogger()
	defer logger.Sync()

	if config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := dao.OpenDB(config)
	if err != nil {
		logger.Fatal("open database failed", zap.String("driver", config.DBDriver), zap.Error(err))
	}
	policy, err := model.LoadStagePolicy(config.PolicyPath)
	if err != nil {
		logger.Fatal("load stage policy failed", zap.String("path", config.PolicyPath), zap.Error(err))
	}
	apps := dao.NewApplicationDao(db)
	pipelines := dao.NewPipelineDao(db)

	hub := events.NewHub(logger, config.CORSOrigins)
	bus := events.NewBus(events.NewLogPublisher(logger), hub, metrics.NewPublisher())

	var reminders *scheduler.ReminderService
	if config.RedisAddr != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: config.RedisAddr, Password: config.RedisPassword})
		defer client.Close()
		queuePublisher := events.NewQueuePublisher(client)
		bus.Add(queuePublisher)

		if config.ReminderSpec != "" {
			reminders = scheduler.NewReminderService(pipelines, queuePublisher, config.ReminderSpec, config.ReminderAfter, logger)
			if err := reminders.Start(); err != nil {
				logger.Fatal("start approval reminders failed", zap.Error(err))
			}
		}
	} else {
		logger.Info("REDIS_ADDR not set, notifications disabled")
	}

	orchestrator := engine.NewOrchestrator(apps, pipelines, engine.Options{
		Logger:       logger,
		Publisher:    bus,
		Runner:       engine.NewSimulatedRunner(config.StageDelay, config.StageFailureRate, time.Now().UnixNano()),
		Policy:       policy,
		StageTimeout: config.StageTimeout,
	})

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	if waiting, err := orchestrator.PendingApprovals(startCtx); err == nil {
		metrics.SetWaitingApproval(len(waiting))
	}
	if _, err := orchestrator.RecoverInFlight(startCtx); err != nil {
		logger.Error("recover in-flight pipelines failed", zap.Error(err))
	}
	cancelStart()

	h := handler.New(handler.Deps{
		Apps:          apps,
		Orchestrator:  orchestrator,
		Stats:         stats.NewAggregator(apps, pipelines, nil),
		Hub:           hub,
		WebhookSecret: config.WebhookSecret,
		Logger:        logger,
	})
	srv := &http.Server{
		Addr:              config.HTTPAddr,
		Handler:           handler.NewRouter(h, config),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		var err error
		if config.CertPath != "" && config.KeyPath != "" {
			logger.Info("server listening with tls", zap.String("addr", config.HTTPAddr))
			err = srv.ListenAndServeTLS(config.CertPath, config.KeyPath)
		} else {
			logger.Info("server listening", zap.String("addr", config.HTTPAddr))
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	if reminders != nil {
		reminders.Stop()
	}
	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown timed out", zap.Error(err))
	}
}
