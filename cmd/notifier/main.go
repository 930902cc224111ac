package main

import (
	"shipyard/internal/common"
	"shipyard/internal/notifier"
	"shipyard/internal/server/dao"
	"shipyard/internal/server/events"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	common.InitConf()
	config := common.GetConfig()
	common.InitLog(config)
	logger := common.GetLogger()
	defer logger.Sync()

	if config.RedisAddr == "" {
		logger.Fatal("REDIS_ADDR is required for the notifier")
	}
	mailer := notifier.NewSMTPMailer(config.SMTPHost, config.SMTPPort, config.SMTPUser, config.SMTPPassword, config.SMTPFrom)
	if !mailer.Enabled() {
		logger.Fatal("SMTP_HOST is required for the notifier")
	}

	db, err := dao.OpenDB(config)
	if err != nil {
		logger.Fatal("open database failed", zap.Error(err))
	}
	n := notifier.New(dao.NewApplicationDao(db), mailer, config.DashboardURL, logger)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: config.RedisAddr, Password: config.RedisPassword},
		asynq.Config{
			Concurrency: 5,
			Queues:      map[string]int{events.NotificationQueue: 1},
			Logger:      logger.Sugar(),
		},
	)
	mux := asynq.NewServeMux()
	n.Register(mux)

	logger.Info("notifier started", zap.String("redis", config.RedisAddr))
	if err := srv.Run(mux); err != nil {
		logger.Fatal("notifier stopped", zap.Error(err))
	}
}
