package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/theotor83/utf-rewritten-sub000/common"
	"github.com/theotor83/utf-rewritten-sub000/config"
	"github.com/theotor83/utf-rewritten-sub000/cron"
	"github.com/theotor83/utf-rewritten-sub000/dao"
	"github.com/theotor83/utf-rewritten-sub000/handler"
	"github.com/theotor83/utf-rewritten-sub000/migration"
	"github.com/theotor83/utf-rewritten-sub000/model"
	"github.com/theotor83/utf-rewritten-sub000/publisher"
	"github.com/theotor83/utf-rewritten-sub000/service"
)

func main() {
	config.Load()
	log := common.GetLogger()

	if config.Cfg.SentryDsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: config.Cfg.SentryDsn}); err != nil {
			log.Fatalf("sentry init err: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	/*------------------------------------------------ DB start ------------------------------------------------*/

	if config.Cfg.ExecuteMigration {
		if config.Cfg.DBDialect != model.DialectMySQL {
			log.Fatalf("sql migrations only target mysql, use -migrate for %s", config.Cfg.DBDialect)
		}
		if err := migration.Up(config.Cfg.DBDsn); err != nil {
			log.Fatal(err)
		}
		return
	}

	dbInstance := model.GetInstance()
	dao.StoreInstance = &dao.Store{
		DB:  dbInstance,
		Log: log,
	}

	if config.Cfg.Migrate {
		if err := dao.StoreInstance.Migrate(); err != nil {
			log.Fatal(err)
		}
		return
	}

	/*------------------------------------------------ DB end -------------------------------------------------*/

	// init redis client
	dao.RedisInstance = &dao.Redis{
		Log:         log,
		RedisClient: model.GetRedis(),
	}

	if _, err := dao.StoreInstance.EnsureForum(context.Background(), config.Cfg.ForumName); err != nil {
		log.Fatalf("ensure forum %s err: %v", config.Cfg.ForumName, err)
	}

	var pub publisher.Publisher = &publisher.NopPublisher{Log: log}
	if config.Cfg.EnableKafka && !config.Cfg.Frozen {
		kafkaPub, err := publisher.NewKafkaPublisher(config.Cfg.KafkaHosts, config.Cfg.KafkaTopic, log)
		if err != nil {
			log.Fatalf("new kafka publisher err: %v", err)
		}
		defer kafkaPub.Close()
		pub = kafkaPub
	}

	// init instance
	service.Instance = &service.Service{
		Log: log,
		Pub: pub,
	}
	handler.Instance = handler.New(log)

	// cron
	if config.Cfg.EnableCron && !config.Cfg.Frozen {
		cronInstance := cron.NewCron()
		if err := cronInstance.AddJob("reconcileCounters", config.Cfg.ReconcileCron, cronInstance.ReconcileCounters); err != nil {
			log.Fatal(err)
		}
		cronInstance.Start()
		defer cronInstance.Stop()
	}

	app := handler.Instance.NewApp()
	go func() {
		log.Infof("listening on %s, frozen: %v", config.Cfg.HTTPAddress, config.Cfg.Frozen)
		if err := app.Listen(config.Cfg.HTTPAddress); err != nil {
			log.Fatalf("listen err: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Errorf("shutdown err: %v", err)
	}
}
