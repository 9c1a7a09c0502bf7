package model

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/theotor83/utf-rewritten-sub000/common"
	"github.com/theotor83/utf-rewritten-sub000/config"
)

const (
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// OpenDB connects to dsn with the driver matching dialect.
// All timestamps are written and compared in UTC.
func OpenDB(dialect, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dialect {
	case DialectMySQL:
		dialector = mysql.Open(dsn)
	case DialectPostgres:
		dialector = postgres.Open(dsn)
	case DialectSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("[model] unknown db dialect: %q", dialect)
	}

	instance, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
		Logger:                                   NewGormLogger(common.GetLogger()),
	})
	if err != nil {
		return nil, err
	}

	if dialect == DialectSQLite {
		// one writer at a time, and the in-memory database lives on a single connection
		db, err := instance.DB()
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
	}

	return instance, nil
}

// NewGormLogger reports slow queries and failures through w. A missing row is an expected
// outcome (a topic without poll, an unknown id) and is not logged.
func NewGormLogger(w logger.Writer) logger.Interface {
	return logger.New(w, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func GetInstance() *gorm.DB {
	log := common.GetLogger()

	dsn := config.Cfg.DBDsn
	if len(dsn) == 0 {
		log.Fatal("[model] dsn is null")
	}
	instance, err := OpenDB(config.Cfg.DBDialect, dsn)
	if err != nil {
		log.Fatalf("[model] open db err: %v", err)
	}

	if config.Cfg.Debug {
		instance = instance.Debug()
	}

	if config.Cfg.DBDialect == DialectSQLite {
		return instance
	}

	db, _ := instance.DB()
	db.SetMaxIdleConns(config.Cfg.DBMaxIdleConns)
	db.SetMaxOpenConns(config.Cfg.DBMaxOpenConns)
	log.Infof("dialect: %s, maxIdleConns: %d, maxOpenConns: %d",
		config.Cfg.DBDialect, config.Cfg.DBMaxIdleConns, config.Cfg.DBMaxOpenConns)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		for {
			<-ticker.C
			stats := db.Stats()
			log.Printf("[dbconn_stats] idle: %d, inuse: %d, maxIdleClosed: %d, maxLifetimeClosed: %d, maxOpenConnections: %d, openConnections: %d, waitCount: %d, waitDuration: %dms", stats.Idle, stats.InUse, stats.MaxIdleClosed, stats.MaxLifetimeClosed, stats.MaxOpenConnections,
				stats.OpenConnections, stats.WaitCount, stats.WaitDuration.Milliseconds())
		}
	}()

	return instance
}
