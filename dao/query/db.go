package query

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
	"k8s.io/klog/v2"

	"github.com/raids-lab/cobrew/pkg/config"
)

var (
	once     sync.Once
	instance *gorm.DB
)

// GetDB returns the singleton instance of the database connection.
func GetDB() *gorm.DB {
	once.Do(func() {
		var err error
		instance, err = Open(config.GetConfig())
		if err != nil {
			panic(err)
		}
		klog.Info("Postgres init success!")
	})
	return instance
}

// DSN builds the connection string of the primary database.
func DSN(conf *config.Config) string {
	pg := conf.Postgres
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		pg.Host, pg.User, pg.Password, pg.DBName, pg.Port, pg.SSLMode, pg.TimeZone)
}

// Open connects to the primary and registers the configured read replicas.
// Plain reads outside a transaction go to a replica; writes and
// transactions stay on the primary.
func Open(conf *config.Config) (*gorm.DB, error) {
	gormConf := &gorm.Config{
		// surfaces unique violations as gorm.ErrDuplicatedKey
		TranslateError: true,
	}
	if !config.IsDebugMode() {
		gormConf.Logger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(postgres.Open(DSN(conf)), gormConf)
	if err != nil {
		return nil, err
	}

	if len(conf.Postgres.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(conf.Postgres.Replicas))
		for _, dsn := range conf.Postgres.Replicas {
			replicas = append(replicas, postgres.Open(dsn))
		}
		err = db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		}).
			SetMaxIdleConns(conf.Postgres.MaxIdleConns).
			SetMaxOpenConns(conf.Postgres.MaxOpenConns).
			SetConnMaxLifetime(time.Hour))
		if err != nil {
			return nil, err
		}
		klog.Infof("registered %d read replicas", len(replicas))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(conf.Postgres.MaxIdleConns)
	sqlDB.SetMaxOpenConns(conf.Postgres.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}
