package data

import (
	"context"
	"fmt"
	"time"

	"order-service/internal/conf"
	"order-service/internal/data/model"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"github.com/google/wire"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewDB,
	NewRedis,
	NewRedsync,
	NewProducer,
	NewData,
	NewOrderRepo,
	NewInventoryRepo,
	NewAddressRepo,
	NewUnmatchedPaymentRepo,
	NewOrderLocker,
	NewGatewayClient,
	NewNotificationQueue,
	NewInvoiceRenderer,
	NewMailer,
	NewNotificationDispatcher,
)

// Data 数据层结构体
type Data struct {
	db    *gorm.DB
	rdb   *redis.Client     // 未配置时为 nil
	mq    rocketmq.Producer // 未启用时为 nil
	topic string
}

// NewDB 创建数据库连接
func NewDB(c *conf.Bootstrap) (*gorm.DB, error) {
	if c.Data == nil || c.Data.Database == nil {
		return nil, fmt.Errorf("database config is nil")
	}
	dc := c.Data.Database

	var dialector gorm.Dialector
	switch dc.Driver {
	case "", "mysql":
		dialector = mysql.Open(dc.Source)
	case "postgres":
		dialector = postgres.Open(dc.Source)
	case "sqlite":
		dialector = sqlite.Open(dc.Source)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", dc.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if dc.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dc.MaxIdleConns)
	}
	if dc.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dc.MaxOpenConns)
	}
	if d := conf.MustDuration(dc.ConnMaxLifetime, 0); d > 0 {
		sqlDB.SetConnMaxLifetime(d)
	}

	if dc.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Migrate 建表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Order{},
		&model.CatalogItem{},
		&model.Address{},
		&model.UnmatchedPayment{},
	)
}

// NewRedis 创建 Redis 连接，未配置地址时返回 nil（不启用分布式锁）
func NewRedis(c *conf.Bootstrap) (*redis.Client, error) {
	if c.Data == nil || c.Data.Redis == nil || c.Data.Redis.Addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         c.Data.Redis.Addr,
		Password:     c.Data.Redis.Password,
		DB:           int(c.Data.Redis.Db),
		ReadTimeout:  conf.MustDuration(c.Data.Redis.ReadTimeout, 0),
		WriteTimeout: conf.MustDuration(c.Data.Redis.WriteTimeout, 0),
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// NewRedsync 创建 redsync 实例
func NewRedsync(rdb *redis.Client) *redsync.Redsync {
	if rdb == nil {
		return nil
	}
	return redsync.New(goredis.NewPool(rdb))
}

// NewProducer 创建通知事件生产者，未启用时返回 nil
func NewProducer(c *conf.Bootstrap, logger log.Logger) (rocketmq.Producer, error) {
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		return nil, nil
	}
	mc := c.Data.Rocketmq
	p, err := rocketmq.NewProducer(
		producer.WithNsResolver(primitive.NewPassthroughResolver(mc.NameServers)),
		producer.WithGroupName(mc.GroupName),
		producer.WithRetry(int(mc.RetryTimes)),
	)
	if err != nil {
		return nil, err
	}
	if err := p.Start(); err != nil {
		return nil, err
	}
	log.NewHelper(logger).Infof("rocketmq producer started: topic=%s", mc.Topic)
	return p, nil
}

// NewData 创建数据层实例
func NewData(c *conf.Bootstrap, logger log.Logger, db *gorm.DB, rdb *redis.Client, mq rocketmq.Producer) (*Data, func(), error) {
	helper := log.NewHelper(logger)
	cleanup := func() {
		helper.Info("closing the data resources")
		if mq != nil {
			if err := mq.Shutdown(); err != nil {
				helper.Errorf("failed to shutdown rocketmq producer: %v", err)
			}
		}
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				helper.Errorf("failed to close redis: %v", err)
			}
		}
	}

	d := &Data{
		db:  db,
		rdb: rdb,
		mq:  mq,
	}
	if c.Data != nil && c.Data.Rocketmq != nil {
		d.topic = c.Data.Rocketmq.Topic
	}
	return d, cleanup, nil
}
