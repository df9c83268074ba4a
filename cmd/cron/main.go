package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-service/internal/conf"

	"github.com/gaoyong06/go-pkg/logger"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

const defaultSweepSpec = "0 */10 * * * *"

var (
	flagconf string
	flagonce bool
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.BoolVar(&flagonce, "once", false, "run the sweep once and exit")
}

func main() {
	flag.Parse()

	// 初始化配置
	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	// 初始化日志 (使用 go-pkg/logger)
	logConfig := &logger.Config{
		Level:         "info",
		Format:        "json",
		Output:        "stdout",
		FilePath:      "logs/order-cron.log",
		MaxSize:       100,
		MaxAge:        30,
		MaxBackups:    10,
		Compress:      true,
		EnableConsole: true,
	}
	if bc.Log != nil && bc.Log.Level != "" {
		logConfig.Level = bc.Log.Level
	}

	loggerInstance := log.With(logger.NewLogger(logConfig),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", "order-cron",
	)
	logHelper := log.NewHelper(loggerInstance)

	app, cleanup, err := wireApp(&bc, loggerInstance)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	sweep := func() {
		logHelper.Info("[CRON] Starting stale order sweep...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		result, err := app.sweep.SweepStaleOrders(ctx)
		if err != nil {
			logHelper.Errorf("[CRON] Error sweeping stale orders: %v", err)
			return
		}
		logHelper.Infof("[CRON] Sweep completed: cancelled=%d, newly_flagged=%d, overdue_verifies=%d",
			len(result.Cancelled), len(result.FlaggedOverdue), result.OverdueVerifies)
	}

	if flagonce {
		sweep()
		return
	}

	spec := defaultSweepSpec
	if bc.Sweep != nil && bc.Sweep.Spec != "" {
		spec = bc.Sweep.Spec
	}

	// 秒级调度
	cronScheduler := cron.New(cron.WithSeconds())
	if _, err := cronScheduler.AddFunc(spec, sweep); err != nil {
		logHelper.Errorf("Failed to add stale order sweep job: spec=%s, error=%v", spec, err)
		os.Exit(1)
	}

	cronScheduler.Start()
	logHelper.Infof("Cron jobs started: stale order sweep (%s)", spec)

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logHelper.Info("Shutting down gracefully...")

	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		logHelper.Info("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		logHelper.Info("Cron jobs forced to stop after timeout")
	}
}
