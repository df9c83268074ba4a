package main

import (
	"fmt"
	"os"

	"order-service/internal/biz"
	"order-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"
)

// CtlApp 命令行工具依赖
type CtlApp struct {
	orders     *biz.OrderUseCase
	reconciler *biz.Reconciler
	sweep      *biz.SweepUseCase
}

// loadApp 读取配置并装配依赖；日志只输出 warn 以上到 stderr
func loadApp(cmd *cobra.Command) (*CtlApp, func(), error) {
	path, _ := cmd.Flags().GetString("conf")
	bc, err := conf.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		return nil, nil, fmt.Errorf("data.database.source is required")
	}
	// 命令行同步发送通知，避免进程退出时丢失
	if bc.Notify != nil {
		bc.Notify.Async = false
	}
	logger := log.NewFilter(
		log.With(log.NewStdLogger(os.Stderr), "ts", log.DefaultTimestamp, "service.name", "orderctl"),
		log.FilterLevel(log.LevelWarn),
	)
	return wireApp(bc, logger)
}

func operator(cmd *cobra.Command) (string, error) {
	op, _ := cmd.Flags().GetString("operator")
	if op == "" {
		return "", fmt.Errorf("--operator is required")
	}
	return op, nil
}
