package main

import "order-service/internal/biz"

// CronApp Cron 应用结构
type CronApp struct {
	sweep *biz.SweepUseCase
}
