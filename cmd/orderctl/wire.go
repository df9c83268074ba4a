//go:build wireinject
// +build wireinject

package main

import (
	"order-service/internal/biz"
	"order-service/internal/conf"
	"order-service/internal/data"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp 初始化命令行依赖
func wireApp(*conf.Bootstrap, log.Logger) (*CtlApp, func(), error) {
	panic(wire.Build(
		data.ProviderSet,
		biz.ProviderSet,
		wire.Struct(new(CtlApp), "*"),
	))
}
