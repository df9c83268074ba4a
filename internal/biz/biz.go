package biz

import "github.com/google/wire"

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewPaymentConfig,
	NewInventoryAdjuster,
	NewNotifier,
	NewOrderUseCase,
	NewReconciler,
	NewSweepUseCase,
)
