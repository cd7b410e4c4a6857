package idempotency

import (
	"github.com/smallbiznis/bookledger/internal/idempotency/service"
	"go.uber.org/fx"
)

var Module = fx.Module("idempotency.service",
	fx.Provide(service.NewService),
)
