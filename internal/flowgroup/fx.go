package flowgroup

import (
	"github.com/smallbiznis/bookledger/internal/flowgroup/service"
	"go.uber.org/fx"
)

var Module = fx.Module("flowgroup.service",
	fx.Provide(service.NewService),
)
