package statement

import (
	"github.com/smallbiznis/bookledger/internal/statement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("statement.service",
	fx.Provide(service.NewService),
)
