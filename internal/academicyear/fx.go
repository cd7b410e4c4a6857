package academicyear

import (
	"github.com/smallbiznis/bookledger/internal/academicyear/service"
	"go.uber.org/fx"
)

var Module = fx.Module("academicyear.service",
	fx.Provide(service.NewService),
)
