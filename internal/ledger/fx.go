package ledger

import (
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/bookledger/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(
		newValidator,
		service.NewService,
	),
)

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}
