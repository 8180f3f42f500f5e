package rates

import (
	"github.com/tempora-hq/tempora/internal/rates/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rates.service",
	fx.Provide(service.NewResolver),
	fx.Provide(service.NewService),
)
