package reporting

import (
	"github.com/tempora-hq/tempora/internal/reporting/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reporting.service",
	fx.Provide(service.NewService),
)
