package timesheet

import (
	"github.com/tempora-hq/tempora/internal/timesheet/service"
	"go.uber.org/fx"
)

var Module = fx.Module("timesheet.service",
	fx.Provide(service.NewService),
)
