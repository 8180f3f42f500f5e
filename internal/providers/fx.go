package providers

import (
	"github.com/tempora-hq/tempora/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	fx.Provide(pdf.New),
)
