package directory

import (
	"github.com/tempora-hq/tempora/internal/directory/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("directory",
	fx.Provide(repository.NewDirectory),
)
