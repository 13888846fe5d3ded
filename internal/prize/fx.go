package prize

import (
	"github.com/boothworks/prizebooth/internal/prize/repository"
	"github.com/boothworks/prizebooth/internal/prize/service"
	"go.uber.org/fx"
)

var Module = fx.Module("prize",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
