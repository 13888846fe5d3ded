package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts wall-clock reads so decision logic can be tested
// against a controlled timeline.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func NewSystemClock() Clock {
	return systemClock{}
}

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
