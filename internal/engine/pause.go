package engine

import (
	"sync"

	"go.uber.org/zap"
)

// PauseController is the ACTIVE <-> PAUSED toggle. The decision path
// only reads it; transitions come from the admin surface or from
// voucher exhaustion inside the engine. The notifier slot has exactly
// one consumer, so a plain callback is enough — no event bus.
type PauseController struct {
	mu       sync.RWMutex
	paused   bool
	reason   string
	notifier func(reason string)
	log      *zap.Logger
}

func NewPauseController(log *zap.Logger) *PauseController {
	return &PauseController{log: log.Named("pause")}
}

// SetNotifier installs the external pause sink. Must be called before
// the engine starts deciding.
func (p *PauseController) SetNotifier(fn func(reason string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifier = fn
}

func (p *PauseController) IsPaused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

func (p *PauseController) Reason() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.reason
}

// Pause transitions to PAUSED and fires the notifier once per
// transition; pausing an already-paused controller is a no-op.
func (p *PauseController) Pause(reason string) {
	p.mu.Lock()
	if p.paused {
		p.mu.Unlock()
		return
	}
	p.paused = true
	p.reason = reason
	notifier := p.notifier
	p.mu.Unlock()

	p.log.Warn("paused", zap.String("reason", reason))
	if notifier != nil {
		notifier(reason)
	}
}

func (p *PauseController) Resume() {
	p.mu.Lock()
	p.paused = false
	p.reason = ""
	p.mu.Unlock()
	p.log.Info("resumed")
}
