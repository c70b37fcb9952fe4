package handoff

import (
	"sync"

	"chat-handoff-be/internal/config"
)

// RuntimeConfig makes the orchestrator knobs safely tunable at runtime.
// Components snapshot it with Get at decision points rather than caching it.
type RuntimeConfig struct {
	mu  sync.RWMutex
	cfg config.OrchestratorConfig
}

func NewRuntimeConfig(cfg config.OrchestratorConfig) *RuntimeConfig {
	return &RuntimeConfig{cfg: cfg}
}

func (r *RuntimeConfig) Get() config.OrchestratorConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Apply mutates the config under lock and returns the resulting snapshot.
func (r *RuntimeConfig) Apply(patch func(*config.OrchestratorConfig)) config.OrchestratorConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	patch(&r.cfg)
	return r.cfg
}
