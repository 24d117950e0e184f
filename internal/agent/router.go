package agent

import (
	"context"
	"fmt"
	"sync"
)

// Agent is anything that can execute a RunRequest. *Loop is the only
// implementation; the interface exists so Router and the scheduler/cron
// callers don't need to import providers/tools just to hold a handle.
type Agent interface {
	Run(ctx context.Context, req RunRequest) (*RunResult, error)
}

// ResolverFunc builds (or returns a cached) Agent for an agent key. In
// standalone mode there is exactly one configured agent per key, built once
// from config.json at startup — there is no per-request DB lookup.
type ResolverFunc func(agentKey string) (Agent, error)

type agentEntry struct {
	agent Agent
}

// Router caches resolved agents by key so repeated lookups (one per inbound
// message) don't re-run the resolver. Safe for concurrent use.
type Router struct {
	mu      sync.RWMutex
	agents  map[string]*agentEntry
	resolve ResolverFunc
}

// NewRouter builds a Router backed by resolve. resolve is called once per
// distinct agentKey until InvalidateAgent/InvalidateAll is called, except that
// concurrent first lookups of one key may each call it (the first stored wins).
func NewRouter(resolve ResolverFunc) *Router {
	return &Router{
		agents:  make(map[string]*agentEntry),
		resolve: resolve,
	}
}

// Resolve returns the Agent for agentKey, building it via the resolver on
// first use and caching the result.
func (r *Router) Resolve(agentKey string) (Agent, error) {
	r.mu.RLock()
	if e, ok := r.agents[agentKey]; ok {
		r.mu.RUnlock()
		return e.agent, nil
	}
	r.mu.RUnlock()

	if r.resolve == nil {
		return nil, fmt.Errorf("agent %q: no resolver configured", agentKey)
	}
	ag, err := r.resolve(agentKey)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.agents[agentKey]; ok {
		return e.agent, nil
	}
	r.agents[agentKey] = &agentEntry{agent: ag}
	return ag, nil
}

// InvalidateAgent removes an agent from the cache, forcing re-resolution on
// next Resolve (e.g. after a config reload changes that agent's settings).
func (r *Router) InvalidateAgent(agentKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, agentKey)
}

// InvalidateAll clears the entire cache (e.g. full config reload).
func (r *Router) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = make(map[string]*agentEntry)
}
