package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Handler runs one registered hook against an event. It may return a revised
// HookContext (used only by modifying-strategy hooks).
type Handler func(ctx context.Context, hctx HookContext, cfg HookConfig) (HookContext, error)

// Registration pairs a hook's config with the code that implements it.
type Registration struct {
	Config HookConfig
	Handle Handler
}

// Evaluator backs a HookConfig.Type for one-off gate evaluation
// (EvaluateSingleHook) rather than full event dispatch.
type Evaluator func(ctx context.Context, cfg HookConfig, hctx HookContext) (HookResult, error)

// Engine is the gateway's hook pipeline: a per-event registry dispatched by
// strategy (spec §4.8), plus a side table of named evaluators used for
// single-shot gate checks such as delegation quality gates.
type Engine struct {
	mu         sync.RWMutex
	registry   map[string][]Registration
	evaluators map[string]Evaluator
}

// NewEngine builds an Engine with the built-in "command" and "contains"
// evaluators registered.
func NewEngine() *Engine {
	e := &Engine{
		registry:   make(map[string][]Registration),
		evaluators: make(map[string]Evaluator),
	}
	e.RegisterEvaluator("command", evalCommand)
	e.RegisterEvaluator("contains", evalContains)
	return e
}

// Register adds a hook to an event's dispatch list, keeping the list sorted
// by ascending priority (spec §4.8: modifying hooks apply in priority order).
func (e *Engine) Register(reg Registration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	list := append(e.registry[reg.Config.Event], reg)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Config.Priority < list[j].Config.Priority })
	e.registry[reg.Config.Event] = list
}

// RegisterEvaluator installs (or replaces) the evaluator used for a
// HookConfig.Type value.
func (e *Engine) RegisterEvaluator(typ string, fn Evaluator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evaluators[typ] = fn
}

// Dispatch runs every enabled hook registered for event, honoring each hook's
// strategy (or the event's default). Void hooks fire concurrently and are
// waited on but never block the returned HookContext; modifying hooks run
// serially and may rewrite it; sync hooks run serially and can abort the
// event if BlockOnFailure and they error.
func (e *Engine) Dispatch(ctx context.Context, event string, hctx HookContext) (HookContext, error) {
	if SkipHooksFromContext(ctx) {
		return hctx, nil
	}

	e.mu.RLock()
	regs := append([]Registration(nil), e.registry[event]...)
	e.mu.RUnlock()

	var wg sync.WaitGroup
	for _, reg := range regs {
		if !reg.Config.Enabled {
			continue
		}
		strategy := reg.Config.Strategy
		if strategy == "" {
			strategy = DefaultStrategyFor(event)
		}

		switch strategy {
		case StrategyVoid:
			wg.Add(1)
			go func(reg Registration, hctx HookContext) {
				defer wg.Done()
				if _, err := reg.Handle(ctx, hctx, reg.Config); err != nil {
					slog.Warn("hooks: void hook failed", "event", event, "hook", reg.Config.Name, "error", err)
				}
			}(reg, hctx)

		case StrategyModifying:
			next, err := reg.Handle(ctx, hctx, reg.Config)
			if err != nil {
				slog.Warn("hooks: modifying hook failed", "event", event, "hook", reg.Config.Name, "error", err)
				continue
			}
			hctx = next

		case StrategySync:
			if _, err := reg.Handle(ctx, hctx, reg.Config); err != nil {
				if reg.Config.BlockOnFailure {
					wg.Wait()
					return hctx, fmt.Errorf("hook %q blocked %s: %w", reg.Config.Name, event, err)
				}
				slog.Warn("hooks: sync hook failed", "event", event, "hook", reg.Config.Name, "error", err)
			}
		}
	}
	wg.Wait()
	return hctx, nil
}

// EvaluateSingleHook runs one gate's evaluator directly, outside the event
// registry — used to judge a single result (e.g. a subagent run) against a
// configured quality gate without dispatching a full lifecycle event.
func (e *Engine) EvaluateSingleHook(ctx context.Context, cfg HookConfig, hctx HookContext) (HookResult, error) {
	e.mu.RLock()
	fn, ok := e.evaluators[cfg.Type]
	e.mu.RUnlock()
	if !ok {
		return HookResult{Passed: true}, fmt.Errorf("hooks: unknown evaluator type %q", cfg.Type)
	}

	if cfg.TimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.TimeoutSec)*time.Second)
		defer cancel()
	}
	return fn(ctx, cfg, hctx)
}
